// Package picker synchronises the locality selection of an observation inventory form with an
// interactive map. A Session resolves the active administrative scope from the form, frames the
// matching localities on the map, routes clicks on the locality point layer and tracks the
// draggable observation coordinate.
//
// Example:
//
//	store, _ := feature.NewStore(ctx, "https://example.com/localities.geojson")
//	fetcher, _ := locality.NewFetcher(ctx, "https://example.com/localities")
//
//	session, _ := picker.NewSession(ctx, &picker.SessionOptions{
//		Store:   store,
//		Fetcher: fetcher,
//		OnLocalityChange: func(l *locality.Locality) {
//			// update the form
//		},
//	})
//
//	defer session.Close(ctx)
//
//	session.AttachCamera(ctx, camera)
package picker

import (
	"github.com/paulmach/orb"
)

// Observation is the observation coordinate published to the surrounding form.
type Observation struct {
	// Coordinate is nil when no coordinate is set.
	Coordinate   *orb.Point `json:"coordinate,omitempty"`
	IsCustomized bool       `json:"is_customized"`
}
