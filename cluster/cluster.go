// Package cluster groups locality points into geohash grid cells for display on the point layer
// and answers the expansion zoom of a cluster for the click router.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/fieldnotes/go-locality-picker/click"
	"github.com/fieldnotes/go-locality-picker/feature"
	"github.com/mmcloughlin/geohash"
	"github.com/paulmach/orb"
)

// ErrUnknownCluster is returned for cluster ids that do not identify a group of two or more points.
var ErrUnknownCluster = errors.New("Unknown cluster")

const (
	DefaultMaxZoom = 16
	// MaxZoomLimit keeps the geohash cell within the bits reserved for it in a cluster id.
	MaxZoomLimit = 20
)

const zoom_shift = 48

type Options struct {
	// MaxZoom is the last zoom level at which points are clustered.
	MaxZoom int
}

// Index is an immutable clustering of a set of locality points.
type Index struct {
	features []*feature.PointFeature
	max_zoom int
}

func NewIndex(features []*feature.PointFeature, opts *Options) *Index {

	max_zoom := DefaultMaxZoom

	if opts != nil && opts.MaxZoom > 0 {
		max_zoom = opts.MaxZoom
	}

	max_zoom = min(max_zoom, MaxZoomLimit)

	idx := &Index{
		features: features,
		max_zoom: max_zoom,
	}

	return idx
}

// MaxZoom returns the last zoom level at which points are clustered.
func (idx *Index) MaxZoom() int {
	return idx.max_zoom
}

// Clusters returns the rendered features whose position falls inside 'b' at 'zoom'. Points
// sharing a grid cell are merged into a single cluster positioned at their mean coordinate.
func (idx *Index) Clusters(b orb.Bound, zoom float64) []*click.RenderedFeature {

	z := idx.clampZoom(zoom)

	rendered := make([]*click.RenderedFeature, 0)

	if z > idx.max_zoom {

		for _, f := range idx.features {

			if b.Contains(f.Point()) {
				rendered = append(rendered, pointFeature(f))
			}
		}

		return rendered
	}

	cells := idx.group(z)

	keys := make([]uint64, 0, len(cells))

	for k := range cells {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	for _, k := range keys {

		members := cells[k]

		var r *click.RenderedFeature

		if len(members) == 1 {
			r = pointFeature(members[0])
		} else {
			r = &click.RenderedFeature{
				IsCluster:  true,
				ClusterId:  clusterId(z, k),
				PointCount: len(members),
				Point:      centroid(members),
			}
		}

		if b.Contains(r.Point) {
			rendered = append(rendered, r)
		}
	}

	return rendered
}

// ClusterExpansionZoom returns the first zoom level at which the members of cluster 'id' no
// longer share a single cell. Clusters that never split, because their points coincide, expand
// to one level past the maximum clustering zoom.
func (idx *Index) ClusterExpansionZoom(ctx context.Context, id int64) (float64, error) {

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	members, z, err := idx.Members(id)

	if err != nil {
		return 0, err
	}

	for next := z + 1; next <= idx.max_zoom; next++ {

		first := cell(members[0], next)

		for _, f := range members[1:] {

			if cell(f, next) != first {
				return float64(next), nil
			}
		}
	}

	return float64(idx.max_zoom + 1), nil
}

// Members returns the points of cluster 'id' and the zoom level it was rendered at.
func (idx *Index) Members(id int64) ([]*feature.PointFeature, int, error) {

	if id < 0 {
		return nil, 0, fmt.Errorf("%w, %d", ErrUnknownCluster, id)
	}

	z := int(id >> zoom_shift)
	k := uint64(id) & (1<<zoom_shift - 1)

	if z > idx.max_zoom {
		return nil, 0, fmt.Errorf("%w, %d", ErrUnknownCluster, id)
	}

	members := make([]*feature.PointFeature, 0)

	for _, f := range idx.features {

		if cell(f, z) == k {
			members = append(members, f)
		}
	}

	if len(members) < 2 {
		return nil, 0, fmt.Errorf("%w, %d", ErrUnknownCluster, id)
	}

	return members, z, nil
}

func (idx *Index) clampZoom(zoom float64) int {

	if math.IsNaN(zoom) || zoom < 0 {
		return 0
	}

	return int(math.Floor(zoom))
}

func (idx *Index) group(z int) map[uint64][]*feature.PointFeature {

	cells := make(map[uint64][]*feature.PointFeature)

	for _, f := range idx.features {
		k := cell(f, z)
		cells[k] = append(cells[k], f)
	}

	return cells
}

// precision returns the geohash bit depth for a zoom level: roughly eight cells across a map tile.
func precision(z int) uint {
	return uint(2 * (z + 3))
}

func cell(f *feature.PointFeature, z int) uint64 {
	return geohash.EncodeIntWithPrecision(f.Latitude, f.Longitude, precision(z))
}

func clusterId(z int, k uint64) int64 {
	return int64(z)<<zoom_shift | int64(k)
}

func centroid(members []*feature.PointFeature) orb.Point {

	var lon, lat float64

	for _, f := range members {
		lon += f.Longitude
		lat += f.Latitude
	}

	n := float64(len(members))
	return orb.Point{lon / n, lat / n}
}

func pointFeature(f *feature.PointFeature) *click.RenderedFeature {

	r := &click.RenderedFeature{
		Id:    f.Id,
		Name:  f.Name,
		Point: f.Point(),
	}

	return r
}
