// Package shape builds the polygon enclosing the localities relevant to a scope.
package shape

import (
	"math"

	"github.com/fieldnotes/go-locality-picker/feature"
	"github.com/fieldnotes/go-locality-picker/scope"
	"github.com/paulmach/orb"
)

// Kind describes how a BoundingShape was derived.
type Kind string

const (
	// KindRectangle is the axis-aligned bounding rectangle, used for fewer than three distinct points.
	KindRectangle Kind = "rectangle"
	// KindHull is a (possibly concave) hull of three or more points.
	KindHull Kind = "hull"
)

// ScopedMaxEdge is the maximum hull edge length, in kilometres, used when a scope is active.
// Longer edges are dug into towards interior points so the shape follows the localities.
const ScopedMaxEdge = 10.0

// UnscopedMaxEdge is used when no scope is active; it reduces the hull to the convex hull.
var UnscopedMaxEdge = math.Inf(1)

// BoundingShape is a closed polygon enclosing a set of localities.
type BoundingShape struct {
	Polygon orb.Polygon `json:"polygon"`
	Kind    Kind        `json:"kind"`
	Count   int         `json:"count"`
}

// Bound returns the bounding box of the shape.
func (b *BoundingShape) Bound() orb.Bound {
	return b.Polygon.Bound()
}

// Filter returns the features matching 's'. Every feature matches the None scope.
func Filter(features []*feature.PointFeature, s scope.Scope) []*feature.PointFeature {

	if s.IsNone() {
		return features
	}

	subset := make([]*feature.PointFeature, 0)

	for _, f := range features {

		var id string

		switch s.Kind {
		case scope.KindLocality:
			id = f.Id
		case scope.KindTown:
			id = f.TownId
		case scope.KindDepartment:
			id = f.DepartmentId
		}

		if id == s.Id {
			subset = append(subset, f)
		}
	}

	return subset
}

// Build returns the shape enclosing the features matching 's', or nil if there are none.
func Build(features []*feature.PointFeature, s scope.Scope) *BoundingShape {

	subset := Filter(features, s)

	if len(subset) == 0 {
		return nil
	}

	points := feature.Points(subset)

	if len(points) < 3 {
		return rectangleShape(points)
	}

	max_edge := ScopedMaxEdge

	if s.IsNone() {
		max_edge = UnscopedMaxEdge
	}

	ring, ok := ConcaveHull(points, max_edge)

	if !ok {
		return rectangleShape(points)
	}

	return &BoundingShape{
		Polygon: orb.Polygon{ring},
		Kind:    KindHull,
		Count:   len(points),
	}
}

// Rectangle returns the axis-aligned bounding rectangle of 'points'. The rectangle may have
// zero area.
func Rectangle(points []orb.Point) orb.Polygon {
	b := orb.MultiPoint(points).Bound()
	return b.ToPolygon()
}

func rectangleShape(points []orb.Point) *BoundingShape {

	return &BoundingShape{
		Polygon: Rectangle(points),
		Kind:    KindRectangle,
		Count:   len(points),
	}
}
