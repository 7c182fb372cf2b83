package shape

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Relation describes how a BoundingShape sits relative to a rectangle.
type Relation string

const (
	RelationContained Relation = "contained"
	RelationDisjoint  Relation = "disjoint"
	RelationOverlaps  Relation = "overlaps"
)

// Relate reports whether the shape lies fully inside 'rect', entirely outside it, or
// straddles its edge.
func (b *BoundingShape) Relate(rect orb.Bound) Relation {

	bound := b.Bound()

	if rect.Contains(bound.Min) && rect.Contains(bound.Max) {
		return RelationContained
	}

	if !rect.Intersects(bound) {
		return RelationDisjoint
	}

	// the bounding boxes overlap but a concave shape may still miss the rectangle

	for _, ring := range b.Polygon {

		for _, pt := range ring {

			if rect.Contains(pt) {
				return RelationOverlaps
			}
		}
	}

	corners := rect.ToRing()

	for _, pt := range corners {

		if planar.PolygonContains(b.Polygon, pt) {
			return RelationOverlaps
		}
	}

	for _, ring := range b.Polygon {

		for i := 0; i < len(ring)-1; i++ {

			for j := 0; j < len(corners)-1; j++ {

				if segmentsIntersect(ring[i], ring[i+1], corners[j], corners[j+1]) {
					return RelationOverlaps
				}
			}
		}
	}

	return RelationDisjoint
}
