package shape

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// dig candidates examined per edge before the edge is left as is
const max_dig_candidates = 16

// ConcaveHull returns a closed, counter-clockwise ring containing every point in 'points'.
// It starts from the convex hull and, while a hull edge is longer than 'max_edge' kilometres,
// replaces it with two edges through the nearest interior point. A replacement is only made
// if it keeps every point inside the ring and the ring simple. An infinite 'max_edge'
// returns the convex hull. The second return value is false when the points do not span an
// area (fewer than three distinct points, or all collinear).
func ConcaveHull(points []orb.Point, max_edge float64) (orb.Ring, bool) {

	unique := dedupe(points)

	if len(unique) < 3 {
		return nil, false
	}

	hull := convexHull(unique)

	if len(hull) < 3 {
		return nil, false
	}

	hull = withBoundaryPoints(hull, unique)

	if !math.IsInf(max_edge, 1) {
		hull = dig(hull, unique, max_edge)
	}

	ring := make(orb.Ring, 0, len(hull)+1)
	ring = append(ring, hull...)
	ring = append(ring, hull[0])

	return ring, true
}

func dedupe(points []orb.Point) []orb.Point {

	seen := make(map[orb.Point]bool)
	unique := make([]orb.Point, 0, len(points))

	for _, pt := range points {

		if seen[pt] {
			continue
		}

		seen[pt] = true
		unique = append(unique, pt)
	}

	return unique
}

// convexHull is Andrew's monotone chain. Collinear points are dropped.
func convexHull(points []orb.Point) []orb.Point {

	sorted := make([]orb.Point, len(points))
	copy(sorted, points)

	sort.Slice(sorted, func(i, j int) bool {

		if sorted[i][0] != sorted[j][0] {
			return sorted[i][0] < sorted[j][0]
		}

		return sorted[i][1] < sorted[j][1]
	})

	lower := make([]orb.Point, 0)

	for _, pt := range sorted {

		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], pt) <= 0 {
			lower = lower[:len(lower)-1]
		}

		lower = append(lower, pt)
	}

	upper := make([]orb.Point, 0)

	for i := len(sorted) - 1; i >= 0; i-- {

		pt := sorted[i]

		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], pt) <= 0 {
			upper = upper[:len(upper)-1]
		}

		upper = append(upper, pt)
	}

	hull := append(lower[:len(lower)-1], upper[:len(upper)-1]...)
	return hull
}

// withBoundaryPoints inserts points lying on a hull edge as hull vertices so that no point
// sits in the middle of an edge that may later be dug into.
func withBoundaryPoints(hull []orb.Point, points []orb.Point) []orb.Point {

	vertices := make(map[orb.Point]bool)

	for _, pt := range hull {
		vertices[pt] = true
	}

	out := make([]orb.Point, 0, len(hull))

	for i, a := range hull {

		b := hull[(i+1)%len(hull)]
		out = append(out, a)

		between := make([]orb.Point, 0)

		for _, pt := range points {

			if vertices[pt] {
				continue
			}

			if onSegment(pt, a, b) {
				between = append(between, pt)
			}
		}

		sort.Slice(between, func(i, j int) bool {
			return sqDist(a, between[i]) < sqDist(a, between[j])
		})

		out = append(out, between...)
	}

	return out
}

type edge struct {
	a orb.Point
	b orb.Point
}

func dig(hull []orb.Point, points []orb.Point, max_edge float64) []orb.Point {

	on_hull := make(map[orb.Point]bool)

	for _, pt := range hull {
		on_hull[pt] = true
	}

	inner := make([]orb.Point, 0)

	for _, pt := range points {

		if !on_hull[pt] {
			inner = append(inner, pt)
		}
	}

	final := make(map[edge]bool)

	for len(inner) > 0 {

		idx := -1
		longest := 0.0

		for i, a := range hull {

			b := hull[(i+1)%len(hull)]

			if final[edge{a, b}] {
				continue
			}

			km := geo.DistanceHaversine(a, b) / 1000.0

			if km > max_edge && km > longest {
				idx = i
				longest = km
			}
		}

		if idx == -1 {
			break
		}

		a := hull[idx]
		b := hull[(idx+1)%len(hull)]

		q, ok := digPoint(hull, idx, inner, points)

		if !ok {
			final[edge{a, b}] = true
			continue
		}

		hull = append(hull[:idx+1], append([]orb.Point{q}, hull[idx+1:]...)...)

		for i, pt := range inner {

			if pt == q {
				inner = append(inner[:i], inner[i+1:]...)
				break
			}
		}
	}

	return hull
}

// digPoint returns the interior point nearest to hull edge 'idx' that can replace it.
func digPoint(hull []orb.Point, idx int, inner []orb.Point, points []orb.Point) (orb.Point, bool) {

	a := hull[idx]
	b := hull[(idx+1)%len(hull)]

	candidates := make([]orb.Point, 0, len(inner))

	for _, q := range inner {

		// the interior of a counter-clockwise ring is to the left of every edge
		if cross(a, b, q) > 0 {
			candidates = append(candidates, q)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return segmentDistance(candidates[i], a, b) < segmentDistance(candidates[j], a, b)
	})

	if len(candidates) > max_dig_candidates {
		candidates = candidates[:max_dig_candidates]
	}

	for _, q := range candidates {

		if !triangleIsEmpty(a, q, b, points) {
			continue
		}

		if crossesHull(hull, idx, a, q) || crossesHull(hull, idx, q, b) {
			continue
		}

		return q, true
	}

	return orb.Point{}, false
}

// triangleIsEmpty reports whether removing triangle a, q, b from the ring leaves every point
// inside it; points on the new edges a-q and q-b stay on the boundary.
func triangleIsEmpty(a orb.Point, q orb.Point, b orb.Point, points []orb.Point) bool {

	for _, pt := range points {

		if pt == a || pt == q || pt == b {
			continue
		}

		if !inTriangle(pt, a, q, b) {
			continue
		}

		if onSegment(pt, a, q) || onSegment(pt, q, b) {
			continue
		}

		return false
	}

	return true
}

// crossesHull reports whether segment s1-s2 touches any hull edge other than edge 'skip',
// ignoring contact at a shared endpoint.
func crossesHull(hull []orb.Point, skip int, s1 orb.Point, s2 orb.Point) bool {

	for i, e1 := range hull {

		if i == skip {
			continue
		}

		e2 := hull[(i+1)%len(hull)]

		shared := 0

		if e1 == s1 || e1 == s2 {
			shared++
		}

		if e2 == s1 || e2 == s2 {
			shared++
		}

		switch shared {
		case 0:

			if segmentsIntersect(s1, s2, e1, e2) {
				return true
			}

		case 1:

			// only a collinear overlap is a problem when one endpoint is shared
			if onSegment(e1, s1, s2) && e1 != s1 && e1 != s2 {
				return true
			}

			if onSegment(e2, s1, s2) && e2 != s1 && e2 != s2 {
				return true
			}

			if onSegment(s1, e1, e2) && s1 != e1 && s1 != e2 {
				return true
			}

			if onSegment(s2, e1, e2) && s2 != e1 && s2 != e2 {
				return true
			}

		default:
			return true
		}
	}

	return false
}

func cross(o orb.Point, a orb.Point, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

func sqDist(a orb.Point, b orb.Point) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	return dx*dx + dy*dy
}

func onSegment(pt orb.Point, a orb.Point, b orb.Point) bool {

	if cross(a, b, pt) != 0 {
		return false
	}

	return math.Min(a[0], b[0]) <= pt[0] && pt[0] <= math.Max(a[0], b[0]) &&
		math.Min(a[1], b[1]) <= pt[1] && pt[1] <= math.Max(a[1], b[1])
}

// inTriangle is inclusive of the triangle's edges.
func inTriangle(pt orb.Point, a orb.Point, b orb.Point, c orb.Point) bool {

	d1 := cross(a, b, pt)
	d2 := cross(b, c, pt)
	d3 := cross(c, a, pt)

	has_neg := d1 < 0 || d2 < 0 || d3 < 0
	has_pos := d1 > 0 || d2 > 0 || d3 > 0

	return !(has_neg && has_pos)
}

// segmentsIntersect is inclusive of touching endpoints and collinear overlap.
func segmentsIntersect(p1 orb.Point, p2 orb.Point, p3 orb.Point, p4 orb.Point) bool {

	d1 := cross(p3, p4, p1)
	d2 := cross(p3, p4, p2)
	d3 := cross(p1, p2, p3)
	d4 := cross(p1, p2, p4)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	return onSegment(p1, p3, p4) || onSegment(p2, p3, p4) || onSegment(p3, p1, p2) || onSegment(p4, p1, p2)
}

func segmentDistance(pt orb.Point, a orb.Point, b orb.Point) float64 {

	l2 := sqDist(a, b)

	if l2 == 0 {
		return math.Sqrt(sqDist(pt, a))
	}

	t := ((pt[0]-a[0])*(b[0]-a[0]) + (pt[1]-a[1])*(b[1]-a[1])) / l2
	t = math.Max(0, math.Min(1, t))

	proj := orb.Point{a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1])}
	return math.Sqrt(sqDist(pt, proj))
}
