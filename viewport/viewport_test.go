package viewport

import (
	"context"
	"fmt"
	"testing"

	"github.com/fieldnotes/go-locality-picker/feature"
	"github.com/fieldnotes/go-locality-picker/scope"
	"github.com/fieldnotes/go-locality-picker/shape"
	"github.com/paulmach/orb"
)

type recordingCamera struct {
	bounds orb.Bound
	fits   []orb.Bound
	eases  []orb.Point
	err    error
}

func (c *recordingCamera) Bounds() orb.Bound {
	return c.bounds
}

func (c *recordingCamera) FitBounds(ctx context.Context, b orb.Bound, opts *FitOptions) error {

	if c.err != nil {
		return c.err
	}

	c.fits = append(c.fits, b)
	c.bounds = b
	return nil
}

func (c *recordingCamera) EaseTo(ctx context.Context, pt orb.Point, opts *EaseOptions) error {

	if c.err != nil {
		return c.err
	}

	c.eases = append(c.eases, pt)
	return nil
}

func townShape() *shape.BoundingShape {

	features := []*feature.PointFeature{
		{Id: "A", TownId: "T1", Longitude: 1, Latitude: 1},
		{Id: "B", TownId: "T1", Longitude: 1, Latitude: 2},
		{Id: "C", TownId: "T1", Longitude: 2, Latitude: 1},
	}

	return shape.Build(features, scope.Scope{Kind: scope.KindTown, Id: "T1"})
}

func TestReconcileContainedFits(t *testing.T) {

	rect := orb.Bound{Min: orb.Point{-10, -10}, Max: orb.Point{10, 10}}
	s := scope.Scope{Kind: scope.KindTown, Id: "T1"}

	cmd := Reconcile(townShape(), rect, nil, s, DefaultOptions())

	if cmd.Action != ActionFit {
		t.Fatalf("Expected fit, got %s", cmd.Action)
	}

	if cmd.Padding <= 0 || cmd.MaxZoom <= 0 || cmd.Duration <= 0 {
		t.Fatalf("Expected fit to carry padding, max zoom and duration, got %+v", cmd)
	}
}

func TestReconcileDisjointFits(t *testing.T) {

	rect := orb.Bound{Min: orb.Point{20, 20}, Max: orb.Point{30, 30}}
	s := scope.Scope{Kind: scope.KindTown, Id: "T1"}

	cmd := Reconcile(townShape(), rect, nil, s, DefaultOptions())

	if cmd.Action != ActionFit {
		t.Fatalf("Expected fit, got %s", cmd.Action)
	}
}

func TestReconcileOverlapLeavesCamera(t *testing.T) {

	rect := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1.2, 1.2}}
	s := scope.Scope{Kind: scope.KindTown, Id: "T1"}

	cmd := Reconcile(townShape(), rect, nil, s, DefaultOptions())

	if cmd.Action != ActionNone {
		t.Fatalf("Expected none, got %s", cmd.Action)
	}
}

func TestReconcileConcaveMiss(t *testing.T) {

	// the rectangle sits inside the triangle's bounding box but outside the triangle
	rect := orb.Bound{Min: orb.Point{1.8, 1.8}, Max: orb.Point{1.9, 1.9}}
	s := scope.Scope{Kind: scope.KindTown, Id: "T1"}

	b := townShape()

	if b.Relate(rect) != shape.RelationDisjoint {
		t.Fatalf("Expected disjoint relation, got %s", b.Relate(rect))
	}

	cmd := Reconcile(b, rect, nil, s, DefaultOptions())

	if cmd.Action != ActionFit {
		t.Fatalf("Expected fit, got %s", cmd.Action)
	}
}

func TestReconcileNilShape(t *testing.T) {

	rect := orb.Bound{Min: orb.Point{-10, -10}, Max: orb.Point{10, 10}}

	cmd := Reconcile(nil, rect, nil, scope.None, DefaultOptions())

	if cmd.Action != ActionNone {
		t.Fatalf("Expected none for nil shape, got %s", cmd.Action)
	}
}

func TestReconcilerIsEdgeTriggered(t *testing.T) {

	r := NewReconciler(nil)
	s := scope.Scope{Kind: scope.KindTown, Id: "T1"}
	b := townShape()

	rect := orb.Bound{Min: orb.Point{-10, -10}, Max: orb.Point{10, 10}}

	cmd := r.Update(b, rect, s)

	if cmd.Action != ActionFit {
		t.Fatalf("Expected first evaluation to fit, got %s", cmd.Action)
	}

	// the user pans away, the form re-renders with the same scope

	panned := orb.Bound{Min: orb.Point{40, 40}, Max: orb.Point{50, 50}}
	cmd = r.Update(b, panned, s)

	if cmd.Action != ActionNone {
		t.Fatalf("Expected repeated evaluation to do nothing, got %s", cmd.Action)
	}

	prev, ok := r.Previous()

	if !ok || prev != s {
		t.Fatalf("Expected %s to be remembered, got %s", s, prev)
	}

	cmd = r.Update(nil, panned, scope.None)

	if cmd.Action != ActionNone {
		t.Fatalf("Expected none for nil shape, got %s", cmd.Action)
	}

	cmd = r.Update(b, panned, s)

	if cmd.Action != ActionFit {
		t.Fatalf("Expected new transition to fit, got %s", cmd.Action)
	}

	r.Forget()

	cmd = r.Update(b, panned, s)

	if cmd.Action != ActionFit {
		t.Fatalf("Expected forgotten scope to fire again, got %s", cmd.Action)
	}
}

func TestOnCoordinateChange(t *testing.T) {

	rect := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}
	opts := DefaultOptions()

	cmd := OnCoordinateChange(orb.Point{0.5, 0.5}, rect, opts)

	if cmd.Action != ActionNone {
		t.Fatalf("Expected none for visible coordinate, got %s", cmd.Action)
	}

	cmd = OnCoordinateChange(orb.Point{5, 5}, rect, opts)

	if cmd.Action != ActionCenter {
		t.Fatalf("Expected center for hidden coordinate, got %s", cmd.Action)
	}

	if cmd.Center != (orb.Point{5, 5}) || cmd.Zoom != opts.CenterZoom {
		t.Fatalf("Unexpected center command %+v", cmd)
	}
}

func TestApply(t *testing.T) {

	ctx := context.Background()
	camera := &recordingCamera{}

	b := orb.Bound{Min: orb.Point{1, 1}, Max: orb.Point{2, 2}}

	err := Apply(ctx, camera, fitCommand(b, DefaultOptions()))

	if err != nil {
		t.Fatalf("Failed to apply fit, %v", err)
	}

	err = Apply(ctx, camera, OnCoordinateChange(orb.Point{9, 9}, b, DefaultOptions()))

	if err != nil {
		t.Fatalf("Failed to apply center, %v", err)
	}

	err = Apply(ctx, camera, None)

	if err != nil {
		t.Fatalf("Failed to apply none, %v", err)
	}

	if len(camera.fits) != 1 || len(camera.eases) != 1 {
		t.Fatalf("Expected one fit and one ease, got %d and %d", len(camera.fits), len(camera.eases))
	}

	err = Apply(ctx, nil, fitCommand(b, DefaultOptions()))

	if err != nil {
		t.Fatalf("Expected nil camera to be ignored, %v", err)
	}

	camera.err = fmt.Errorf("map not ready")

	err = Apply(ctx, camera, fitCommand(b, DefaultOptions()))

	if err == nil {
		t.Fatalf("Expected camera error to be returned")
	}
}
