package picker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fieldnotes/go-locality-picker/click"
	"github.com/fieldnotes/go-locality-picker/feature"
	"github.com/fieldnotes/go-locality-picker/locality"
	"github.com/fieldnotes/go-locality-picker/scope"
	"github.com/fieldnotes/go-locality-picker/shape"
	"github.com/fieldnotes/go-locality-picker/viewport"
	"github.com/paulmach/orb"
)

var world = orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}

type testSource struct {
	mu  sync.Mutex
	err error
}

func (src *testSource) Load(ctx context.Context) (*feature.FeatureCollection, error) {

	src.mu.Lock()
	defer src.mu.Unlock()

	if src.err != nil {
		return nil, src.err
	}

	fc := &feature.FeatureCollection{
		Features: testFeatures(),
	}

	return fc, nil
}

func testFeatures() []*feature.PointFeature {

	return []*feature.PointFeature{
		{Id: "A", Name: "A", TownId: "T1", DepartmentId: "D1", Longitude: 1, Latitude: 1},
		{Id: "B", Name: "B", TownId: "T1", DepartmentId: "D1", Longitude: 1, Latitude: 2},
		{Id: "C", Name: "C", TownId: "T1", DepartmentId: "D1", Longitude: 2, Latitude: 1},
		{Id: "D", Name: "D", TownId: "T2", DepartmentId: "D2", Longitude: 50, Latitude: 50},
	}
}

func testLocality(id string) *locality.Locality {

	for _, f := range testFeatures() {

		if f.Id == id {

			return &locality.Locality{
				Id:           f.Id,
				Name:         f.Name,
				TownId:       f.TownId,
				DepartmentId: f.DepartmentId,
				Longitude:    f.Longitude,
				Latitude:     f.Latitude,
			}
		}
	}

	return nil
}

type testFetcher struct {
	err error
}

func (f *testFetcher) Fetch(ctx context.Context, id string) (*locality.Locality, error) {

	if f.err != nil {
		return nil, f.err
	}

	l := testLocality(id)

	if l == nil {
		return nil, errors.New("Not found")
	}

	return l, nil
}

type testCamera struct {
	mu     sync.Mutex
	bounds orb.Bound
	fits   []orb.Bound
	eases  []orb.Point
}

func (c *testCamera) Bounds() orb.Bound {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bounds
}

func (c *testCamera) FitBounds(ctx context.Context, b orb.Bound, opts *viewport.FitOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fits = append(c.fits, b)
	return nil
}

func (c *testCamera) EaseTo(ctx context.Context, pt orb.Point, opts *viewport.EaseOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eases = append(c.eases, pt)
	return nil
}

func (c *testCamera) pan(b orb.Bound) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bounds = b
}

func (c *testCamera) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.fits), len(c.eases)
}

type recorder struct {
	mu           sync.Mutex
	localities   []*locality.Locality
	observations []Observation
	errors       []error
}

func (r *recorder) onLocalityChange(l *locality.Locality) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.localities = append(r.localities, l)
}

func (r *recorder) onCoordinateChange(obs Observation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observations = append(r.observations, obs)
}

func (r *recorder) onError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}

func newTestSession(t *testing.T, src *testSource, fetcher locality.Fetcher) (*Session, *recorder) {

	ctx := context.Background()

	rec := &recorder{}

	opts := &SessionOptions{
		Store:              feature.NewStoreWithSource(ctx, src, 0),
		Fetcher:            fetcher,
		OnLocalityChange:   rec.onLocalityChange,
		OnCoordinateChange: rec.onCoordinateChange,
		OnError:            rec.onError,
	}

	s, err := NewSession(ctx, opts)

	if err != nil {
		t.Fatalf("Failed to create session, %v", err)
	}

	t.Cleanup(func() {
		s.Close(ctx)
	})

	return s, rec
}

func townForm(id string) scope.FormState {
	return scope.FormState{
		Department: &scope.Department{Id: "D1"},
		Town:       &scope.Town{Id: id, DepartmentId: "D1"},
	}
}

func TestNewSessionMissingStore(t *testing.T) {

	_, err := NewSession(context.Background(), &SessionOptions{})

	if !errors.Is(err, ErrMissingStore) {
		t.Fatalf("Expected ErrMissingStore, got %v", err)
	}
}

func TestSessionFramesScope(t *testing.T) {

	ctx := context.Background()

	s, _ := newTestSession(t, &testSource{}, nil)

	camera := &testCamera{bounds: world}

	// Every locality fits inside the world view: zoom in on them.

	s.AttachCamera(ctx, camera)

	if fits, _ := camera.counts(); fits != 1 {
		t.Fatalf("Expected initial fit, got %d", fits)
	}

	// Town T1 lies inside the current view: zoom in.

	s.SetFormState(ctx, townForm("T1"))

	if s.Scope() != (scope.Scope{Kind: scope.KindTown, Id: "T1"}) {
		t.Fatalf("Unexpected scope %v", s.Scope())
	}

	if fits, _ := camera.counts(); fits != 2 {
		t.Fatalf("Expected town fit, got %d", fits)
	}

	b := s.Shape()

	if b == nil || b.Count != 3 {
		t.Fatalf("Unexpected town shape %v", b)
	}

	for _, f := range testFeatures()[:3] {

		if b.Relate(f.Point().Bound()) == shape.RelationDisjoint {
			t.Fatalf("Shape should contain %s", f.Id)
		}
	}

	// A manual pan followed by a re-render with the same scope leaves the camera alone.

	camera.pan(orb.Bound{Min: orb.Point{100, 10}, Max: orb.Point{110, 20}})

	s.SetFormState(ctx, townForm("T1"))
	s.OnMove(ctx)

	if fits, _ := camera.counts(); fits != 2 {
		t.Fatalf("Manual pan should not be undone, got %d fits", fits)
	}

	// Town T2 is entirely outside the view: pan to it.

	s.SetFormState(ctx, scope.FormState{
		Department: &scope.Department{Id: "D2"},
		Town:       &scope.Town{Id: "T2", DepartmentId: "D2"},
	})

	if fits, _ := camera.counts(); fits != 3 {
		t.Fatalf("Expected fit to disjoint town, got %d", fits)
	}
}

func TestSessionPartialOverlap(t *testing.T) {

	ctx := context.Background()

	s, _ := newTestSession(t, &testSource{}, nil)

	camera := &testCamera{bounds: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1.5, 1.5}}}

	s.SetFormState(ctx, townForm("T1"))
	s.AttachCamera(ctx, camera)

	if fits, eases := camera.counts(); fits != 0 || eases != 0 {
		t.Fatalf("Straddling shape should not move the camera, got %d fits %d eases", fits, eases)
	}
}

func TestSessionStoreUnavailable(t *testing.T) {

	ctx := context.Background()

	src := &testSource{err: errors.New("offline")}

	s, _ := newTestSession(t, src, nil)

	camera := &testCamera{bounds: world}

	s.AttachCamera(ctx, camera)
	s.SetFormState(ctx, townForm("T1"))

	if fits, _ := camera.counts(); fits != 0 {
		t.Fatalf("Camera should not move while features are unavailable")
	}

	if s.Shape() != nil {
		t.Fatalf("Expected no shape while features are unavailable")
	}

	src.mu.Lock()
	src.err = nil
	src.mu.Unlock()

	// Moving the map never fetches features.

	s.OnMove(ctx)

	if fits, _ := camera.counts(); fits != 0 {
		t.Fatalf("OnMove should not fetch features")
	}

	// The pending transition fires once the features can be loaded.

	s.SetFormState(ctx, townForm("T1"))

	if fits, _ := camera.counts(); fits != 1 {
		t.Fatalf("Expected pending transition to fit, got %d", fits)
	}
}

func TestSessionCoordinateOverride(t *testing.T) {

	ctx := context.Background()

	s, rec := newTestSession(t, &testSource{}, nil)

	a := testLocality("A")

	s.SelectLocality(ctx, a)

	if s.IsCustomized() {
		t.Fatalf("New selection should not be customized")
	}

	s.OnDrag(ctx, orb.Point{1.5, 1.5})

	if !s.IsCustomized() {
		t.Fatalf("Drag should customize the coordinate")
	}

	s.ResetCoordinate(ctx)

	pt, ok := s.Coordinate()

	if !ok || pt != a.Point() || s.IsCustomized() {
		t.Fatalf("Reset should restore %v, got %v (%t)", a.Point(), pt, s.IsCustomized())
	}

	// A new locality wins over a previous override.

	s.OnDrag(ctx, orb.Point{1.5, 1.5})
	s.SelectLocality(ctx, testLocality("B"))

	pt, _ = s.Coordinate()

	if pt != (orb.Point{1, 2}) || s.IsCustomized() {
		t.Fatalf("Expected coordinate of B, got %v (%t)", pt, s.IsCustomized())
	}

	obs := s.Observation()

	if obs.Coordinate == nil || *obs.Coordinate != (orb.Point{1, 2}) {
		t.Fatalf("Unexpected observation %v", obs)
	}

	if len(rec.localities) != 2 || rec.localities[1].Id != "B" {
		t.Fatalf("Unexpected locality notifications %v", rec.localities)
	}

	last := rec.observations[len(rec.observations)-1]

	if last.IsCustomized || *last.Coordinate != (orb.Point{1, 2}) {
		t.Fatalf("Unexpected last observation %v", last)
	}
}

func TestSessionClearLocality(t *testing.T) {

	ctx := context.Background()

	s, rec := newTestSession(t, &testSource{}, nil)

	s.SelectLocality(ctx, testLocality("A"))

	if s.Scope() != (scope.Scope{Kind: scope.KindLocality, Id: "A"}) {
		t.Fatalf("Unexpected scope %v", s.Scope())
	}

	s.SetFormState(ctx, townForm("T1"))

	if s.Selected() != nil {
		t.Fatalf("Clearing the locality field should clear the selection")
	}

	if _, ok := s.Coordinate(); ok {
		t.Fatalf("Coordinate should be empty")
	}

	if s.Scope() != (scope.Scope{Kind: scope.KindTown, Id: "T1"}) {
		t.Fatalf("Unexpected scope %v", s.Scope())
	}

	if len(rec.localities) != 2 || rec.localities[1] != nil {
		t.Fatalf("Expected a nil locality notification, got %v", rec.localities)
	}
}

func TestSessionDragOffscreenCenters(t *testing.T) {

	ctx := context.Background()

	s, _ := newTestSession(t, &testSource{}, nil)

	camera := &testCamera{bounds: orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{3, 3}}}

	s.SelectLocality(ctx, testLocality("A"))
	s.AttachCamera(ctx, camera)

	fits, _ := camera.counts()

	s.OnDrag(ctx, orb.Point{2, 2})

	if _, eases := camera.counts(); eases != 0 {
		t.Fatalf("Visible coordinate should not move the camera")
	}

	s.OnDrag(ctx, orb.Point{40, 40})

	after, eases := camera.counts()

	if eases != 1 || after != fits {
		t.Fatalf("Expected a single ease, got %d eases %d fits", eases, after-fits)
	}
}

func TestSessionClickSelectsLocality(t *testing.T) {

	ctx := context.Background()

	s, rec := newTestSession(t, &testSource{}, &testFetcher{})

	camera := &testCamera{bounds: world}
	s.AttachCamera(ctx, camera)

	s.OnClick(ctx, &click.RenderedFeature{Id: "C", Point: orb.Point{2, 1}})
	s.Wait()

	l := s.Selected()

	if l == nil || l.Id != "C" {
		t.Fatalf("Expected C to be selected, got %v", l)
	}

	if s.Scope() != (scope.Scope{Kind: scope.KindLocality, Id: "C"}) {
		t.Fatalf("Unexpected scope %v", s.Scope())
	}

	pt, _ := s.Coordinate()

	if pt != (orb.Point{2, 1}) {
		t.Fatalf("Unexpected coordinate %v", pt)
	}

	if fits, _ := camera.counts(); fits != 2 {
		t.Fatalf("Expected fit to the selected locality, got %d", fits)
	}

	if len(rec.localities) != 1 {
		t.Fatalf("Expected one locality notification, got %d", len(rec.localities))
	}
}

func TestSessionClickFetchFailure(t *testing.T) {

	ctx := context.Background()

	s, rec := newTestSession(t, &testSource{}, &testFetcher{err: errors.New("boom")})

	s.SelectLocality(ctx, testLocality("A"))

	s.OnClick(ctx, &click.RenderedFeature{Id: "B"})
	s.Wait()

	if s.Selected().Id != "A" {
		t.Fatalf("Selection should be unchanged")
	}

	if len(rec.errors) != 1 {
		t.Fatalf("Expected an error notification, got %d", len(rec.errors))
	}
}

func TestSessionHover(t *testing.T) {

	s, _ := newTestSession(t, &testSource{}, nil)

	s.OnMouseMove([]*click.RenderedFeature{{Id: "A"}})

	if h := s.Hovered(); h == nil || h.Id != "A" {
		t.Fatalf("Unexpected hovered feature %v", h)
	}
}

func TestSessionClose(t *testing.T) {

	ctx := context.Background()

	s, _ := newTestSession(t, &testSource{}, &testFetcher{})

	camera := &testCamera{bounds: world}

	err := s.Close(ctx)

	if err != nil {
		t.Fatalf("Failed to close session, %v", err)
	}

	s.AttachCamera(ctx, camera)
	s.SelectLocality(ctx, testLocality("A"))
	s.OnClick(ctx, &click.RenderedFeature{Id: "B"})
	s.OnMouseMove([]*click.RenderedFeature{{Id: "C"}})
	s.Wait()

	if s.Selected() != nil {
		t.Fatalf("Closed session should ignore events")
	}

	if s.Hovered() != nil {
		t.Fatalf("Closed session should ignore pointer moves")
	}

	if fits, eases := camera.counts(); fits != 0 || eases != 0 {
		t.Fatalf("Closed session should not move the camera")
	}
}

func TestSessionReselectAfterParentChange(t *testing.T) {

	ctx := context.Background()

	s, rec := newTestSession(t, &testSource{}, &testFetcher{})

	camera := &testCamera{bounds: world}
	s.AttachCamera(ctx, camera)

	locality_scope := scope.Scope{Kind: scope.KindLocality, Id: "A"}

	s.SelectLocality(ctx, testLocality("A"))

	if s.Scope() != locality_scope {
		t.Fatalf("Unexpected scope %v", s.Scope())
	}

	// A new department leaves the town and locality fields stale.

	stale := scope.FormState{
		Department: &scope.Department{Id: "D2"},
		Town:       &scope.Town{Id: "T1", DepartmentId: "D1"},
		Locality:   &scope.Locality{Id: "A", TownId: "T1", DepartmentId: "D1"},
	}

	s.SetFormState(ctx, stale)

	if s.Scope() != (scope.Scope{Kind: scope.KindDepartment, Id: "D2"}) {
		t.Fatalf("Unexpected scope %v", s.Scope())
	}

	if s.Selected() != nil {
		t.Fatalf("Stale locality should be cleared, got %v", s.Selected())
	}

	if _, ok := s.Coordinate(); ok {
		t.Fatalf("Coordinate of a stale locality should be cleared")
	}

	if len(rec.localities) != 2 || rec.localities[1] != nil {
		t.Fatalf("Expected a nil locality notification, got %v", rec.localities)
	}

	// Picking A again on the map restores the locality scope.

	s.OnClick(ctx, &click.RenderedFeature{Id: "A", Point: orb.Point{1, 1}})
	s.Wait()

	if s.Scope() != locality_scope {
		t.Fatalf("Expected click to restore locality scope, got %v", s.Scope())
	}

	if l := s.Selected(); l == nil || l.Id != "A" {
		t.Fatalf("Expected A to be selected, got %v", l)
	}

	// So does picking it again from the form field.

	s.SetFormState(ctx, stale)
	s.SelectLocality(ctx, testLocality("A"))

	if s.Scope() != locality_scope {
		t.Fatalf("Expected selection to restore locality scope, got %v", s.Scope())
	}

	pt, ok := s.Coordinate()

	if !ok || pt != (orb.Point{1, 1}) {
		t.Fatalf("Unexpected coordinate %v", pt)
	}
}

func TestSessionFormLocalityFollowsScope(t *testing.T) {

	ctx := context.Background()

	s, rec := newTestSession(t, &testSource{}, nil)

	s.SelectLocality(ctx, testLocality("A"))
	s.OnDrag(ctx, orb.Point{1.5, 1.5})

	// The same locality in the form keeps the override.

	s.SetFormState(ctx, scope.FormState{
		Department: &scope.Department{Id: "D1"},
		Town:       &scope.Town{Id: "T1", DepartmentId: "D1"},
		Locality:   &scope.Locality{Id: "A", TownId: "T1", DepartmentId: "D1"},
	})

	if !s.IsCustomized() {
		t.Fatalf("Re-rendering the same locality should keep the override")
	}

	// A different locality takes its coordinate from the loaded features.

	s.SetFormState(ctx, scope.FormState{
		Locality: &scope.Locality{Id: "B"},
	})

	if s.Scope() != (scope.Scope{Kind: scope.KindLocality, Id: "B"}) {
		t.Fatalf("Unexpected scope %v", s.Scope())
	}

	l := s.Selected()

	if l == nil || l.Id != "B" || l.TownId != "T1" {
		t.Fatalf("Expected B to be selected, got %v", l)
	}

	pt, ok := s.Coordinate()

	if !ok || pt != (orb.Point{1, 2}) || s.IsCustomized() {
		t.Fatalf("Expected coordinate of B, got %v (%t)", pt, s.IsCustomized())
	}

	last := rec.localities[len(rec.localities)-1]

	if last == nil || last.Id != "B" {
		t.Fatalf("Expected a notification for B, got %v", last)
	}

	// An unknown locality clears the selection rather than keeping B.

	s.SetFormState(ctx, scope.FormState{
		Locality: &scope.Locality{Id: "Z"},
	})

	if s.Selected() != nil {
		t.Fatalf("Unknown locality should clear the selection, got %v", s.Selected())
	}

	if _, ok := s.Coordinate(); ok {
		t.Fatalf("Coordinate should be empty")
	}
}

type gatedSource struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (src *gatedSource) Load(ctx context.Context) (*feature.FeatureCollection, error) {

	src.once.Do(func() {
		close(src.started)
	})

	<-src.release

	fc := &feature.FeatureCollection{
		Features: testFeatures(),
	}

	return fc, nil
}

func TestSessionLoadDoesNotHoldLock(t *testing.T) {

	ctx := context.Background()

	src := &gatedSource{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}

	opts := &SessionOptions{
		Store: feature.NewStoreWithSource(ctx, src, 0),
	}

	s, err := NewSession(ctx, opts)

	if err != nil {
		t.Fatalf("Failed to create session, %v", err)
	}

	camera := &testCamera{bounds: world}

	attached := make(chan struct{})

	go func() {
		s.AttachCamera(ctx, camera)
		close(attached)
	}()

	<-src.started

	read := make(chan struct{})

	go func() {
		s.Selected()
		s.Scope()
		close(read)
	}()

	select {
	case <-read:
	case <-time.After(time.Second):
		t.Fatalf("Session state should be readable while features load")
	}

	close(src.release)
	<-attached

	if fits, _ := camera.counts(); fits != 1 {
		t.Fatalf("Expected a fit once features loaded, got %d", fits)
	}

	s.Close(ctx)
}
