package picker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fieldnotes/go-locality-picker/click"
	"github.com/fieldnotes/go-locality-picker/feature"
	"github.com/fieldnotes/go-locality-picker/locality"
	"github.com/fieldnotes/go-locality-picker/marker"
	"github.com/fieldnotes/go-locality-picker/metrics"
	"github.com/fieldnotes/go-locality-picker/scope"
	"github.com/fieldnotes/go-locality-picker/shape"
	"github.com/fieldnotes/go-locality-picker/viewport"
	"github.com/paulmach/orb"
)

// ErrMissingStore is returned by NewSession when no feature store is configured.
var ErrMissingStore = errors.New("Missing feature store")

type SessionOptions struct {
	// Store provides the locality point features. Required.
	Store *feature.Store
	// Fetcher retrieves the full record of a locality clicked on the map.
	Fetcher locality.Fetcher
	// Clusters resolves cluster expansion zoom levels for the point layer.
	Clusters click.ClusterSource
	// Viewport defaults to viewport.DefaultOptions.
	Viewport *viewport.Options
	Metrics  *metrics.Metrics
	// OnLocalityChange is invoked when the selected locality changes through the map.
	OnLocalityChange func(*locality.Locality)
	// OnCoordinateChange is invoked whenever the observation coordinate changes.
	OnCoordinateChange func(Observation)
	// OnError is invoked when a clicked locality could not be fetched.
	OnError func(error)
}

// Session is the state of the locality picker for a single inventory-editing session. It is
// created when the form opens and discarded with Close when the form closes.
type Session struct {
	options    *SessionOptions
	reconciler *viewport.Reconciler
	router     *click.Router
	marker     *marker.Controller
	camera     viewport.Camera
	form       scope.FormState
	scope      scope.Scope
	closed     bool
	mu         *sync.Mutex
}

// notification is a callback deferred until the session lock is released.
type notification func()

func NewSession(ctx context.Context, opts *SessionOptions) (*Session, error) {

	if opts == nil || opts.Store == nil {
		return nil, ErrMissingStore
	}

	viewport_opts := opts.Viewport

	if viewport_opts == nil {
		viewport_opts = viewport.DefaultOptions()
	}

	s := &Session{
		options:    opts,
		reconciler: viewport.NewReconciler(viewport_opts),
		marker:     marker.NewController(),
		mu:         new(sync.Mutex),
	}

	router_opts := &click.RouterOptions{
		Clusters: opts.Clusters,
		Fetcher:  opts.Fetcher,
		Duration: viewport_opts.Duration,
		Metrics:  opts.Metrics,
		Selected: s.selectedId,
		OnSelect: s.onClickSelect,
		OnError:  s.onClickError,
	}

	s.router = click.NewRouter(router_opts)

	return s, nil
}

// Close waits for outstanding click lookups and detaches the camera. Subsequent events are ignored.
func (s *Session) Close(ctx context.Context) error {

	s.router.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.camera = nil
	s.router.SetCamera(nil)

	return nil
}

// AttachCamera is called once the map has loaded. The current scope is framed immediately.
func (s *Session) AttachCamera(ctx context.Context, camera viewport.Camera) {

	if s.isClosed() {
		return
	}

	features, loaded := s.loadFeatures(ctx)

	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return
	}

	s.camera = camera
	s.router.SetCamera(camera)

	s.evaluateScope(ctx, features, loaded)
	s.mu.Unlock()
}

// SetFormState updates the administrative fields of the form and reconciles the camera with the
// resulting scope. The selected locality follows the resolved scope: it is cleared when the scope
// is no longer a locality, and replaced by the matching loaded feature when the form names a
// different locality.
func (s *Session) SetFormState(ctx context.Context, fs scope.FormState) {

	if s.isClosed() {
		return
	}

	features, loaded := s.loadFeatures(ctx)

	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return
	}

	s.form = fs

	changed := s.syncSelection(features, loaded)
	cmd := s.evaluateScope(ctx, features, loaded)

	var pending []notification

	if changed {

		if cmd.Action == viewport.ActionNone {
			s.centerCoordinate(ctx)
		}

		pending = s.coordinateNotifications(true)
	}

	s.mu.Unlock()

	s.notify(pending...)
}

// SelectLocality makes 'l' the selected locality, as the form does when a locality is picked from
// its text field. The observation coordinate snaps to the locality's stored coordinate. A nil
// 'l' clears the locality.
func (s *Session) SelectLocality(ctx context.Context, l *locality.Locality) {

	if s.isClosed() {
		return
	}

	features, loaded := s.loadFeatures(ctx)

	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return
	}

	pending := s.selectLocality(ctx, l, features, loaded)
	s.mu.Unlock()

	s.notify(pending...)
}

// OnMove is called when the camera has moved. The scope path only fires on a scope transition
// so a manual pan is never undone here, but a transition still pending because the features had
// not been loaded is evaluated once they are. OnMove never fetches features itself.
func (s *Session) OnMove(ctx context.Context) {

	features, loaded := s.options.Store.Features()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.evaluateScope(ctx, features, loaded)
}

// OnClick routes a click on the locality point layer.
func (s *Session) OnClick(ctx context.Context, f *click.RenderedFeature) {

	if s.isClosed() {
		return
	}

	s.router.OnClick(ctx, f)
}

// OnMouseMove updates the hovered point from the features rendered under the cursor.
func (s *Session) OnMouseMove(features []*click.RenderedFeature) {

	if s.isClosed() {
		return
	}

	s.router.OnMouseMove(features)
}

// OnDrag moves the observation coordinate to 'pt'.
func (s *Session) OnDrag(ctx context.Context, pt orb.Point) {

	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return
	}

	s.marker.OnDrag(pt)

	s.centerCoordinate(ctx)
	pending := s.coordinateNotifications(false)
	s.mu.Unlock()

	s.notify(pending...)
}

// ResetCoordinate restores the observation coordinate to the selected locality's coordinate.
func (s *Session) ResetCoordinate(ctx context.Context) {

	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return
	}

	s.marker.Reset()

	s.centerCoordinate(ctx)
	pending := s.coordinateNotifications(false)
	s.mu.Unlock()

	s.notify(pending...)
}

// Scope returns the active scope.
func (s *Session) Scope() scope.Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

// Shape returns the bounding shape of the active scope, or nil if there is none or the features
// have not been loaded.
func (s *Session) Shape() *shape.BoundingShape {

	s.mu.Lock()
	current := s.scope
	s.mu.Unlock()

	features, ok := s.options.Store.Features()

	if !ok {
		return nil
	}

	return shape.Build(features, current)
}

// Selected returns the selected locality, or nil.
func (s *Session) Selected() *locality.Locality {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marker.Selected()
}

// Coordinate returns the observation coordinate and false if it is empty.
func (s *Session) Coordinate() (orb.Point, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marker.Coordinate()
}

// IsCustomized reports whether the observation coordinate was moved away from the selected
// locality's coordinate.
func (s *Session) IsCustomized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marker.IsCustomized()
}

// Observation returns the observation coordinate as published to the form.
func (s *Session) Observation() Observation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observation()
}

// Hovered returns the point under the cursor, or nil.
func (s *Session) Hovered() *click.RenderedFeature {
	return s.router.Hovered()
}

// Wait blocks until every outstanding click lookup has completed.
func (s *Session) Wait() {
	s.router.Wait()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// loadFeatures fetches the features, if necessary, without holding the session lock.
func (s *Session) loadFeatures(ctx context.Context) ([]*feature.PointFeature, bool) {

	fc, err := s.options.Store.Load(ctx)

	s.options.Metrics.IncFeatureLoad(err == nil)

	if err != nil {
		slog.Warn("Features unavailable, leave camera untouched", "error", err)
		return nil, false
	}

	return fc.Features, true
}

// isSelected reports whether 'id' is both held by the marker and the resolved scope.
func (s *Session) isSelected(id string) bool {

	current := s.marker.Selected()

	if current == nil || current.Id != id {
		return false
	}

	return s.scope == scope.Scope{Kind: scope.KindLocality, Id: id}
}

// syncSelection aligns the marker with the scope resolved from the form. It reports whether the
// selected locality changed.
func (s *Session) syncSelection(features []*feature.PointFeature, loaded bool) bool {

	selected := s.marker.Selected()
	resolved := scope.Resolve(s.form)

	if resolved.Kind != scope.KindLocality {

		if selected == nil {
			return false
		}

		s.marker.OnLocalitySelected(nil)
		return true
	}

	if selected != nil && selected.Id == resolved.Id {
		return false
	}

	var l *locality.Locality

	if loaded {
		l = findLocality(features, resolved.Id)
	}

	if l == nil {

		slog.Warn("Locality is not among the loaded features, clear selection", "id", resolved.Id)

		if selected == nil {
			return false
		}
	}

	s.marker.OnLocalitySelected(l)
	return true
}

func (s *Session) selectLocality(ctx context.Context, l *locality.Locality, features []*feature.PointFeature, loaded bool) []notification {

	if l != nil && s.isSelected(l.Id) {
		return nil
	}

	s.marker.OnLocalitySelected(l)

	if l == nil {
		s.form.Locality = nil
	} else {

		s.form.Locality = &scope.Locality{
			Id:           l.Id,
			Name:         l.Name,
			TownId:       l.TownId,
			DepartmentId: l.DepartmentId,
		}

		if l.TownId != "" {
			s.form.Town = &scope.Town{
				Id:           l.TownId,
				Name:         l.TownName,
				DepartmentId: l.DepartmentId,
			}
		}

		if l.DepartmentId != "" {
			s.form.Department = &scope.Department{
				Id:   l.DepartmentId,
				Code: l.DepartmentCode,
			}
		}
	}

	cmd := s.evaluateScope(ctx, features, loaded)

	// A fit to the new locality already brings its coordinate into view.

	if cmd.Action == viewport.ActionNone {
		s.centerCoordinate(ctx)
	}

	return s.coordinateNotifications(true)
}

// evaluateScope resolves the scope from the form and runs the edge-triggered scope path. The
// transition is only recorded once it could be evaluated against a camera and loaded features.
func (s *Session) evaluateScope(ctx context.Context, features []*feature.PointFeature, loaded bool) viewport.Command {

	current := scope.Resolve(s.form)
	s.scope = current

	logger := slog.Default()
	logger = logger.With("scope", current.String())

	if s.camera == nil {
		logger.Debug("Defer scope evaluation until the map has loaded")
		return viewport.None
	}

	previous, ok := s.reconciler.Previous()

	if ok && previous == current {
		return viewport.None
	}

	if !loaded {
		logger.Debug("Defer scope evaluation until features are loaded")
		return viewport.None
	}

	b := shape.Build(features, current)
	rect := s.camera.Bounds()

	cmd := s.reconciler.Update(b, rect, current)
	s.apply(ctx, cmd)

	return cmd
}

func (s *Session) centerCoordinate(ctx context.Context) {

	if s.camera == nil {
		return
	}

	pt, ok := s.marker.Coordinate()

	if !ok {
		return
	}

	cmd := s.reconciler.Center(pt, s.camera.Bounds())
	s.apply(ctx, cmd)
}

func (s *Session) apply(ctx context.Context, cmd viewport.Command) {

	if cmd.Action == viewport.ActionNone {
		return
	}

	err := viewport.Apply(ctx, s.camera, cmd)

	if err != nil {
		slog.Error("Failed to move camera", "action", cmd.Action, "error", err)
		return
	}

	s.options.Metrics.IncCameraCommand(string(cmd.Action))
}

func (s *Session) observation() Observation {

	obs := Observation{
		IsCustomized: s.marker.IsCustomized(),
	}

	pt, ok := s.marker.Coordinate()

	if ok {
		obs.Coordinate = &pt
	}

	return obs
}

func (s *Session) coordinateNotifications(locality_changed bool) []notification {

	pending := make([]notification, 0, 2)

	if locality_changed && s.options.OnLocalityChange != nil {
		l := s.marker.Selected()
		cb := s.options.OnLocalityChange
		pending = append(pending, func() { cb(l) })
	}

	if s.options.OnCoordinateChange != nil {
		obs := s.observation()
		cb := s.options.OnCoordinateChange
		pending = append(pending, func() { cb(obs) })
	}

	return pending
}

func (s *Session) notify(pending ...notification) {

	for _, n := range pending {
		n()
	}
}

func (s *Session) selectedId() string {

	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.marker.Selected()

	if l == nil || !s.isSelected(l.Id) {
		return ""
	}

	return l.Id
}

func (s *Session) onClickSelect(ctx context.Context, l *locality.Locality) {

	slog.Debug("Select locality from map", "id", l.Id)
	s.SelectLocality(ctx, l)
}

func (s *Session) onClickError(err error) {

	if s.options.OnError != nil {
		s.options.OnError(fmt.Errorf("Failed to select locality, %w", err))
		return
	}

	slog.Error("Failed to select locality", "error", err)
}

func findLocality(features []*feature.PointFeature, id string) *locality.Locality {

	for _, f := range features {

		if f.Id != id {
			continue
		}

		l := &locality.Locality{
			Id:             f.Id,
			Name:           f.Name,
			TownId:         f.TownId,
			TownName:       f.TownName,
			DepartmentId:   f.DepartmentId,
			DepartmentCode: f.DepartmentCode,
			Latitude:       f.Latitude,
			Longitude:      f.Longitude,
		}

		return l
	}

	return nil
}
