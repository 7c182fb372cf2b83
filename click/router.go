// Package click routes clicks and pointer movement on the locality point layer. A click on a
// cluster zooms the camera in far enough to split it; a click on a single point selects that
// locality. Lookups run asynchronously and only the most recent click is allowed to take effect.
package click

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fieldnotes/go-locality-picker/locality"
	"github.com/fieldnotes/go-locality-picker/metrics"
	"github.com/fieldnotes/go-locality-picker/viewport"
	"github.com/paulmach/orb"
)

// RenderedFeature is a feature of the point layer as reported by the map engine under the cursor.
type RenderedFeature struct {
	// Id is the locality id of a single point. It is empty for clusters.
	Id         string    `json:"id,omitempty"`
	Name       string    `json:"name,omitempty"`
	IsCluster  bool      `json:"cluster"`
	ClusterId  int64     `json:"cluster_id,omitempty"`
	PointCount int       `json:"point_count,omitempty"`
	Point      orb.Point `json:"point"`
}

// ClusterSource resolves the zoom level at which a cluster splits into its children.
type ClusterSource interface {
	ClusterExpansionZoom(context.Context, int64) (float64, error)
}

// ErrNoFetcher is reported when a point is clicked but no locality fetcher is configured.
var ErrNoFetcher = errors.New("No locality fetcher configured")

type RouterOptions struct {
	Clusters ClusterSource
	Fetcher  locality.Fetcher
	// Duration of the camera animation when expanding a cluster.
	Duration time.Duration
	Metrics  *metrics.Metrics
	// Selected returns the id of the currently selected locality, or an empty string.
	Selected func() string
	// OnSelect is invoked with a freshly fetched locality.
	OnSelect func(context.Context, *locality.Locality)
	// OnError is invoked when a locality lookup fails. The selection is left unchanged.
	OnError func(error)
}

type Router struct {
	options *RouterOptions
	camera  viewport.Camera
	mu      *sync.RWMutex
	seq     atomic.Uint64
	hovered atomic.Pointer[RenderedFeature]
	wg      *sync.WaitGroup
}

func NewRouter(opts *RouterOptions) *Router {

	if opts == nil {
		opts = &RouterOptions{}
	}

	if opts.Duration == 0 {
		opts.Duration = time.Second
	}

	r := &Router{
		options: opts,
		mu:      new(sync.RWMutex),
		wg:      new(sync.WaitGroup),
	}

	return r
}

// SetCamera attaches the map camera cluster expansions are applied to.
func (r *Router) SetCamera(camera viewport.Camera) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.camera = camera
}

// OnClick handles a click on 'f'. Every click supersedes any lookup still in flight.
func (r *Router) OnClick(ctx context.Context, f *RenderedFeature) {

	if f == nil {
		return
	}

	request_id := r.seq.Add(1)

	logger := slog.Default()
	logger = logger.With("request id", request_id)

	if f.IsCluster {

		r.options.Metrics.IncClick("cluster")

		r.wg.Add(1)

		go func() {
			defer r.wg.Done()
			r.expandCluster(ctx, request_id, f)
		}()

		return
	}

	if f.Id == "" || f.Id == r.selected() {
		logger.Debug("Ignore click on selected locality", "id", f.Id)
		r.options.Metrics.IncClick("ignored")
		return
	}

	r.options.Metrics.IncClick("point")

	r.wg.Add(1)

	go func() {
		defer r.wg.Done()
		r.selectPoint(ctx, request_id, f.Id)
	}()
}

// OnMouseMove updates the hovered point from the features rendered under the cursor. Only the
// topmost feature is consulted.
func (r *Router) OnMouseMove(features []*RenderedFeature) {

	if len(features) == 0 || features[0] == nil || features[0].IsCluster {
		r.hovered.Store(nil)
		return
	}

	f := *features[0]
	r.hovered.Store(&f)
}

// Hovered returns the point currently under the cursor, or nil.
func (r *Router) Hovered() *RenderedFeature {
	return r.hovered.Load()
}

// Wait blocks until every outstanding lookup has completed.
func (r *Router) Wait() {
	r.wg.Wait()
}

func (r *Router) isLatest(request_id uint64) bool {
	return r.seq.Load() == request_id
}

func (r *Router) selected() string {

	if r.options.Selected == nil {
		return ""
	}

	return r.options.Selected()
}

func (r *Router) expandCluster(ctx context.Context, request_id uint64, f *RenderedFeature) {

	logger := slog.Default()
	logger = logger.With("request id", request_id)
	logger = logger.With("cluster id", f.ClusterId)

	if r.options.Clusters == nil {
		logger.Warn("No cluster source configured")
		return
	}

	zoom, err := r.options.Clusters.ClusterExpansionZoom(ctx, f.ClusterId)

	if err != nil {
		logger.Error("Failed to derive cluster expansion zoom", "error", err)
		return
	}

	if !r.isLatest(request_id) {
		logger.Debug("Drop stale cluster expansion")
		r.options.Metrics.IncStaleResponse()
		return
	}

	r.mu.RLock()
	camera := r.camera
	r.mu.RUnlock()

	cmd := viewport.Command{
		Action:   viewport.ActionCenter,
		Center:   f.Point,
		Zoom:     zoom,
		Duration: r.options.Duration,
	}

	err = viewport.Apply(ctx, camera, cmd)

	if err != nil {
		logger.Error("Failed to expand cluster", "error", err)
		return
	}

	r.options.Metrics.IncCameraCommand(string(cmd.Action))
}

func (r *Router) selectPoint(ctx context.Context, request_id uint64, id string) {

	logger := slog.Default()
	logger = logger.With("request id", request_id)
	logger = logger.With("locality id", id)

	if r.options.Fetcher == nil {
		r.fail(ErrNoFetcher)
		return
	}

	l, err := r.options.Fetcher.Fetch(ctx, id)

	if err != nil {

		logger.Error("Failed to fetch locality", "error", err)
		r.options.Metrics.IncFetchFailure()

		if r.isLatest(request_id) {
			r.fail(fmt.Errorf("Failed to fetch locality %s, %w", id, err))
		}

		return
	}

	if !r.isLatest(request_id) {
		logger.Debug("Drop stale locality")
		r.options.Metrics.IncStaleResponse()
		return
	}

	if r.options.OnSelect != nil {
		r.options.OnSelect(ctx, l)
	}
}

func (r *Router) fail(err error) {

	if r.options.OnError != nil {
		r.options.OnError(err)
	}
}
