// Package www provides the HTTP endpoints consumed by the locality picker: the locality feature
// collection, locality details by id, the point-layer clusters and Prometheus metrics.
package www

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fieldnotes/go-locality-picker/feature"
	"github.com/fieldnotes/go-locality-picker/locality"
	"github.com/fieldnotes/go-locality-picker/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Options struct {
	Store   *feature.Store
	Fetcher locality.Fetcher
	Metrics *metrics.Metrics
	// MaxAge is advertised in the Cache-Control header of the feature collection.
	MaxAge time.Duration
	// MaxZoom is the last zoom level at which points are clustered.
	MaxZoom int
}

// NewRouter returns the http.Handler serving every endpoint.
func NewRouter(opts *Options) (http.Handler, error) {

	if opts == nil || opts.Store == nil {
		return nil, fmt.Errorf("Missing feature store")
	}

	features_handler, err := FeatureCollectionHandler(opts)

	if err != nil {
		return nil, fmt.Errorf("Failed to create feature collection handler, %w", err)
	}

	locality_handler, err := LocalityHandler(opts)

	if err != nil {
		return nil, fmt.Errorf("Failed to create locality handler, %w", err)
	}

	clusters_handler, err := ClustersHandler(opts)

	if err != nil {
		return nil, fmt.Errorf("Failed to create clusters handler, %w", err)
	}

	expansion_handler, err := ClusterExpansionZoomHandler(opts)

	if err != nil {
		return nil, fmt.Errorf("Failed to create cluster expansion handler, %w", err)
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog(opts.Metrics))

	r.Method(http.MethodGet, "/localities.geojson", features_handler)
	r.Method(http.MethodGet, "/localities/{id}", locality_handler)
	r.Method(http.MethodGet, "/clusters", clusters_handler)
	r.Method(http.MethodGet, "/clusters/{id}/expansion-zoom", expansion_handler)
	r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())

	return r, nil
}

func accessLog(m *metrics.Metrics) func(http.Handler) http.Handler {

	return func(next http.Handler) http.Handler {

		fn := func(w http.ResponseWriter, r *http.Request) {

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()

			if status == 0 {
				status = http.StatusOK
			}

			route := r.URL.Path

			rctx := chi.RouteContext(r.Context())

			if rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}

			m.ObserveHTTPRequest(r.Method, route, status, time.Since(start))

			slog.Debug("HTTP request",
				"request id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start))
		}

		return http.HandlerFunc(fn)
	}
}
