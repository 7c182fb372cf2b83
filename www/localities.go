package www

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/fieldnotes/go-locality-picker/feature"
	"github.com/fieldnotes/go-locality-picker/locality"
	"github.com/go-chi/chi/v5"
)

// FeatureCollectionHandler serves every known locality as a GeoJSON FeatureCollection.
func FeatureCollectionHandler(opts *Options) (http.Handler, error) {

	fn := func(rsp http.ResponseWriter, req *http.Request) {

		ctx := req.Context()

		logger := slog.Default()
		logger = logger.With("request", req.URL)

		fc, err := opts.Store.Load(ctx)

		opts.Metrics.IncFeatureLoad(err == nil)

		if err != nil {
			logger.Error("Failed to load features", "error", err)
			http.Error(rsp, "Features unavailable", http.StatusServiceUnavailable)
			return
		}

		enc, err := fc.ToGeoJSON().MarshalJSON()

		if err != nil {
			logger.Error("Failed to marshal features", "error", err)
			http.Error(rsp, "Internal server error", http.StatusInternalServerError)
			return
		}

		if opts.MaxAge > 0 {
			rsp.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(opts.MaxAge.Seconds())))
		}

		rsp.Header().Set("Content-Type", "application/geo+json")
		rsp.Write(enc)
	}

	return http.HandlerFunc(fn), nil
}

// LocalityHandler serves the full record of the locality identified by the {id} route parameter.
func LocalityHandler(opts *Options) (http.Handler, error) {

	if opts.Fetcher == nil {
		return nil, fmt.Errorf("Missing locality fetcher")
	}

	fn := func(rsp http.ResponseWriter, req *http.Request) {

		ctx := req.Context()

		id := chi.URLParam(req, "id")

		logger := slog.Default()
		logger = logger.With("id", id)

		if id == "" {
			http.Error(rsp, "Missing id", http.StatusBadRequest)
			return
		}

		l, err := opts.Fetcher.Fetch(ctx, id)

		if errors.Is(err, locality.ErrNotFound) {
			http.Error(rsp, "Not found", http.StatusNotFound)
			return
		}

		if err != nil {
			logger.Error("Failed to fetch locality", "error", err)
			http.Error(rsp, "Bad gateway", http.StatusBadGateway)
			return
		}

		enc, err := locality.MarshalLocality(l)

		if err != nil {
			logger.Error("Failed to marshal locality", "error", err)
			http.Error(rsp, "Internal server error", http.StatusInternalServerError)
			return
		}

		rsp.Header().Set("Content-Type", "application/json")
		rsp.Write(enc)
	}

	return http.HandlerFunc(fn), nil
}

func loadFeatures(req *http.Request, opts *Options) ([]*feature.PointFeature, error) {

	fc, err := opts.Store.Load(req.Context())

	opts.Metrics.IncFeatureLoad(err == nil)

	if err != nil {
		return nil, err
	}

	return fc.Features, nil
}
