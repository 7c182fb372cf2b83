package www

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/fieldnotes/go-locality-picker/cluster"
	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ClustersHandler serves the rendered point layer for '?bbox=minx,miny,maxx,maxy&zoom=z' as a
// GeoJSON FeatureCollection. Clusters carry "cluster", "cluster_id" and "point_count" properties.
func ClustersHandler(opts *Options) (http.Handler, error) {

	fn := func(rsp http.ResponseWriter, req *http.Request) {

		logger := slog.Default()
		logger = logger.With("request", req.URL)

		q := req.URL.Query()

		b, err := parseBBox(q.Get("bbox"))

		if err != nil {
			http.Error(rsp, err.Error(), http.StatusBadRequest)
			return
		}

		zoom, err := strconv.ParseFloat(q.Get("zoom"), 64)

		if err != nil {
			http.Error(rsp, "Invalid zoom parameter", http.StatusBadRequest)
			return
		}

		features, err := loadFeatures(req, opts)

		if err != nil {
			logger.Error("Failed to load features", "error", err)
			http.Error(rsp, "Features unavailable", http.StatusServiceUnavailable)
			return
		}

		idx := cluster.NewIndex(features, &cluster.Options{MaxZoom: opts.MaxZoom})

		fc := geojson.NewFeatureCollection()

		for _, r := range idx.Clusters(b, zoom) {

			f := geojson.NewFeature(r.Point)

			if r.IsCluster {
				f.Properties["cluster"] = true
				f.Properties["cluster_id"] = r.ClusterId
				f.Properties["point_count"] = r.PointCount
			} else {
				f.ID = r.Id
				f.Properties["id"] = r.Id
				f.Properties["name"] = r.Name
			}

			fc.Append(f)
		}

		enc, err := fc.MarshalJSON()

		if err != nil {
			logger.Error("Failed to marshal clusters", "error", err)
			http.Error(rsp, "Internal server error", http.StatusInternalServerError)
			return
		}

		rsp.Header().Set("Content-Type", "application/geo+json")
		rsp.Write(enc)
	}

	return http.HandlerFunc(fn), nil
}

// ClusterExpansionZoomHandler serves the zoom level at which the cluster identified by the {id}
// route parameter splits.
func ClusterExpansionZoomHandler(opts *Options) (http.Handler, error) {

	fn := func(rsp http.ResponseWriter, req *http.Request) {

		ctx := req.Context()

		logger := slog.Default()
		logger = logger.With("request", req.URL)

		id, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)

		if err != nil {
			http.Error(rsp, "Invalid cluster id", http.StatusBadRequest)
			return
		}

		features, err := loadFeatures(req, opts)

		if err != nil {
			logger.Error("Failed to load features", "error", err)
			http.Error(rsp, "Features unavailable", http.StatusServiceUnavailable)
			return
		}

		idx := cluster.NewIndex(features, &cluster.Options{MaxZoom: opts.MaxZoom})

		zoom, err := idx.ClusterExpansionZoom(ctx, id)

		if errors.Is(err, cluster.ErrUnknownCluster) {
			http.Error(rsp, "Not found", http.StatusNotFound)
			return
		}

		if err != nil {
			logger.Error("Failed to derive expansion zoom", "error", err)
			http.Error(rsp, "Internal server error", http.StatusInternalServerError)
			return
		}

		out := map[string]any{
			"cluster_id": id,
			"zoom":       zoom,
		}

		rsp.Header().Set("Content-Type", "application/json")

		enc := json.NewEncoder(rsp)
		err = enc.Encode(out)

		if err != nil {
			logger.Error("Failed to encode response", "error", err)
		}
	}

	return http.HandlerFunc(fn), nil
}

func parseBBox(str_bbox string) (orb.Bound, error) {

	parts := strings.Split(str_bbox, ",")

	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("Invalid bbox parameter")
	}

	coords := make([]float64, 4)

	for i, p := range parts {

		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)

		if err != nil {
			return orb.Bound{}, fmt.Errorf("Invalid bbox parameter, %w", err)
		}

		coords[i] = v
	}

	b := orb.Bound{
		Min: orb.Point{coords[0], coords[1]},
		Max: orb.Point{coords[2], coords[3]},
	}

	return b, nil
}
