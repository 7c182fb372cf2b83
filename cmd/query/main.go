// query is a command-line tool to derive the bounding shape and camera command for a set of
// form values, emitting the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/fieldnotes/go-locality-picker/feature"
	"github.com/fieldnotes/go-locality-picker/scope"
	"github.com/fieldnotes/go-locality-picker/shape"
	_ "github.com/fieldnotes/go-locality-picker/sqlite"
	"github.com/fieldnotes/go-locality-picker/viewport"
	"github.com/joho/godotenv"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	"github.com/sfomuseum/go-flags/flagset"
)

var features_uri string
var department_id string
var town_id string
var locality_id string
var str_viewport string
var viewport_config string
var with_wkt bool
var env_file string

type result struct {
	Scope   string            `json:"scope"`
	Shape   *geojson.Feature  `json:"shape,omitempty"`
	WKT     string            `json:"wkt,omitempty"`
	Command *viewport.Command `json:"command,omitempty"`
}

func main() {

	fs := flagset.NewFlagSet("query")

	desc_features := fmt.Sprintf("A valid feature source URI. Valid schemes are: %s", strings.Join(feature.SourceSchemes(), ", "))
	fs.StringVar(&features_uri, "features-uri", "", desc_features)

	fs.StringVar(&department_id, "department", "", "The id of the department form field.")
	fs.StringVar(&town_id, "town", "", "The id of the town form field.")
	fs.StringVar(&locality_id, "locality", "", "The id of the locality form field.")
	fs.StringVar(&str_viewport, "viewport", "", "An optional 'minx,miny,maxx,maxy' visible map rectangle. If present the camera command for the scope is derived too.")
	fs.StringVar(&viewport_config, "viewport-config", "", "An optional YAML file of camera animation options (padding, max_zoom, center_zoom, duration).")
	fs.BoolVar(&with_wkt, "with-wkt", false, "Include the bounding shape encoded as WKT.")
	fs.StringVar(&env_file, "env-file", "", "An optional .env file to load before flags are assigned from PICKER_ environment variables.")

	flagset.Parse(fs)

	if env_file != "" {

		err := godotenv.Load(env_file)

		if err != nil {
			slog.Error("Failed to load env file", "path", env_file, "error", err)
			os.Exit(1)
		}
	}

	err := flagset.SetFlagsFromEnvVars(fs, "PICKER")

	if err != nil {
		slog.Error("Failed to set flags from environment variables", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	store, err := feature.NewStore(ctx, features_uri)

	if err != nil {
		slog.Error("Failed to create feature store", "error", err)
		os.Exit(1)
	}

	fc, err := store.Load(ctx)

	if err != nil {
		slog.Error("Failed to load features", "error", err)
		os.Exit(1)
	}

	var fs_state scope.FormState

	if department_id != "" {
		fs_state.Department = &scope.Department{Id: department_id}
	}

	if town_id != "" {
		fs_state.Town = &scope.Town{Id: town_id}
	}

	if locality_id != "" {
		fs_state.Locality = &scope.Locality{Id: locality_id}
	}

	current := scope.Resolve(fs_state)
	b := shape.Build(fc.Features, current)

	r := result{
		Scope: current.String(),
	}

	if b != nil {
		f := geojson.NewFeature(b.Polygon)
		f.Properties["kind"] = b.Kind
		f.Properties["count"] = b.Count
		r.Shape = f

		if with_wkt {
			r.WKT = wkt.MarshalString(b.Polygon)
		}
	}

	if str_viewport != "" {

		rect, err := parseBound(str_viewport)

		if err != nil {
			slog.Error("Invalid -viewport flag", "error", err)
			os.Exit(1)
		}

		opts := viewport.DefaultOptions()

		if viewport_config != "" {

			opts, err = viewport.LoadOptions(viewport_config)

			if err != nil {
				slog.Error("Failed to load viewport options", "error", err)
				os.Exit(1)
			}
		}

		cmd := viewport.Reconcile(b, rect, nil, current, opts)
		r.Command = &cmd
	}

	enc := json.NewEncoder(os.Stdout)
	err = enc.Encode(r)

	if err != nil {
		slog.Error("Failed to encode result", "error", err)
		os.Exit(1)
	}
}

func parseBound(str string) (orb.Bound, error) {

	parts := strings.Split(str, ",")

	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("Expected four comma-separated values")
	}

	coords := make([]float64, 4)

	for i, p := range parts {

		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)

		if err != nil {
			return orb.Bound{}, fmt.Errorf("Failed to parse '%s', %w", p, err)
		}

		coords[i] = v
	}

	b := orb.Bound{
		Min: orb.Point{coords[0], coords[1]},
		Max: orb.Point{coords[2], coords[3]},
	}

	return b, nil
}
