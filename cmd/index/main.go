// index is a command-line tool to copy the localities of a feature source into a SQLite database
// (or any other registered whosonfirst/go-writer target).
package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fieldnotes/go-locality-picker/feature"
	_ "github.com/fieldnotes/go-locality-picker/sqlite"
	"github.com/sfomuseum/go-flags/flagset"
	"github.com/whosonfirst/go-writer/v3"
)

var features_uri string
var writer_uri string
var verbose bool

func main() {

	fs := flagset.NewFlagSet("index")

	desc_features := fmt.Sprintf("A valid feature source URI. Valid schemes are: %s", strings.Join(feature.SourceSchemes(), ", "))
	fs.StringVar(&features_uri, "features-uri", "", desc_features)

	fs.StringVar(&writer_uri, "writer-uri", "", "A valid whosonfirst/go-writer URI, for example 'sqlite://?dsn=localities.db'.")
	fs.BoolVar(&verbose, "verbose", false, "Enable verbose (debug) logging.")

	flagset.Parse(fs)

	err := flagset.SetFlagsFromEnvVars(fs, "PICKER")

	if err != nil {
		slog.Error("Failed to set flags from environment variables", "error", err)
		os.Exit(1)
	}

	if verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	ctx := context.Background()

	source, err := feature.NewSource(ctx, features_uri)

	if err != nil {
		slog.Error("Failed to create feature source", "error", err)
		os.Exit(1)
	}

	wr, err := writer.NewWriter(ctx, writer_uri)

	if err != nil {
		slog.Error("Failed to create writer", "error", err)
		os.Exit(1)
	}

	t1 := time.Now()

	fc, err := source.Load(ctx)

	if err != nil {
		slog.Error("Failed to load features", "error", err)
		os.Exit(1)
	}

	count, err := index(ctx, wr, fc)

	if err != nil {
		slog.Error("Failed to index features", "error", err)
		os.Exit(1)
	}

	err = wr.Close(ctx)

	if err != nil {
		slog.Error("Failed to close writer", "error", err)
		os.Exit(1)
	}

	slog.Info("Indexed localities", "count", count, "time", time.Since(t1))
}

func index(ctx context.Context, wr writer.Writer, fc *feature.FeatureCollection) (int, error) {

	count := 0

	for _, f := range fc.ToGeoJSON().Features {

		id := fmt.Sprintf("%v", f.ID)

		enc, err := f.MarshalJSON()

		if err != nil {
			return count, fmt.Errorf("Failed to marshal feature %s, %w", id, err)
		}

		_, err = wr.Write(ctx, id+".geojson", bytes.NewReader(enc))

		if err != nil {
			return count, fmt.Errorf("Failed to write feature %s, %w", id, err)
		}

		slog.Debug("Indexed locality", "id", id)
		count += 1
	}

	return count, nil
}
