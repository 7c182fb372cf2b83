// export is a command-line tool to write the locality collection, and optionally every locality
// record, to a whosonfirst/go-writer target.
package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fieldnotes/go-locality-picker/feature"
	"github.com/fieldnotes/go-locality-picker/locality"
	_ "github.com/fieldnotes/go-locality-picker/sqlite"
	"github.com/sfomuseum/go-flags/flagset"
	"github.com/whosonfirst/go-writer/v3"
)

var features_uri string
var localities_uri string
var writer_uri string
var with_records bool
var verbose bool

func main() {

	fs := flagset.NewFlagSet("export")

	desc_features := fmt.Sprintf("A valid feature source URI. Valid schemes are: %s", strings.Join(feature.SourceSchemes(), ", "))
	fs.StringVar(&features_uri, "features-uri", "", desc_features)

	fs.StringVar(&localities_uri, "localities-uri", "", "A URI used to fetch individual locality records. If empty the value of -features-uri is used.")
	fs.StringVar(&writer_uri, "writer-uri", "stdout://", "A valid whosonfirst/go-writer URI.")
	fs.BoolVar(&with_records, "with-records", false, "Also write each locality record as '{ID}.json'.")
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

	if localities_uri == "" {
		localities_uri = features_uri
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

	fc, err := source.Load(ctx)

	if err != nil {
		slog.Error("Failed to load features", "error", err)
		os.Exit(1)
	}

	enc, err := fc.ToGeoJSON().MarshalJSON()

	if err != nil {
		slog.Error("Failed to marshal features", "error", err)
		os.Exit(1)
	}

	_, err = wr.Write(ctx, "localities.geojson", bytes.NewReader(enc))

	if err != nil {
		slog.Error("Failed to write features", "error", err)
		os.Exit(1)
	}

	if with_records {

		fetcher, err := locality.NewFetcher(ctx, localities_uri)

		if err != nil {
			slog.Error("Failed to create locality fetcher", "error", err)
			os.Exit(1)
		}

		err = exportRecords(ctx, wr, fetcher, fc)

		if err != nil {
			slog.Error("Failed to export locality records", "error", err)
			os.Exit(1)
		}
	}

	err = wr.Close(ctx)

	if err != nil {
		slog.Error("Failed to close writer", "error", err)
		os.Exit(1)
	}
}

func exportRecords(ctx context.Context, wr writer.Writer, fetcher locality.Fetcher, fc *feature.FeatureCollection) error {

	for _, f := range fc.Features {

		l, err := fetcher.Fetch(ctx, f.Id)

		if err != nil {
			return fmt.Errorf("Failed to fetch locality %s, %w", f.Id, err)
		}

		body, err := locality.MarshalLocality(l)

		if err != nil {
			return fmt.Errorf("Failed to marshal locality %s, %w", f.Id, err)
		}

		_, err = wr.Write(ctx, fmt.Sprintf("%s.json", f.Id), bytes.NewReader(body))

		if err != nil {
			return fmt.Errorf("Failed to write locality %s, %w", f.Id, err)
		}

		slog.Debug("Exported locality", "id", f.Id)
	}

	return nil
}
