// server is a command-line tool to serve the locality collection, locality records and
// point-layer clusters consumed by the locality picker over HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aaronland/go-http-server"
	"github.com/fieldnotes/go-locality-picker/cluster"
	"github.com/fieldnotes/go-locality-picker/feature"
	"github.com/fieldnotes/go-locality-picker/locality"
	"github.com/fieldnotes/go-locality-picker/metrics"
	_ "github.com/fieldnotes/go-locality-picker/sqlite"
	"github.com/fieldnotes/go-locality-picker/www"
	"github.com/joho/godotenv"
	"github.com/sfomuseum/go-flags/flagset"
)

var server_uri string
var features_uri string
var localities_uri string
var max_age int
var max_zoom int
var verbose bool
var env_file string

func main() {

	fs := flagset.NewFlagSet("server")

	fs.StringVar(&server_uri, "server-uri", "http://localhost:8080", "A valid aaronland/go-http-server URI.")

	desc_features := fmt.Sprintf("A valid feature source URI. Valid schemes are: %s", strings.Join(feature.SourceSchemes(), ", "))
	fs.StringVar(&features_uri, "features-uri", "", desc_features)

	fs.StringVar(&localities_uri, "localities-uri", "", "A URI used to fetch individual locality records. Either a base http(s):// URI or a valid whosonfirst/go-reader URI. Required unless -features-uri is a sqlite:// URI, in which case it defaults to -features-uri.")
	fs.IntVar(&max_age, "max-age", 3600, "The number of seconds clients may cache the locality collection.")
	fs.IntVar(&max_zoom, "max-zoom", cluster.DefaultMaxZoom, "The last zoom level at which points are clustered.")
	fs.BoolVar(&verbose, "verbose", false, "Enable verbose (debug) logging.")
	fs.StringVar(&env_file, "env-file", ".env", "A .env file to load, if present, before flags are assigned from PICKER_ environment variables.")

	flagset.Parse(fs)

	if env_file != "" {

		_, err := os.Stat(env_file)

		if err == nil {

			err = godotenv.Load(env_file)

			if err != nil {
				slog.Error("Failed to load env file", "path", env_file, "error", err)
				os.Exit(1)
			}
		}
	}

	err := flagset.SetFlagsFromEnvVars(fs, "PICKER")

	if err != nil {
		slog.Error("Failed to set flags from environment variables", "error", err)
		os.Exit(1)
	}

	if verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
		slog.Debug("Verbose logging enabled")
	}

	if features_uri == "" {
		slog.Error("Missing -features-uri flag")
		os.Exit(1)
	}

	localities_uri, err = deriveLocalitiesURI(features_uri, localities_uri)

	if err != nil {
		slog.Error("Invalid -localities-uri flag", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	store, err := feature.NewStore(ctx, features_uri)

	if err != nil {
		slog.Error("Failed to create feature store", "error", err)
		os.Exit(1)
	}

	fetcher, err := locality.NewFetcher(ctx, localities_uri)

	if err != nil {
		slog.Error("Failed to create locality fetcher", "error", err)
		os.Exit(1)
	}

	opts := &www.Options{
		Store:   store,
		Fetcher: fetcher,
		Metrics: metrics.New(),
		MaxAge:  time.Duration(max_age) * time.Second,
		MaxZoom: max_zoom,
	}

	handler, err := www.NewRouter(opts)

	if err != nil {
		slog.Error("Failed to create router", "error", err)
		os.Exit(1)
	}

	s, err := server.NewServer(ctx, server_uri)

	if err != nil {
		slog.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	slog.Info("Listening for requests", "address", s.Address())

	err = s.ListenAndServe(ctx, handler)

	if err != nil {
		slog.Error("Failed to serve requests", "error", err)
		os.Exit(1)
	}
}

// deriveLocalitiesURI returns 'localities_uri' or, if empty, 'features_uri' when that is a SQLite
// database, which serves both the collection and individual records.
func deriveLocalitiesURI(features_uri string, localities_uri string) (string, error) {

	if localities_uri != "" {
		return localities_uri, nil
	}

	u, err := url.Parse(features_uri)

	if err != nil {
		return "", fmt.Errorf("Failed to parse features URI, %w", err)
	}

	if u.Scheme != "sqlite" {
		return "", fmt.Errorf("Missing localities URI, required unless the features URI is sqlite://")
	}

	return features_uri, nil
}
