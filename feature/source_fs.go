package feature

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"

	"github.com/whosonfirst/go-reader"
)

func init() {
	ctx := context.Background()
	RegisterSource(ctx, "fs", NewFSSource)
}

// FSSource loads a GeoJSON FeatureCollection from a local file, for example:
//
//	fs:///usr/local/data/localities.geojson
type FSSource struct {
	Source
	reader reader.Reader
	key    string
}

func NewFSSource(ctx context.Context, uri string) (Source, error) {

	u, err := url.Parse(uri)

	if err != nil {
		return nil, fmt.Errorf("Failed to parse URI, %w", err)
	}

	if u.Path == "" {
		return nil, fmt.Errorf("Missing path")
	}

	root := filepath.Dir(u.Path)
	key := filepath.Base(u.Path)

	reader_uri := fmt.Sprintf("fs://%s", root)

	r, err := reader.NewReader(ctx, reader_uri)

	if err != nil {
		return nil, fmt.Errorf("Failed to create reader for %s, %w", reader_uri, err)
	}

	s := &FSSource{
		reader: r,
		key:    key,
	}

	return s, nil
}

func (s *FSSource) Load(ctx context.Context) (*FeatureCollection, error) {

	fh, err := s.reader.Read(ctx, s.key)

	if err != nil {
		return nil, fmt.Errorf("Failed to read %s, %w", s.key, err)
	}

	defer fh.Close()

	body, err := io.ReadAll(fh)

	if err != nil {
		return nil, fmt.Errorf("Failed to read body for %s, %w", s.key, err)
	}

	return UnmarshalFeatureCollection(body)
}
