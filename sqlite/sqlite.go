package sqlite

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/fieldnotes/go-locality-picker/feature"
	"github.com/fieldnotes/go-locality-picker/locality"
	"github.com/whosonfirst/go-ioutil"
	"github.com/whosonfirst/go-reader"
	"github.com/whosonfirst/go-writer/v3"
)

func init() {

	ctx := context.Background()

	feature.RegisterSource(ctx, "sqlite", NewSQLiteSource)
	reader.RegisterReader(ctx, "sqlite", NewSQLiteReader)
	writer.RegisterWriter(ctx, "sqlite", NewSQLiteWriter)
}

func NewSQLiteSource(ctx context.Context, uri string) (feature.Source, error) {
	return NewSQLiteDatabase(ctx, uri)
}

func NewSQLiteReader(ctx context.Context, uri string) (reader.Reader, error) {
	return NewSQLiteDatabase(ctx, uri)
}

func NewSQLiteWriter(ctx context.Context, uri string) (writer.Writer, error) {
	return NewSQLiteDatabase(ctx, uri)
}

// whosonfirst/go-reader interface

// Read returns the locality record for 'key' encoded the same way the locality detail
// endpoint encodes it. 'key' is a locality id, optionally followed by a ".json" extension.
func (r *SQLiteDatabase) Read(ctx context.Context, key string) (io.ReadSeekCloser, error) {

	id := idFromKey(key)

	var body string

	c, ok := r.gocache.Get(id)

	if ok {
		body = c.(string)
	} else {

		l, err := r.Locality(ctx, id)

		if err != nil {
			return nil, err
		}

		enc, err := locality.MarshalLocality(l)

		if err != nil {
			return nil, fmt.Errorf("Failed to marshal locality %s, %w", id, err)
		}

		body = string(enc)
		r.gocache.Set(id, body, 0)
	}

	sr := strings.NewReader(body)
	fh, err := ioutil.NewReadSeekCloser(sr)

	if err != nil {
		return nil, fmt.Errorf("Failed to create ReadSeekCloser, %w", err)
	}

	return fh, nil
}

func (r *SQLiteDatabase) ReaderURI(ctx context.Context, key string) string {
	return key
}

// whosonfirst/go-writer interface

// Write indexes the locality GeoJSON Feature read from 'fh'. 'key' is ignored: the id is
// derived from the feature itself.
func (r *SQLiteDatabase) Write(ctx context.Context, key string, fh io.ReadSeeker) (int64, error) {

	body, err := io.ReadAll(fh)

	if err != nil {
		return 0, fmt.Errorf("Failed to read body for %s, %w", key, err)
	}

	err = r.IndexFeature(ctx, body)

	if err != nil {
		return 0, err
	}

	return int64(len(body)), nil
}

func (r *SQLiteDatabase) WriterURI(ctx context.Context, key string) string {
	return key
}

func (r *SQLiteDatabase) Flush(ctx context.Context) error {
	return nil
}

func (r *SQLiteDatabase) Close(ctx context.Context) error {
	return nil
}

func (r *SQLiteDatabase) SetLogger(ctx context.Context, logger *log.Logger) error {
	return nil
}

func idFromKey(key string) string {

	id := filepath.Base(key)
	id = strings.TrimSuffix(id, filepath.Ext(id))

	return id
}
