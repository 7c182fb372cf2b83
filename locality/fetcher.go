package locality

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/whosonfirst/go-reader"
)

// ErrNotFound is returned (wrapped) when a locality does not exist.
var ErrNotFound = errors.New("Locality not found")

// Fetcher retrieves a single locality record by id.
type Fetcher interface {
	Fetch(context.Context, string) (*Locality, error)
}

// NewFetcher returns a caching Fetcher for 'uri'. For http:// and https:// URIs the record
// for id N is fetched from '{uri}/N'. Any other URI is handed to reader.NewReader and records
// are read using the id as key.
func NewFetcher(ctx context.Context, uri string) (Fetcher, error) {

	u, err := url.Parse(uri)

	if err != nil {
		return nil, fmt.Errorf("Failed to parse URI, %w", err)
	}

	var fetcher Fetcher

	switch u.Scheme {
	case "http", "https":
		fetcher = NewHTTPFetcher(uri)
	default:

		r, err := reader.NewReader(ctx, uri)

		if err != nil {
			return nil, fmt.Errorf("Failed to create reader, %w", err)
		}

		fetcher = NewReaderFetcher(r)
	}

	return NewCachedFetcher(fetcher), nil
}

// HTTPFetcher fetches locality records from a REST endpoint.
type HTTPFetcher struct {
	Fetcher
	client *http.Client
	base   string
}

func NewHTTPFetcher(base string) *HTTPFetcher {

	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	f := &HTTPFetcher{
		client: client,
		base:   strings.TrimRight(base, "/"),
	}

	return f
}

func (f *HTTPFetcher) Fetch(ctx context.Context, id string) (*Locality, error) {

	uri := fmt.Sprintf("%s/%s", f.base, url.PathEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)

	if err != nil {
		return nil, fmt.Errorf("Failed to create request, %w", err)
	}

	req.Header.Set("Accept", "application/json")

	rsp, err := f.client.Do(req)

	if err != nil {
		return nil, fmt.Errorf("Failed to fetch locality %s, %w", id, err)
	}

	defer rsp.Body.Close()

	if rsp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w, %s", ErrNotFound, id)
	}

	if rsp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Failed to fetch locality %s, unexpected status %d", id, rsp.StatusCode)
	}

	body, err := io.ReadAll(rsp.Body)

	if err != nil {
		return nil, fmt.Errorf("Failed to read response for locality %s, %w", id, err)
	}

	return ParseLocality(body)
}

// ReaderFetcher reads locality records from a whosonfirst/go-reader Reader.
type ReaderFetcher struct {
	Fetcher
	reader reader.Reader
}

func NewReaderFetcher(r reader.Reader) *ReaderFetcher {

	f := &ReaderFetcher{
		reader: r,
	}

	return f
}

func (f *ReaderFetcher) Fetch(ctx context.Context, id string) (*Locality, error) {

	fh, err := f.reader.Read(ctx, id)

	if err != nil {
		return nil, fmt.Errorf("Failed to read locality %s, %w", id, err)
	}

	defer fh.Close()

	body, err := io.ReadAll(fh)

	if err != nil {
		return nil, fmt.Errorf("Failed to read body for locality %s, %w", id, err)
	}

	return ParseLocality(body)
}

// CachedFetcher keeps fetched records for a few minutes.
type CachedFetcher struct {
	Fetcher
	fetcher Fetcher
	gocache *gocache.Cache
}

func NewCachedFetcher(fetcher Fetcher) *CachedFetcher {

	expires := 5 * time.Minute
	cleanup := 30 * time.Minute

	gc := gocache.New(expires, cleanup)

	f := &CachedFetcher{
		fetcher: fetcher,
		gocache: gc,
	}

	return f
}

func (f *CachedFetcher) Fetch(ctx context.Context, id string) (*Locality, error) {

	v, ok := f.gocache.Get(id)

	if ok {
		return v.(*Locality), nil
	}

	l, err := f.fetcher.Fetch(ctx, id)

	if err != nil {
		return nil, err
	}

	slog.Debug("Fetched locality", "id", id, "name", l.Name)

	f.gocache.Set(id, l, gocache.DefaultExpiration)
	return l, nil
}
