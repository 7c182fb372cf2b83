package feature

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

func init() {
	ctx := context.Background()
	RegisterSource(ctx, "http", NewHTTPSource)
	RegisterSource(ctx, "https", NewHTTPSource)
}

// HTTPSource loads a GeoJSON FeatureCollection from a remote endpoint.
type HTTPSource struct {
	Source
	client *http.Client
	uri    string
}

// NewHTTPSource returns a Source that fetches 'uri' with a plain GET request.
func NewHTTPSource(ctx context.Context, uri string) (Source, error) {

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	s := &HTTPSource{
		client: client,
		uri:    uri,
	}

	return s, nil
}

func (s *HTTPSource) Load(ctx context.Context) (*FeatureCollection, error) {

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.uri, nil)

	if err != nil {
		return nil, fmt.Errorf("Failed to create request, %w", err)
	}

	req.Header.Set("Accept", "application/geo+json, application/json")

	rsp, err := s.client.Do(req)

	if err != nil {
		return nil, fmt.Errorf("Failed to fetch %s, %w", s.uri, err)
	}

	defer rsp.Body.Close()

	if rsp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Failed to fetch %s, unexpected status %d", s.uri, rsp.StatusCode)
	}

	body, err := io.ReadAll(rsp.Body)

	if err != nil {
		return nil, fmt.Errorf("Failed to read response body, %w", err)
	}

	return UnmarshalFeatureCollection(body)
}
