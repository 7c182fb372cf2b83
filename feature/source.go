package feature

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/aaronland/go-roster"
)

// Source is anything that can produce the full set of locality features in one request.
type Source interface {
	Load(context.Context) (*FeatureCollection, error)
}

// SourceInitializationFunc is a function defined by individual Source packages and used to create
// an instance of that Source.
type SourceInitializationFunc func(ctx context.Context, uri string) (Source, error)

var source_roster roster.Roster

// RegisterSource registers 'scheme' as a key pointing to 'init_func' in an internal lookup table
// used to create new Source instances by the NewSource method.
func RegisterSource(ctx context.Context, scheme string, init_func SourceInitializationFunc) error {

	err := ensureSourceRoster()

	if err != nil {
		return err
	}

	return source_roster.Register(ctx, scheme, init_func)
}

func ensureSourceRoster() error {

	if source_roster == nil {

		r, err := roster.NewDefaultRoster()

		if err != nil {
			return fmt.Errorf("Failed to create source roster, %w", err)
		}

		source_roster = r
	}

	return nil
}

// NewSource returns a new Source instance configured by 'uri'. The value of 'uri' is parsed
// as a url.URL and its scheme is used as the key for a corresponding SourceInitializationFunc.
func NewSource(ctx context.Context, uri string) (Source, error) {

	u, err := url.Parse(uri)

	if err != nil {
		return nil, fmt.Errorf("Failed to parse URI, %w", err)
	}

	err = ensureSourceRoster()

	if err != nil {
		return nil, err
	}

	i, err := source_roster.Driver(ctx, u.Scheme)

	if err != nil {
		return nil, fmt.Errorf("Failed to find source for scheme '%s', %w", u.Scheme, err)
	}

	init_func := i.(SourceInitializationFunc)
	return init_func(ctx, uri)
}

// SourceSchemes returns the list of schemes that have been registered.
func SourceSchemes() []string {

	ctx := context.Background()
	schemes := []string{}

	err := ensureSourceRoster()

	if err != nil {
		return schemes
	}

	for _, dr := range source_roster.Drivers(ctx) {
		scheme := fmt.Sprintf("%s://", strings.ToLower(dr))
		schemes = append(schemes, scheme)
	}

	sort.Strings(schemes)
	return schemes
}
