package viewport

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ReadOptions decodes YAML animation parameters from 'r' over DefaultOptions, so that
// omitted keys keep their default values. For example:
//
//	padding: 40
//	max_zoom: 14
//	duration: 500ms
func ReadOptions(r io.Reader) (*Options, error) {

	opts := DefaultOptions()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	err := dec.Decode(opts)

	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("Failed to decode viewport options, %w", err)
	}

	if opts.Padding < 0 {
		return nil, fmt.Errorf("Invalid padding %f", opts.Padding)
	}

	if opts.Duration < 0 {
		return nil, fmt.Errorf("Invalid duration %v", opts.Duration)
	}

	return opts, nil
}

// LoadOptions reads YAML animation parameters from the file at 'path'.
func LoadOptions(path string) (*Options, error) {

	r, err := os.Open(path)

	if err != nil {
		return nil, fmt.Errorf("Failed to open %s, %w", path, err)
	}

	defer r.Close()

	return ReadOptions(r)
}
