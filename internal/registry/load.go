package registry

import (
	"bytes"
	"errors"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/starford/sitesmith/internal/apperr"
)

//go:embed components.yaml
var defaultComponents []byte

type file struct {
	Components []ComponentDescriptor `yaml:"components"`
}

// Load decodes a YAML registry document. An empty document is a
// configuration error.
func Load(r io.Reader) (*Registry, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("registry: decode: %w", err)
	}
	if len(f.Components) == 0 {
		return nil, apperr.ErrEmptyRegistry
	}
	return New(f.Components)
}

// LoadFile loads a registry from a YAML file on disk.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}
	return Load(bytes.NewReader(data))
}

// Default returns the registry compiled into the binary.
func Default() (*Registry, error) {
	return Load(bytes.NewReader(defaultComponents))
}

// Open loads path when set and falls back to the embedded registry otherwise.
func Open(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}
	return LoadFile(path)
}
