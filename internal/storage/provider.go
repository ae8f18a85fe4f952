// Package storage holds generated site output before it is published.
package storage

// File describes one generated file. Path is slash-separated and relative to
// the output root.
type File struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

// Provider is the interface for the generated-site file store.
type Provider interface {
	// Root returns the absolute directory the store writes to.
	Root() string
	// List returns every file in the store, sorted by path.
	List() ([]File, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Delete removes the file at path. Missing files are not an error.
	Delete(path string) error
	// Reset removes every file so a build starts from an empty tree.
	Reset() error
}
