package storage

import (
	"errors"
	"path/filepath"
)

// DefaultDir is the root of the file storage when nothing else is configured.
var DefaultDir = "model-registry"

var (
	NotFoundErr     = errors.New("not found")
	CouldNotLoadErr = errors.New("could not load")
)

// Key is the storage key of a blob.
// Group is a logical folder, Label the blob name within it.
type Key struct {
	Group string `json:"group"`
	Label string `json:"label"`
}

// Path is the relative location of the blob.
func (k Key) Path() string {
	return filepath.Join(k.Group, k.Label)
}

// Persistence stores and loads values by key.
type Persistence interface {
	Store(k Key, value interface{}) error
	Load(k Key, value interface{}) error
}
