package json

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/drakos74/asthma-risk/internal/storage"
	"github.com/rs/zerolog/log"
)

// BlobStorage stores values as json files under a root path.
type BlobStorage struct {
	path  string
	debug bool
}

// NewJsonBlob creates a json file storage rooted at the given path.
func NewJsonBlob(path string, debug bool) *BlobStorage {
	if path == "" {
		path = storage.DefaultDir
	}
	return &BlobStorage{
		path:  path,
		debug: debug,
	}
}

// Root is the directory the storage writes to.
func (s BlobStorage) Root() string {
	return s.path
}

func (s BlobStorage) Store(k storage.Key, value interface{}) error {
	p := filepath.Join(s.path, k.Group)
	err := Save(p, k.Label, value)
	if err == nil && s.debug {
		log.Debug().Str("path", p).Str("file", k.Label).Msg("stored json file")
	}
	return err
}

func (s BlobStorage) Load(k storage.Key, value interface{}) error {
	return Load(filepath.Join(s.path, k.Group), k.Label, value)
}

// Save saves the given json struct into the given path with the provided filename.
// The content is written to a temporary file and renamed into place,
// readers either see the previous or the new file.
func Save(filePath string, fileName string, value interface{}) error {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("could not encode '%s': %w", fileName, err)
	}
	return WriteFile(filepath.Join(filePath, fmt.Sprintf("%s.json", fileName)), b)
}

// WriteFile atomically replaces the file with the given content.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	// check if filepath exists
	info, err := os.Stat(dir)
	if err != nil {
		err := os.MkdirAll(dir, os.ModePerm)
		if err != nil {
			return fmt.Errorf("could not make dir: %s: %w", dir, err)
		}
	} else if !info.IsDir() {
		return fmt.Errorf("path given is not a directory: %s", dir)
	}

	f, err := ioutil.TempFile(dir, fmt.Sprintf(".%s.*.tmp", filepath.Base(path)))
	if err != nil {
		return fmt.Errorf("could not create file in '%s': %w", dir, err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("could not write bytes to file '%s': %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("could not sync file '%s': %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("could not close file '%s': %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("could not move file into '%s': %w", path, err)
	}
	return nil
}

// Load loads the payload from the given filePath and fileName.
func Load(filePath string, fileName string, value interface{}) error {
	p := filepath.Join(filePath, fmt.Sprintf("%s.json", fileName))
	data, err := ioutil.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("could not read file '%s': %w", p, storage.NotFoundErr)
		}
		return fmt.Errorf("could not read file '%s' %s: %w", p, err.Error(), storage.CouldNotLoadErr)
	}
	err = json.Unmarshal(data, value)
	if err != nil {
		return fmt.Errorf("could not unmarshal key for '%s': '%v': %w", fileName, err, storage.CouldNotLoadErr)
	}
	return nil
}
