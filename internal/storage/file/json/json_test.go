package json

import (
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/drakos74/asthma-risk/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Entry struct {
	Name  string    `json:"name"`
	ID    string    `json:"id"`
	Index int       `json:"index"`
	Value []float64 `json:"value"`
}

func newEntry(i int) Entry {
	return Entry{
		Name:  "test",
		ID:    uuid.New().String(),
		Index: i,
		Value: []float64{float64(i), 0.1, 1e-9},
	}
}

func TestBlobStorage(t *testing.T) {
	blob := NewJsonBlob(t.TempDir(), true)

	k := storage.Key{
		Group: "group",
		Label: "label",
	}

	for i := 0; i < 3; i++ {
		e := newEntry(i)
		require.NoError(t, blob.Store(k, e))
		var loaded Entry
		require.NoError(t, blob.Load(k, &loaded))
		assert.Equal(t, e, loaded)
	}

	// only the last version remains and no temporary files
	files, err := ioutil.ReadDir(filepath.Join(blob.Root(), "group"))
	require.NoError(t, err)
	assert.Equal(t, 1, len(files))
	assert.Equal(t, "label.json", files[0].Name())
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	var e Entry
	err := Load(dir, "missing", &e)
	assert.True(t, errors.Is(err, storage.NotFoundErr))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0644))
	err = Load(dir, "broken", &e)
	assert.True(t, errors.Is(err, storage.CouldNotLoadErr))

	err = Save(dir, "invalid", make(chan int))
	assert.Error(t, err)
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "nested", "POINTER")

	require.NoError(t, WriteFile(p, []byte("a")))
	require.NoError(t, WriteFile(p, []byte("b")))

	b, err := ioutil.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "b", string(b))

	// a file in place of the directory
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file"), []byte("x"), 0644))
	assert.Error(t, WriteFile(filepath.Join(dir, "file", "child"), []byte("y")))
}
