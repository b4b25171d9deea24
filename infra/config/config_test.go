package config

import (
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type settings struct {
	TestSize float64 `json:"test_size"`
	Folds    int     `json:"folds"`
	Seed     uint64  `json:"seed"`
}

func TestLoad(t *testing.T) {
	t.Setenv(EnvConfigDir, ".")

	var s settings
	b, err := Load("training", &s)
	require.NoError(t, err)
	assert.NotEmpty(t, b)
	assert.Equal(t, settings{TestSize: 0.2, Folds: 5, Seed: 42}, s)

	_, err = Load("missing", &s)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Panics(t, func() {
		MustLoad("missing", &s)
	})

	dir := t.TempDir()
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0644))
	t.Setenv(EnvConfigDir, dir)
	_, err = Load("broken", &s)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, os.ErrNotExist))
}

func TestOverrides(t *testing.T) {

	type test struct {
		env   map[string]string
		dir   string
		data  string
		files string
	}

	tests := map[string]test{
		"defaults": {
			dir:   "model-registry",
			data:  "data.csv",
			files: path,
		},
		"env": {
			env: map[string]string{
				EnvRegistryDir: "/tmp/registry",
				EnvDataPath:    "/tmp/data.csv",
				EnvConfigDir:   "/etc/risk",
			},
			dir:   "/tmp/registry",
			data:  "/tmp/data.csv",
			files: "/etc/risk",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{EnvRegistryDir, EnvDataPath, EnvConfigDir} {
				t.Setenv(k, tt.env[k])
			}
			assert.Equal(t, tt.dir, RegistryDir("model-registry"))
			assert.Equal(t, tt.data, DataPath("data.csv"))
			assert.Equal(t, tt.files, Dir())
		})
	}
}
