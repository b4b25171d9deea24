package config

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

const (
	path = "infra/config"

	// EnvConfigDir overrides the directory of the config files.
	EnvConfigDir = "RISK_CONFIG_DIR"
	// EnvRegistryDir overrides the root of the model registry.
	EnvRegistryDir = "RISK_REGISTRY_DIR"
	// EnvDataPath overrides the training table.
	EnvDataPath = "RISK_DATA_PATH"
)

// Dir is the directory the config files are read from.
func Dir() string {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir
	}
	return path
}

// Load loads the config for the given key into v.
// A missing file leaves v untouched and returns an error wrapping os.ErrNotExist.
func Load(key string, v interface{}) ([]byte, error) {
	file := filepath.Join(Dir(), fmt.Sprintf("%s.json", key))
	b, err := ioutil.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("could not load config for %s: %w", key, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return nil, fmt.Errorf("could not unmarshal the config for %s: %w", key, err)
	}
	log.Info().Str("config", key).Str("file", file).Msg("loaded config")
	return b, nil
}

// MustLoad loads the config for the given key
func MustLoad(key string, v interface{}) []byte {
	b, err := Load(key, v)
	if err != nil {
		panic(err.Error())
	}
	return b
}

// RegistryDir returns the registry root, the environment taking precedence over the default.
func RegistryDir(def string) string {
	return env(EnvRegistryDir, def)
}

// DataPath returns the training table, the environment taking precedence over the default.
func DataPath(def string) string {
	return env(EnvDataPath, def)
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
