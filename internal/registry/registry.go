// Package registry persists trained models together with their label encoder and
// feature column order. Every save creates an immutable version directory that is moved
// into place in one rename, a per-name pointer file selects the current version.
package registry

import (
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/drakos74/asthma-risk/internal/math/ml"
	"github.com/drakos74/asthma-risk/internal/model"
	"github.com/drakos74/asthma-risk/internal/storage"
	"github.com/drakos74/asthma-risk/internal/storage/file/json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	// Best is the alias of the model selected by the trainer.
	Best = "best"
	// DefaultFamily is loaded when the requested name is missing.
	DefaultFamily = ml.RandomForest

	pointerFile  = "CURRENT"
	stagingDir   = ".staging"
	encoderFile  = "label_encoder"
	columnsFile  = "feature_columns"
	manifestFile = "manifest"
)

// ErrArtifactNotFound is returned when neither the requested nor the default model exists.
var ErrArtifactNotFound = errors.New("artifact not found")

// Manifest describes a saved model version.
type Manifest struct {
	Name         string             `json:"name"`
	Version      string             `json:"version"`
	Family       ml.Family          `json:"family"`
	Capabilities ml.Capabilities    `json:"capabilities"`
	Params       ml.Params          `json:"params"`
	Created      time.Time          `json:"created"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
	Files        []string           `json:"files"`
}

// Artifact is a trained model with the label encoder and the feature columns it was fitted with.
type Artifact struct {
	Pipeline *ml.Pipeline
	Encoder  *model.LabelEncoder
	Columns  []string
	Manifest Manifest
}

func (a *Artifact) validate() error {
	if a == nil || a.Pipeline == nil || a.Pipeline.Classifier == nil {
		return fmt.Errorf("missing model")
	}
	if a.Encoder == nil || a.Encoder.Len() == 0 {
		return fmt.Errorf("missing label encoder")
	}
	if len(a.Columns) == 0 {
		return fmt.Errorf("missing feature columns")
	}
	return nil
}

// modelFile is the blob name of the model for the family.
func modelFile(family ml.Family) string {
	return fmt.Sprintf("%s_model", family)
}

// Registry is a file based model registry.
type Registry struct {
	root     string
	fallback string
	lock     *sync.Mutex
}

// New creates a registry rooted at the given directory.
func New(root string) *Registry {
	if root == "" {
		root = storage.DefaultDir
	}
	return &Registry{
		root:     root,
		fallback: string(DefaultFamily),
		lock:     new(sync.Mutex),
	}
}

// Root is the directory of the registry.
func (r *Registry) Root() string {
	return r.root
}

// Save stores the artifact as a new version of the named model and makes it current.
func (r *Registry) Save(a *Artifact, name string) (Manifest, error) {
	if err := a.validate(); err != nil {
		return Manifest{}, fmt.Errorf("invalid artifact for '%s': %w", name, err)
	}
	if err := validName(name); err != nil {
		return Manifest{}, err
	}

	family := a.Pipeline.Descriptor.Family
	manifest := a.Manifest
	manifest.Name = name
	manifest.Version = uuid.New().String()
	manifest.Family = family
	manifest.Capabilities = a.Pipeline.Capabilities()
	manifest.Params = a.Pipeline.Descriptor.Params
	manifest.Created = time.Now()
	manifest.Files = []string{modelFile(family), encoderFile, columnsFile, manifestFile}

	stage := filepath.Join(r.root, stagingDir, manifest.Version)
	blob := json.NewJsonBlob(stage, false)
	blobs := []struct {
		label string
		value interface{}
	}{
		{modelFile(family), a.Pipeline},
		{encoderFile, a.Encoder},
		{columnsFile, a.Columns},
		{manifestFile, manifest},
	}
	for _, b := range blobs {
		if err := blob.Store(storage.Key{Label: b.label}, b.value); err != nil {
			os.RemoveAll(stage)
			return Manifest{}, fmt.Errorf("could not stage '%s' for '%s': %w", b.label, name, err)
		}
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	dir := filepath.Join(r.root, name)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		os.RemoveAll(stage)
		return Manifest{}, fmt.Errorf("could not create model dir '%s': %w", dir, err)
	}
	if err := os.Rename(stage, filepath.Join(dir, manifest.Version)); err != nil {
		os.RemoveAll(stage)
		return Manifest{}, fmt.Errorf("could not publish version '%s': %w", manifest.Version, err)
	}
	if err := r.point(name, filepath.Join(name, manifest.Version)); err != nil {
		return Manifest{}, err
	}

	log.Info().
		Str("name", name).
		Str("family", string(family)).
		Str("version", manifest.Version).
		Str("root", r.root).
		Msg("saved model")
	return manifest, nil
}

// Link points the alias to the current version of the named model.
func (r *Registry) Link(alias, name string) error {
	if err := validName(alias); err != nil {
		return err
	}
	r.lock.Lock()
	defer r.lock.Unlock()

	target, err := r.resolve(name)
	if errors.Is(err, storage.NotFoundErr) {
		return fmt.Errorf("could not link '%s' to '%s': %w", alias, name, ErrArtifactNotFound)
	}
	if err != nil {
		return fmt.Errorf("could not link '%s' to '%s': %w", alias, name, err)
	}
	if err := r.point(alias, target); err != nil {
		return err
	}
	log.Info().Str("alias", alias).Str("name", name).Str("target", target).Msg("linked model")
	return nil
}

// Load returns the current artifact of the named model.
// A missing name falls back to the default family.
func (r *Registry) Load(name string) (*Artifact, error) {
	if err := validName(name); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrArtifactNotFound)
	}
	target, err := r.resolve(name)
	if err != nil && name != r.fallback {
		log.Warn().Str("name", name).Str("fallback", r.fallback).Msg("model not found, loading default")
		target, err = r.resolve(r.fallback)
	}
	if err != nil {
		return nil, fmt.Errorf("'%s': %w", name, ErrArtifactNotFound)
	}

	dir := filepath.Join(r.root, target)
	var manifest Manifest
	if err := json.Load(dir, manifestFile, &manifest); err != nil {
		return nil, fmt.Errorf("could not load manifest of '%s': %w", name, err)
	}
	pipeline := new(ml.Pipeline)
	if err := json.Load(dir, modelFile(manifest.Family), pipeline); err != nil {
		return nil, fmt.Errorf("could not load model of '%s': %w", name, err)
	}
	encoder := new(model.LabelEncoder)
	if err := json.Load(dir, encoderFile, encoder); err != nil {
		return nil, fmt.Errorf("could not load label encoder of '%s': %w", name, err)
	}
	var columns []string
	if err := json.Load(dir, columnsFile, &columns); err != nil {
		return nil, fmt.Errorf("could not load feature columns of '%s': %w", name, err)
	}
	a := &Artifact{
		Pipeline: pipeline,
		Encoder:  encoder,
		Columns:  columns,
		Manifest: manifest,
	}
	if err := a.validate(); err != nil {
		return nil, fmt.Errorf("corrupt artifact '%s': %w", target, err)
	}
	return a, nil
}

// Names lists the models and aliases with a current version.
func (r *Registry) Names() ([]string, error) {
	entries, err := ioutil.ReadDir(r.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("could not list registry '%s': %w", r.root, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || e.Name() == stagingDir {
			continue
		}
		if _, err := os.Stat(filepath.Join(r.root, e.Name(), pointerFile)); err == nil {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// resolve reads the pointer of the name, the version directory relative to the root.
func (r *Registry) resolve(name string) (string, error) {
	b, err := ioutil.ReadFile(filepath.Join(r.root, name, pointerFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("'%s': %w", name, storage.NotFoundErr)
		}
		return "", fmt.Errorf("could not read pointer of '%s': %w", name, err)
	}
	target := filepath.Clean(strings.TrimSpace(string(b)))
	if target == "." || filepath.IsAbs(target) || target == ".." || strings.HasPrefix(target, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("'%s' points outside the registry '%s': %w", name, target, storage.NotFoundErr)
	}
	if _, err := os.Stat(filepath.Join(r.root, target)); err != nil {
		return "", fmt.Errorf("'%s' points to missing version '%s': %w", name, target, storage.NotFoundErr)
	}
	return target, nil
}

func (r *Registry) point(name, target string) error {
	if err := json.WriteFile(filepath.Join(r.root, name, pointerFile), []byte(target)); err != nil {
		return fmt.Errorf("could not switch '%s' to '%s': %w", name, target, err)
	}
	return nil
}

func validName(name string) error {
	if name == "" || name == stagingDir || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid model name '%s'", name)
	}
	return nil
}
