package main

import (
	"fmt"
	"os"

	"github.com/RicardRC/multimarkov/pkg/multimarkov"
	"gopkg.in/yaml.v3"
)

// Manifest describes a training corpus: which files to read, how to split
// them into sequences, and which model to train.
type Manifest struct {
	Model  string   `yaml:"model"`
	Order  int      `yaml:"order"`
	Prior  float64  `yaml:"prior"`
	Mode   string   `yaml:"mode"` // "words" (default) or "runes"
	Inputs []string `yaml:"inputs"`
}

// LoadManifest loads a corpus manifest from a YAML file, applying defaults
// for missing fields.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	manifest := &Manifest{
		Order: multimarkov.DefaultOrder,
		Prior: multimarkov.DefaultPrior,
		Mode:  "words",
	}
	if err = yaml.Unmarshal(data, manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if manifest.Model == "" {
		return nil, fmt.Errorf("manifest must name a model")
	}
	if len(manifest.Inputs) == 0 {
		return nil, fmt.Errorf("manifest lists no input files")
	}
	if manifest.Mode != "words" && manifest.Mode != "runes" {
		return nil, fmt.Errorf("unknown sequence mode %q", manifest.Mode)
	}
	return manifest, nil
}
