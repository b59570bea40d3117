package schema

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultName is the builtin schema used when none is requested: the
// entity-fishing NER class set, which is what the linking service the
// converter feeds was trained on.
const DefaultName = "entity-fishing"

// Loader handles loading schemas from YAML files.
type Loader struct {
	fs fs.FS // embedded filesystem for built-in tagsets
}

// NewLoader creates a loader with built-in tagsets from the embedded filesystem.
func NewLoader() *Loader {
	return &Loader{
		fs: builtinTagsetFS,
	}
}

// NewLoaderWithFS creates a loader with a custom filesystem.
func NewLoaderWithFS(fsys fs.FS) *Loader {
	return &Loader{
		fs: fsys,
	}
}

// Load parses a single schema from YAML bytes and validates it.
func (l *Loader) Load(data []byte) (*Schema, error) {
	var yamlFile yamlSchemaFile
	if err := yaml.Unmarshal(data, &yamlFile); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	s := convertYAMLSchema(yamlFile)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadFile loads a schema from a YAML file path.
func (l *Loader) LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return l.Load(data)
}

// LoadBuiltin loads one of the embedded schemas by name.
func (l *Loader) LoadBuiltin(name string) (*Schema, error) {
	data, err := fs.ReadFile(l.fs, path.Join("tagsets", name+".yml"))
	if err != nil {
		return nil, fmt.Errorf("no builtin schema %q: %w", name, err)
	}
	return l.Load(data)
}

// Builtins lists the names of all embedded schemas.
func (l *Loader) Builtins() ([]string, error) {
	var names []string

	err := fs.WalkDir(l.fs, "tagsets", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(p) != ".yml" {
			return nil
		}
		base := path.Base(p)
		names = append(names, base[:len(base)-len(".yml")])
		return nil
	})

	if err != nil {
		return nil, err
	}

	return names, nil
}

// Default returns the entity-fishing builtin schema.
func Default() (*Schema, error) {
	return NewLoader().LoadBuiltin(DefaultName)
}

// convertYAMLSchema converts yamlSchemaFile to a Schema.
func convertYAMLSchema(yf yamlSchemaFile) *Schema {
	layers := make([]Layer, 0, len(yf.Layers))
	for _, yl := range yf.Layers {
		features := make([]Feature, 0, len(yl.Features))
		for _, f := range yl.Features {
			features = append(features, Feature{Name: f.Name, Kind: FeatureKind(f.Kind)})
		}
		layers = append(layers, Layer{Name: yl.Name, Features: features})
	}
	s := New(yf.Name, layers, yf.Tagset)
	s.Lenient = yf.Lenient
	return s
}
