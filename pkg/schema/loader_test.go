package schema

import (
	"testing"
	"testing/fstest"
)

func TestLoad_Valid(t *testing.T) {
	loader := NewLoader()

	validYAML := `name: test
layers:
  - name: webanno.custom.Entity
    features:
      - name: identifier
        kind: identifier
      - name: value
        kind: label
tagset:
  - PERSON
  - LOCATION
`

	s, err := loader.Load([]byte(validYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if s.Name != "test" {
		t.Errorf("expected name test, got %s", s.Name)
	}
	if len(s.Layers) != 1 {
		t.Fatalf("expected 1 layer, got %d", len(s.Layers))
	}
	if s.Layers[0].Name != "webanno.custom.Entity" {
		t.Errorf("expected layer webanno.custom.Entity, got %s", s.Layers[0].Name)
	}
	if len(s.Layers[0].Features) != 2 {
		t.Errorf("expected 2 features, got %d", len(s.Layers[0].Features))
	}
	if !s.Contains("PERSON") {
		t.Error("expected tagset to contain PERSON")
	}
	if s.Contains("person") {
		t.Error("tagset membership must be case-sensitive")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	loader := NewLoader()

	invalidYAML := `this is not valid yaml: [[[`

	_, err := loader.Load([]byte(invalidYAML))
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoad_NoLayers(t *testing.T) {
	loader := NewLoader()

	emptyYAML := `name: empty
layers: []
tagset:
  - PERSON
`

	_, err := loader.Load([]byte(emptyYAML))
	if err == nil {
		t.Error("expected error for schema without layers")
	}
}

func TestLoad_EmptyTagset(t *testing.T) {
	loader := NewLoader()

	noTagsYAML := `name: empty
layers:
  - name: webanno.custom.Entity
    features:
      - name: value
        kind: label
tagset: []
`

	_, err := loader.Load([]byte(noTagsYAML))
	if err == nil {
		t.Error("expected error for empty tagset")
	}
}

func TestLoad_TwoLabelFeatures(t *testing.T) {
	loader := NewLoader()

	doubledYAML := `name: doubled
layers:
  - name: webanno.custom.Entity
    features:
      - name: value
        kind: label
      - name: kind
        kind: label
tagset:
  - PERSON
`

	_, err := loader.Load([]byte(doubledYAML))
	if err == nil {
		t.Error("expected error for two label features")
	}
}

func TestLoad_UnknownFeatureKind(t *testing.T) {
	loader := NewLoader()

	badKindYAML := `name: bad
layers:
  - name: webanno.custom.Entity
    features:
      - name: value
        kind: mystery
tagset:
  - PERSON
`

	_, err := loader.Load([]byte(badKindYAML))
	if err == nil {
		t.Error("expected error for unknown feature kind")
	}
}

func TestLoadBuiltin_EntityFishing(t *testing.T) {
	loader := NewLoader()

	s, err := loader.LoadBuiltin("entity-fishing")
	if err != nil {
		t.Fatalf("LoadBuiltin failed: %v", err)
	}

	if s.Name != "entity-fishing" {
		t.Errorf("expected name entity-fishing, got %s", s.Name)
	}
	if got := len(s.Labels()); got != 27 {
		t.Errorf("expected 27 classes, got %d", got)
	}
	for _, label := range []string{"PERSON", "LOCATION", "ORGANISATION", "UNKNOWN"} {
		if !s.Contains(label) {
			t.Errorf("expected tagset to contain %s", label)
		}
	}

	layer, ok := s.EntityLayer()
	if !ok {
		t.Fatal("expected an entity layer")
	}
	if layer.Name != "de.tudarmstadt.ukp.dkpro.core.api.ner.type.NamedEntity" {
		t.Errorf("unexpected entity layer %s", layer.Name)
	}
}

func TestLoadBuiltin_Conll(t *testing.T) {
	loader := NewLoader()

	s, err := loader.LoadBuiltin("conll")
	if err != nil {
		t.Fatalf("LoadBuiltin failed: %v", err)
	}

	if got := len(s.Labels()); got != 4 {
		t.Errorf("expected 4 classes, got %d", got)
	}
	if !s.Contains("PER") || !s.Contains("MISC") {
		t.Error("expected CoNLL classes PER and MISC")
	}
}

func TestLoadBuiltin_Unknown(t *testing.T) {
	loader := NewLoader()

	_, err := loader.LoadBuiltin("no-such-schema")
	if err == nil {
		t.Error("expected error for unknown builtin name")
	}
}

func TestBuiltins(t *testing.T) {
	loader := NewLoader()

	names, err := loader.Builtins()
	if err != nil {
		t.Fatalf("Builtins failed: %v", err)
	}

	found := make(map[string]bool, len(names))
	for _, n := range names {
		found[n] = true
	}
	if !found["entity-fishing"] || !found["conll"] {
		t.Errorf("expected entity-fishing and conll among builtins, got %v", names)
	}
}

func TestLoadBuiltin_WithFS(t *testing.T) {
	schemaYAML := `name: custom
layers:
  - name: webanno.custom.Entity
    features:
      - name: value
        kind: label
tagset:
  - THING
`

	mockFS := fstest.MapFS{
		"tagsets/custom.yml": &fstest.MapFile{Data: []byte(schemaYAML)},
	}

	loader := NewLoaderWithFS(mockFS)
	s, err := loader.LoadBuiltin("custom")
	if err != nil {
		t.Fatalf("LoadBuiltin failed: %v", err)
	}

	if !s.Contains("THING") {
		t.Error("expected tagset to contain THING")
	}
}

func TestDefault(t *testing.T) {
	s, err := Default()
	if err != nil {
		t.Fatalf("Default failed: %v", err)
	}
	if s.Name != DefaultName {
		t.Errorf("expected %s, got %s", DefaultName, s.Name)
	}
}
