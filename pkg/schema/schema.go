package schema

import "fmt"

// FeatureKind says what a feature column of a span layer carries.
// The reader uses the kind to decide how to interpret each cell; anything
// it does not model is declared Ignored and round-trips as-is absent.
type FeatureKind string

const (
	// KindLabel marks the column holding entity-type labels from the tagset.
	KindLabel FeatureKind = "label"
	// KindIdentifier marks the column holding knowledge-base identifiers.
	KindIdentifier FeatureKind = "identifier"
	// KindIgnored marks a declared column the model does not carry.
	KindIgnored FeatureKind = "ignored"
)

// Feature is one declared feature (one TSV column) of a span layer.
type Feature struct {
	Name string
	Kind FeatureKind
}

// Layer is one #T_SP span-layer declaration the schema expects.
type Layer struct {
	Name     string
	Features []Feature
}

// Schema is the immutable annotation schema shared by the reader and
// writer: the span layers a file may declare and the closed set of entity
// labels the named-entity layer may use. Parsed once, passed by reference.
type Schema struct {
	Name   string
	Layers []Layer
	// Lenient coerces labels outside the tagset to sentinel spans instead
	// of failing the parse.
	Lenient bool

	labels map[string]struct{}
	order  []string
}

// New assembles a schema from layers and a tagset. Label spelling is
// preserved case-sensitively.
func New(name string, layers []Layer, tagset []string) *Schema {
	s := &Schema{
		Name:   name,
		Layers: layers,
		labels: make(map[string]struct{}, len(tagset)),
	}
	for _, l := range tagset {
		if _, dup := s.labels[l]; dup {
			continue
		}
		s.labels[l] = struct{}{}
		s.order = append(s.order, l)
	}
	return s
}

// Contains reports whether label belongs to the tagset. The empty label is
// never in the tagset; it is the "no annotation" sentinel.
func (s *Schema) Contains(label string) bool {
	_, ok := s.labels[label]
	return ok
}

// Labels returns the tagset in declaration order.
func (s *Schema) Labels() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// LayerByName returns the declared layer with the given type name.
func (s *Schema) LayerByName(name string) (*Layer, bool) {
	for i := range s.Layers {
		if s.Layers[i].Name == name {
			return &s.Layers[i], true
		}
	}
	return nil, false
}

// EntityLayer returns the layer carrying the tagset labels. Exactly one
// layer must declare a label-kind feature; Validate enforces that.
func (s *Schema) EntityLayer() (*Layer, bool) {
	for i := range s.Layers {
		for _, f := range s.Layers[i].Features {
			if f.Kind == KindLabel {
				return &s.Layers[i], true
			}
		}
	}
	return nil, false
}

// Validate checks schema consistency: at least one layer, exactly one
// label-kind feature across all layers, and a non-empty tagset.
func (s *Schema) Validate() error {
	if len(s.Layers) == 0 {
		return fmt.Errorf("schema %q declares no span layers", s.Name)
	}
	labelFeatures := 0
	for _, layer := range s.Layers {
		if layer.Name == "" {
			return fmt.Errorf("schema %q has a layer without a type name", s.Name)
		}
		if len(layer.Features) == 0 {
			return fmt.Errorf("layer %q declares no features", layer.Name)
		}
		for _, f := range layer.Features {
			switch f.Kind {
			case KindLabel:
				labelFeatures++
			case KindIdentifier, KindIgnored:
			default:
				return fmt.Errorf("layer %q feature %q has unknown kind %q", layer.Name, f.Name, f.Kind)
			}
		}
	}
	if labelFeatures != 1 {
		return fmt.Errorf("schema %q must declare exactly one label feature, found %d", s.Name, labelFeatures)
	}
	if len(s.order) == 0 {
		return fmt.Errorf("schema %q has an empty tagset", s.Name)
	}
	return nil
}

// UnknownLabelError reports an entity-type label outside the schema tagset.
type UnknownLabelError struct {
	Label  string
	Schema string
}

func (e *UnknownLabelError) Error() string {
	return fmt.Sprintf("label %q is not in the %q tagset", e.Label, e.Schema)
}
