package schema

// yamlSchemaFile is the intermediate struct for parsing schema YAML files.
type yamlSchemaFile struct {
	Name    string      `yaml:"name"`
	Layers  []yamlLayer `yaml:"layers"`
	Tagset  []string    `yaml:"tagset"`
	Lenient bool        `yaml:"lenient,omitempty"`
}

// yamlLayer mirrors one #T_SP declaration.
type yamlLayer struct {
	Name     string        `yaml:"name"`
	Features []yamlFeature `yaml:"features"`
}

type yamlFeature struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
}
