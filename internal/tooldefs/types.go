// Package tooldefs implements the Tool Definition Registry (declarative
// tool catalog, loaded from and persisted to a YAML file) and the Command
// Builder (the pure function that turns a definition plus a parameter map
// into argv).
package tooldefs

// ParamKind is the declared shape of one tool parameter.
type ParamKind string

const (
	KindFlagValue ParamKind = "flag-with-value"
	KindBoolean   ParamKind = "boolean-flag"
	KindPositional ParamKind = "positional"
	KindStdin     ParamKind = "stdin"
	KindRaw       ParamKind = "raw-passthrough"
)

// ParamDef describes one parameter a tool definition accepts.
type ParamDef struct {
	Kind ParamKind `yaml:"kind" json:"kind"`
	Flag string    `yaml:"flag,omitempty" json:"flag,omitempty"`
	Type string    `yaml:"type,omitempty" json:"type,omitempty"`
}

// Definition is one entry in the tool catalog.
type Definition struct {
	Name       string              `yaml:"name" json:"name"`
	Binary     string              `yaml:"binary" json:"binary"`
	DefaultArgs []string           `yaml:"default_args,omitempty" json:"default_args,omitempty"`
	Parameters map[string]ParamDef `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// BashToolName is the reserved synthetic tool definition that runs a
// verbatim shell command. It cannot be mutated through the registry's CRUD.
const BashToolName = "bash"

// bashDefinition is injected at registry construction time; it is never
// persisted to the YAML catalog.
var bashDefinition = Definition{
	Name:   BashToolName,
	Binary: "sh",
	Parameters: map[string]ParamDef{
		"command": {Kind: KindRaw, Type: "string"},
	},
}
