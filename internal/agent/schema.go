package agent

import (
	"encoding/json"

	"github.com/invopop/jsonschema"

	"github.com/nextlevelbuilder/engageops/internal/llm"
)

// Input shapes for the five tools the driver exposes to the LLM (§4.J).
// Deriving JSON-schema input_schema values from these structs via
// invopop/jsonschema keeps the schema and the dispatch code from drifting
// apart, instead of hand-maintaining parallel schema maps.
type executeToolInput struct {
	Tool       string                 `json:"tool" jsonschema:"required,description=Name of a registered tool definition"`
	Parameters map[string]interface{} `json:"parameters" jsonschema:"description=Parameter map for the tool's declared parameters"`
}

type executeBashInput struct {
	Command string `json:"command" jsonschema:"required,description=Verbatim shell command to execute"`
}

type recordFindingInput struct {
	Severity    string `json:"severity" jsonschema:"required,enum=critical,enum=high,enum=medium,enum=low,enum=info"`
	Title       string `json:"title" jsonschema:"required"`
	Description string `json:"description" jsonschema:"required"`
	Evidence    string `json:"evidence,omitempty"`
}

type readFileInput struct {
	Path string `json:"path" jsonschema:"required,description=Artifact path under the tool workspace data area"`
}

type addToScopeInput struct {
	Hosts  []string `json:"hosts" jsonschema:"required,description=Candidate hostnames/CIDRs to add to the engagement scope"`
	Reason string   `json:"reason,omitempty"`
}

func schemaFor(v interface{}) map[string]interface{} {
	reflector := &jsonschema.Reflector{ExpandedStruct: true, DoNotReference: true}
	s := reflector.Reflect(v)
	raw, _ := s.MarshalJSON()
	out := map[string]interface{}{}
	_ = json.Unmarshal(raw, &out)
	return out
}

// ToolSchema returns the declarative tool list the driver exposes to the
// LLM on every turn that permits tool use (§4.J, §6).
func ToolSchema() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name:        "execute_tool",
			Description: "Run a registered security tool against an in-scope target via the tool executor.",
			InputSchema: schemaFor(executeToolInput{}),
		},
		{
			Name:        "execute_bash",
			Description: "Run a verbatim shell command through the tool executor.",
			InputSchema: schemaFor(executeBashInput{}),
		},
		{
			Name:        "record_finding",
			Description: "Record a vulnerability or observation on the engagement.",
			InputSchema: schemaFor(recordFindingInput{}),
		},
		{
			Name:        "read_file",
			Description: "Read the content of a named artifact from the tool's data area.",
			InputSchema: schemaFor(readFileInput{}),
		},
		{
			Name:        "add_to_scope",
			Description: "Propose adding hosts to the engagement scope; blocks pending operator approval.",
			InputSchema: schemaFor(addToScopeInput{}),
		},
	}
}
