package builtin

// NodeMetadata describes a node type.
type NodeMetadata struct {
	Type         string         `json:"type" yaml:"type"`
	Category     string         `json:"category" yaml:"category"`
	Description  string         `json:"description" yaml:"description"`
	ConfigSchema map[string]any `json:"configSchema" yaml:"configSchema"`
	Examples     []Example      `json:"examples,omitempty" yaml:"examples,omitempty"`
	Since        string         `json:"since,omitempty" yaml:"since,omitempty"`
}

// Example shows how to use a node.
type Example struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Config      map[string]any `json:"config" yaml:"config"`
	Shared      map[string]any `json:"shared,omitempty" yaml:"shared,omitempty"`
	Action      string         `json:"action,omitempty" yaml:"action,omitempty"`
}

// ioProperties are the config keys shared by nodes that read one shared
// value and write one.
var ioProperties = map[string]any{
	"input": map[string]any{
		"type":        "string",
		"description": "Shared key read during prep",
	},
	"output": map[string]any{
		"type":        "string",
		"description": "Shared key written during post, defaults to the node name",
	},
}

func withIO(props map[string]any) map[string]any {
	out := make(map[string]any, len(props)+len(ioProperties))
	for k, v := range ioProperties {
		out[k] = v
	}
	for k, v := range props {
		out[k] = v
	}
	return out
}
