package yaml

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	goyaml "github.com/goccy/go-yaml"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func graphSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	})
	return schema, schemaErr
}

// Schema returns the JSON Schema every graph definition is checked against.
func Schema() []byte {
	return append([]byte(nil), schemaJSON...)
}

// Parser handles parsing YAML graph definitions.
type Parser struct{}

// NewParser creates a new YAML parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads, schema-checks and decodes a YAML graph definition.
func (p *Parser) Parse(r io.Reader) (*GraphDefinition, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read definition: %w", err)
	}
	return p.ParseBytes(data)
}

// ParseBytes is Parse over an in-memory document.
func (p *Parser) ParseBytes(data []byte) (*GraphDefinition, error) {
	var doc any
	if err := goyaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if err := validateSchema(Normalize(doc)); err != nil {
		return nil, err
	}

	var def GraphDefinition
	if err := goyaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("decode definition: %w", err)
	}
	def.normalize()

	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// ParseFile reads and parses a YAML graph definition from a file.
func (p *Parser) ParseFile(filename string) (*GraphDefinition, error) {
	// #nosec G304 - This is a parser that needs to accept arbitrary file paths
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return p.Parse(file)
}

// ParseString parses a YAML graph definition from a string.
func (p *Parser) ParseString(s string) (*GraphDefinition, error) {
	return p.Parse(bytes.NewReader([]byte(s)))
}

// Marshal converts a graph definition to YAML format.
func (p *Parser) Marshal(gd *GraphDefinition) ([]byte, error) {
	return goyaml.Marshal(gd)
}

// MarshalToFile writes a graph definition to a YAML file.
func (p *Parser) MarshalToFile(gd *GraphDefinition, filename string) error {
	data, err := p.Marshal(gd)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0o600)
}

func validateSchema(doc any) error {
	s, err := graphSchema()
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}

	result, err := s.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidDefinition, strings.Join(msgs, "; "))
}

func (gd *GraphDefinition) normalize() {
	gd.Params = normalizeMap(gd.Params)
	gd.Metadata = normalizeMap(gd.Metadata)
	for i := range gd.BatchParams {
		gd.BatchParams[i] = normalizeMap(gd.BatchParams[i])
	}
	for i := range gd.Nodes {
		gd.Nodes[i].Config = normalizeMap(gd.Nodes[i].Config)
		gd.Nodes[i].Params = normalizeMap(gd.Nodes[i].Params)
	}
}

func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return Normalize(m).(map[string]any)
}

// Normalize converts decoded YAML into plain JSON-shaped values: integers
// become int, and maps with non-string keys get string keys.
func Normalize(v any) any {
	switch val := v.(type) {
	case uint64:
		return int(val)
	case int64:
		return int(val)
	case uint:
		return int(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = Normalize(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = Normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Normalize(item)
		}
		return out
	default:
		return v
	}
}
