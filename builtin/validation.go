package builtin

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidateNodeConfig validates a node configuration against its schema.
func ValidateNodeConfig(meta *NodeMetadata, config map[string]any) error {
	if len(meta.ConfigSchema) == 0 {
		return nil
	}
	if config == nil {
		config = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(meta.ConfigSchema),
		gojsonschema.NewGoLoader(config),
	)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, joinErrors(result.Errors()))
}

// ValidateAllNodeConfigs validates configurations keyed by node type.
func ValidateAllNodeConfigs(registry *Registry, configs map[string]map[string]any) error {
	for nodeType, config := range configs {
		builder, exists := registry.Get(nodeType)
		if !exists {
			return fmt.Errorf("unknown node type: %s", nodeType)
		}

		meta := builder.Metadata()
		if err := ValidateNodeConfig(&meta, config); err != nil {
			return fmt.Errorf("node '%s' config validation failed: %w", nodeType, err)
		}
	}
	return nil
}

func joinErrors(errs []gojsonschema.ResultError) string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.String())
	}
	return strings.Join(msgs, "; ")
}
