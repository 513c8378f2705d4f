// Package workflow loads and validates the static configuration surface:
// workflow definitions (intent to steps) and per-provider pruning and cache
// TTL rules. Configuration is read once at process start; there is no
// hot-reload contract.
package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"

	"github.com/brainstormhq/conductor/pkg/intent"
	"github.com/brainstormhq/conductor/pkg/models"
)

// ProviderDefinition declares one capability provider: its registry type,
// construction config, cache TTL, and pruning rule. A zero TTL means the
// provider's output is never cached.
type ProviderDefinition struct {
	Name    string              `json:"name"              validate:"required,min=1"`
	Type    string              `json:"type"              validate:"required,min=1"`
	TTLMs   int64               `json:"ttl_ms"            validate:"min=0"`
	Pruning *models.PruningRule `json:"pruning,omitempty"`
	Config  map[string]any      `json:"config,omitempty"`
}

// RouterConfig selects how raw input is classified: by a declared capability
// provider, or by the built-in keyword router when Provider is empty.
type RouterConfig struct {
	Provider      string               `json:"provider,omitempty"`
	DefaultIntent string               `json:"default_intent,omitempty"`
	Keywords      []intent.KeywordRule `json:"keywords,omitempty" validate:"dive"`
}

// Config is the full static configuration loaded at startup.
type Config struct {
	Providers []*ProviderDefinition `json:"providers" validate:"required,min=1,dive"`
	Workflows []*models.Workflow    `json:"workflows" validate:"required,min=1,dive"`
	Router    *RouterConfig         `json:"router,omitempty"`
}

// LoadConfig reads, schema-validates, and struct-validates a configuration
// file, then cross-checks that every workflow step references a declared
// provider.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	return ParseConfig(data)
}

// ParseConfig validates and decodes raw configuration bytes.
func ParseConfig(data []byte) (*Config, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	config.normalize()

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := config.crossCheck(); err != nil {
		return nil, err
	}

	return &config, nil
}

func validateSchema(data []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(configSchema)
	dataLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("config schema validation: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, resultError := range result.Errors() {
			details = append(details, resultError.String())
		}

		return fmt.Errorf("config schema validation failed: %s", strings.Join(details, "; "))
	}

	return nil
}

// crossCheck enforces referential integrity the struct tags cannot express:
// unique provider names, unique intents, and step references to declared
// providers only.
func (c *Config) crossCheck() error {
	providers := make(map[string]bool, len(c.Providers))

	for _, definition := range c.Providers {
		if providers[definition.Name] {
			return fmt.Errorf("duplicate provider name %q", definition.Name)
		}

		providers[definition.Name] = true
	}

	intents := make(map[string]bool, len(c.Workflows))

	for _, workflow := range c.Workflows {
		if intents[workflow.Intent] {
			return fmt.Errorf("duplicate workflow intent %q", workflow.Intent)
		}

		intents[workflow.Intent] = true

		for _, step := range workflow.Steps {
			if !providers[step.Provider] {
				return fmt.Errorf("workflow %q references undeclared provider %q", workflow.Intent, step.Provider)
			}
		}
	}

	if c.Router != nil {
		if c.Router.Provider != "" && !providers[c.Router.Provider] {
			return fmt.Errorf("router references undeclared provider %q", c.Router.Provider)
		}

		if c.Router.DefaultIntent != "" && !intents[c.Router.DefaultIntent] {
			return fmt.Errorf("router default intent %q has no workflow", c.Router.DefaultIntent)
		}
	}

	return nil
}

// normalize fills derived fields, such as the provider name on nested
// pruning rules.
func (c *Config) normalize() {
	for _, definition := range c.Providers {
		if definition.Pruning != nil && definition.Pruning.Provider == "" {
			definition.Pruning.Provider = definition.Name
		}
	}
}

// TTLs returns the per-provider cache TTL map.
func (c *Config) TTLs() map[string]time.Duration {
	ttls := make(map[string]time.Duration, len(c.Providers))

	for _, definition := range c.Providers {
		ttls[definition.Name] = time.Duration(definition.TTLMs) * time.Millisecond
	}

	return ttls
}

// PruningRules returns the explicitly configured pruning rules.
func (c *Config) PruningRules() []models.PruningRule {
	rules := make([]models.PruningRule, 0, len(c.Providers))

	for _, definition := range c.Providers {
		if definition.Pruning != nil {
			rules = append(rules, *definition.Pruning)
		}
	}

	return rules
}
