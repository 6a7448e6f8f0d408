package streams

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Event types published on the campaign stream.
const (
	EventCampaignGenerated  = "campaign.generated"
	EventAssetRegenerated   = "asset.regenerated"
	EventMediaPlanGenerated = "media_plan.generated"
)

// Definition ties an event type and version to its embedded schema file.
type Definition struct {
	EventType string
	Version   string
	File      string
}

// Definitions lists every event payload the service emits.
var Definitions = []Definition{
	{EventType: EventCampaignGenerated, Version: "v1", File: "schemas/campaign.generated.v1.json"},
	{EventType: EventAssetRegenerated, Version: "v1", File: "schemas/asset.regenerated.v1.json"},
	{EventType: EventMediaPlanGenerated, Version: "v1", File: "schemas/media_plan.generated.v1.json"},
}

// SchemaRegistry stores compiled JSON Schemas keyed by event type and payload version.
type SchemaRegistry struct {
	mu      sync.RWMutex
	schemas map[string]map[string]*jsonschema.Schema
}

// NewSchemaRegistry constructs an empty registry instance.
func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{schemas: make(map[string]map[string]*jsonschema.Schema)}
}

// NewRegistry returns a registry preloaded with every entry of Definitions.
func NewRegistry() (*SchemaRegistry, error) {
	r := NewSchemaRegistry()
	for _, def := range Definitions {
		raw, err := schemaFS.ReadFile(def.File)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", def.File, err)
		}
		if err := r.Register(def.EventType, def.Version, raw); err != nil {
			return nil, fmt.Errorf("register %s@%s: %w", def.EventType, def.Version, err)
		}
	}
	return r, nil
}

// Register compiles and stores a JSON schema for the given event type and version.
func (r *SchemaRegistry) Register(eventType, version string, schemaBytes []byte) error {
	if eventType == "" {
		return fmt.Errorf("eventType must be provided")
	}
	if version == "" {
		return fmt.Errorf("version must be provided")
	}
	if len(schemaBytes) == 0 {
		return fmt.Errorf("schemaBytes is empty")
	}

	name := eventType + "." + version + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(schemaBytes)); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(name)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schemas[eventType]; !ok {
		r.schemas[eventType] = make(map[string]*jsonschema.Schema)
	}
	r.schemas[eventType][version] = compiled
	return nil
}

// Validate checks payload bytes against the registered schema for event type/version.
func (r *SchemaRegistry) Validate(eventType, version string, payload []byte) error {
	if eventType == "" {
		return fmt.Errorf("eventType must be provided")
	}
	if version == "" {
		return fmt.Errorf("version must be provided")
	}

	r.mu.RLock()
	schema, ok := r.schemas[eventType][version]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no schema registered for event %q version %q", eventType, version)
	}
	if len(payload) == 0 {
		return fmt.Errorf("payload is empty")
	}

	var doc interface{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("payload validation failed: %w", err)
	}
	return nil
}
