// Package schema validates normalized manifest trees and converts them into
// the typed campaign document.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mohammad-safakhou/campaigner/internal/campaign"
)

//go:embed manifest_schema.json
var manifestSchemaBytes []byte

var (
	manifestSchemaOnce sync.Once
	manifestCompiled   *jsonschema.Schema
	manifestSchemaErr  error
)

// ManifestSchema returns a copy of the raw manifest JSON schema.
func ManifestSchema() []byte {
	return append([]byte(nil), manifestSchemaBytes...)
}

func compiledManifestSchema() (*jsonschema.Schema, error) {
	manifestSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("campaign_manifest.json", bytes.NewReader(manifestSchemaBytes)); err != nil {
			manifestSchemaErr = fmt.Errorf("add manifest schema: %w", err)
			return
		}
		manifestCompiled, manifestSchemaErr = compiler.Compile("campaign_manifest.json")
	})
	return manifestCompiled, manifestSchemaErr
}

// Validate checks a normalized manifest tree and decodes it into a typed
// document. Validation is all-or-nothing; the first violation is reported as
// a *campaign.ValidationError.
func Validate(tree map[string]any) (*campaign.Document, error) {
	sch, err := compiledManifestSchema()
	if err != nil {
		return nil, err
	}
	if err := sch.Validate(tree); err != nil {
		return nil, toValidationError(err)
	}

	raw, err := json.Marshal(tree)
	if err != nil {
		return nil, &campaign.ValidationError{Message: fmt.Sprintf("encode manifest: %v", err)}
	}
	var doc campaign.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &campaign.ValidationError{Message: fmt.Sprintf("decode manifest: %v", err)}
	}
	if err := checkInvariants(doc.Manifest); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ValidateDocument re-validates an already typed document, e.g. before it
// is persisted.
func ValidateDocument(doc *campaign.Document) error {
	if doc == nil || doc.Manifest == nil {
		return &campaign.ValidationError{Field: "campaign_manifest", Message: "manifest is empty"}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("decode manifest: %w", err)
	}
	_, err = Validate(tree)
	return err
}

func checkInvariants(m *campaign.Manifest) error {
	seen := make(map[string]int, len(m.AssetPlan))
	for i, a := range m.AssetPlan {
		if j, dup := seen[a.ID]; dup {
			return &campaign.ValidationError{
				Field:   fmt.Sprintf("campaign_manifest.asset_plan[%d].id", i),
				Message: fmt.Sprintf("duplicate asset id %q (also at index %d)", a.ID, j),
			}
		}
		seen[a.ID] = i

		calls := make(map[string]bool, len(a.ToolCalls))
		for k, c := range a.ToolCalls {
			if calls[c.ID] {
				return &campaign.ValidationError{
					Field:   fmt.Sprintf("campaign_manifest.asset_plan[%d].tool_calls[%d].id", i, k),
					Message: fmt.Sprintf("duplicate tool call id %q", c.ID),
				}
			}
			calls[c.ID] = true
		}
	}
	return nil
}

func toValidationError(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &campaign.ValidationError{Message: err.Error()}
	}
	leaves := collectLeaves(ve, nil)
	sort.SliceStable(leaves, func(i, j int) bool {
		if leaves[i].InstanceLocation != leaves[j].InstanceLocation {
			return leaves[i].InstanceLocation < leaves[j].InstanceLocation
		}
		return leaves[i].KeywordLocation < leaves[j].KeywordLocation
	})
	first := leaves[0]
	return &campaign.ValidationError{Field: FieldPath(first.InstanceLocation), Message: first.Message}
}

func collectLeaves(ve *jsonschema.ValidationError, out []*jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return append(out, ve)
	}
	for _, c := range ve.Causes {
		out = collectLeaves(c, out)
	}
	return out
}

// FieldPath converts a JSON pointer into a dotted path with index brackets,
// e.g. /campaign_manifest/asset_plan/0/type -> campaign_manifest.asset_plan[0].type.
func FieldPath(pointer string) string {
	pointer = strings.TrimPrefix(pointer, "/")
	if pointer == "" {
		return "$"
	}
	var b strings.Builder
	for i, part := range strings.Split(pointer, "/") {
		part = strings.ReplaceAll(strings.ReplaceAll(part, "~1", "/"), "~0", "~")
		if _, err := strconv.Atoi(part); err == nil && i > 0 {
			b.WriteString("[" + part + "]")
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(part)
	}
	return b.String()
}
