// Package repair coerces loosely structured model output into the canonical
// campaign manifest tree before it is validated and decoded.
package repair

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/campaigner/internal/campaign"
)

// WrapperKey is the single top-level key of a manifest document.
const WrapperKey = "campaign_manifest"

// Env carries the per-call inputs rules may read.
type Env struct {
	Brief string
	Now   func() time.Time
	NewID func() string
}

// Rule is one repair step: Apply runs only when When reports true.
type Rule struct {
	Name  string
	When  func(m map[string]any) bool
	Apply func(m map[string]any, env Env)
}

// Normalizer applies an ordered list of rules to an unwrapped manifest.
type Normalizer struct {
	rules []Rule
	now   func() time.Time
	newID func() string
}

// Option customises a Normalizer.
type Option func(*Normalizer)

// WithClock overrides the time source used for created_at.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) { n.now = now }
}

// WithIDGenerator overrides campaign id generation.
func WithIDGenerator(f func() string) Option {
	return func(n *Normalizer) { n.newID = f }
}

// WithRules replaces the default rule list.
func WithRules(rules []Rule) Option {
	return func(n *Normalizer) { n.rules = rules }
}

// New returns a Normalizer running DefaultRules.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{rules: DefaultRules(), now: time.Now, newID: NewCampaignID}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NewCampaignID returns a fresh campaign identifier.
func NewCampaignID() string {
	return "camp_" + uuid.NewString()[:8]
}

// Normalize returns a repaired copy of raw, still wrapped under WrapperKey.
// The input tree is not modified. Only a missing or non-object wrapper fails.
func (n *Normalizer) Normalize(raw map[string]any, brief string) (map[string]any, error) {
	inner, ok := raw[WrapperKey]
	if !ok {
		return nil, &campaign.SchemaError{Reason: fmt.Sprintf("missing top-level %q key", WrapperKey)}
	}
	m, ok := inner.(map[string]any)
	if !ok {
		return nil, &campaign.SchemaError{Reason: fmt.Sprintf("%q is %T, want object", WrapperKey, inner)}
	}
	m = Clone(m).(map[string]any)

	env := Env{Brief: brief, Now: n.now, NewID: n.newID}
	for _, r := range n.rules {
		if r.When == nil || r.When(m) {
			r.Apply(m, env)
		}
	}
	return map[string]any{WrapperKey: m}, nil
}

// Clone deep-copies a generic JSON tree.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Clone(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Clone(val)
		}
		return out
	default:
		return v
	}
}
