// Package campaign holds the campaign manifest aggregate and its owned
// substructures (assets, tool calls, posting calendar, influencers).
package campaign

import (
	"encoding/json"
	"fmt"
)

// DefaultTimezone is applied to manifests that do not declare one.
const DefaultTimezone = "Asia/Kolkata"

// Status is the manifest lifecycle state.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusGenerating Status = "generating"
	StatusReady      Status = "ready"
	StatusApproved   Status = "approved"
)

// Statuses lists every valid manifest status.
var Statuses = []Status{StatusDraft, StatusGenerating, StatusReady, StatusApproved}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// AssetType enumerates the creative artifacts an asset can describe.
type AssetType string

const (
	AssetImage       AssetType = "image"
	AssetText        AssetType = "text"
	AssetVideoScript AssetType = "video_script"
	AssetCaption     AssetType = "caption"
	AssetBlog        AssetType = "blog"
	AssetFlyer       AssetType = "flyer"
)

// AssetTypes lists every valid asset type.
var AssetTypes = []AssetType{AssetImage, AssetText, AssetVideoScript, AssetCaption, AssetBlog, AssetFlyer}

// ToolKind names the external capability a tool call invokes.
type ToolKind string

const (
	ToolLLMText          ToolKind = "llm_text"
	ToolImageGenerate    ToolKind = "image_generate"
	ToolWebSearch        ToolKind = "web_search"
	ToolModeration       ToolKind = "moderation"
	ToolStoreAsset       ToolKind = "store_asset"
	ToolComputeEmbedding ToolKind = "compute_embedding"
)

// ToolKinds lists every tool kind a manifest may reference.
var ToolKinds = []ToolKind{ToolLLMText, ToolImageGenerate, ToolWebSearch, ToolModeration, ToolStoreAsset, ToolComputeEmbedding}

// Backoff selects the wait strategy between tool call attempts.
type Backoff string

const (
	BackoffExponential Backoff = "exponential"
	BackoffLinear      Backoff = "linear"
)

// RetryPolicy bounds how often a tool call is attempted.
type RetryPolicy struct {
	MaxAttempts int     `json:"max_attempts"`
	Backoff     Backoff `json:"backoff"`
}

// DefaultRetryPolicy is attached to tool calls that omit one.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: BackoffExponential}
}

// CallError is recorded on a tool call whose execution failed.
type CallError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorCodeExecutionFailed marks a tool call that exhausted its attempts.
const ErrorCodeExecutionFailed = "execution_failed"

// ToolCall is a declarative instruction to invoke one capability.
type ToolCall struct {
	Tool                 ToolKind       `json:"tool"`
	ID                   string         `json:"id"`
	Input                map[string]any `json:"input"`
	ExpectedOutputSchema map[string]any `json:"expected_output_schema"`
	RetryPolicy          RetryPolicy    `json:"retry_policy"`
	SafetyChecks         []string       `json:"safety_checks"`
	RequiresApproval     bool           `json:"requires_approval"`
	Result               map[string]any `json:"result,omitempty"`
	Error                *CallError     `json:"error,omitempty"`
}

// InputString returns the string value of an input parameter.
func (c *ToolCall) InputString(key string) string {
	if c.Input == nil {
		return ""
	}
	s, _ := c.Input[key].(string)
	return s
}

// AssetSafety carries the latest moderation outcome of an asset.
type AssetSafety struct {
	ModerationPassed bool     `json:"moderation_passed"`
	Issues           []string `json:"issues"`
}

// Asset is one generated creative artifact and its generation history.
type Asset struct {
	ID        string         `json:"id"`
	Type      AssetType      `json:"type"`
	Version   int            `json:"version"`
	Seed      *int64         `json:"seed,omitempty"`
	Prompt    string         `json:"prompt"`
	Model     string         `json:"model,omitempty"`
	Provider  string         `json:"provider,omitempty"`
	URL       string         `json:"url,omitempty"`
	Content   string         `json:"content,omitempty"`
	Safety    AssetSafety    `json:"safety"`
	ToolCalls []ToolCall     `json:"tool_calls"`
	Metadata  map[string]any `json:"metadata"`
}

// PostingCalendarItem schedules assets on a channel for a date.
type PostingCalendarItem struct {
	Date             string   `json:"date"`
	Channel          string   `json:"channel"`
	AssetIDs         []string `json:"asset_ids"`
	Caption          string   `json:"caption,omitempty"`
	RequiresApproval bool     `json:"requires_approval"`
}

// UnmarshalJSON defaults RequiresApproval to true when the key is absent.
func (p *PostingCalendarItem) UnmarshalJSON(data []byte) error {
	type plain PostingCalendarItem
	v := plain{RequiresApproval: true}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = PostingCalendarItem(v)
	return nil
}

// Strategy is the creative direction of a campaign.
type Strategy struct {
	CoreConcept    string   `json:"core_concept"`
	Tagline        string   `json:"tagline"`
	TargetAudience string   `json:"target_audience"`
	KeyMessages    []string `json:"key_messages"`
	Tone           string   `json:"tone"`
	Channels       []string `json:"channels"`
}

// Manifest is the single long-lived aggregate describing a campaign.
type Manifest struct {
	CampaignID      string                `json:"campaign_id"`
	Brief           string                `json:"brief"`
	CreatedAt       string                `json:"created_at"`
	Timezone        string                `json:"timezone"`
	Strategy        Strategy              `json:"strategy"`
	AssetPlan       []Asset               `json:"asset_plan"`
	PostingCalendar []PostingCalendarItem `json:"posting_calendar"`
	Influencers     []Influencer          `json:"influencers"`
	Status          Status                `json:"status"`
	Metadata        map[string]any        `json:"metadata"`
	MediaPlan       json.RawMessage       `json:"media_plan,omitempty"`
}

// Document is the wire and persistence shape of a manifest.
type Document struct {
	Manifest *Manifest `json:"campaign_manifest"`
}

// Asset returns a pointer to the first asset with the given id.
func (m *Manifest) Asset(id string) (*Asset, bool) {
	for i := range m.AssetPlan {
		if m.AssetPlan[i].ID == id {
			return &m.AssetPlan[i], true
		}
	}
	return nil, false
}

// AssetIDs returns the asset ids in plan order.
func (m *Manifest) AssetIDs() []string {
	ids := make([]string, 0, len(m.AssetPlan))
	for _, a := range m.AssetPlan {
		ids = append(ids, a.ID)
	}
	return ids
}

// FailedCalls counts tool calls carrying an execution error.
func (m *Manifest) FailedCalls() int {
	n := 0
	for _, a := range m.AssetPlan {
		for _, c := range a.ToolCalls {
			if c.Error != nil {
				n++
			}
		}
	}
	return n
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() (*Document, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	var out Document
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return &out, nil
}

// Summary is the listing view of a stored campaign.
type Summary struct {
	CampaignID string `json:"campaign_id"`
	Brief      string `json:"brief"`
	CreatedAt  string `json:"created_at"`
	Status     Status `json:"status"`
}

// Summarize builds the listing view of m.
func (m *Manifest) Summarize() Summary {
	return Summary{CampaignID: m.CampaignID, Brief: m.Brief, CreatedAt: m.CreatedAt, Status: m.Status}
}
