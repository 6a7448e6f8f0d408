package campaign

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Influencer is a partner recommendation. Keys beyond the known ones are
// kept in Extra and written back on marshal.
type Influencer struct {
	Name           string
	Handle         string
	Platform       string
	Followers      string
	EngagementRate string
	Extra          map[string]any
}

var influencerKeys = map[string]bool{
	"name": true, "handle": true, "platform": true, "followers": true, "engagement_rate": true,
}

// MarshalJSON flattens Extra next to the known keys.
func (i Influencer) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(i.Extra)+5)
	for k, v := range i.Extra {
		if !influencerKeys[k] {
			out[k] = v
		}
	}
	out["name"] = i.Name
	out["handle"] = i.Handle
	out["platform"] = i.Platform
	out["followers"] = i.Followers
	if i.EngagementRate != "" {
		out["engagement_rate"] = i.EngagementRate
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts scalar followers/engagement values of any JSON type.
func (i *Influencer) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = InfluencerFromMap(raw)
	return nil
}

// InfluencerFromMap builds an Influencer from a loosely typed record.
func InfluencerFromMap(raw map[string]any) Influencer {
	inf := Influencer{
		Name:           Scalar(raw["name"]),
		Handle:         Scalar(raw["handle"]),
		Platform:       Scalar(raw["platform"]),
		Followers:      Scalar(raw["followers"]),
		EngagementRate: Scalar(raw["engagement_rate"]),
	}
	for k, v := range raw {
		if influencerKeys[k] {
			continue
		}
		if inf.Extra == nil {
			inf.Extra = map[string]any{}
		}
		inf.Extra[k] = v
	}
	return inf
}

// Scalar renders a JSON scalar as a string; nil becomes "".
func Scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
