// internal/models/profile.go
package models

import (
	"encoding/json"
	"strings"
)

const DefaultRegion = "US"

// ShopperProfile holds the recognized preference signals of a shopper. Keys the
// engine does not know about are kept in Extra and otherwise ignored.
type ShopperProfile struct {
	PreferredCategories []string `json:"preferred_categories,omitempty"`
	PreferredCategory   string   `json:"preferredCategory,omitempty"`
	Interests           []string `json:"interests,omitempty"`
	Budget              string   `json:"budget,omitempty"`
	Intent              string   `json:"intent,omitempty"`
	Device              string   `json:"device,omitempty"`
	Region              string   `json:"region,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var knownProfileKeys = map[string]bool{
	"preferred_categories": true,
	"preferredCategory":    true,
	"interests":            true,
	"budget":               true,
	"intent":               true,
	"device":               true,
	"region":               true,
}

func (p *ShopperProfile) UnmarshalJSON(data []byte) error {
	type plain ShopperProfile
	var known plain
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = ShopperProfile(known)
	p.Extra = nil
	for key, value := range raw {
		if knownProfileKeys[key] {
			continue
		}
		if p.Extra == nil {
			p.Extra = make(map[string]json.RawMessage)
		}
		p.Extra[key] = value
	}
	return nil
}

// Normalized trims every field, lowercases budget and intent, and fills the
// default region. Extra is dropped.
func (p ShopperProfile) Normalized() ShopperProfile {
	out := ShopperProfile{
		PreferredCategories: trimAll(p.PreferredCategories),
		PreferredCategory:   strings.TrimSpace(p.PreferredCategory),
		Interests:           trimAll(p.Interests),
		Budget:              strings.ToLower(strings.TrimSpace(p.Budget)),
		Intent:              strings.ToLower(strings.TrimSpace(p.Intent)),
		Device:              strings.ToLower(strings.TrimSpace(p.Device)),
		Region:              strings.ToUpper(strings.TrimSpace(p.Region)),
	}
	if out.Region == "" {
		out.Region = DefaultRegion
	}
	return out
}

// ExplicitCategories lists the categories the shopper named directly, in the
// order they were given: preferred_categories, preferredCategory, interests.
func (p ShopperProfile) ExplicitCategories() []string {
	out := make([]string, 0, len(p.PreferredCategories)+len(p.Interests)+1)
	out = append(out, p.PreferredCategories...)
	if p.PreferredCategory != "" {
		out = append(out, p.PreferredCategory)
	}
	out = append(out, p.Interests...)
	return out
}

func trimAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
