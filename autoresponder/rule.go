// Package autoresponder holds the trigger store and the matching rule that
// decides which stored response, if any, fires for an incoming message.
package autoresponder

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned by Remove and Toggle when no rule exists for the
// trigger.
var ErrNotFound = errors.New("autoresponder not found")

type MatchMode string

const (
	MatchContains MatchMode = "contains"
	MatchExact    MatchMode = "exact"
)

// Rule is one stored autoresponder. Trigger is the normalized key and is
// not part of the persisted value; the file maps trigger to the rest.
type Rule struct {
	Trigger              string    `json:"-"`
	Response             string    `json:"response"`
	MatchMode            MatchMode `json:"matchMode"`
	DeleteTriggerMessage bool      `json:"deleteTriggerMessage"`
	Enabled              bool      `json:"enabled"`
	CreatedBy            string    `json:"createdBy"`
	CreatedAt            time.Time `json:"createdAt"`
}

// Normalize lower-cases a trigger or message the same way for both sides of
// a comparison.
func Normalize(s string) string {
	return strings.ToLower(s)
}

// Matches reports whether normalized message text fires this rule. Disabled
// rules never match.
func (r Rule) Matches(text string) bool {
	if !r.Enabled {
		return false
	}
	if r.MatchMode == MatchExact {
		return text == r.Trigger
	}
	return strings.Contains(text, r.Trigger)
}

// UnmarshalJSON accepts both the current field names and the ones written by
// the earlier bot (exactMatch, deleteTrigger, createdAt in epoch millis).
func (r *Rule) UnmarshalJSON(data []byte) error {
	var raw struct {
		Response             string          `json:"response"`
		MatchMode            MatchMode       `json:"matchMode"`
		DeleteTriggerMessage *bool           `json:"deleteTriggerMessage"`
		Enabled              *bool           `json:"enabled"`
		CreatedBy            string          `json:"createdBy"`
		CreatedAt            json.RawMessage `json:"createdAt"`

		ExactMatch    bool `json:"exactMatch"`
		DeleteTrigger bool `json:"deleteTrigger"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Response = raw.Response
	r.CreatedBy = raw.CreatedBy

	r.MatchMode = raw.MatchMode
	if r.MatchMode != MatchExact && r.MatchMode != MatchContains {
		r.MatchMode = MatchContains
		if raw.ExactMatch {
			r.MatchMode = MatchExact
		}
	}

	r.DeleteTriggerMessage = raw.DeleteTrigger
	if raw.DeleteTriggerMessage != nil {
		r.DeleteTriggerMessage = *raw.DeleteTriggerMessage
	}

	r.Enabled = true
	if raw.Enabled != nil {
		r.Enabled = *raw.Enabled
	}

	r.CreatedAt = time.Time{}
	if len(raw.CreatedAt) > 0 && string(raw.CreatedAt) != "null" {
		var ms int64
		if err := json.Unmarshal(raw.CreatedAt, &ms); err == nil {
			r.CreatedAt = time.UnixMilli(ms).UTC()
		} else if err := json.Unmarshal(raw.CreatedAt, &r.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}
