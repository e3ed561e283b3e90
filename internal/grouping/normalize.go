package grouping

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lotas/tabhirte/internal/types"
)

// ErrMalformedResponse means the model output could not be coerced into a
// grouping structure. Retrying the same prompt is not guaranteed to help,
// so callers surface this to the user instead of retrying.
var ErrMalformedResponse = errors.New("malformed model response")

// Proposal maps group name to the ordered tab ids the model placed there.
// It is ephemeral and unvalidated: the model may invent or omit ids, so
// consumers must treat unknown ids as droppable.
type Proposal map[string][]string

// StripFences recovers a JSON payload from a fenced or prose-wrapped
// response by slicing from the first '{' to the last '}' inclusive.
// A no-op when the trimmed text does not start with a fence marker.
// Heuristic: assumes at most one top-level object, which holds for the
// constrained grouping prompt.
func StripFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end < start {
		return trimmed
	}
	return trimmed[start : end+1]
}

// Normalize parses a raw model response into a Proposal. Fails with
// ErrMalformedResponse if the text, after fence-stripping, is not an
// object of string to array-of-strings.
func Normalize(raw string) (Proposal, error) {
	payload := StripFences(raw)
	if payload == "" {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}

	var p Proposal
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return p, nil
}

// ReverseIndex builds the id-to-group mapping from a proposal. If the
// model placed an id in several groups, the last one wins.
func ReverseIndex(p Proposal) map[string]string {
	idx := make(map[string]string)
	for group, ids := range p {
		for _, id := range ids {
			idx[id] = group
		}
	}
	return idx
}

// GroupedTab is a proposal entry with presentation metadata re-attached.
type GroupedTab struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
	Icon  string `json:"icon,omitempty"`
}

// Enrich joins a proposal against a live-tab lookup, restoring the URL and
// icon the grouping prompt excluded. Ids with no match are passed through
// with metadata unset, not dropped.
func Enrich(p Proposal, lookup map[string]types.LiveTab) map[string][]GroupedTab {
	out := make(map[string][]GroupedTab, len(p))
	for group, ids := range p {
		tabs := make([]GroupedTab, 0, len(ids))
		for _, id := range ids {
			gt := GroupedTab{ID: id}
			if tab, ok := lookup[id]; ok {
				gt.Title = tab.Title
				gt.URL = tab.URL
				gt.Icon = tab.Icon
			}
			tabs = append(tabs, gt)
		}
		out[group] = tabs
	}
	return out
}
