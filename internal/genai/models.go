package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// CapCompletion is the capability a model must advertise to serve
// text-generation requests.
const CapCompletion = "completion"

// Model is one entry in the backend's model catalog.
type Model struct {
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}

// HasCapability reports whether the model advertises the capability.
// A catalog entry with no capability list is treated as completion-capable,
// matching older backends that predate capability reporting.
func (m Model) HasCapability(cap string) bool {
	if len(m.Capabilities) == 0 {
		return cap == CapCompletion
	}
	for _, c := range m.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// modelPreference is the fallback order: fastest first, heavier
// alternatives next, generic last.
var modelPreference = []string{
	"llama3.2",
	"llama3.1",
	"qwen2.5",
	"mistral",
	"gemma2",
	"llama3",
}

type tagsResponse struct {
	Models []Model `json:"models"`
}

// ListModels queries the catalog of models usable with the current backend.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(raw)}
	}

	var result tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode tags response: %w", err)
	}
	return result.Models, nil
}

// ResolveUsableModel picks a completion-capable model from the catalog.
// Preferred names win in order; a ":latest"-tagged variant counts as a
// match for its bare name. If no preferred name matches, the first capable
// model in catalog order is used. Returns ErrNoUsableModel if the catalog
// has no completion-capable entry.
func ResolveUsableModel(models []Model) (string, error) {
	var capable []Model
	for _, m := range models {
		if m.HasCapability(CapCompletion) {
			capable = append(capable, m)
		}
	}
	if len(capable) == 0 {
		return "", ErrNoUsableModel
	}

	for _, pref := range modelPreference {
		for _, m := range capable {
			if m.Name == pref || strings.TrimSuffix(m.Name, ":latest") == pref {
				return m.Name, nil
			}
		}
	}
	return capable[0].Name, nil
}
