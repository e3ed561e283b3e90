package grouping

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// MaxGroups is the ceiling the model is instructed to honor.
	MaxGroups = 8
	// CatchAllGroup absorbs tabs the model cannot classify.
	CatchAllGroup = "Misc"
)

// PromptItem is the id/title pair embedded in the grouping prompt.
// URLs are deliberately excluded: raw browsing content must not appear
// in this prompt.
type PromptItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

const promptHeader = `You are organizing browser tabs into topical groups.

Below is a JSON array of tabs, each with an "id" and a "title". Assign every tab to a group by topic.

Rules:
- Respond with minified JSON only: an object mapping group name to an array of tab ids. No prose, no markdown, no code fences.
- Use at most %d groups.
- Copy tab ids verbatim from the input. Never invent ids.
- Short descriptive group names (1-3 words).
- Put tabs that fit no topic into a group named %q.

Tabs:
%s`

// BuildPrompt constructs the auto-grouping prompt. Deterministic for a
// given item list.
func BuildPrompt(items []PromptItem) string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		enc, _ := json.Marshal(it)
		lines = append(lines, string(enc))
	}
	return fmt.Sprintf(promptHeader, MaxGroups, CatchAllGroup, "["+strings.Join(lines, ",")+"]")
}
