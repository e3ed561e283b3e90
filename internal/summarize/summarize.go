package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/lotas/tabhirte/internal/types"
)

// Generator is the slice of the genai client summarization needs.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// maxTextLen caps page body text before prompt assembly. Applied before
// concatenation so the prompt itself stays bounded.
const maxTextLen = 8000

// Style selects the shape of a single-page summary.
type Style string

const (
	// StyleBullets asks for a bullet-point list of key takeaways.
	StyleBullets Style = "bullets"
	// StyleBlurb asks for a short paragraph.
	StyleBlurb Style = "blurb"
)

const tabsPromptHeader = `Summarize what the user was researching across these browser tabs. Provide a concise recap grouped by theme.

Tabs:
%s`

// Tabs generates a recap over several tabs. instruction, when non-empty,
// is appended as extra steering for the model.
func Tabs(ctx context.Context, gen Generator, model string, tabs []types.LiveTab, instruction string) (string, error) {
	if len(tabs) == 0 {
		return "", fmt.Errorf("no tabs to summarize")
	}

	var b strings.Builder
	for _, tab := range tabs {
		fmt.Fprintf(&b, "- %s (%s)\n", tab.Title, tab.URL)
	}
	prompt := fmt.Sprintf(tabsPromptHeader, b.String())
	if instruction != "" {
		prompt += "\n" + instruction
	}
	return gen.Generate(ctx, model, prompt)
}

const pagePromptBullets = `Summarize the following page as a short list of bullet points with the key takeaways.

Title: %s

---

%s`

const pagePromptBlurb = `Summarize the following page in one short paragraph.

Title: %s

---

%s`

// Page generates a summary of a single page. body is hard-truncated to
// maxTextLen before the prompt is assembled.
func Page(ctx context.Context, gen Generator, model, title, body string, style Style) (string, error) {
	if len(body) > maxTextLen {
		body = body[:maxTextLen]
	}

	tmpl := pagePromptBlurb
	if style == StyleBullets {
		tmpl = pagePromptBullets
	}
	return gen.Generate(ctx, model, fmt.Sprintf(tmpl, title, body))
}
