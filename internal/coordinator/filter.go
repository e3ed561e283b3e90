package coordinator

import (
	"github.com/lotas/tabhirte/internal/browser"
	"github.com/lotas/tabhirte/internal/types"
)

// filterRestricted drops browser-internal pages from a pushed snapshot.
// The extension filters too, but the coordinator does not trust it.
func filterRestricted(tabs []types.LiveTab) []types.LiveTab {
	out := make([]types.LiveTab, 0, len(tabs))
	for _, tab := range tabs {
		if browser.Restricted(tab.URL) {
			continue
		}
		out = append(out, tab)
	}
	return out
}
