package types

import "time"

// UngroupedName is the reserved display name for saved tabs without a
// group. It is virtual: never stored, never a valid rename source.
const UngroupedName = "Ungrouped"

// SavedItem is a tab the user chose to keep.
//
// Group is nil for ungrouped items. An empty string would be ambiguous
// with "renamed to empty", so the absence is modeled explicitly.
type SavedItem struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Icon    string  `json:"icon,omitempty"`
	SavedAt int64   `json:"savedAt"` // unix milliseconds
	Group   *string `json:"group,omitempty"`
}

// GroupName returns the display group of the item.
func (s SavedItem) GroupName() string {
	if s.Group == nil {
		return UngroupedName
	}
	return *s.Group
}

// LiveTab is a currently-open browser tab as reported by the extension
// or read from the session store. ID is the browser's transient tab id,
// already stringified.
type LiveTab struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Icon  string `json:"icon,omitempty"`
}

// Snapshot is a set of live tabs plus the moment it was taken.
type Snapshot struct {
	Tabs    []LiveTab
	TakenAt time.Time
}
