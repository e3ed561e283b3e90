package saved

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/lotas/tabhirte/internal/grouping"
	"github.com/lotas/tabhirte/internal/types"
)

// ErrInvalidOperation marks an illegal reconciliation request, such as
// renaming the reserved Ungrouped group.
var ErrInvalidOperation = errors.New("invalid operation")

// NotFoundError means a patch target does not exist in the collection.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("saved item %q not found", e.ID)
}

// DeleteMode selects what happens to a deleted group's members.
type DeleteMode string

const (
	// DeleteRemove deletes every member from the collection.
	DeleteRemove DeleteMode = "remove"
	// DeleteUngroup clears the group field, demoting members to Ungrouped.
	DeleteUngroup DeleteMode = "ungroup"
)

// NewItem mints a SavedItem from a live tab with a collision-resistant
// composite id (source id + timestamp + random suffix).
func NewItem(tab types.LiveTab, now time.Time) types.SavedItem {
	title := tab.Title
	if title == "" {
		title = "Untitled"
	}
	return types.SavedItem{
		ID:      fmt.Sprintf("%s-%d-%04d", tab.ID, now.UnixMilli(), rand.Intn(10000)),
		Title:   title,
		URL:     tab.URL,
		Icon:    tab.Icon,
		SavedAt: now.UnixMilli(),
	}
}

// SaveTabs prepends freshly-minted items for the given tabs (recency-first
// convention). Ids are synthesized, so this path never collides with
// existing entries.
func SaveTabs(items []types.SavedItem, tabs []types.LiveTab, now time.Time) []types.SavedItem {
	minted := make([]types.SavedItem, 0, len(tabs))
	for _, tab := range tabs {
		minted = append(minted, NewItem(tab, now))
	}
	return append(minted, items...)
}

// ApplyGrouping overlays a proposal onto already-saved items: every item
// whose id appears in the proposal gets its group set to the mapped name.
// Items absent from the proposal are untouched; proposal ids matching no
// item are dropped. Returns the next collection and the number of items
// regrouped.
func ApplyGrouping(items []types.SavedItem, p grouping.Proposal) ([]types.SavedItem, int) {
	idx := grouping.ReverseIndex(p)
	next := make([]types.SavedItem, len(items))
	applied := 0
	for i, it := range items {
		if group, ok := idx[it.ID]; ok {
			g := group
			it.Group = &g
			applied++
		}
		next[i] = it
	}
	return next, applied
}

// ApplyGroupingFromTabs merges a proposal sourced from open tabs into the
// saved collection. Each proposal id is looked up in the live tab set;
// tabs closed since the proposal was made are skipped silently. Matching
// tabs are upserted keyed by the live tab id: an existing entry keeps its
// SavedAt but takes fresh title/url/icon, a new entry is appended. The
// result never contains two entries with the same id.
//
// Note the live tab id is reused verbatim as the saved id on this path,
// unlike the synthesized ids of SaveTabs. A recycled browser tab id can
// therefore overwrite an unrelated entry saved this way earlier.
func ApplyGroupingFromTabs(items []types.SavedItem, p grouping.Proposal, tabs []types.LiveTab, now time.Time) ([]types.SavedItem, int) {
	byID := make(map[string]int, len(items))
	for i, it := range items {
		byID[it.ID] = i
	}
	tabByID := make(map[string]types.LiveTab, len(tabs))
	for _, t := range tabs {
		tabByID[t.ID] = t
	}

	next := make([]types.SavedItem, len(items))
	copy(next, items)

	applied := 0
	for id, group := range grouping.ReverseIndex(p) {
		tab, open := tabByID[id]
		if !open {
			continue
		}
		g := group
		title := tab.Title
		if title == "" {
			title = "Untitled"
		}
		if i, ok := byID[id]; ok {
			next[i].Title = title
			next[i].URL = tab.URL
			next[i].Icon = tab.Icon
			next[i].Group = &g
		} else {
			next = append(next, types.SavedItem{
				ID:      id,
				Title:   title,
				URL:     tab.URL,
				Icon:    tab.Icon,
				SavedAt: now.UnixMilli(),
				Group:   &g,
			})
			byID[id] = len(next) - 1
		}
		applied++
	}
	return next, applied
}

// RenameGroup moves every member of group from to group to. Renaming onto
// an existing group merges the two; group identity is nothing but the
// shared name. The reserved Ungrouped name cannot be a rename source.
func RenameGroup(items []types.SavedItem, from, to string) ([]types.SavedItem, error) {
	if from == types.UngroupedName {
		return nil, fmt.Errorf("%w: cannot rename the reserved %q group", ErrInvalidOperation, types.UngroupedName)
	}
	next := make([]types.SavedItem, len(items))
	for i, it := range items {
		if it.Group != nil && *it.Group == from {
			t := to
			it.Group = &t
		}
		next[i] = it
	}
	return next, nil
}

// DeleteGroup disposes of a group. Membership is group == name, or an
// unset group when name is the reserved Ungrouped name. DeleteRemove
// drops every member; DeleteUngroup keeps them and clears the group.
func DeleteGroup(items []types.SavedItem, name string, mode DeleteMode) ([]types.SavedItem, error) {
	belongs := func(it types.SavedItem) bool {
		if name == types.UngroupedName {
			return it.Group == nil
		}
		return it.Group != nil && *it.Group == name
	}

	switch mode {
	case DeleteRemove:
		next := make([]types.SavedItem, 0, len(items))
		for _, it := range items {
			if !belongs(it) {
				next = append(next, it)
			}
		}
		return next, nil
	case DeleteUngroup:
		next := make([]types.SavedItem, len(items))
		for i, it := range items {
			if belongs(it) {
				it.Group = nil
			}
			next[i] = it
		}
		return next, nil
	default:
		return nil, fmt.Errorf("%w: unknown delete mode %q", ErrInvalidOperation, mode)
	}
}

// RemoveItem drops the item with the given id. Removing an absent id is a
// valid empty-effect outcome, not an error.
func RemoveItem(items []types.SavedItem, id string) []types.SavedItem {
	next := make([]types.SavedItem, 0, len(items))
	for _, it := range items {
		if it.ID != id {
			next = append(next, it)
		}
	}
	return next
}

// Patch is a partial-field update for a saved item. Nil fields are left
// unchanged; Group set to a pointer-to-nil semantics is not needed here,
// use DeleteGroup/ApplyGrouping for group changes in bulk.
type Patch struct {
	Title *string
	URL   *string
	Group *string
}

// PatchItem merges a partial update into the item with the given id.
// Fails with NotFoundError if no item matches.
func PatchItem(items []types.SavedItem, id string, p Patch) ([]types.SavedItem, error) {
	next := make([]types.SavedItem, len(items))
	copy(next, items)
	for i := range next {
		if next[i].ID != id {
			continue
		}
		if p.Title != nil {
			next[i].Title = *p.Title
		}
		if p.URL != nil {
			next[i].URL = *p.URL
		}
		if p.Group != nil {
			g := *p.Group
			next[i].Group = &g
		}
		return next, nil
	}
	return nil, &NotFoundError{ID: id}
}
