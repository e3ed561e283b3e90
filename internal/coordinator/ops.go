package coordinator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lotas/tabhirte/internal/applog"
	"github.com/lotas/tabhirte/internal/grouping"
	"github.com/lotas/tabhirte/internal/saved"
	"github.com/lotas/tabhirte/internal/summarize"
	"github.com/lotas/tabhirte/internal/types"
)

// Operation tags. Each op has exactly one payload type and one case in
// Dispatch; adding an op means extending both, and an unknown tag is an
// error response, never a silent drop.
const (
	OpSnapshot           = "snapshot"
	OpListSaved          = "list_saved"
	OpSaveTabs           = "save_tabs"
	OpRemoveSaved        = "remove_saved"
	OpUpdateSaved        = "update_saved"
	OpRenameGroup        = "rename_group"
	OpDeleteGroup        = "delete_group"
	OpGroupSaved         = "group_saved"
	OpGroupTabs          = "group_tabs"
	OpApplyGroupingSaved = "apply_grouping_saved"
	OpApplyGroupingTabs  = "apply_grouping_tabs"
	OpSummarizeTabs      = "summarize_tabs"
	OpSummarizePage      = "summarize_page"
)

// envelope is the wire frame for every request.
type envelope struct {
	ID   string          `json:"id"`
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Per-op payloads.
type snapshotPayload struct {
	Tabs []types.LiveTab `json:"tabs"`
}

type saveTabsPayload struct {
	Tabs []types.LiveTab `json:"tabs"`
}

type removeSavedPayload struct {
	ID string `json:"id"`
}

type updateSavedPayload struct {
	ID    string  `json:"id"`
	Title *string `json:"title,omitempty"`
	URL   *string `json:"url,omitempty"`
	Group *string `json:"group,omitempty"`
}

type renameGroupPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type deleteGroupPayload struct {
	Name string `json:"name"`
	Mode string `json:"mode"`
}

type applyGroupingPayload struct {
	Proposal grouping.Proposal `json:"proposal"`
}

type summarizeTabsPayload struct {
	Tabs        []types.LiveTab `json:"tabs,omitempty"` // empty = use cached snapshot
	Instruction string          `json:"instruction,omitempty"`
}

type summarizePagePayload struct {
	Title string `json:"title"`
	URL   string `json:"url,omitempty"` // fetched when Body is empty
	Body  string `json:"body,omitempty"`
	Style string `json:"style,omitempty"`
}

// Response is the reply frame. OK is false exactly when Error is set;
// the error detail is meant to be shown to the user as-is.
type Response struct {
	ID    string `json:"id"`
	Op    string `json:"op"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`

	Items    []types.SavedItem                `json:"items,omitempty"`
	Proposal grouping.Proposal                `json:"proposal,omitempty"`
	Groups   map[string][]grouping.GroupedTab `json:"groups,omitempty"`
	Tabs     []types.LiveTab                  `json:"tabs,omitempty"`
	Applied  int                              `json:"applied,omitempty"`
	Text     string                           `json:"text,omitempty"`
}

func encodeResponse(r Response) ([]byte, error) {
	return json.Marshal(r)
}

func (s *Server) fail(env envelope, err error) (Response, bool) {
	applog.Error("op.fail", err, "op", env.Op)
	return Response{ID: env.ID, Op: env.Op, Error: err.Error()}, true
}

func (s *Server) ok(env envelope, r Response) (Response, bool) {
	r.ID = env.ID
	r.Op = env.Op
	r.OK = true
	return r, true
}

// Dispatch decodes one wire frame and executes its operation. The second
// return is false for fire-and-forget events (snapshot pushes), which get
// no reply frame.
func (s *Server) Dispatch(ctx context.Context, raw []byte) (Response, bool) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return s.fail(env, fmt.Errorf("parse request: %w", err))
	}
	applog.Debug("op.recv", "op", env.Op, "id", env.ID)

	switch env.Op {
	case OpSnapshot:
		var p snapshotPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return s.fail(env, fmt.Errorf("parse snapshot: %w", err))
		}
		s.setSnapshot(filterRestricted(p.Tabs))
		return Response{}, false

	case OpListSaved:
		items, err := s.store.List()
		if err != nil {
			return s.fail(env, err)
		}
		return s.ok(env, Response{Items: items})

	case OpSaveTabs:
		var p saveTabsPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return s.fail(env, fmt.Errorf("parse save_tabs: %w", err))
		}
		return s.mutate(env, func(items []types.SavedItem) ([]types.SavedItem, error) {
			return saved.SaveTabs(items, p.Tabs, s.now()), nil
		})

	case OpRemoveSaved:
		var p removeSavedPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return s.fail(env, fmt.Errorf("parse remove_saved: %w", err))
		}
		return s.mutate(env, func(items []types.SavedItem) ([]types.SavedItem, error) {
			return saved.RemoveItem(items, p.ID), nil
		})

	case OpUpdateSaved:
		var p updateSavedPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return s.fail(env, fmt.Errorf("parse update_saved: %w", err))
		}
		return s.mutate(env, func(items []types.SavedItem) ([]types.SavedItem, error) {
			return saved.PatchItem(items, p.ID, saved.Patch{Title: p.Title, URL: p.URL, Group: p.Group})
		})

	case OpRenameGroup:
		var p renameGroupPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return s.fail(env, fmt.Errorf("parse rename_group: %w", err))
		}
		return s.mutate(env, func(items []types.SavedItem) ([]types.SavedItem, error) {
			return saved.RenameGroup(items, p.From, p.To)
		})

	case OpDeleteGroup:
		var p deleteGroupPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return s.fail(env, fmt.Errorf("parse delete_group: %w", err))
		}
		return s.mutate(env, func(items []types.SavedItem) ([]types.SavedItem, error) {
			return saved.DeleteGroup(items, p.Name, saved.DeleteMode(p.Mode))
		})

	case OpGroupSaved:
		items, err := s.store.List()
		if err != nil {
			return s.fail(env, err)
		}
		prompt := make([]grouping.PromptItem, 0, len(items))
		for _, it := range items {
			prompt = append(prompt, grouping.PromptItem{ID: it.ID, Title: it.Title})
		}
		proposal, err := s.propose(ctx, prompt)
		if err != nil {
			return s.fail(env, err)
		}
		return s.ok(env, Response{Proposal: proposal})

	case OpGroupTabs:
		tabs, err := s.liveTabs()
		if err != nil {
			return s.fail(env, err)
		}
		prompt := make([]grouping.PromptItem, 0, len(tabs))
		lookup := make(map[string]types.LiveTab, len(tabs))
		for _, tab := range tabs {
			prompt = append(prompt, grouping.PromptItem{ID: tab.ID, Title: tab.Title})
			lookup[tab.ID] = tab
		}
		proposal, err := s.propose(ctx, prompt)
		if err != nil {
			return s.fail(env, err)
		}
		// The snapshot used is returned alongside, so the caller can apply
		// against exactly the tab set the proposal was made from.
		return s.ok(env, Response{
			Proposal: proposal,
			Groups:   grouping.Enrich(proposal, lookup),
			Tabs:     tabs,
		})

	case OpApplyGroupingSaved:
		var p applyGroupingPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return s.fail(env, fmt.Errorf("parse apply_grouping_saved: %w", err))
		}
		var applied int
		err := s.store.Mutate(func(items []types.SavedItem) ([]types.SavedItem, error) {
			next, n := saved.ApplyGrouping(items, p.Proposal)
			applied = n
			return next, nil
		})
		if err != nil {
			return s.fail(env, err)
		}
		applog.Info("grouping.applied", "scope", "saved", "count", applied)
		return s.ok(env, Response{Applied: applied})

	case OpApplyGroupingTabs:
		var p applyGroupingPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return s.fail(env, fmt.Errorf("parse apply_grouping_tabs: %w", err))
		}
		tabs, err := s.liveTabs()
		if err != nil {
			return s.fail(env, err)
		}
		var applied int
		err = s.store.Mutate(func(items []types.SavedItem) ([]types.SavedItem, error) {
			next, n := saved.ApplyGroupingFromTabs(items, p.Proposal, tabs, s.now())
			applied = n
			return next, nil
		})
		if err != nil {
			return s.fail(env, err)
		}
		applog.Info("grouping.applied", "scope", "tabs", "count", applied)
		return s.ok(env, Response{Applied: applied})

	case OpSummarizeTabs:
		var p summarizeTabsPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return s.fail(env, fmt.Errorf("parse summarize_tabs: %w", err))
		}
		tabs := p.Tabs
		if len(tabs) == 0 {
			var err error
			if tabs, err = s.liveTabs(); err != nil {
				return s.fail(env, err)
			}
		}
		text, err := summarize.Tabs(ctx, s.gen, s.model, tabs, p.Instruction)
		if err != nil {
			return s.fail(env, err)
		}
		return s.ok(env, Response{Text: text})

	case OpSummarizePage:
		var p summarizePagePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return s.fail(env, fmt.Errorf("parse summarize_page: %w", err))
		}
		title, body := p.Title, p.Body
		if body == "" && p.URL != "" {
			fetchedTitle, fetched, err := summarize.FetchReadable(ctx, p.URL)
			if err != nil {
				return s.fail(env, err)
			}
			body = fetched
			if title == "" {
				title = fetchedTitle
			}
		}
		text, err := summarize.Page(ctx, s.gen, s.model, title, body, summarize.Style(p.Style))
		if err != nil {
			return s.fail(env, err)
		}
		return s.ok(env, Response{Text: text})

	default:
		return s.fail(env, fmt.Errorf("unknown operation %q", env.Op))
	}
}

// propose runs the build-prompt / generate / normalize pipeline.
// Normalization failures are not retried: a second attempt at the same
// prompt is not guaranteed to parse, so the user decides.
func (s *Server) propose(ctx context.Context, items []grouping.PromptItem) (grouping.Proposal, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("nothing to group")
	}
	raw, err := s.gen.Generate(ctx, s.model, grouping.BuildPrompt(items))
	if err != nil {
		return nil, err
	}
	return grouping.Normalize(raw)
}

// mutate wraps a reconcile step in the store transaction and replies with
// the updated collection.
func (s *Server) mutate(env envelope, fn func([]types.SavedItem) ([]types.SavedItem, error)) (Response, bool) {
	if err := s.store.Mutate(fn); err != nil {
		return s.fail(env, err)
	}
	items, err := s.store.List()
	if err != nil {
		return s.fail(env, err)
	}
	return s.ok(env, Response{Items: items})
}
