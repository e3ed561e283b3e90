package coordinator

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lotas/tabhirte/internal/saved"
	"github.com/lotas/tabhirte/internal/types"
)

// stubGen replies with a fixed response and records prompts.
type stubGen struct {
	reply   string
	err     error
	prompts []string
}

func (g *stubGen) Generate(ctx context.Context, model, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func testServer(t *testing.T, gen *stubGen) *Server {
	t.Helper()
	store, err := saved.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	s := New(0, store, gen, "llama3.2")
	s.nowFn = func() time.Time { return time.UnixMilli(123456) }
	return s
}

func dispatch(t *testing.T, s *Server, id, op string, data any) Response {
	t.Helper()
	var raw json.RawMessage
	if data != nil {
		var err error
		raw, err = json.Marshal(data)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
	}
	frame, err := json.Marshal(envelope{ID: id, Op: op, Data: raw})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	resp, reply := s.Dispatch(context.Background(), frame)
	if !reply {
		return Response{}
	}
	return resp
}

func TestDispatch_SnapshotThenGroupTabs(t *testing.T) {
	gen := &stubGen{reply: `{"Research":["1","2"]}`}
	s := testServer(t, gen)

	dispatch(t, s, "", OpSnapshot, snapshotPayload{Tabs: []types.LiveTab{
		{ID: "1", Title: "Paper A", URL: "https://a.example"},
		{ID: "3", Title: "Internal", URL: "about:config"},
	}})

	resp := dispatch(t, s, "r1", OpGroupTabs, nil)
	if !resp.OK {
		t.Fatalf("group_tabs failed: %s", resp.Error)
	}
	if len(resp.Proposal["Research"]) != 2 {
		t.Errorf("proposal not returned: %v", resp.Proposal)
	}
	// Restricted tabs never reach the prompt.
	if len(resp.Tabs) != 1 || resp.Tabs[0].ID != "1" {
		t.Errorf("snapshot not filtered: %+v", resp.Tabs)
	}
	if strings.Contains(gen.prompts[0], "about:config") {
		t.Error("restricted URL leaked into prompt")
	}
	// Enrichment restores URL for known ids, passes unknown ids through.
	research := resp.Groups["Research"]
	if len(research) != 2 {
		t.Fatalf("enriched groups wrong: %+v", resp.Groups)
	}
}

func TestDispatch_ApplyGroupingTabs_ClosedTabSkipped(t *testing.T) {
	gen := &stubGen{}
	s := testServer(t, gen)

	dispatch(t, s, "", OpSnapshot, snapshotPayload{Tabs: []types.LiveTab{
		{ID: "1", Title: "Open tab", URL: "https://a.example"},
	}})

	resp := dispatch(t, s, "r2", OpApplyGroupingTabs, applyGroupingPayload{
		Proposal: map[string][]string{"Research": {"1", "2"}},
	})
	if !resp.OK {
		t.Fatalf("apply failed: %s", resp.Error)
	}
	if resp.Applied != 1 {
		t.Errorf("applied = %d, want 1 (closed tab silently ignored)", resp.Applied)
	}

	list := dispatch(t, s, "r3", OpListSaved, nil)
	if len(list.Items) != 1 || list.Items[0].ID != "1" || list.Items[0].GroupName() != "Research" {
		t.Errorf("unexpected collection: %+v", list.Items)
	}
}

func TestDispatch_GroupTabs_NoSnapshot(t *testing.T) {
	s := testServer(t, &stubGen{reply: "{}"})
	resp := dispatch(t, s, "r1", OpGroupTabs, nil)
	if resp.OK {
		t.Fatal("expected failure without a snapshot")
	}
	if !strings.Contains(resp.Error, "snapshot") {
		t.Errorf("unhelpful error: %q", resp.Error)
	}
}

func TestDispatch_GroupSaved_MalformedModelOutput(t *testing.T) {
	gen := &stubGen{reply: "Sure! Here you go: {not json"}
	s := testServer(t, gen)

	dispatch(t, s, "", OpSaveTabs, saveTabsPayload{Tabs: []types.LiveTab{{ID: "5", Title: "T"}}})

	resp := dispatch(t, s, "r1", OpGroupSaved, nil)
	if resp.OK {
		t.Fatal("expected malformed-response failure")
	}
	if !strings.Contains(resp.Error, "malformed model response") {
		t.Errorf("error not surfaced as malformed response: %q", resp.Error)
	}
}

func TestDispatch_RenameGroupGuard(t *testing.T) {
	s := testServer(t, &stubGen{})
	resp := dispatch(t, s, "r1", OpRenameGroup, renameGroupPayload{From: types.UngroupedName, To: "X"})
	if resp.OK {
		t.Fatal("expected invalid-operation failure")
	}
	if !strings.Contains(resp.Error, "invalid operation") {
		t.Errorf("unexpected error detail: %q", resp.Error)
	}
}

func TestDispatch_SaveThenDeleteGroup(t *testing.T) {
	s := testServer(t, &stubGen{})

	dispatch(t, s, "", OpSnapshot, snapshotPayload{Tabs: []types.LiveTab{
		{ID: "1", Title: "A", URL: "https://a.example"},
		{ID: "2", Title: "B", URL: "https://b.example"},
	}})
	dispatch(t, s, "r1", OpApplyGroupingTabs, applyGroupingPayload{
		Proposal: map[string][]string{"Work": {"1", "2"}},
	})

	resp := dispatch(t, s, "r2", OpDeleteGroup, deleteGroupPayload{Name: "Work", Mode: "ungroup"})
	if !resp.OK {
		t.Fatalf("delete_group failed: %s", resp.Error)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("ungroup mode must preserve count, got %d", len(resp.Items))
	}
	for _, it := range resp.Items {
		if it.Group != nil {
			t.Errorf("item still grouped: %+v", it)
		}
	}

	resp = dispatch(t, s, "r3", OpDeleteGroup, deleteGroupPayload{Name: types.UngroupedName, Mode: "remove"})
	if !resp.OK {
		t.Fatalf("delete_group failed: %s", resp.Error)
	}
	if len(resp.Items) != 0 {
		t.Errorf("remove mode left items: %+v", resp.Items)
	}
}

func TestDispatch_UpdateSaved_NotFound(t *testing.T) {
	s := testServer(t, &stubGen{})
	title := "New"
	resp := dispatch(t, s, "r1", OpUpdateSaved, updateSavedPayload{ID: "ghost", Title: &title})
	if resp.OK {
		t.Fatal("expected not-found failure")
	}
	if !strings.Contains(resp.Error, "not found") {
		t.Errorf("unexpected error detail: %q", resp.Error)
	}
}

func TestDispatch_RemoveSaved_AbsentIsOK(t *testing.T) {
	s := testServer(t, &stubGen{})
	resp := dispatch(t, s, "r1", OpRemoveSaved, removeSavedPayload{ID: "ghost"})
	if !resp.OK {
		t.Fatalf("no-op removal must succeed, got %s", resp.Error)
	}
}

func TestDispatch_UnknownOp(t *testing.T) {
	s := testServer(t, &stubGen{})
	resp := dispatch(t, s, "r1", "frobnicate", nil)
	if resp.OK {
		t.Fatal("expected unknown-op failure")
	}
	if !strings.Contains(resp.Error, "frobnicate") {
		t.Errorf("error should name the op: %q", resp.Error)
	}
}

func TestDispatch_SummarizeTabs_UsesSnapshot(t *testing.T) {
	gen := &stubGen{reply: "A recap."}
	s := testServer(t, gen)

	dispatch(t, s, "", OpSnapshot, snapshotPayload{Tabs: []types.LiveTab{
		{ID: "1", Title: "Go blog", URL: "https://go.dev"},
	}})

	resp := dispatch(t, s, "r1", OpSummarizeTabs, summarizeTabsPayload{Instruction: "Keep it short."})
	if !resp.OK {
		t.Fatalf("summarize_tabs failed: %s", resp.Error)
	}
	if resp.Text != "A recap." {
		t.Errorf("unexpected text: %q", resp.Text)
	}
	if !strings.Contains(gen.prompts[0], "Keep it short.") {
		t.Error("instruction not forwarded")
	}
}
