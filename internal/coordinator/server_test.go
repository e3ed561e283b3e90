package coordinator

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lotas/tabhirte/internal/saved"
	"github.com/lotas/tabhirte/internal/types"
	"nhooyr.io/websocket"
)

func TestServer_RequestResponseOverWebSocket(t *testing.T) {
	store, err := saved.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	srv := New(0, store, &stubGen{}, "llama3.2")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	// Fire-and-forget snapshot event: no reply frame.
	snap, _ := json.Marshal(snapshotPayload{Tabs: []types.LiveTab{
		{ID: "1", Title: "A", URL: "https://a.example"},
	}})
	frame, _ := json.Marshal(envelope{Op: OpSnapshot, Data: snap})
	if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}

	// A request gets a correlated reply.
	frame, _ = json.Marshal(envelope{ID: "req-1", Op: OpListSaved})
	if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
		t.Fatalf("write request: %v", err)
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.ID != "req-1" || resp.Op != OpListSaved || !resp.OK {
		t.Errorf("unexpected reply: %+v", resp)
	}
}
