package coordinator

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lotas/tabhirte/internal/applog"
	"github.com/lotas/tabhirte/internal/saved"
	"github.com/lotas/tabhirte/internal/types"
	"nhooyr.io/websocket"
)

// Generator is the slice of the genai client the coordinator needs.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// Server owns the saved-tabs collection and serves the extension over a
// localhost WebSocket. All mutations funnel through this process, so the
// storage layer never sees a second writer.
type Server struct {
	port  int
	store *saved.Store
	gen   Generator
	model string

	mu   sync.Mutex
	conn *websocket.Conn

	snapMu   sync.Mutex
	snapshot *types.Snapshot // latest live-tab set pushed by the extension

	nowFn func() time.Time
}

// New creates a coordinator server.
func New(port int, store *saved.Store, gen Generator, model string) *Server {
	return &Server{port: port, store: store, gen: gen, model: model, nowFn: time.Now}
}

func (s *Server) now() time.Time {
	return s.nowFn()
}

// setSnapshot caches the latest live-tab set from the extension.
func (s *Server) setSnapshot(tabs []types.LiveTab) {
	s.snapMu.Lock()
	s.snapshot = &types.Snapshot{Tabs: tabs, TakenAt: time.Now()}
	s.snapMu.Unlock()
	applog.Info("snapshot.cached", "tabs", len(tabs))
}

// liveTabs returns the cached snapshot, or an error when no extension has
// reported one yet.
func (s *Server) liveTabs() ([]types.LiveTab, error) {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()
	if s.snapshot == nil {
		return nil, fmt.Errorf("no tab snapshot available: extension not connected yet")
	}
	return s.snapshot.Tabs, nil
}

// Handler returns an http.Handler that accepts WebSocket upgrades.
// Only one extension connection is served at a time; a new connection
// replaces the old one.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			applog.Error("ws.accept", err)
			return
		}

		conn.SetReadLimit(16 << 20) // snapshots with many tabs can be large

		ctx := r.Context()
		s.mu.Lock()
		if s.conn != nil {
			applog.Info("ws.replaced")
			s.conn.CloseNow()
		}
		s.conn = conn
		s.mu.Unlock()

		applog.Info("ws.connected", "remote", r.RemoteAddr)

		defer func() {
			s.mu.Lock()
			if s.conn == conn {
				s.conn = nil
			}
			s.mu.Unlock()
			conn.CloseNow()
			applog.Info("ws.disconnected")
		}()

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			resp, reply := s.Dispatch(ctx, data)
			if !reply {
				continue
			}
			out, err := encodeResponse(resp)
			if err != nil {
				applog.Error("ws.encode", err, "op", resp.Op)
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, out); err != nil {
				applog.Error("ws.send", err, "op", resp.Op)
				return
			}
		}
	})
}

// ListenAndServe starts the WebSocket server on the configured port.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/", s.Handler())

	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	applog.Info("server.start", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	return srv.ListenAndServe()
}
