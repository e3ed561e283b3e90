package genai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/api/generate" {
			t.Errorf("expected /api/generate, got %s", r.URL.Path)
		}

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "llama3.2" {
			t.Errorf("expected model llama3.2, got %s", req.Model)
		}
		if req.Stream {
			t.Error("expected stream=false")
		}

		json.NewEncoder(w).Encode(generateResponse{Response: "generated text"})
	}))
	defer srv.Close()

	got, err := New(srv.URL).Generate(context.Background(), "llama3.2", "some prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "generated text" {
		t.Errorf("unexpected result: %q", got)
	}
}

func TestGenerate_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Generate(context.Background(), "llama3.2", "prompt")
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if ue.Status != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", ue.Status)
	}
	if ue.ModelUnavailable() {
		t.Error("500 must not be classified as model-unavailable")
	}
}

func TestGenerate_FallbackRetriesOnce(t *testing.T) {
	var generateCalls, tagsCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/generate":
			generateCalls++
			var req generateRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.Model == "missing-model" {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"error":"model \"missing-model\" not found"}`))
				return
			}
			json.NewEncoder(w).Encode(generateResponse{Response: "fallback text"})
		case "/api/tags":
			tagsCalls++
			json.NewEncoder(w).Encode(tagsResponse{Models: []Model{
				{Name: "llama3.2:latest", Capabilities: []string{CapCompletion}},
			}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	got, err := New(srv.URL).Generate(context.Background(), "missing-model", "prompt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "fallback text" {
		t.Errorf("unexpected result: %q", got)
	}
	if generateCalls != 2 {
		t.Errorf("expected exactly 2 generate calls, got %d", generateCalls)
	}
	if tagsCalls != 1 {
		t.Errorf("expected exactly 1 tags call, got %d", tagsCalls)
	}
}

func TestGenerate_FallbackExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/generate":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("model not found"))
		case "/api/tags":
			json.NewEncoder(w).Encode(tagsResponse{Models: []Model{
				{Name: "nomic-embed-text", Capabilities: []string{"embedding"}},
			}})
		}
	}))
	defer srv.Close()

	_, err := New(srv.URL).Generate(context.Background(), "missing", "prompt")
	if !errors.Is(err, ErrNoUsableModel) {
		t.Fatalf("expected ErrNoUsableModel, got %v", err)
	}
}

func TestGenerate_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New(srv.URL).Generate(ctx, "llama3.2", "prompt"); err == nil {
		t.Error("expected error for cancelled context")
	}
}
