package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lotas/tabhirte/internal/applog"
)

// Client issues single-shot generation requests to an Ollama-compatible
// backend. The zero value is not usable; construct with New.
type Client struct {
	host string
	http *http.Client
}

// New creates a client for the given backend host, e.g.
// "http://localhost:11434".
func New(host string) *Client {
	return &Client{
		host: host,
		http: &http.Client{Timeout: 120 * time.Second},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate sends the prompt to the hinted model and returns the generated
// text. If the hinted model is unavailable, it queries the model catalog,
// resolves a usable substitute by preference order, and retries exactly
// once. The resolved model is not cached across calls.
func (c *Client) Generate(ctx context.Context, model, prompt string) (string, error) {
	text, err := c.generate(ctx, model, prompt)
	if err == nil || !IsModelUnavailable(err) {
		return text, err
	}

	applog.Info("genai.fallback", "model", model)
	models, lerr := c.ListModels(ctx)
	if lerr != nil {
		return "", fmt.Errorf("list models for fallback: %w", lerr)
	}
	resolved, rerr := ResolveUsableModel(models)
	if rerr != nil {
		return "", rerr
	}
	applog.Info("genai.resolved", "model", resolved)
	return c.generate(ctx, resolved, prompt)
}

func (c *Client) generate(ctx context.Context, model, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &UpstreamError{Status: resp.StatusCode, Body: string(raw)}
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return result.Response, nil
}
