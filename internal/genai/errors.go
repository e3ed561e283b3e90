package genai

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNoUsableModel is returned when the backend catalog contains no model
// advertising the completion capability.
var ErrNoUsableModel = errors.New("no usable model available")

// UpstreamError is a non-success HTTP response from the generation backend.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "…"
	}
	if body == "" {
		return fmt.Sprintf("backend returned HTTP %d", e.Status)
	}
	return fmt.Sprintf("backend returned HTTP %d: %s", e.Status, body)
}

// ModelUnavailable reports whether the error indicates the requested model
// does not exist or cannot serve generation requests. Only this class of
// failure triggers the fallback resolution.
func (e *UpstreamError) ModelUnavailable() bool {
	if e.Status != http.StatusNotFound && e.Status != http.StatusBadRequest {
		return false
	}
	body := strings.ToLower(e.Body)
	return strings.Contains(body, "not found") || strings.Contains(body, "not support")
}

// IsModelUnavailable reports whether err wraps an UpstreamError for a
// missing or unsupported model.
func IsModelUnavailable(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.ModelUnavailable()
}
