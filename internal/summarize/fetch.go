package summarize

import (
	"context"
	"fmt"
	"net/http"
	nurl "net/url"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/lotas/tabhirte/internal/browser"
)

// userAgent mimics a desktop browser; some sites only serve readable
// markup to recognized browsers.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var fetchClient = &http.Client{Timeout: 15 * time.Second}

// FetchReadable fetches a page and extracts its readable text content,
// returning the article title and text. Browser-internal pages are
// rejected with the same predicate the coordinator applies to snapshots,
// and only http(s) URLs are fetchable.
func FetchReadable(ctx context.Context, pageURL string) (title, text string, err error) {
	if browser.Restricted(pageURL) {
		return "", "", fmt.Errorf("cannot fetch browser-internal page %s", pageURL)
	}
	parsed, err := nurl.Parse(pageURL)
	if err != nil {
		return "", "", fmt.Errorf("parse url %s: %w", pageURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", "", fmt.Errorf("unsupported scheme %q in %s", parsed.Scheme, pageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("create request for %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := fetchClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", "", fmt.Errorf("fetch %s: HTTP %d", pageURL, resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return "", "", fmt.Errorf("extract readable content from %s: %w", pageURL, err)
	}

	return article.Title, article.TextContent, nil
}
