package httpx

import (
	"context"
	"io"
	"net/http"

	"github.com/tdh8316/rosterscan/internal/failure"
)

// DefaultMaxBodyBytes caps how much of any response body is read.
const DefaultMaxBodyBytes = 2 << 20

type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
}

// Fetch issues one GET and reads at most maxBytes of the body. Transport
// failures come back as *failure.NetworkError. The status code is not
// judged here; see Get.
func Fetch(ctx context.Context, client Doer, rawURL, userAgent string, maxBytes int64) (Page, error) {
	page := Page{URL: rawURL}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}

	req, err := NewRequest(ctx, http.MethodGet, rawURL, nil, userAgent)
	if err != nil {
		return page, &failure.ParseError{URL: rawURL, Message: "build request", Cause: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return page, ctx.Err()
		}
		return page, &failure.NetworkError{URL: rawURL, Cause: err}
	}
	defer resp.Body.Close()

	page.StatusCode = resp.StatusCode
	page.FinalURL = rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		page.FinalURL = resp.Request.URL.String()
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		if ctx.Err() != nil {
			return page, ctx.Err()
		}
		return page, &failure.NetworkError{URL: rawURL, Cause: err}
	}
	page.Body = body
	return page, nil
}

// Get is Fetch for HTML pages that must come back 200.
func Get(ctx context.Context, client Doer, rawURL, userAgent string) (Page, error) {
	page, err := Fetch(ctx, client, rawURL, userAgent, DefaultMaxBodyBytes)
	if err != nil {
		return page, err
	}
	switch {
	case page.StatusCode == http.StatusTooManyRequests:
		return page, &failure.RateLimitError{URL: rawURL, Reason: "HTTP 429"}
	case page.StatusCode != http.StatusOK:
		return page, &failure.StatusError{URL: rawURL, StatusCode: page.StatusCode}
	}
	return page, nil
}
