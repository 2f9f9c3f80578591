package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"

	"golang.org/x/net/publicsuffix"

	"github.com/seenimoa/thesisai/internal/infra"
)

// yahooSession holds the cookie jar and crumb that the quoteSummary
// endpoint requires. The chart endpoint works without either.
type yahooSession struct {
	client    *http.Client
	baseURL   string
	cookieURL string

	mu    sync.Mutex
	crumb string
}

func newYahooSession(base *http.Client, baseURL, cookieURL string) (*yahooSession, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	client := &http.Client{Jar: jar, Timeout: infra.HTTPClient.Timeout}
	if base != nil {
		client.Transport = base.Transport
		client.Timeout = base.Timeout
	}
	return &yahooSession{client: client, baseURL: baseURL, cookieURL: cookieURL}, nil
}

// Crumb returns the cached crumb, obtaining a fresh one when none is held.
func (s *yahooSession) Crumb(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.crumb != "" {
		return s.crumb, nil
	}

	// The consent host answers 404 but sets the A3 cookie we need.
	if body, err := infra.DoGet(ctx, s.client, s.cookieURL, nil); err == nil {
		body.Close()
	} else if ctx.Err() != nil {
		return "", ctx.Err()
	}

	body, err := infra.DoGet(ctx, s.client, s.baseURL+"/v1/test/getcrumb", map[string]string{"Accept": "text/plain"})
	if err != nil {
		return "", fmt.Errorf("get crumb: %w", err)
	}
	defer body.Close()
	raw, err := io.ReadAll(io.LimitReader(body, 256))
	if err != nil {
		return "", fmt.Errorf("read crumb: %w", err)
	}
	crumb := strings.TrimSpace(string(raw))
	if crumb == "" || strings.ContainsAny(crumb, "<{ ") {
		return "", errors.New("get crumb: unexpected response")
	}
	s.crumb = crumb
	return crumb, nil
}

// Reset drops the crumb so the next call negotiates a new one.
func (s *yahooSession) Reset() {
	s.mu.Lock()
	s.crumb = ""
	s.mu.Unlock()
}
