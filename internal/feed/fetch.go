// Package feed opens and decodes the upstream case feeds.
package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// StatusError reports a non-200 response from an upstream feed.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d: %s", e.URL, e.StatusCode, e.Body)
}

// Fetcher opens feed sources. Sources starting with http:// or https:// are
// downloaded; anything else is read from the local file system.
type Fetcher struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher whose downloads give up after timeout.
func NewFetcher(timeout time.Duration, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Open returns a reader over the source. The caller closes it.
func (f *Fetcher) Open(ctx context.Context, source string) (io.ReadCloser, error) {
	if source == "" {
		return nil, fmt.Errorf("open feed: empty source")
	}
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		file, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("open feed: %w", err)
		}
		f.logger.Info("reading feed from file", "path", source)
		return file, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	f.logger.Info("downloading feed", "url", source)
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", source, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{URL: source, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return resp.Body, nil
}
