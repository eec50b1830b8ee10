package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/supporttools/self-healing-trigger/pkg/types"
)

// maxResponseSize caps the stats document fetched over HTTP.
const maxResponseSize = 10 * 1024 * 1024

// HTTP fetches a JSON array of {system, errors, warnings} records. Each
// Systems call performs one fetch (with retries); Stats serves from it.
type HTTP struct {
	url      string
	client   *http.Client
	attempts uint
	delay    time.Duration

	mu   sync.RWMutex
	snap *snapshot
}

// NewHTTP creates an http source. A nil client gets one with cfg.Timeout.
func NewHTTP(cfg types.SourceConfig, client *http.Client) (*HTTP, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: http source requires a url", types.ErrConfiguration)
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTP{
		url:      cfg.URL,
		client:   client,
		attempts: uint(cfg.Retries) + 1,
		delay:    initialBackoff,
	}, nil
}

// Systems fetches the document and returns systems in response order.
func (h *HTTP) Systems(ctx context.Context) ([]string, error) {
	records, err := retry.DoWithData(func() ([]record, error) {
		return h.fetch(ctx)
	}, retry.Context(ctx), retry.RetryIf(retryable(ctx)),
		retry.Attempts(h.attempts), retry.Delay(h.delay), retry.MaxDelay(maxBackoff))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSourceUnavailable, err)
	}

	snap, err := newSnapshot(records)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrSourceUnavailable, h.url, err)
	}

	h.mu.Lock()
	h.snap = snap
	h.mu.Unlock()

	return append([]string(nil), snap.order...), nil
}

// Stats returns the counts from the last fetch.
func (h *HTTP) Stats(ctx context.Context, systemID string) (types.SystemStats, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snap.lookup(systemID)
}

func (h *HTTP) fetch(ctx context.Context) ([]record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, h.url)
	}

	var records []record
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&records); err != nil {
		return nil, malformedError{err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return records, nil
}
