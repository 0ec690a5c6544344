package logstash

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dreschagin/item-tracker/pkg/logging"
)

// Config holds configuration for the HTTP collector sink.
type Config struct {
	URL     string        // Collector address, e.g. http://logstash:5000
	Timeout time.Duration // Per-delivery timeout, bounds the HTTP client
}

// Sink posts each record as a JSON body to a Logstash-compatible HTTP
// listener. One POST per record, no retries, no queueing: a failed delivery
// is reported once through the returned error and the record is gone.
type Sink struct {
	url    string
	client *http.Client
}

// NewSink creates an HTTP collector sink.
func NewSink(cfg Config) (*Sink, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("collector URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	return &Sink{
		url:    cfg.URL,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Deliver implements logging.Sink.
func (s *Sink) Deliver(ctx context.Context, rec logging.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build collector request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post record: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused; the collector's body carries no
	// contract beyond the status code.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("collector returned status %d", resp.StatusCode)
	}

	return nil
}
