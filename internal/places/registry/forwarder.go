package registry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mohammed-shakir/geodb-places/internal/core/observability"
	"github.com/mohammed-shakir/geodb-places/internal/places"
)

const defaultPoll = 100 * time.Millisecond

// Forwarder posts registered groups to an external places host.
type Forwarder struct {
	url    string
	hc     *http.Client
	logger *slog.Logger
	poll   time.Duration
}

func NewForwarder(hostURL string, hc *http.Client, logger *slog.Logger) *Forwarder {
	if hc == nil {
		hc = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{
		url:    strings.TrimRight(hostURL, "/") + "/places",
		hc:     hc,
		logger: logger,
		poll:   defaultPoll,
	}
}

// WaitReady blocks until the host answers any HTTP response on its places
// endpoint, or ctx ends.
func (f *Forwarder) WaitReady(ctx context.Context) error {
	t := time.NewTicker(f.poll)
	defer t.Stop()
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
		if err != nil {
			return fmt.Errorf("build readiness request: %w", err)
		}
		resp, err := f.hc.Do(req)
		if err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			f.logger.DebugContext(ctx, "places host ready", "url", f.url)
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for places host %s: %w", f.url, ctx.Err())
		case <-t.C:
		}
	}
}

func (f *Forwarder) GroupAdded(ctx context.Context, g *places.PlaceGroup, _ []string) error {
	body, err := g.MarshalGeoJSON()
	if err != nil {
		return fmt.Errorf("encode group %q: %w", g.ID, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build forward request: %w", err)
	}
	req.Header.Set("Content-Type", "application/geo+json")

	start := time.Now()
	resp, err := f.hc.Do(req)
	if err != nil {
		observability.ObserveUpstreamLatency("places_host", "post_group", err, time.Since(start).Seconds())
		return fmt.Errorf("forward group %q: %w", g.ID, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		err = fmt.Errorf("forward group %q: places host returned %d", g.ID, resp.StatusCode)
	}
	observability.ObserveUpstreamLatency("places_host", "post_group", err, time.Since(start).Seconds())
	return err
}
