package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	fahrpcerrors "github.com/Bandokii/fahrpc/internal/errors"
)

// Status is the result of one successful poll.
type Status struct {
	Endpoint   string
	StatusCode int
	Latency    time.Duration
}

// Poller checks whether Folding@Home is reachable.
type Poller interface {
	Poll(ctx context.Context) (Status, error)
}

// PollerFunc adapts a function to Poller.
type PollerFunc func(ctx context.Context) (Status, error)

// Poll implements Poller.
func (f PollerFunc) Poll(ctx context.Context) (Status, error) {
	return f(ctx)
}

// HTTPPoller probes the Folding@Home web control endpoint.
type HTTPPoller struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPPoller returns a poller for url with a per-request timeout.
func NewHTTPPoller(url string, timeout time.Duration) *HTTPPoller {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DisableKeepAlives = true
	return &HTTPPoller{
		url:     url,
		timeout: timeout,
		client:  &http.Client{Transport: transport},
	}
}

// Poll issues a GET and reports any transport failure or 5xx response as a
// *errors.ConnectionError.
func (p *HTTPPoller) Poll(ctx context.Context) (Status, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return Status{}, fahrpcerrors.NewConnectionError("invalid endpoint", err).
			WithEndpoint(p.url).WithRetryable(false)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return Status{}, classify(err).WithEndpoint(p.url)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	status := Status{Endpoint: p.url, StatusCode: resp.StatusCode, Latency: time.Since(start)}
	if resp.StatusCode >= http.StatusInternalServerError {
		return status, fahrpcerrors.NewConnectionError(
			fmt.Sprintf("unexpected status %s", resp.Status), nil).WithEndpoint(p.url)
	}
	return status, nil
}

func classify(err error) *fahrpcerrors.ConnectionError {
	var netErr net.Error
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return fahrpcerrors.NewConnectionError("Connection refused",
			fmt.Errorf("%w: %w", fahrpcerrors.ErrConnectionRefused, err))
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return fahrpcerrors.NewConnectionError("Connection timed out",
			fmt.Errorf("%w: %w", fahrpcerrors.ErrTimeout, err))
	default:
		return fahrpcerrors.NewConnectionError("Connection failed", err)
	}
}
