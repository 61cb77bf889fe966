package grid

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gridgate/internal/core"
	"gridgate/internal/observability"
)

const (
	// DefaultPollInterval matches the 2 second cadence the grid expects.
	DefaultPollInterval = 2 * time.Second

	// DefaultPollTimeout bounds the previously unbounded wait for a job.
	DefaultPollTimeout = 120 * time.Second

	// DefaultMaxTransientRetries bounds consecutive transport failures
	// tolerated before the poll loop gives up.
	DefaultMaxTransientRetries = 3
)

// Poller drives the submit -> poll -> fetch loop for one job at a time.
// It holds read-only configuration and may be shared across requests;
// every Wait call runs independently.
type Poller struct {
	client              *Client
	interval            time.Duration
	timeout             time.Duration
	maxTransientRetries int
}

// PollerConfig holds poll loop settings. Zero values select the defaults.
type PollerConfig struct {
	Interval            time.Duration
	Timeout             time.Duration
	MaxTransientRetries int
}

// NewPoller creates a poller over the given client.
func NewPoller(client *Client, cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultPollTimeout
	}
	if cfg.MaxTransientRetries <= 0 {
		cfg.MaxTransientRetries = DefaultMaxTransientRetries
	}
	return &Poller{
		client:              client,
		interval:            cfg.Interval,
		timeout:             cfg.Timeout,
		maxTransientRetries: cfg.MaxTransientRetries,
	}
}

// Generate submits the payload and waits for the finished text.
// This is the whole job lifecycle as one call.
func (p *Poller) Generate(ctx context.Context, apiKey string, payload *JobPayload) (string, error) {
	start := time.Now()
	jobID, err := p.client.Submit(ctx, apiKey, payload)
	if err != nil {
		return "", err
	}

	text, err := p.Wait(ctx, apiKey, jobID)
	if err != nil {
		return "", err
	}
	observability.ObserveJobDuration(time.Since(start))
	return text, nil
}

// Wait polls the job status at a fixed interval until the job reports done
// with at least one generation, returning the trimmed text of the first one.
//
// The wait is bounded by the configured timeout and by ctx: a dropped client
// connection cancels the loop before the next poll fires. Transport errors
// are retried up to maxTransientRetries consecutive times; a terminal grid
// error aborts immediately.
func (p *Poller) Wait(ctx context.Context, apiKey, jobID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	transientFailures := 0
	for {
		select {
		case <-ctx.Done():
			return "", p.ctxError(ctx, jobID)
		case <-time.After(p.interval):
		}

		status, err := p.client.Status(ctx, apiKey, jobID)
		observability.IncPollAttempts()
		if err != nil {
			// The status call itself can be interrupted by the deadline.
			if ctx.Err() != nil {
				return "", p.ctxError(ctx, jobID)
			}

			var gatewayErr *core.GatewayError
			if errors.As(err, &gatewayErr) {
				return "", gatewayErr
			}

			transientFailures++
			if transientFailures > p.maxTransientRetries {
				return "", core.NewUpstreamError(fmt.Errorf("job %s: %d consecutive poll failures: %w", jobID, transientFailures, err))
			}
			continue
		}
		transientFailures = 0

		// done with an empty generations list means the job finished
		// without producing output yet; keep polling, the deadline bounds us.
		if status.Done && len(status.Generations) > 0 {
			return strings.TrimSpace(status.Generations[0].Text), nil
		}
	}
}

// ctxError maps context termination to the adapter error taxonomy.
func (p *Poller) ctxError(ctx context.Context, jobID string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return core.NewPollTimeoutError(fmt.Errorf("job %s did not finish within %s", jobID, p.timeout))
	}
	// Client went away; propagate cancellation untouched so the handler
	// can tell a dropped connection from a failure.
	return ctx.Err()
}
