// Package bq wraps the BigQuery client with the two safety layers every
// query passes through: a dry-run cost check against a bytes-scanned
// cap, and an outer preview LIMIT so no query can stream an unbounded
// result set back to the agent.
package bq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/cenkalti/backoff/v4"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

const (
	// DefaultMaxBytesScanned is the dry-run cost cap, 1 GiB.
	DefaultMaxBytesScanned = int64(1) << 30
	// DefaultPreviewLimit bounds the rows any query may return.
	DefaultPreviewLimit = 500
)

// ErrScanTooLarge is wrapped into the error returned when a dry run
// reports more bytes than the configured cap.
var ErrScanTooLarge = errors.New("query would scan too many bytes")

// Config configures a Client.
type Config struct {
	ProjectID string
	// MaxBytesScanned caps the dry-run estimate; zero means the default.
	MaxBytesScanned int64
	// PreviewLimit is the outer row cap applied to executed queries;
	// zero means the default.
	PreviewLimit int
	Logger       *slog.Logger
}

func (c *Config) applyDefaults() error {
	if c.ProjectID == "" {
		return fmt.Errorf("bq: project id is required")
	}
	if c.MaxBytesScanned <= 0 {
		c.MaxBytesScanned = DefaultMaxBytesScanned
	}
	if c.PreviewLimit <= 0 {
		c.PreviewLimit = DefaultPreviewLimit
	}
	return nil
}

// queryRunner is the raw query surface under the safety layers. The
// real implementation speaks to BigQuery; tests inject a fake.
type queryRunner interface {
	dryRun(ctx context.Context, sql string) (int64, error)
	read(ctx context.Context, sql string) ([]map[string]any, error)
}

// Client runs queries against BigQuery with cost and row caps applied.
type Client struct {
	runner queryRunner
	cfg    Config
	log    *slog.Logger

	closer func() error
}

// New creates a Client using application default credentials.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	bqc, err := bigquery.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("bq: create client: %w", err)
	}
	return &Client{
		runner: &bigqueryRunner{bq: bqc, log: cfg.Logger},
		cfg:    cfg,
		log:    cfg.Logger,
		closer: bqc.Close,
	}, nil
}

// Close releases the underlying client.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// DryRun estimates the bytes a query would scan without executing it.
func (c *Client) DryRun(ctx context.Context, sql string) (int64, error) {
	scanned, err := c.runner.dryRun(ctx, sql)
	if err != nil {
		return 0, fmt.Errorf("bq: dry run: %w", err)
	}
	return scanned, nil
}

// ExecuteWithCap dry-runs the query, refuses it if the scan estimate
// exceeds the byte cap, then executes it wrapped in an outer preview
// LIMIT. Rate-limit errors are retried with exponential backoff.
func (c *Client) ExecuteWithCap(ctx context.Context, sql string) ([]map[string]any, error) {
	scanned, err := c.DryRun(ctx, sql)
	if err != nil {
		return nil, err
	}
	if scanned > c.cfg.MaxBytesScanned {
		return nil, fmt.Errorf("%w: estimated %d bytes, cap %d bytes",
			ErrScanTooLarge, scanned, c.cfg.MaxBytesScanned)
	}
	if c.log != nil {
		c.log.Debug("bq: dry run passed", "bytes", scanned, "cap", c.cfg.MaxBytesScanned)
	}

	wrapped := WrapPreview(sql, c.cfg.PreviewLimit)

	var rows []map[string]any
	op := func() error {
		var runErr error
		rows, runErr = c.runner.read(ctx, wrapped)
		if runErr != nil && !isRetryable(runErr) {
			return backoff.Permanent(runErr)
		}
		return runErr
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), 3), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, fmt.Errorf("bq: execute: %w", err)
	}
	return rows, nil
}

// newBackOff is swapped by tests so retries do not sleep.
var newBackOff = func() backoff.BackOff {
	return backoff.NewExponentialBackOff()
}

// bigqueryRunner is the production queryRunner.
type bigqueryRunner struct {
	bq  *bigquery.Client
	log *slog.Logger
}

func (r *bigqueryRunner) dryRun(ctx context.Context, sql string) (int64, error) {
	q := r.bq.Query(sql)
	q.DryRun = true
	job, err := q.Run(ctx)
	if err != nil {
		return 0, err
	}
	status := job.LastStatus()
	if status == nil {
		return 0, fmt.Errorf("dry run returned no status")
	}
	if err := status.Err(); err != nil {
		return 0, err
	}
	return status.Statistics.TotalBytesProcessed, nil
}

func (r *bigqueryRunner) read(ctx context.Context, sql string) ([]map[string]any, error) {
	start := time.Now()
	it, err := r.bq.Query(sql).Read(ctx)
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	for {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		m := make(map[string]any, len(row))
		for k, v := range row {
			m[k] = v
		}
		rows = append(rows, m)
	}
	if r.log != nil {
		r.log.Debug("bq: query returned", "rows", len(rows), "duration", time.Since(start))
	}
	return rows, nil
}

// WrapPreview wraps sql in an outer SELECT with a row cap, unless the
// statement already ends in its own LIMIT clause.
func WrapPreview(sql string, limit int) string {
	trimmed := strings.TrimRight(strings.TrimSpace(sql), ";")
	if hasTrailingLimit(trimmed) {
		return trimmed
	}
	return fmt.Sprintf("SELECT * FROM (%s) AS _t LIMIT %d", trimmed, limit)
}

// hasTrailingLimit reports whether the statement's final clause is a
// LIMIT. A LIMIT buried in a subquery does not count.
func hasTrailingLimit(sql string) bool {
	fields := strings.Fields(strings.ToLower(sql))
	if len(fields) < 2 {
		return false
	}
	return fields[len(fields)-2] == "limit"
}

func isRetryable(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == 403 || gerr.Code == 429 || gerr.Code >= 500
	}
	return false
}
