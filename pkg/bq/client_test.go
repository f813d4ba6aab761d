package bq

import (
	"context"
	"errors"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

// fakeRunner scripts the raw query surface: a fixed dry-run estimate
// and a queue of read outcomes, consumed one per attempt.
type fakeRunner struct {
	dryBytes int64
	dryErr   error

	readErrs []error
	rows     []map[string]any

	dryCalls  int
	readCalls int
	lastSQL   string
}

func (f *fakeRunner) dryRun(_ context.Context, sql string) (int64, error) {
	f.dryCalls++
	return f.dryBytes, f.dryErr
}

func (f *fakeRunner) read(_ context.Context, sql string) ([]map[string]any, error) {
	f.readCalls++
	f.lastSQL = sql
	if len(f.readErrs) > 0 {
		err := f.readErrs[0]
		f.readErrs = f.readErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.rows, nil
}

func newTestClient(t *testing.T, runner queryRunner, cfg Config) *Client {
	t.Helper()
	require.NoError(t, cfg.applyDefaults())
	return &Client{runner: runner, cfg: cfg, log: nil}
}

func instantBackOff(t *testing.T) {
	t.Helper()
	prev := newBackOff
	newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	t.Cleanup(func() { newBackOff = prev })
}

func TestExecuteWithCapRefusesLargeScan(t *testing.T) {
	runner := &fakeRunner{dryBytes: 2 << 30}
	c := newTestClient(t, runner, Config{ProjectID: "p", MaxBytesScanned: 1 << 30})

	_, err := c.ExecuteWithCap(context.Background(), "SELECT order_id FROM orders")
	require.ErrorIs(t, err, ErrScanTooLarge)
	// The query itself must never run once the cap refused it.
	require.Equal(t, 1, runner.dryCalls)
	require.Zero(t, runner.readCalls)
}

func TestExecuteWithCapRunsWrapped(t *testing.T) {
	runner := &fakeRunner{
		dryBytes: 1 << 20,
		rows:     []map[string]any{{"order_id": int64(1)}},
	}
	c := newTestClient(t, runner, Config{ProjectID: "p", PreviewLimit: 100})

	rows, err := c.ExecuteWithCap(context.Background(), "SELECT order_id FROM orders")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "SELECT * FROM (SELECT order_id FROM orders) AS _t LIMIT 100", runner.lastSQL)
}

func TestExecuteWithCapRetriesRateLimit(t *testing.T) {
	instantBackOff(t)
	runner := &fakeRunner{
		dryBytes: 1 << 20,
		readErrs: []error{
			&googleapi.Error{Code: 429, Message: "rate limit exceeded"},
			&googleapi.Error{Code: 429, Message: "rate limit exceeded"},
			nil,
		},
		rows: []map[string]any{{"n": int64(7)}},
	}
	c := newTestClient(t, runner, Config{ProjectID: "p"})

	rows, err := c.ExecuteWithCap(context.Background(), "SELECT 1 FROM orders LIMIT 5")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 3, runner.readCalls)
}

func TestExecuteWithCapNoRetryOnPermanentError(t *testing.T) {
	instantBackOff(t)
	runner := &fakeRunner{
		dryBytes: 1 << 20,
		readErrs: []error{&googleapi.Error{Code: 400, Message: "syntax error"}},
	}
	c := newTestClient(t, runner, Config{ProjectID: "p"})

	_, err := c.ExecuteWithCap(context.Background(), "SELECT 1 FROM orders LIMIT 5")
	require.Error(t, err)
	require.Contains(t, err.Error(), "syntax error")
	require.Equal(t, 1, runner.readCalls)
}

func TestExecuteWithCapDryRunError(t *testing.T) {
	runner := &fakeRunner{dryErr: errors.New("table not found")}
	c := newTestClient(t, runner, Config{ProjectID: "p"})

	_, err := c.ExecuteWithCap(context.Background(), "SELECT 1 FROM nope LIMIT 5")
	require.Error(t, err)
	require.Contains(t, err.Error(), "dry run")
	require.Zero(t, runner.readCalls)
}

func TestWrapPreview(t *testing.T) {
	sql := "SELECT order_id FROM orders"
	wrapped := WrapPreview(sql, 500)
	require.Equal(t, "SELECT * FROM (SELECT order_id FROM orders) AS _t LIMIT 500", wrapped)
}

func TestWrapPreviewExistingLimit(t *testing.T) {
	// A trailing LIMIT already bounds the result; no wrap.
	sql := "SELECT order_id FROM orders LIMIT 20"
	require.Equal(t, sql, WrapPreview(sql, 500))

	// Case-insensitive, and a trailing semicolon is trimmed first.
	require.Equal(t, "select 1 limit 5", WrapPreview("select 1 limit 5;", 500))
}

func TestWrapPreviewInnerLimit(t *testing.T) {
	// A LIMIT inside a subquery does not bound the outer statement.
	sql := "SELECT * FROM (SELECT order_id FROM orders LIMIT 5) AS t"
	wrapped := WrapPreview(sql, 100)
	require.Contains(t, wrapped, "AS _t LIMIT 100")
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{ProjectID: "my-project"}
	require.NoError(t, cfg.applyDefaults())
	require.Equal(t, DefaultMaxBytesScanned, cfg.MaxBytesScanned)
	require.Equal(t, DefaultPreviewLimit, cfg.PreviewLimit)

	bad := Config{}
	require.Error(t, bad.applyDefaults())
}
