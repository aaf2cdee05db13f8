package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/slidecast/slidecast/internal/logger"
	"github.com/slidecast/slidecast/internal/retry"
)

// Error taxonomy. Network and HTTP status failures are retryable within the
// fetcher's budget; a local write failure is fatal for that asset.

type NetworkError struct {
	Ref string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error fetching %s: %v", e.Ref, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

type HTTPStatusError struct {
	Ref    string
	Status int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("fetching %s returned status %d", e.Ref, e.Status)
}

type WriteError struct {
	Dest string
	Err  error
}

func (e *WriteError) Error() string { return fmt.Sprintf("writing %s failed: %v", e.Dest, e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

// Request names one asset to acquire: a remote URL or local path, and the
// destination inside the job's working directory.
type Request struct {
	Ref  string
	Dest string
}

// Result records the outcome for one asset. The fetcher never decides
// materiality; the orchestrator does.
type Result struct {
	Ref  string
	Dest string
	Err  error
}

func (r Result) OK() bool { return r.Err == nil }

const defaultConcurrency = 4

type Fetcher struct {
	client      *http.Client
	timeout     time.Duration
	policy      retry.Policy
	concurrency int
	log         *logger.Logger
}

// New builds a fetcher with a per-attempt timeout and a bounded linear-backoff
// retry budget. retries is the number of re-attempts after the first try.
func New(timeout time.Duration, retries int) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		timeout: timeout,
		policy: retry.Policy{
			MaxAttempts: retries + 1,
			Backoff:     retry.Linear(time.Second),
			Retryable:   isRetryable,
		},
		concurrency: defaultConcurrency,
		log:         logger.New("fetch"),
	}
}

func isRetryable(err error) bool {
	var ne *NetworkError
	var he *HTTPStatusError
	return errors.As(err, &ne) || errors.As(err, &he)
}

// Fetch acquires one asset into dest, retrying transient failures within the
// budget. Local references (no http scheme) are copied without retries.
func (f *Fetcher) Fetch(ctx context.Context, ref, dest string) error {
	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		return copyLocal(ref, dest)
	}

	return retry.Do(ctx, f.policy, func(ctx context.Context) error {
		return f.fetchOnce(ctx, ref, dest)
	})
}

func (f *Fetcher) fetchOnce(ctx context.Context, ref, dest string) error {
	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, ref, nil)
	if err != nil {
		return &NetworkError{Ref: ref, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return &NetworkError{Ref: ref, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return &HTTPStatusError{Ref: ref, Status: resp.StatusCode}
	}

	out, err := os.Create(dest)
	if err != nil {
		return &WriteError{Dest: dest, Err: err}
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(dest)
		return &WriteError{Dest: dest, Err: err}
	}

	if err := out.Close(); err != nil {
		os.Remove(dest)
		return &WriteError{Dest: dest, Err: err}
	}
	return nil
}

func copyLocal(ref, dest string) error {
	data, err := os.ReadFile(ref)
	if err != nil {
		return &NetworkError{Ref: ref, Err: err}
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return &WriteError{Dest: dest, Err: err}
	}
	return nil
}

// FetchAll acquires a batch of assets concurrently. Each request writes to a
// distinct destination, so ordering between downloads does not matter. A
// failed asset never aborts the batch; its failure is recorded in the
// matching Result and the caller decides what it means for the job.
func (f *Fetcher) FetchAll(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			err := f.Fetch(gctx, req.Ref, req.Dest)
			if err != nil {
				f.log.Warnf("asset fetch failed (ref=%s): %v", req.Ref, err)
			}
			results[i] = Result{Ref: req.Ref, Dest: req.Dest, Err: err}
			return nil // per-asset failures are surfaced via results
		})
	}

	g.Wait()
	return results
}
