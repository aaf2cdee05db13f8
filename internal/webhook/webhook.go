package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/slidecast/slidecast/internal/logger"
	"github.com/slidecast/slidecast/internal/models"
	"github.com/slidecast/slidecast/internal/retry"
)

const deliveryTimeout = 15 * time.Second

// Notifier delivers terminal-state notifications to a job's webhook URL.
// Delivery is best-effort with a small retry budget: exhausted retries are
// logged and dropped, never re-queued, and never affect job state.
type Notifier struct {
	client *http.Client
	policy retry.Policy
	log    *logger.Logger
}

// New builds a notifier; retries is the number of re-attempts after the
// first delivery try.
func New(retries int) *Notifier {
	return &Notifier{
		client: &http.Client{Timeout: deliveryTimeout},
		policy: retry.Policy{
			MaxAttempts: retries + 1,
			Backoff:     retry.Linear(2 * time.Second),
			Retryable:   isRetryable,
		},
		log: logger.New("webhook"),
	}
}

type statusError struct{ status int }

func (e *statusError) Error() string {
	return fmt.Sprintf("webhook returned status %d", e.status)
}

func isRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.status >= 500
	}
	return true // transport failures
}

// Notify POSTs the payload to url. The returned error is informational; the
// caller only logs it.
func (n *Notifier) Notify(ctx context.Context, url string, payload models.WebhookPayload) error {
	if url == "" {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	err = retry.Do(ctx, n.policy, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			return err
		}
		io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
		resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &statusError{status: resp.StatusCode}
		}
		return nil
	})
	if err != nil {
		n.log.Warnf("webhook delivery to %s failed for job %s: %v", url, payload.JobID, err)
		return err
	}

	n.log.Infof("webhook delivered for job %s (success=%t)", payload.JobID, payload.Success)
	return nil
}
