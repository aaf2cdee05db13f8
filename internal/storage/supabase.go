package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/slidecast/slidecast/internal/logger"
	"github.com/slidecast/slidecast/internal/retry"
)

const (
	// Upload timeout per attempt — generous for large video files.
	uploadTimeout = 180 * time.Second

	uploadAttempts = 5
	baseRetryDelay = time.Second
	maxRetryDelay  = 30 * time.Second
)

// SupabaseStore uploads rendered videos to a Supabase storage bucket using
// PUT with x-upsert, retrying transient failures with exponential backoff.
type SupabaseStore struct {
	url        string
	serviceKey string
	bucket     string
	client     *http.Client
	policy     retry.Policy
	log        *logger.Logger
}

func NewSupabaseStore(url, serviceKey, bucket string) *SupabaseStore {
	return &SupabaseStore{
		url:        strings.TrimRight(url, "/"),
		serviceKey: serviceKey,
		bucket:     bucket,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		policy: retry.Policy{
			MaxAttempts: uploadAttempts,
			Backoff:     retry.Exponential(baseRetryDelay, maxRetryDelay),
			Retryable:   isRetryable,
		},
		log: logger.New("storage"),
	}
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("upload failed with status %d: %s", e.status, e.body)
}

func isRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		switch se.status {
		case http.StatusTooManyRequests, http.StatusRequestTimeout,
			http.StatusBadGateway, http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	// Network-level failures are worth another try.
	return true
}

func (s *SupabaseStore) Put(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.url, s.bucket, path)

	err := retry.Do(ctx, s.policy, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
		defer cancel()

		req, err := http.NewRequestWithContext(attemptCtx, http.MethodPut, endpoint, bytes.NewReader(data))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+s.serviceKey)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("x-upsert", "true")

		resp, err := s.client.Do(req)
		if err != nil {
			s.log.Warnf("upload attempt failed for %s: %v", path, err)
			return err
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
			return nil
		}
		s.log.Warnf("upload attempt for %s returned status %d", path, resp.StatusCode)
		return &statusError{status: resp.StatusCode, body: string(body)}
	})
	if err != nil {
		return "", fmt.Errorf("supabase upload of %s: %w", path, err)
	}

	return s.PublicURL(path), nil
}

// PublicURL returns the public object URL for a stored path.
func (s *SupabaseStore) PublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.url, s.bucket, path)
}
