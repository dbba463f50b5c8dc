// Package registry is the HTTP client of the external group registry. It
// speaks a Bandada-style API: members are added with an API key, membership
// and Merkle inclusion proofs are read with plain GETs.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/atinyakov/zkkeeper/internal/models"
	"go.uber.org/zap"
)

const (
	maxAttempts    = 3
	initialBackoff = 100 * time.Millisecond
	apiKeyHeader   = "x-api-key"
)

// StatusError is returned when the registry answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("registry http %d: %s", e.StatusCode, e.Body)
}

// retryable reports whether a failed call may be repeated. Transport
// failures and 5xx responses are; 4xx responses are not.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Client talks to one registry base URL.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	log     *zap.Logger
	backoff time.Duration
}

// New creates a registry client.
func New(baseURL string, log *zap.Logger) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		log:        log,
		backoff:    initialBackoff,
	}
}

// AddMember adds commitment to groupID. It is not retried: the registry does
// not promise the POST is idempotent.
func (c *Client) AddMember(ctx context.Context, groupID, commitment, apiKey string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.memberURL(groupID, commitment, ""), nil)
	if err != nil {
		return err
	}
	if apiKey != "" {
		req.Header.Set(apiKeyHeader, apiKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

// IsMember reports whether commitment belongs to groupID.
func (c *Client) IsMember(ctx context.Context, groupID, commitment string) (bool, error) {
	out, err := retry(ctx, c, "is member", func() (*bool, error) {
		return getJSON[bool](ctx, c, c.memberURL(groupID, commitment, ""))
	})
	if err != nil {
		return false, err
	}
	return *out, nil
}

// MerkleProof fetches the inclusion proof of commitment in groupID.
func (c *Client) MerkleProof(ctx context.Context, groupID, commitment string) (*models.MerkleProof, error) {
	return retry(ctx, c, "merkle proof", func() (*models.MerkleProof, error) {
		return getJSON[models.MerkleProof](ctx, c, c.memberURL(groupID, commitment, "proof"))
	})
}

func (c *Client) memberURL(groupID, commitment, suffix string) string {
	u := fmt.Sprintf("%s/groups/%s/members/%s", c.BaseURL, url.PathEscape(groupID), url.PathEscape(commitment))
	if suffix != "" {
		u += "/" + suffix
	}
	return u
}

func getJSON[T any](ctx context.Context, c *Client, u string) (*T, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// retry runs op up to maxAttempts times with exponential backoff
// (100ms, 200ms by default) while the failure is retryable.
func retry[T any](ctx context.Context, c *Client, name string, op func() (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			wait := c.backoff * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return zero, fmt.Errorf("%s: %w", name, ctx.Err())
			case <-time.After(wait):
			}
		}

		out, err := op()
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
		c.log.Warn("registry call failed",
			zap.String("call", name),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return zero, fmt.Errorf("%s: %w", name, lastErr)
}
