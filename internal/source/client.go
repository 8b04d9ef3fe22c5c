package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/chanctl/chanctl/internal/logger"
)

const (
	requestTimeout = 30 * time.Second
	maxRetries     = 3
)

// Response is a completed HTTP exchange. Vendors interpret the status
// themselves: a 400 can be a normal end-of-pagination signal.
type Response struct {
	Status int
	Body   []byte
}

// Client is the shared outbound HTTP session. Transient failures (network
// errors, 5xx) are retried with exponential backoff; any other status is
// returned to the caller as-is. An optional rate limiter inserts a fixed
// delay before each outbound call.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	log     logger.Logger
}

// NewClient creates a client. A zero requestInterval disables pacing.
func NewClient(requestInterval time.Duration, log logger.Logger) *Client {
	var limiter *rate.Limiter
	if requestInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(requestInterval), 1)
	}
	return &Client{
		http:    &http.Client{Timeout: requestTimeout},
		limiter: limiter,
		log:     log,
	}
}

// Do sends one JSON request and returns the response once it is no longer
// retryable. Request bodies are re-marshaled per attempt.
func (c *Client) Do(ctx context.Context, method, url string, headers map[string]string, body any) (*Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
	}

	operation := func() (*Response, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, backoff.Permanent(err)
			}
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			c.log.WithField("url", url).Warn(fmt.Sprintf("request failed, will retry: %v", err))
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			c.log.WithFields(map[string]interface{}{
				"url":    url,
				"status": resp.StatusCode,
			}).Warn("server error, will retry")
			return nil, fmt.Errorf("server returned %d", resp.StatusCode)
		}
		return &Response{Status: resp.StatusCode, Body: data}, nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	return backoff.RetryWithData(operation, policy)
}

// envelope is the response wrapper both vendors share.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(body []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decoding response envelope: %w", err)
	}
	return &env, nil
}
