package source

import (
	"context"
	"fmt"
	"net/http"
	neturl "net/url"
	"strings"
)

// Failure classes for a record probe. The quota class matters downstream:
// quota failures alone do not block enabling the records that passed.
const (
	FailQuota   = "quota"
	FailAuth    = "auth"
	FailAPI     = "api_error"
	FailFormat  = "response_format"
	FailNetwork = "network"
	FailConfig  = "config"
)

// TestResult is the outcome of probing one record through the gateway's
// test endpoint. Failure is empty when the probe passed.
type TestResult struct {
	Passed  bool
	Message string
	Failure string
}

// testRecord drives the probe endpoint both vendors expose at
// api/channel/test/{id}. The vendors differ only in auth headers, which the
// caller supplies.
func testRecord(ctx context.Context, c *Client, baseURL string,
	headers map[string]string, id int, model string) (*TestResult, error) {
	url := fmt.Sprintf("%sapi/channel/test/%d?model=%s", baseURL, id, neturl.QueryEscape(model))
	resp, err := c.Do(ctx, http.MethodGet, url, headers, nil)
	if err != nil {
		return nil, err
	}

	if resp.Status == http.StatusOK {
		env, err := decodeEnvelope(resp.Body)
		if err != nil {
			return &TestResult{Message: fmt.Sprintf("unparseable probe response: %v", err),
				Failure: FailFormat}, nil
		}
		if env.Success {
			msg := env.Message
			if msg == "" {
				msg = "passed"
			}
			return &TestResult{Passed: true, Message: msg}, nil
		}
		failure := FailAPI
		if strings.Contains(strings.ToLower(env.Message), "quota") {
			failure = FailQuota
		}
		return &TestResult{Message: env.Message, Failure: failure}, nil
	}

	msg := fmt.Sprintf("server returned %d", resp.Status)
	if env, err := decodeEnvelope(resp.Body); err == nil && env.Message != "" {
		msg = fmt.Sprintf("%s (%s)", msg, env.Message)
	}
	var failure string
	switch {
	case resp.Status == http.StatusUnauthorized:
		failure = FailAuth
	case resp.Status == http.StatusTooManyRequests:
		failure = FailQuota
	default:
		failure = FailAPI
	}
	return &TestResult{Message: msg, Failure: failure}, nil
}
