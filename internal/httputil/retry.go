// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package httputil provides the retrying HTTP client used for vendor job
// endpoints and media downloads.
package httputil

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryConfig controls the exponential backoff between attempts.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}

// StatusError is returned when every attempt ended with a retryable status.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d after retries", e.URL, e.StatusCode)
}

// Doer is satisfied by *http.Client and *RetryClient.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RetryClient retries network failures, 429 and 5xx responses with jittered
// exponential backoff. Other responses are returned as is.
type RetryClient struct {
	client *http.Client
	config RetryConfig
}

func NewRetryClient(client *http.Client, config RetryConfig) *RetryClient {
	if client == nil {
		client = http.DefaultClient
	}
	defaults := DefaultRetryConfig()
	if config.MaxRetries == 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.InitialDelay == 0 {
		config.InitialDelay = defaults.InitialDelay
	}
	if config.MaxDelay == 0 {
		config.MaxDelay = defaults.MaxDelay
	}
	if config.Multiplier == 0 {
		config.Multiplier = defaults.Multiplier
	}
	return &RetryClient{client: client, config: config}
}

// NewAttemptClient builds a client with its own transport, so concurrent
// attempts never share connections.
func NewAttemptClient(timeout time.Duration, config RetryConfig) *RetryClient {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	return NewRetryClient(&http.Client{Transport: transport, Timeout: timeout}, config)
}

// Close drops idle connections of the underlying transport.
func (c *RetryClient) Close() {
	c.client.CloseIdleConnections()
}

// Do sends req until it succeeds, fails permanently, the retries run out or
// the request context ends. Requests with a body must set GetBody to be retried.
func (c *RetryClient) Do(req *http.Request) (*http.Response, error) {
	policy := &backoff.ExponentialBackOff{
		InitialInterval:     c.config.InitialDelay,
		RandomizationFactor: 0.1,
		Multiplier:          c.config.Multiplier,
		MaxInterval:         c.config.MaxDelay,
	}

	first := true
	operation := func() (*http.Response, error) {
		if !first && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, backoff.Permanent(err)
			}
			req.Body = body
		}
		if !first && req.Body != nil && req.GetBody == nil {
			return nil, backoff.Permanent(errors.New("request body cannot be replayed"))
		}
		first = false

		resp, err := c.client.Do(req)
		if err != nil {
			if shouldRetryError(err) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		if !shouldRetryStatus(resp.StatusCode) {
			return resp, nil
		}
		_ = resp.Body.Close()
		statusErr := &StatusError{StatusCode: resp.StatusCode, URL: req.URL.Redacted()}
		if seconds, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil && seconds > 0 {
			return nil, errors.Join(statusErr, backoff.RetryAfter(seconds))
		}
		return nil, statusErr
	}

	return backoff.Retry(req.Context(), operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(c.config.MaxRetries)+1),
		backoff.WithMaxElapsedTime(0),
	)
}

func shouldRetryError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func shouldRetryStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code < 600)
}
