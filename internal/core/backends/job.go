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

package backends

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jaycherian/gcp-go-creative-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-creative-studio/internal/httputil"
	"golang.org/x/time/rate"
)

const (
	defaultPollInterval   = 5 * time.Second
	defaultJobTimeout     = 10 * time.Minute
	defaultRequestTimeout = time.Minute
)

// jobStatus is the body returned by submit and poll calls.
type jobStatus struct {
	ID        string   `json:"id"`
	Status    string   `json:"status"`
	OutputURL string   `json:"output_url"`
	Output    []string `json:"output"`
	Error     string   `json:"error"`
}

func (s jobStatus) locator() string {
	if s.OutputURL != "" {
		return s.OutputURL
	}
	for _, o := range s.Output {
		if o != "" {
			return o
		}
	}
	return ""
}

func (s jobStatus) state() string {
	switch strings.ToLower(s.Status) {
	case "succeeded", "success", "completed", "complete", "done":
		return "succeeded"
	case "failed", "failure", "error", "cancelled", "canceled", "rejected":
		return "failed"
	}
	return "running"
}

// JobAdapter talks to a vendor job endpoint: the spec is submitted, the job is
// polled until it reaches a terminal state, and the output locator is returned.
// Every attempt builds its own HTTP client.
type JobAdapter struct {
	profile      JobProfile
	settings     cloud.Backend
	credentials  cloud.CredentialResolver
	limiter      *rate.Limiter
	retry        httputil.RetryConfig
	pollInterval time.Duration
	timeout      time.Duration
}

func NewJobAdapter(profile JobProfile, settings cloud.Backend, credentials cloud.CredentialResolver) *JobAdapter {
	perSecond := settings.RateLimit
	if perSecond <= 0 {
		perSecond = 1
	}
	poll := time.Duration(settings.PollIntervalSeconds) * time.Second
	if poll <= 0 {
		poll = defaultPollInterval
	}
	timeout := time.Duration(settings.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	if settings.Model == "" {
		settings.Model = profile.Model
	}
	if settings.APIKeyEnv == "" {
		settings.APIKeyEnv = profile.APIKeyEnv
	}
	return &JobAdapter{
		profile:      profile,
		settings:     settings,
		credentials:  credentials,
		limiter:      rate.NewLimiter(rate.Limit(perSecond), perSecond),
		retry:        httputil.DefaultRetryConfig(),
		pollInterval: poll,
		timeout:      timeout,
	}
}

// WithPollInterval overrides the poll interval, used by tests.
func (a *JobAdapter) WithPollInterval(d time.Duration) *JobAdapter {
	a.pollInterval = d
	return a
}

// WithRetryConfig overrides the HTTP retry policy.
func (a *JobAdapter) WithRetryConfig(cfg httputil.RetryConfig) *JobAdapter {
	a.retry = cfg
	return a
}

func (a *JobAdapter) Identity() model.BackendIdentity {
	return a.profile.Identity
}

func (a *JobAdapter) Generate(ctx context.Context, spec model.GenerationSpec, assets model.Assets) model.GenerationOutcome {
	id := a.profile.Identity
	params := spec.Params()
	params["model"] = a.settings.Model

	if a.settings.Endpoint == "" {
		return model.Failed(id, "", fmt.Sprintf("%s is not configured: no endpoint", id), params)
	}
	if a.credentials == nil {
		return model.Failed(id, "", fmt.Sprintf("%s credentials missing: set %s", id, a.settings.APIKeyEnv), params)
	}
	key, err := a.credentials.Resolve(ctx, a.settings.APIKeyEnv, a.settings.APIKeySecret)
	if err != nil {
		return model.Failed(id, "", fmt.Sprintf("%s credentials missing: %v", id, err), params)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if err := a.limiter.Wait(ctx); err != nil {
		return model.Failed(id, "", fmt.Sprintf("%s rate limiter: %v", id, err), params)
	}

	client := httputil.NewAttemptClient(defaultRequestTimeout, a.retry)
	defer client.Close()

	status, err := a.submit(ctx, client, key, spec, assets)
	if err != nil {
		return model.Failed(id, "", (&model.ProviderError{Backend: id, Err: err}).Error(), params)
	}
	slog.InfoContext(ctx, "job submitted", "backend", id, "job_id", status.ID, "status", status.Status)

	for status.state() == "running" {
		select {
		case <-ctx.Done():
			return model.Failed(id, status.ID, fmt.Sprintf("%s job %s did not finish: %v", id, status.ID, ctx.Err()), params)
		case <-time.After(a.pollInterval):
		}
		next, err := a.poll(ctx, client, key, status.ID)
		if err != nil {
			return model.Failed(id, status.ID, (&model.ProviderError{Backend: id, Err: err}).Error(), params)
		}
		status = next
	}

	if status.state() == "failed" {
		reason := status.Error
		if reason == "" {
			reason = status.Status
		}
		return model.Failed(id, status.ID, fmt.Sprintf("%s job %s failed: %s", id, status.ID, reason), params)
	}
	locator := status.locator()
	if locator == "" {
		return model.Failed(id, status.ID, fmt.Sprintf("%s job %s finished without output", id, status.ID), params)
	}
	return model.Succeeded(id, locator, status.ID, a.profile.Accepted, params)
}

func (a *JobAdapter) submit(ctx context.Context, client httputil.Doer, key string, spec model.GenerationSpec, assets model.Assets) (jobStatus, error) {
	payload := a.profile.Payload
	if payload == nil {
		payload = commonPayload
	}
	body, err := json.Marshal(payload(a.settings.Model, spec, assets))
	if err != nil {
		return jobStatus{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.settings.Endpoint, bytes.NewReader(body))
	if err != nil {
		return jobStatus{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	status, err := a.call(client, req, key)
	if err != nil {
		return jobStatus{}, fmt.Errorf("submit: %w", err)
	}
	if status.ID == "" && status.state() == "running" {
		return jobStatus{}, errors.New("submit: response has no job id")
	}
	return status, nil
}

func (a *JobAdapter) poll(ctx context.Context, client httputil.Doer, key, jobID string) (jobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.statusURL(jobID), nil)
	if err != nil {
		return jobStatus{}, err
	}
	status, err := a.call(client, req, key)
	if err != nil {
		return jobStatus{}, fmt.Errorf("poll %s: %w", jobID, err)
	}
	if status.ID == "" {
		status.ID = jobID
	}
	return status, nil
}

func (a *JobAdapter) statusURL(jobID string) string {
	if a.settings.StatusEndpoint == "" {
		return strings.TrimSuffix(a.settings.Endpoint, "/") + "/" + jobID
	}
	if strings.Contains(a.settings.StatusEndpoint, "{id}") {
		return strings.ReplaceAll(a.settings.StatusEndpoint, "{id}", jobID)
	}
	return strings.TrimSuffix(a.settings.StatusEndpoint, "/") + "/" + jobID
}

func (a *JobAdapter) call(client httputil.Doer, req *http.Request, key string) (jobStatus, error) {
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return jobStatus{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return jobStatus{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return jobStatus{}, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	var status jobStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return jobStatus{}, fmt.Errorf("invalid job response: %w", err)
	}
	return status, nil
}
