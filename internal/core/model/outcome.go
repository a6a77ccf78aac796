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

package model

import "time"

// Assets are optional inputs handed to a backend, keyed by role ("image", "logo", ...),
// valued by a locator the backend can read.
type Assets map[string]string

// GenerationOutcome is the single result of one backend attempt. Use Succeeded and
// Failed to build one; a failed outcome never carries a locator.
type GenerationOutcome struct {
	Success       bool            `json:"success"`
	RemoteLocator string          `json:"remote_locator,omitempty"`
	JobID         string          `json:"job_id,omitempty"`
	Message       string          `json:"message"`
	Params        map[string]any  `json:"params"`
	Backend       BackendIdentity `json:"backend"`
}

func Succeeded(backend BackendIdentity, locator, jobID, message string, params map[string]any) GenerationOutcome {
	return GenerationOutcome{
		Success:       true,
		RemoteLocator: locator,
		JobID:         jobID,
		Message:       message,
		Params:        params,
		Backend:       backend,
	}
}

func Failed(backend BackendIdentity, jobID, message string, params map[string]any) GenerationOutcome {
	return GenerationOutcome{
		Success: false,
		JobID:   jobID,
		Message: message,
		Params:  params,
		Backend: backend,
	}
}

// QuantifyRequest is the input of the prompt specifier.
type QuantifyRequest struct {
	Prompt          string         `json:"prompt"`
	CampaignContext map[string]any `json:"campaign_context,omitempty"`
	BrandGuidelines map[string]any `json:"brand_guidelines,omitempty"`
	TargetAudience  map[string]any `json:"target_audience,omitempty"`
}

// RegenerateRequest pairs a prior spec with feedback text.
type RegenerateRequest struct {
	PriorSpec GenerationSpec `json:"prior_spec"`
	Feedback  string         `json:"feedback"`
}

// GenerationRequest is the orchestrator input.
type GenerationRequest struct {
	BackendName    string
	Spec           GenerationSpec
	TenantID       string
	CreativeID     string
	Assets         Assets
	VariationCount int
}

// IterationResult is the per-variation entry of an AggregateResult. Nil pointers are
// rendered as JSON null.
type IterationResult struct {
	Iteration     int            `json:"iteration"`
	Success       bool           `json:"success"`
	RemoteLocator *string        `json:"remote_locator"`
	PersistedURL  *string        `json:"persisted_url"`
	StoragePath   *string        `json:"storage_path"`
	JobID         string         `json:"job_id,omitempty"`
	Seed          int64          `json:"seed"`
	Message       string         `json:"message"`
	Params        map[string]any `json:"params,omitempty"`
}

// AggregateResult is what one orchestration call returns.
type AggregateResult struct {
	Success           bool              `json:"success"`
	Backend           BackendIdentity   `json:"backend"`
	RequestedBackend  string            `json:"requested_backend"`
	TenantID          string            `json:"tenant_id"`
	CreativeID        string            `json:"creative_id"`
	Results           []IterationResult `json:"results"`
	SupportedBackends []BackendIdentity `json:"supported_backends"`
}

// SuccessfulAssets counts the iterations that ended with a persisted URL.
func (a *AggregateResult) SuccessfulAssets() int {
	n := 0
	for _, r := range a.Results {
		if r.PersistedURL != nil {
			n++
		}
	}
	return n
}

// AttemptRecord is the ledger row written for every attempt, successful or not.
type AttemptRecord struct {
	AttemptID        string    `json:"attempt_id" bigquery:"attempt_id"`
	TenantID         string    `json:"tenant_id" bigquery:"tenant_id"`
	CreativeID       string    `json:"creative_id" bigquery:"creative_id"`
	Iteration        int       `json:"iteration" bigquery:"iteration"`
	Backend          string    `json:"backend" bigquery:"backend"`
	RequestedBackend string    `json:"requested_backend" bigquery:"requested_backend"`
	Seed             int64     `json:"seed" bigquery:"seed"`
	Success          bool      `json:"success" bigquery:"success"`
	RemoteLocator    string    `json:"remote_locator" bigquery:"remote_locator"`
	PersistedURL     string    `json:"persisted_url" bigquery:"persisted_url"`
	StoragePath      string    `json:"storage_path" bigquery:"storage_path"`
	JobID            string    `json:"job_id" bigquery:"job_id"`
	Message          string    `json:"message" bigquery:"message"`
	Params           string    `json:"params" bigquery:"params"` // JSON encoded spec parameters.
	StartedAt        time.Time `json:"started_at" bigquery:"started_at"`
	FinishedAt       time.Time `json:"finished_at" bigquery:"finished_at"`
}
