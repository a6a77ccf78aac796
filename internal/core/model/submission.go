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

import "fmt"

// DefaultVariations is used when a submission does not ask for a count.
const DefaultVariations = 1

// GenerationSubmission is the body of a generation request, received over HTTP or
// from the intake subscription. Spec, when present, is used as is; otherwise a
// PriorSpec is refined with Feedback, and failing both the prompt is quantified.
type GenerationSubmission struct {
	TenantID        string          `json:"tenant_id"`
	CreativeID      string          `json:"creative_id"`
	Prompt          string          `json:"prompt"`
	Backend         string          `json:"backend,omitempty"`
	Variations      int             `json:"variations,omitempty"`
	Spec            *GenerationSpec `json:"spec,omitempty"`
	PriorSpec       *GenerationSpec `json:"prior_spec,omitempty"`
	Feedback        string          `json:"feedback,omitempty"`
	CampaignContext map[string]any  `json:"campaign_context,omitempty"`
	BrandGuidelines map[string]any  `json:"brand_guidelines,omitempty"`
	TargetAudience  map[string]any  `json:"target_audience,omitempty"`
	Assets          Assets          `json:"assets,omitempty"`
}

// VariationCount returns the requested count or DefaultVariations.
func (s GenerationSubmission) VariationCount() int {
	if s.Variations == 0 {
		return DefaultVariations
	}
	return s.Variations
}

// Validate checks what can be checked before any spec is resolved: the
// variation count against maxVariations and both path segments.
func (s GenerationSubmission) Validate(maxVariations int) error {
	if n := s.VariationCount(); n < 1 || n > maxVariations {
		return NewValidationError("variations", fmt.Sprintf("must be between 1 and %d, got %d", maxVariations, n))
	}
	if err := ValidateSegment("tenant_id", s.TenantID); err != nil {
		return err
	}
	return ValidateSegment("creative_id", s.CreativeID)
}

// QuantifyRequest extracts the prompt specifier input.
func (s GenerationSubmission) QuantifyRequest() QuantifyRequest {
	return QuantifyRequest{
		Prompt:          s.Prompt,
		CampaignContext: s.CampaignContext,
		BrandGuidelines: s.BrandGuidelines,
		TargetAudience:  s.TargetAudience,
	}
}

// NeedsRegeneration reports whether the spec comes from refining PriorSpec. Empty
// feedback keeps the prior spec as is.
func (s GenerationSubmission) NeedsRegeneration() bool {
	return s.Spec == nil && s.PriorSpec != nil
}

// Request builds the orchestrator input for spec.
func (s GenerationSubmission) Request(spec GenerationSpec) GenerationRequest {
	return GenerationRequest{
		BackendName:    s.Backend,
		Spec:           spec,
		TenantID:       s.TenantID,
		CreativeID:     s.CreativeID,
		Assets:         s.Assets,
		VariationCount: s.VariationCount(),
	}
}
