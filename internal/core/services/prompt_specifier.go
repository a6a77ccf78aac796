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

package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/jaycherian/gcp-go-creative-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/model"
	"golang.org/x/sync/singleflight"
)

const DefaultQuantifyTemplate = `You are a creative video director. Convert the following context and user prompt into a STRICT JSON object that matches this schema keys only: prompt, duration_seconds, aspect_ratio, resolution, fps, style, mood, camera, color_palette, music, voiceover_script, text_overlays, subtitles, brand_colors.
- duration_seconds must be an integer (5-60).
- aspect_ratio from [9:16, 16:9, 1:1, 4:5].
- resolution from [720p, 1080p, 4k].
- fps in [24, 30, 60].
- text_overlays is an array of short strings.
- brand_colors is an array of HEX strings if available.
If any field is missing, infer sensible defaults.

Example output: {{.Example}}

Campaign Context: {{.CampaignContext}}
Brand Guidelines: {{.BrandGuidelines}}
Target Audience: {{.TargetAudience}}
User Prompt: {{.Prompt}}

Return ONLY valid JSON without backticks.`

const DefaultRefineTemplate = `You are improving a structured video prompt JSON for better ad performance.
Given the prior JSON prompt and feedback, produce a new JSON with the same keys, tightly aligned to the feedback.
Maintain constraints for duration, aspect_ratio, resolution, and fps.

Prior JSON Prompt: {{.PriorJSON}}
Feedback: {{.Feedback}}

Return ONLY valid JSON without backticks.`

const systemInstruction = "You turn creative briefs into structured video generation specs. Answer with a single JSON object."

// SpecCache stores quantified specs by request fingerprint.
type SpecCache interface {
	Get(ctx context.Context, key string) (model.GenerationSpec, bool)
	Set(ctx context.Context, key string, spec model.GenerationSpec)
}

type quantifyData struct {
	Example         string
	Prompt          string
	CampaignContext string
	BrandGuidelines string
	TargetAudience  string
}

type refineData struct {
	PriorJSON string
	Feedback  string
}

// PromptSpecifier converts free text into a GenerationSpec and refines specs from
// feedback. A nil LanguageModel switches both operations to keyword heuristics.
type PromptSpecifier struct {
	llm      LanguageModel
	cache    SpecCache
	quantify *template.Template
	refine   *template.Template
	group    singleflight.Group
}

type PromptSpecifierOption func(*PromptSpecifier)

func WithSpecCache(c SpecCache) PromptSpecifierOption {
	return func(p *PromptSpecifier) { p.cache = c }
}

// NewPromptSpecifier parses the configured templates, using the built-in ones for
// empty values.
func NewPromptSpecifier(llm LanguageModel, templates cloud.PromptTemplates, opts ...PromptSpecifierOption) (*PromptSpecifier, error) {
	quantifySrc := templates.Quantify
	if strings.TrimSpace(quantifySrc) == "" {
		quantifySrc = DefaultQuantifyTemplate
	}
	refineSrc := templates.Refine
	if strings.TrimSpace(refineSrc) == "" {
		refineSrc = DefaultRefineTemplate
	}
	q, err := template.New("quantify").Parse(quantifySrc)
	if err != nil {
		return nil, fmt.Errorf("parse quantify template: %w", err)
	}
	r, err := template.New("refine").Parse(refineSrc)
	if err != nil {
		return nil, fmt.Errorf("parse refine template: %w", err)
	}
	out := &PromptSpecifier{llm: llm, quantify: q, refine: r}
	for _, opt := range opts {
		opt(out)
	}
	return out, nil
}

// HasModel reports whether a language model is configured.
func (p *PromptSpecifier) HasModel() bool {
	return p.llm != nil
}

// Quantify returns a valid spec for req. The only error is a *model.ValidationError
// for an empty prompt.
func (p *PromptSpecifier) Quantify(ctx context.Context, req model.QuantifyRequest) (model.GenerationSpec, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return model.GenerationSpec{}, model.NewValidationError("prompt", "must not be empty")
	}
	if p.llm == nil {
		slog.WarnContext(ctx, "no language model configured, using heuristic quantification")
		return HeuristicQuantify(req), nil
	}

	key := fingerprint(p.llm.Name(), req)
	if p.cache != nil {
		if spec, ok := p.cache.Get(ctx, key); ok {
			return spec, nil
		}
	}

	v, _, _ := p.group.Do(key, func() (any, error) {
		spec, fromModel := p.quantifyWithModel(ctx, req)
		if fromModel && p.cache != nil {
			p.cache.Set(ctx, key, spec)
		}
		return spec, nil
	})
	return v.(model.GenerationSpec).Clone(), nil
}

func (p *PromptSpecifier) quantifyWithModel(ctx context.Context, req model.QuantifyRequest) (model.GenerationSpec, bool) {
	example, _ := json.Marshal(model.GetExampleSpec())
	data := quantifyData{
		Example:         string(example),
		Prompt:          req.Prompt,
		CampaignContext: jsonOrEmpty(req.CampaignContext),
		BrandGuidelines: jsonOrEmpty(req.BrandGuidelines),
		TargetAudience:  jsonOrEmpty(req.TargetAudience),
	}
	var buf bytes.Buffer
	if err := p.quantify.Execute(&buf, data); err != nil {
		slog.ErrorContext(ctx, "quantify template failed, using heuristic", "error", err)
		return HeuristicQuantify(req), false
	}

	raw, err := p.llm.CompleteJSON(ctx, systemInstruction, buf.String())
	if err != nil {
		slog.WarnContext(ctx, "language model failed, using heuristic", "model", p.llm.Name(), "error", err)
		return HeuristicQuantify(req), false
	}

	switch outcome := ParseOrFallback(raw).(type) {
	case Parsed:
		spec := model.NewGenerationSpec(req.Prompt).Merge(outcome.Patch)
		if strings.TrimSpace(spec.Prompt) == "" {
			spec.Prompt = req.Prompt
		}
		if err := spec.Validate(); err != nil {
			slog.WarnContext(ctx, "quantified spec rejected, using heuristic", "error", err)
			return HeuristicQuantify(req), false
		}
		return spec, true
	case Fallback:
		slog.WarnContext(ctx, "language model output unusable, using heuristic", "reason", outcome.Reason, "raw", truncate(raw, 200))
	}
	return HeuristicQuantify(req), false
}

// RegenerateWithFeedback returns prior adjusted by feedback. It never fails: when
// the model output is unusable the prior spec is returned unchanged.
func (p *PromptSpecifier) RegenerateWithFeedback(ctx context.Context, prior model.GenerationSpec, feedback string) model.GenerationSpec {
	if strings.TrimSpace(feedback) == "" {
		return prior.Clone()
	}
	if p.llm == nil {
		slog.WarnContext(ctx, "no language model configured, applying heuristic refinement")
		return HeuristicRefine(prior, feedback)
	}

	priorJSON, err := json.Marshal(prior)
	if err != nil {
		return prior.Clone()
	}
	var buf bytes.Buffer
	if err := p.refine.Execute(&buf, refineData{PriorJSON: string(priorJSON), Feedback: feedback}); err != nil {
		slog.ErrorContext(ctx, "refine template failed", "error", err)
		return prior.Clone()
	}

	raw, err := p.llm.CompleteJSON(ctx, systemInstruction, buf.String())
	if err != nil {
		slog.WarnContext(ctx, "language model failed on refine, keeping prior spec", "model", p.llm.Name(), "error", err)
		return prior.Clone()
	}

	switch outcome := ParseOrFallback(raw).(type) {
	case Parsed:
		next := prior.Merge(outcome.Patch)
		if strings.TrimSpace(next.Prompt) == "" {
			next.Prompt = prior.Prompt
		}
		if err := next.Validate(); err != nil {
			return prior.Clone()
		}
		return next
	case Fallback:
		slog.WarnContext(ctx, "refine output unusable, keeping prior spec", "reason", outcome.Reason, "raw", truncate(raw, 200))
	}
	return prior.Clone()
}

func fingerprint(modelName string, req model.QuantifyRequest) string {
	// json.Marshal sorts map keys, so equal requests hash equally.
	body, _ := json.Marshal(req)
	sum := sha256.Sum256(append([]byte(modelName+"\n"), body...))
	return "spec:" + hex.EncodeToString(sum[:])
}

func jsonOrEmpty(in map[string]any) string {
	if len(in) == 0 {
		return "{}"
	}
	out, err := json.Marshal(in)
	if err != nil {
		return "{}"
	}
	return string(out)
}

func truncate(in string, n int) string {
	if len(in) <= n {
		return in
	}
	return in[:n]
}
