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
	"context"
	"errors"
	"fmt"

	"github.com/conneroisu/groq-go"
	"github.com/jaycherian/gcp-go-creative-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"
)

const meterName = "github.com/jaycherian/gcp-go-creative-studio/services"

// LanguageModel answers a prompt with a JSON document.
type LanguageModel interface {
	Name() string
	CompleteJSON(ctx context.Context, system, prompt string) (string, error)
}

// GeminiLanguageModel calls a quota-aware Gemini model in JSON mode, constrained
// by the GenerationSpec response schema.
type GeminiLanguageModel struct {
	model        *cloud.QuotaAwareGenerativeAIModel
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	retryCounter metric.Int64Counter
}

func NewGeminiLanguageModel(m *cloud.QuotaAwareGenerativeAIModel) *GeminiLanguageModel {
	meter := otel.Meter(meterName)
	out := &GeminiLanguageModel{model: m}
	out.inputTokens, _ = meter.Int64Counter("prompt_specifier.gemini.token.input")
	out.outputTokens, _ = meter.Int64Counter("prompt_specifier.gemini.token.output")
	out.retryCounter, _ = meter.Int64Counter("prompt_specifier.gemini.retry")
	return out
}

func (g *GeminiLanguageModel) Name() string {
	return "gemini:" + g.model.ModelName
}

func (g *GeminiLanguageModel) CompleteJSON(ctx context.Context, system, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if g.model.GenerativeContentConfig != nil {
		copied := *g.model.GenerativeContentConfig
		cfg = &copied
	}
	cfg.ResponseMIMEType = "application/json"
	cfg.ResponseSchema = SpecResponseSchema()
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: []*genai.Part{{Text: prompt}}}}
	return cloud.GenerateMultiModalResponse(ctx, g.inputTokens, g.outputTokens, g.retryCounter, 0, g.model.WithConfig(cfg), contents)
}

// SpecResponseSchema mirrors the JSON form of model.GenerationSpec.
func SpecResponseSchema() *genai.Schema {
	str := func(desc string) *genai.Schema { return &genai.Schema{Type: genai.TypeString, Description: desc} }
	strEnum := func(values ...string) *genai.Schema { return &genai.Schema{Type: genai.TypeString, Enum: values} }
	aspects := make([]string, 0, 4)
	for _, a := range model.AspectRatios() {
		aspects = append(aspects, string(a))
	}
	resolutions := make([]string, 0, 3)
	for _, r := range model.Resolutions() {
		resolutions = append(resolutions, string(r))
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"prompt": str("the refined creative prompt"),
			"duration_seconds": {
				Type:    genai.TypeInteger,
				Minimum: genai.Ptr(float64(model.MinDurationSeconds)),
				Maximum: genai.Ptr(float64(model.MaxDurationSeconds)),
			},
			"aspect_ratio":     strEnum(aspects...),
			"resolution":       strEnum(resolutions...),
			"fps":              {Type: genai.TypeInteger, Description: "24, 30 or 60"},
			"style":            str("visual style"),
			"mood":             str("emotional tone"),
			"camera":           str("camera movement"),
			"color_palette":    str("color palette"),
			"music":            str("music cue"),
			"voiceover_script": str("voiceover script"),
			"text_overlays":    {Type: genai.TypeArray, Items: str("short overlay text")},
			"subtitles":        {Type: genai.TypeBoolean},
			"brand_colors":     {Type: genai.TypeArray, Items: str("hex color such as #1A2B3C")},
		},
		Required: []string{"prompt", "duration_seconds", "aspect_ratio", "resolution", "fps", "style", "mood", "camera"},
	}
}

// GroqLanguageModel calls a Groq chat model in JSON object mode.
type GroqLanguageModel struct {
	client *groq.Client
	model  groq.ChatModel
}

func NewGroqLanguageModel(apiKey, modelName string, opts ...groq.Opts) (*GroqLanguageModel, error) {
	client, err := groq.NewClient(apiKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("create groq client: %w", err)
	}
	return &GroqLanguageModel{client: client, model: groq.ChatModel(modelName)}, nil
}

func (g *GroqLanguageModel) Name() string {
	return "groq:" + string(g.model)
}

func (g *GroqLanguageModel) CompleteJSON(ctx context.Context, system, prompt string) (string, error) {
	resp, err := g.client.ChatCompletion(ctx, groq.ChatCompletionRequest{
		Model: g.model,
		Messages: []groq.ChatCompletionMessage{
			{Role: groq.RoleSystem, Content: system},
			{Role: groq.RoleUser, Content: prompt},
		},
		ResponseFormat: &groq.ChatResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response")
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", errors.New("empty response")
	}
	return cloud.StripJSONFence(content), nil
}
