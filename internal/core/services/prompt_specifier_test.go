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

package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/conneroisu/groq-go"
	"github.com/jaycherian/gcp-go-creative-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedModel struct {
	reply   string
	err     error
	calls   atomic.Int32
	prompts []string
	mu      sync.Mutex
}

func (s *scriptedModel) Name() string { return "scripted" }

func (s *scriptedModel) CompleteJSON(_ context.Context, _, prompt string) (string, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	return s.reply, s.err
}

type mapCache struct {
	mu    sync.Mutex
	items map[string]model.GenerationSpec
}

func (m *mapCache) Get(_ context.Context, key string) (model.GenerationSpec, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.items[key]
	return s, ok
}

func (m *mapCache) Set(_ context.Context, key string, spec model.GenerationSpec) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = map[string]model.GenerationSpec{}
	}
	m.items[key] = spec
}

func newSpecifier(t *testing.T, llm services.LanguageModel, opts ...services.PromptSpecifierOption) *services.PromptSpecifier {
	t.Helper()
	p, err := services.NewPromptSpecifier(llm, cloud.PromptTemplates{}, opts...)
	require.NoError(t, err)
	return p
}

func TestQuantify_NoModelDefaults(t *testing.T) {
	p := newSpecifier(t, nil)
	spec, err := p.Quantify(context.Background(), model.QuantifyRequest{Prompt: "A vibrant product showcase with upbeat music"})
	require.NoError(t, err)

	assert.Equal(t, "A vibrant product showcase with upbeat music", spec.Prompt)
	assert.Equal(t, 10, spec.DurationSeconds)
	assert.Equal(t, model.AspectLandscape, spec.AspectRatio)
	assert.Equal(t, 24, spec.FPS)
	assert.NoError(t, spec.Validate())
}

func TestQuantify_EmptyPromptRejectedBeforeModel(t *testing.T) {
	llm := &scriptedModel{reply: `{"mood":"calm"}`}
	p := newSpecifier(t, llm)
	_, err := p.Quantify(context.Background(), model.QuantifyRequest{Prompt: "   "})

	var verr *model.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "prompt", verr.Field)
	assert.Equal(t, int32(0), llm.calls.Load())
}

func TestQuantify_HeuristicPlatforms(t *testing.T) {
	p := newSpecifier(t, nil)
	ctx := context.Background()

	vertical, err := p.Quantify(ctx, model.QuantifyRequest{
		Prompt:          "coffee launch",
		CampaignContext: map[string]any{"platform": "TikTok"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.AspectVertical, vertical.AspectRatio)
	assert.Equal(t, "dynamic social-first", vertical.Style)
	assert.Equal(t, "handheld energy", vertical.Camera)
	assert.True(t, vertical.Subtitles)

	feed, err := p.Quantify(ctx, model.QuantifyRequest{
		Prompt:         "B2B teaser",
		TargetAudience: map[string]any{"channels": []string{"LinkedIn"}},
	})
	require.NoError(t, err)
	assert.Equal(t, model.AspectPortrait45, feed.AspectRatio)

	square, err := p.Quantify(ctx, model.QuantifyRequest{
		Prompt:          "loop of the logo",
		BrandGuidelines: map[string]any{"format": "square"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.AspectSquare, square.AspectRatio)
}

func TestHeuristicQuantify_PromptWordsDoNotPickPlatform(t *testing.T) {
	for _, prompt := range []string{
		"Share our customer success stories",
		"A fishing ad showing new reels and rods",
		"Baseball shortstop highlight",
		"A square meal for the whole family on TikTok",
	} {
		t.Run(prompt, func(t *testing.T) {
			spec := services.HeuristicQuantify(model.QuantifyRequest{Prompt: prompt})
			assert.Equal(t, model.DefaultAspectRatio, spec.AspectRatio)
			assert.False(t, spec.Subtitles)
			assert.Equal(t, prompt, spec.Prompt)
		})
	}

	// Context keywords match whole words only.
	spec := services.HeuristicQuantify(model.QuantifyRequest{
		Prompt:          "team offsite recap",
		CampaignContext: map[string]any{"theme": "shortstop", "notes": "photoshorts"},
	})
	assert.Equal(t, model.DefaultAspectRatio, spec.AspectRatio)
}

func TestQuantify_ModelOutputIsValidatedPerField(t *testing.T) {
	llm := &scriptedModel{reply: "```json\n" + `{
		"prompt": "Barista pours latte art",
		"duration_seconds": 120,
		"aspect_ratio": "21:9",
		"resolution": "4k",
		"fps": 25,
		"mood": "cozy",
		"subtitles": "yes",
		"brand_colors": ["#6F4E37", "brown"]
	}` + "\n```"}
	p := newSpecifier(t, llm)

	spec, err := p.Quantify(context.Background(), model.QuantifyRequest{Prompt: "coffee"})
	require.NoError(t, err)
	assert.Equal(t, "Barista pours latte art", spec.Prompt)
	assert.Equal(t, model.MaxDurationSeconds, spec.DurationSeconds)
	assert.Equal(t, model.DefaultAspectRatio, spec.AspectRatio)
	assert.Equal(t, model.Resolution4K, spec.Resolution)
	assert.Equal(t, model.DefaultFPS, spec.FPS)
	assert.Equal(t, "cozy", spec.Mood)
	assert.False(t, spec.Subtitles)
	assert.Equal(t, []string{"#6F4E37"}, spec.BrandColors)
	assert.Contains(t, llm.prompts[0], "User Prompt: coffee")
}

func TestQuantify_UnusableModelOutputFallsBack(t *testing.T) {
	req := model.QuantifyRequest{Prompt: "teaser", CampaignContext: map[string]any{"platform": "reels"}}
	want := services.HeuristicQuantify(req)

	for name, llm := range map[string]*scriptedModel{
		"nonJSON":     {reply: "Sure! Here is your spec."},
		"emptyObject": {reply: "{}"},
		"modelError":  {err: errors.New("quota exceeded")},
	} {
		t.Run(name, func(t *testing.T) {
			spec, err := newSpecifier(t, llm).Quantify(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, want, spec)
		})
	}
}

func TestQuantify_CachesModelResults(t *testing.T) {
	llm := &scriptedModel{reply: `{"mood":"calm","duration_seconds":15}`}
	cache := &mapCache{}
	p := newSpecifier(t, llm, services.WithSpecCache(cache))
	req := model.QuantifyRequest{Prompt: "tea", CampaignContext: map[string]any{"season": "winter"}}

	first, err := p.Quantify(context.Background(), req)
	require.NoError(t, err)
	second, err := p.Quantify(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), llm.calls.Load())
	assert.Len(t, cache.items, 1)
}

func TestQuantify_FallbackIsNotCached(t *testing.T) {
	llm := &scriptedModel{reply: "nope"}
	cache := &mapCache{}
	p := newSpecifier(t, llm, services.WithSpecCache(cache))
	_, err := p.Quantify(context.Background(), model.QuantifyRequest{Prompt: "tea"})
	require.NoError(t, err)
	assert.Empty(t, cache.items)
}

func TestRegenerate_NoModelMoreEnergy(t *testing.T) {
	prior := model.NewGenerationSpec("coffee ad")
	next := newSpecifier(t, nil).RegenerateWithFeedback(context.Background(), prior, "add more energy")

	assert.Equal(t, "energetic", next.Mood)
	assert.Equal(t, prior.DurationSeconds, next.DurationSeconds)
	assert.Equal(t, prior.AspectRatio, next.AspectRatio)
	assert.Equal(t, prior.Resolution, next.Resolution)
	assert.Equal(t, prior.FPS, next.FPS)
	assert.Equal(t, prior.Style, next.Style)
}

func TestRegenerate_NoModelSocialVertical(t *testing.T) {
	prior := model.NewGenerationSpec("coffee ad")
	next := newSpecifier(t, nil).RegenerateWithFeedback(context.Background(), prior, "make it work for TikTok")
	assert.Equal(t, "social-first", next.Style)
	assert.Equal(t, model.AspectVertical, next.AspectRatio)
	assert.Equal(t, prior.Mood, next.Mood)
}

func TestRegenerate_EmptyFeedbackKeepsPrior(t *testing.T) {
	llm := &scriptedModel{reply: `{"mood":"sad"}`}
	prior := model.GetExampleSpec()
	next := newSpecifier(t, llm).RegenerateWithFeedback(context.Background(), prior, " ")
	assert.Equal(t, prior, next)
	assert.Equal(t, int32(0), llm.calls.Load())
}

func TestRegenerate_ModelPatchKeepsUnsetFields(t *testing.T) {
	llm := &scriptedModel{reply: `{"mood":"energetic","fps":"fast","aspect_ratio":"3:2"}`}
	prior := model.GetExampleSpec()
	next := newSpecifier(t, llm).RegenerateWithFeedback(context.Background(), prior, "more energy")

	want := prior.WithMood("energetic")
	assert.Equal(t, want, next)
	assert.Contains(t, llm.prompts[0], `"aspect_ratio":"9:16"`)
	assert.Contains(t, llm.prompts[0], "Feedback: more energy")
}

func TestRegenerate_ModelFallbackKeepsPrior(t *testing.T) {
	prior := model.GetExampleSpec()
	for _, llm := range []*scriptedModel{{reply: "not json"}, {err: errors.New("boom")}} {
		next := newSpecifier(t, llm).RegenerateWithFeedback(context.Background(), prior, "brighter")
		assert.Equal(t, prior, next)
	}
}

func TestParseOrFallback(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		fallback bool
		check    func(t *testing.T, p model.SpecPatch)
	}{
		{name: "empty", raw: "", fallback: true},
		{name: "prose", raw: "I cannot help with that", fallback: true},
		{name: "brokenJSON", raw: `{"mood": }`, fallback: true},
		{name: "onlyInvalidFields", raw: `{"aspect_ratio":"2:1","fps":12}`, fallback: true},
		{
			name: "wrappedInProse",
			raw:  `Here you go: {"mood":"calm"} enjoy`,
			check: func(t *testing.T, p model.SpecPatch) {
				require.NotNil(t, p.Mood)
				assert.Equal(t, "calm", *p.Mood)
				assert.Nil(t, p.Style)
			},
		},
		{
			name: "durationClampedLow",
			raw:  `{"duration_seconds": 1}`,
			check: func(t *testing.T, p model.SpecPatch) {
				require.NotNil(t, p.DurationSeconds)
				assert.Equal(t, model.MinDurationSeconds, *p.DurationSeconds)
			},
		},
		{
			name: "fractionalDurationIgnored",
			raw:  `{"duration_seconds": 7.5, "music": "lofi"}`,
			check: func(t *testing.T, p model.SpecPatch) {
				assert.Nil(t, p.DurationSeconds)
				require.NotNil(t, p.Music)
			},
		},
		{
			name: "overlaysAndSeed",
			raw:  `{"text_overlays":["Hello","", "World"],"seed":42}`,
			check: func(t *testing.T, p model.SpecPatch) {
				assert.Equal(t, []string{"Hello", "World"}, p.TextOverlays)
				require.NotNil(t, p.Seed)
				assert.Equal(t, int64(42), *p.Seed)
			},
		},
		{
			name: "allBrandColorsInvalid",
			raw:  `{"brand_colors":["red"],"mood":"warm"}`,
			check: func(t *testing.T, p model.SpecPatch) {
				assert.Nil(t, p.BrandColors)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := services.ParseOrFallback(tt.raw)
			if tt.fallback {
				fb, ok := out.(services.Fallback)
				require.True(t, ok, "expected fallback, got %#v", out)
				assert.NotEmpty(t, fb.Reason)
				return
			}
			parsed, ok := out.(services.Parsed)
			require.True(t, ok, "expected parsed, got %#v", out)
			tt.check(t, parsed.Patch)
		})
	}
}

func TestNewPromptSpecifier_BadTemplate(t *testing.T) {
	_, err := services.NewPromptSpecifier(nil, cloud.PromptTemplates{Quantify: "{{.Prompt"})
	assert.Error(t, err)
}

func TestGroqLanguageModel(t *testing.T) {
	var gotFormat string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ResponseFormat struct {
				Type string `json:"type"`
			} `json:"response_format"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotFormat = req.ResponseFormat.Type
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "test-id",
			"object":  "chat.completion",
			"created": 1234567890,
			"model":   "llama-3.3-70b-versatile",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": "```json\n{\"mood\":\"calm\"}\n```"},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	defer server.Close()

	llm, err := services.NewGroqLanguageModel("test-api-key", "llama-3.3-70b-versatile", groq.WithBaseURL(server.URL+"/"))
	require.NoError(t, err)
	assert.Equal(t, "groq:llama-3.3-70b-versatile", llm.Name())

	out, err := llm.CompleteJSON(context.Background(), "system", "prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"mood":"calm"}`, out)
	assert.Equal(t, "json_object", gotFormat)
}

func TestGroqLanguageModel_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	llm, err := services.NewGroqLanguageModel("bad", "m", groq.WithBaseURL(server.URL+"/"))
	require.NoError(t, err)
	_, err = llm.CompleteJSON(context.Background(), "s", "p")
	assert.Error(t, err)
}
