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
	"fmt"
	"strings"

	"github.com/jaycherian/gcp-go-creative-studio/internal/core/model"
)

// JobProfile describes how one vendor's job API is addressed. The protocol is
// the same for every vendor (submit, poll, fetch); only the request body and
// the defaults differ.
type JobProfile struct {
	Identity  model.BackendIdentity
	Model     string // default model name sent to the vendor
	APIKeyEnv string // default environment variable holding the API key
	Accepted  string // outcome message on success
	Payload   func(modelName string, spec model.GenerationSpec, assets model.Assets) map[string]any
}

// creativeDirections renders the optional creative fields as prompt sentences,
// each with a leading space. Empty when none is set.
func creativeDirections(spec model.GenerationSpec) string {
	var sb strings.Builder
	if spec.ColorPalette != "" {
		fmt.Fprintf(&sb, " Color palette: %s.", spec.ColorPalette)
	}
	if len(spec.BrandColors) > 0 {
		fmt.Fprintf(&sb, " Brand colors: %s.", strings.Join(spec.BrandColors, ", "))
	}
	if spec.Music != "" {
		fmt.Fprintf(&sb, " Music: %s.", spec.Music)
	}
	if spec.VoiceoverScript != "" {
		fmt.Fprintf(&sb, " Voiceover: %q.", spec.VoiceoverScript)
	}
	if len(spec.TextOverlays) > 0 {
		fmt.Fprintf(&sb, " On-screen text: %s.", strings.Join(spec.TextOverlays, " | "))
	}
	if spec.Subtitles {
		sb.WriteString(" Include subtitles.")
	}
	return sb.String()
}

// commonPayload is the request body shared by vendors with a flat job schema.
// Creative fields travel both structured and folded into the prompt.
func commonPayload(modelName string, spec model.GenerationSpec, assets model.Assets) map[string]any {
	body := map[string]any{
		"model":            modelName,
		"prompt":           spec.Prompt + creativeDirections(spec),
		"duration_seconds": spec.DurationSeconds,
		"aspect_ratio":     string(spec.AspectRatio),
		"resolution":       string(spec.Resolution),
		"fps":              spec.FPS,
		"style":            spec.Style,
		"mood":             spec.Mood,
		"camera":           spec.Camera,
		"seed":             spec.SeedValue(),
		"subtitles":        spec.Subtitles,
	}
	if spec.Music != "" {
		body["music"] = spec.Music
	}
	if spec.VoiceoverScript != "" {
		body["voiceover_script"] = spec.VoiceoverScript
	}
	if len(spec.TextOverlays) > 0 {
		body["text_overlays"] = spec.TextOverlays
	}
	if spec.ColorPalette != "" {
		body["color_palette"] = spec.ColorPalette
	}
	if len(spec.BrandColors) > 0 {
		body["brand_colors"] = spec.BrandColors
	}
	if len(assets) > 0 {
		body["assets"] = assets
	}
	return body
}

// Profiles returns the built-in vendor profiles keyed by identity.
func Profiles() map[model.BackendIdentity]JobProfile {
	return map[model.BackendIdentity]JobProfile{
		model.BackendRunway: {
			Identity:  model.BackendRunway,
			Model:     "gen3a_turbo",
			APIKeyEnv: "RUNWAY_API_KEY",
			Accepted:  "Runway request accepted",
			Payload: func(m string, spec model.GenerationSpec, assets model.Assets) map[string]any {
				body := map[string]any{
					"model":      m,
					"promptText": spec.Prompt + creativeDirections(spec),
					"duration":   spec.DurationSeconds,
					"ratio":      string(spec.AspectRatio),
					"seed":       spec.SeedValue(),
				}
				if img, ok := assets["image"]; ok {
					body["promptImage"] = img
				}
				return body
			},
		},
		model.BackendPika: {
			Identity:  model.BackendPika,
			Model:     "pika-2.0",
			APIKeyEnv: "PIKA_API_KEY",
			Accepted:  "Pika request accepted",
			Payload:   commonPayload,
		},
		model.BackendStability: {
			Identity:  model.BackendStability,
			Model:     "stable-video-diffusion",
			APIKeyEnv: "STABILITY_API_KEY",
			Accepted:  "Stability SVD request accepted",
			Payload: func(m string, spec model.GenerationSpec, assets model.Assets) map[string]any {
				body := commonPayload(m, spec, assets)
				body["motion_bucket_id"] = 127
				return body
			},
		},
		model.BackendLuma: {
			Identity:  model.BackendLuma,
			Model:     "ray-2",
			APIKeyEnv: "LUMA_API_KEY",
			Accepted:  "Luma request accepted",
			Payload: func(m string, spec model.GenerationSpec, assets model.Assets) map[string]any {
				body := commonPayload(m, spec, assets)
				body["loop"] = false
				return body
			},
		},
		model.BackendOpenAIShorts: {
			Identity:  model.BackendOpenAIShorts,
			Model:     "sora",
			APIKeyEnv: "OPENAI_API_KEY",
			Accepted:  "OpenAI Shorts request accepted",
			Payload:   commonPayload,
		},
	}
}
