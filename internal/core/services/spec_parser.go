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
	"encoding/json"
	"math"
	"strings"

	"github.com/jaycherian/gcp-go-creative-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/model"
)

// ParseOutcome is either Parsed or Fallback.
type ParseOutcome interface {
	isParseOutcome()
}

// Parsed carries the fields that survived validation.
type Parsed struct {
	Patch model.SpecPatch
}

// Fallback means the caller should use its deterministic path.
type Fallback struct {
	Reason string
}

func (Parsed) isParseOutcome()   {}
func (Fallback) isParseOutcome() {}

// ParseOrFallback decodes a language model answer field by field. Fields with the
// wrong type or an unsupported value are dropped, durations are clamped and invalid
// brand colors removed. An answer with no usable field is a Fallback.
func ParseOrFallback(raw string) ParseOutcome {
	body := extractObject(cloud.StripJSONFence(raw))
	if body == "" {
		return Fallback{Reason: "no JSON object in output"}
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return Fallback{Reason: "invalid JSON: " + err.Error()}
	}

	var patch model.SpecPatch
	if s, ok := decodeString(fields["prompt"]); ok && strings.TrimSpace(s) != "" {
		patch.Prompt = &s
	}
	if n, ok := decodeInt(fields["duration_seconds"]); ok {
		d := model.ClampDuration(n)
		patch.DurationSeconds = &d
	}
	if s, ok := decodeString(fields["aspect_ratio"]); ok {
		if a, ok := model.ParseAspectRatio(s); ok {
			patch.AspectRatio = &a
		}
	}
	if s, ok := decodeString(fields["resolution"]); ok {
		if r, ok := model.ParseResolution(s); ok {
			patch.Resolution = &r
		}
	}
	if n, ok := decodeInt(fields["fps"]); ok && model.IsFrameRate(n) {
		patch.FPS = &n
	}
	patch.Style = nonEmpty(fields["style"])
	patch.Mood = nonEmpty(fields["mood"])
	patch.Camera = nonEmpty(fields["camera"])
	patch.ColorPalette = nonEmpty(fields["color_palette"])
	patch.Music = nonEmpty(fields["music"])
	patch.VoiceoverScript = nonEmpty(fields["voiceover_script"])
	if list, ok := decodeStrings(fields["text_overlays"]); ok {
		patch.TextOverlays = filterStrings(list, func(s string) bool { return strings.TrimSpace(s) != "" })
	}
	var subtitles bool
	if raw, ok := fields["subtitles"]; ok && json.Unmarshal(raw, &subtitles) == nil {
		patch.Subtitles = &subtitles
	}
	if list, ok := decodeStrings(fields["brand_colors"]); ok {
		patch.BrandColors = filterStrings(list, model.IsHexColor)
	}
	if n, ok := decodeInt(fields["seed"]); ok && n > 0 {
		seed := int64(n)
		patch.Seed = &seed
	}

	if patch.IsEmpty() {
		return Fallback{Reason: "no usable field"}
	}
	return Parsed{Patch: patch}
}

func extractObject(in string) string {
	start := strings.Index(in, "{")
	end := strings.LastIndex(in, "}")
	if start < 0 || end <= start {
		return ""
	}
	return in[start : end+1]
}

func decodeString(raw json.RawMessage) (string, bool) {
	if raw == nil {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func nonEmpty(raw json.RawMessage) *string {
	s, ok := decodeString(raw)
	if !ok || strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// decodeInt accepts whole JSON numbers, including 10.0.
func decodeInt(raw json.RawMessage) (int, bool) {
	if raw == nil {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func decodeStrings(raw json.RawMessage) ([]string, bool) {
	if raw == nil {
		return nil, false
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil || list == nil {
		return nil, false
	}
	return list, true
}

// filterStrings keeps the accepted entries. A non-empty list where nothing is
// accepted counts as missing; an explicit empty list clears the field.
func filterStrings(in []string, keep func(string) bool) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if keep(s) {
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(in) > 0 {
		return nil
	}
	return out
}
