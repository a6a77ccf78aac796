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

// Package model holds the value types that flow through the generation pipeline:
// the quantified GenerationSpec, the outcome of one backend attempt, the persisted
// asset record and the error taxonomy shared by every layer.
//
// GenerationSpec is treated as an immutable value. It is passed by value and every
// derivation (Merge, WithSeed, WithMood, ...) returns a fresh copy whose slices do
// not alias the source.
package model

import (
	"fmt"
	"regexp"
	"strings"
)

// AspectRatio is the frame shape requested from a backend.
type AspectRatio string

const (
	AspectVertical   AspectRatio = "9:16"
	AspectLandscape  AspectRatio = "16:9"
	AspectSquare     AspectRatio = "1:1"
	AspectPortrait45 AspectRatio = "4:5"
)

// Resolution is the output resolution class.
type Resolution string

const (
	Resolution720p  Resolution = "720p"
	Resolution1080p Resolution = "1080p"
	Resolution4K    Resolution = "4k"
)

// Bounds and defaults for a quantified spec.
const (
	MinDurationSeconds = 5
	MaxDurationSeconds = 60

	DefaultDurationSeconds = 10
	DefaultAspectRatio     = AspectLandscape
	DefaultResolution      = Resolution1080p
	DefaultFPS             = 24
	DefaultStyle           = "cinematic"
	DefaultMood            = "uplifting"
	DefaultCamera          = "smooth dolly-in"
)

var (
	aspectRatios = []AspectRatio{AspectVertical, AspectLandscape, AspectSquare, AspectPortrait45}
	resolutions  = []Resolution{Resolution720p, Resolution1080p, Resolution4K}
	frameRates   = []int{24, 30, 60}

	hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
)

// AspectRatios lists the accepted aspect ratios in display order.
func AspectRatios() []AspectRatio { return append([]AspectRatio(nil), aspectRatios...) }

// Resolutions lists the accepted resolutions in display order.
func Resolutions() []Resolution { return append([]Resolution(nil), resolutions...) }

// FrameRates lists the accepted frame rates.
func FrameRates() []int { return append([]int(nil), frameRates...) }

// ParseAspectRatio returns the aspect ratio named by in and false when it is not one
// of the supported values.
func ParseAspectRatio(in string) (AspectRatio, bool) {
	candidate := AspectRatio(strings.TrimSpace(in))
	for _, a := range aspectRatios {
		if a == candidate {
			return a, true
		}
	}
	return "", false
}

// ParseResolution accepts the canonical names case-insensitively ("4K" == "4k").
func ParseResolution(in string) (Resolution, bool) {
	candidate := Resolution(strings.ToLower(strings.TrimSpace(in)))
	for _, r := range resolutions {
		if r == candidate {
			return r, true
		}
	}
	return "", false
}

// IsFrameRate reports whether fps is one of the supported frame rates.
func IsFrameRate(fps int) bool {
	for _, f := range frameRates {
		if f == fps {
			return true
		}
	}
	return false
}

// IsHexColor reports whether in is a #RGB or #RRGGBB color.
func IsHexColor(in string) bool {
	return hexColorPattern.MatchString(strings.TrimSpace(in))
}

// ClampDuration forces a duration into the supported window.
func ClampDuration(seconds int) int {
	if seconds < MinDurationSeconds {
		return MinDurationSeconds
	}
	if seconds > MaxDurationSeconds {
		return MaxDurationSeconds
	}
	return seconds
}

// GenerationSpec is the quantified, bounded description of a media generation.
// The JSON form is the one exchanged with the language model during quantification.
type GenerationSpec struct {
	Prompt          string      `json:"prompt"`                     // Free text describing the media.
	DurationSeconds int         `json:"duration_seconds"`           // Length of the clip, within [MinDurationSeconds, MaxDurationSeconds].
	AspectRatio     AspectRatio `json:"aspect_ratio"`               // Frame shape.
	Resolution      Resolution  `json:"resolution"`                 // Output resolution class.
	FPS             int         `json:"fps"`                        // Frame rate: 24, 30 or 60.
	Style           string      `json:"style"`                      // Visual style, e.g. "cinematic".
	Mood            string      `json:"mood"`                       // Emotional tone, e.g. "uplifting".
	Camera          string      `json:"camera"`                     // Camera movement, e.g. "smooth dolly-in".
	ColorPalette    string      `json:"color_palette,omitempty"`    // Optional palette description.
	Music           string      `json:"music,omitempty"`            // Optional music cue.
	VoiceoverScript string      `json:"voiceover_script,omitempty"` // Optional voiceover script.
	TextOverlays    []string    `json:"text_overlays,omitempty"`    // Optional ordered short overlays.
	Subtitles       bool        `json:"subtitles"`                  // Burn subtitles into the output.
	BrandColors     []string    `json:"brand_colors,omitempty"`     // Optional brand hex colors.
	Seed            *int64      `json:"seed,omitempty"`             // Optional pinned seed; nil means "draw one per attempt".
}

// NewGenerationSpec returns a spec for prompt with every other field at its default.
func NewGenerationSpec(prompt string) GenerationSpec {
	return GenerationSpec{
		Prompt:          prompt,
		DurationSeconds: DefaultDurationSeconds,
		AspectRatio:     DefaultAspectRatio,
		Resolution:      DefaultResolution,
		FPS:             DefaultFPS,
		Style:           DefaultStyle,
		Mood:            DefaultMood,
		Camera:          DefaultCamera,
	}
}

// Validate checks every bounded field and returns a *ValidationError naming the
// first offending field.
func (s GenerationSpec) Validate() error {
	switch {
	case strings.TrimSpace(s.Prompt) == "":
		return NewValidationError("prompt", "must not be empty")
	case s.DurationSeconds < MinDurationSeconds || s.DurationSeconds > MaxDurationSeconds:
		return NewValidationError("duration_seconds", fmt.Sprintf("must be between %d and %d, got %d", MinDurationSeconds, MaxDurationSeconds, s.DurationSeconds))
	}
	if _, ok := ParseAspectRatio(string(s.AspectRatio)); !ok {
		return NewValidationError("aspect_ratio", fmt.Sprintf("unsupported value %q", s.AspectRatio))
	}
	if _, ok := ParseResolution(string(s.Resolution)); !ok {
		return NewValidationError("resolution", fmt.Sprintf("unsupported value %q", s.Resolution))
	}
	if !IsFrameRate(s.FPS) {
		return NewValidationError("fps", fmt.Sprintf("unsupported value %d", s.FPS))
	}
	for _, c := range s.BrandColors {
		if !IsHexColor(c) {
			return NewValidationError("brand_colors", fmt.Sprintf("%q is not a hex color", c))
		}
	}
	return nil
}

// Clone returns a deep copy. Empty lists are normalized to nil so that a JSON round
// trip reproduces the value exactly.
func (s GenerationSpec) Clone() GenerationSpec {
	out := s
	out.TextOverlays = cloneStrings(s.TextOverlays)
	out.BrandColors = cloneStrings(s.BrandColors)
	if s.Seed != nil {
		seed := *s.Seed
		out.Seed = &seed
	}
	return out
}

// HasSeed reports whether the spec pins a seed.
func (s GenerationSpec) HasSeed() bool { return s.Seed != nil }

// SeedValue returns the pinned seed or zero.
func (s GenerationSpec) SeedValue() int64 {
	if s.Seed == nil {
		return 0
	}
	return *s.Seed
}

// WithSeed returns a copy pinned to seed.
func (s GenerationSpec) WithSeed(seed int64) GenerationSpec {
	out := s.Clone()
	out.Seed = &seed
	return out
}

// WithoutSeed returns a copy with the seed cleared.
func (s GenerationSpec) WithoutSeed() GenerationSpec {
	out := s.Clone()
	out.Seed = nil
	return out
}

func (s GenerationSpec) WithMood(mood string) GenerationSpec {
	return s.Merge(SpecPatch{Mood: &mood})
}

func (s GenerationSpec) WithStyle(style string) GenerationSpec {
	return s.Merge(SpecPatch{Style: &style})
}

// Params echoes the effective parameters of the spec for audit records.
func (s GenerationSpec) Params() map[string]any {
	params := map[string]any{
		"prompt":           s.Prompt,
		"duration_seconds": s.DurationSeconds,
		"aspect_ratio":     string(s.AspectRatio),
		"resolution":       string(s.Resolution),
		"fps":              s.FPS,
		"style":            s.Style,
		"mood":             s.Mood,
		"camera":           s.Camera,
		"subtitles":        s.Subtitles,
	}
	if s.ColorPalette != "" {
		params["color_palette"] = s.ColorPalette
	}
	if s.Music != "" {
		params["music"] = s.Music
	}
	if s.VoiceoverScript != "" {
		params["voiceover_script"] = s.VoiceoverScript
	}
	if len(s.TextOverlays) > 0 {
		params["text_overlays"] = cloneStrings(s.TextOverlays)
	}
	if len(s.BrandColors) > 0 {
		params["brand_colors"] = cloneStrings(s.BrandColors)
	}
	if s.Seed != nil {
		params["seed"] = *s.Seed
	}
	return params
}

// SpecPatch carries the fields decoded from a model response. A nil field means
// "not provided" and leaves the base value untouched on Merge.
type SpecPatch struct {
	Prompt          *string
	DurationSeconds *int
	AspectRatio     *AspectRatio
	Resolution      *Resolution
	FPS             *int
	Style           *string
	Mood            *string
	Camera          *string
	ColorPalette    *string
	Music           *string
	VoiceoverScript *string
	TextOverlays    []string
	Subtitles       *bool
	BrandColors     []string
	Seed            *int64
}

// IsEmpty reports whether the patch carries no field at all.
func (p SpecPatch) IsEmpty() bool {
	return p.Prompt == nil && p.DurationSeconds == nil && p.AspectRatio == nil &&
		p.Resolution == nil && p.FPS == nil && p.Style == nil && p.Mood == nil &&
		p.Camera == nil && p.ColorPalette == nil && p.Music == nil &&
		p.VoiceoverScript == nil && p.TextOverlays == nil && p.Subtitles == nil &&
		p.BrandColors == nil && p.Seed == nil
}

// Merge returns a new spec where every field set in p replaces the base value and
// every unset field keeps it. Values in p are expected to be validated already.
func (s GenerationSpec) Merge(p SpecPatch) GenerationSpec {
	out := s.Clone()
	if p.Prompt != nil {
		out.Prompt = *p.Prompt
	}
	if p.DurationSeconds != nil {
		out.DurationSeconds = *p.DurationSeconds
	}
	if p.AspectRatio != nil {
		out.AspectRatio = *p.AspectRatio
	}
	if p.Resolution != nil {
		out.Resolution = *p.Resolution
	}
	if p.FPS != nil {
		out.FPS = *p.FPS
	}
	if p.Style != nil {
		out.Style = *p.Style
	}
	if p.Mood != nil {
		out.Mood = *p.Mood
	}
	if p.Camera != nil {
		out.Camera = *p.Camera
	}
	if p.ColorPalette != nil {
		out.ColorPalette = *p.ColorPalette
	}
	if p.Music != nil {
		out.Music = *p.Music
	}
	if p.VoiceoverScript != nil {
		out.VoiceoverScript = *p.VoiceoverScript
	}
	if p.TextOverlays != nil {
		out.TextOverlays = cloneStrings(p.TextOverlays)
	}
	if p.Subtitles != nil {
		out.Subtitles = *p.Subtitles
	}
	if p.BrandColors != nil {
		out.BrandColors = cloneStrings(p.BrandColors)
	}
	if p.Seed != nil {
		seed := *p.Seed
		out.Seed = &seed
	}
	return out
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	return append([]string(nil), in...)
}
