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
	"strings"
	"unicode"

	"github.com/jaycherian/gcp-go-creative-studio/internal/core/model"
)

var (
	verticalPlatforms = []string{"tiktok", "reels", "shorts", "stories", "snapchat"}
	feedPlatforms     = []string{"instagram feed", "facebook feed", "linkedin"}
	socialMentions    = []string{"social", "tiktok", "reels", "shorts"}
	energyMentions    = []string{"energy", "energetic"}
)

const (
	socialVerticalStyle  = "dynamic social-first"
	socialVerticalCamera = "handheld energy"
	socialStyle          = "social-first"
	energeticMood        = "energetic"
)

// HeuristicQuantify builds a spec from platform keywords found in the campaign
// context, brand guidelines and target audience. The free-text prompt is never
// searched. It is deterministic.
func HeuristicQuantify(req model.QuantifyRequest) model.GenerationSpec {
	spec := model.NewGenerationSpec(req.Prompt)
	haystack := words(strings.Join([]string{
		flatten(req.CampaignContext),
		flatten(req.BrandGuidelines),
		flatten(req.TargetAudience),
	}, " "))

	switch {
	case containsAny(haystack, verticalPlatforms):
		spec.AspectRatio = model.AspectVertical
		spec.Style = socialVerticalStyle
		spec.Camera = socialVerticalCamera
		spec.Subtitles = true
	case containsAny(haystack, feedPlatforms):
		spec.AspectRatio = model.AspectPortrait45
	case containsAny(haystack, []string{"square"}):
		spec.AspectRatio = model.AspectSquare
	}
	return spec
}

// HeuristicRefine applies keyword driven tweaks to prior.
func HeuristicRefine(prior model.GenerationSpec, feedback string) model.GenerationSpec {
	text := words(feedback)
	var patch model.SpecPatch
	if containsAny(text, energyMentions) {
		mood := energeticMood
		patch.Mood = &mood
	}
	if containsAny(text, socialMentions) {
		style := socialStyle
		patch.Style = &style
	}
	if containsAny(text, verticalPlatforms) {
		aspect := model.AspectVertical
		patch.AspectRatio = &aspect
	}
	return prior.Merge(patch)
}

// words lower-cases text and reduces it to single-space separated words so
// keywords match whole words only.
func words(text string) string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return " " + strings.Join(fields, " ") + " "
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, " "+n+" ") {
			return true
		}
	}
	return false
}

func flatten(in map[string]any) string {
	if len(in) == 0 {
		return ""
	}
	out, err := json.Marshal(in)
	if err != nil {
		return ""
	}
	return string(out)
}
