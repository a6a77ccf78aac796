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

// GetExampleSpec returns a fully populated spec used as the few-shot example in
// the quantification prompt.
func GetExampleSpec() GenerationSpec {
	return GenerationSpec{
		Prompt:          "A barista pours latte art in a sunlit cafe while the brand logo fades in",
		DurationSeconds: 15,
		AspectRatio:     AspectVertical,
		Resolution:      Resolution1080p,
		FPS:             30,
		Style:           "dynamic social-first",
		Mood:            "warm",
		Camera:          "handheld energy",
		ColorPalette:    "amber, cream, espresso brown",
		Music:           "lo-fi acoustic guitar",
		VoiceoverScript: "Your morning, perfected.",
		TextOverlays:    []string{"Fresh every morning", "Order ahead"},
		Subtitles:       true,
		BrandColors:     []string{"#6F4E37", "#F5F0E6"},
	}
}
