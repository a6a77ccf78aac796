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

import "strings"

// BackendIdentity is the logical name of a generation backend.
type BackendIdentity string

const (
	BackendRunway       BackendIdentity = "runway"
	BackendPika         BackendIdentity = "pika"
	BackendStability    BackendIdentity = "stability"
	BackendLuma         BackendIdentity = "luma"
	BackendVeo          BackendIdentity = "veo"
	BackendOpenAIShorts BackendIdentity = "openai-shorts"
	BackendMock         BackendIdentity = "mock"

	// DefaultBackend is where unknown or empty backend names resolve to.
	DefaultBackend = BackendVeo
)

var knownBackends = []BackendIdentity{
	BackendRunway,
	BackendPika,
	BackendStability,
	BackendLuma,
	BackendVeo,
	BackendOpenAIShorts,
	BackendMock,
}

// legacy names still sent by older clients
var backendAliases = map[string]BackendIdentity{
	"runway_gen3":   BackendRunway,
	"pika_v2":       BackendPika,
	"stability_svd": BackendStability,
	"luma_dream":    BackendLuma,
	"google_veo":    BackendVeo,
	"openai_shorts": BackendOpenAIShorts,
	"openai":        BackendOpenAIShorts,
}

// KnownBackends returns every identity in display order.
func KnownBackends() []BackendIdentity {
	return append([]BackendIdentity(nil), knownBackends...)
}

// LookupBackend normalizes name and returns the identity it denotes. The second
// result is false for unknown or empty names.
func LookupBackend(name string) (BackendIdentity, bool) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return "", false
	}
	for _, b := range knownBackends {
		if string(b) == normalized {
			return b, true
		}
	}
	if b, ok := backendAliases[normalized]; ok {
		return b, true
	}
	return "", false
}

func (b BackendIdentity) String() string { return string(b) }
