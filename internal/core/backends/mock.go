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
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/jaycherian/gcp-go-creative-studio/internal/core/model"
)

// DefaultMockBaseURL is a placeholder host: outcomes pointing at it are never persisted.
const DefaultMockBaseURL = "https://cdn.example.com/generated/videos"

// MaxSeed is the upper bound of drawn seeds.
const MaxSeed = 10_000_000

// DrawSeed returns a seed in [1, MaxSeed].
func DrawSeed() int64 {
	return rand.Int64N(MaxSeed) + 1
}

// MockAdapter succeeds immediately with {BaseURL}/mock_{seed}.mp4.
type MockAdapter struct {
	BaseURL string
}

func NewMockAdapter(baseURL string) *MockAdapter {
	if baseURL == "" {
		baseURL = DefaultMockBaseURL
	}
	return &MockAdapter{BaseURL: strings.TrimSuffix(baseURL, "/")}
}

func (m *MockAdapter) Identity() model.BackendIdentity {
	return model.BackendMock
}

func (m *MockAdapter) Generate(ctx context.Context, spec model.GenerationSpec, _ model.Assets) model.GenerationOutcome {
	seed := spec.SeedValue()
	if !spec.HasSeed() {
		seed = DrawSeed()
	}
	jobID := fmt.Sprintf("mock_%d", seed)
	params := spec.WithSeed(seed).Params()
	params["model"] = string(model.BackendMock)
	if err := ctx.Err(); err != nil {
		return model.Failed(model.BackendMock, jobID, err.Error(), params)
	}
	return model.Succeeded(model.BackendMock, fmt.Sprintf("%s/%s.mp4", m.BaseURL, jobID), jobID, "Mock generation complete", params)
}
