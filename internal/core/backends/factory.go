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
	"github.com/jaycherian/gcp-go-creative-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/model"
	"google.golang.org/genai"
)

// NewRegistryFromConfig binds every known identity: the job vendors, Veo and the
// mock. The default comes from application.default_backend and falls back to
// model.DefaultBackend when empty or unknown.
func NewRegistryFromConfig(config *cloud.Config, genaiClient *genai.Client, credentials cloud.CredentialResolver) (*Registry, error) {
	adapters := make([]Adapter, 0, len(model.KnownBackends()))
	for id, profile := range Profiles() {
		adapters = append(adapters, NewJobAdapter(profile, config.Backends[string(id)], credentials))
	}
	adapters = append(adapters,
		NewVeoAdapterFromClient(genaiClient, config.Backends[string(model.BackendVeo)]),
		NewMockAdapter(config.Backends[string(model.BackendMock)].BaseURL),
	)

	def := model.DefaultBackend
	if id, ok := model.LookupBackend(config.Application.DefaultBackend); ok {
		def = id
	}
	return NewRegistry(def, adapters...)
}
