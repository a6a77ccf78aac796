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

package backends_test

import (
	"context"
	"testing"

	"github.com/jaycherian/gcp-go-creative-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/backends"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/model"
	"github.com/stretchr/testify/assert"
)

func newTestRegistry(t *testing.T) *backends.Registry {
	t.Helper()
	registry, err := backends.NewRegistry(model.BackendVeo,
		backends.NewMockAdapter(""),
		backends.NewVeoAdapter(nil, nil, cloud.Backend{}),
		backends.NewJobAdapter(backends.Profiles()[model.BackendRunway], cloud.Backend{}, nil),
	)
	assert.NoError(t, err)
	return registry
}

func TestRegistryRequiresDefault(t *testing.T) {
	_, err := backends.NewRegistry(model.BackendVeo, backends.NewMockAdapter(""))
	assert.Error(t, err)
}

func TestRegistrySelectIsTotal(t *testing.T) {
	registry := newTestRegistry(t)

	for _, name := range []string{"", "unknown_model", "  ", "pika", "VEO-3"} {
		adapter := registry.Select(name)
		assert.NotNil(t, adapter, name)
		assert.Equal(t, model.BackendVeo, adapter.Identity(), name)
		// Resolving twice gives the same answer.
		assert.Equal(t, registry.Resolve(name), registry.Resolve(name))
	}
}

func TestRegistryResolvesAliases(t *testing.T) {
	registry := newTestRegistry(t)

	assert.Equal(t, model.BackendRunway, registry.Select("runway_gen3").Identity())
	assert.Equal(t, model.BackendRunway, registry.Select(" RUNWAY ").Identity())
	assert.Equal(t, model.BackendVeo, registry.Select("google_veo").Identity())
	assert.Equal(t, model.BackendMock, registry.Select("mock").Identity())
}

func TestRegistrySupportedIsStable(t *testing.T) {
	registry := newTestRegistry(t)

	expected := []model.BackendIdentity{model.BackendRunway, model.BackendVeo, model.BackendMock}
	assert.Equal(t, expected, registry.Supported())
	assert.Equal(t, expected, registry.Supported())
	assert.Equal(t, model.BackendVeo, registry.Default())
}

func TestRegistryReplace(t *testing.T) {
	registry := newTestRegistry(t)
	replacement := backends.NewMockAdapter("https://media.internal.test/clips")

	registry.Replace(replacement)

	out := registry.Select("mock").Generate(context.Background(), model.NewGenerationSpec("x").WithSeed(5), nil)
	assert.Equal(t, "https://media.internal.test/clips/mock_5.mp4", out.RemoteLocator)
}

func TestRegistryFromConfig(t *testing.T) {
	config := cloud.NewConfig()
	config.Application.DefaultBackend = "mock"

	registry, err := backends.NewRegistryFromConfig(config, nil, cloud.NewSecretResolver(nil, ""))
	assert.NoError(t, err)
	assert.Equal(t, model.BackendMock, registry.Default())
	assert.Equal(t, model.KnownBackends(), registry.Supported())

	config.Application.DefaultBackend = "nonsense"
	registry, err = backends.NewRegistryFromConfig(config, nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, model.DefaultBackend, registry.Default())
}
