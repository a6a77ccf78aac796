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

package cloud_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-creative-studio/internal/cloud"
	test "github.com/jaycherian/gcp-go-creative-studio/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigLayersRuntimeFile(t *testing.T) {
	dir := t.TempDir()
	base := `
[application]
name = "studio"
default_backend = "veo"

[storage]
bucket = "base-bucket"
namespace = "videos"

[backends.runway]
endpoint = "https://api.runway.test/v1/jobs"
api_key_env = "RUNWAY_API_KEY"
`
	override := `
[application]
default_backend = "mock"

[storage]
bucket = "test-bucket"
`
	assert.NoError(t, os.WriteFile(filepath.Join(dir, ".env.toml"), []byte(base), 0o600))
	assert.NoError(t, os.WriteFile(filepath.Join(dir, ".env.unit.toml"), []byte(override), 0o600))
	t.Setenv(cloud.EnvConfigFilePrefix, dir)
	t.Setenv(cloud.EnvConfigRuntime, "unit")

	config := cloud.NewConfig()
	assert.NoError(t, cloud.LoadConfig(config))

	assert.Equal(t, "studio", config.Application.Name)
	assert.Equal(t, "mock", config.Application.DefaultBackend)
	assert.Equal(t, "test-bucket", config.Storage.Bucket)
	assert.Equal(t, "videos", config.Storage.Namespace)
	assert.Equal(t, "RUNWAY_API_KEY", config.Backends["runway"].APIKeyEnv)
}

func TestLoadConfigRejectsBadToml(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, ".env.toml"), []byte("[application\n"), 0o600))
	t.Setenv(cloud.EnvConfigFilePrefix, dir)

	assert.Error(t, cloud.LoadConfig(cloud.NewConfig()))
}

func TestStorageDefaults(t *testing.T) {
	var s cloud.Storage
	assert.Equal(t, 300*time.Second, s.DownloadTimeout())
	assert.Equal(t, 365*24*time.Hour, s.SignedURLExpiry())
	assert.Equal(t, time.Hour, s.AccessURLExpiry())
	assert.Equal(t, "videos", s.NamespaceOrDefault())
}

func TestParseGCSURI(t *testing.T) {
	obj, err := cloud.ParseGCSURI("gs://veo-output/run/sample_0.mp4")
	assert.NoError(t, err)
	assert.Equal(t, "veo-output", obj.Bucket)
	assert.Equal(t, "run/sample_0.mp4", obj.Name)

	_, err = cloud.ParseGCSURI("https://storage.googleapis.com/b/o.mp4")
	assert.Error(t, err)
	_, err = cloud.ParseGCSURI("gs://bucket-only")
	assert.Error(t, err)
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t,
		"https://storage.googleapis.com/assets/videos/acme/20240101_000000-cr-001.mp4",
		cloud.PublicURL("assets", "videos/acme/20240101_000000-cr-001.mp4"))
}

func TestStripJSONFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cloud.StripJSONFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cloud.StripJSONFence(`  {"a":1} `))
}

func TestSecretResolverPrefersEnvironment(t *testing.T) {
	t.Setenv("STUDIO_TEST_KEY", " from-env ")
	resolver := cloud.NewSecretResolver(nil, "project")

	v, err := resolver.Resolve(context.Background(), "STUDIO_TEST_KEY", "ignored")
	assert.NoError(t, err)
	assert.Equal(t, "from-env", v)

	_, err = resolver.Resolve(context.Background(), "STUDIO_TEST_MISSING", "secret")
	assert.True(t, errors.Is(err, cloud.ErrCredentialMissing))
}

func TestRepositoryConfiguration(t *testing.T) {
	config := test.GetConfig(t)

	assert.Equal(t, "creative-studio", config.Application.Name)
	assert.Equal(t, "mock", config.Application.DefaultBackend)
	assert.Equal(t, "creative-studio-test-assets", config.Storage.Bucket)
	assert.Equal(t, "videos", config.Storage.NamespaceOrDefault())
	assert.Equal(t, 4, config.Orchestration.MaxVariations)
	assert.Empty(t, config.PromptSpecifier.Provider)
	assert.Contains(t, config.AgentModels, "creative-flash")
	assert.Contains(t, config.Backends, "runway")
	assert.Contains(t, config.TopicSubscriptions, "GenerationRequestTopic")
	assert.Equal(t, "generation_attempts", config.BigQueryDataSource.AttemptsTable)
}
