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
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-creative-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/backends"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-creative-studio/internal/httputil"
	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

func TestMockAdapterIsDeterministic(t *testing.T) {
	adapter := backends.NewMockAdapter("")
	spec := model.NewGenerationSpec("mock it").WithSeed(42)

	out := adapter.Generate(context.Background(), spec, nil)

	assert.True(t, out.Success)
	assert.Equal(t, "https://cdn.example.com/generated/videos/mock_42.mp4", out.RemoteLocator)
	assert.Equal(t, "mock_42", out.JobID)
	assert.Equal(t, model.BackendMock, out.Backend)
	assert.Equal(t, int64(42), out.Params["seed"])
	assert.True(t, model.IsPlaceholderLocator(out.RemoteLocator))
}

func TestMockAdapterDrawsSeed(t *testing.T) {
	out := backends.NewMockAdapter("").Generate(context.Background(), model.NewGenerationSpec("x"), nil)
	seed, ok := out.Params["seed"].(int64)
	assert.True(t, ok)
	assert.GreaterOrEqual(t, seed, int64(1))
	assert.LessOrEqual(t, seed, int64(backends.MaxSeed))
}

// vendorServer emulates a job API that completes after pendingPolls polls.
func vendorServer(t *testing.T, pendingPolls int32, final map[string]any) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var polls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret-key" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"bad key"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/jobs":
			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "a runway clip", body["promptText"])
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "job-1", "status": "queued"})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/jobs/job-1":
			if polls.Add(1) <= pendingPolls {
				_ = json.NewEncoder(w).Encode(map[string]any{"id": "job-1", "status": "running"})
				return
			}
			_ = json.NewEncoder(w).Encode(final)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server, &polls
}

func newRunwayAdapter(endpoint string) *backends.JobAdapter {
	settings := cloud.Backend{Endpoint: endpoint, APIKeyEnv: "STUDIO_TEST_RUNWAY_KEY", RateLimit: 100}
	return backends.NewJobAdapter(backends.Profiles()[model.BackendRunway], settings, cloud.NewSecretResolver(nil, "")).
		WithPollInterval(time.Millisecond).
		WithRetryConfig(httputil.RetryConfig{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1})
}

func TestJobAdapterSubmitsAndPolls(t *testing.T) {
	t.Setenv("STUDIO_TEST_RUNWAY_KEY", "secret-key")
	server, polls := vendorServer(t, 2, map[string]any{"id": "job-1", "status": "SUCCEEDED", "output": []string{"https://cdn.vendor.test/job-1.mp4"}})

	out := newRunwayAdapter(server.URL+"/v1/jobs").Generate(context.Background(), model.NewGenerationSpec("a runway clip").WithSeed(9), nil)

	assert.True(t, out.Success, out.Message)
	assert.Equal(t, "https://cdn.vendor.test/job-1.mp4", out.RemoteLocator)
	assert.Equal(t, "job-1", out.JobID)
	assert.Equal(t, "Runway request accepted", out.Message)
	assert.Equal(t, "gen3a_turbo", out.Params["model"])
	assert.Equal(t, int32(3), polls.Load())
}

func TestJobAdapterReportsFailedJob(t *testing.T) {
	t.Setenv("STUDIO_TEST_RUNWAY_KEY", "secret-key")
	server, _ := vendorServer(t, 0, map[string]any{"id": "job-1", "status": "failed", "error": "content policy"})

	out := newRunwayAdapter(server.URL+"/v1/jobs").Generate(context.Background(), model.NewGenerationSpec("a runway clip"), nil)

	assert.False(t, out.Success)
	assert.Empty(t, out.RemoteLocator)
	assert.Contains(t, out.Message, "content policy")
}

func TestJobAdapterRejectedCredentials(t *testing.T) {
	t.Setenv("STUDIO_TEST_RUNWAY_KEY", "wrong")
	server, _ := vendorServer(t, 0, nil)

	out := newRunwayAdapter(server.URL+"/v1/jobs").Generate(context.Background(), model.NewGenerationSpec("a runway clip"), nil)

	assert.False(t, out.Success)
	assert.Contains(t, out.Message, "status 401")
	assert.True(t, strings.HasPrefix(out.Message, "backend runway: "), out.Message)
}

func TestJobAdapterMissingCredentials(t *testing.T) {
	out := newRunwayAdapter("https://api.vendor.test/v1/jobs").Generate(context.Background(), model.NewGenerationSpec("x"), nil)

	assert.False(t, out.Success)
	assert.Contains(t, out.Message, "credentials missing")
	assert.Contains(t, out.Message, "STUDIO_TEST_RUNWAY_KEY")
}

func TestJobAdapterWithoutEndpoint(t *testing.T) {
	out := newRunwayAdapter("").Generate(context.Background(), model.NewGenerationSpec("x"), nil)
	assert.False(t, out.Success)
	assert.True(t, strings.Contains(out.Message, "not configured"))
}

func TestJobAdapterSendsCreativeFields(t *testing.T) {
	t.Setenv("STUDIO_TEST_PIKA_KEY", "secret-key")
	bodies := make(chan map[string]any, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies <- body
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "pk-1", "status": "completed", "output_url": "https://cdn.vendor.test/pk-1.mp4"})
	}))
	defer server.Close()

	spec := model.NewGenerationSpec("product reveal")
	spec.Music = "lo-fi beat"
	spec.VoiceoverScript = "Meet the new blend"
	spec.TextOverlays = []string{"New", "Now in stores"}
	spec.ColorPalette = "warm earth tones"
	spec.BrandColors = []string{"#6F4E37"}
	spec.Subtitles = true

	settings := cloud.Backend{Endpoint: server.URL, APIKeyEnv: "STUDIO_TEST_PIKA_KEY", RateLimit: 100}
	out := backends.NewJobAdapter(backends.Profiles()[model.BackendPika], settings, cloud.NewSecretResolver(nil, "")).
		Generate(context.Background(), spec, nil)
	assert.True(t, out.Success, out.Message)

	body := <-bodies
	assert.Equal(t, "lo-fi beat", body["music"])
	assert.Equal(t, "Meet the new blend", body["voiceover_script"])
	assert.Equal(t, []any{"New", "Now in stores"}, body["text_overlays"])
	assert.Equal(t, "warm earth tones", body["color_palette"])
	assert.Equal(t, []any{"#6F4E37"}, body["brand_colors"])
	assert.Equal(t, true, body["subtitles"])
	prompt, _ := body["prompt"].(string)
	assert.True(t, strings.HasPrefix(prompt, "product reveal "), prompt)
	for _, want := range []string{"Music: lo-fi beat.", "Brand colors: #6F4E37.", "On-screen text: New | Now in stores.", "Include subtitles."} {
		assert.Contains(t, prompt, want)
	}
}

type fakeVideoModels struct {
	op     *genai.GenerateVideosOperation
	err    error
	prompt string
	config *genai.GenerateVideosConfig
}

func (f *fakeVideoModels) GenerateVideos(_ context.Context, _ string, prompt string, _ *genai.Image, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error) {
	f.prompt = prompt
	f.config = config
	return f.op, f.err
}

type fakeVideoOperations struct {
	final *genai.GenerateVideosOperation
	err   error
	calls int
}

func (f *fakeVideoOperations) GetVideosOperation(_ context.Context, _ *genai.GenerateVideosOperation, _ *genai.GetOperationConfig) (*genai.GenerateVideosOperation, error) {
	f.calls++
	return f.final, f.err
}

func TestVeoAdapterPollsOperation(t *testing.T) {
	models := &fakeVideoModels{op: &genai.GenerateVideosOperation{Name: "operations/1"}}
	ops := &fakeVideoOperations{final: &genai.GenerateVideosOperation{
		Name: "operations/1",
		Done: true,
		Response: &genai.GenerateVideosResponse{GeneratedVideos: []*genai.GeneratedVideo{
			{Video: &genai.Video{URI: "gs://veo-out/1/sample_0.mp4", MIMEType: "video/mp4"}},
		}},
	}}
	adapter := backends.NewVeoAdapter(models, ops, cloud.Backend{OutputGCSURI: "gs://veo-out/1/"}).WithPollInterval(time.Millisecond)
	spec := model.GetExampleSpec().WithSeed(77)

	out := adapter.Generate(context.Background(), spec, nil)

	assert.True(t, out.Success, out.Message)
	assert.Equal(t, "gs://veo-out/1/sample_0.mp4", out.RemoteLocator)
	assert.Equal(t, "operations/1", out.JobID)
	assert.Equal(t, 1, ops.calls)
	assert.Equal(t, int32(77), *models.config.Seed)
	assert.Equal(t, "9:16", models.config.AspectRatio)
	assert.Equal(t, "gs://veo-out/1/", models.config.OutputGCSURI)
	assert.Contains(t, models.prompt, "Camera: handheld energy")
}

func TestVeoAdapterFailures(t *testing.T) {
	unconfigured := backends.NewVeoAdapter(nil, nil, cloud.Backend{})
	out := unconfigured.Generate(context.Background(), model.NewGenerationSpec("x"), nil)
	assert.False(t, out.Success)
	assert.Contains(t, out.Message, "not configured")

	rejected := backends.NewVeoAdapter(&fakeVideoModels{err: errors.New("permission denied")}, &fakeVideoOperations{}, cloud.Backend{})
	out = rejected.Generate(context.Background(), model.NewGenerationSpec("x"), nil)
	assert.False(t, out.Success)
	assert.Contains(t, out.Message, "permission denied")

	failedOp := &genai.GenerateVideosOperation{Name: "operations/2", Done: true, Error: map[string]any{"message": "quota exceeded"}}
	failing := backends.NewVeoAdapter(&fakeVideoModels{op: failedOp}, &fakeVideoOperations{}, cloud.Backend{})
	out = failing.Generate(context.Background(), model.NewGenerationSpec("x"), nil)
	assert.False(t, out.Success)
	assert.Contains(t, out.Message, "quota exceeded")
	assert.Empty(t, out.RemoteLocator)
}

func TestVeoAdapterMissingOperation(t *testing.T) {
	pending := func() *genai.GenerateVideosOperation {
		return &genai.GenerateVideosOperation{Name: "operations/3"}
	}

	noStart := backends.NewVeoAdapter(&fakeVideoModels{}, &fakeVideoOperations{}, cloud.Backend{})
	out := noStart.Generate(context.Background(), model.NewGenerationSpec("x"), nil)
	assert.False(t, out.Success)
	assert.Contains(t, out.Message, "no operation returned")

	vanished := backends.NewVeoAdapter(&fakeVideoModels{op: pending()}, &fakeVideoOperations{}, cloud.Backend{}).WithPollInterval(time.Millisecond)
	out = vanished.Generate(context.Background(), model.NewGenerationSpec("x"), nil)
	assert.False(t, out.Success)
	assert.Equal(t, "operations/3", out.JobID)
	assert.Contains(t, out.Message, "no operation returned")

	pollErr := &fakeVideoOperations{err: errors.New("deadline exceeded")}
	unreachable := backends.NewVeoAdapter(&fakeVideoModels{op: pending()}, pollErr, cloud.Backend{}).WithPollInterval(time.Millisecond)
	out = unreachable.Generate(context.Background(), model.NewGenerationSpec("x"), nil)
	assert.False(t, out.Success)
	assert.Equal(t, "operations/3", out.JobID)
	assert.Contains(t, out.Message, "backend veo: deadline exceeded")
	assert.Equal(t, 1, pollErr.calls)
}
