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
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jaycherian/gcp-go-creative-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/model"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const DefaultVeoModel = "veo-3.0-generate-001"

var errNoOperation = errors.New("no operation returned")

// VideoModels is the part of genai.Models used by VeoAdapter.
type VideoModels interface {
	GenerateVideos(ctx context.Context, model string, prompt string, image *genai.Image, config *genai.GenerateVideosConfig) (*genai.GenerateVideosOperation, error)
}

// VideoOperations is the part of genai.Operations used by VeoAdapter.
type VideoOperations interface {
	GetVideosOperation(ctx context.Context, operation *genai.GenerateVideosOperation, config *genai.GetOperationConfig) (*genai.GenerateVideosOperation, error)
}

// VeoAdapter generates with Veo on Vertex AI and waits on the long-running operation.
type VeoAdapter struct {
	models       VideoModels
	operations   VideoOperations
	modelName    string
	outputGCSURI string
	limiter      *rate.Limiter
	pollInterval time.Duration
	timeout      time.Duration
}

// NewVeoAdapter builds the adapter. Nil models or operations yield an adapter
// whose attempts fail with a configuration message.
func NewVeoAdapter(models VideoModels, operations VideoOperations, settings cloud.Backend) *VeoAdapter {
	perSecond := settings.RateLimit
	if perSecond <= 0 {
		perSecond = 1
	}
	poll := time.Duration(settings.PollIntervalSeconds) * time.Second
	if poll <= 0 {
		poll = 10 * time.Second
	}
	timeout := time.Duration(settings.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	name := settings.Model
	if name == "" {
		name = DefaultVeoModel
	}
	return &VeoAdapter{
		models:       models,
		operations:   operations,
		modelName:    name,
		outputGCSURI: settings.OutputGCSURI,
		limiter:      rate.NewLimiter(rate.Limit(perSecond), perSecond),
		pollInterval: poll,
		timeout:      timeout,
	}
}

// NewVeoAdapterFromClient wires the adapter to a genai client, which may be nil.
func NewVeoAdapterFromClient(client *genai.Client, settings cloud.Backend) *VeoAdapter {
	if client == nil {
		return NewVeoAdapter(nil, nil, settings)
	}
	return NewVeoAdapter(client.Models, client.Operations, settings)
}

// WithPollInterval overrides the poll interval, used by tests.
func (v *VeoAdapter) WithPollInterval(d time.Duration) *VeoAdapter {
	v.pollInterval = d
	return v
}

func (v *VeoAdapter) Identity() model.BackendIdentity {
	return model.BackendVeo
}

func (v *VeoAdapter) Generate(ctx context.Context, spec model.GenerationSpec, assets model.Assets) model.GenerationOutcome {
	params := spec.Params()
	params["model"] = v.modelName

	if v.models == nil || v.operations == nil {
		return model.Failed(model.BackendVeo, "", "veo is not configured: no genai client", params)
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	if err := v.limiter.Wait(ctx); err != nil {
		return model.Failed(model.BackendVeo, "", fmt.Sprintf("veo rate limiter: %v", err), params)
	}

	op, err := v.models.GenerateVideos(ctx, v.modelName, veoPrompt(spec), veoImage(assets), v.config(spec))
	if err != nil {
		return model.Failed(model.BackendVeo, "", (&model.ProviderError{Backend: model.BackendVeo, Err: err}).Error(), params)
	}
	if op == nil {
		return model.Failed(model.BackendVeo, "", errNoOperation.Error(), params)
	}
	slog.InfoContext(ctx, "veo operation started", "operation", op.Name)

	for !op.Done {
		select {
		case <-ctx.Done():
			return model.Failed(model.BackendVeo, op.Name, fmt.Sprintf("veo operation %s did not finish: %v", op.Name, ctx.Err()), params)
		case <-time.After(v.pollInterval):
		}
		name := op.Name
		next, err := v.operations.GetVideosOperation(ctx, op, nil)
		if err != nil {
			return model.Failed(model.BackendVeo, name, (&model.ProviderError{Backend: model.BackendVeo, Err: err}).Error(), params)
		}
		if next == nil {
			return model.Failed(model.BackendVeo, name, fmt.Sprintf("veo operation %s: %v", name, errNoOperation), params)
		}
		if next.Name == "" {
			next.Name = name
		}
		op = next
	}

	if len(op.Error) > 0 {
		return model.Failed(model.BackendVeo, op.Name, fmt.Sprintf("veo operation %s failed: %v", op.Name, op.Error["message"]), params)
	}
	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 {
		reason := "no video returned"
		if op.Response != nil && op.Response.RAIMediaFilteredCount > 0 {
			reason = fmt.Sprintf("filtered by safety policy: %s", strings.Join(op.Response.RAIMediaFilteredReasons, "; "))
		}
		return model.Failed(model.BackendVeo, op.Name, "veo "+reason, params)
	}
	video := op.Response.GeneratedVideos[0].Video
	if video == nil || video.URI == "" {
		return model.Failed(model.BackendVeo, op.Name, "veo returned inline bytes only; configure output_gcs_uri", params)
	}
	return model.Succeeded(model.BackendVeo, video.URI, op.Name, "Veo generation complete", params)
}

func (v *VeoAdapter) config(spec model.GenerationSpec) *genai.GenerateVideosConfig {
	cfg := &genai.GenerateVideosConfig{
		NumberOfVideos:  1,
		OutputGCSURI:    v.outputGCSURI,
		DurationSeconds: genai.Ptr(int32(spec.DurationSeconds)),
		AspectRatio:     string(spec.AspectRatio),
		FPS:             genai.Ptr(int32(spec.FPS)),
	}
	if spec.HasSeed() {
		cfg.Seed = genai.Ptr(int32(spec.SeedValue()))
	}
	switch spec.Resolution {
	case model.Resolution720p, model.Resolution1080p:
		cfg.Resolution = string(spec.Resolution)
	}
	if spec.Music != "" || spec.VoiceoverScript != "" {
		cfg.GenerateAudio = genai.Ptr(true)
	}
	return cfg
}

// veoPrompt folds the creative direction into the text prompt.
func veoPrompt(spec model.GenerationSpec) string {
	return fmt.Sprintf("%s\nStyle: %s. Mood: %s. Camera: %s.%s", spec.Prompt, spec.Style, spec.Mood, spec.Camera, creativeDirections(spec))
}

func veoImage(assets model.Assets) *genai.Image {
	img, ok := assets["image"]
	if !ok || !strings.HasPrefix(img, "gs://") {
		return nil
	}
	return &genai.Image{GCSURI: img, MIMEType: mimeFromExtension(img)}
}

func mimeFromExtension(locator string) string {
	switch {
	case strings.HasSuffix(strings.ToLower(locator), ".png"):
		return "image/png"
	case strings.HasSuffix(strings.ToLower(locator), ".webp"):
		return "image/webp"
	}
	return "image/jpeg"
}
