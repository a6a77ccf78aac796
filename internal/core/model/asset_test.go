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

package model_test

import (
	"strings"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-creative-studio/internal/core/model"
	"github.com/stretchr/testify/assert"
)

func TestStoragePathFormat(t *testing.T) {
	at := time.Date(2024, 10, 11, 3, 4, 8, 0, time.UTC)

	path := model.StoragePath("videos", "acme", "cr-42", 7, ".MP4", at)

	assert.Equal(t, "videos/acme/20241011_030408-cr-42-007.mp4", path)
}

func TestStoragePathUsesUTC(t *testing.T) {
	zone := time.FixedZone("UTC+2", 2*60*60)
	at := time.Date(2024, 10, 11, 5, 4, 8, 0, zone)

	path := model.StoragePath("videos/", "acme", "cr", 1, "", at)

	assert.Equal(t, "videos/acme/20241011_030408-cr-001.mp4", path)
}

func TestStoragePathsNeverCollideAcrossTenants(t *testing.T) {
	at := time.Now()
	tenants := []string{"t1", "t2", "t1.eu", "T1"}
	seen := make(map[string]string)
	for _, tenant := range tenants {
		for iteration := 1; iteration <= 3; iteration++ {
			path := model.StoragePath("videos", tenant, "creative", iteration, "mp4", at)
			assert.True(t, strings.HasPrefix(path, model.TenantPrefix("videos", tenant)))
			if other, ok := seen[path]; ok {
				t.Fatalf("path %s generated for %s and %s", path, other, tenant)
			}
			seen[path] = tenant
		}
	}
}

func TestValidateSegment(t *testing.T) {
	assert.NoError(t, model.ValidateSegment("tenant_id", "acme-01_eu.v2"))
	assert.Error(t, model.ValidateSegment("tenant_id", ""))
	assert.Error(t, model.ValidateSegment("tenant_id", "acme/eu"))
	assert.Error(t, model.ValidateSegment("tenant_id", ".."))
	assert.Error(t, model.ValidateSegment("creative_id", "a b"))
}

func TestIsPlaceholderLocator(t *testing.T) {
	placeholders := []string{
		"",
		"https://cdn.example.com/generated/videos/mock_1.mp4",
		"https://runway-public.example/runway_9.mp4",
		"http://example.org/a.mp4",
	}
	for _, p := range placeholders {
		assert.True(t, model.IsPlaceholderLocator(p), p)
	}

	durable := []string{
		"https://storage.googleapis.com/bucket/video.mp4",
		"gs://bucket/outputs/sample_0.mp4",
		"http://127.0.0.1:8123/clip.mp4",
		"https://examples.io/clip.mp4",
	}
	for _, r := range durable {
		assert.False(t, model.IsPlaceholderLocator(r), r)
	}
}

func TestAssetMetadata(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	md := model.AssetMetadata("acme", "cr", 2, "https://vendor/x.mp4", at)

	assert.Equal(t, map[string]string{
		"tenant":       "acme",
		"creative_id":  "cr",
		"iteration":    "2",
		"original_url": "https://vendor/x.mp4",
		"uploaded_at":  "2024-01-02T03:04:05Z",
	}, md)
	assert.True(t, model.IsIdentityMetadataKey("tenant"))
	assert.False(t, model.IsIdentityMetadataKey("campaign"))
}

func TestLookupBackend(t *testing.T) {
	b, ok := model.LookupBackend(" Runway ")
	assert.True(t, ok)
	assert.Equal(t, model.BackendRunway, b)

	b, ok = model.LookupBackend("google_veo")
	assert.True(t, ok)
	assert.Equal(t, model.BackendVeo, b)

	_, ok = model.LookupBackend("unknown_model")
	assert.False(t, ok)
	_, ok = model.LookupBackend("")
	assert.False(t, ok)

	assert.Len(t, model.KnownBackends(), 7)
}

func TestFailedOutcomeHasNoLocator(t *testing.T) {
	out := model.Failed(model.BackendPika, "job", "rejected", nil)
	assert.False(t, out.Success)
	assert.Empty(t, out.RemoteLocator)
}

func TestSubmissionValidate(t *testing.T) {
	valid := model.GenerationSubmission{TenantID: "acme", CreativeID: "cr-1", Prompt: "x"}
	assert.NoError(t, valid.Validate(4))

	for name, tc := range map[string]struct {
		sub   model.GenerationSubmission
		field string
	}{
		"emptyCreative": {sub: model.GenerationSubmission{TenantID: "acme"}, field: "creative_id"},
		"tooMany":       {sub: model.GenerationSubmission{TenantID: "acme", CreativeID: "cr-1", Variations: 5}, field: "variations"},
		"negative":      {sub: model.GenerationSubmission{TenantID: "acme", CreativeID: "cr-1", Variations: -2}, field: "variations"},
		"emptyTenant":   {sub: model.GenerationSubmission{CreativeID: "cr-1"}, field: "tenant_id"},
		"dottedTenant":  {sub: model.GenerationSubmission{TenantID: "..", CreativeID: "cr-1"}, field: "tenant_id"},
		"slashCreative": {sub: model.GenerationSubmission{TenantID: "acme", CreativeID: "a/b"}, field: "creative_id"},
	} {
		t.Run(name, func(t *testing.T) {
			err := tc.sub.Validate(4)
			var verr *model.ValidationError
			if assert.ErrorAs(t, err, &verr) {
				assert.Equal(t, tc.field, verr.Field)
			}
		})
	}
}
