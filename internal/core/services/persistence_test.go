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

package services_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-creative-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/services"
	"github.com/jaycherian/gcp-go-creative-studio/internal/httputil"
	test "github.com/jaycherian/gcp-go-creative-studio/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mp4Payload starts with an ISO base media header so content sniffing sees video/mp4.
func mp4Payload() []byte {
	head := []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm', 0x00, 0x00, 0x02, 0x00, 'i', 's', 'o', 'm', 'm', 'p', '4', '1'}
	return append(head, make([]byte, 1024)...)
}

func fastRetry() httputil.RetryConfig {
	return httputil.RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

func newPersistence(store *test.MemoryStore) *services.AssetPersistenceService {
	return services.NewAssetPersistenceService(store, store, cloud.Storage{Bucket: "memory-bucket"}, fastRetry())
}

func mediaServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

var storagePathPattern = regexp.MustCompile(`^videos/acme/\d{8}_\d{6}-cr-1-003\.mp4$`)

func TestPersist_StoresPublicAsset(t *testing.T) {
	payload := mp4Payload()
	server := mediaServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	})
	store := test.NewMemoryStore()
	svc := newPersistence(store)

	asset, err := svc.Persist(context.Background(), server.URL+"/mock_1.mp4", "acme", "cr-1", 3)
	require.NoError(t, err)
	require.NotNil(t, asset)

	assert.Regexp(t, storagePathPattern, asset.Path)
	assert.Equal(t, "video/mp4", asset.ContentType)
	assert.Equal(t, int64(len(payload)), asset.Size)
	assert.True(t, asset.PublicURL)
	assert.Equal(t, cloud.PublicURL("memory-bucket", asset.Path), asset.URL)
	assert.Nil(t, asset.URLExpiration)

	obj, ok := store.Object(asset.Path)
	require.True(t, ok)
	assert.Equal(t, payload, obj.Data)
	assert.Equal(t, "acme", obj.Metadata[model.MetaTenant])
	assert.Equal(t, "cr-1", obj.Metadata[model.MetaCreativeID])
	assert.Equal(t, "3", obj.Metadata[model.MetaIteration])
	assert.Equal(t, server.URL+"/mock_1.mp4", obj.Metadata[model.MetaOriginalURL])
	assert.NotEmpty(t, obj.Metadata[model.MetaUploadedAt])
}

func TestPersist_PlaceholderLocatorIsSkipped(t *testing.T) {
	store := test.NewMemoryStore()
	svc := newPersistence(store)
	for _, locator := range []string{"", "https://cdn.example.com/generated/videos/mock_9.mp4", "https://assets.example/x.mp4"} {
		asset, err := svc.Persist(context.Background(), locator, "acme", "cr-1", 1)
		assert.NoError(t, err)
		assert.Nil(t, asset)
	}
	assert.Empty(t, store.Paths())
}

func TestPersist_ZeroByteDownload(t *testing.T) {
	server := mediaServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	store := test.NewMemoryStore()

	asset, err := newPersistence(store).Persist(context.Background(), server.URL+"/empty.mp4", "acme", "cr-1", 1)
	assert.Nil(t, asset)
	var netErr *model.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.True(t, errors.Is(err, model.ErrEmptyPayload))
	assert.Empty(t, store.Paths())
}

func TestPersist_DownloadStatusError(t *testing.T) {
	server := mediaServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	_, err := newPersistence(test.NewMemoryStore()).Persist(context.Background(), server.URL+"/gone.mp4", "acme", "cr-1", 1)
	var netErr *model.NetworkError
	assert.True(t, errors.As(err, &netErr))
}

func TestPersist_RetriesTransientDownloadFailures(t *testing.T) {
	var calls atomic.Int32
	server := mediaServer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(mp4Payload())
	})
	asset, err := newPersistence(test.NewMemoryStore()).Persist(context.Background(), server.URL+"/v.mp4", "acme", "cr-1", 1)
	require.NoError(t, err)
	assert.NotNil(t, asset)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPersist_SignedURLWhenPublicDenied(t *testing.T) {
	server := mediaServer(t, func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write(mp4Payload()) })
	store := test.NewMemoryStore()
	store.DenyPublic = true

	before := time.Now()
	asset, err := newPersistence(store).Persist(context.Background(), server.URL+"/v.mp4", "acme", "cr-1", 1)
	require.NoError(t, err)
	assert.False(t, asset.PublicURL)
	assert.Contains(t, asset.URL, "https://signed.test/"+asset.Path)
	require.NotNil(t, asset.URLExpiration)
	assert.WithinDuration(t, before.Add(365*24*time.Hour), *asset.URLExpiration, time.Minute)
}

func TestPersist_NoAccessURLStillReturnsAsset(t *testing.T) {
	server := mediaServer(t, func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write(mp4Payload()) })
	store := test.NewMemoryStore()
	store.DenyPublic = true
	store.FailSign = true

	asset, err := newPersistence(store).Persist(context.Background(), server.URL+"/v.mp4", "acme", "cr-1", 1)
	require.NoError(t, err)
	require.NotNil(t, asset)
	assert.Empty(t, asset.URL)
	assert.Len(t, store.Paths(), 1)
}

func TestPersist_UploadFailureIsStorageError(t *testing.T) {
	server := mediaServer(t, func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write(mp4Payload()) })
	store := test.NewMemoryStore()
	store.FailPut = true

	_, err := newPersistence(store).Persist(context.Background(), server.URL+"/v.mp4", "acme", "cr-1", 1)
	var storageErr *model.StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.Regexp(t, `^videos/acme/`, storageErr.Path)
}

func TestPersist_GCSLocator(t *testing.T) {
	store := test.NewMemoryStore()
	store.AddSource("veo-output", "runs/1/sample_0.mp4", mp4Payload())

	asset, err := newPersistence(store).Persist(context.Background(), "gs://veo-output/runs/1/sample_0.mp4", "acme", "cr-1", 2)
	require.NoError(t, err)
	assert.Equal(t, "gs://veo-output/runs/1/sample_0.mp4", asset.OriginalURL)
	assert.Equal(t, "video/mp4", asset.ContentType)
}

func TestPersist_ContentTypeFromHeader(t *testing.T) {
	server := mediaServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/webm; codecs=vp9")
		_, _ = w.Write([]byte("opaque bytes that match no signature"))
	})
	asset, err := newPersistence(test.NewMemoryStore()).Persist(context.Background(), server.URL+"/download", "acme", "cr-1", 1)
	require.NoError(t, err)
	assert.Equal(t, "video/webm", asset.ContentType)
	assert.Regexp(t, `\.webm$`, asset.Path)
}

func TestPersist_ContentTypeDefault(t *testing.T) {
	server := mediaServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte("opaque bytes that match no signature"))
	})
	asset, err := newPersistence(test.NewMemoryStore()).Persist(context.Background(), server.URL+"/download", "acme", "cr-1", 1)
	require.NoError(t, err)
	assert.Equal(t, "video/mp4", asset.ContentType)
	assert.Regexp(t, `\.mp4$`, asset.Path)
}

func TestPersist_ValidatesIdentifiers(t *testing.T) {
	svc := newPersistence(test.NewMemoryStore())
	_, err := svc.Persist(context.Background(), "https://vendor.test/v.mp4", "../other", "cr-1", 1)
	assert.True(t, model.IsValidation(err))
	_, err = svc.Persist(context.Background(), "https://vendor.test/v.mp4", "acme", "cr-1", 0)
	assert.True(t, model.IsValidation(err))
}

func TestAssetQueries(t *testing.T) {
	server := mediaServer(t, func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write(mp4Payload()) })
	store := test.NewMemoryStore()
	svc := newPersistence(store)
	ctx := context.Background()

	first, err := svc.Persist(ctx, server.URL+"/a.mp4", "acme", "cr-1", 1)
	require.NoError(t, err)
	_, err = svc.Persist(ctx, server.URL+"/b.mp4", "acme", "cr-1", 2)
	require.NoError(t, err)
	_, err = svc.Persist(ctx, server.URL+"/c.mp4", "globex", "cr-1", 1)
	require.NoError(t, err)

	listed := svc.ListForTenant(ctx, "acme", 100)
	require.Len(t, listed, 2)
	for _, l := range listed {
		assert.Equal(t, "cr-1", l.CreativeID)
		assert.NotEmpty(t, l.URL)
		assert.Regexp(t, `^videos/acme/`, l.Path)
	}
	assert.Len(t, svc.ListForTenant(ctx, "acme", 1), 1)
	assert.Empty(t, svc.ListForTenant(ctx, "nobody", 10))

	meta := svc.GetMetadata(ctx, first.Path)
	require.NotNil(t, meta)
	assert.Equal(t, "1", meta.Iteration)
	assert.Equal(t, server.URL+"/a.mp4", meta.OriginalLocator)
	assert.Nil(t, svc.GetMetadata(ctx, "videos/acme/missing.mp4"))

	assert.True(t, svc.PatchMetadata(ctx, first.Path, map[string]string{"campaign": "spring", model.MetaTenant: "globex"}))
	obj, _ := store.Object(first.Path)
	assert.Equal(t, "spring", obj.Metadata["campaign"])
	assert.Equal(t, "acme", obj.Metadata[model.MetaTenant])
	assert.False(t, svc.PatchMetadata(ctx, first.Path, map[string]string{model.MetaIteration: "9"}))

	assert.Equal(t, "https://signed.test/"+first.Path+"?expires=600", svc.GenerateAccessURL(ctx, first.Path, 10*time.Minute))
	assert.Equal(t, "https://signed.test/"+first.Path+"?expires=3600", svc.GenerateAccessURL(ctx, first.Path, 0))
	assert.Empty(t, svc.GenerateAccessURL(ctx, "../etc/passwd", time.Minute))

	assert.True(t, svc.Delete(ctx, first.Path))
	assert.False(t, svc.Delete(ctx, first.Path))
	assert.False(t, svc.Delete(ctx, "videos/../secrets"))
}

func TestAssetQueries_DegradeWhenUnavailable(t *testing.T) {
	store := test.NewMemoryStore()
	store.FailList = true
	store.FailSign = true
	svc := newPersistence(store)
	ctx := context.Background()

	assert.NotNil(t, svc.ListForTenant(ctx, "acme", 10))
	assert.Empty(t, svc.ListForTenant(ctx, "acme", 10))
	assert.Empty(t, svc.GenerateAccessURL(ctx, "videos/acme/x.mp4", time.Minute))
	assert.False(t, svc.PatchMetadata(ctx, "videos/acme/x.mp4", map[string]string{"k": "v"}))
}
