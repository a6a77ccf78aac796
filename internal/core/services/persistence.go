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

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jaycherian/gcp-go-creative-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/commands"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/cor"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/workflow"
	"github.com/jaycherian/gcp-go-creative-studio/internal/httputil"
)

// AssetPersistenceService copies generated media into durable storage and serves
// the stored assets. Only Persist reports errors; the lookup operations degrade to
// empty results when the store is unavailable.
type AssetPersistenceService struct {
	store     cloud.ObjectStore
	workflow  *workflow.AssetPersistenceWorkflow
	namespace string
	accessTTL time.Duration
}

func NewAssetPersistenceService(store cloud.ObjectStore, gcs commands.GCSReader, storage cloud.Storage, retry httputil.RetryConfig) *AssetPersistenceService {
	return &AssetPersistenceService{
		store:     store,
		workflow:  workflow.NewAssetPersistenceWorkflow(store, gcs, storage, retry),
		namespace: storage.NamespaceOrDefault(),
		accessTTL: storage.AccessURLExpiry(),
	}
}

// Persist downloads locator and stores it for tenant/creative/iteration. It
// returns nil, nil for placeholder locators. Failures are *model.NetworkError
// (download) or *model.StorageError (upload).
func (s *AssetPersistenceService) Persist(ctx context.Context, locator, tenant, creative string, iteration int) (*model.PersistedAsset, error) {
	if err := model.ValidateSegment("tenant_id", tenant); err != nil {
		return nil, err
	}
	if err := model.ValidateSegment("creative_id", creative); err != nil {
		return nil, err
	}
	if iteration < 1 {
		return nil, model.NewValidationError("iteration", fmt.Sprintf("must be positive, got %d", iteration))
	}
	if model.IsPlaceholderLocator(locator) {
		slog.DebugContext(ctx, "skipping placeholder locator", "locator", locator)
		return nil, nil
	}

	chCtx := cor.NewContext(ctx)
	defer chCtx.Close()

	job := &commands.PersistJob{
		Locator:     locator,
		TenantID:    tenant,
		CreativeID:  creative,
		Iteration:   iteration,
		RequestedAt: time.Now().UTC(),
	}
	chCtx.Add(commands.GetPersistJobParameterName(), job)
	chCtx.Add(cor.CtxIn, job)

	s.workflow.Execute(chCtx)

	if chCtx.HasErrors() {
		return nil, chainError(chCtx)
	}
	asset, ok := cor.Value[*model.PersistedAsset](chCtx, commands.GetPersistedAssetParameterName())
	if !ok {
		return nil, errors.New("persistence chain produced no asset")
	}
	return asset, nil
}

// chainError returns the only recorded error unwrapped so callers see the typed
// error, or all of them joined.
func chainError(c cor.Context) error {
	errs := c.GetErrors()
	if len(errs) == 1 {
		for _, err := range errs {
			return err
		}
	}
	return c.Err()
}

// GenerateAccessURL signs path for expiry (the configured default when not
// positive). It returns "" when signing is unavailable.
func (s *AssetPersistenceService) GenerateAccessURL(ctx context.Context, path string, expiry time.Duration) string {
	if !s.owns(path) {
		return ""
	}
	if expiry <= 0 {
		expiry = s.accessTTL
	}
	url, err := s.store.SignedURL(ctx, path, expiry)
	if err != nil {
		slog.WarnContext(ctx, "failed to sign access url", "path", path, "error", err)
		return ""
	}
	return url
}

func (s *AssetPersistenceService) Delete(ctx context.Context, path string) bool {
	if !s.owns(path) {
		return false
	}
	if err := s.store.Delete(ctx, path); err != nil {
		slog.WarnContext(ctx, "failed to delete asset", "path", path, "error", err)
		return false
	}
	return true
}

// ListForTenant returns up to limit assets stored for tenant.
func (s *AssetPersistenceService) ListForTenant(ctx context.Context, tenant string, limit int) []model.AssetListing {
	out := []model.AssetListing{}
	if model.ValidateSegment("tenant_id", tenant) != nil {
		return out
	}
	objects, err := s.store.List(ctx, model.TenantPrefix(s.namespace, tenant), limit)
	if err != nil {
		slog.WarnContext(ctx, "failed to list assets", "tenant_id", tenant, "error", err)
		return out
	}
	for i := range objects {
		out = append(out, s.listing(ctx, &objects[i]))
	}
	return out
}

func (s *AssetPersistenceService) GetMetadata(ctx context.Context, path string) *model.AssetListing {
	if !s.owns(path) {
		return nil
	}
	info, err := s.store.Stat(ctx, path)
	if err != nil {
		if !errors.Is(err, cloud.ErrObjectNotFound) {
			slog.WarnContext(ctx, "failed to read asset metadata", "path", path, "error", err)
		}
		return nil
	}
	listing := s.listing(ctx, info)
	return &listing
}

// PatchMetadata merges extra into the object metadata. Identity keys are never
// rewritten; a patch made only of identity keys is rejected.
func (s *AssetPersistenceService) PatchMetadata(ctx context.Context, path string, extra map[string]string) bool {
	if !s.owns(path) {
		return false
	}
	patch := make(map[string]string, len(extra))
	for k, v := range extra {
		if k == "" || model.IsIdentityMetadataKey(k) {
			continue
		}
		patch[k] = v
	}
	if len(patch) == 0 {
		return false
	}
	if _, err := s.store.PatchMetadata(ctx, path, patch); err != nil {
		slog.WarnContext(ctx, "failed to patch asset metadata", "path", path, "error", err)
		return false
	}
	return true
}

func (s *AssetPersistenceService) listing(ctx context.Context, info *cloud.ObjectInfo) model.AssetListing {
	return model.AssetListing{
		Path:            info.Path,
		URL:             s.GenerateAccessURL(ctx, info.Path, 0),
		Size:            info.Size,
		Created:         info.Created,
		Updated:         info.Updated,
		ContentType:     info.ContentType,
		CreativeID:      info.Metadata[model.MetaCreativeID],
		Iteration:       info.Metadata[model.MetaIteration],
		OriginalLocator: info.Metadata[model.MetaOriginalURL],
		UploadedAt:      info.Metadata[model.MetaUploadedAt],
		Metadata:        info.Metadata,
	}
}

// owns reports whether path is a well-formed object path inside the namespace.
func (s *AssetPersistenceService) owns(path string) bool {
	if !strings.HasPrefix(path, strings.Trim(s.namespace, "/")+"/") {
		return false
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}
