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

package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jaycherian/gcp-go-creative-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/cor"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/model"
)

// AssetUpload streams the inspected temp file to the object store under
// {namespace}/{tenant}/{timestamp}-{creative}-{iteration}.{ext}.
type AssetUpload struct {
	cor.BaseCommand
	store     cloud.ObjectStore
	namespace string
	now       func() time.Time
}

func NewAssetUpload(name string, store cloud.ObjectStore, namespace string) *AssetUpload {
	return &AssetUpload{
		BaseCommand: *cor.NewBaseCommand(name),
		store:       store,
		namespace:   namespace,
		now:         time.Now,
	}
}

// WithClock replaces the time source used for storage paths.
func (c *AssetUpload) WithClock(now func() time.Time) *AssetUpload {
	c.now = now
	return c
}

func (c *AssetUpload) Execute(context cor.Context) {
	media, ok := cor.Value[*DownloadedMedia](context, c.GetInputParam())
	if !ok {
		c.Fail(context, errors.New("missing inspected media"))
		return
	}
	job := media.Job
	uploadedAt := c.now().UTC()
	storagePath := model.StoragePath(c.namespace, job.TenantID, job.CreativeID, job.Iteration, media.Ext, uploadedAt)
	metadata := model.AssetMetadata(job.TenantID, job.CreativeID, job.Iteration, job.Locator, uploadedAt)

	dat, err := os.Open(media.Path)
	if err != nil {
		c.Fail(context, fmt.Errorf("failed to open file %s: %w", media.Path, err))
		return
	}
	defer dat.Close()

	info, err := c.store.Put(context.GetContext(), storagePath, dat, media.ContentType, metadata)
	if err != nil {
		c.Fail(context, &model.StorageError{Path: storagePath, Err: err})
		return
	}

	size := media.Size
	if info != nil && info.Size > 0 {
		size = info.Size
	}
	slog.InfoContext(context.GetContext(), "asset uploaded", "path", storagePath, "bytes", size, "content_type", media.ContentType)
	c.Succeed(context, &model.PersistedAsset{
		TenantID:    job.TenantID,
		CreativeID:  job.CreativeID,
		Iteration:   job.Iteration,
		Path:        storagePath,
		OriginalURL: job.Locator,
		Size:        size,
		ContentType: media.ContentType,
		Metadata:    metadata,
	})
}
