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

// Package workflow assembles commands into the chains the service runs: the
// asset persistence pipeline and the asynchronous generation intake.
package workflow

import (
	"github.com/jaycherian/gcp-go-creative-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/commands"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/cor"
	"github.com/jaycherian/gcp-go-creative-studio/internal/httputil"
)

// AssetPersistenceWorkflow copies one remote locator into the object store:
// fetch, inspect, upload, then resolve an access URL. Its input is a
// *commands.PersistJob and its output a *model.PersistedAsset.
type AssetPersistenceWorkflow struct {
	cor.BaseCommand
	store   cloud.ObjectStore
	gcs     commands.GCSReader
	storage cloud.Storage
	retry   httputil.RetryConfig
	chain   cor.Chain
}

func NewAssetPersistenceWorkflow(store cloud.ObjectStore, gcs commands.GCSReader, storage cloud.Storage, retry httputil.RetryConfig) *AssetPersistenceWorkflow {
	out := &AssetPersistenceWorkflow{
		BaseCommand: *cor.NewBaseCommand("asset-persistence-workflow"),
		store:       store,
		gcs:         gcs,
		storage:     storage,
		retry:       retry,
	}
	out.initializeChain()
	return out
}

func (w *AssetPersistenceWorkflow) IsExecutable(context cor.Context) bool {
	return w.chain.IsExecutable(context)
}

func (w *AssetPersistenceWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

func (w *AssetPersistenceWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName())
	out.AddCommand(commands.NewRemoteToTempFile("asset-fetch", w.gcs, w.storage.DownloadTimeout(), w.retry))
	out.AddCommand(commands.NewAssetInspect("asset-inspect"))
	out.AddCommand(commands.NewAssetUpload("asset-upload", w.store, w.storage.NamespaceOrDefault()))
	out.AddCommand(commands.NewAccessURLResolver("asset-access-url", w.store, w.storage.SignedURLExpiry()))
	w.chain = out
}
