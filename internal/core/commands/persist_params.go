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

import "time"

const (
	persistJobParam = "__PERSIST_JOB__"
	persistedParam  = "__PERSISTED_ASSET__"
)

// GetPersistJobParameterName is the key holding the *PersistJob of a
// persistence chain for its whole execution.
func GetPersistJobParameterName() string {
	return persistJobParam
}

// GetPersistedAssetParameterName is the key the final asset is stored under.
func GetPersistedAssetParameterName() string {
	return persistedParam
}

// PersistJob identifies the variation whose remote media is being persisted.
type PersistJob struct {
	Locator     string
	TenantID    string
	CreativeID  string
	Iteration   int
	RequestedAt time.Time
}

// DownloadedMedia is a local copy of a remote locator.
type DownloadedMedia struct {
	Job               *PersistJob
	Path              string
	Size              int64
	HeaderContentType string // Content-Type reported by the source, if any.
	SourceExt         string // extension of the source locator path, without the dot
	ContentType       string // resolved by AssetInspect
	Ext               string // resolved by AssetInspect
}
