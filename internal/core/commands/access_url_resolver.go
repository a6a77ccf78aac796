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
	"log/slog"
	"time"

	"github.com/jaycherian/gcp-go-creative-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/cor"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/model"
)

// AccessURLResolver makes the uploaded object public, or signs a long-lived URL
// when the bucket refuses public ACLs. When both fail the asset keeps an empty
// URL and the chain still succeeds.
type AccessURLResolver struct {
	cor.BaseCommand
	store     cloud.ObjectStore
	signedTTL time.Duration
	now       func() time.Time
}

func NewAccessURLResolver(name string, store cloud.ObjectStore, signedTTL time.Duration) *AccessURLResolver {
	return &AccessURLResolver{
		BaseCommand: *cor.NewBaseCommand(name),
		store:       store,
		signedTTL:   signedTTL,
		now:         time.Now,
	}
}

func (c *AccessURLResolver) Execute(context cor.Context) {
	asset, ok := cor.Value[*model.PersistedAsset](context, c.GetInputParam())
	if !ok {
		c.Fail(context, errors.New("missing uploaded asset"))
		return
	}
	ctx := context.GetContext()

	publicURL, publicErr := c.store.MakePublic(ctx, asset.Path)
	if publicErr == nil {
		asset.URL = publicURL
		asset.PublicURL = true
	} else {
		signed, signErr := c.store.SignedURL(ctx, asset.Path, c.signedTTL)
		if signErr == nil {
			expires := c.now().Add(c.signedTTL).UTC()
			asset.URL = signed
			asset.URLExpiration = &expires
		} else {
			slog.WarnContext(ctx, "no access url for asset", "path", asset.Path, "public_error", publicErr, "sign_error", signErr)
		}
	}

	context.Add(GetPersistedAssetParameterName(), asset)
	c.Succeed(context, asset)
}
