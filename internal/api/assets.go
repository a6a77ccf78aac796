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

package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/model"
)

const defaultAccessURLSeconds = 3600

// AssetRouter registers the tenant listing, attempt ledger and single asset routes.
// Single assets are addressed by their storage path in the path query parameter.
func AssetRouter(r *gin.RouterGroup, deps Dependencies) {
	tenants := r.Group("/tenants/:tenant")
	{
		tenants.GET("/assets", func(c *gin.Context) {
			tenant := c.Param("tenant")
			if err := model.ValidateSegment("tenant_id", tenant); err != nil {
				writeError(c, err)
				return
			}
			limit, err := queryInt(c, "limit", defaultListLimit, maxListLimit)
			if err != nil {
				writeError(c, err)
				return
			}
			c.JSON(http.StatusOK, deps.Assets.ListForTenant(c.Request.Context(), tenant, limit))
		})

		tenants.GET("/creatives/:creative/attempts", func(c *gin.Context) {
			if deps.Ledger == nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "attempt ledger not configured"})
				return
			}
			tenant, creative := c.Param("tenant"), c.Param("creative")
			for field, value := range map[string]string{"tenant_id": tenant, "creative_id": creative} {
				if err := model.ValidateSegment(field, value); err != nil {
					writeError(c, err)
					return
				}
			}
			limit, err := queryInt(c, "limit", defaultListLimit, maxListLimit)
			if err != nil {
				writeError(c, err)
				return
			}
			out, err := deps.Ledger.ListAttempts(c.Request.Context(), tenant, creative, limit)
			if err != nil {
				writeError(c, err)
				return
			}
			c.JSON(http.StatusOK, out)
		})
	}

	assets := r.Group("/assets")
	{
		assets.GET("", withPath(func(c *gin.Context, path string) {
			listing := deps.Assets.GetMetadata(c.Request.Context(), path)
			if listing == nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
				return
			}
			c.JSON(http.StatusOK, listing)
		}))

		assets.PATCH("", withPath(func(c *gin.Context, path string) {
			var metadata map[string]string
			if err := c.ShouldBindJSON(&metadata); err != nil {
				writeError(c, model.NewValidationError("body", err.Error()))
				return
			}
			c.JSON(http.StatusOK, gin.H{"updated": deps.Assets.PatchMetadata(c.Request.Context(), path, metadata)})
		}))

		assets.DELETE("", withPath(func(c *gin.Context, path string) {
			c.JSON(http.StatusOK, gin.H{"deleted": deps.Assets.Delete(c.Request.Context(), path)})
		}))

		assets.GET("/url", withPath(func(c *gin.Context, path string) {
			seconds, err := queryInt(c, "expires_in", defaultAccessURLSeconds, 0)
			if err != nil {
				writeError(c, err)
				return
			}
			url := deps.Assets.GenerateAccessURL(c.Request.Context(), path, time.Duration(seconds)*time.Second)
			if url == "" {
				c.JSON(http.StatusNotFound, gin.H{"error": "no access url available"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"url": url, "expires_in": seconds})
		}))
	}
}

func withPath(handler func(c *gin.Context, path string)) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Query("path")
		if path == "" {
			writeError(c, model.NewValidationError("path", "must not be empty"))
			return
		}
		handler(c, path)
	}
}
