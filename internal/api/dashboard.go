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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Dashboard registers GET /stats: the registry state, the cache counters and,
// when a ledger is configured, per-backend attempt totals.
func Dashboard(r *gin.RouterGroup, deps Dependencies) {
	stats := r.Group("/stats")
	{
		stats.GET("", func(c *gin.Context) {
			out := gin.H{
				"supported_backends": deps.Backends.Supported(),
				"default_backend":    deps.Backends.Default(),
				"max_variations":     deps.Generator.MaxVariations(),
			}
			if deps.Cache != nil {
				out["cache"] = deps.Cache.Stats()
			}
			if deps.Ledger != nil {
				totals, err := deps.Ledger.Stats(c.Request.Context())
				if err != nil {
					slog.WarnContext(c.Request.Context(), "failed to read attempt stats", "error", err)
				} else {
					out["attempts"] = totals
				}
			}
			c.JSON(http.StatusOK, out)
		})
	}
}
