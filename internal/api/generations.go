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

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/commands"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/model"
)

// GenerationRouter registers the backend, spec and generation routes:
//   - GET  /backends
//   - POST /specs/quantify
//   - POST /specs/regenerate
//   - POST /generations
func GenerationRouter(r *gin.RouterGroup, deps Dependencies) {
	r.GET("/backends", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"supported_backends": deps.Backends.Supported(),
			"default_backend":    deps.Backends.Default(),
		})
	})

	specs := r.Group("/specs")
	{
		specs.POST("/quantify", func(c *gin.Context) {
			var req model.QuantifyRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				writeError(c, model.NewValidationError("body", err.Error()))
				return
			}
			spec, err := deps.Specs.Quantify(c.Request.Context(), req)
			if err != nil {
				writeError(c, err)
				return
			}
			c.JSON(http.StatusOK, spec)
		})

		specs.POST("/regenerate", func(c *gin.Context) {
			var req model.RegenerateRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				writeError(c, model.NewValidationError("body", err.Error()))
				return
			}
			if err := req.PriorSpec.Validate(); err != nil {
				writeError(c, err)
				return
			}
			c.JSON(http.StatusOK, deps.Specs.RegenerateWithFeedback(c.Request.Context(), req.PriorSpec, req.Feedback))
		})
	}

	r.POST("/generations", func(c *gin.Context) {
		var sub model.GenerationSubmission
		if err := c.ShouldBindJSON(&sub); err != nil {
			writeError(c, model.NewValidationError("body", err.Error()))
			return
		}
		if err := sub.Validate(deps.Generator.MaxVariations()); err != nil {
			writeError(c, err)
			return
		}
		ctx := c.Request.Context()
		spec, err := commands.ResolveSpec(ctx, deps.Specs, &sub)
		if err != nil {
			writeError(c, err)
			return
		}
		result, err := deps.Generator.Generate(ctx, sub.Request(spec))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	})
}
