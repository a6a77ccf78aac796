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

// Package api exposes the studio over HTTP: backend discovery, spec
// quantification and refinement, synchronous generation, asset management,
// the attempt ledger and a dashboard of runtime statistics.
package api

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-creative-studio/internal/cache"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/commands"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/model"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/services"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const (
	// RequestIDHeader carries the correlation id of a request.
	RequestIDHeader = "X-Request-ID"

	defaultListLimit = 100
	maxListLimit     = 1000
)

// BackendCatalog lists the bound backends.
type BackendCatalog interface {
	Supported() []model.BackendIdentity
	Default() model.BackendIdentity
}

// Generator runs generation requests.
type Generator interface {
	commands.VariationRunner
	MaxVariations() int
}

// AssetService serves persisted assets.
type AssetService interface {
	ListForTenant(ctx context.Context, tenant string, limit int) []model.AssetListing
	GetMetadata(ctx context.Context, path string) *model.AssetListing
	PatchMetadata(ctx context.Context, path string, extra map[string]string) bool
	GenerateAccessURL(ctx context.Context, path string, expiry time.Duration) string
	Delete(ctx context.Context, path string) bool
}

// AttemptLedger queries recorded attempts.
type AttemptLedger interface {
	ListAttempts(ctx context.Context, tenant, creative string, limit int) ([]model.AttemptRecord, error)
	Stats(ctx context.Context) ([]services.BackendStats, error)
}

// CacheStats reports quantification cache counters.
type CacheStats interface {
	Stats() cache.Stats
}

// Dependencies are the services behind the routes. Ledger and Cache are optional.
type Dependencies struct {
	Backends  BackendCatalog
	Specs     commands.SpecSource
	Generator Generator
	Assets    AssetService
	Ledger    AttemptLedger
	Cache     CacheStats
}

// NewRouter builds the gin engine serving every route under /api/v1.
func NewRouter(serviceName string, deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(cors.Default())
	r.Use(requestID())

	apiV1 := r.Group("/api/v1")
	{
		GenerationRouter(apiV1, deps)
		AssetRouter(apiV1, deps)
		Dashboard(apiV1, deps)
	}
	return r
}

// requestID echoes the caller's correlation id or assigns a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDHeader, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}
