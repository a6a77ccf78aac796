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

// Package backends binds each BackendIdentity to an adapter that turns a
// GenerationSpec into a remote media locator. Adapters never return errors:
// every failure is folded into a failed GenerationOutcome.
package backends

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jaycherian/gcp-go-creative-studio/internal/core/model"
)

// Adapter generates media with one provider.
type Adapter interface {
	Identity() model.BackendIdentity
	Generate(ctx context.Context, spec model.GenerationSpec, assets model.Assets) model.GenerationOutcome
}

// Registry maps identities to adapters. Selection is total: names that do not
// resolve to a bound adapter fall back to the default.
type Registry struct {
	mu       sync.RWMutex
	adapters map[model.BackendIdentity]Adapter
	fallback model.BackendIdentity
}

// NewRegistry binds adapters (later bindings for an identity win) and fails when
// def has no adapter.
func NewRegistry(def model.BackendIdentity, adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[model.BackendIdentity]Adapter, len(adapters)), fallback: def}
	for _, a := range adapters {
		r.adapters[a.Identity()] = a
	}
	if _, ok := r.adapters[def]; !ok {
		return nil, fmt.Errorf("default backend %q has no adapter", def)
	}
	return r, nil
}

// Resolve returns the identity Select would use for name.
func (r *Registry) Resolve(name string) model.BackendIdentity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveLocked(name)
}

func (r *Registry) resolveLocked(name string) model.BackendIdentity {
	if id, ok := model.LookupBackend(name); ok {
		if _, bound := r.adapters[id]; bound {
			return id
		}
	}
	return r.fallback
}

// Select returns the adapter for name, substituting the default for unknown,
// empty or unbound names.
func (r *Registry) Select(name string) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id := r.resolveLocked(name)
	if requested, ok := model.LookupBackend(name); !ok || requested != id {
		if name == "" {
			slog.Debug("no backend requested; using default", "default", id)
		} else {
			slog.Warn("backend not available; using default", "requested", name, "default", id)
		}
	}
	return r.adapters[id]
}

// Supported lists the bound identities in display order.
func (r *Registry) Supported() []model.BackendIdentity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.BackendIdentity, 0, len(r.adapters))
	for _, id := range model.KnownBackends() {
		if _, ok := r.adapters[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func (r *Registry) Default() model.BackendIdentity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fallback
}

// Replace binds adapter to its identity, replacing any previous binding.
func (r *Registry) Replace(adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Identity()] = adapter
	slog.Info("backend adapter replaced", "backend", adapter.Identity())
}
