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

// Package test provides helpers and in-memory fakes shared by the test suites:
// configuration loading, sample intake messages, an object store, an attempt
// recorder and an event publisher.
package test

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jaycherian/gcp-go-creative-studio/internal/cloud"
)

// StateManager caches the test configuration so it is loaded once per run.
type StateManager struct {
	mu     sync.Mutex
	config *cloud.Config
}

var state = &StateManager{}

// HandleErr fails the test when err is not nil.
func HandleErr(err error, t *testing.T) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// GetTestGenerationRequestText returns an intake message as published on the
// generation request topic.
func GetTestGenerationRequestText() string {
	return `{
  "tenant_id": "acme",
  "creative_id": "cr-42",
  "prompt": "A vibrant product showcase with upbeat music",
  "backend": "unknown_model",
  "variations": 2,
  "campaign_context": { "objective": "awareness", "season": "spring" }
}`
}

// GetTestRefineRequestText returns an intake message that refines a prior spec.
func GetTestRefineRequestText() string {
	return `{
  "tenant_id": "acme",
  "creative_id": "cr-43",
  "prompt": "unused when a prior spec is present",
  "variations": 1,
  "prior_spec": {
    "prompt": "Coffee pour in slow motion",
    "duration_seconds": 12,
    "aspect_ratio": "16:9",
    "resolution": "1080p",
    "fps": 24,
    "style": "cinematic",
    "mood": "calm",
    "camera": "smooth dolly-in",
    "subtitles": false
  },
  "feedback": "add more energy"
}`
}

// SetupOS points the configuration loader at the repository configs directory
// and the "test" runtime overlay.
func SetupOS() error {
	dir, err := findConfigDir()
	if err != nil {
		return err
	}
	if err := os.Setenv(cloud.EnvConfigFilePrefix, dir); err != nil {
		return err
	}
	return os.Setenv(cloud.EnvConfigRuntime, "test")
}

// findConfigDir walks up from the working directory to the first configs
// directory holding a base configuration file.
func findConfigDir() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, "configs")
		if _, err := os.Stat(filepath.Join(candidate, ".env.toml")); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("configs/.env.toml not found above the working directory")
		}
		dir = parent
	}
}

// GetConfig loads the test configuration once and returns the cached copy.
func GetConfig(t testing.TB) *cloud.Config {
	t.Helper()
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.config == nil {
		if err := SetupOS(); err != nil {
			t.Fatalf("failed to setup environment for test: %v", err)
		}
		config := cloud.NewConfig()
		if err := cloud.LoadConfig(config); err != nil {
			t.Fatalf("failed to load test configuration: %v", err)
		}
		state.config = config
	}
	return state.config
}
