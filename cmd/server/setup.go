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

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/jaycherian/gcp-go-creative-studio/internal/cache"
	"github.com/jaycherian/gcp-go-creative-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/backends"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/services"
	"github.com/jaycherian/gcp-go-creative-studio/internal/httputil"
)

// StateManager holds the shared dependencies of the server.
type StateManager struct {
	config       *cloud.Config
	cloud        *cloud.ServiceClients
	registry     *backends.Registry
	specifier    *services.PromptSpecifier
	orchestrator *services.GenerationOrchestrator
	persistence  *services.AssetPersistenceService
	ledger       *services.AttemptLedger
	specCache    *cache.RedisSpecCache
}

var state = &StateManager{}

// SetupOS points the configuration loader at ./configs. GCP_RUNTIME selects the
// overlay and defaults to "local".
func SetupOS() (err error) {
	if os.Getenv(cloud.EnvConfigFilePrefix) == "" {
		if err = os.Setenv(cloud.EnvConfigFilePrefix, "configs"); err != nil {
			return err
		}
	}
	if os.Getenv(cloud.EnvConfigRuntime) == "" {
		err = os.Setenv(cloud.EnvConfigRuntime, "local")
	}
	return err
}

// GetConfig loads the configuration once.
func GetConfig() *cloud.Config {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to setup os: %v\n", err)
		}
		config := cloud.NewConfig()
		if err := cloud.LoadConfig(config); err != nil {
			log.Fatalf("failed to load configuration: %v\n", err)
		}
		state.config = config
	}
	return state.config
}

// InitState creates the cloud clients and the services, then starts the intake
// listeners.
func InitState(ctx context.Context) error {
	config := GetConfig()

	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		return err
	}
	state.cloud = cloudClients

	if state.registry, err = backends.NewRegistryFromConfig(config, cloudClients.GenAIClient, cloudClients.Secrets); err != nil {
		return err
	}
	slog.Info("backend registry ready", "supported", state.registry.Supported(), "default", state.registry.Default())

	if state.specifier, err = newPromptSpecifier(ctx, config, cloudClients); err != nil {
		return err
	}

	state.persistence = services.NewAssetPersistenceService(cloudClients.Store, cloudClients.Store, config.Storage, httputil.DefaultRetryConfig())

	opts := []services.OrchestratorOption{services.WithLimits(config.Orchestration)}
	if ds := config.BigQueryDataSource; ds.DatasetName != "" && ds.AttemptsTable != "" {
		state.ledger = services.NewAttemptLedger(cloudClients.BigQueryClient, ds.DatasetName, ds.AttemptsTable)
		opts = append(opts, services.WithAttemptRecorder(state.ledger))
	}
	if cloudClients.Events != nil {
		opts = append(opts, services.WithEventPublisher(cloudClients.Events))
	}
	state.orchestrator = services.NewGenerationOrchestrator(state.registry, state.persistence, opts...)

	SetupListeners(ctx, cloudClients, state.specifier, state.orchestrator, state.orchestrator.MaxVariations())
	return nil
}

// newPromptSpecifier selects the language model from prompt_specifier.provider
// and attaches the Redis cache when one is configured. Provider failures leave
// the heuristic in charge.
func newPromptSpecifier(ctx context.Context, config *cloud.Config, clients *cloud.ServiceClients) (*services.PromptSpecifier, error) {
	var llm services.LanguageModel
	switch cfg := config.PromptSpecifier; cfg.Provider {
	case "gemini":
		m, ok := clients.AgentModels[cfg.AgentModel]
		if !ok {
			return nil, fmt.Errorf("prompt_specifier.agent_model %q is not configured", cfg.AgentModel)
		}
		llm = services.NewGeminiLanguageModel(m)
	case "groq":
		key, err := clients.Secrets.Resolve(ctx, cfg.GroqKeyEnv, cfg.GroqKeySecret)
		if err != nil {
			slog.Warn("groq api key unavailable; using heuristic quantification", "error", err)
			break
		}
		llm, err = services.NewGroqLanguageModel(key, cfg.GroqModel)
		if err != nil {
			return nil, err
		}
	case "":
		slog.Info("no prompt specifier provider configured; using heuristic quantification")
	default:
		return nil, fmt.Errorf("unknown prompt_specifier.provider %q", cfg.Provider)
	}

	var opts []services.PromptSpecifierOption
	if addr := config.Cache.RedisAddr; addr != "" {
		ttl := time.Duration(config.Cache.TTLSeconds) * time.Second
		specCache, err := cache.Dial(ctx, addr, ttl)
		if err != nil {
			slog.Warn("spec cache unavailable", "addr", addr, "error", err)
		} else {
			state.specCache = specCache
			opts = append(opts, services.WithSpecCache(specCache))
		}
	}
	return services.NewPromptSpecifier(llm, config.PromptTemplates, opts...)
}

// Close releases the clients held by the state.
func (s *StateManager) Close() {
	if s.specCache != nil {
		_ = s.specCache.Close()
	}
	if s.cloud != nil {
		s.cloud.Close()
	}
}
