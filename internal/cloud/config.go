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

// Package cloud holds the configuration of the studio and everything that talks
// to Google Cloud or a vendor endpoint: the object store, URL signing, secret
// resolution, Pub/Sub intake and events, and the quota-aware language model.
package cloud

import (
	"time"

	"google.golang.org/genai"
)

// DefaultSafetySettings keeps prompt quantification from being blocked on
// ordinary advertising copy.
var DefaultSafetySettings = []*genai.SafetySetting{
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
}

// BigQueryDataSource locates the attempt ledger.
type BigQueryDataSource struct {
	DatasetName   string `toml:"dataset"`
	AttemptsTable string `toml:"attempts_table"`
}

// PromptTemplates are text/template sources. Empty values fall back to the
// built-in templates of the prompt specifier.
type PromptTemplates struct {
	Quantify string `toml:"quantify"`
	Refine   string `toml:"refine"`
}

// VertexAiLLMModel configures one Gemini model used by the prompt specifier.
type VertexAiLLMModel struct {
	Model              string  `toml:"model"`
	SystemInstructions string  `toml:"system_instructions"`
	Temperature        float32 `toml:"temperature"`
	TopP               float32 `toml:"top_p"`
	TopK               float32 `toml:"top_k"`
	MaxTokens          int32   `toml:"max_tokens"`
	OutputFormat       string  `toml:"output_format"`
	RateLimit          int     `toml:"rate_limit"` // requests per second, also the burst size
}

// TopicSubscription configures a Pub/Sub subscription the server listens on.
type TopicSubscription struct {
	Name             string `toml:"name"`
	DeadLetterTopic  string `toml:"dead_letter_topic"`
	TimeoutInSeconds int    `toml:"timeout_in_seconds"`
}

// Storage configures the durable asset store.
type Storage struct {
	Bucket                 string `toml:"bucket"`
	Namespace              string `toml:"namespace"`
	DownloadTimeoutSeconds int    `toml:"download_timeout_seconds"`
	SignedURLExpiryDays    int    `toml:"signed_url_expiry_days"`
	AccessURLExpirySeconds int    `toml:"access_url_expiry_seconds"`
}

// DownloadTimeout returns the per-download timeout, 300s when unset.
func (s Storage) DownloadTimeout() time.Duration {
	if s.DownloadTimeoutSeconds <= 0 {
		return 300 * time.Second
	}
	return time.Duration(s.DownloadTimeoutSeconds) * time.Second
}

// SignedURLExpiry is the lifetime of the URL handed out when public access is refused.
func (s Storage) SignedURLExpiry() time.Duration {
	if s.SignedURLExpiryDays <= 0 {
		return 365 * 24 * time.Hour
	}
	return time.Duration(s.SignedURLExpiryDays) * 24 * time.Hour
}

// AccessURLExpiry is the default lifetime of ad-hoc access URLs.
func (s Storage) AccessURLExpiry() time.Duration {
	if s.AccessURLExpirySeconds <= 0 {
		return time.Hour
	}
	return time.Duration(s.AccessURLExpirySeconds) * time.Second
}

// NamespaceOrDefault returns the object prefix, "videos" when unset.
func (s Storage) NamespaceOrDefault() string {
	if s.Namespace == "" {
		return "videos"
	}
	return s.Namespace
}

// Orchestration bounds the variation fan-out.
type Orchestration struct {
	MaxConcurrency        int `toml:"max_concurrency"`
	MaxVariations         int `toml:"max_variations"`
	AttemptTimeoutSeconds int `toml:"attempt_timeout_seconds"`
}

// PromptSpecifier selects the language model used for quantification. Provider
// is "gemini", "groq" or empty for the heuristic only.
type PromptSpecifier struct {
	Provider      string `toml:"provider"`
	AgentModel    string `toml:"agent_model"` // key into Config.AgentModels
	GroqModel     string `toml:"groq_model"`
	GroqKeyEnv    string `toml:"groq_api_key_env"`
	GroqKeySecret string `toml:"groq_api_key_secret"`
}

// Backend configures one generation backend.
type Backend struct {
	Endpoint            string `toml:"endpoint"`
	StatusEndpoint      string `toml:"status_endpoint"` // may contain {id}
	APIKeyEnv           string `toml:"api_key_env"`
	APIKeySecret        string `toml:"api_key_secret"`
	Model               string `toml:"model"`
	RateLimit           int    `toml:"rate_limit"` // submissions per second
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
	OutputGCSURI        string `toml:"output_gcs_uri"`
	BaseURL             string `toml:"base_url"` // mock only
}

// Cache configures the quantification cache. An empty address disables it.
type Cache struct {
	RedisAddr  string `toml:"redis_addr"`
	TTLSeconds int    `toml:"ttl_seconds"`
}

// Events configures completion events.
type Events struct {
	Topic string `toml:"topic"`
}

// Config is the root of the layered TOML configuration.
type Config struct {
	Application struct {
		Name                      string `toml:"name"`
		GoogleProjectId           string `toml:"google_project_id"`
		GoogleLocation            string `toml:"location"`
		SignerServiceAccountEmail string `toml:"signer_service_account_email"`
		Port                      string `toml:"port"`
		DefaultBackend            string `toml:"default_backend"`
	} `toml:"application"`
	Storage            Storage                      `toml:"storage"`
	Orchestration      Orchestration                `toml:"orchestration"`
	PromptSpecifier    PromptSpecifier              `toml:"prompt_specifier"`
	PromptTemplates    PromptTemplates              `toml:"prompt_templates"`
	AgentModels        map[string]VertexAiLLMModel  `toml:"agent_models"`
	Backends           map[string]Backend           `toml:"backends"`
	Cache              Cache                        `toml:"cache"`
	BigQueryDataSource BigQueryDataSource           `toml:"big_query_data_source"`
	TopicSubscriptions map[string]TopicSubscription `toml:"topic_subscriptions"`
	Events             Events                       `toml:"events"`
}

// NewConfig returns a Config with its maps allocated so decoding can fill them.
func NewConfig() *Config {
	return &Config{
		AgentModels:        make(map[string]VertexAiLLMModel),
		Backends:           make(map[string]Backend),
		TopicSubscriptions: make(map[string]TopicSubscription),
	}
}
