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

package cloud

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/bigquery"
	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/pubsub"
	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/storage"
	"google.golang.org/genai"
)

// ServiceClients is created once at startup and shared by the API handlers,
// listeners and services.
type ServiceClients struct {
	StorageClient   *storage.Client
	PubsubClient    *pubsub.Client
	GenAIClient     *genai.Client
	BigQueryClient  *bigquery.Client
	IAMClient       *credentials.IamCredentialsClient // nil unless a signer account is configured
	SecretClient    *secretmanager.Client
	Store           *GCSStore
	Secrets         *SecretResolver
	Events          *EventPublisher // nil unless an events topic is configured
	PubSubListeners map[string]*PubSubListener
	AgentModels     map[string]*QuotaAwareGenerativeAIModel
}

// Close releases every client that was created. Safe on a partially built value.
func (c *ServiceClients) Close() {
	if c == nil {
		return
	}
	if c.Events != nil {
		c.Events.Stop()
	}
	closers := map[string]interface{ Close() error }{}
	if c.StorageClient != nil {
		closers["storage"] = c.StorageClient
	}
	if c.PubsubClient != nil {
		closers["pubsub"] = c.PubsubClient
	}
	if c.BigQueryClient != nil {
		closers["bigquery"] = c.BigQueryClient
	}
	if c.IAMClient != nil {
		closers["iam"] = c.IAMClient
	}
	if c.SecretClient != nil {
		closers["secretmanager"] = c.SecretClient
	}
	for name, closer := range closers {
		if err := closer.Close(); err != nil {
			slog.Warn("failed to close client", "client", name, "error", err)
		}
	}
}

// NewCloudServiceClients builds every client named by config. On failure the
// clients created so far are closed.
func NewCloudServiceClients(ctx context.Context, config *Config) (_ *ServiceClients, err error) {
	cloud := &ServiceClients{
		PubSubListeners: make(map[string]*PubSubListener),
		AgentModels:     make(map[string]*QuotaAwareGenerativeAIModel),
	}
	defer func() {
		if err != nil {
			cloud.Close()
		}
	}()

	project := config.Application.GoogleProjectId

	if cloud.StorageClient, err = storage.NewClient(ctx); err != nil {
		return nil, fmt.Errorf("storage client: %w", err)
	}
	if cloud.PubsubClient, err = pubsub.NewClient(ctx, project); err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	if cloud.BigQueryClient, err = bigquery.NewClient(ctx, project); err != nil {
		return nil, fmt.Errorf("bigquery client: %w", err)
	}
	if cloud.SecretClient, err = secretmanager.NewClient(ctx); err != nil {
		return nil, fmt.Errorf("secretmanager client: %w", err)
	}
	cloud.GenAIClient, err = genai.NewClient(ctx, &genai.ClientConfig{
		Project:  project,
		Location: config.Application.GoogleLocation,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	slog.Info("genai client ready", "project", project, "location", config.Application.GoogleLocation)

	var signer URLSigner
	if email := config.Application.SignerServiceAccountEmail; email != "" {
		if cloud.IAMClient, err = credentials.NewIamCredentialsClient(ctx); err != nil {
			return nil, fmt.Errorf("iam credentials client: %w", err)
		}
		signer = NewIAMURLSigner(cloud.IAMClient, email)
	}
	cloud.Store = NewGCSStore(cloud.StorageClient, config.Storage.Bucket, signer)
	cloud.Secrets = NewSecretResolver(cloud.SecretClient, project)

	if config.Events.Topic != "" {
		cloud.Events = NewEventPublisher(cloud.PubsubClient, config.Events.Topic)
	}

	// Commands are attached once the workflows are built.
	for key, sub := range config.TopicSubscriptions {
		listener, err := NewPubSubListener(cloud.PubsubClient, sub.Name, nil)
		if err != nil {
			return nil, err
		}
		cloud.PubSubListeners[key] = listener
	}

	for key, values := range config.AgentModels {
		cfg := &genai.GenerateContentConfig{
			Temperature:      genai.Ptr(values.Temperature),
			TopP:             genai.Ptr(values.TopP),
			TopK:             genai.Ptr(values.TopK),
			MaxOutputTokens:  values.MaxTokens,
			SafetySettings:   DefaultSafetySettings,
			ResponseMIMEType: values.OutputFormat,
		}
		if values.SystemInstructions != "" {
			cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: values.SystemInstructions}}}
		}
		cloud.AgentModels[key] = NewQuotaAwareModel(cfg, values.Model, cloud.GenAIClient.Models, values.RateLimit)
	}

	return cloud, nil
}
