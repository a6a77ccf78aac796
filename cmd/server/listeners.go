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
	"log/slog"

	"github.com/jaycherian/gcp-go-creative-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/commands"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/workflow"
)

// GenerationRequestTopic is the topic_subscriptions key of the intake listener.
const GenerationRequestTopic = "GenerationRequestTopic"

// SetupListeners attaches the generation request workflow to the intake
// subscription and starts it.
func SetupListeners(ctx context.Context, cloudClients *cloud.ServiceClients, specs commands.SpecSource, runner commands.VariationRunner, maxVariations int) {
	listener, ok := cloudClients.PubSubListeners[GenerationRequestTopic]
	if !ok {
		slog.Info("no intake subscription configured", "key", GenerationRequestTopic)
		return
	}
	listener.SetCommand(workflow.NewGenerationRequestWorkflow(specs, runner, maxVariations))
	listener.Listen(ctx)
}
