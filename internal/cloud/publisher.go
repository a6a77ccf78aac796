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
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// EventPublisher publishes JSON events to a Pub/Sub topic.
type EventPublisher struct {
	topic *pubsub.Topic
}

func NewEventPublisher(client *pubsub.Client, topicID string) *EventPublisher {
	return &EventPublisher{topic: client.Topic(topicID)}
}

// Publish encodes event and waits for the server to assign a message id.
func (p *EventPublisher) Publish(ctx context.Context, event any, attributes map[string]string) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("failed to encode event: %w", err)
	}
	id, err := p.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attributes}).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to publish to %s: %w", p.topic.ID(), err)
	}
	return id, nil
}

// Stop flushes pending messages.
func (p *EventPublisher) Stop() {
	p.topic.Stop()
}
