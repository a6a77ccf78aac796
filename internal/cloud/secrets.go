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
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// ErrCredentialMissing is returned when no source yields a credential.
var ErrCredentialMissing = errors.New("credential not configured")

// CredentialResolver finds a credential by environment variable name or secret name.
type CredentialResolver interface {
	Resolve(ctx context.Context, envName, secretName string) (string, error)
}

// SecretResolver checks the environment first and then Secret Manager. Values
// read from Secret Manager are cached for the life of the process.
type SecretResolver struct {
	client    *secretmanager.Client // nil disables Secret Manager lookups
	projectID string

	mu    sync.Mutex
	cache map[string]string
}

func NewSecretResolver(client *secretmanager.Client, projectID string) *SecretResolver {
	return &SecretResolver{client: client, projectID: projectID, cache: make(map[string]string)}
}

func (r *SecretResolver) Resolve(ctx context.Context, envName, secretName string) (string, error) {
	if envName != "" {
		if v := strings.TrimSpace(os.Getenv(envName)); v != "" {
			return v, nil
		}
	}
	if secretName == "" || r == nil || r.client == nil {
		if envName == "" {
			return "", ErrCredentialMissing
		}
		return "", fmt.Errorf("%w: set %s", ErrCredentialMissing, envName)
	}

	r.mu.Lock()
	v, ok := r.cache[secretName]
	r.mu.Unlock()
	if ok {
		return v, nil
	}

	resp, err := r.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest", r.projectID, secretName),
	})
	if err != nil {
		return "", fmt.Errorf("failed to access secret %s: %w", secretName, err)
	}
	v = strings.TrimSpace(string(resp.GetPayload().GetData()))
	if v == "" {
		return "", fmt.Errorf("%w: secret %s is empty", ErrCredentialMissing, secretName)
	}

	r.mu.Lock()
	r.cache[secretName] = v
	r.mu.Unlock()
	return v, nil
}
