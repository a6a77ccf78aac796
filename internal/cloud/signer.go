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

	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/iam/credentials/apiv1/credentialspb"
)

// IAMURLSigner signs with the IAM Credentials SignBlob API, which lets workloads
// running with metadata-server credentials produce V4 signed URLs.
type IAMURLSigner struct {
	client *credentials.IamCredentialsClient
	email  string
}

func NewIAMURLSigner(client *credentials.IamCredentialsClient, email string) *IAMURLSigner {
	return &IAMURLSigner{client: client, email: email}
}

func (s *IAMURLSigner) Email() string {
	return s.email
}

func (s *IAMURLSigner) SignBytes(ctx context.Context, payload []byte) ([]byte, error) {
	resp, err := s.client.SignBlob(ctx, &credentialspb.SignBlobRequest{
		Name:    fmt.Sprintf("projects/-/serviceAccounts/%s", s.email),
		Payload: payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign blob as %s: %w", s.email, err)
	}
	return resp.SignedBlob, nil
}
