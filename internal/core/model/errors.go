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

package model

import (
	"errors"
	"fmt"
)

// ValidationError is raised before any outbound call when a request cannot be
// served as given. It is the only error kind surfaced to callers.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ProviderError wraps a vendor rejection: bad credentials, policy refusal, a failed job.
type ProviderError struct {
	Backend BackendIdentity
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("backend %s: %v", e.Backend, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NetworkError covers transport failures while moving media, including an empty payload.
type NetworkError struct {
	Locator string
	Err     error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("transfer of %s failed: %v", e.Locator, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// StorageError is returned when the durable store refuses a write or is missing.
type StorageError struct {
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage write %s failed: %v", e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ErrEmptyPayload marks a download that completed with zero bytes.
var ErrEmptyPayload = errors.New("downloaded payload is empty")

// IsValidation reports whether err (or anything it wraps) is a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
