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
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Metadata keys written on every persisted object.
const (
	MetaTenant      = "tenant"
	MetaCreativeID  = "creative_id"
	MetaIteration   = "iteration"
	MetaOriginalURL = "original_url"
	MetaUploadedAt  = "uploaded_at"
)

// StorageTimestampLayout renders YYYYMMDD_HHMMSS.
const StorageTimestampLayout = "20060102_150405"

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateSegment checks that an identifier can be used as a single storage path
// segment. Tenant and creative ids must pass it so paths cannot collide across tenants.
func ValidateSegment(field, value string) error {
	if value == "" {
		return NewValidationError(field, "must not be empty")
	}
	if value == "." || value == ".." || !segmentPattern.MatchString(value) {
		return NewValidationError(field, fmt.Sprintf("%q must match %s", value, segmentPattern.String()))
	}
	return nil
}

// StoragePath builds {namespace}/{tenant}/{YYYYMMDD_HHMMSS}-{creative}-{iteration:03d}.{ext}.
// The timestamp is rendered in UTC.
func StoragePath(namespace, tenant, creative string, iteration int, ext string, at time.Time) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = "mp4"
	}
	name := fmt.Sprintf("%s-%s-%03d.%s", at.UTC().Format(StorageTimestampLayout), creative, iteration, ext)
	return strings.Join([]string{strings.Trim(namespace, "/"), tenant, name}, "/")
}

// TenantPrefix returns the listing prefix for a tenant, with a trailing slash.
func TenantPrefix(namespace, tenant string) string {
	return strings.Trim(namespace, "/") + "/" + tenant + "/"
}

// IsPlaceholderLocator reports whether locator points at a synthetic host that
// only exists in tests and demos (example.com, *.example, ...).
func IsPlaceholderLocator(locator string) bool {
	if strings.TrimSpace(locator) == "" {
		return true
	}
	u, err := url.Parse(locator)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "example" || strings.HasSuffix(host, ".example") {
		return true
	}
	for _, reserved := range []string{"example.com", "example.org", "example.net"} {
		if host == reserved || strings.HasSuffix(host, "."+reserved) {
			return true
		}
	}
	return false
}

// PersistedAsset is the durable copy of one generated variation.
type PersistedAsset struct {
	TenantID      string            `json:"tenant_id"`
	CreativeID    string            `json:"creative_id"`
	Iteration     int               `json:"iteration"`
	Path          string            `json:"path"`
	URL           string            `json:"url"`
	OriginalURL   string            `json:"original_url"`
	Size          int64             `json:"size"`
	ContentType   string            `json:"content_type"`
	Metadata      map[string]string `json:"metadata"`
	PublicURL     bool              `json:"public_url"` // false when URL is a signed URL.
	URLExpiration *time.Time        `json:"url_expiration,omitempty"`
}

// AssetMetadata builds the metadata map stored with each object.
func AssetMetadata(tenant, creative string, iteration int, original string, uploadedAt time.Time) map[string]string {
	return map[string]string{
		MetaTenant:      tenant,
		MetaCreativeID:  creative,
		MetaIteration:   strconv.Itoa(iteration),
		MetaOriginalURL: original,
		MetaUploadedAt:  uploadedAt.UTC().Format(time.RFC3339),
	}
}

// IsIdentityMetadataKey reports whether key belongs to the immutable identity of
// an asset and must never be rewritten by a metadata patch.
func IsIdentityMetadataKey(key string) bool {
	switch key {
	case MetaTenant, MetaCreativeID, MetaIteration, MetaOriginalURL, MetaUploadedAt:
		return true
	}
	return false
}

// AssetListing is the summary returned by listing and metadata lookups.
type AssetListing struct {
	Path            string            `json:"path"`
	URL             string            `json:"url"`
	Size            int64             `json:"size"`
	Created         time.Time         `json:"created"`
	Updated         time.Time         `json:"updated"`
	ContentType     string            `json:"content_type"`
	CreativeID      string            `json:"creative_id"`
	Iteration       string            `json:"iteration"`
	OriginalLocator string            `json:"original_locator"`
	UploadedAt      string            `json:"uploaded_at"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}
