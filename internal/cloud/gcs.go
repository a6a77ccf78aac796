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
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// ErrObjectNotFound is returned by ObjectStore implementations for a missing path.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Path        string
	Size        int64
	ContentType string
	Created     time.Time
	Updated     time.Time
	Metadata    map[string]string
}

// ObjectStore is the durable blob store assets are persisted to. Paths are
// relative to the configured bucket.
type ObjectStore interface {
	Put(ctx context.Context, path string, body io.Reader, contentType string, metadata map[string]string) (*ObjectInfo, error)
	// MakePublic grants anonymous read access and returns the public URL.
	MakePublic(ctx context.Context, path string) (string, error)
	SignedURL(ctx context.Context, path string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, path string) error
	// List returns at most limit objects under prefix. A non-positive limit means no limit.
	List(ctx context.Context, prefix string, limit int) ([]ObjectInfo, error)
	Stat(ctx context.Context, path string) (*ObjectInfo, error)
	// PatchMetadata sets the given keys, leaving the other keys unchanged.
	PatchMetadata(ctx context.Context, path string, metadata map[string]string) (*ObjectInfo, error)
}

// GCSObject is a bucket/name pair parsed from a gs:// locator.
type GCSObject struct {
	Bucket string
	Name   string
}

// ParseGCSURI splits gs://bucket/name.
func ParseGCSURI(locator string) (*GCSObject, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "gs" || u.Host == "" {
		return nil, fmt.Errorf("not a gs:// locator: %s", locator)
	}
	name := strings.TrimPrefix(u.Path, "/")
	if name == "" {
		return nil, fmt.Errorf("gs:// locator has no object name: %s", locator)
	}
	return &GCSObject{Bucket: u.Host, Name: name}, nil
}

// URLSigner signs V4 URL payloads on behalf of a service account.
type URLSigner interface {
	Email() string
	SignBytes(ctx context.Context, payload []byte) ([]byte, error)
}

// GCSStore is the Cloud Storage ObjectStore.
type GCSStore struct {
	client *storage.Client
	bucket string
	signer URLSigner // optional; the client credentials sign when nil
}

func NewGCSStore(client *storage.Client, bucket string, signer URLSigner) *GCSStore {
	return &GCSStore{client: client, bucket: bucket, signer: signer}
}

func (s *GCSStore) Bucket() string {
	return s.bucket
}

func (s *GCSStore) object(path string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(path)
}

func (s *GCSStore) Put(ctx context.Context, path string, body io.Reader, contentType string, metadata map[string]string) (*ObjectInfo, error) {
	writer := s.object(path).NewWriter(ctx)
	writer.ContentType = contentType
	writer.Metadata = metadata

	if written, err := io.Copy(writer, body); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("failed to write gs://%s/%s after %d bytes: %w", s.bucket, path, written, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize gs://%s/%s: %w", s.bucket, path, err)
	}
	return toObjectInfo(writer.Attrs()), nil
}

func (s *GCSStore) MakePublic(ctx context.Context, path string) (string, error) {
	if err := s.object(path).ACL().Set(ctx, storage.AllUsers, storage.RoleReader); err != nil {
		return "", err
	}
	return PublicURL(s.bucket, path), nil
}

// PublicURL is the anonymous download URL of an object.
func PublicURL(bucket, path string) string {
	return (&url.URL{Scheme: "https", Host: "storage.googleapis.com", Path: "/" + bucket + "/" + path}).String()
}

func (s *GCSStore) SignedURL(ctx context.Context, path string, expiry time.Duration) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(expiry),
	}
	if s.signer != nil {
		opts.GoogleAccessID = s.signer.Email()
		opts.SignBytes = func(b []byte) ([]byte, error) {
			return s.signer.SignBytes(ctx, b)
		}
	}
	return s.client.Bucket(s.bucket).SignedURL(path, opts)
}

func (s *GCSStore) Delete(ctx context.Context, path string) error {
	err := s.object(path).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrObjectNotFound
	}
	return err
}

func (s *GCSStore) List(ctx context.Context, prefix string, limit int) ([]ObjectInfo, error) {
	out := make([]ObjectInfo, 0)
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for limit <= 0 || len(out) < limit {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list gs://%s/%s: %w", s.bucket, prefix, err)
		}
		out = append(out, *toObjectInfo(attrs))
	}
	return out, nil
}

func (s *GCSStore) Stat(ctx context.Context, path string) (*ObjectInfo, error) {
	attrs, err := s.object(path).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return toObjectInfo(attrs), nil
}

func (s *GCSStore) PatchMetadata(ctx context.Context, path string, metadata map[string]string) (*ObjectInfo, error) {
	current, err := s.Stat(ctx, path)
	if err != nil {
		return nil, err
	}
	merged := make(map[string]string, len(current.Metadata)+len(metadata))
	for k, v := range current.Metadata {
		merged[k] = v
	}
	for k, v := range metadata {
		merged[k] = v
	}
	attrs, err := s.object(path).Update(ctx, storage.ObjectAttrsToUpdate{Metadata: merged})
	if err != nil {
		return nil, err
	}
	return toObjectInfo(attrs), nil
}

// Open streams an object from any bucket the client can read. Used to fetch
// gs:// locators returned by Veo.
func (s *GCSStore) Open(ctx context.Context, obj *GCSObject) (io.ReadCloser, error) {
	reader, err := s.client.Bucket(obj.Bucket).Object(obj.Name).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS reader for gs://%s/%s: %w", obj.Bucket, obj.Name, err)
	}
	slog.DebugContext(ctx, "opened gcs object", "bucket", obj.Bucket, "name", obj.Name, "size", reader.Attrs.Size)
	return reader, nil
}

func toObjectInfo(attrs *storage.ObjectAttrs) *ObjectInfo {
	if attrs == nil {
		return &ObjectInfo{}
	}
	return &ObjectInfo{
		Path:        attrs.Name,
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		Created:     attrs.Created,
		Updated:     attrs.Updated,
		Metadata:    attrs.Metadata,
	}
}
