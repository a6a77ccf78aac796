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

package test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jaycherian/gcp-go-creative-studio/internal/cloud"
	"github.com/jaycherian/gcp-go-creative-studio/internal/core/model"
)

// MemoryObject is what MemoryStore keeps per path.
type MemoryObject struct {
	Data        []byte
	ContentType string
	Metadata    map[string]string
	Created     time.Time
	Updated     time.Time
	Public      bool
}

// MemoryStore is an in-memory cloud.ObjectStore. The Deny and Fail switches
// simulate buckets with uniform access and outages.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]*MemoryObject
	// gs:// objects readable through Open, keyed by bucket/name.
	sources map[string][]byte

	DenyPublic bool
	FailSign   bool
	FailPut    bool
	FailList   bool
	Now        func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: map[string]*MemoryObject{},
		sources: map[string][]byte{},
		Now:     time.Now,
	}
}

var errUnavailable = errors.New("store unavailable")

func (m *MemoryStore) Put(_ context.Context, path string, body io.Reader, contentType string, metadata map[string]string) (*cloud.ObjectInfo, error) {
	if m.FailPut {
		return nil, errUnavailable
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Now()
	obj := &MemoryObject{Data: data, ContentType: contentType, Metadata: maps.Clone(metadata), Created: now, Updated: now}
	m.objects[path] = obj
	return m.info(path, obj), nil
}

func (m *MemoryStore) MakePublic(_ context.Context, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[path]
	if !ok {
		return "", cloud.ErrObjectNotFound
	}
	if m.DenyPublic {
		return "", errors.New("public access prevention is enforced")
	}
	obj.Public = true
	return cloud.PublicURL("memory-bucket", path), nil
}

func (m *MemoryStore) SignedURL(_ context.Context, path string, expiry time.Duration) (string, error) {
	if m.FailSign {
		return "", errors.New("no signer configured")
	}
	return fmt.Sprintf("https://signed.test/%s?expires=%d", path, int64(expiry.Seconds())), nil
}

func (m *MemoryStore) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[path]; !ok {
		return cloud.ErrObjectNotFound
	}
	delete(m.objects, path)
	return nil
}

func (m *MemoryStore) List(_ context.Context, prefix string, limit int) ([]cloud.ObjectInfo, error) {
	if m.FailList {
		return nil, errUnavailable
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := make([]string, 0, len(m.objects))
	for p := range m.objects {
		if strings.HasPrefix(p, prefix) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	if limit > 0 && len(paths) > limit {
		paths = paths[:limit]
	}
	out := make([]cloud.ObjectInfo, 0, len(paths))
	for _, p := range paths {
		out = append(out, *m.info(p, m.objects[p]))
	}
	return out, nil
}

func (m *MemoryStore) Stat(_ context.Context, path string) (*cloud.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[path]
	if !ok {
		return nil, cloud.ErrObjectNotFound
	}
	return m.info(path, obj), nil
}

func (m *MemoryStore) PatchMetadata(_ context.Context, path string, metadata map[string]string) (*cloud.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[path]
	if !ok {
		return nil, cloud.ErrObjectNotFound
	}
	if obj.Metadata == nil {
		obj.Metadata = map[string]string{}
	}
	maps.Copy(obj.Metadata, metadata)
	obj.Updated = m.Now()
	return m.info(path, obj), nil
}

// AddSource makes gs://bucket/name readable through Open.
func (m *MemoryStore) AddSource(bucket, name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[bucket+"/"+name] = data
}

func (m *MemoryStore) Open(_ context.Context, obj *cloud.GCSObject) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.sources[obj.Bucket+"/"+obj.Name]
	if !ok {
		return nil, cloud.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Object returns a copy of the stored object at path.
func (m *MemoryStore) Object(path string) (MemoryObject, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[path]
	if !ok {
		return MemoryObject{}, false
	}
	out := *obj
	out.Metadata = maps.Clone(obj.Metadata)
	return out, true
}

// Paths lists every stored path in order.
func (m *MemoryStore) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for p := range m.objects {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (m *MemoryStore) info(path string, obj *MemoryObject) *cloud.ObjectInfo {
	return &cloud.ObjectInfo{
		Path:        path,
		Size:        int64(len(obj.Data)),
		ContentType: obj.ContentType,
		Created:     obj.Created,
		Updated:     obj.Updated,
		Metadata:    maps.Clone(obj.Metadata),
	}
}

// MemoryRecorder keeps attempt records in memory.
type MemoryRecorder struct {
	mu      sync.Mutex
	records []model.AttemptRecord
	Fail    bool
}

func (r *MemoryRecorder) Record(_ context.Context, rec model.AttemptRecord) error {
	if r.Fail {
		return errUnavailable
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

// Records returns the recorded attempts ordered by iteration.
func (r *MemoryRecorder) Records() []model.AttemptRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]model.AttemptRecord(nil), r.records...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Iteration < out[j].Iteration })
	return out
}

// MemoryPublisher captures published events.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []any
	attrs  []map[string]string
}

func (p *MemoryPublisher) Publish(_ context.Context, event any, attributes map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	p.attrs = append(p.attrs, maps.Clone(attributes))
	return fmt.Sprintf("msg-%d", len(p.events)), nil
}

func (p *MemoryPublisher) Events() []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]any(nil), p.events...)
}

func (p *MemoryPublisher) Attributes() []map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]map[string]string(nil), p.attrs...)
}
