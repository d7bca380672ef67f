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
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"
)

// MemoryBlobStore keeps objects in process. It backs the "memory" storage
// backend and tests.
type MemoryBlobStore struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]memoryBlob
}

type memoryBlob struct {
	data        []byte
	contentType string
}

func NewMemoryBlobStore(baseURL string) *MemoryBlobStore {
	if len(baseURL) == 0 {
		baseURL = "memory://blobs"
	}
	return &MemoryBlobStore{baseURL: strings.TrimSuffix(baseURL, "/"), objects: make(map[string]memoryBlob)}
}

func (s *MemoryBlobStore) Upload(_ context.Context, name string, r io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[name] = memoryBlob{data: data, contentType: contentType}
	return s.baseURL + "/" + name, nil
}

func (s *MemoryBlobStore) Download(_ context.Context, name string, w io.Writer) error {
	s.mu.RLock()
	obj, ok := s.objects[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrBlobNotFound, name)
	}
	_, err := io.Copy(w, bytes.NewReader(obj.data))
	return err
}

func (s *MemoryBlobStore) SignedURL(_ context.Context, name string, expires time.Duration) (string, error) {
	s.mu.RLock()
	_, ok := s.objects[name]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrBlobNotFound, name)
	}
	q := url.Values{}
	q.Set("expires", time.Now().Add(expires).UTC().Format(time.RFC3339))
	return s.baseURL + "/" + name + "?" + q.Encode(), nil
}

// Object returns a copy of a stored object and its content type.
func (s *MemoryBlobStore) Object(name string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[name]
	if !ok {
		return nil, "", false
	}
	return append([]byte(nil), obj.data...), obj.contentType, true
}

// Names lists the stored object names.
func (s *MemoryBlobStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.objects))
	for k := range s.objects {
		out = append(out, k)
	}
	return out
}
