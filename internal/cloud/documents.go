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

// This file defines the document store contract used by the repositories and
// an in-process implementation of it. Partial updates address fields by
// dotted path and never rewrite the whole document, so concurrent writers to
// the same log only contend on the fields they touch.
package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrDocumentNotFound is returned by Get and Update for a missing document.
var ErrDocumentNotFound = errors.New("document not found")

// Update sets the field at Path, a dotted path such as "analysis.final_recipe".
// A Value built with ArrayUnion appends to an array field instead.
type Update struct {
	Path  string
	Value any
}

type arrayUnion struct {
	elems []any
}

// ArrayUnion appends elems to an array field, skipping elements already
// present.
func ArrayUnion(elems ...any) any {
	return arrayUnion{elems: elems}
}

// Document is a stored record. DataTo decodes it into a tagged struct.
type Document interface {
	ID() string
	DataTo(v any) error
}

// DocumentStore is the persistence boundary of the pipelines.
type DocumentStore interface {
	// Create stores data under a generated id and returns the id.
	Create(ctx context.Context, collection string, data any) (string, error)
	// Set writes data under id, replacing any previous document.
	Set(ctx context.Context, collection string, id string, data any) error
	Get(ctx context.Context, collection string, id string) (Document, error)
	// Update applies the updates atomically to an existing document.
	Update(ctx context.Context, collection string, id string, updates ...Update) error
	// UpdateIf reads the document, runs check on it and applies the updates
	// only when check returns nil, all in one atomic step. The error from
	// check is returned unchanged and nothing is written.
	UpdateIf(ctx context.Context, collection string, id string, check func(Document) error, updates ...Update) error
	// Query returns up to limit documents whose field equals value. A
	// non-positive limit means no limit.
	Query(ctx context.Context, collection string, field string, value any, limit int) ([]Document, error)
}

// MemoryDocumentStore keeps documents as generic JSON trees. Records must use
// json tags that match their firestore tags so paths resolve the same way.
type MemoryDocumentStore struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]any
}

func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{collections: make(map[string]map[string]map[string]any)}
}

type memoryDocument struct {
	id   string
	data []byte
}

func (d *memoryDocument) ID() string {
	return d.id
}

func (d *memoryDocument) DataTo(v any) error {
	return json.Unmarshal(d.data, v)
}

// toGeneric converts a value into the maps, slices and scalars that
// encoding/json produces.
func toGeneric(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func toDocument(v any) (map[string]any, error) {
	g, err := toGeneric(v)
	if err != nil {
		return nil, err
	}
	m, ok := g.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("document must encode to an object, got %T", g)
	}
	return m, nil
}

func (s *MemoryDocumentStore) collection(name string) map[string]map[string]any {
	c, ok := s.collections[name]
	if !ok {
		c = make(map[string]map[string]any)
		s.collections[name] = c
	}
	return c
}

func (s *MemoryDocumentStore) Create(ctx context.Context, collection string, data any) (string, error) {
	doc, err := toDocument(data)
	if err != nil {
		return "", err
	}
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collection(collection)[id] = doc
	return id, nil
}

func (s *MemoryDocumentStore) Set(ctx context.Context, collection string, id string, data any) error {
	doc, err := toDocument(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collection(collection)[id] = doc
	return nil
}

func (s *MemoryDocumentStore) Get(ctx context.Context, collection string, id string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.collection(collection)[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrDocumentNotFound, collection, id)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return &memoryDocument{id: id, data: b}, nil
}

func (s *MemoryDocumentStore) Update(ctx context.Context, collection string, id string, updates ...Update) error {
	return s.UpdateIf(ctx, collection, id, nil, updates...)
}

func (s *MemoryDocumentStore) UpdateIf(ctx context.Context, collection string, id string, check func(Document) error, updates ...Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.collection(collection)[id]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrDocumentNotFound, collection, id)
	}
	if check != nil {
		b, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		if err := check(&memoryDocument{id: id, data: b}); err != nil {
			return err
		}
	}
	// Apply to a copy so a failing update leaves the document untouched.
	working, err := toDocument(doc)
	if err != nil {
		return err
	}
	for _, u := range updates {
		if err := applyUpdate(working, u); err != nil {
			return fmt.Errorf("update %s/%s at %q: %w", collection, id, u.Path, err)
		}
	}
	s.collection(collection)[id] = working
	return nil
}

func applyUpdate(doc map[string]any, u Update) error {
	keys := strings.Split(u.Path, ".")
	parent := doc
	for _, k := range keys[:len(keys)-1] {
		next, ok := parent[k].(map[string]any)
		if !ok {
			next = make(map[string]any)
			parent[k] = next
		}
		parent = next
	}
	leaf := keys[len(keys)-1]

	union, ok := u.Value.(arrayUnion)
	if !ok {
		v, err := toGeneric(u.Value)
		if err != nil {
			return err
		}
		parent[leaf] = v
		return nil
	}
	existing, _ := parent[leaf].([]any)
	for _, e := range union.elems {
		g, err := toGeneric(e)
		if err != nil {
			return err
		}
		present := false
		for _, x := range existing {
			if reflect.DeepEqual(x, g) {
				present = true
				break
			}
		}
		if !present {
			existing = append(existing, g)
		}
	}
	parent[leaf] = existing
	return nil
}

func lookupPath(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, k := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[k]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func (s *MemoryDocumentStore) Query(ctx context.Context, collection string, field string, value any, limit int) ([]Document, error) {
	want, err := toGeneric(value)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0)
	for id, doc := range s.collection(collection) {
		if got, ok := lookupPath(doc, field); ok && reflect.DeepEqual(got, want) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]Document, 0, len(ids))
	for _, id := range ids {
		b, err := json.Marshal(s.collection(collection)[id])
		if err != nil {
			return nil, err
		}
		out = append(out, &memoryDocument{id: id, data: b})
	}
	return out, nil
}

// Count returns the number of documents in a collection.
func (s *MemoryDocumentStore) Count(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.collection(collection))
}
