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

package cloud_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/cloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type step struct {
	Name string `json:"name"`
	OK   bool   `json:"ok"`
}

type record struct {
	Owner   string `json:"owner"`
	Status  string `json:"status"`
	Steps   []step `json:"steps"`
	Details struct {
		Title string `json:"title"`
		Notes string `json:"notes"`
	} `json:"details"`
}

func TestMemoryDocumentStoreCreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	store := cloud.NewMemoryDocumentStore()

	in := record{Owner: "u1", Status: "processing", Steps: []step{{Name: "submission", OK: true}}}
	id, err := store.Create(ctx, "logs", in)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	err = store.Update(ctx, "logs", id,
		cloud.Update{Path: "status", Value: "transcribed"},
		cloud.Update{Path: "details.title", Value: "Pancakes"},
		cloud.Update{Path: "steps", Value: cloud.ArrayUnion(step{Name: "transcription", OK: false})},
	)
	require.NoError(t, err)

	doc, err := store.Get(ctx, "logs", id)
	require.NoError(t, err)
	assert.Equal(t, id, doc.ID())

	var out record
	require.NoError(t, doc.DataTo(&out))
	assert.Equal(t, "u1", out.Owner)
	assert.Equal(t, "transcribed", out.Status)
	assert.Equal(t, "Pancakes", out.Details.Title)
	assert.Equal(t, []step{{Name: "submission", OK: true}, {Name: "transcription", OK: false}}, out.Steps)
}

func TestMemoryDocumentStoreArrayUnionSkipsDuplicates(t *testing.T) {
	ctx := context.Background()
	store := cloud.NewMemoryDocumentStore()
	id, err := store.Create(ctx, "logs", record{Steps: []step{{Name: "a", OK: true}}})
	require.NoError(t, err)

	require.NoError(t, store.Update(ctx, "logs", id, cloud.Update{Path: "steps", Value: cloud.ArrayUnion(step{Name: "a", OK: true}, step{Name: "b"})}))

	doc, err := store.Get(ctx, "logs", id)
	require.NoError(t, err)
	var out record
	require.NoError(t, doc.DataTo(&out))
	assert.Len(t, out.Steps, 2)
}

func TestMemoryDocumentStoreMissingDocument(t *testing.T) {
	ctx := context.Background()
	store := cloud.NewMemoryDocumentStore()

	_, err := store.Get(ctx, "logs", "nope")
	assert.ErrorIs(t, err, cloud.ErrDocumentNotFound)

	err = store.Update(ctx, "logs", "nope", cloud.Update{Path: "status", Value: "error"})
	assert.ErrorIs(t, err, cloud.ErrDocumentNotFound)
}

func TestMemoryDocumentStoreQueryByNestedField(t *testing.T) {
	ctx := context.Background()
	store := cloud.NewMemoryDocumentStore()

	a := record{Owner: "u1"}
	a.Details.Title = "Soup"
	b := record{Owner: "u2"}
	b.Details.Title = "Salad"
	c := record{Owner: "u3"}
	c.Details.Title = "Soup"
	for _, r := range []record{a, b, c} {
		_, err := store.Create(ctx, "videos", r)
		require.NoError(t, err)
	}

	docs, err := store.Query(ctx, "videos", "details.title", "Soup", 0)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	docs, err = store.Query(ctx, "videos", "details.title", "Soup", 1)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	docs, err = store.Query(ctx, "videos", "owner", "nobody", 0)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMemoryDocumentStoreSetReplaces(t *testing.T) {
	ctx := context.Background()
	store := cloud.NewMemoryDocumentStore()
	require.NoError(t, store.Set(ctx, "nutrition", "video-1", record{Owner: "u1", Status: "a"}))
	require.NoError(t, store.Set(ctx, "nutrition", "video-1", record{Owner: "u1"}))

	doc, err := store.Get(ctx, "nutrition", "video-1")
	require.NoError(t, err)
	var out record
	require.NoError(t, doc.DataTo(&out))
	assert.Empty(t, out.Status)
	assert.Equal(t, 1, store.Count("nutrition"))
}

func TestMemoryDocumentStoreConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	store := cloud.NewMemoryDocumentStore()
	id, err := store.Create(ctx, "logs", record{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.Update(ctx, "logs", id,
				cloud.Update{Path: "steps", Value: cloud.ArrayUnion(step{Name: string(rune('a' + i))})})
		}(i)
	}
	wg.Wait()

	doc, err := store.Get(ctx, "logs", id)
	require.NoError(t, err)
	var out record
	require.NoError(t, doc.DataTo(&out))
	assert.Len(t, out.Steps, 20)
}

func TestMemoryDocumentStoreUpdateIfGuardsTheWrite(t *testing.T) {
	ctx := context.Background()
	store := cloud.NewMemoryDocumentStore()
	id, err := store.Create(ctx, "logs", record{Status: "initial_generated"})
	require.NoError(t, err)

	errTaken := errors.New("taken")
	claim := func(doc cloud.Document) error {
		var current record
		if err := doc.DataTo(&current); err != nil {
			return err
		}
		if current.Owner != "" {
			return errTaken
		}
		return nil
	}

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results <- store.UpdateIf(ctx, "logs", id, claim,
				cloud.Update{Path: "owner", Value: "worker"},
				cloud.Update{Path: "steps", Value: cloud.ArrayUnion(step{Name: "claim", OK: true})})
		}(i)
	}
	wg.Wait()
	close(results)

	var won int
	for err := range results {
		if err == nil {
			won++
			continue
		}
		assert.ErrorIs(t, err, errTaken)
	}
	assert.Equal(t, 1, won)

	doc, err := store.Get(ctx, "logs", id)
	require.NoError(t, err)
	var out record
	require.NoError(t, doc.DataTo(&out))
	assert.Equal(t, "worker", out.Owner)
	assert.Len(t, out.Steps, 1)

	err = store.UpdateIf(ctx, "logs", "missing", claim, cloud.Update{Path: "owner", Value: "x"})
	assert.ErrorIs(t, err, cloud.ErrDocumentNotFound)
}
