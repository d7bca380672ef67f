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

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreDocumentStore implements DocumentStore on Cloud Firestore.
type FirestoreDocumentStore struct {
	client *firestore.Client
}

func NewFirestoreDocumentStore(client *firestore.Client) *FirestoreDocumentStore {
	return &FirestoreDocumentStore{client: client}
}

type firestoreDocument struct {
	snap *firestore.DocumentSnapshot
}

func (d *firestoreDocument) ID() string {
	return d.snap.Ref.ID
}

func (d *firestoreDocument) DataTo(v any) error {
	return d.snap.DataTo(v)
}

func notFound(err error, collection string, id string) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%w: %s/%s", ErrDocumentNotFound, collection, id)
	}
	return err
}

func (s *FirestoreDocumentStore) Create(ctx context.Context, collection string, data any) (string, error) {
	ref := s.client.Collection(collection).NewDoc()
	if _, err := ref.Create(ctx, data); err != nil {
		return "", fmt.Errorf("failed to create %s document: %w", collection, err)
	}
	return ref.ID, nil
}

func (s *FirestoreDocumentStore) Set(ctx context.Context, collection string, id string, data any) error {
	_, err := s.client.Collection(collection).Doc(id).Set(ctx, data)
	return err
}

func (s *FirestoreDocumentStore) Get(ctx context.Context, collection string, id string) (Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		return nil, notFound(err, collection, id)
	}
	return &firestoreDocument{snap: snap}, nil
}

func toFirestoreUpdates(updates []Update) []firestore.Update {
	fu := make([]firestore.Update, 0, len(updates))
	for _, u := range updates {
		value := u.Value
		if union, ok := value.(arrayUnion); ok {
			value = firestore.ArrayUnion(union.elems...)
		}
		fu = append(fu, firestore.Update{Path: u.Path, Value: value})
	}
	return fu
}

func (s *FirestoreDocumentStore) Update(ctx context.Context, collection string, id string, updates ...Update) error {
	_, err := s.client.Collection(collection).Doc(id).Update(ctx, toFirestoreUpdates(updates))
	if err != nil {
		return notFound(err, collection, id)
	}
	return nil
}

// UpdateIf runs the read, the check and the write in one transaction, so a
// concurrent writer forces a retry and the check sees its result.
func (s *FirestoreDocumentStore) UpdateIf(ctx context.Context, collection string, id string, check func(Document) error, updates ...Update) error {
	ref := s.client.Collection(collection).Doc(id)
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return notFound(err, collection, id)
		}
		if check != nil {
			if err := check(&firestoreDocument{snap: snap}); err != nil {
				return err
			}
		}
		return tx.Update(ref, toFirestoreUpdates(updates))
	})
}

func (s *FirestoreDocumentStore) Query(ctx context.Context, collection string, field string, value any, limit int) ([]Document, error) {
	q := s.client.Collection(collection).Where(field, "==", value)
	if limit > 0 {
		q = q.Limit(limit)
	}
	iter := q.Documents(ctx)
	defer iter.Stop()

	out := make([]Document, 0)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query %s where %s: %w", collection, field, err)
		}
		out = append(out, &firestoreDocument{snap: snap})
	}
	return out, nil
}
