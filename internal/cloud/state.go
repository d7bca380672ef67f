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

// This file builds every external client once at startup and bundles them in
// ServiceClients, which is passed explicitly to the workflows and handlers.
//
// Logic Flow:
//  1. NewCloudServiceClients is called with the loaded Config.
//  2. The GenAI client is always created. Storage, Firestore, Pub/Sub,
//     BigQuery, MinIO and Redis clients are only created when the
//     configuration selects them, so a memory-backed local run needs no
//     credentials beyond Vertex AI.
//  3. The configured backends are wrapped in the BlobStore, DocumentStore,
//     MessagePublisher and ResponseCache abstractions.
//  4. Agent, image and speech model maps are built from the config.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/firestore"
	credentials "cloud.google.com/go/iam/credentials/apiv1"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"google.golang.org/genai"
)

// ServiceClients is the container for every external client.
type ServiceClients struct {
	StorageClient   *storage.Client
	IAMClient       *credentials.IamCredentialsClient
	MinIOClient     *minio.Client
	FirestoreClient *firestore.Client
	PubsubClient    *pubsub.Client
	GenAIClient     *genai.Client
	BigQueryClient  *bigquery.Client
	RedisClient     redis.UniversalClient

	BlobStore     BlobStore
	DocumentStore DocumentStore
	Publisher     MessagePublisher
	ResponseCache ResponseCache

	PubSubListeners map[string]*PubSubListener
	AgentModels     map[string]*QuotaAwareGenerativeAIModel
	ImageModels     map[string]*ImagenGenerator
	SpeechModels    map[string]*QuotaAwareGenerativeAIModel
}

// Close releases every client that was created.
func (c *ServiceClients) Close() {
	if p, ok := c.Publisher.(*PubSubPublisher); ok {
		p.Stop()
	}
	if c.StorageClient != nil {
		_ = c.StorageClient.Close()
	}
	if c.IAMClient != nil {
		_ = c.IAMClient.Close()
	}
	if c.FirestoreClient != nil {
		_ = c.FirestoreClient.Close()
	}
	if c.PubsubClient != nil {
		_ = c.PubsubClient.Close()
	}
	if c.BigQueryClient != nil {
		_ = c.BigQueryClient.Close()
	}
	if c.RedisClient != nil {
		_ = c.RedisClient.Close()
	}
}

// ContentGenerator returns a generator over the named agent model.
func (c *ServiceClients) ContentGenerator(name string) (ContentGenerator, error) {
	m, ok := c.AgentModels[name]
	if !ok {
		return nil, fmt.Errorf("agent model %q is not configured", name)
	}
	return NewGeminiContentGenerator(name, m, c.ResponseCache), nil
}

// ImageGenerator returns the named image model.
func (c *ServiceClients) ImageGenerator(name string) (ImageGenerator, error) {
	m, ok := c.ImageModels[name]
	if !ok {
		return nil, fmt.Errorf("image model %q is not configured", name)
	}
	return m, nil
}

// SpeechTranscriber returns a transcriber over the named speech model.
// Transcripts are never cached.
func (c *ServiceClients) SpeechTranscriber(name string) (SpeechTranscriber, error) {
	m, ok := c.SpeechModels[name]
	if !ok {
		return nil, fmt.Errorf("speech model %q is not configured", name)
	}
	return NewGeminiSpeechTranscriber(NewGeminiContentGenerator(name, m, nil)), nil
}

// NewCloudServiceClients creates the clients selected by config. On error,
// the clients created so far are closed.
func NewCloudServiceClients(ctx context.Context, config *Config) (cloud *ServiceClients, err error) {
	sc := &ServiceClients{
		PubSubListeners: make(map[string]*PubSubListener),
		AgentModels:     make(map[string]*QuotaAwareGenerativeAIModel),
		ImageModels:     make(map[string]*ImagenGenerator),
		SpeechModels:    make(map[string]*QuotaAwareGenerativeAIModel),
	}
	defer func() {
		if err != nil {
			sc.Close()
		}
	}()

	slog.InfoContext(ctx, "creating service clients",
		"project", config.Application.GoogleProjectId,
		"location", config.Application.GoogleLocation,
		"storage", config.Storage.Backend,
		"documents", config.DocumentStore.Backend)

	sc.GenAIClient, err = genai.NewClient(ctx, &genai.ClientConfig{
		Project:  config.Application.GoogleProjectId,
		Location: config.Application.GoogleLocation,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating genai client: %w", err)
	}

	if err = sc.initBlobStore(ctx, config); err != nil {
		return nil, err
	}
	if err = sc.initDocumentStore(ctx, config); err != nil {
		return nil, err
	}

	if len(config.TopicSubscriptions) > 0 || len(config.Pipeline.IngestionTopic) > 0 {
		sc.PubsubClient, err = pubsub.NewClient(ctx, config.Application.GoogleProjectId)
		if err != nil {
			return nil, err
		}
		sc.Publisher = NewPubSubPublisher(sc.PubsubClient)
		for subKey, values := range config.TopicSubscriptions {
			listener, lErr := NewPubSubListener(sc.PubsubClient, values.Name, nil)
			if lErr != nil {
				return nil, lErr
			}
			sc.PubSubListeners[subKey] = listener
		}
	}

	if config.Pipeline.PersistRuns {
		sc.BigQueryClient, err = bigquery.NewClient(ctx, config.Application.GoogleProjectId)
		if err != nil {
			return nil, err
		}
	}

	if config.Cache.Enabled {
		client, cErr := NewRedisClient(ctx, config.Cache)
		if cErr != nil {
			// The cache is an optimisation; run without it.
			slog.WarnContext(ctx, "response cache disabled", "addr", config.Cache.RedisAddr, "error", cErr)
		} else {
			sc.RedisClient = client
			sc.ResponseCache = NewRedisResponseCache(client, time.Duration(config.Cache.TTLSeconds)*time.Second)
		}
	}

	for amKey, values := range config.AgentModels {
		sc.AgentModels[amKey] = NewQuotaAwareModel(NewGenerateContentConfig(values), values.Model, sc.GenAIClient.Models, values.RateLimit)
	}
	for smKey, values := range config.SpeechModels {
		sc.SpeechModels[smKey] = NewQuotaAwareModel(NewGenerateContentConfig(values), values.Model, sc.GenAIClient.Models, values.RateLimit)
	}
	for imKey, values := range config.ImageModels {
		sc.ImageModels[imKey] = NewImagenGenerator(sc.GenAIClient.Models, values)
	}

	return sc, nil
}

func (c *ServiceClients) initBlobStore(ctx context.Context, config *Config) (err error) {
	switch config.Storage.Backend {
	case BackendGCS:
		if c.StorageClient, err = storage.NewClient(ctx); err != nil {
			return err
		}
		if len(config.Application.SignerServiceAccountEmail) > 0 {
			if c.IAMClient, err = credentials.NewIamCredentialsClient(ctx); err != nil {
				return err
			}
		}
		c.BlobStore = NewGCSBlobStore(c.StorageClient, c.IAMClient, config.Storage.MediaBucket,
			config.Application.SignerServiceAccountEmail, config.Storage.PublicBaseURL)
	case BackendMinIO:
		if c.MinIOClient, err = NewMinIOClient(config.MinIO); err != nil {
			return err
		}
		exists, bErr := c.MinIOClient.BucketExists(ctx, config.Storage.MediaBucket)
		if bErr != nil {
			return bErr
		}
		if !exists {
			if err = c.MinIOClient.MakeBucket(ctx, config.Storage.MediaBucket, minio.MakeBucketOptions{Region: config.MinIO.Region}); err != nil {
				return err
			}
		}
		c.BlobStore = NewMinIOBlobStore(c.MinIOClient, config.Storage.MediaBucket, config.Storage.PublicBaseURL)
	case BackendMemory:
		c.BlobStore = NewMemoryBlobStore(config.Storage.PublicBaseURL)
	default:
		return errors.New("unknown storage backend: " + config.Storage.Backend)
	}
	return nil
}

func (c *ServiceClients) initDocumentStore(ctx context.Context, config *Config) (err error) {
	switch config.DocumentStore.Backend {
	case BackendFirestore:
		database := config.DocumentStore.Database
		if len(database) == 0 {
			database = firestore.DefaultDatabaseID
		}
		c.FirestoreClient, err = firestore.NewClientWithDatabase(ctx, config.Application.GoogleProjectId, database)
		if err != nil {
			return err
		}
		c.DocumentStore = NewFirestoreDocumentStore(c.FirestoreClient)
	case BackendMemory:
		c.DocumentStore = NewMemoryDocumentStore()
	default:
		return errors.New("unknown document store backend: " + config.DocumentStore.Backend)
	}
	return nil
}
