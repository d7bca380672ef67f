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
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/cloud"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
)

// Dispatcher hands an ingestion job to whatever runs the pipeline.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *model.IngestionJob) error
}

// PubSubDispatcher publishes jobs as JSON to a topic. The subscription
// listener on the other side runs the ingestion chain.
type PubSubDispatcher struct {
	publisher cloud.MessagePublisher
	topic     string
}

func NewPubSubDispatcher(publisher cloud.MessagePublisher, topic string) *PubSubDispatcher {
	return &PubSubDispatcher{publisher: publisher, topic: topic}
}

func (d *PubSubDispatcher) Dispatch(ctx context.Context, job *model.IngestionJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal ingestion job: %w", err)
	}
	id, err := d.publisher.Publish(ctx, d.topic, data)
	if err != nil {
		return fmt.Errorf("failed to publish ingestion job to %s: %w", d.topic, err)
	}
	slog.InfoContext(ctx, "ingestion job published", "log_id", job.LogID, "topic", d.topic, "message_id", id)
	return nil
}

// LocalDispatcher runs each job in its own goroutine. The job outlives the
// request that submitted it, so the run context keeps the caller's values
// but drops its cancellation.
type LocalDispatcher struct {
	run func(ctx context.Context, job *model.IngestionJob) error
	wg  sync.WaitGroup
}

func NewLocalDispatcher(run func(ctx context.Context, job *model.IngestionJob) error) *LocalDispatcher {
	return &LocalDispatcher{run: run}
}

func (d *LocalDispatcher) Dispatch(ctx context.Context, job *model.IngestionJob) error {
	runCtx := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.run(runCtx, job); err != nil {
			slog.ErrorContext(runCtx, "ingestion run failed", "log_id", job.LogID, "error", err)
		}
	}()
	return nil
}

// Wait blocks until every dispatched job has finished.
func (d *LocalDispatcher) Wait() {
	d.wg.Wait()
}
