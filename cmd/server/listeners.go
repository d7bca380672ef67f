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
package main

import (
	"context"
	"log/slog"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/cloud"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/workflow"
)

// IngestionSubscription is the topic_subscriptions key of the subscription
// that delivers ingestion jobs.
const IngestionSubscription = "ingestion"

// SetupListeners attaches the ingestion workflow to its subscription and
// starts receiving. Without the subscription, jobs run in-process.
func SetupListeners(ctx context.Context, config *cloud.Config, cloudClients *cloud.ServiceClients, ingestion *workflow.RecipeIngestionWorkflow) {
	listener, ok := cloudClients.PubSubListeners[IngestionSubscription]
	if !ok {
		if _, published := ingestion.Dispatcher().(*workflow.PubSubDispatcher); published {
			slog.WarnContext(ctx, "ingestion jobs are published but no subscription is configured",
				"topic", config.Pipeline.IngestionTopic)
		}
		return
	}
	listener.SetCommand(ingestion)
	listener.Listen(ctx)
}
