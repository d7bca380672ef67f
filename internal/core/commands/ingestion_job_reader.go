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

// This file defines the first command of the ingestion chain. It parses the
// raw job message, which arrives either from Pub/Sub or from the local
// dispatcher, and places the decoded IngestionJob into the context.
//
// A job whose recipe log already reached a terminal state is skipped: the
// command succeeds without emitting the job, so every later command is not
// executable and a redelivered message is acknowledged without rerunning the
// pipeline.
package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/cor"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/services"
)

// IngestionJobReader decodes an ingestion job message.
type IngestionJobReader struct {
	cor.BaseCommand
	logs *services.RecipeLogRepository
}

func NewIngestionJobReader(name string, logs *services.RecipeLogRepository) *IngestionJobReader {
	return &IngestionJobReader{BaseCommand: *cor.NewBaseCommand(name), logs: logs}
}

// Execute accepts the message as a JSON string or as an already decoded job.
func (c *IngestionJobReader) Execute(context cor.Context) {
	var out *model.IngestionJob
	switch in := context.Get(c.GetInputParam()).(type) {
	case *model.IngestionJob:
		out = in
	case string:
		out = &model.IngestionJob{}
		if err := json.Unmarshal([]byte(in), out); err != nil {
			c.Fail(context, fmt.Errorf("failed to unmarshal ingestion job: %w", err))
			return
		}
	default:
		c.Fail(context, fmt.Errorf("unsupported ingestion job message %T", in))
		return
	}
	if err := services.Validator().Struct(out); err != nil {
		c.Fail(context, fmt.Errorf("invalid ingestion job: %w", err))
		return
	}

	log, err := c.logs.Get(context.GetContext(), out.LogID)
	if err != nil {
		c.Fail(context, fmt.Errorf("failed to load recipe log %s: %w", out.LogID, err))
		return
	}
	c.Succeed(context)
	if log.Status.IsTerminal() {
		slog.InfoContext(context.GetContext(), "skipping finished ingestion job", "log_id", out.LogID, "status", log.Status)
		return
	}
	context.Add(GetJobParameterName(), out)
	context.Add(c.GetOutputParam(), out)
}
