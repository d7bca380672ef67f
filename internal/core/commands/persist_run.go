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

// This file defines the last command of the ingestion chain. It reloads the
// finished recipe log and streams one summary row into the analytics store
// (BigQuery in production), which backs the run statistics of the API.
//
// Analytics never changes the outcome of a run: a failed insert is logged
// and counted, but not recorded as a chain error.
package commands

import (
	"log/slog"
	"time"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/cor"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/services"
)

// PersistRunToBigQuery writes a RunRecord for the job's log.
type PersistRunToBigQuery struct {
	cor.BaseCommand
	logs     *services.RecipeLogRepository
	recorder services.RunRecorder
}

func NewPersistRunToBigQuery(name string, logs *services.RecipeLogRepository, recorder services.RunRecorder) *PersistRunToBigQuery {
	return &PersistRunToBigQuery{BaseCommand: jobCommand(name), logs: logs, recorder: recorder}
}

func (s *PersistRunToBigQuery) IsExecutable(context cor.Context) bool {
	return s.recorder != nil && s.BaseCommand.IsExecutable(context)
}

func (s *PersistRunToBigQuery) Execute(context cor.Context) {
	ctx := context.GetContext()
	j := job(context)

	log, err := s.logs.Get(ctx, j.LogID)
	if err != nil {
		slog.WarnContext(ctx, "failed to load log for analytics", "log_id", j.LogID, "error", err)
		s.GetErrorCounter().Add(ctx, 1)
		return
	}
	run := services.NewRunRecord(log, time.Now().UTC())
	if err := s.recorder.Record(ctx, run); err != nil {
		slog.WarnContext(ctx, "failed to record ingestion run", "log_id", j.LogID, "error", err)
		s.GetErrorCounter().Add(ctx, 1)
		return
	}
	s.Succeed(context)
	slog.InfoContext(ctx, "recorded ingestion run", "log_id", j.LogID, "status", run.Status, "duration_seconds", run.DurationSeconds)
}
