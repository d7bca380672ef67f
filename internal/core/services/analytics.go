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

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
	"google.golang.org/api/iterator"
)

// RunRecord is one finished ingestion run, as stored in BigQuery.
type RunRecord struct {
	LogID           string    `bigquery:"log_id"`
	UserID          string    `bigquery:"user_id"`
	VideoURL        string    `bigquery:"video_url"`
	Platform        string    `bigquery:"platform"`
	VideoID         string    `bigquery:"video_id"`
	Status          string    `bigquery:"status"`
	StepCount       int       `bigquery:"step_count"`
	FailedSteps     int       `bigquery:"failed_steps"`
	SceneCount      int       `bigquery:"scene_count"`
	RecipeSteps     int       `bigquery:"recipe_steps"`
	IngredientCount int       `bigquery:"ingredient_count"`
	Calories        float64   `bigquery:"calories"`
	StartedAt       time.Time `bigquery:"started_at"`
	FinishedAt      time.Time `bigquery:"finished_at"`
	DurationSeconds float64   `bigquery:"duration_seconds"`
}

// NewRunRecord summarizes a log at the end of a run.
func NewRunRecord(log *model.RecipeLog, finishedAt time.Time) *RunRecord {
	out := &RunRecord{
		LogID:           log.ID,
		UserID:          log.UserID,
		VideoURL:        log.VideoURL,
		Platform:        string(log.Platform),
		VideoID:         log.VideoID,
		Status:          string(log.Status),
		StepCount:       len(log.ProcessingSteps),
		StartedAt:       log.CreatedAt,
		FinishedAt:      finishedAt,
		DurationSeconds: finishedAt.Sub(log.CreatedAt).Seconds(),
	}
	for _, s := range log.ProcessingSteps {
		if !s.Success {
			out.FailedSteps++
		}
	}
	if log.Analysis != nil {
		out.SceneCount = len(log.Analysis.Scenes)
		if log.Analysis.StructuredRecipe != nil {
			out.RecipeSteps = len(log.Analysis.StructuredRecipe.RecipeItems)
		}
	}
	if log.Nutrition != nil {
		out.IngredientCount = len(log.Nutrition.Ingredients)
		out.Calories = log.Nutrition.Calories
	}
	return out
}

// RunSummary aggregates runs that ended in one status.
type RunSummary struct {
	Status             string               `bigquery:"status" json:"status"`
	Runs               int64                `bigquery:"runs" json:"runs"`
	AvgDurationSeconds bigquery.NullFloat64 `bigquery:"avg_duration_seconds" json:"avgDurationSeconds"`
	FailedSteps        bigquery.NullInt64   `bigquery:"failed_steps" json:"failedSteps"`
}

// RunRecorder stores run records and reports on them.
type RunRecorder interface {
	Record(ctx context.Context, run *RunRecord) error
	Summary(ctx context.Context) ([]*RunSummary, error)
}

// BigQueryRunRecorder streams run records into a BigQuery table.
type BigQueryRunRecorder struct {
	BigqueryClient *bigquery.Client
	DatasetName    string
	RunsTable      string
}

func NewBigQueryRunRecorder(client *bigquery.Client, dataset string, table string) *BigQueryRunRecorder {
	return &BigQueryRunRecorder{BigqueryClient: client, DatasetName: dataset, RunsTable: table}
}

// GetFQN returns the table name in standard SQL form.
func (r *BigQueryRunRecorder) GetFQN() string {
	fqn := r.BigqueryClient.Dataset(r.DatasetName).Table(r.RunsTable).FullyQualifiedName()
	return strings.Replace(fqn, ":", ".", -1)
}

func (r *BigQueryRunRecorder) Record(ctx context.Context, run *RunRecord) error {
	inserter := r.BigqueryClient.Dataset(r.DatasetName).Table(r.RunsTable).Inserter()
	if err := inserter.Put(ctx, run); err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.LogID, err)
	}
	return nil
}

func (r *BigQueryRunRecorder) Summary(ctx context.Context) ([]*RunSummary, error) {
	out := make([]*RunSummary, 0)
	itr, err := r.BigqueryClient.Query(fmt.Sprintf(QryRunSummary, r.GetFQN())).Read(ctx)
	if err != nil {
		return out, fmt.Errorf("failed to read from BigQuery: %w", err)
	}
	for {
		row := &RunSummary{}
		err := itr.Next(row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return out, fmt.Errorf("failed to iterate results: %w", err)
		}
		out = append(out, row)
	}
	return out, nil
}
