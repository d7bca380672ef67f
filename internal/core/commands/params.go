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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface for the two recipe
// pipelines.
//
// The ingestion commands all read the IngestionJob from the context and write
// their results back under the keys below, so a command that is skipped or
// degrades leaves the rest of the chain runnable. Soft failures are recorded
// as failed processing steps on the recipe log and never stop the chain; only
// document-store write failures are recorded with AddError.
//
// The manual confirmation commands read the ManualRecipeLog from the context
// and fail fatally on any error, since confirmation is a one-shot publish.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/cloud"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/cor"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/services"
)

// Step names written to processingSteps.
const (
	StepMetadata      = "metadata_extraction"
	StepVideoDownload = "video_download"
	StepTranscription = "transcription"
	StepSceneAnalysis = "scene_analysis"
	StepVerification  = "recipe_verification"
	StepStructuring   = "recipe_structuring"
	StepNutrition     = "nutrition_estimation"
	StepFinal         = "final_generation"
)

// ErrNoMetadata marks a URL the metadata provider returned nothing for.
var ErrNoMetadata = errors.New("no metadata available for url")

// ErrNoVideo marks a run whose output cannot be linked to a Video entity.
var ErrNoVideo = errors.New("no video entity for url")

// GetJobParameterName is the context key of the IngestionJob every
// ingestion command reads.
func GetJobParameterName() string {
	return "__INGESTION_JOB__"
}

func GetMetadataParameterName() string {
	return "__VIDEO_METADATA__"
}

func GetVideoIDParameterName() string {
	return "__VIDEO_ID__"
}

func GetTranscriptParameterName() string {
	return "__TRANSCRIPT__"
}

func GetAnalysisParameterName() string {
	return "__SCENE_ANALYSIS__"
}

func GetManualLogParameterName() string {
	return "__MANUAL_LOG__"
}

func GetNutritionParameterName() string {
	return "__NUTRITION__"
}

func GetIngredientImagesParameterName() string {
	return "__INGREDIENT_IMAGES__"
}

func GetSlideshowParameterName() string {
	return "__SLIDESHOW__"
}

func GetSlideshowObjectParameterName() string {
	return "__SLIDESHOW_OBJECT__"
}

func GetVideoParameterName() string {
	return "__VIDEO__"
}

// jobCommand is the base of every ingestion command: its input is the job.
func jobCommand(name string) cor.BaseCommand {
	out := *cor.NewBaseCommand(name)
	out.InputParamName = GetJobParameterName()
	return out
}

func manualCommand(name string) cor.BaseCommand {
	out := *cor.NewBaseCommand(name)
	out.InputParamName = GetManualLogParameterName()
	return out
}

func job(context cor.Context) *model.IngestionJob {
	j, _ := context.Get(GetJobParameterName()).(*model.IngestionJob)
	return j
}

func metadata(context cor.Context) *model.VideoMetadata {
	m, _ := context.Get(GetMetadataParameterName()).(*model.VideoMetadata)
	return m
}

func analysis(context cor.Context) *model.SceneAnalysis {
	a, _ := context.Get(GetAnalysisParameterName()).(*model.SceneAnalysis)
	return a
}

func manualLog(context cor.Context) *model.ManualRecipeLog {
	l, _ := context.Get(GetManualLogParameterName()).(*model.ManualRecipeLog)
	return l
}

// recipeText is the text structuring and nutrition run over, or "" when
// scene analysis produced nothing usable.
func recipeText(context cor.Context) string {
	return analysis(context).RecipeText()
}

// resolveVideoID returns the video created by metadata extraction, falling
// back to a lookup by the submitted URL.
func resolveVideoID(ctx context.Context, chCtx cor.Context, videos *services.VideoRepository, j *model.IngestionJob) (string, error) {
	if id, ok := chCtx.Get(GetVideoIDParameterName()).(string); ok && len(id) > 0 {
		return id, nil
	}
	video, err := videos.FindBySourceURL(ctx, j.VideoURL)
	if err != nil {
		if errors.Is(err, cloud.ErrDocumentNotFound) {
			return "", fmt.Errorf("%w: %s", ErrNoVideo, j.VideoURL)
		}
		return "", err
	}
	chCtx.Add(GetVideoIDParameterName(), video.ID)
	return video.ID, nil
}

// softStep logs a degraded stage and builds its failed step entry.
func softStep(ctx context.Context, step string, j *model.IngestionJob, err error) model.ProcessingStep {
	if err != nil {
		slog.WarnContext(ctx, "pipeline step failed", "step", step, "log_id", j.LogID, "video_url", j.VideoURL, "error", err)
	}
	return model.NewProcessingStep(step, err)
}
