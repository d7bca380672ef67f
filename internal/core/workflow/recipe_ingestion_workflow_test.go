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
package workflow_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/cloud"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/services"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/workflow"
	test "github.com/jaycherian/gcp-go-recipe-extraction/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shrimpURL = "https://www.youtube.com/watch?v=abc"

func submitAndWait(t *testing.T, w *workflow.RecipeIngestionWorkflow, url string) *model.RecipeLog {
	t.Helper()
	submitted, err := w.Submit(ctx, "user-1", url)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, submitted.Status)

	dispatcher, ok := w.Dispatcher().(*workflow.LocalDispatcher)
	require.True(t, ok)
	dispatcher.Wait()

	log, err := w.Get(ctx, submitted.ID)
	require.NoError(t, err)
	return log
}

func TestRecipeIngestionCompletes(t *testing.T) {
	spanCtx, span := tracer.Start(ctx, "recipe-ingestion-completes")
	defer span.End()

	f := newFixture()
	w, err := workflow.NewRecipeIngestionWorkflow(f.deps())
	require.NoError(t, err)

	log := submitAndWait(t, w, shrimpURL)
	logger.InfoContext(spanCtx, "ingestion finished", "log_id", log.ID, "status", log.Status)

	assert.Equal(t, model.StatusCompleted, log.Status)
	assert.Equal(t, model.PlatformYouTube, log.Platform)
	assert.Equal(t, []string{
		"submission",
		"metadata_extraction",
		"transcription",
		"scene_analysis",
		"recipe_structuring",
		"nutrition_estimation",
	}, stepNames(log.ProcessingSteps))
	for _, s := range log.ProcessingSteps {
		assert.True(t, s.Success, "step %s failed: %s", s.Step, s.Error)
	}
	require.NotNil(t, log.Analysis)
	assert.Len(t, log.Analysis.Scenes, 3)
	assert.Len(t, f.text.PromptsContaining("Below is a scene from a cooking video"), 3)
	assert.Equal(t, "melt the butter then add the shrimp", log.Transcription.Text)

	require.NotEmpty(t, log.VideoID)
	video, err := services.NewVideoRepository(f.documents).Get(ctx, log.VideoID)
	require.NoError(t, err)
	assert.Equal(t, "Garlic Butter Shrimp", video.VideoTitle)
	assert.Equal(t, model.SourceIngestion, video.Source)
	assert.Equal(t, shrimpURL, video.VideoURL)

	docs, err := f.documents.Query(ctx, model.RecipeCollection, "videoId", log.VideoID, 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	recipe, steps, err := services.NewRecipeRepository(f.documents).Get(ctx, docs[0].ID())
	require.NoError(t, err)
	assert.Equal(t, "Garlic Butter Shrimp", recipe.Title)
	require.Len(t, steps, 3)
	for i, s := range steps {
		assert.Equal(t, i+1, s.StepOrder)
	}
	assert.Equal(t, "Melt the butter.", steps[0].Instruction)

	nutrition, err := services.NewNutritionRepository(f.documents).Get(ctx, log.VideoID)
	require.NoError(t, err)
	assert.InDelta(t, 818.0, nutrition.Calories, 0.001)
	assert.Len(t, nutrition.Ingredients, 3)
	require.NotNil(t, log.Nutrition)
	assert.InDelta(t, 818.0, log.Nutrition.Calories, 0.001)

	require.Len(t, f.runs.Runs, 1)
	assert.Equal(t, string(model.StatusCompleted), f.runs.Runs[0].Status)
	assert.Equal(t, log.ID, f.runs.Runs[0].LogID)

	// A redelivered job for a finished log is acknowledged without work.
	calls := f.source.MetadataCalls()
	require.NoError(t, w.Run(ctx, &model.IngestionJob{LogID: log.ID, UserID: "user-1", VideoURL: shrimpURL}))
	assert.Equal(t, calls, f.source.MetadataCalls())
	again, err := w.Get(ctx, log.ID)
	require.NoError(t, err)
	assert.Len(t, again.ProcessingSteps, len(log.ProcessingSteps))
}

func TestRecipeIngestionSettlesAtAnalyzedWithoutScenes(t *testing.T) {
	f := newFixture()
	f.detector.Duration = 0
	f.detector.Cuts = nil
	w, err := workflow.NewRecipeIngestionWorkflow(f.deps())
	require.NoError(t, err)

	log := submitAndWait(t, w, shrimpURL)

	assert.Equal(t, model.StatusAnalyzed, log.Status)
	step, ok := log.FindStep("scene_analysis")
	require.True(t, ok)
	assert.False(t, step.Success)
	assert.NotEmpty(t, step.Error)
	_, ok = log.FindStep("recipe_structuring")
	assert.False(t, ok)
	_, ok = log.FindStep("nutrition_estimation")
	assert.False(t, ok)

	require.NotEmpty(t, log.VideoID)
	docs, err := f.documents.Query(ctx, model.RecipeCollection, "videoId", log.VideoID, 0)
	require.NoError(t, err)
	assert.Empty(t, docs)
	_, err = services.NewNutritionRepository(f.documents).Get(ctx, log.VideoID)
	assert.ErrorIs(t, err, cloud.ErrDocumentNotFound)
	assert.Empty(t, f.text.PromptsContaining("You are a JSON converter"))

	require.Len(t, f.runs.Runs, 1)
	assert.Equal(t, string(model.StatusAnalyzed), f.runs.Runs[0].Status)
}

func TestRecipeIngestionContinuesAfterTranscriptionFailure(t *testing.T) {
	f := newFixture()
	f.speech.Err = test.ErrInjected
	w, err := workflow.NewRecipeIngestionWorkflow(f.deps())
	require.NoError(t, err)

	log := submitAndWait(t, w, shrimpURL)

	assert.Equal(t, model.StatusCompleted, log.Status)
	step, ok := log.FindStep("transcription")
	require.True(t, ok)
	assert.False(t, step.Success)
	assert.Contains(t, step.Error, test.ErrInjected.Error())
	assert.Nil(t, log.Transcription)
}

func TestRecipeIngestionWithoutMetadata(t *testing.T) {
	f := newFixture()
	f.source.MetadataErr = test.ErrInjected
	w, err := workflow.NewRecipeIngestionWorkflow(f.deps())
	require.NoError(t, err)

	log := submitAndWait(t, w, shrimpURL)

	// Without a Video there is nothing to attach the recipe to.
	assert.Equal(t, model.StatusAnalyzed, log.Status)
	assert.Empty(t, log.VideoID)
	step, ok := log.FindStep("metadata_extraction")
	require.True(t, ok)
	assert.False(t, step.Success)
	step, ok = log.FindStep("recipe_structuring")
	require.True(t, ok)
	assert.False(t, step.Success)
	require.NotNil(t, log.Analysis)
	assert.NotNil(t, log.Analysis.StructuredRecipe)
}

func TestRecipeIngestionRecordsInvalidStructuredRecipe(t *testing.T) {
	f := newFixture()
	f.text = scriptedText(`{"recipe":{"title":"","summary":"s","additionalNotes":""},"recipeItems":[{"stepOrder":1,"instruction":"Melt the butter."}]}`, test.GetTestNutritionText())
	w, err := workflow.NewRecipeIngestionWorkflow(f.deps())
	require.NoError(t, err)

	log := submitAndWait(t, w, shrimpURL)

	// Nutrition only needs the recipe text, so the run still completes.
	assert.Equal(t, model.StatusCompleted, log.Status)
	assert.Equal(t, []string{
		"submission",
		"metadata_extraction",
		"transcription",
		"scene_analysis",
		"recipe_structuring",
		"nutrition_estimation",
	}, stepNames(log.ProcessingSteps))
	step, ok := log.FindStep("recipe_structuring")
	require.True(t, ok)
	assert.False(t, step.Success)
	assert.Contains(t, step.Error, services.ErrInvalidRecipe.Error())
	assert.Nil(t, log.Analysis.StructuredRecipe)

	docs, err := f.documents.Query(ctx, model.RecipeCollection, "videoId", log.VideoID, 0)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestRecipeIngestionSettlesAtAnalyzedOnInvalidNutrition(t *testing.T) {
	f := newFixture()
	f.text = scriptedText(test.GetTestStructuredRecipeText(), `{"ingredients":[{"name":"shrimp","calories":400},{"name":"","calories":12}]}`)
	w, err := workflow.NewRecipeIngestionWorkflow(f.deps())
	require.NoError(t, err)

	log := submitAndWait(t, w, shrimpURL)

	assert.Equal(t, model.StatusAnalyzed, log.Status)
	_, failed := log.FindStep(workflow.StepPipeline)
	assert.False(t, failed)
	step, ok := log.FindStep("recipe_structuring")
	require.True(t, ok)
	assert.True(t, step.Success)
	step, ok = log.FindStep("nutrition_estimation")
	require.True(t, ok)
	assert.False(t, step.Success)
	assert.Contains(t, step.Error, services.ErrInvalidNutrition.Error())
	assert.Nil(t, log.Nutrition)

	_, err = services.NewNutritionRepository(f.documents).Get(ctx, log.VideoID)
	assert.ErrorIs(t, err, cloud.ErrDocumentNotFound)
}

func TestRecipeIngestionVerification(t *testing.T) {
	f := newFixture()
	f.config.Pipeline.VerifyRecipe = true
	f.text = test.NewScriptedGenerator().
		On("using multiple methods", "**Ingredients:**\n- shrimp\n\n**Directions:**\n1. Cook.\n\n**Notes:**\nNone").
		On("I have extracted information from 3 scenes", "**Ingredients:**\n- shrimp").
		On("Below is a scene from a cooking video", "- shrimp").
		On("You are a JSON converter", test.GetTestStructuredRecipeText()).
		On("serving size for 4 people", "shrimp 450 g").
		On("You are a JSON generator", test.GetTestNutritionText())
	w, err := workflow.NewRecipeIngestionWorkflow(f.deps())
	require.NoError(t, err)

	log := submitAndWait(t, w, shrimpURL)

	assert.Equal(t, model.StatusCompleted, log.Status)
	step, ok := log.FindStep("recipe_verification")
	require.True(t, ok)
	assert.True(t, step.Success)
	assert.Contains(t, log.Analysis.VerifiedRecipe, "**Notes:**")
	converter := f.text.PromptsContaining("You are a JSON converter")
	require.Len(t, converter, 1)
	assert.Contains(t, converter[0], "1. Cook.")
}

func TestRecipeIngestionRejectsInput(t *testing.T) {
	f := newFixture()
	w, err := workflow.NewRecipeIngestionWorkflow(f.deps())
	require.NoError(t, err)

	_, err = w.Submit(ctx, "user-1", "not a url")
	assert.ErrorIs(t, err, workflow.ErrInvalidInput)

	_, err = w.Get(ctx, "missing")
	assert.ErrorIs(t, err, workflow.ErrLogNotFound)

	err = w.Run(ctx, &model.IngestionJob{LogID: "missing", UserID: "user-1", VideoURL: shrimpURL})
	assert.Error(t, err)
	assert.Equal(t, 0, f.source.MetadataCalls())
}

type recordingPublisher struct {
	mu       sync.Mutex
	err      error
	topics   []string
	messages [][]byte
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, data []byte) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.topics = append(p.topics, topic)
	p.messages = append(p.messages, data)
	return "message-1", nil
}

func TestRecipeIngestionPublishesJobs(t *testing.T) {
	f := newFixture()
	f.config.Pipeline.IngestionTopic = "recipe-ingestion"
	publisher := &recordingPublisher{}
	deps := f.deps()
	deps.Publisher = publisher
	w, err := workflow.NewRecipeIngestionWorkflow(deps)
	require.NoError(t, err)
	_, ok := w.Dispatcher().(*workflow.PubSubDispatcher)
	require.True(t, ok)

	log, err := w.Submit(ctx, "user-1", shrimpURL)
	require.NoError(t, err)
	require.Len(t, publisher.messages, 1)
	assert.Equal(t, "recipe-ingestion", publisher.topics[0])

	job := &model.IngestionJob{}
	require.NoError(t, json.Unmarshal(publisher.messages[0], job))
	assert.Equal(t, log.ID, job.LogID)
	assert.Equal(t, shrimpURL, job.VideoURL)
	assert.Equal(t, 0, f.source.MetadataCalls())

	// The listener side hands the raw message to the workflow.
	require.NoError(t, w.Run(ctx, &model.IngestionJob{LogID: job.LogID, UserID: job.UserID, VideoURL: job.VideoURL}))
	done, err := w.Get(ctx, log.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)

	publisher.err = test.ErrInjected
	_, err = w.Submit(ctx, "user-1", shrimpURL)
	assert.ErrorIs(t, err, test.ErrInjected)
}
