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

package services_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/cloud"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/services"
	test "github.com/jaycherian/gcp-go-recipe-extraction/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	zassert "github.com/zeebo/assert"
)

func TestRecipeLogRepository(t *testing.T) {
	ctx := context.Background()
	logs := services.NewRecipeLogRepository(cloud.NewMemoryDocumentStore())

	_, err := logs.Create(ctx, model.NewRecipeLog("user-1", "not a url"))
	assert.Error(t, err)

	log := model.NewRecipeLog("user-1", "https://youtu.be/abc")
	id, err := logs.Create(ctx, log)
	require.NoError(t, err)
	assert.Equal(t, id, log.ID)

	metadata := &model.VideoMetadata{Title: "Shrimp", Platform: model.PlatformYouTube}
	require.NoError(t, logs.AppendStep(ctx, id, model.NewProcessingStep("metadata_extraction", nil),
		cloud.Update{Path: "metadata", Value: metadata},
		cloud.Update{Path: "platform", Value: metadata.Platform}))

	moved, err := logs.AdvanceStatus(ctx, id, model.StatusTranscribed, model.NewProcessingStep("transcription", test.ErrInjected))
	require.NoError(t, err)
	assert.True(t, moved)

	// A refused transition writes nothing, not even its step.
	moved, err = logs.AdvanceStatus(ctx, id, model.StatusProcessing, model.NewProcessingStep("late", nil),
		cloud.Update{Path: "platform", Value: model.PlatformTikTok})
	require.NoError(t, err)
	assert.False(t, moved)

	got, err := logs.Get(ctx, id)
	require.NoError(t, err)
	zassert.Equal(t, got.ID, id)
	assert.Equal(t, model.StatusTranscribed, got.Status)
	assert.Equal(t, model.PlatformYouTube, got.Platform)
	assert.Equal(t, "Shrimp", got.Metadata.Title)
	require.Len(t, got.ProcessingSteps, 3)
	names := make([]string, 0, len(got.ProcessingSteps))
	for _, s := range got.ProcessingSteps {
		names = append(names, s.Step)
	}
	assert.Equal(t, []string{"submission", "metadata_extraction", "transcription"}, names)
	assert.False(t, got.ProcessingSteps[2].Success)
	assert.Equal(t, test.ErrInjected.Error(), got.ProcessingSteps[2].Error)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt) || got.UpdatedAt.Equal(got.CreatedAt))

	_, err = logs.Get(ctx, "missing")
	assert.ErrorIs(t, err, cloud.ErrDocumentNotFound)
	_, err = logs.AdvanceStatus(ctx, "missing", model.StatusError, model.NewProcessingStep("pipeline", test.ErrInjected))
	assert.ErrorIs(t, err, cloud.ErrDocumentNotFound)
}

func TestAdvanceStatusOnTerminalLogWritesNothing(t *testing.T) {
	ctx := context.Background()
	logs := services.NewRecipeLogRepository(cloud.NewMemoryDocumentStore())
	id, err := logs.Create(ctx, model.NewRecipeLog("user-1", "https://youtu.be/abc"))
	require.NoError(t, err)

	moved, err := logs.AdvanceStatus(ctx, id, model.StatusCompleted, model.NewProcessingStep("nutrition_estimation", nil))
	require.NoError(t, err)
	require.True(t, moved)
	before, err := logs.Get(ctx, id)
	require.NoError(t, err)

	for _, next := range []model.LogStatus{model.StatusCompleted, model.StatusError, model.StatusAnalyzed} {
		moved, err := logs.AdvanceStatus(ctx, id, next, model.NewProcessingStep("pipeline", test.ErrInjected))
		require.NoError(t, err)
		assert.False(t, moved, "moved to %s", next)
	}
	after, err := logs.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestManualRecipeLogRepository(t *testing.T) {
	ctx := context.Background()
	logs := services.NewManualRecipeLogRepository(cloud.NewMemoryDocumentStore())
	id, err := logs.Create(ctx, model.NewManualRecipeLog("user-1", "vegetable stir fry"))
	require.NoError(t, err)

	moved, err := logs.AdvanceStatus(ctx, id, model.StatusInitialGenerated, model.NewProcessingStep("initial_generation", nil),
		cloud.Update{Path: "mealImage", Value: &model.GeneratedImage{URL: "memory://blobs/a.png", Prompt: "p"}})
	require.NoError(t, err)
	assert.True(t, moved)
	for i := 0; i < 2; i++ {
		moved, err = logs.AdvanceStatus(ctx, id, model.StatusUpdated, model.NewProcessingStep("update_generation", nil))
		require.NoError(t, err)
		assert.True(t, moved)
	}
	got, err := logs.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusUpdated, got.Status)
	assert.Equal(t, "memory://blobs/a.png", got.MealImage.URL)
	assert.Len(t, got.ProcessingSteps, 4)
}

func TestManualRecipeConfirmationClaim(t *testing.T) {
	ctx := context.Background()
	logs := services.NewManualRecipeLogRepository(cloud.NewMemoryDocumentStore())
	id, err := logs.Create(ctx, model.NewManualRecipeLog("user-1", "vegetable stir fry"))
	require.NoError(t, err)

	_, err = logs.ClaimConfirmation(ctx, id)
	assert.ErrorIs(t, err, services.ErrNotRevisable)
	_, err = logs.ClaimConfirmation(ctx, "missing")
	assert.ErrorIs(t, err, cloud.ErrDocumentNotFound)

	_, err = logs.AdvanceStatus(ctx, id, model.StatusInitialGenerated, model.NewProcessingStep("initial_generation", nil))
	require.NoError(t, err)
	token, err := logs.ClaimConfirmation(ctx, id)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = logs.ClaimConfirmation(ctx, id)
	assert.ErrorIs(t, err, services.ErrConfirmationPending)
	err = logs.Revise(ctx, id, model.NewProcessingStep("update_generation", nil))
	assert.ErrorIs(t, err, services.ErrConfirmationPending)
	err = logs.ReleaseConfirmation(ctx, id, "other", model.NewProcessingStep("final_generation", test.ErrInjected))
	assert.ErrorIs(t, err, services.ErrConfirmationLost)

	got, err := logs.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, token, got.ConfirmationClaim)
	assert.Equal(t, model.StatusInitialGenerated, got.Status)
	assert.Len(t, got.ProcessingSteps, 2)

	require.NoError(t, logs.ReleaseConfirmation(ctx, id, token, model.NewProcessingStep("final_generation", test.ErrInjected)))
	got, err = logs.Get(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, got.ConfirmationClaim)
	step, ok := got.FindStep("final_generation")
	require.True(t, ok)
	assert.False(t, step.Success)

	require.NoError(t, logs.Revise(ctx, id, model.NewProcessingStep("update_generation", nil)))
	token, err = logs.ClaimConfirmation(ctx, id)
	require.NoError(t, err)
	assert.ErrorIs(t, logs.CompleteConfirmation(ctx, id, "", model.NewProcessingStep("final_generation", nil)), services.ErrConfirmationLost)
	require.NoError(t, logs.CompleteConfirmation(ctx, id, token, model.NewProcessingStep("final_generation", nil),
		cloud.Update{Path: "videoId", Value: "video-1"}))

	got, err = logs.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, "video-1", got.VideoID)
	assert.Empty(t, got.ConfirmationClaim)
	_, err = logs.ClaimConfirmation(ctx, id)
	assert.ErrorIs(t, err, services.ErrNotRevisable)
	assert.ErrorIs(t, logs.Revise(ctx, id, model.NewProcessingStep("update_generation", nil)), services.ErrNotRevisable)
}

func TestEntityRepositories(t *testing.T) {
	ctx := context.Background()
	store := cloud.NewMemoryDocumentStore()
	videos := services.NewVideoRepository(store)
	recipes := services.NewRecipeRepository(store)
	nutrition := services.NewNutritionRepository(store)

	video := model.NewVideoFromMetadata("user-1", "https://youtu.be/abc", "", "", &model.VideoMetadata{Title: "Shrimp", Duration: 30})
	videoID, err := videos.Create(ctx, video)
	require.NoError(t, err)
	found, err := videos.FindBySourceURL(ctx, "https://youtu.be/abc")
	require.NoError(t, err)
	assert.Equal(t, videoID, found.ID)
	assert.Equal(t, "https://youtu.be/abc", found.VideoURL)
	_, err = videos.FindBySourceURL(ctx, "https://youtu.be/other")
	assert.ErrorIs(t, err, cloud.ErrDocumentNotFound)

	structured, err := services.ParseStructuredRecipe(test.GetTestStructuredRecipeText())
	require.NoError(t, err)
	recipe, steps, err := recipes.Create(ctx, videoID, structured)
	require.NoError(t, err)
	assert.Len(t, steps, 3)
	gotRecipe, gotSteps, err := recipes.Get(ctx, recipe.ID)
	require.NoError(t, err)
	assert.Equal(t, "Garlic Butter Shrimp", gotRecipe.Title)
	require.Len(t, gotSteps, 3)
	for i, s := range gotSteps {
		assert.Equal(t, i+1, s.StepOrder)
		assert.Equal(t, recipe.ID, s.RecipeID)
	}
	byVideo, err := recipes.FindByVideo(ctx, videoID)
	require.NoError(t, err)
	assert.Len(t, byVideo, 1)

	_, _, err = recipes.Create(ctx, videoID, &model.StructuredRecipe{Recipe: model.RecipeHeader{Title: ""}})
	assert.Error(t, err)

	info, err := services.ParseNutrition(test.GetTestNutritionText())
	require.NoError(t, err)
	record := model.NewNutritionRecord(videoID, &model.NutritionEstimate{ServingSizes: 4, NutritionInfo: *info})
	require.NoError(t, nutrition.Save(ctx, record))
	gotNutrition, err := nutrition.Get(ctx, videoID)
	require.NoError(t, err)
	assert.Equal(t, 818.0, gotNutrition.Calories)
	assert.Len(t, gotNutrition.Ingredients, 3)

	record.ServingSizes = 0
	assert.Error(t, nutrition.Save(ctx, record))
}

func TestVideoServiceStreamURL(t *testing.T) {
	ctx := context.Background()
	store := cloud.NewMemoryDocumentStore()
	blobs := cloud.NewMemoryBlobStore("https://media.example")
	videos := services.NewVideoRepository(store)
	service := services.NewVideoService(videos, blobs)

	url, err := blobs.Upload(ctx, "videos/shrimp_1234abcd.mp4", strings.NewReader("video"), "video/mp4")
	require.NoError(t, err)
	stored := model.NewVideoFromMetadata("user-1", "https://youtu.be/abc", url, "videos/shrimp_1234abcd.mp4", &model.VideoMetadata{Title: "Shrimp"})
	storedID, err := videos.Create(ctx, stored)
	require.NoError(t, err)
	external := model.NewVideoFromMetadata("user-1", "https://youtu.be/xyz", "", "", &model.VideoMetadata{Title: "Other"})
	externalID, err := videos.Create(ctx, external)
	require.NoError(t, err)

	signed, err := service.StreamURL(ctx, storedID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(signed, url+"?expires="))

	direct, err := service.StreamURL(ctx, externalID)
	require.NoError(t, err)
	assert.Equal(t, "https://youtu.be/xyz", direct)

	_, err = service.StreamURL(ctx, "missing")
	assert.ErrorIs(t, err, cloud.ErrDocumentNotFound)
}

func TestNewRunRecord(t *testing.T) {
	log := model.NewRecipeLog("user-1", "https://youtu.be/abc")
	log.ID = "log-1"
	log.Status = model.StatusCompleted
	log.ProcessingSteps = append(log.ProcessingSteps,
		model.NewProcessingStep("transcription", test.ErrInjected),
		model.NewProcessingStep("scene_analysis", nil))
	log.Analysis = &model.SceneAnalysis{Success: true, Scenes: make([]model.Scene, 4),
		StructuredRecipe: &model.StructuredRecipe{RecipeItems: make([]model.RecipeStep, 2)}}
	log.Nutrition = &model.NutritionInfo{Calories: 500, Ingredients: make([]model.Ingredient, 5)}

	run := services.NewRunRecord(log, log.CreatedAt.Add(90*time.Second))
	assert.Equal(t, "log-1", run.LogID)
	assert.Equal(t, "completed", run.Status)
	assert.Equal(t, 3, run.StepCount)
	assert.Equal(t, 1, run.FailedSteps)
	assert.Equal(t, 4, run.SceneCount)
	assert.Equal(t, 2, run.RecipeSteps)
	assert.Equal(t, 5, run.IngredientCount)
	assert.Equal(t, 500.0, run.Calories)
	assert.Equal(t, 90.0, run.DurationSeconds)
}
