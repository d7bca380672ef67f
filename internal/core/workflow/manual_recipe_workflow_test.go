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
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/services"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/workflow"
	test "github.com/jaycherian/gcp-go-recipe-extraction/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	zassert "github.com/zeebo/assert"
)

func ptr(s string) *string { return &s }

func TestManualRecipeLifecycle(t *testing.T) {
	spanCtx, span := tracer.Start(ctx, "manual-recipe-lifecycle")
	defer span.End()

	f := newFixture()
	w, err := workflow.NewManualRecipeWorkflow(f.deps())
	require.NoError(t, err)

	started, err := w.Start(spanCtx, "user-1", "vegetable stir fry")
	require.NoError(t, err)
	assert.Equal(t, model.StatusInitialGenerated, started.Status)
	require.NotNil(t, started.Recipe)
	require.NotNil(t, started.MealImage)
	assert.Equal(t, "Vegetable Stir Fry", started.Recipe.Title)
	assert.True(t, strings.HasPrefix(started.MealImage.URL, "https://media.example/images/meals/"))
	assert.Equal(t, []string{"initialization", "initial_generation"}, stepNames(started.ProcessingSteps))

	updated, err := w.Update(spanCtx, started.ID, model.ManualRecipeUpdates{RecipeUpdates: ptr("make it vegan")})
	require.NoError(t, err)
	assert.Equal(t, model.StatusUpdated, updated.Status)
	assert.Equal(t, "Vegan Stir Fry", updated.Recipe.Title)
	assert.Equal(t, *started.MealImage, *updated.MealImage)
	assert.Len(t, f.images.Prompts(), 1)

	// A second revision is allowed and only touches the image.
	revised, err := w.Update(spanCtx, started.ID, model.ManualRecipeUpdates{ImageUpdates: ptr("add sesame seeds")})
	require.NoError(t, err)
	assert.Equal(t, "Vegan Stir Fry", revised.Recipe.Title)
	assert.Equal(t, started.MealImage.Prompt+" add sesame seeds", revised.MealImage.Prompt)
	assert.NotEqual(t, started.MealImage.URL, revised.MealImage.URL)

	confirmed, err := w.Confirm(spanCtx, started.ID)
	require.NoError(t, err)
	logger.InfoContext(spanCtx, "manual recipe confirmed", "log_id", confirmed.ID, "video_id", confirmed.VideoID)

	zassert.Equal(t, confirmed.Status, model.StatusCompleted)
	require.NotNil(t, confirmed.Nutrition)
	assert.InDelta(t, 818.0, confirmed.Nutrition.NutritionInfo.Calories, 0.001)
	require.Len(t, confirmed.IngredientImages, 3)
	for i, img := range confirmed.IngredientImages {
		assert.Equal(t, i, img.Order)
	}
	assert.Equal(t, "broccoli", confirmed.IngredientImages[0].IngredientName)
	assert.True(t, strings.HasPrefix(confirmed.VideoURL, "https://media.example/videos/recipes/vegan_stir_fry_"))
	last := confirmed.ProcessingSteps[len(confirmed.ProcessingSteps)-1]
	assert.Equal(t, "final_generation", last.Step)
	assert.True(t, last.Success)

	video, err := services.NewVideoRepository(f.documents).Get(spanCtx, confirmed.VideoID)
	require.NoError(t, err)
	assert.Equal(t, "Recipe: Vegan Stir Fry", video.VideoTitle)
	assert.Equal(t, model.SourceManualRecipe, video.Source)
	assert.Equal(t, confirmed.VideoURL, video.VideoURL)
	assert.Equal(t, revised.MealImage.URL, video.ThumbnailURL)
	assert.Equal(t, float64(3+2)*3, video.Duration)

	images := f.renderer.Images()
	require.Len(t, images, 5)
	assert.Equal(t, images[0], images[4])
	for _, dir := range f.renderer.Dirs() {
		_, err := os.Stat(dir)
		assert.True(t, os.IsNotExist(err), "scratch directory %s still exists", dir)
	}

	_, err = w.Confirm(spanCtx, started.ID)
	assert.ErrorIs(t, err, workflow.ErrInvalidState)
	_, err = w.Update(spanCtx, started.ID, model.ManualRecipeUpdates{RecipeUpdates: ptr("more garlic")})
	assert.ErrorIs(t, err, workflow.ErrInvalidState)
}

func TestManualRecipeStartFailure(t *testing.T) {
	f := newFixture()
	f.images.FailOn = "vegetable stir fry"
	w, err := workflow.NewManualRecipeWorkflow(f.deps())
	require.NoError(t, err)

	_, err = w.Start(ctx, "user-1", "vegetable stir fry")
	require.ErrorIs(t, err, test.ErrInjected)

	docs, err := f.documents.Query(ctx, model.ManualRecipeLogCollection, "userId", "user-1", 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	log, err := w.Get(ctx, docs[0].ID())
	require.NoError(t, err)
	assert.Equal(t, model.StatusError, log.Status)
	step, ok := log.FindStep("initial_generation")
	require.True(t, ok)
	assert.False(t, step.Success)
	assert.Nil(t, log.Recipe)

	_, err = w.Update(ctx, log.ID, model.ManualRecipeUpdates{RecipeUpdates: ptr("make it vegan")})
	assert.ErrorIs(t, err, workflow.ErrInvalidState)
}

func TestManualRecipeConfirmFailureKeepsState(t *testing.T) {
	f := newFixture()
	f.renderer.Err = test.ErrInjected
	w, err := workflow.NewManualRecipeWorkflow(f.deps())
	require.NoError(t, err)

	started, err := w.Start(ctx, "user-1", "vegetable stir fry")
	require.NoError(t, err)

	_, err = w.Confirm(ctx, started.ID)
	require.ErrorIs(t, err, test.ErrInjected)

	log, err := w.Get(ctx, started.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInitialGenerated, log.Status)
	assert.Empty(t, log.VideoID)
	step, ok := log.FindStep("final_generation")
	require.True(t, ok)
	assert.False(t, step.Success)
	for _, dir := range f.renderer.Dirs() {
		_, err := os.Stat(dir)
		assert.True(t, os.IsNotExist(err), "scratch directory %s still exists", dir)
	}

	// The caller may retry once the renderer recovers.
	f.renderer.Err = nil
	confirmed, err := w.Confirm(ctx, started.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, confirmed.Status)
}

func TestManualRecipeConfirmHoldsLogWhileRunning(t *testing.T) {
	f := newFixture()
	f.renderer.Entered = make(chan struct{}, 1)
	f.renderer.Release = make(chan struct{})
	w, err := workflow.NewManualRecipeWorkflow(f.deps())
	require.NoError(t, err)

	started, err := w.Start(ctx, "user-1", "vegetable stir fry")
	require.NoError(t, err)

	type outcome struct {
		log *model.ManualRecipeLog
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		log, err := w.Confirm(ctx, started.ID)
		first <- outcome{log: log, err: err}
	}()
	<-f.renderer.Entered

	// The running confirmation keeps other confirmations and revisions out.
	_, err = w.Confirm(ctx, started.ID)
	assert.ErrorIs(t, err, workflow.ErrInvalidState)
	_, err = w.Update(ctx, started.ID, model.ManualRecipeUpdates{RecipeUpdates: ptr("make it vegan")})
	assert.ErrorIs(t, err, workflow.ErrInvalidState)

	close(f.renderer.Release)
	got := <-first
	require.NoError(t, got.err)
	assert.Equal(t, model.StatusCompleted, got.log.Status)
	assert.Empty(t, got.log.ConfirmationClaim)
	assert.Equal(t, "Vegetable Stir Fry", got.log.Recipe.Title)
	assertOneManualVideo(t, f, got.log)
}

func TestManualRecipeConcurrentConfirmPublishesOnce(t *testing.T) {
	f := newFixture()
	w, err := workflow.NewManualRecipeWorkflow(f.deps())
	require.NoError(t, err)

	started, err := w.Start(ctx, "user-1", "vegetable stir fry")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	gate := make(chan struct{})
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-gate
			_, errs[i] = w.Confirm(ctx, started.ID)
		}(i)
	}
	close(gate)
	wg.Wait()

	var ok, refused int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, workflow.ErrInvalidState):
			refused++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, refused)

	log, err := w.Get(ctx, started.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, log.Status)
	assertOneManualVideo(t, f, log)
}

// assertOneManualVideo checks that log was published exactly once.
func assertOneManualVideo(t *testing.T, f *fixture, log *model.ManualRecipeLog) {
	t.Helper()
	docs, err := f.documents.Query(ctx, model.VideoCollection, "source", model.SourceManualRecipe, 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, log.VideoID, docs[0].ID())

	var final int
	for _, step := range log.ProcessingSteps {
		if step.Step == "final_generation" {
			final++
			assert.True(t, step.Success)
		}
	}
	assert.Equal(t, 1, final)
}

func TestManualRecipeRejectsInput(t *testing.T) {
	f := newFixture()
	w, err := workflow.NewManualRecipeWorkflow(f.deps())
	require.NoError(t, err)

	_, err = w.Start(ctx, "user-1", "   ")
	assert.ErrorIs(t, err, workflow.ErrInvalidInput)

	started, err := w.Start(ctx, "user-1", "vegetable stir fry")
	require.NoError(t, err)
	_, err = w.Update(ctx, started.ID, model.ManualRecipeUpdates{RecipeUpdates: ptr(" ")})
	assert.ErrorIs(t, err, workflow.ErrInvalidInput)

	_, err = w.Get(ctx, "missing")
	assert.ErrorIs(t, err, workflow.ErrLogNotFound)
	_, err = w.Confirm(ctx, "missing")
	assert.ErrorIs(t, err, workflow.ErrLogNotFound)
}
