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
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/cloud"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/commands"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/cor"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/services"
)

const (
	StepInitialGeneration = "initial_generation"
	StepUpdateGeneration  = "update_generation"
)

// ManualRecipeWorkflow drives a prompt-generated recipe through initial
// generation, any number of revisions and a one-shot confirmation that
// publishes a slideshow video.
type ManualRecipeWorkflow struct {
	cor.BaseCommand
	deps   *Dependencies
	logs   *services.ManualRecipeLogRepository
	writer *services.ManualRecipeWriter
	images *services.MealImageGenerator
	chain  cor.Chain
}

func NewManualRecipeWorkflow(deps *Dependencies) (*ManualRecipeWorkflow, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	timeouts := deps.Config.Timeouts
	w := &ManualRecipeWorkflow{
		BaseCommand: *cor.NewBaseCommand("manual-recipe-workflow"),
		deps:        deps,
		logs:        services.NewManualRecipeLogRepository(deps.Documents),
		writer:      services.NewManualRecipeWriter(deps.Text, deps.Prompts, timeouts),
		images:      services.NewMealImageGenerator(deps.Images, deps.Blobs, deps.Prompts, timeouts),
	}
	w.InputParamName = commands.GetManualLogParameterName()
	w.initializeChain()
	return w, nil
}

// initializeChain builds the confirmation chain. Every command is fatal on
// failure, so the chain stops at the first error.
func (w *ManualRecipeWorkflow) initializeChain() {
	d := w.deps
	timeouts := d.Config.Timeouts
	assembler := services.NewSlideshowAssembler(d.Blobs, d.Renderer, d.Config.Slideshow, timeouts)
	out := cor.NewBaseChain(w.GetName())

	// Step 1: Nutrition over the finalized recipe text.
	out.AddCommand(commands.NewManualNutrition(
		"manual-nutrition",
		services.NewNutritionEstimator(d.Text, d.Prompts, d.Config.Pipeline.DefaultServingSize, timeouts)))

	// Step 2: One generated image per ingredient, in ingredient order.
	out.AddCommand(commands.NewIngredientImages("ingredient-images", w.images, d.workers()))

	// Step 3: Hero, ingredients, hero, crossfaded into a local video.
	out.AddCommand(commands.NewSlideshowRender("slideshow-render", assembler))

	// Step 4: Upload the rendered slideshow.
	out.AddCommand(commands.NewSlideshowUpload("slideshow-upload", assembler))

	// Step 5: The Video entity pointing at the slideshow.
	out.AddCommand(commands.NewVideoPublish("video-publish", services.NewVideoRepository(d.Documents)))

	// Step 6: Write the results onto the log and complete it.
	out.AddCommand(commands.NewManualFinalize("manual-finalize", w.logs))

	w.chain = out
}

func (w *ManualRecipeWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

// Start creates the log and generates the recipe and the hero image
// concurrently. Both must succeed for the log to reach initial_generated.
func (w *ManualRecipeWorkflow) Start(ctx context.Context, userID string, prompt string) (*model.ManualRecipeLog, error) {
	prompt = strings.TrimSpace(prompt)
	if len(prompt) == 0 {
		return nil, fmt.Errorf("%w: empty prompt", ErrInvalidInput)
	}
	log := model.NewManualRecipeLog(userID, prompt)
	if _, err := w.logs.Create(ctx, log); err != nil {
		return nil, fmt.Errorf("failed to create manual recipe log: %w", err)
	}
	slog.InfoContext(ctx, "manual recipe log created", "log_id", log.ID)

	var recipe model.Result[*model.GeneratedRecipe]
	var image model.Result[*model.GeneratedImage]
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		recipe = w.writer.Generate(ctx, prompt)
	}()
	go func() {
		defer wg.Done()
		image = w.images.Hero(ctx, prompt)
	}()
	wg.Wait()

	if err := errors.Join(recipe.Err, image.Err); err != nil {
		w.fail(ctx, log.ID, StepInitialGeneration, err)
		return nil, fmt.Errorf("initial generation failed: %w", err)
	}
	if _, err := w.logs.AdvanceStatus(ctx, log.ID, model.StatusInitialGenerated, model.NewProcessingStep(StepInitialGeneration, nil),
		cloud.Update{Path: "recipe", Value: recipe.Value},
		cloud.Update{Path: "mealImage", Value: image.Value}); err != nil {
		return nil, err
	}
	return w.Get(ctx, log.ID)
}

// Update regenerates only the parts named in updates. The recipe is rewritten
// from its current JSON plus the instruction; the image from its prompt plus
// the instruction.
func (w *ManualRecipeWorkflow) Update(ctx context.Context, logID string, updates model.ManualRecipeUpdates) (*model.ManualRecipeLog, error) {
	if updates.IsEmpty() {
		return nil, fmt.Errorf("%w: no updates given", ErrInvalidInput)
	}
	log, err := w.revisable(ctx, logID)
	if err != nil {
		return nil, err
	}

	var recipe model.Result[*model.GeneratedRecipe]
	var image model.Result[*model.GeneratedImage]
	var wg sync.WaitGroup
	if updates.HasRecipeUpdates() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			recipe = w.writer.Update(ctx, log.Recipe, *updates.RecipeUpdates)
		}()
	}
	if updates.HasImageUpdates() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			image = w.images.Update(ctx, log.MealImage, *updates.ImageUpdates)
		}()
	}
	wg.Wait()

	if err := errors.Join(recipe.Err, image.Err); err != nil {
		if aErr := w.logs.AppendStep(ctx, logID, model.NewProcessingStep(StepUpdateGeneration, err)); aErr != nil {
			slog.ErrorContext(ctx, "failed to record update failure", "log_id", logID, "error", aErr)
		}
		return nil, fmt.Errorf("update generation failed: %w", err)
	}

	var fields []cloud.Update
	if updates.HasRecipeUpdates() {
		fields = append(fields, cloud.Update{Path: "recipe", Value: recipe.Value})
	}
	if updates.HasImageUpdates() {
		fields = append(fields, cloud.Update{Path: "mealImage", Value: image.Value})
	}
	if err := w.logs.Revise(ctx, logID, model.NewProcessingStep(StepUpdateGeneration, nil), fields...); err != nil {
		return nil, w.stateError(logID, err)
	}
	return w.Get(ctx, logID)
}

// Confirm claims the log and runs the confirmation chain. Only one claim
// holds at a time, so concurrent confirmations publish one video. On failure
// the claim is released, the log keeps its status so the caller can retry,
// and a failed final_generation step is recorded.
func (w *ManualRecipeWorkflow) Confirm(ctx context.Context, logID string) (*model.ManualRecipeLog, error) {
	if _, err := w.revisable(ctx, logID); err != nil {
		return nil, err
	}
	token, err := w.logs.ClaimConfirmation(ctx, logID)
	if err != nil {
		return nil, w.stateError(logID, err)
	}
	log, err := w.Get(ctx, logID)
	if err != nil {
		return nil, err
	}
	log.ConfirmationClaim = token

	chCtx := cor.NewBaseContext()
	chCtx.SetContext(ctx)
	chCtx.Add(commands.GetManualLogParameterName(), log)
	defer chCtx.Close()

	w.Execute(chCtx)
	if chCtx.HasErrors() {
		err := JoinErrors(chCtx.GetErrors())
		slog.ErrorContext(ctx, "manual recipe confirmation failed", "log_id", logID, "error", err)
		if rErr := w.logs.ReleaseConfirmation(ctx, logID, token, model.NewProcessingStep(commands.StepFinal, err)); rErr != nil {
			slog.ErrorContext(ctx, "failed to release confirmation", "log_id", logID, "error", rErr)
		}
		return nil, err
	}
	return w.Get(ctx, logID)
}

func (w *ManualRecipeWorkflow) Get(ctx context.Context, logID string) (*model.ManualRecipeLog, error) {
	log, err := w.logs.Get(ctx, logID)
	if errors.Is(err, cloud.ErrDocumentNotFound) {
		return nil, fmt.Errorf("%w: manual recipe log %s", ErrLogNotFound, logID)
	}
	return log, err
}

func (w *ManualRecipeWorkflow) revisable(ctx context.Context, logID string) (*model.ManualRecipeLog, error) {
	log, err := w.Get(ctx, logID)
	if err != nil {
		return nil, err
	}
	if log.Status != model.StatusInitialGenerated && log.Status != model.StatusUpdated {
		return nil, fmt.Errorf("%w: manual recipe %s is %s", ErrInvalidState, logID, log.Status)
	}
	if log.ConfirmationClaim != "" && time.Since(log.ConfirmationClaimedAt) < services.ConfirmationLease {
		return nil, fmt.Errorf("%w: manual recipe %s is being confirmed", ErrInvalidState, logID)
	}
	return log, nil
}

// stateError maps a refused guarded write onto ErrInvalidState.
func (w *ManualRecipeWorkflow) stateError(logID string, err error) error {
	switch {
	case errors.Is(err, cloud.ErrDocumentNotFound):
		return fmt.Errorf("%w: manual recipe log %s", ErrLogNotFound, logID)
	case errors.Is(err, services.ErrNotRevisable), errors.Is(err, services.ErrConfirmationPending):
		return fmt.Errorf("%w: manual recipe %s: %w", ErrInvalidState, logID, err)
	}
	return err
}

func (w *ManualRecipeWorkflow) fail(ctx context.Context, logID string, step string, err error) {
	slog.ErrorContext(ctx, "manual recipe step failed", "log_id", logID, "step", step, "error", err)
	if _, aErr := w.logs.AdvanceStatus(ctx, logID, model.StatusError, model.NewProcessingStep(step, err)); aErr != nil {
		slog.ErrorContext(ctx, "failed to record manual recipe failure", "log_id", logID, "error", aErr)
	}
}
