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

// This file defines the command that turns the free-text recipe into a
// structured one. The StructuredRecipeGenerator does the generation call and
// the strict parsing; this command persists the result as a Recipe with one
// document per step, linked to the video resolved from the submitted URL.
//
// A generation or validation failure is recorded on the log and nothing is
// persisted. The structured recipe is kept on the log even when no Video
// entity exists to link it to.
package commands

import (
	"fmt"
	"log/slog"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/cloud"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/cor"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/services"
)

// RecipeStructuring structures and persists the recipe of the run.
type RecipeStructuring struct {
	cor.BaseCommand
	logs      *services.RecipeLogRepository
	videos    *services.VideoRepository
	recipes   *services.RecipeRepository
	generator *services.StructuredRecipeGenerator
}

func NewRecipeStructuring(
	name string,
	logs *services.RecipeLogRepository,
	videos *services.VideoRepository,
	recipes *services.RecipeRepository,
	generator *services.StructuredRecipeGenerator) *RecipeStructuring {
	return &RecipeStructuring{
		BaseCommand: jobCommand(name),
		logs:        logs,
		videos:      videos,
		recipes:     recipes,
		generator:   generator,
	}
}

// IsExecutable requires a successful scene analysis with recipe text.
func (s *RecipeStructuring) IsExecutable(context cor.Context) bool {
	return s.BaseCommand.IsExecutable(context) && len(recipeText(context)) > 0
}

func (s *RecipeStructuring) Execute(context cor.Context) {
	ctx := context.GetContext()
	j := job(context)

	result := s.generator.Structure(ctx, recipeText(context))
	if !result.Success() {
		if err := s.logs.AppendStep(ctx, j.LogID, softStep(ctx, StepStructuring, j, result.Err)); err != nil {
			s.Fail(context, err)
			return
		}
		s.Succeed(context)
		return
	}
	structured := result.Value
	analysis(context).StructuredRecipe = structured
	field := cloud.Update{Path: "analysis.structured_recipe", Value: structured}

	videoID, err := resolveVideoID(ctx, context, s.videos, j)
	if err != nil {
		if aErr := s.logs.AppendStep(ctx, j.LogID, softStep(ctx, StepStructuring, j, err), field); aErr != nil {
			s.Fail(context, aErr)
			return
		}
		s.Succeed(context)
		return
	}

	recipe, steps, err := s.recipes.Create(ctx, videoID, structured)
	if err != nil {
		s.Fail(context, fmt.Errorf("failed to persist recipe for video %s: %w", videoID, err))
		return
	}
	slog.InfoContext(ctx, "persisted recipe", "log_id", j.LogID, "recipe_id", recipe.ID, "video_id", videoID, "steps", len(steps))
	if err := s.logs.AppendStep(ctx, j.LogID, softStep(ctx, StepStructuring, j, nil), field); err != nil {
		s.Fail(context, err)
		return
	}
	s.Succeed(context)
}
