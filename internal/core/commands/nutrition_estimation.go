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

package commands

import (
	"fmt"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/cloud"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/cor"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/services"
)

// NutritionEstimation estimates the nutrition of the run's recipe, stores a
// Nutrition Record under the video and completes the log. When estimation
// fails, or no video exists to own the record, the log stays analyzed.
type NutritionEstimation struct {
	cor.BaseCommand
	logs      *services.RecipeLogRepository
	videos    *services.VideoRepository
	nutrition *services.NutritionRepository
	estimator *services.NutritionEstimator
}

func NewNutritionEstimation(
	name string,
	logs *services.RecipeLogRepository,
	videos *services.VideoRepository,
	nutrition *services.NutritionRepository,
	estimator *services.NutritionEstimator) *NutritionEstimation {
	return &NutritionEstimation{
		BaseCommand: jobCommand(name),
		logs:        logs,
		videos:      videos,
		nutrition:   nutrition,
		estimator:   estimator,
	}
}

func (n *NutritionEstimation) IsExecutable(context cor.Context) bool {
	return n.BaseCommand.IsExecutable(context) && len(recipeText(context)) > 0
}

func (n *NutritionEstimation) Execute(context cor.Context) {
	ctx := context.GetContext()
	j := job(context)

	estimate, err := n.estimator.Estimate(ctx, recipeText(context)).Get()
	if err != nil {
		n.softFailure(context, j, err)
		return
	}
	context.Add(GetNutritionParameterName(), estimate)

	videoID, err := resolveVideoID(ctx, context, n.videos, j)
	if err != nil {
		n.softFailure(context, j, err)
		return
	}
	if err := n.nutrition.Save(ctx, model.NewNutritionRecord(videoID, estimate)); err != nil {
		n.Fail(context, fmt.Errorf("failed to persist nutrition for video %s: %w", videoID, err))
		return
	}

	_, err = n.logs.AdvanceStatus(ctx, j.LogID, model.StatusCompleted, model.NewProcessingStep(StepNutrition, nil),
		cloud.Update{Path: "nutrition", Value: &estimate.NutritionInfo})
	if err != nil {
		n.Fail(context, err)
		return
	}
	n.Succeed(context)
}

func (n *NutritionEstimation) softFailure(context cor.Context, j *model.IngestionJob, cause error) {
	ctx := context.GetContext()
	if err := n.logs.AppendStep(ctx, j.LogID, softStep(ctx, StepNutrition, j, cause)); err != nil {
		n.Fail(context, err)
		return
	}
	n.Succeed(context)
}
