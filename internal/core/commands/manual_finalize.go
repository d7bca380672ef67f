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

// This file defines the last command of the manual confirmation chain. It
// writes everything the confirmation produced onto the manual recipe log in
// one partial update and completes it.
package commands

import (
	"errors"
	"fmt"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/cloud"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/cor"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/services"
)

// ErrAlreadyFinalized is returned when the log left the revisable states, or
// the confirmation lost its claim, while the chain was running.
var ErrAlreadyFinalized = errors.New("manual recipe is no longer revisable")

// ManualFinalize completes a confirmed manual recipe log.
type ManualFinalize struct {
	cor.BaseCommand
	logs *services.ManualRecipeLogRepository
}

func NewManualFinalize(name string, logs *services.ManualRecipeLogRepository) *ManualFinalize {
	out := &ManualFinalize{BaseCommand: *cor.NewBaseCommand(name), logs: logs}
	out.InputParamName = GetVideoParameterName()
	return out
}

// IsExecutable requires every product of the confirmation in the context.
func (v *ManualFinalize) IsExecutable(context cor.Context) bool {
	return v.BaseCommand.IsExecutable(context) &&
		manualLog(context) != nil &&
		context.Get(GetNutritionParameterName()) != nil &&
		context.Get(GetIngredientImagesParameterName()) != nil &&
		context.Get(GetVideoIDParameterName()) != nil
}

func (v *ManualFinalize) Execute(context cor.Context) {
	log := manualLog(context)
	video := context.Get(v.GetInputParam()).(*model.Video)
	videoID := context.Get(GetVideoIDParameterName()).(string)
	nutrition := context.Get(GetNutritionParameterName()).(*model.NutritionEstimate)
	images := context.Get(GetIngredientImagesParameterName()).([]model.IngredientImage)

	err := v.logs.CompleteConfirmation(context.GetContext(), log.ID, log.ConfirmationClaim, model.NewProcessingStep(StepFinal, nil),
		cloud.Update{Path: "nutrition", Value: nutrition},
		cloud.Update{Path: "ingredientImages", Value: images},
		cloud.Update{Path: "videoId", Value: videoID},
		cloud.Update{Path: "videoUrl", Value: video.VideoURL})
	if errors.Is(err, services.ErrNotRevisable) || errors.Is(err, services.ErrConfirmationLost) {
		v.Fail(context, fmt.Errorf("%w: %s: %w", ErrAlreadyFinalized, log.ID, err))
		return
	}
	if err != nil {
		v.Fail(context, err)
		return
	}
	v.Succeed(context)
	context.Add(v.GetOutputParam(), videoID)
}
