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
	"strconv"
	"strings"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/cloud"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
)

// ErrInvalidNutrition is returned for a nutrition response whose ingredients
// fail validation.
var ErrInvalidNutrition = errors.New("invalid nutrition response")

// NutritionEstimator estimates per-ingredient nutrition for a recipe in two
// calls: serving sizes as free text, then strict JSON over those sizes.
// Totals are always summed from the ingredients.
type NutritionEstimator struct {
	generator   cloud.ContentGenerator
	prompts     *Prompts
	servingSize int
	timeouts    cloud.Timeouts
}

func NewNutritionEstimator(generator cloud.ContentGenerator, prompts *Prompts, servingSize int, timeouts cloud.Timeouts) *NutritionEstimator {
	if servingSize <= 0 {
		servingSize = 4
	}
	return &NutritionEstimator{generator: generator, prompts: prompts, servingSize: servingSize, timeouts: timeouts}
}

type nutritionResponse struct {
	Ingredients *[]model.Ingredient `json:"ingredients"`
}

func (e *NutritionEstimator) Estimate(ctx context.Context, recipeText string) model.Result[*model.NutritionEstimate] {
	if len(strings.TrimSpace(recipeText)) == 0 {
		return model.Fail[*model.NutritionEstimate](errors.New("recipe text is empty"))
	}

	servingPrompt, err := Render(e.prompts.ServingSize, map[string]string{
		VocabServingCount: strconv.Itoa(e.servingSize),
		VocabRecipeInfo:   recipeText,
	})
	if err != nil {
		return model.Fail[*model.NutritionEstimate](err)
	}
	servingSizes, err := e.generate(ctx, servingPrompt)
	if err != nil {
		return model.Fail[*model.NutritionEstimate](fmt.Errorf("serving size generation failed: %w", err))
	}

	nutritionPrompt, err := Render(e.prompts.Nutrition, map[string]string{
		VocabServingSizes: servingSizes,
		VocabExampleJSON:  exampleNutrition,
	})
	if err != nil {
		return model.Fail[*model.NutritionEstimate](err)
	}
	out, err := e.generate(ctx, nutritionPrompt)
	if err != nil {
		return model.Fail[*model.NutritionEstimate](fmt.Errorf("nutrition generation failed: %w", err))
	}

	info, err := ParseNutrition(out)
	if err != nil {
		return model.Fail[*model.NutritionEstimate](err)
	}
	return model.Ok(&model.NutritionEstimate{ServingSizes: e.servingSize, NutritionInfo: *info})
}

func (e *NutritionEstimator) generate(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeouts.Generation())
	defer cancel()
	return e.generator.GenerateText(callCtx, prompt)
}

// ParseNutrition decodes a nutrition response and computes the totals from
// its ingredients. Any top-level totals in the response are ignored.
func ParseNutrition(text string) (*model.NutritionInfo, error) {
	resp := &nutritionResponse{}
	if err := model.DecodeModelJSON(text, resp); err != nil {
		return nil, fmt.Errorf("failed to parse nutrition response: %w", err)
	}
	if resp.Ingredients == nil {
		return nil, errors.New("nutrition response has no 'ingredients' array")
	}
	if len(*resp.Ingredients) == 0 {
		return nil, errors.New("nutrition response lists no ingredients")
	}
	info := &model.NutritionInfo{Ingredients: *resp.Ingredients}
	for i := range info.Ingredients {
		info.Ingredients[i].Name = strings.TrimSpace(info.Ingredients[i].Name)
	}
	if err := Validator().Struct(info); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidNutrition, err)
	}
	info.Recompute()
	return info, nil
}
