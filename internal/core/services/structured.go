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
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/cloud"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
)

var (
	ErrMissingRecipe      = errors.New("Missing 'recipe' key")
	ErrRecipeKeys         = errors.New("Recipe missing required keys")
	ErrMissingRecipeItems = errors.New("Missing 'recipeItems' key")
	ErrRecipeItemKeys     = errors.New("missing required keys")
	ErrStepOrderType      = errors.New("Invalid stepOrder type")
	ErrInvalidRecipe      = errors.New("invalid recipe")
)

// StructuredRecipeGenerator converts recipe text into a titled recipe with
// ordered steps.
type StructuredRecipeGenerator struct {
	generator cloud.ContentGenerator
	prompts   *Prompts
	timeouts  cloud.Timeouts
}

func NewStructuredRecipeGenerator(generator cloud.ContentGenerator, prompts *Prompts, timeouts cloud.Timeouts) *StructuredRecipeGenerator {
	return &StructuredRecipeGenerator{generator: generator, prompts: prompts, timeouts: timeouts}
}

func (g *StructuredRecipeGenerator) Structure(ctx context.Context, recipeText string) model.Result[*model.StructuredRecipe] {
	if len(strings.TrimSpace(recipeText)) == 0 {
		return model.Fail[*model.StructuredRecipe](errors.New("recipe text is empty"))
	}
	prompt, err := Render(g.prompts.Structure, map[string]string{
		VocabText:        recipeText,
		VocabExampleJSON: exampleStructuredRecipe,
	})
	if err != nil {
		return model.Fail[*model.StructuredRecipe](err)
	}
	callCtx, cancel := context.WithTimeout(ctx, g.timeouts.Generation())
	defer cancel()
	out, err := g.generator.GenerateText(callCtx, prompt)
	if err != nil {
		return model.Fail[*model.StructuredRecipe](fmt.Errorf("recipe structuring failed: %w", err))
	}
	recipe, err := ParseStructuredRecipe(out)
	if err != nil {
		return model.Fail[*model.StructuredRecipe](err)
	}
	return model.Ok(recipe)
}

// ParseStructuredRecipe validates the converter output and returns the
// recipe with steps sorted and renumbered from 1.
func ParseStructuredRecipe(text string) (*model.StructuredRecipe, error) {
	raw := map[string]any{}
	if err := model.DecodeModelJSON(text, &raw); err != nil {
		return nil, err
	}

	header, ok := raw["recipe"].(map[string]any)
	if !ok {
		return nil, ErrMissingRecipe
	}
	for _, key := range []string{"title", "summary", "additionalNotes"} {
		if _, ok := header[key]; !ok {
			return nil, ErrRecipeKeys
		}
	}

	items, ok := raw["recipeItems"].([]any)
	if !ok {
		return nil, ErrMissingRecipeItems
	}
	steps := make([]model.RecipeStep, 0, len(items))
	for idx, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("Recipe item %d %w", idx, ErrRecipeItemKeys)
		}
		order, hasOrder := fields["stepOrder"]
		instruction, hasInstruction := fields["instruction"].(string)
		if !hasOrder || !hasInstruction {
			return nil, fmt.Errorf("Recipe item %d %w", idx, ErrRecipeItemKeys)
		}
		stepOrder, err := toStepOrder(order)
		if err != nil {
			return nil, err
		}
		steps = append(steps, model.RecipeStep{
			StepOrder:         stepOrder,
			Instruction:       strings.TrimSpace(instruction),
			AdditionalDetails: asString(fields["additionalDetails"]),
		})
	}

	sort.SliceStable(steps, func(i, j int) bool { return steps[i].StepOrder < steps[j].StepOrder })
	for i := range steps {
		steps[i].StepOrder = i + 1
	}

	out := &model.StructuredRecipe{
		Recipe: model.RecipeHeader{
			Title:           asString(header["title"]),
			Summary:         asString(header["summary"]),
			AdditionalNotes: asString(header["additionalNotes"]),
		},
		RecipeItems: steps,
	}
	if err := Validator().Struct(out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecipe, err)
	}
	return out, nil
}

// toStepOrder accepts JSON numbers and numeric strings, truncating floats.
func toStepOrder(v any) (int, error) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, ErrStepOrderType
		}
		return int(t), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, ErrStepOrderType
		}
		return int(f), nil
	}
	return 0, ErrStepOrderType
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	}
	return fmt.Sprint(v)
}
