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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/cloud"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/media"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
)

// ManualRecipeWriter writes a recipe from a free-text prompt and revises it.
type ManualRecipeWriter struct {
	generator cloud.ContentGenerator
	prompts   *Prompts
	validate  *validator.Validate
	timeouts  cloud.Timeouts
}

func NewManualRecipeWriter(generator cloud.ContentGenerator, prompts *Prompts, timeouts cloud.Timeouts) *ManualRecipeWriter {
	return &ManualRecipeWriter{generator: generator, prompts: prompts, validate: Validator(), timeouts: timeouts}
}

func (w *ManualRecipeWriter) Generate(ctx context.Context, prompt string) model.Result[*model.GeneratedRecipe] {
	if len(strings.TrimSpace(prompt)) == 0 {
		return model.Fail[*model.GeneratedRecipe](errors.New("prompt is empty"))
	}
	text, err := Render(w.prompts.ManualRecipe, map[string]string{
		VocabPrompt:      prompt,
		VocabExampleJSON: exampleGeneratedRecipe,
	})
	if err != nil {
		return model.Fail[*model.GeneratedRecipe](err)
	}
	return w.write(ctx, text)
}

// Update regenerates current with the requested changes applied.
func (w *ManualRecipeWriter) Update(ctx context.Context, current *model.GeneratedRecipe, updates string) model.Result[*model.GeneratedRecipe] {
	if current == nil {
		return model.Fail[*model.GeneratedRecipe](errors.New("no recipe to update"))
	}
	currentJSON, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return model.Fail[*model.GeneratedRecipe](err)
	}
	text, err := Render(w.prompts.ManualUpdate, map[string]string{
		VocabUpdates:       updates,
		VocabCurrentRecipe: string(currentJSON),
	})
	if err != nil {
		return model.Fail[*model.GeneratedRecipe](err)
	}
	return w.write(ctx, text)
}

func (w *ManualRecipeWriter) write(ctx context.Context, prompt string) model.Result[*model.GeneratedRecipe] {
	callCtx, cancel := context.WithTimeout(ctx, w.timeouts.Generation())
	defer cancel()
	out, err := w.generator.GenerateText(callCtx, prompt)
	if err != nil {
		return model.Fail[*model.GeneratedRecipe](fmt.Errorf("recipe generation failed: %w", err))
	}
	recipe := &model.GeneratedRecipe{}
	if err := model.DecodeModelJSON(out, recipe); err != nil {
		return model.Fail[*model.GeneratedRecipe](err)
	}
	for i := range recipe.Instructions {
		if recipe.Instructions[i].Step <= 0 {
			recipe.Instructions[i].Step = i + 1
		}
	}
	if err := w.validate.Struct(recipe); err != nil {
		return model.Fail[*model.GeneratedRecipe](fmt.Errorf("generated recipe is invalid: %w", err))
	}
	return model.Ok(recipe)
}

// MealImageGenerator generates recipe images and stores them in blob
// storage.
type MealImageGenerator struct {
	images   cloud.ImageGenerator
	blobs    cloud.BlobStore
	prompts  *Prompts
	timeouts cloud.Timeouts
}

func NewMealImageGenerator(images cloud.ImageGenerator, blobs cloud.BlobStore, prompts *Prompts, timeouts cloud.Timeouts) *MealImageGenerator {
	return &MealImageGenerator{images: images, blobs: blobs, prompts: prompts, timeouts: timeouts}
}

// Hero generates the finished-dish image for the user's prompt.
func (g *MealImageGenerator) Hero(ctx context.Context, prompt string) model.Result[*model.GeneratedImage] {
	enhanced, err := Render(g.prompts.MealImage, map[string]string{VocabPrompt: prompt})
	if err != nil {
		return model.Fail[*model.GeneratedImage](err)
	}
	return g.meal(ctx, prompt, enhanced)
}

// Update regenerates the hero image, appending updates to the prompt that
// produced current.
func (g *MealImageGenerator) Update(ctx context.Context, current *model.GeneratedImage, updates string) model.Result[*model.GeneratedImage] {
	if current == nil {
		return model.Fail[*model.GeneratedImage](errors.New("no meal image to update"))
	}
	return g.meal(ctx, current.Prompt, current.Prompt+" "+updates)
}

func (g *MealImageGenerator) meal(ctx context.Context, title string, prompt string) model.Result[*model.GeneratedImage] {
	stored, err := g.generate(ctx, "images/meals", title, prompt)
	if err != nil {
		return model.Fail[*model.GeneratedImage](err)
	}
	return model.Ok(&model.GeneratedImage{URL: stored.URL, Prompt: prompt, ObjectName: stored.Name})
}

// Ingredient generates the image of one ingredient at its position in the
// slideshow.
func (g *MealImageGenerator) Ingredient(ctx context.Context, ingredient model.RecipeIngredient, order int) model.Result[*model.IngredientImage] {
	prompt, err := Render(g.prompts.IngredientImage, map[string]string{
		VocabAmount:            fmt.Sprintf("%g", ingredient.Amount),
		VocabAmountDescription: ingredient.AmountDescription,
		VocabName:              ingredient.Name,
	})
	if err != nil {
		return model.Fail[*model.IngredientImage](err)
	}
	stored, err := g.generate(ctx, "images/ingredients", ingredient.Name, prompt)
	if err != nil {
		return model.Fail[*model.IngredientImage](fmt.Errorf("image for %q: %w", ingredient.Name, err))
	}
	return model.Ok(&model.IngredientImage{
		IngredientName: ingredient.Name,
		URL:            stored.URL,
		Prompt:         prompt,
		ObjectName:     stored.Name,
		Order:          order,
	})
}

func (g *MealImageGenerator) generate(ctx context.Context, folder string, title string, prompt string) (*StoredObject, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeouts.Image())
	defer cancel()
	img, err := g.images.GenerateImage(callCtx, prompt)
	if err != nil {
		return nil, err
	}
	contentType := cloud.SniffContentType(img.Data, img.MIMEType)
	name := media.ObjectName(folder, title, cloud.ExtensionFor(contentType))
	url, err := g.blobs.Upload(callCtx, name, bytes.NewReader(img.Data), contentType)
	if err != nil {
		return nil, fmt.Errorf("image upload failed: %w", err)
	}
	return &StoredObject{Name: name, URL: url}, nil
}
