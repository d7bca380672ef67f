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

// This file defines the fan-out step of the manual confirmation chain: one
// image generation call per ingredient of the confirmed recipe, run on the
// shared worker pool. Each image is stored in blob storage as it completes
// and tagged with the ingredient's position, which fixes its place in the
// slideshow regardless of completion order.
package commands

import (
	goctx "context"
	"errors"
	"fmt"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/cor"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/services"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// IngredientImages generates and stores one image per ingredient.
type IngredientImages struct {
	cor.BaseCommand
	images          *services.MealImageGenerator
	numberOfWorkers int
}

func NewIngredientImages(name string, images *services.MealImageGenerator, numberOfWorkers int) *IngredientImages {
	return &IngredientImages{BaseCommand: manualCommand(name), images: images, numberOfWorkers: numberOfWorkers}
}

func (c *IngredientImages) Execute(context cor.Context) {
	log := manualLog(context)
	if log.Recipe == nil || len(log.Recipe.Ingredients) == 0 {
		c.Fail(context, errors.New("manual recipe has no ingredients"))
		return
	}
	ingredients := log.Recipe.Ingredients

	results := services.RunPool(c.numberOfWorkers, len(ingredients), func(i int) model.Result[*model.IngredientImage] {
		return c.generate(context.GetContext(), ingredients[i], i)
	})

	out := make([]model.IngredientImage, 0, len(results))
	var errs []error
	for i, r := range results {
		if !r.Success() {
			errs = append(errs, fmt.Errorf("ingredient %q: %w", ingredients[i].Name, r.Err))
			continue
		}
		out = append(out, *r.Value)
	}
	if len(errs) > 0 {
		c.Fail(context, errors.Join(errs...))
		return
	}
	c.Succeed(context)
	context.Add(GetIngredientImagesParameterName(), out)
}

func (c *IngredientImages) generate(ctx goctx.Context, ingredient model.RecipeIngredient, order int) model.Result[*model.IngredientImage] {
	imageCtx, span := c.Tracer.Start(ctx, fmt.Sprintf("%s_ingredient_%d", c.GetName(), order))
	defer span.End()
	span.SetAttributes(attribute.Int("order", order), attribute.String("ingredient", ingredient.Name))

	out := c.images.Ingredient(imageCtx, ingredient, order)
	if !out.Success() {
		span.SetStatus(codes.Error, "ingredient image failed")
		return out
	}
	span.SetStatus(codes.Ok, "")
	return out
}
