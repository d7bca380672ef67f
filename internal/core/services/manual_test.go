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

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/cloud"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/services"
	test "github.com/jaycherian/gcp-go-recipe-extraction/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var slideshowSettings = cloud.Slideshow{Width: 1080, Height: 1920, SecondsPerImage: 3, TransitionSeconds: 1}

func TestManualRecipeWriter(t *testing.T) {
	ctx := context.Background()
	generator := test.NewScriptedGenerator().
		On("Update the following recipe based on these changes: make it vegan", test.GetTestManualRecipeText("Vegan Stir Fry")).
		On("Generate a detailed recipe for vegetable stir fry", "```json\n"+test.GetTestManualRecipeText("Vegetable Stir Fry")+"\n```")
	writer := services.NewManualRecipeWriter(generator, services.DefaultPrompts(), cloud.Timeouts{})

	res := writer.Generate(ctx, "vegetable stir fry")
	require.True(t, res.Success(), res.Error())
	recipe := res.Value
	assert.Equal(t, "Vegetable Stir Fry", recipe.Title)
	assert.Equal(t, model.LooseString("4"), recipe.Servings)
	assert.Len(t, recipe.Ingredients, 3)

	updated := writer.Update(ctx, recipe, "make it vegan")
	require.True(t, updated.Success(), updated.Error())
	assert.Equal(t, "Vegan Stir Fry", updated.Value.Title)
	prompts := generator.PromptsContaining("Current Recipe:")
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], `"title": "Vegetable Stir Fry"`)

	assert.False(t, writer.Generate(ctx, " ").Success())

	empty := services.NewManualRecipeWriter(test.NewScriptedGenerator().On("Generate", `{"title": "Air", "ingredients": []}`), services.DefaultPrompts(), cloud.Timeouts{})
	assert.False(t, empty.Generate(ctx, "air").Success())
}

func TestMealImageGenerator(t *testing.T) {
	ctx := context.Background()
	blobs := cloud.NewMemoryBlobStore("https://media.example")
	images := &test.FakeImageGenerator{}
	generator := services.NewMealImageGenerator(images, blobs, services.DefaultPrompts(), cloud.Timeouts{})

	hero := generator.Hero(ctx, "vegetable stir fry")
	require.True(t, hero.Success(), hero.Error())
	assert.True(t, strings.HasPrefix(hero.Value.ObjectName, "images/meals/vegetable_stir_fry_"))
	assert.True(t, strings.HasSuffix(hero.Value.ObjectName, ".png"))
	assert.Equal(t, "https://media.example/"+hero.Value.ObjectName, hero.Value.URL)
	assert.Equal(t, "Create a professional food photography style image of vegetable stir fry. The image should be well-lit, appetizing, and showcase the complete dish.", hero.Value.Prompt)

	updated := generator.Update(ctx, hero.Value, "add sesame seeds")
	require.True(t, updated.Success())
	assert.Equal(t, hero.Value.Prompt+" add sesame seeds", updated.Value.Prompt)
	assert.NotEqual(t, hero.Value.ObjectName, updated.Value.ObjectName)

	ingredient := generator.Ingredient(ctx, model.RecipeIngredient{Name: "broccoli", Amount: 2, AmountDescription: "cups"}, 0)
	require.True(t, ingredient.Success())
	assert.Equal(t, "Create a clear, well-lit image of 2 cups of broccoli on a white background, food photography style", ingredient.Value.Prompt)
	assert.Equal(t, "broccoli", ingredient.Value.IngredientName)
	_, contentType, ok := blobs.Object(ingredient.Value.ObjectName)
	require.True(t, ok)
	assert.Equal(t, "image/png", contentType)

	failing := services.NewMealImageGenerator(&test.FakeImageGenerator{FailOn: "broccoli"}, blobs, services.DefaultPrompts(), cloud.Timeouts{})
	assert.False(t, failing.Ingredient(ctx, model.RecipeIngredient{Name: "broccoli"}, 1).Success())
}

func TestSlideshowAssembler(t *testing.T) {
	ctx := context.Background()
	blobs := cloud.NewMemoryBlobStore("")
	images := services.NewMealImageGenerator(&test.FakeImageGenerator{}, blobs, services.DefaultPrompts(), cloud.Timeouts{})
	hero := images.Hero(ctx, "stir fry").Value
	ingredients := []model.IngredientImage{
		*images.Ingredient(ctx, model.RecipeIngredient{Name: "soy sauce"}, 2).Value,
		*images.Ingredient(ctx, model.RecipeIngredient{Name: "broccoli"}, 0).Value,
		*images.Ingredient(ctx, model.RecipeIngredient{Name: "pepper"}, 1).Value,
	}

	sequence := services.Sequence(hero, ingredients)
	require.Len(t, sequence, 5)
	assert.Equal(t, hero.ObjectName, sequence[0])
	assert.Equal(t, hero.ObjectName, sequence[4])
	assert.Contains(t, sequence[1], "broccoli")
	assert.Contains(t, sequence[2], "pepper")
	assert.Contains(t, sequence[3], "soy_sauce")

	renderer := &test.FakeSlideshowRenderer{}
	assembler := services.NewSlideshowAssembler(blobs, renderer, slideshowSettings, cloud.Timeouts{})
	show := assembler.Render(ctx, hero, ingredients)
	require.True(t, show.Success(), show.Error())
	assert.Equal(t, 5, show.Value.ImageCount)
	assert.Equal(t, 15.0, show.Value.Duration)
	assert.Len(t, renderer.Images(), 5)
	assertRemoved(t, renderer.Dirs())

	stored := assembler.Upload(ctx, "Vegetable Stir Fry", show.Value)
	require.True(t, stored.Success())
	assert.True(t, strings.HasPrefix(stored.Value.Name, "videos/recipes/vegetable_stir_fry_"))

	failingRenderer := &test.FakeSlideshowRenderer{Err: test.ErrInjected}
	failed := services.NewSlideshowAssembler(blobs, failingRenderer, slideshowSettings, cloud.Timeouts{}).Render(ctx, hero, ingredients)
	assert.False(t, failed.Success())
	assertRemoved(t, failingRenderer.Dirs())

	assert.False(t, assembler.Render(ctx, &model.GeneratedImage{URL: "https://elsewhere/x.png"}, nil).Success())

	missing := *hero
	missing.ObjectName = "images/meals/gone.png"
	gone := assembler.Render(ctx, &missing, ingredients)
	assert.False(t, gone.Success())
	assert.Contains(t, gone.Error(), "failed to fetch images/meals/gone.png")
	assertRemoved(t, renderer.Dirs())
}
