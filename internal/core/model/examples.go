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

package model

import "encoding/json"

// Few-shot references for the JSON the models are asked to return.

// GetExampleStructuredRecipe returns a complete structured recipe.
func GetExampleStructuredRecipe() *StructuredRecipe {
	return &StructuredRecipe{
		Recipe: RecipeHeader{
			Title:           "Garlic Butter Shrimp",
			Summary:         "Shrimp seared in butter with garlic and finished with lemon and parsley.",
			AdditionalNotes: "Do not overcrowd the pan or the shrimp will steam instead of sear.",
		},
		RecipeItems: []RecipeStep{
			{StepOrder: 1, Instruction: "Pat the shrimp dry and season with salt and pepper.", AdditionalDetails: "Dry shrimp brown better."},
			{StepOrder: 2, Instruction: "Melt the butter in a skillet over medium-high heat.", AdditionalDetails: ""},
			{StepOrder: 3, Instruction: "Add the garlic and cook for 30 seconds.", AdditionalDetails: "Stir constantly so it does not burn."},
			{StepOrder: 4, Instruction: "Sear the shrimp for 2 minutes per side.", AdditionalDetails: "They are done when pink and opaque."},
			{StepOrder: 5, Instruction: "Finish with lemon juice and chopped parsley.", AdditionalDetails: ""},
		},
	}
}

// GetExampleNutrition returns itemised nutrition for four servings with
// totals matching the ingredient sums.
func GetExampleNutrition() *NutritionInfo {
	out := &NutritionInfo{
		Ingredients: []Ingredient{
			{Name: "Shrimp", Amount: 450, AmountDescription: "grams", Calories: 400, Fat: 4.5, Carbs: 0, Protein: 90, Fiber: 0},
			{Name: "Butter", Amount: 3, AmountDescription: "tablespoons", Calories: 306, Fat: 34.5, Carbs: 0, Protein: 0.3, Fiber: 0},
			{Name: "Garlic", Amount: 4, AmountDescription: "cloves", Calories: 18, Fat: 0.1, Carbs: 4, Protein: 0.8, Fiber: 0.3},
			{Name: "Lemon juice", Amount: 2, AmountDescription: "tablespoons", Calories: 7, Fat: 0, Carbs: 2.1, Protein: 0.1, Fiber: 0.1},
		},
	}
	out.Recompute()
	return out
}

// GetExampleGeneratedRecipe returns a recipe written from a prompt.
func GetExampleGeneratedRecipe() *GeneratedRecipe {
	return &GeneratedRecipe{
		Title:       "Vegetable Stir Fry",
		Description: "Crisp vegetables tossed in a glossy soy and ginger sauce.",
		Servings:    "4",
		PrepTime:    "15",
		CookTime:    "10",
		Ingredients: []RecipeIngredient{
			{Name: "broccoli florets", Amount: 2, AmountDescription: "cups"},
			{Name: "red bell pepper", Amount: 1, AmountDescription: "whole"},
			{Name: "soy sauce", Amount: 3, AmountDescription: "tablespoons"},
		},
		Instructions: []Instruction{
			{Step: 1, Text: "Heat oil in a wok over high heat."},
			{Step: 2, Text: "Stir fry the vegetables for 4 minutes."},
			{Step: 3, Text: "Add the sauce and toss until glossy."},
		},
		Tips: []string{"Cut the vegetables to the same size so they cook evenly."},
	}
}

// ExampleJSON renders an example as indented JSON for a prompt.
func ExampleJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}
