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

package test

// Canned model responses shaped like the pipeline prompts ask for.

// GetTestStructuredRecipeText is a converter response wrapped in a code
// fence, with steps out of order and one float step order.
func GetTestStructuredRecipeText() string {
	return "```json\n" + `{
  "recipe": {
    "title": "Garlic Butter Shrimp",
    "summary": "Shrimp seared in garlic butter with lemon.",
    "additionalNotes": "Use a hot pan."
  },
  "recipeItems": [
    {"stepOrder": 3, "instruction": "Finish with lemon and parsley.", "additionalDetails": ""},
    {"stepOrder": 1.0, "instruction": "Melt the butter.", "additionalDetails": "Medium heat."},
    {"stepOrder": 2, "instruction": "Add garlic and shrimp.", "additionalDetails": "Cook 2 minutes per side."}
  ]
}` + "\n```"
}

// GetTestNutritionText is a nutrition response whose top-level calories
// disagree with its ingredients.
func GetTestNutritionText() string {
	return `"{
  "calories": 9999,
  "ingredients": [
    {"name": "shrimp", "amount": 450, "amountDescription": "g", "calories": 400, "fat": 5, "carbs": 0, "protein": 90, "fiber": 0},
    {"name": "butter", "amount": 4, "amountDescription": "tbsp", "calories": 400, "fat": 46, "carbs": 0, "protein": 0.5, "fiber": 0},
    {"name": "garlic", "amount": 4, "amountDescription": "cloves", "calories": 18, "fat": 0, "carbs": 4, "protein": 0.8, "fiber": 0.3}
  ]
}"`
}

// GetTestManualRecipeText is a manual recipe response with numeric servings.
func GetTestManualRecipeText(title string) string {
	return `{"title": "` + title + `", "description": "Crisp vegetables in a glossy sauce.", "servings": 4, "prepTime": "15", "cookTime": "10",
  "ingredients": [
    {"name": "broccoli", "amount": 2, "amountDescription": "cups"},
    {"name": "bell pepper", "amount": 1, "amountDescription": "whole"},
    {"name": "soy sauce", "amount": 3, "amountDescription": "tbsp"}
  ],
  "instructions": [{"step": 1, "text": "Heat the wok."}, {"step": 2, "text": "Stir fry the vegetables."}],
  "tips": ["Cut vegetables evenly."]}`
}

// GetTestVTT is a small caption track.
func GetTestVTT() string {
	return "WEBVTT\n\n00:00:00.000 --> 00:00:02.000\nMelt the <b>butter</b>\n\n00:00:02.000 --> 00:00:04.000\nadd the garlic\n"
}
