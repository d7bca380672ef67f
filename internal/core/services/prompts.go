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

// Package services holds the leaf components of the recipe pipelines, the
// typed repositories over the document store and the read services used by
// the API.
package services

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/cloud"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
)

// Template vocabulary keys.
const (
	VocabSceneCount         = "SCENE_COUNT"
	VocabSceneAnalyses      = "SCENE_ANALYSES"
	VocabRecipeInfo         = "RECIPE_INFO"
	VocabServingCount       = "SERVING_COUNT"
	VocabServingSizes       = "SERVING_SIZES"
	VocabText               = "TEXT"
	VocabMetadataInfo       = "METADATA_INFO"
	VocabAudioTranscription = "AUDIO_TRANSCRIPTION"
	VocabVideoAnalysis      = "VIDEO_ANALYSIS"
	VocabPrompt             = "PROMPT"
	VocabUpdates            = "UPDATES"
	VocabCurrentRecipe      = "CURRENT_RECIPE"
	VocabName               = "NAME"
	VocabAmount             = "AMOUNT"
	VocabAmountDescription  = "AMOUNT_DESCRIPTION"
	VocabTitle              = "TITLE"
	VocabExampleJSON        = "EXAMPLE_JSON"
)

const defaultScenePrompt = `Below is a scene from a cooking video. Please analyze this scene and extract any details related to the recipe. In your answer, please provide:

- A list of ingredients that are visible or mentioned.
- Any cooking actions or techniques demonstrated (e.g., chopping, mixing, frying).
- Any contextual details that might indicate quantities or timings (if available).

Please be as concise as possible, using bullet points where applicable.`

const defaultAggregatePrompt = `I have extracted information from {{.SCENE_COUNT}} scenes of a cooking video. Below are the summarized details from each scene, including identified ingredients and cooking steps.

{{.SCENE_ANALYSES}}

Based on the above, please create a final consolidated list of ingredients (with any available quantities or notes, if mentioned) and a step-by-step set of instructions that form a complete recipe. Organize your answer clearly under two sections:

**Ingredients:**

**Directions:**

Please ensure that any duplicate ingredients are combined and the cooking steps are in a logical order.`

const defaultServingSizePrompt = `Would you please specify how much of each item should be in a serving size for {{.SERVING_COUNT}} people for this recipe?

Recipe Information:
{{.RECIPE_INFO}}`

const defaultNutritionPrompt = `You are a JSON generator. Your task is to create a valid JSON object containing nutritional information based on the serving sizes provided.

Rules:
1. Return ONLY the JSON object, no other text
2. The JSON must start with '{' and end with '}'
3. Include ALL ingredients from the recipe
4. Use realistic nutritional values
5. Include all required fields for each ingredient
6. No comments, no explanations, just the JSON

Required JSON structure:
{
  "ingredients": [
    {
      "name": "Ingredient Name",
      "amount": number,
      "amountDescription": "description",
      "calories": number,
      "fat": number,
      "carbs": number,
      "protein": number,
      "fiber": number
    }
  ]
}

Serving Sizes:
{{.SERVING_SIZES}}`

const defaultStructurePrompt = `You are a JSON converter. Your task is to convert recipe text into a specific JSON format.

Output a single, valid JSON object with this exact structure:

{
    "recipe": {
        "title": "string (name of the dish)",
        "summary": "string (1-2 sentence description)",
        "additionalNotes": "string (cooking tips or variations)"
    },
    "recipeItems": [
        {
            "stepOrder": number (starting from 1),
            "instruction": "string (main instruction)",
            "additionalDetails": "string (optional details)"
        }
    ]
}

Rules:
1. Output ONLY the JSON object, no other text or explanation
2. All string values MUST be in double quotes
3. stepOrder MUST be a plain number (no quotes)
4. The JSON must be properly formatted and valid
5. Do not include any markdown formatting

Recipe text to convert:
---
{{.TEXT}}
---`

const defaultVerificationPrompt = `I have extracted information from a cooking video using multiple methods. Please analyze all the data and provide the most accurate recipe possible.

Metadata and Subtitles:
{{.METADATA_INFO}}

Audio Transcription:
{{.AUDIO_TRANSCRIPTION}}

Video Analysis Results:
{{.VIDEO_ANALYSIS}}

Based on all this information, please:
1. Verify if the video analysis results are accurate and complete
2. Provide the most complete and accurate recipe using all available information
3. Include any additional context or notes that might be helpful (timing, temperature, etc.)

Please format your response as follows:

**Ingredients:**
[List all ingredients with quantities when available]

**Directions:**
[Step-by-step instructions]

**Notes:**
[Any additional tips, timing information, or important context]`

const defaultManualRecipePrompt = `Generate a detailed recipe for {{.PROMPT}}. Return the response as a JSON object with the following structure:

{ "title": "Recipe title", "description": "Brief description of the dish", "servings": "Number of servings", "prepTime": "Preparation time in minutes", "cookTime": "Cooking time in minutes", "ingredients": [{"name": "Ingredient name", "amount": number, "amountDescription": "unit of measurement"}], "instructions": [{"step": number, "text": "Step instruction"}], "tips": ["Cooking tips and suggestions"] }

Make sure the recipe is practical, delicious, and includes all necessary ingredients and clear instructions.`

const defaultManualUpdatePrompt = `Update the following recipe based on these changes: {{.UPDATES}}

Current Recipe:
{{.CURRENT_RECIPE}}

Return the updated recipe in the same JSON format as the original.`

const defaultMealImagePrompt = `Create a professional food photography style image of {{.PROMPT}}. The image should be well-lit, appetizing, and showcase the complete dish.`

const defaultIngredientImagePrompt = `Create a clear, well-lit image of {{.AMOUNT}} {{.AMOUNT_DESCRIPTION}} of {{.NAME}} on a white background, food photography style`

const defaultTranscriptionPrompt = `This is a cooking video{{if .TITLE}} titled "{{.TITLE}}"{{end}}. Expect ingredient names, quantities, units and cooking techniques.`

// Prompts is the compiled set of prompt templates.
type Prompts struct {
	Scene           *template.Template
	Aggregate       *template.Template
	ServingSize     *template.Template
	Nutrition       *template.Template
	Structure       *template.Template
	Verification    *template.Template
	ManualRecipe    *template.Template
	ManualUpdate    *template.Template
	MealImage       *template.Template
	IngredientImage *template.Template
	Transcription   *template.Template
}

// NewPrompts compiles each template, using the configured override when it
// is non-empty and the built-in prompt otherwise.
func NewPrompts(overrides cloud.PromptTemplates) (*Prompts, error) {
	p := &Prompts{}
	entries := []struct {
		name     string
		override string
		fallback string
		target   **template.Template
	}{
		{"scene", overrides.ScenePrompt, defaultScenePrompt, &p.Scene},
		{"aggregate", overrides.AggregatePrompt, defaultAggregatePrompt, &p.Aggregate},
		{"serving_size", overrides.ServingSizePrompt, defaultServingSizePrompt, &p.ServingSize},
		{"nutrition", overrides.NutritionPrompt, defaultNutritionPrompt, &p.Nutrition},
		{"structure", overrides.StructurePrompt, defaultStructurePrompt, &p.Structure},
		{"verification", overrides.VerificationPrompt, defaultVerificationPrompt, &p.Verification},
		{"manual_recipe", overrides.ManualRecipePrompt, defaultManualRecipePrompt, &p.ManualRecipe},
		{"manual_update", overrides.ManualUpdatePrompt, defaultManualUpdatePrompt, &p.ManualUpdate},
		{"meal_image", overrides.MealImagePrompt, defaultMealImagePrompt, &p.MealImage},
		{"ingredient_image", overrides.IngredientImagePrompt, defaultIngredientImagePrompt, &p.IngredientImage},
		{"transcription", overrides.TranscriptionPrompt, defaultTranscriptionPrompt, &p.Transcription},
	}
	for _, e := range entries {
		text := e.fallback
		if len(e.override) > 0 {
			text = e.override
		}
		t, err := template.New(e.name).Option("missingkey=zero").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s prompt: %w", e.name, err)
		}
		*e.target = t
	}
	return p, nil
}

// DefaultPrompts compiles the built-in prompts.
func DefaultPrompts() *Prompts {
	p, err := NewPrompts(cloud.PromptTemplates{})
	if err != nil {
		panic(err)
	}
	return p
}

// Templates that want a few-shot reference can embed {{.EXAMPLE_JSON}}; the
// response parsers fill it with the matching example.
var (
	exampleStructuredRecipe = model.ExampleJSON(model.GetExampleStructuredRecipe())
	exampleNutrition        = model.ExampleJSON(model.GetExampleNutrition())
	exampleGeneratedRecipe  = model.ExampleJSON(model.GetExampleGeneratedRecipe())
)

// Render executes t with the vocabulary.
func Render(t *template.Template, vocabulary map[string]string) (string, error) {
	var doc bytes.Buffer
	if err := t.Execute(&doc, vocabulary); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", t.Name(), err)
	}
	return doc.String(), nil
}
