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

import (
	"fmt"
	"strings"
)

// These objects are produced and consumed by pipeline stages. Some of them are
// embedded in a log document as stage payloads; none has a collection of its own.

// Platform is the source platform of a video URL.
type Platform string

const (
	PlatformTikTok    Platform = "tiktok"
	PlatformYouTube   Platform = "youtube"
	PlatformInstagram Platform = "instagram"
	PlatformUnknown   Platform = "unknown"
)

// IngestionJob is the message that starts an ingestion run for a log.
type IngestionJob struct {
	LogID    string `json:"logId" validate:"required"`
	UserID   string `json:"userId" validate:"required"`
	VideoURL string `json:"videoUrl" validate:"required,url"`
}

// VideoMetadata has the same shape for every platform.
type VideoMetadata struct {
	Title        string   `json:"title" firestore:"title"`
	Description  string   `json:"description" firestore:"description"`
	Duration     float64  `json:"duration" firestore:"duration"`
	Uploader     string   `json:"uploader" firestore:"uploader"`
	ViewCount    int64    `json:"view_count" firestore:"view_count"`
	LikeCount    int64    `json:"like_count" firestore:"like_count"`
	CommentCount int64    `json:"comment_count" firestore:"comment_count"`
	SubtitleText string   `json:"subtitle_text" firestore:"subtitle_text"`
	Thumbnail    string   `json:"thumbnail" firestore:"thumbnail"`
	WebpageURL   string   `json:"webpage_url" firestore:"webpage_url"`
	Platform     Platform `json:"platform" firestore:"platform"`
}

// TranscriptSegment is a timed span of a transcript, in seconds.
type TranscriptSegment struct {
	Start float64 `json:"start" firestore:"start"`
	End   float64 `json:"end" firestore:"end"`
	Text  string  `json:"text" firestore:"text"`
}

type Transcript struct {
	Text     string              `json:"text" firestore:"text"`
	Language string              `json:"language,omitempty" firestore:"language,omitempty"`
	Duration float64             `json:"duration,omitempty" firestore:"duration,omitempty"`
	Segments []TranscriptSegment `json:"segments,omitempty" firestore:"segments,omitempty"`
}

// Scene is a contiguous segment of a video delimited by content-change
// detection. ImageData holds the JPEG still of the first frame and is never
// persisted.
type Scene struct {
	SceneNumber int     `json:"scene_number" firestore:"scene_number"`
	StartTime   float64 `json:"start_time" firestore:"start_time"`
	EndTime     float64 `json:"end_time" firestore:"end_time"`
	Duration    float64 `json:"duration" firestore:"duration"`
	ImageData   []byte  `json:"-" firestore:"-"`
	Analysis    string  `json:"analysis,omitempty" firestore:"analysis,omitempty"`
}

// Timestamp renders the scene range as "1.00s - 2.50s".
func (s Scene) Timestamp() string {
	return fmt.Sprintf("%.2fs - %.2fs", s.StartTime, s.EndTime)
}

// SceneAnalysis is the outcome of the visual pass over a video. On failure
// Scenes may still hold the analysed scenes if only aggregation failed.
type SceneAnalysis struct {
	Success          bool              `json:"success" firestore:"success"`
	Error            string            `json:"error,omitempty" firestore:"error,omitempty"`
	Scenes           []Scene           `json:"scene_analyses,omitempty" firestore:"scene_analyses,omitempty"`
	FinalRecipe      string            `json:"final_recipe,omitempty" firestore:"final_recipe,omitempty"`
	VerifiedRecipe   string            `json:"verified_recipe,omitempty" firestore:"verified_recipe,omitempty"`
	StructuredRecipe *StructuredRecipe `json:"structured_recipe,omitempty" firestore:"structured_recipe,omitempty"`
}

// RecipeText is the best available free-text recipe: the verified text when
// verification ran, otherwise the consolidated scene recipe.
func (a *SceneAnalysis) RecipeText() string {
	if a == nil || !a.Success {
		return ""
	}
	if len(strings.TrimSpace(a.VerifiedRecipe)) > 0 {
		return a.VerifiedRecipe
	}
	return a.FinalRecipe
}

// RecipeHeader is the title block of a structured recipe.
type RecipeHeader struct {
	Title           string `json:"title" firestore:"title" validate:"required"`
	Summary         string `json:"summary" firestore:"summary"`
	AdditionalNotes string `json:"additionalNotes" firestore:"additionalNotes"`
}

// StructuredRecipe is a recipe split into a header and numbered steps.
type StructuredRecipe struct {
	Recipe      RecipeHeader `json:"recipe" firestore:"recipe"`
	RecipeItems []RecipeStep `json:"recipeItems" firestore:"recipeItems" validate:"dive"`
}

// Ingredient is one itemised line of a nutrition estimate.
type Ingredient struct {
	Name              string  `json:"name" firestore:"name" validate:"required"`
	Amount            float64 `json:"amount" firestore:"amount"`
	AmountDescription string  `json:"amountDescription" firestore:"amountDescription"`
	Calories          float64 `json:"calories" firestore:"calories"`
	Fat               float64 `json:"fat" firestore:"fat"`
	Carbs             float64 `json:"carbs" firestore:"carbs"`
	Protein           float64 `json:"protein" firestore:"protein"`
	Fiber             float64 `json:"fiber" firestore:"fiber"`
}

// NutritionInfo holds aggregate totals and the itemised ingredients.
type NutritionInfo struct {
	Calories    float64      `json:"calories" firestore:"calories"`
	Fat         float64      `json:"fat" firestore:"fat"`
	Carbs       float64      `json:"carbs" firestore:"carbs"`
	Protein     float64      `json:"protein" firestore:"protein"`
	Fiber       float64      `json:"fiber" firestore:"fiber"`
	Ingredients []Ingredient `json:"ingredients" firestore:"ingredients" validate:"dive"`
}

// Recompute replaces the totals with the sums over Ingredients.
func (n *NutritionInfo) Recompute() {
	n.Calories, n.Fat, n.Carbs, n.Protein, n.Fiber = 0, 0, 0, 0, 0
	for _, i := range n.Ingredients {
		n.Calories += i.Calories
		n.Fat += i.Fat
		n.Carbs += i.Carbs
		n.Protein += i.Protein
		n.Fiber += i.Fiber
	}
}

type NutritionEstimate struct {
	ServingSizes  int           `json:"serving_sizes" firestore:"serving_sizes"`
	NutritionInfo NutritionInfo `json:"nutrition_info" firestore:"nutrition_info"`
}

// RecipeIngredient is an ingredient line of a generated recipe.
type RecipeIngredient struct {
	Name              string  `json:"name" firestore:"name" validate:"required"`
	Amount            float64 `json:"amount" firestore:"amount"`
	AmountDescription string  `json:"amountDescription" firestore:"amountDescription"`
}

type Instruction struct {
	Step int    `json:"step" firestore:"step"`
	Text string `json:"text" firestore:"text" validate:"required"`
}

// GeneratedRecipe is the recipe written from a free-text prompt.
type GeneratedRecipe struct {
	Title        string             `json:"title" firestore:"title" validate:"required"`
	Description  string             `json:"description" firestore:"description"`
	Servings     LooseString        `json:"servings" firestore:"servings"`
	PrepTime     LooseString        `json:"prepTime" firestore:"prepTime"`
	CookTime     LooseString        `json:"cookTime" firestore:"cookTime"`
	Ingredients  []RecipeIngredient `json:"ingredients" firestore:"ingredients" validate:"required,min=1,dive"`
	Instructions []Instruction      `json:"instructions" firestore:"instructions" validate:"dive"`
	Tips         []string           `json:"tips,omitempty" firestore:"tips,omitempty"`
}

// Text renders the recipe as plain text for downstream prompts.
func (r *GeneratedRecipe) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", r.Title)
	if len(r.Description) > 0 {
		fmt.Fprintf(&b, "%s\n", r.Description)
	}
	if len(r.Servings) > 0 {
		fmt.Fprintf(&b, "Servings: %s\n", r.Servings)
	}
	b.WriteString("\nIngredients:\n")
	for _, i := range r.Ingredients {
		fmt.Fprintf(&b, "- %g %s %s\n", i.Amount, i.AmountDescription, i.Name)
	}
	b.WriteString("\nDirections:\n")
	for _, s := range r.Instructions {
		fmt.Fprintf(&b, "%d. %s\n", s.Step, s.Text)
	}
	if len(r.Tips) > 0 {
		b.WriteString("\nNotes:\n")
		for _, t := range r.Tips {
			fmt.Fprintf(&b, "- %s\n", t)
		}
	}
	return b.String()
}

// GeneratedImage is an image produced from Prompt and stored at URL.
type GeneratedImage struct {
	URL        string `json:"url" firestore:"url"`
	Prompt     string `json:"prompt" firestore:"prompt"`
	ObjectName string `json:"objectName,omitempty" firestore:"objectName,omitempty"`
}

// IngredientImage places a generated ingredient image in the slideshow.
type IngredientImage struct {
	IngredientName string `json:"ingredientName" firestore:"ingredientName"`
	URL            string `json:"url" firestore:"url"`
	Prompt         string `json:"prompt" firestore:"prompt"`
	ObjectName     string `json:"objectName,omitempty" firestore:"objectName,omitempty"`
	Order          int    `json:"order" firestore:"order"`
}

// ManualRecipeUpdates holds the revision instructions for a manual recipe.
// Nil fields are left untouched.
type ManualRecipeUpdates struct {
	RecipeUpdates *string `json:"recipe_updates,omitempty"`
	ImageUpdates  *string `json:"image_updates,omitempty"`
}

func (u ManualRecipeUpdates) HasRecipeUpdates() bool {
	return u.RecipeUpdates != nil && len(strings.TrimSpace(*u.RecipeUpdates)) > 0
}

func (u ManualRecipeUpdates) HasImageUpdates() bool {
	return u.ImageUpdates != nil && len(strings.TrimSpace(*u.ImageUpdates)) > 0
}

// IsEmpty reports whether neither field carries an instruction.
func (u ManualRecipeUpdates) IsEmpty() bool {
	return !u.HasRecipeUpdates() && !u.HasImageUpdates()
}
