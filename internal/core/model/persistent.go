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

// Package model defines the records written to the document store and the
// payloads passed between pipeline stages.
//
// Persisted records carry `json` and `firestore` tags with identical field
// names so a partial update path such as "analysis.final_recipe" addresses the
// same field whichever store backs the repository. Validation tags are checked
// by the repositories before every write.
package model

import (
	"time"
)

// Collection names.
const (
	RecipeLogCollection       = "recipe_logs"
	ManualRecipeLogCollection = "manual_recipe_logs"
	VideoCollection           = "videos"
	RecipeCollection          = "recipes"
	RecipeItemCollection      = "recipe_items"
	NutritionCollection       = "nutrition"
)

// Video sources.
const (
	SourceIngestion    = "ingestion"
	SourceManualRecipe = "manual_recipe"
)

// ProcessingStep is one append-only entry of a log's audit trail.
type ProcessingStep struct {
	Step      string    `json:"step" firestore:"step" validate:"required"`
	Status    string    `json:"status" firestore:"status" validate:"oneof=completed failed"`
	Timestamp time.Time `json:"timestamp" firestore:"timestamp"`
	Success   bool      `json:"success" firestore:"success"`
	Error     string    `json:"error,omitempty" firestore:"error,omitempty"`
}

// NewProcessingStep stamps a step with the current UTC time. A nil err marks
// the step completed.
func NewProcessingStep(step string, err error) ProcessingStep {
	out := ProcessingStep{
		Step:      step,
		Status:    "completed",
		Timestamp: time.Now().UTC(),
		Success:   true,
	}
	if err != nil {
		out.Status = "failed"
		out.Success = false
		out.Error = err.Error()
	}
	return out
}

// RecipeLog tracks one ingestion run for a submitted video URL.
type RecipeLog struct {
	ID              string           `json:"logId,omitempty" firestore:"-"`
	UserID          string           `json:"userId" firestore:"userId" validate:"required"`
	VideoURL        string           `json:"videoUrl" firestore:"videoUrl" validate:"required,url"`
	Platform        Platform         `json:"platform,omitempty" firestore:"platform,omitempty"`
	Status          LogStatus        `json:"status" firestore:"status" validate:"required"`
	VideoID         string           `json:"videoId,omitempty" firestore:"videoId,omitempty"`
	ProcessingSteps []ProcessingStep `json:"processingSteps" firestore:"processingSteps" validate:"dive"`
	Metadata        *VideoMetadata   `json:"metadata,omitempty" firestore:"metadata,omitempty"`
	Transcription   *Transcript      `json:"transcription,omitempty" firestore:"transcription,omitempty"`
	Analysis        *SceneAnalysis   `json:"analysis,omitempty" firestore:"analysis,omitempty"`
	Nutrition       *NutritionInfo   `json:"nutrition,omitempty" firestore:"nutrition,omitempty"`
	CreatedAt       time.Time        `json:"createdAt" firestore:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt" firestore:"updatedAt"`
}

// NewRecipeLog returns a log in the processing state with a "submission" step.
func NewRecipeLog(userID string, videoURL string) *RecipeLog {
	now := time.Now().UTC()
	return &RecipeLog{
		UserID:          userID,
		VideoURL:        videoURL,
		Status:          StatusProcessing,
		ProcessingSteps: []ProcessingStep{NewProcessingStep("submission", nil)},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// LastStep returns the most recent step entry, or nil for an empty trail.
func (l *RecipeLog) LastStep() *ProcessingStep {
	if len(l.ProcessingSteps) == 0 {
		return nil
	}
	return &l.ProcessingSteps[len(l.ProcessingSteps)-1]
}

// FindStep returns the first step entry with the given name.
func (l *RecipeLog) FindStep(name string) (ProcessingStep, bool) {
	return findStep(l.ProcessingSteps, name)
}

// ManualRecipeLog tracks one prompt-driven recipe from generation to publish.
type ManualRecipeLog struct {
	ID               string             `json:"logId,omitempty" firestore:"-"`
	UserID           string             `json:"userId" firestore:"userId" validate:"required"`
	Prompt           string             `json:"prompt" firestore:"prompt" validate:"required"`
	Status           LogStatus          `json:"status" firestore:"status" validate:"required"`
	Recipe           *GeneratedRecipe   `json:"recipe,omitempty" firestore:"recipe,omitempty"`
	MealImage        *GeneratedImage    `json:"mealImage,omitempty" firestore:"mealImage,omitempty"`
	Nutrition        *NutritionEstimate `json:"nutrition,omitempty" firestore:"nutrition,omitempty"`
	IngredientImages []IngredientImage  `json:"ingredientImages,omitempty" firestore:"ingredientImages,omitempty"`
	VideoID          string             `json:"videoId,omitempty" firestore:"videoId,omitempty"`
	VideoURL         string             `json:"videoUrl,omitempty" firestore:"videoUrl,omitempty"`
	ProcessingSteps  []ProcessingStep   `json:"processingSteps" firestore:"processingSteps" validate:"dive"`
	CreatedAt        time.Time          `json:"createdAt" firestore:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt" firestore:"updatedAt"`

	// Set while a confirmation runs. Empty when no confirmation holds the log.
	ConfirmationClaim     string    `json:"confirmationClaim,omitempty" firestore:"confirmationClaim,omitempty"`
	ConfirmationClaimedAt time.Time `json:"confirmationClaimedAt,omitempty" firestore:"confirmationClaimedAt,omitempty"`
}

func NewManualRecipeLog(userID string, prompt string) *ManualRecipeLog {
	now := time.Now().UTC()
	return &ManualRecipeLog{
		UserID:          userID,
		Prompt:          prompt,
		Status:          StatusProcessing,
		ProcessingSteps: []ProcessingStep{NewProcessingStep("initialization", nil)},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (l *ManualRecipeLog) FindStep(name string) (ProcessingStep, bool) {
	return findStep(l.ProcessingSteps, name)
}

func findStep(steps []ProcessingStep, name string) (ProcessingStep, bool) {
	for _, s := range steps {
		if s.Step == name {
			return s, true
		}
	}
	return ProcessingStep{}, false
}

// Video is the durable artifact the rest of the application consumes.
type Video struct {
	ID               string    `json:"videoId,omitempty" firestore:"-"`
	UserID           string    `json:"userId" firestore:"userId" validate:"required"`
	VideoTitle       string    `json:"videoTitle" firestore:"videoTitle"`
	VideoDescription string    `json:"videoDescription" firestore:"videoDescription"`
	MealName         string    `json:"mealName" firestore:"mealName"`
	MealDescription  string    `json:"mealDescription" firestore:"mealDescription"`
	VideoURL         string    `json:"videoUrl" firestore:"videoUrl" validate:"required"`
	ThumbnailURL     string    `json:"thumbnailUrl" firestore:"thumbnailUrl"`
	Duration         float64   `json:"duration" firestore:"duration" validate:"gte=0"`
	Uploader         string    `json:"uploader,omitempty" firestore:"uploader,omitempty"`
	Platform         Platform  `json:"platform,omitempty" firestore:"platform,omitempty"`
	Source           string    `json:"source" firestore:"source" validate:"oneof=ingestion manual_recipe"`
	SourceURL        string    `json:"sourceUrl,omitempty" firestore:"sourceUrl,omitempty"`
	ObjectName       string    `json:"objectName,omitempty" firestore:"objectName,omitempty"`
	UploadedAt       time.Time `json:"uploadedAt" firestore:"uploadedAt"`
}

// NewVideoFromMetadata builds the Video entity published as soon as metadata
// is known. mediaURL is the re-hosted URL when the download succeeded.
func NewVideoFromMetadata(userID string, sourceURL string, mediaURL string, objectName string, m *VideoMetadata) *Video {
	url := mediaURL
	if len(url) == 0 {
		url = sourceURL
	}
	return &Video{
		UserID:           userID,
		VideoTitle:       m.Title,
		VideoDescription: m.Description,
		MealName:         m.Title,
		MealDescription:  m.Description,
		VideoURL:         url,
		ThumbnailURL:     m.Thumbnail,
		Duration:         m.Duration,
		Uploader:         m.Uploader,
		Platform:         m.Platform,
		Source:           SourceIngestion,
		SourceURL:        sourceURL,
		ObjectName:       objectName,
		UploadedAt:       time.Now().UTC(),
	}
}

// Recipe is the header of a structured recipe owned by a video.
type Recipe struct {
	ID              string    `json:"recipeId,omitempty" firestore:"-"`
	VideoID         string    `json:"videoId" firestore:"videoId"`
	Title           string    `json:"title" firestore:"title" validate:"required"`
	Summary         string    `json:"summary" firestore:"summary"`
	AdditionalNotes string    `json:"additionalNotes" firestore:"additionalNotes"`
	CreatedAt       time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// RecipeStep is one instruction of a recipe. StepOrder is contiguous from 1.
type RecipeStep struct {
	ID                string `json:"recipeItemId,omitempty" firestore:"-"`
	RecipeID          string `json:"recipeId,omitempty" firestore:"recipeId,omitempty"`
	StepOrder         int    `json:"stepOrder" firestore:"stepOrder" validate:"min=1"`
	Instruction       string `json:"instruction" firestore:"instruction" validate:"required"`
	AdditionalDetails string `json:"additionalDetails" firestore:"additionalDetails"`
}

// NutritionRecord is stored under the owning video's id.
type NutritionRecord struct {
	VideoID      string       `json:"videoId" firestore:"videoId" validate:"required"`
	ServingSizes int          `json:"servingSizes" firestore:"servingSizes" validate:"gte=1"`
	Calories     float64      `json:"calories" firestore:"calories"`
	Fat          float64      `json:"fat" firestore:"fat"`
	Carbs        float64      `json:"carbs" firestore:"carbs"`
	Protein      float64      `json:"protein" firestore:"protein"`
	Fiber        float64      `json:"fiber" firestore:"fiber"`
	Ingredients  []Ingredient `json:"ingredients" firestore:"ingredients" validate:"dive"`
	CreatedAt    time.Time    `json:"createdAt" firestore:"createdAt"`
}

// NewNutritionRecord copies an estimate into a record. Totals are taken from
// the ingredient sums, never from the estimate's own aggregate fields.
func NewNutritionRecord(videoID string, estimate *NutritionEstimate) *NutritionRecord {
	info := estimate.NutritionInfo
	info.Recompute()
	return &NutritionRecord{
		VideoID:      videoID,
		ServingSizes: estimate.ServingSizes,
		Calories:     info.Calories,
		Fat:          info.Fat,
		Carbs:        info.Carbs,
		Protein:      info.Protein,
		Fiber:        info.Fiber,
		Ingredients:  info.Ingredients,
		CreatedAt:    time.Now().UTC(),
	}
}
