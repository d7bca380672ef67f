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

package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
	"github.com/stretchr/testify/assert"
)

// TestNewRecipeLog verifies a fresh log starts processing with a single
// submission step stamped now.
func TestNewRecipeLog(t *testing.T) {
	log := model.NewRecipeLog("user-1", "https://www.tiktok.com/@chef/video/1")

	assert.Equal(t, model.StatusProcessing, log.Status)
	assert.Len(t, log.ProcessingSteps, 1)
	assert.Equal(t, "submission", log.LastStep().Step)
	assert.True(t, log.LastStep().Success)
	assert.WithinDuration(t, time.Now(), log.CreatedAt, time.Second)
}

func TestNewProcessingStepRecordsFailure(t *testing.T) {
	step := model.NewProcessingStep("audio_transcription", errors.New("no audio track"))

	assert.False(t, step.Success)
	assert.Equal(t, "failed", step.Status)
	assert.Equal(t, "no audio track", step.Error)
}

func TestNewVideoFromMetadataPrefersRehostedURL(t *testing.T) {
	meta := &model.VideoMetadata{Title: "Pasta", Description: "Quick pasta", Duration: 42, Thumbnail: "https://t/1.jpg", Platform: model.PlatformYouTube}

	hosted := model.NewVideoFromMetadata("u", "https://youtu.be/x", "https://storage.googleapis.com/b/videos/pasta.mp4", "videos/pasta.mp4", meta)
	assert.Equal(t, "https://storage.googleapis.com/b/videos/pasta.mp4", hosted.VideoURL)
	assert.Equal(t, "https://youtu.be/x", hosted.SourceURL)
	assert.Equal(t, model.SourceIngestion, hosted.Source)

	original := model.NewVideoFromMetadata("u", "https://youtu.be/x", "", "", meta)
	assert.Equal(t, "https://youtu.be/x", original.VideoURL)
	assert.Equal(t, 42.0, original.Duration)
}

func TestNewNutritionRecordIgnoresModelTotals(t *testing.T) {
	estimate := &model.NutritionEstimate{
		ServingSizes: 4,
		NutritionInfo: model.NutritionInfo{
			Calories: 9999,
			Ingredients: []model.Ingredient{
				{Name: "rice", Calories: 200, Fat: 1, Carbs: 44, Protein: 4, Fiber: 0.6},
				{Name: "egg", Calories: 70, Fat: 5, Carbs: 0.5, Protein: 6, Fiber: 0},
			},
		},
	}

	record := model.NewNutritionRecord("video-1", estimate)

	assert.Equal(t, 270.0, record.Calories)
	assert.Equal(t, 6.0, record.Fat)
	assert.Equal(t, 44.5, record.Carbs)
	assert.Equal(t, 10.0, record.Protein)
	assert.InDelta(t, 0.6, record.Fiber, 1e-9)
	assert.Equal(t, 4, record.ServingSizes)
}

func TestExampleNutritionTotalsMatchIngredients(t *testing.T) {
	info := model.GetExampleNutrition()

	var calories float64
	for _, i := range info.Ingredients {
		calories += i.Calories
	}
	assert.Equal(t, calories, info.Calories)
}

func TestSceneTimestamp(t *testing.T) {
	scene := model.Scene{SceneNumber: 2, StartTime: 1, EndTime: 2.5}
	assert.Equal(t, "1.00s - 2.50s", scene.Timestamp())
}
