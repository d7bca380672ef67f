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
	"strings"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/cloud"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
)

const (
	noTranscription     = "No audio transcription available"
	videoAnalysisFailed = "Video analysis failed"
)

// RecipeVerifier cross-checks the scene-derived recipe against the metadata,
// captions and transcript of the same video.
type RecipeVerifier struct {
	generator cloud.ContentGenerator
	prompts   *Prompts
	timeouts  cloud.Timeouts
}

func NewRecipeVerifier(generator cloud.ContentGenerator, prompts *Prompts, timeouts cloud.Timeouts) *RecipeVerifier {
	return &RecipeVerifier{generator: generator, prompts: prompts, timeouts: timeouts}
}

// MetadataInfo renders the metadata block of the verification prompt.
func MetadataInfo(m *model.VideoMetadata) string {
	if m == nil {
		m = &model.VideoMetadata{}
	}
	return fmt.Sprintf("\nTitle: %s\nDescription: %s\nDuration: %g seconds\nSubtitles: %s\n",
		m.Title, m.Description, m.Duration, m.SubtitleText)
}

// BuildVerificationVocabulary collects the prompt inputs, substituting
// placeholders for a missing transcript or a failed analysis.
func BuildVerificationVocabulary(metadata *model.VideoMetadata, transcript *model.Transcript, analysis *model.SceneAnalysis) map[string]string {
	audio := noTranscription
	if transcript != nil && len(strings.TrimSpace(transcript.Text)) > 0 {
		audio = transcript.Text
	}
	video := videoAnalysisFailed
	if analysis != nil && analysis.Success && len(strings.TrimSpace(analysis.FinalRecipe)) > 0 {
		video = analysis.FinalRecipe
	}
	return map[string]string{
		VocabMetadataInfo:       MetadataInfo(metadata),
		VocabAudioTranscription: audio,
		VocabVideoAnalysis:      video,
	}
}

func (v *RecipeVerifier) Verify(ctx context.Context, metadata *model.VideoMetadata, transcript *model.Transcript, analysis *model.SceneAnalysis) model.Result[string] {
	prompt, err := Render(v.prompts.Verification, BuildVerificationVocabulary(metadata, transcript, analysis))
	if err != nil {
		return model.Fail[string](err)
	}
	callCtx, cancel := context.WithTimeout(ctx, v.timeouts.Generation())
	defer cancel()
	out, err := v.generator.GenerateText(callCtx, prompt)
	if err != nil {
		return model.Fail[string](fmt.Errorf("recipe verification failed: %w", err))
	}
	out = strings.TrimSpace(out)
	if len(out) == 0 {
		return model.Fail[string](errors.New("recipe verification returned no text"))
	}
	return model.Ok(out)
}
