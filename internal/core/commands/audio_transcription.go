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

package commands

import (
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/cloud"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/cor"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/services"
)

// AudioTranscription transcribes the job's audio track and moves the log to
// transcribed. A failed transcription is recorded and the run continues
// without a transcript.
type AudioTranscription struct {
	cor.BaseCommand
	logs        *services.RecipeLogRepository
	transcriber *services.AudioTranscriber
}

func NewAudioTranscription(name string, logs *services.RecipeLogRepository, transcriber *services.AudioTranscriber) *AudioTranscription {
	return &AudioTranscription{BaseCommand: jobCommand(name), logs: logs, transcriber: transcriber}
}

func (c *AudioTranscription) Execute(context cor.Context) {
	ctx := context.GetContext()
	j := job(context)

	title := ""
	if m := metadata(context); m != nil {
		title = m.Title
	}
	result := c.transcriber.Transcribe(ctx, j.VideoURL, c.transcriber.Hint(title))

	var fields []cloud.Update
	if result.Success() {
		context.Add(GetTranscriptParameterName(), result.Value)
		fields = append(fields, cloud.Update{Path: "transcription", Value: result.Value})
	}
	step := softStep(ctx, StepTranscription, j, result.Err)
	if _, err := c.logs.AdvanceStatus(ctx, j.LogID, model.StatusTranscribed, step, fields...); err != nil {
		c.Fail(context, err)
		return
	}
	c.Succeed(context)
}
