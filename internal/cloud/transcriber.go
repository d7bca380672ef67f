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

package cloud

import (
	"context"
	"fmt"
	"strings"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
)

// SpeechTranscriber turns audio into a transcript. prompt is an optional
// vocabulary hint and never filters the output.
type SpeechTranscriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string, prompt string) (*model.Transcript, error)
}

const transcriptionInstruction = `Transcribe the attached audio verbatim in its original language.
Return ONLY a JSON object with this structure:
{"text": "full transcript", "language": "ISO 639-1 code", "duration": seconds, "segments": [{"start": seconds, "end": seconds, "text": "segment text"}]}`

// GeminiSpeechTranscriber transcribes audio with a multimodal Gemini model.
type GeminiSpeechTranscriber struct {
	generator ContentGenerator
}

func NewGeminiSpeechTranscriber(generator ContentGenerator) *GeminiSpeechTranscriber {
	return &GeminiSpeechTranscriber{generator: generator}
}

func (t *GeminiSpeechTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string, prompt string) (*model.Transcript, error) {
	instruction := transcriptionInstruction
	if hint := strings.TrimSpace(prompt); len(hint) > 0 {
		instruction += "\n\nThe speaker may use these terms: " + hint
	}
	out, err := t.generator.GenerateMultiModal(ctx, instruction, InlineMedia{Data: audio, MIMEType: mimeType})
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}
	transcript := &model.Transcript{}
	if err := model.DecodeModelJSON(out, transcript); err != nil {
		// Some responses ignore the JSON instruction; keep the plain text.
		cleaned := model.CleanModelOutput(out)
		if len(cleaned) == 0 {
			return nil, err
		}
		return &model.Transcript{Text: cleaned}, nil
	}
	if len(strings.TrimSpace(transcript.Text)) == 0 && len(transcript.Segments) > 0 {
		parts := make([]string, 0, len(transcript.Segments))
		for _, s := range transcript.Segments {
			parts = append(parts, strings.TrimSpace(s.Text))
		}
		transcript.Text = strings.Join(parts, " ")
	}
	return transcript, nil
}
