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
	"fmt"
	"log/slog"
	"os"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/cloud"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/media"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
)

// AudioTranscriber downloads the audio track of a video and transcribes it.
type AudioTranscriber struct {
	source   media.VideoSource
	speech   cloud.SpeechTranscriber
	prompts  *Prompts
	timeouts cloud.Timeouts
}

func NewAudioTranscriber(source media.VideoSource, speech cloud.SpeechTranscriber, prompts *Prompts, timeouts cloud.Timeouts) *AudioTranscriber {
	return &AudioTranscriber{source: source, speech: speech, prompts: prompts, timeouts: timeouts}
}

// Hint renders the steering prompt for a video title. The title may be
// empty.
func (t *AudioTranscriber) Hint(title string) string {
	out, err := Render(t.prompts.Transcription, map[string]string{VocabTitle: title})
	if err != nil {
		return ""
	}
	return out
}

// Transcribe returns the transcript of the audio at url. A download or
// transcription failure is returned as a failed Result. The scratch
// directory never outlives the call.
func (t *AudioTranscriber) Transcribe(ctx context.Context, url string, prompt string) model.Result[*model.Transcript] {
	scratch, err := media.NewScratchDir("audio")
	if err != nil {
		return model.Fail[*model.Transcript](err)
	}
	defer func() {
		if rErr := scratch.Remove(); rErr != nil {
			slog.WarnContext(ctx, "failed to remove scratch directory", "path", scratch.Path, "error", rErr)
		}
	}()

	downloadCtx, cancel := context.WithTimeout(ctx, t.timeouts.Download())
	defer cancel()
	path, err := t.source.DownloadAudio(downloadCtx, url, media.ClassifyPlatform(url), scratch.Path)
	if err != nil {
		slog.WarnContext(ctx, "audio download failed", "video_url", url, "error", err)
		return model.Fail[*model.Transcript](fmt.Errorf("audio download failed: %w", err))
	}
	audio, err := os.ReadFile(path)
	if err != nil {
		return model.Fail[*model.Transcript](err)
	}

	transcribeCtx, cancelTranscribe := context.WithTimeout(ctx, t.timeouts.Transcription())
	defer cancelTranscribe()
	transcript, err := t.speech.Transcribe(transcribeCtx, audio, cloud.SniffContentType(audio, "audio/mpeg"), prompt)
	if err != nil {
		slog.WarnContext(ctx, "audio transcription failed", "video_url", url, "error", err)
		return model.Fail[*model.Transcript](err)
	}
	return model.Ok(transcript)
}
