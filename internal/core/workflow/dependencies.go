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
package workflow

import (
	"fmt"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/cloud"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/media"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/services"
)

// Dependencies gathers the collaborators both workflows are built from.
// Tests fill it with fakes; NewDependencies fills it from live clients.
type Dependencies struct {
	Config    *cloud.Config
	Documents cloud.DocumentStore
	Blobs     cloud.BlobStore
	Text      cloud.ContentGenerator
	Vision    cloud.ContentGenerator
	Images    cloud.ImageGenerator
	Speech    cloud.SpeechTranscriber
	Source    media.VideoSource
	Detector  media.SceneDetector
	Renderer  media.SlideshowRenderer
	Captions  services.CaptionFetcher
	Publisher cloud.MessagePublisher
	Runs      services.RunRecorder
	Prompts   *services.Prompts
}

// NewDependencies resolves the configured models and the external tools.
// The BigQuery run recorder is attached only when a client exists and
// pipeline.persist_runs is set.
func NewDependencies(config *cloud.Config, clients *cloud.ServiceClients) (*Dependencies, error) {
	prompts, err := services.NewPrompts(config.PromptTemplates)
	if err != nil {
		return nil, err
	}
	text, err := clients.ContentGenerator(cloud.DefaultAgentModel)
	if err != nil {
		return nil, err
	}
	vision, err := clients.ContentGenerator(cloud.VisionAgentModel)
	if err != nil {
		// a single model serves both when no vision model is configured
		vision = text
	}
	images, err := clients.ImageGenerator(cloud.DefaultImageModel)
	if err != nil {
		return nil, err
	}
	speech, err := clients.SpeechTranscriber(cloud.DefaultSpeechModel)
	if err != nil {
		return nil, err
	}
	ffmpeg := media.NewFFmpeg(config.Tools.FFmpeg, config.Tools.FFprobe)
	deps := &Dependencies{
		Config:    config,
		Documents: clients.DocumentStore,
		Blobs:     clients.BlobStore,
		Text:      text,
		Vision:    vision,
		Images:    images,
		Speech:    speech,
		Source:    media.NewYtDlp(config.Tools.YtDlp, config.Tools.TikTokAPIHostname),
		Detector:  ffmpeg,
		Renderer:  ffmpeg,
		Captions:  services.NewHTTPCaptionFetcher(),
		Publisher: clients.Publisher,
		Prompts:   prompts,
	}
	if clients.BigQueryClient != nil && config.Pipeline.PersistRuns {
		deps.Runs = services.NewBigQueryRunRecorder(
			clients.BigQueryClient,
			config.BigQueryDataSource.DatasetName,
			config.BigQueryDataSource.RunsTable)
	}
	return deps, nil
}

func (d *Dependencies) validate() error {
	switch {
	case d.Config == nil:
		return fmt.Errorf("workflow dependencies: missing config")
	case d.Documents == nil:
		return fmt.Errorf("workflow dependencies: missing document store")
	case d.Blobs == nil:
		return fmt.Errorf("workflow dependencies: missing blob store")
	case d.Prompts == nil:
		return fmt.Errorf("workflow dependencies: missing prompts")
	}
	return nil
}

func (d *Dependencies) workers() int {
	if d.Config.Application.ThreadPoolSize <= 0 {
		return 1
	}
	return d.Config.Application.ThreadPoolSize
}
