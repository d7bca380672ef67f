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

// This file defines the command that identifies the source video. It
// classifies the platform, fetches the metadata and, when configured,
// re-hosts the original media in blob storage. As soon as metadata is known a
// Video entity is created, so the item is visible to the rest of the system
// before recipe synthesis finishes.
//
// Missing metadata and a failed download are soft failures. Failing to write
// the Video entity or the recipe log is fatal.
package commands

import (
	"fmt"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/cloud"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/cor"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/services"
)

// MetadataExtraction runs the MetadataExtractor for the job's URL.
type MetadataExtraction struct {
	cor.BaseCommand
	logs        *services.RecipeLogRepository
	videos      *services.VideoRepository
	extractor   *services.MetadataExtractor
	storeVideos bool
}

func NewMetadataExtraction(
	name string,
	logs *services.RecipeLogRepository,
	videos *services.VideoRepository,
	extractor *services.MetadataExtractor,
	storeVideos bool) *MetadataExtraction {
	return &MetadataExtraction{
		BaseCommand: jobCommand(name),
		logs:        logs,
		videos:      videos,
		extractor:   extractor,
		storeVideos: storeVideos,
	}
}

func (c *MetadataExtraction) Execute(context cor.Context) {
	ctx := context.GetContext()
	j := job(context)

	result := c.extractor.Extract(ctx, j.VideoURL)
	if !result.Success() || result.Value == nil {
		err := result.Err
		if err == nil {
			err = fmt.Errorf("%w: %s", ErrNoMetadata, j.VideoURL)
		}
		if aErr := c.logs.AppendStep(ctx, j.LogID, softStep(ctx, StepMetadata, j, err)); aErr != nil {
			c.Fail(context, aErr)
			return
		}
		c.Succeed(context)
		return
	}
	metadata := result.Value
	context.Add(GetMetadataParameterName(), metadata)

	var mediaURL, objectName string
	if c.storeVideos {
		stored := c.extractor.DownloadAndStore(ctx, j.VideoURL, metadata)
		if stored.Success() {
			mediaURL, objectName = stored.Value.URL, stored.Value.Name
		}
		if err := c.logs.AppendStep(ctx, j.LogID, softStep(ctx, StepVideoDownload, j, stored.Err)); err != nil {
			c.Fail(context, err)
			return
		}
	}

	video := model.NewVideoFromMetadata(j.UserID, j.VideoURL, mediaURL, objectName, metadata)
	videoID, err := c.videos.Create(ctx, video)
	if err != nil {
		c.Fail(context, fmt.Errorf("failed to create video for %s: %w", j.VideoURL, err))
		return
	}
	context.Add(GetVideoIDParameterName(), videoID)

	err = c.logs.AppendStep(ctx, j.LogID, model.NewProcessingStep(StepMetadata, nil),
		cloud.Update{Path: "metadata", Value: metadata},
		cloud.Update{Path: "platform", Value: metadata.Platform},
		cloud.Update{Path: "videoId", Value: videoID})
	if err != nil {
		c.Fail(context, err)
		return
	}
	c.Succeed(context)
}
