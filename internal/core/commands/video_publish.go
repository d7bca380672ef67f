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
	"fmt"
	"time"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/cor"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/services"
)

// VideoPublish creates the Video entity of a confirmed manual recipe. The
// video points at the uploaded slideshow and uses the hero image as its
// thumbnail.
type VideoPublish struct {
	cor.BaseCommand
	videos *services.VideoRepository
}

func NewVideoPublish(name string, videos *services.VideoRepository) *VideoPublish {
	out := &VideoPublish{BaseCommand: *cor.NewBaseCommand(name), videos: videos}
	out.InputParamName = GetSlideshowObjectParameterName()
	return out
}

func (c *VideoPublish) IsExecutable(context cor.Context) bool {
	return c.BaseCommand.IsExecutable(context) &&
		manualLog(context) != nil &&
		context.Get(GetSlideshowParameterName()) != nil
}

func (c *VideoPublish) Execute(context cor.Context) {
	log := manualLog(context)
	stored := context.Get(c.GetInputParam()).(*services.StoredObject)
	show := context.Get(GetSlideshowParameterName()).(*services.Slideshow)

	video := &model.Video{
		UserID:           log.UserID,
		VideoTitle:       "Recipe: " + log.Recipe.Title,
		VideoDescription: log.Recipe.Description,
		MealName:         log.Recipe.Title,
		MealDescription:  log.Recipe.Description,
		VideoURL:         stored.URL,
		Duration:         show.Duration,
		Source:           model.SourceManualRecipe,
		ObjectName:       stored.Name,
		UploadedAt:       time.Now().UTC(),
	}
	if log.MealImage != nil {
		video.ThumbnailURL = log.MealImage.URL
	}
	id, err := c.videos.Create(context.GetContext(), video)
	if err != nil {
		c.Fail(context, fmt.Errorf("failed to create video for manual recipe %s: %w", log.ID, err))
		return
	}
	c.Succeed(context)
	context.Add(GetVideoParameterName(), video)
	context.Add(GetVideoIDParameterName(), id)
}
