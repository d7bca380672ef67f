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

// This file defines the command that publishes the rendered slideshow to
// blob storage under "videos/recipes/", named after the recipe title.
package commands

import (
	"fmt"
	"log/slog"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/cor"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/services"
)

// SlideshowUpload stores the rendered slideshow.
type SlideshowUpload struct {
	cor.BaseCommand
	assembler *services.SlideshowAssembler
}

func NewSlideshowUpload(name string, assembler *services.SlideshowAssembler) *SlideshowUpload {
	out := &SlideshowUpload{BaseCommand: *cor.NewBaseCommand(name), assembler: assembler}
	out.InputParamName = GetSlideshowParameterName()
	return out
}

func (c *SlideshowUpload) IsExecutable(context cor.Context) bool {
	return c.BaseCommand.IsExecutable(context) && manualLog(context) != nil
}

func (c *SlideshowUpload) Execute(context cor.Context) {
	log := manualLog(context)
	show := context.Get(c.GetInputParam()).(*services.Slideshow)

	stored := c.assembler.Upload(context.GetContext(), log.Recipe.Title, show)
	if !stored.Success() {
		c.Fail(context, fmt.Errorf("slideshow upload failed: %w", stored.Err))
		return
	}
	c.Succeed(context)
	slog.InfoContext(context.GetContext(), "uploaded slideshow", "log_id", log.ID, "object", stored.Value.Name, "bytes", len(show.Data))
	context.Add(GetSlideshowObjectParameterName(), stored.Value)
}
