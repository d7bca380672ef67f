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

// This file defines the command that renders the recipe slideshow.
//
// The SlideshowAssembler downloads the hero image and the ingredient images
// into a scratch directory, renders them with ffmpeg crossfades in the
// order hero, ingredients, hero, and removes the directory whether or not the
// render succeeded. The rendered video stays in memory until uploaded.
package commands

import (
	"fmt"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/cor"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/services"
)

// SlideshowRender renders the manual recipe's images into a video.
type SlideshowRender struct {
	cor.BaseCommand
	assembler *services.SlideshowAssembler
}

func NewSlideshowRender(name string, assembler *services.SlideshowAssembler) *SlideshowRender {
	out := &SlideshowRender{BaseCommand: *cor.NewBaseCommand(name), assembler: assembler}
	out.InputParamName = GetIngredientImagesParameterName()
	return out
}

func (c *SlideshowRender) IsExecutable(context cor.Context) bool {
	return c.BaseCommand.IsExecutable(context) && manualLog(context) != nil
}

func (c *SlideshowRender) Execute(context cor.Context) {
	log := manualLog(context)
	ingredients := context.Get(c.GetInputParam()).([]model.IngredientImage)

	show := c.assembler.Render(context.GetContext(), log.MealImage, ingredients)
	if !show.Success() {
		c.Fail(context, fmt.Errorf("slideshow render failed: %w", show.Err))
		return
	}
	c.Succeed(context)
	context.Add(GetSlideshowParameterName(), show.Value)
}
