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
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/cloud"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/media"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
)

// Slideshow is a rendered recipe video held in memory.
type Slideshow struct {
	Data       []byte
	ImageCount int
	Duration   float64
}

// SlideshowAssembler renders the hero and ingredient images into a video.
type SlideshowAssembler struct {
	blobs    cloud.BlobStore
	renderer media.SlideshowRenderer
	spec     media.SlideshowSpec
	timeouts cloud.Timeouts
}

func NewSlideshowAssembler(blobs cloud.BlobStore, renderer media.SlideshowRenderer, settings cloud.Slideshow, timeouts cloud.Timeouts) *SlideshowAssembler {
	return &SlideshowAssembler{
		blobs:    blobs,
		renderer: renderer,
		spec: media.SlideshowSpec{
			Width:             settings.Width,
			Height:            settings.Height,
			SecondsPerImage:   settings.SecondsPerImage,
			TransitionSeconds: settings.TransitionSeconds,
		},
		timeouts: timeouts,
	}
}

// Spec returns the render settings.
func (a *SlideshowAssembler) Spec() media.SlideshowSpec {
	return a.spec
}

// Sequence returns the object names in play order: the hero, the
// ingredients by order, then the hero again.
func Sequence(hero *model.GeneratedImage, ingredients []model.IngredientImage) []string {
	sorted := append([]model.IngredientImage(nil), ingredients...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })
	out := make([]string, 0, len(sorted)+2)
	out = append(out, hero.ObjectName)
	for _, img := range sorted {
		out = append(out, img.ObjectName)
	}
	return append(out, hero.ObjectName)
}

// Render downloads the images into a scratch directory and renders them.
// The directory, with the intermediate video, is removed before returning.
func (a *SlideshowAssembler) Render(ctx context.Context, hero *model.GeneratedImage, ingredients []model.IngredientImage) model.Result[*Slideshow] {
	if hero == nil || len(hero.ObjectName) == 0 {
		return model.Fail[*Slideshow](errors.New("slideshow needs a stored meal image"))
	}
	scratch, err := media.NewScratchDir("slideshow")
	if err != nil {
		return model.Fail[*Slideshow](err)
	}
	defer func() {
		if rErr := scratch.Remove(); rErr != nil {
			slog.WarnContext(ctx, "failed to remove scratch directory", "path", scratch.Path, "error", rErr)
		}
	}()

	renderCtx, cancel := context.WithTimeout(ctx, a.timeouts.Render())
	defer cancel()

	names := Sequence(hero, ingredients)
	local := make(map[string]string, len(names))
	paths := make([]string, 0, len(names))
	for i, name := range names {
		if len(name) == 0 {
			return model.Fail[*Slideshow](fmt.Errorf("image %d has no stored object", i))
		}
		path, ok := local[name]
		if !ok {
			path = filepath.Join(scratch.Path, fmt.Sprintf("image_%03d%s", i, filepath.Ext(name)))
			if err := a.download(renderCtx, name, path); err != nil {
				return model.Fail[*Slideshow](err)
			}
			local[name] = path
		}
		paths = append(paths, path)
	}

	output := filepath.Join(scratch.Path, "slideshow.mp4")
	if err := a.renderer.Render(renderCtx, paths, output, a.spec); err != nil {
		return model.Fail[*Slideshow](fmt.Errorf("slideshow render failed: %w", err))
	}
	data, err := os.ReadFile(output)
	if err != nil {
		return model.Fail[*Slideshow](err)
	}
	return model.Ok(&Slideshow{Data: data, ImageCount: len(paths), Duration: a.spec.TotalDuration(len(paths))})
}

// download copies the stored object name into path. A failed close is
// reported, since the renderer would read a truncated image.
func (a *SlideshowAssembler) download(ctx context.Context, name string, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := f.Close(); cErr != nil && err == nil {
			err = fmt.Errorf("failed to write %s: %w", path, cErr)
		}
	}()
	if err := a.blobs.Download(ctx, name, f); err != nil {
		return fmt.Errorf("failed to fetch %s: %w", name, err)
	}
	return nil
}

// Upload stores a rendered slideshow under the recipe title.
func (a *SlideshowAssembler) Upload(ctx context.Context, title string, show *Slideshow) model.Result[*StoredObject] {
	if show == nil || len(show.Data) == 0 {
		return model.Fail[*StoredObject](errors.New("slideshow is empty"))
	}
	name := media.ObjectName("videos/recipes", title, "mp4")
	url, err := a.blobs.Upload(ctx, name, bytes.NewReader(show.Data), cloud.SniffContentType(show.Data, "video/mp4"))
	if err != nil {
		return model.Fail[*StoredObject](fmt.Errorf("slideshow upload failed: %w", err))
	}
	return model.Ok(&StoredObject{Name: name, URL: url})
}
