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

// This file implements the visual half of the ingestion pipeline.
//
// Logic Flow:
//  1. ExtractScenes downloads the video into a scratch directory, detects
//     content changes with ffmpeg and turns the cut points into contiguous
//     scenes. The first frame of every scene is resized into the target
//     envelope and re-encoded as JPEG.
//  2. AnalyzeScenes describes each frame with a vision model. Scenes are
//     fanned out to a worker pool; a failed scene gets a placeholder
//     description and never aborts its siblings.
//  3. Aggregate sorts the descriptions by scene number and asks the text
//     model for one consolidated recipe.
//
// Analyze chains the three and reports the outcome as a SceneAnalysis so the
// caller can record a failure without aborting the run.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/cloud"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/media"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrNoScenes is reported when a video yields no scenes.
var ErrNoScenes = errors.New("no scenes detected")

// AnalysisFailedPrefix starts the description of a scene whose analysis
// failed.
const AnalysisFailedPrefix = "Analysis failed"

type VisualSceneAnalyzer struct {
	name      string
	source    media.VideoSource
	detector  media.SceneDetector
	generator cloud.ContentGenerator
	prompts   *Prompts
	settings  cloud.SceneDetection
	workers   int
	timeouts  cloud.Timeouts
	tracer    trace.Tracer
}

func NewVisualSceneAnalyzer(
	name string,
	source media.VideoSource,
	detector media.SceneDetector,
	generator cloud.ContentGenerator,
	prompts *Prompts,
	settings cloud.SceneDetection,
	workers int,
	timeouts cloud.Timeouts,
) *VisualSceneAnalyzer {
	return &VisualSceneAnalyzer{
		name:      name,
		source:    source,
		detector:  detector,
		generator: generator,
		prompts:   prompts,
		settings:  settings,
		workers:   workers,
		timeouts:  timeouts,
		tracer:    otel.Tracer(name),
	}
}

// ExtractScenes returns the scenes of the video at url in chronological
// order, numbered from 0.
func (a *VisualSceneAnalyzer) ExtractScenes(ctx context.Context, url string) ([]model.Scene, error) {
	scratch, err := media.NewScratchDir("scenes")
	if err != nil {
		return nil, err
	}
	defer func() {
		if rErr := scratch.Remove(); rErr != nil {
			slog.WarnContext(ctx, "failed to remove scratch directory", "path", scratch.Path, "error", rErr)
		}
	}()

	downloadCtx, cancel := context.WithTimeout(ctx, a.timeouts.Download())
	defer cancel()
	path, err := a.source.DownloadVideo(downloadCtx, url, media.ClassifyPlatform(url), scratch.Path)
	if err != nil {
		return nil, fmt.Errorf("video download failed: %w", err)
	}

	renderCtx, cancelRender := context.WithTimeout(ctx, a.timeouts.Render())
	defer cancelRender()
	duration, err := a.detector.ProbeDuration(renderCtx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to probe duration: %w", err)
	}
	cuts, err := a.detector.DetectCuts(renderCtx, path, a.settings.Threshold)
	if err != nil {
		return nil, fmt.Errorf("scene detection failed: %w", err)
	}

	spans := media.BuildSceneSpans(cuts, duration)
	scenes := make([]model.Scene, 0, len(spans))
	for _, span := range spans {
		frame, err := a.detector.ExtractFrame(renderCtx, path, span.Start)
		if err != nil {
			return nil, fmt.Errorf("failed to extract frame for scene %d: %w", span.Number, err)
		}
		image, err := media.FrameToJPEG(frame, a.settings.TargetWidth, a.settings.TargetHeight, a.settings.JPEGQuality)
		if err != nil {
			return nil, fmt.Errorf("failed to encode frame for scene %d: %w", span.Number, err)
		}
		scenes = append(scenes, model.Scene{
			SceneNumber: span.Number,
			StartTime:   span.Start,
			EndTime:     span.End,
			Duration:    span.Duration(),
			ImageData:   image,
		})
	}
	slog.InfoContext(ctx, "scenes extracted", "video_url", url, "scenes", len(scenes), "duration", duration)
	return scenes, nil
}

// AnalyzeScenes describes every scene concurrently and returns the scenes
// sorted by number with Analysis populated.
func (a *VisualSceneAnalyzer) AnalyzeScenes(ctx context.Context, scenes []model.Scene) []model.Scene {
	prompt, err := Render(a.prompts.Scene, map[string]string{})
	out := RunPool(a.workers, len(scenes), func(i int) model.Scene {
		scene := scenes[i]
		if err != nil {
			scene.Analysis = fmt.Sprintf("%s: %v", AnalysisFailedPrefix, err)
			return scene
		}
		scene.Analysis = a.describe(ctx, scene, prompt)
		return scene
	})
	SortScenes(out)
	return out
}

func (a *VisualSceneAnalyzer) describe(ctx context.Context, scene model.Scene, prompt string) string {
	sceneCtx, span := a.tracer.Start(ctx, fmt.Sprintf("%s_genai_scene_%d", a.name, scene.SceneNumber))
	defer span.End()
	span.SetAttributes(
		attribute.Int("sequence", scene.SceneNumber),
		attribute.String("start", strconv.FormatFloat(scene.StartTime, 'f', 2, 64)),
		attribute.String("end", strconv.FormatFloat(scene.EndTime, 'f', 2, 64)),
	)

	callCtx, cancel := context.WithTimeout(sceneCtx, a.timeouts.Generation())
	defer cancel()
	out, err := a.generator.GenerateMultiModal(callCtx, prompt, cloud.InlineMedia{Data: scene.ImageData, MIMEType: "image/jpeg"})
	if err == nil && len(strings.TrimSpace(out)) == 0 {
		err = model.ErrEmptyModelOutput
	}
	if err != nil {
		span.SetStatus(codes.Error, "scene analysis failed")
		slog.WarnContext(sceneCtx, "scene analysis failed", "scene", scene.SceneNumber, "error", err)
		return fmt.Sprintf("%s: %v", AnalysisFailedPrefix, err)
	}
	span.SetStatus(codes.Ok, "completed scene")
	return strings.TrimSpace(out)
}

// SortScenes orders scenes by scene number in place.
func SortScenes(scenes []model.Scene) {
	sort.SliceStable(scenes, func(i, j int) bool {
		return scenes[i].SceneNumber < scenes[j].SceneNumber
	})
}

// FormatSceneAnalyses renders the per-scene descriptions for the aggregate
// prompt in scene order. The input is not modified.
func FormatSceneAnalyses(scenes []model.Scene) string {
	sorted := append([]model.Scene(nil), scenes...)
	SortScenes(sorted)
	blocks := make([]string, 0, len(sorted))
	for _, s := range sorted {
		blocks = append(blocks, fmt.Sprintf("Scene %d (%s):\n%s", s.SceneNumber, s.Timestamp(), s.Analysis))
	}
	return strings.Join(blocks, "\n\n")
}

// Aggregate consolidates the scene descriptions into one recipe.
func (a *VisualSceneAnalyzer) Aggregate(ctx context.Context, scenes []model.Scene) (string, error) {
	prompt, err := Render(a.prompts.Aggregate, map[string]string{
		VocabSceneCount:    strconv.Itoa(len(scenes)),
		VocabSceneAnalyses: FormatSceneAnalyses(scenes),
	})
	if err != nil {
		return "", err
	}
	callCtx, cancel := context.WithTimeout(ctx, a.timeouts.Generation())
	defer cancel()
	out, err := a.generator.GenerateText(callCtx, prompt)
	if err != nil {
		return "", fmt.Errorf("recipe aggregation failed: %w", err)
	}
	out = strings.TrimSpace(out)
	if len(out) == 0 {
		return "", model.ErrEmptyModelOutput
	}
	return out, nil
}

// Analyze runs extraction, per-scene description and aggregation. A failed
// extraction returns no scenes; a failed aggregation keeps them.
func (a *VisualSceneAnalyzer) Analyze(ctx context.Context, url string) *model.SceneAnalysis {
	scenes, err := a.ExtractScenes(ctx, url)
	if err != nil {
		slog.WarnContext(ctx, "scene extraction failed", "video_url", url, "error", err)
		return &model.SceneAnalysis{Success: false, Error: err.Error()}
	}
	if len(scenes) == 0 {
		return &model.SceneAnalysis{Success: false, Error: ErrNoScenes.Error()}
	}

	analyzed := a.AnalyzeScenes(ctx, scenes)
	recipe, err := a.Aggregate(ctx, analyzed)
	if err != nil {
		return &model.SceneAnalysis{Success: false, Error: err.Error(), Scenes: analyzed}
	}
	return &model.SceneAnalysis{Success: true, Scenes: analyzed, FinalRecipe: recipe}
}
