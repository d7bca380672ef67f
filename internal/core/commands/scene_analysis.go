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

// This file defines the command that runs the visual pass over the video.
//
// The VisualSceneAnalyzer splits the video into scenes, describes every
// scene concurrently on a worker pool and consolidates the sorted
// descriptions into one recipe. This command records the outcome and moves
// the log to analyzed whether or not the analysis succeeded; structuring and
// nutrition check the analysis themselves and are skipped when it produced
// no recipe text.
package commands

import (
	"errors"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/cloud"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/cor"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/services"
	"go.opentelemetry.io/otel/attribute"
)

// SceneAnalysis runs the VisualSceneAnalyzer for the job's URL.
type SceneAnalysis struct {
	cor.BaseCommand
	logs     *services.RecipeLogRepository
	analyzer *services.VisualSceneAnalyzer
}

func NewSceneAnalysis(name string, logs *services.RecipeLogRepository, analyzer *services.VisualSceneAnalyzer) *SceneAnalysis {
	return &SceneAnalysis{BaseCommand: jobCommand(name), logs: logs, analyzer: analyzer}
}

func (s *SceneAnalysis) Execute(context cor.Context) {
	ctx, span := s.Tracer.Start(context.GetContext(), s.GetName()+"_analyze")
	j := job(context)
	out := s.analyzer.Analyze(ctx, j.VideoURL)
	span.SetAttributes(attribute.Int("scenes", len(out.Scenes)), attribute.Bool("success", out.Success))
	span.End()

	context.Add(GetAnalysisParameterName(), out)

	var stepErr error
	if !out.Success {
		stepErr = errors.New(out.Error)
	}
	step := softStep(context.GetContext(), StepSceneAnalysis, j, stepErr)
	_, err := s.logs.AdvanceStatus(context.GetContext(), j.LogID, model.StatusAnalyzed, step,
		cloud.Update{Path: "analysis", Value: out})
	if err != nil {
		s.Fail(context, err)
		return
	}
	s.Succeed(context)
}
