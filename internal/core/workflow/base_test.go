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
package workflow_test

import (
	"context"
	"os"
	"testing"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/cloud"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/media"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/services"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/workflow"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/telemetry"
	test "github.com/jaycherian/gcp-go-recipe-extraction/internal/testutil"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
)

const tName = "github.com/jaycherian/gcp-go-recipe-extraction/tests/workflow"

var (
	ctx    context.Context
	config *cloud.Config

	tracer = otel.Tracer(tName)
	logger = otelslog.NewLogger(tName)
)

func TestMain(m *testing.M) {
	var cancel context.CancelFunc
	ctx, cancel = context.WithCancel(context.Background())

	config = test.GetConfig()
	telemetry.SetupLogging()

	code := m.Run()
	cancel()
	os.Exit(code)
}

// fixture wires both workflows to in-memory stores and fakes.
type fixture struct {
	config    *cloud.Config
	documents *cloud.MemoryDocumentStore
	blobs     *cloud.MemoryBlobStore
	text      *test.ScriptedGenerator
	images    *test.FakeImageGenerator
	speech    *test.FakeSpeechTranscriber
	source    *test.FakeVideoSource
	detector  *test.FakeSceneDetector
	renderer  *test.FakeSlideshowRenderer
	runs      *test.FakeRunRecorder
}

func newFixture() *fixture {
	c := *config
	c.Pipeline.IngestionTopic = ""
	c.Pipeline.StoreVideos = false
	return &fixture{
		config:    &c,
		documents: cloud.NewMemoryDocumentStore(),
		blobs:     cloud.NewMemoryBlobStore("https://media.example"),
		text:      scriptedText(test.GetTestStructuredRecipeText(), test.GetTestNutritionText()),
		images:    &test.FakeImageGenerator{},
		speech:    &test.FakeSpeechTranscriber{Transcript: &model.Transcript{Text: "melt the butter then add the shrimp"}},
		source: &test.FakeVideoSource{Metadata: &media.RawMetadata{
			Title:      "Garlic Butter Shrimp",
			Duration:   30,
			WebpageURL: "https://www.youtube.com/watch?v=abc",
		}},
		detector: &test.FakeSceneDetector{Duration: 30, Cuts: []float64{10, 20}},
		renderer: &test.FakeSlideshowRenderer{},
		runs:     &test.FakeRunRecorder{},
	}
}

// scriptedText answers every prompt of both pipelines; structured and
// nutrition are the converter and nutrition JSON responses.
func scriptedText(structured string, nutrition string) *test.ScriptedGenerator {
	return test.NewScriptedGenerator().
		On("I have extracted information from 3 scenes", "**Ingredients:**\n- shrimp\n- butter\n- garlic\n\n**Directions:**\n1. Melt the butter.\n2. Cook the shrimp.").
		On("Below is a scene from a cooking video", "- butter\n- melting").
		On("You are a JSON converter", structured).
		On("serving size for 4 people", "shrimp 450 g, butter 4 tbsp, garlic 4 cloves").
		On("You are a JSON generator", nutrition).
		On("Update the following recipe based on these changes: make it vegan", test.GetTestManualRecipeText("Vegan Stir Fry")).
		On("Generate a detailed recipe for vegetable stir fry", test.GetTestManualRecipeText("Vegetable Stir Fry"))
}

func (f *fixture) deps() *workflow.Dependencies {
	return &workflow.Dependencies{
		Config:    f.config,
		Documents: f.documents,
		Blobs:     f.blobs,
		Text:      f.text,
		Vision:    f.text,
		Images:    f.images,
		Speech:    f.speech,
		Source:    f.source,
		Detector:  f.detector,
		Renderer:  f.renderer,
		Captions:  &test.FakeCaptionFetcher{},
		Runs:      f.runs,
		Prompts:   services.DefaultPrompts(),
	}
}

func stepNames(steps []model.ProcessingStep) []string {
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.Step)
	}
	return out
}
