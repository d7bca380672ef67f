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
// Package workflow holds the two root orchestrations. Each one wraps a
// cor.Chain of commands the way every pipeline in this module does:
//
//   - RecipeIngestionWorkflow turns a submitted video URL into a Video,
//     a Recipe with its steps, and a Nutrition Record, tracked by a
//     Recipe Log.
//   - ManualRecipeWorkflow turns a free-text prompt into a revisable
//     generated recipe and, once confirmed, a published slideshow Video.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/cloud"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/commands"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/cor"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/media"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/services"
)

var (
	// ErrLogNotFound is returned for an unknown recipe or manual recipe log id.
	ErrLogNotFound = errors.New("log not found")
	// ErrInvalidState is returned when a log is not in a state that allows
	// the requested operation.
	ErrInvalidState = errors.New("invalid log state")
	// ErrInvalidInput is returned for a rejected URL, prompt or update.
	ErrInvalidInput = errors.New("invalid input")
)

const (
	StepDispatch = "dispatch"
	StepPipeline = "pipeline"
)

// RecipeIngestionWorkflow runs the ingestion chain for one submitted video
// URL. Submit creates the Recipe Log and dispatches a job; Execute runs the
// chain for a job, either from the local dispatcher or from a Pub/Sub
// listener.
type RecipeIngestionWorkflow struct {
	cor.BaseCommand
	deps       *Dependencies
	logs       *services.RecipeLogRepository
	videos     *services.VideoRepository
	recipes    *services.RecipeRepository
	nutrition  *services.NutritionRepository
	dispatcher Dispatcher
	chain      cor.Chain
}

// NewRecipeIngestionWorkflow builds the workflow and its chain. Jobs are
// published to pipeline.ingestion_topic when a publisher and topic are
// configured, and run in-process otherwise.
func NewRecipeIngestionWorkflow(deps *Dependencies) (*RecipeIngestionWorkflow, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	w := &RecipeIngestionWorkflow{
		BaseCommand: *cor.NewBaseCommand("recipe-ingestion-workflow"),
		deps:        deps,
		logs:        services.NewRecipeLogRepository(deps.Documents),
		videos:      services.NewVideoRepository(deps.Documents),
		recipes:     services.NewRecipeRepository(deps.Documents),
		nutrition:   services.NewNutritionRepository(deps.Documents),
	}
	if deps.Publisher != nil && len(deps.Config.Pipeline.IngestionTopic) > 0 {
		w.dispatcher = NewPubSubDispatcher(deps.Publisher, deps.Config.Pipeline.IngestionTopic)
	} else {
		w.dispatcher = NewLocalDispatcher(w.Run)
	}
	w.initializeChain()
	return w, nil
}

func (w *RecipeIngestionWorkflow) Dispatcher() Dispatcher {
	return w.dispatcher
}

func (w *RecipeIngestionWorkflow) initializeChain() {
	d := w.deps
	timeouts := d.Config.Timeouts
	out := cor.NewBaseChain(w.GetName())

	// Step 1: Decode the job and skip it when its log already finished.
	out.AddCommand(commands.NewIngestionJobReader("ingestion-job-reader", w.logs))

	// Step 2: Platform metadata and the Video entity, created as early as
	// possible so the video is visible before the recipe exists.
	out.AddCommand(commands.NewMetadataExtraction(
		"metadata-extraction",
		w.logs,
		w.videos,
		services.NewMetadataExtractor(d.Source, d.Captions, d.Blobs, timeouts),
		d.Config.Pipeline.StoreVideos))

	// Step 3: Speech to text. A failure is recorded and the run goes on.
	out.AddCommand(commands.NewAudioTranscription(
		"audio-transcription",
		w.logs,
		services.NewAudioTranscriber(d.Source, d.Speech, d.Prompts, timeouts)))

	// Step 4: Scene detection, one vision call per scene and aggregation
	// into a single recipe text.
	out.AddCommand(commands.NewSceneAnalysis(
		"scene-analysis",
		w.logs,
		services.NewVisualSceneAnalyzer(
			"scene-analysis",
			d.Source,
			d.Detector,
			d.Vision,
			d.Prompts,
			d.Config.SceneDetection,
			d.workers(),
			timeouts)))

	// Step 5: Optionally cross-check the recipe against metadata and the
	// transcript.
	if d.Config.Pipeline.VerifyRecipe {
		out.AddCommand(commands.NewRecipeVerification(
			"recipe-verification",
			w.logs,
			services.NewRecipeVerifier(d.Text, d.Prompts, timeouts)))
	}

	// Step 6: Recipe and recipe items, only when there is recipe text.
	out.AddCommand(commands.NewRecipeStructuring(
		"recipe-structuring",
		w.logs,
		w.videos,
		w.recipes,
		services.NewStructuredRecipeGenerator(d.Text, d.Prompts, timeouts)))

	// Step 7: Nutrition Record, moving the log to completed.
	out.AddCommand(commands.NewNutritionEstimation(
		"nutrition-estimation",
		w.logs,
		w.videos,
		w.nutrition,
		services.NewNutritionEstimator(d.Text, d.Prompts, d.Config.Pipeline.DefaultServingSize, timeouts)))

	// Step 8: One analytics row per run. Not executable without a recorder.
	out.AddCommand(commands.NewPersistRunToBigQuery("persist-run-to-bigquery", w.logs, d.Runs))

	w.chain = out
}

// Submit validates the URL, creates the Recipe Log and dispatches the job.
// The returned log is the state at submission time; poll Get for progress.
func (w *RecipeIngestionWorkflow) Submit(ctx context.Context, userID string, videoURL string) (*model.RecipeLog, error) {
	if err := services.Validator().Var(videoURL, "required,url"); err != nil {
		return nil, fmt.Errorf("%w: video url %q", ErrInvalidInput, videoURL)
	}
	log := model.NewRecipeLog(userID, videoURL)
	log.Platform = media.ClassifyPlatform(videoURL)
	if _, err := w.logs.Create(ctx, log); err != nil {
		return nil, fmt.Errorf("failed to create recipe log: %w", err)
	}
	slog.InfoContext(ctx, "recipe log created", "log_id", log.ID, "video_url", videoURL, "platform", log.Platform)

	job := &model.IngestionJob{LogID: log.ID, UserID: userID, VideoURL: videoURL}
	if err := w.dispatcher.Dispatch(ctx, job); err != nil {
		if _, aErr := w.logs.AdvanceStatus(ctx, log.ID, model.StatusError, model.NewProcessingStep(StepDispatch, err)); aErr != nil {
			slog.ErrorContext(ctx, "failed to record dispatch failure", "log_id", log.ID, "error", aErr)
		}
		return nil, err
	}
	return log, nil
}

// Execute runs the chain. A fatal failure inside the chain moves the log to
// the error state with a failed "pipeline" step.
func (w *RecipeIngestionWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
	if !context.HasErrors() {
		return
	}
	j, ok := context.Get(commands.GetJobParameterName()).(*model.IngestionJob)
	if !ok {
		return
	}
	ctx := context.GetContext()
	err := JoinErrors(context.GetErrors())
	slog.ErrorContext(ctx, "ingestion pipeline failed", "log_id", j.LogID, "error", err)
	if _, aErr := w.logs.AdvanceStatus(ctx, j.LogID, model.StatusError, model.NewProcessingStep(StepPipeline, err)); aErr != nil {
		slog.ErrorContext(ctx, "failed to record pipeline failure", "log_id", j.LogID, "error", aErr)
	}
}

// Run executes the chain for one job in a fresh chain context.
func (w *RecipeIngestionWorkflow) Run(ctx context.Context, job *model.IngestionJob) error {
	chCtx := cor.NewBaseContext()
	chCtx.SetContext(ctx)
	chCtx.Add(cor.CtxIn, job)
	defer chCtx.Close()

	w.Execute(chCtx)
	return JoinErrors(chCtx.GetErrors())
}

func (w *RecipeIngestionWorkflow) Get(ctx context.Context, logID string) (*model.RecipeLog, error) {
	log, err := w.logs.Get(ctx, logID)
	if errors.Is(err, cloud.ErrDocumentNotFound) {
		return nil, fmt.Errorf("%w: recipe log %s", ErrLogNotFound, logID)
	}
	return log, err
}

// Videos exposes the video service for the read endpoints.
func (w *RecipeIngestionWorkflow) Videos() *services.VideoService {
	return services.NewVideoService(w.videos, w.deps.Blobs)
}

// Runs returns the configured run recorder, or nil.
func (w *RecipeIngestionWorkflow) Runs() services.RunRecorder {
	return w.deps.Runs
}

// JoinErrors joins chain errors in command-name order.
func JoinErrors(errs map[string]error) error {
	if len(errs) == 0 {
		return nil
	}
	names := make([]string, 0, len(errs))
	for name := range errs {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]error, 0, len(names))
	for _, name := range names {
		out = append(out, fmt.Errorf("%s: %w", name, errs[name]))
	}
	return errors.Join(out...)
}
