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

// This file holds the typed repositories over the document store. Every
// record is validated before it is written, and every read decodes into the
// record type, so no untyped maps travel through the pipelines.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/cloud"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
)

// ConfirmationLease bounds how long a confirmation claim keeps other
// confirmations and revisions out.
const ConfirmationLease = 30 * time.Minute

var (
	// ErrNotRevisable is returned by guarded manual log writes when the log
	// left initial_generated and updated.
	ErrNotRevisable = errors.New("manual recipe is not revisable")
	// ErrConfirmationPending is returned while another confirmation holds the
	// log.
	ErrConfirmationPending = errors.New("confirmation already in progress")
	// ErrConfirmationLost is returned when a claim token no longer holds the
	// log.
	ErrConfirmationLost = errors.New("confirmation claim lost")
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared record validator.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// collection is a typed view of one document collection.
type collection[T any] struct {
	store    cloud.DocumentStore
	name     string
	setID    func(*T, string)
	validate *validator.Validate
}

func newCollection[T any](store cloud.DocumentStore, name string, setID func(*T, string)) collection[T] {
	return collection[T]{store: store, name: name, setID: setID, validate: Validator()}
}

func (c collection[T]) create(ctx context.Context, record *T) (string, error) {
	if err := c.validate.Struct(record); err != nil {
		return "", fmt.Errorf("invalid %s record: %w", c.name, err)
	}
	id, err := c.store.Create(ctx, c.name, record)
	if err != nil {
		return "", err
	}
	if c.setID != nil {
		c.setID(record, id)
	}
	return id, nil
}

func (c collection[T]) set(ctx context.Context, id string, record *T) error {
	if err := c.validate.Struct(record); err != nil {
		return fmt.Errorf("invalid %s record: %w", c.name, err)
	}
	return c.store.Set(ctx, c.name, id, record)
}

func (c collection[T]) decode(doc cloud.Document) (*T, error) {
	out := new(T)
	if err := doc.DataTo(out); err != nil {
		return nil, fmt.Errorf("failed to decode %s/%s: %w", c.name, doc.ID(), err)
	}
	if c.setID != nil {
		c.setID(out, doc.ID())
	}
	return out, nil
}

func (c collection[T]) get(ctx context.Context, id string) (*T, error) {
	doc, err := c.store.Get(ctx, c.name, id)
	if err != nil {
		return nil, err
	}
	return c.decode(doc)
}

func (c collection[T]) query(ctx context.Context, field string, value any, limit int) ([]*T, error) {
	docs, err := c.store.Query(ctx, c.name, field, value, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(docs))
	for _, doc := range docs {
		record, err := c.decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, nil
}

func (c collection[T]) update(ctx context.Context, id string, updates ...cloud.Update) error {
	return c.store.Update(ctx, c.name, id, updates...)
}

// stepUpdates appends step, sets fields and stamps updatedAt.
func stepUpdates(step *model.ProcessingStep, fields []cloud.Update) ([]cloud.Update, error) {
	out := make([]cloud.Update, 0, len(fields)+2)
	if step != nil {
		if err := Validator().Struct(step); err != nil {
			return nil, fmt.Errorf("invalid processing step: %w", err)
		}
		out = append(out, cloud.Update{Path: "processingSteps", Value: cloud.ArrayUnion(*step)})
	}
	out = append(out, fields...)
	return append(out, cloud.Update{Path: "updatedAt", Value: time.Now().UTC()}), nil
}

func (c collection[T]) updateIf(ctx context.Context, id string, check func(logState) error, updates ...cloud.Update) error {
	return c.store.UpdateIf(ctx, c.name, id, func(doc cloud.Document) error {
		var state logState
		if err := doc.DataTo(&state); err != nil {
			return fmt.Errorf("failed to decode %s/%s: %w", c.name, doc.ID(), err)
		}
		if check == nil {
			return nil
		}
		return check(state)
	}, updates...)
}

// logState is the part of a log that guarded writes check.
type logState struct {
	Status            model.LogStatus `json:"status" firestore:"status"`
	ConfirmationClaim string          `json:"confirmationClaim" firestore:"confirmationClaim"`
	ClaimedAt         time.Time       `json:"confirmationClaimedAt" firestore:"confirmationClaimedAt"`
}

// claimed reports whether a confirmation holds the log at now.
func (s logState) claimed(now time.Time) bool {
	return s.ConfirmationClaim != "" && now.Sub(s.ClaimedAt) < ConfirmationLease
}

// errTransitionRefused aborts a guarded write whose status may not move.
var errTransitionRefused = errors.New("status transition refused")

// advance writes next as the status together with step and fields when the
// stored status may move to it. The check runs inside the write, so a refused
// transition writes nothing and reports false.
func advance[T any](ctx context.Context, c collection[T], id string, next model.LogStatus, step *model.ProcessingStep, fields []cloud.Update) (bool, error) {
	updates, err := stepUpdates(step, append(fields, cloud.Update{Path: "status", Value: next}))
	if err != nil {
		return false, err
	}
	err = c.updateIf(ctx, id, func(state logState) error {
		if !state.Status.CanAdvanceTo(next) {
			slog.WarnContext(ctx, "ignoring status regression", "log_id", id, "from", state.Status, "to", next)
			return errTransitionRefused
		}
		return nil
	}, updates...)
	if errors.Is(err, errTransitionRefused) {
		return false, nil
	}
	return err == nil, err
}

// RecipeLogRepository persists ingestion logs.
type RecipeLogRepository struct {
	c collection[model.RecipeLog]
}

func NewRecipeLogRepository(store cloud.DocumentStore) *RecipeLogRepository {
	return &RecipeLogRepository{c: newCollection(store, model.RecipeLogCollection, func(l *model.RecipeLog, id string) { l.ID = id })}
}

func (r *RecipeLogRepository) Create(ctx context.Context, log *model.RecipeLog) (string, error) {
	return r.c.create(ctx, log)
}

func (r *RecipeLogRepository) Get(ctx context.Context, id string) (*model.RecipeLog, error) {
	return r.c.get(ctx, id)
}

// AppendStep appends step and sets the given fields in one partial update.
func (r *RecipeLogRepository) AppendStep(ctx context.Context, id string, step model.ProcessingStep, fields ...cloud.Update) error {
	updates, err := stepUpdates(&step, fields)
	if err != nil {
		return err
	}
	return r.c.update(ctx, id, updates...)
}

// AdvanceStatus moves the log to next when the lifecycle allows it and
// appends step alongside. It reports whether the status changed; when it
// did not, nothing is written.
func (r *RecipeLogRepository) AdvanceStatus(ctx context.Context, id string, next model.LogStatus, step model.ProcessingStep, fields ...cloud.Update) (bool, error) {
	return advance(ctx, r.c, id, next, &step, fields)
}

// ManualRecipeLogRepository persists manual recipe logs.
type ManualRecipeLogRepository struct {
	c collection[model.ManualRecipeLog]
}

func NewManualRecipeLogRepository(store cloud.DocumentStore) *ManualRecipeLogRepository {
	return &ManualRecipeLogRepository{c: newCollection(store, model.ManualRecipeLogCollection, func(l *model.ManualRecipeLog, id string) { l.ID = id })}
}

func (r *ManualRecipeLogRepository) Create(ctx context.Context, log *model.ManualRecipeLog) (string, error) {
	return r.c.create(ctx, log)
}

func (r *ManualRecipeLogRepository) Get(ctx context.Context, id string) (*model.ManualRecipeLog, error) {
	return r.c.get(ctx, id)
}

func (r *ManualRecipeLogRepository) AppendStep(ctx context.Context, id string, step model.ProcessingStep, fields ...cloud.Update) error {
	updates, err := stepUpdates(&step, fields)
	if err != nil {
		return err
	}
	return r.c.update(ctx, id, updates...)
}

func (r *ManualRecipeLogRepository) AdvanceStatus(ctx context.Context, id string, next model.LogStatus, step model.ProcessingStep, fields ...cloud.Update) (bool, error) {
	return advance(ctx, r.c, id, next, &step, fields)
}

// revisable refuses logs outside initial_generated and updated, and logs a
// live confirmation holds.
func revisable(state logState, now time.Time) error {
	if state.Status != model.StatusInitialGenerated && state.Status != model.StatusUpdated {
		return fmt.Errorf("%w: status is %s", ErrNotRevisable, state.Status)
	}
	if state.claimed(now) {
		return ErrConfirmationPending
	}
	return nil
}

// Revise writes a revision and moves the log to updated, provided the log is
// still revisable when the write lands.
func (r *ManualRecipeLogRepository) Revise(ctx context.Context, id string, step model.ProcessingStep, fields ...cloud.Update) error {
	updates, err := stepUpdates(&step, append(fields, cloud.Update{Path: "status", Value: model.StatusUpdated}))
	if err != nil {
		return err
	}
	return r.c.updateIf(ctx, id, func(state logState) error {
		return revisable(state, time.Now())
	}, updates...)
}

// ClaimConfirmation marks the log as being confirmed and returns the token
// that later completes or releases it. Only one claim holds at a time; a
// claim older than ConfirmationLease is treated as abandoned.
func (r *ManualRecipeLogRepository) ClaimConfirmation(ctx context.Context, id string) (string, error) {
	token := uuid.NewString()
	now := time.Now().UTC()
	err := r.c.updateIf(ctx, id, func(state logState) error {
		return revisable(state, now)
	},
		cloud.Update{Path: "confirmationClaim", Value: token},
		cloud.Update{Path: "confirmationClaimedAt", Value: now},
		cloud.Update{Path: "updatedAt", Value: now})
	if err != nil {
		return "", err
	}
	return token, nil
}

// ReleaseConfirmation records step and drops the claim so the log can be
// revised or confirmed again.
func (r *ManualRecipeLogRepository) ReleaseConfirmation(ctx context.Context, id string, token string, step model.ProcessingStep) error {
	updates, err := stepUpdates(&step, []cloud.Update{{Path: "confirmationClaim", Value: ""}})
	if err != nil {
		return err
	}
	return r.c.updateIf(ctx, id, holding(token), updates...)
}

// CompleteConfirmation writes the confirmation results, completes the log and
// drops the claim. It fails with ErrConfirmationLost when token no longer
// holds the log.
func (r *ManualRecipeLogRepository) CompleteConfirmation(ctx context.Context, id string, token string, step model.ProcessingStep, fields ...cloud.Update) error {
	fields = append(fields,
		cloud.Update{Path: "status", Value: model.StatusCompleted},
		cloud.Update{Path: "confirmationClaim", Value: ""})
	updates, err := stepUpdates(&step, fields)
	if err != nil {
		return err
	}
	return r.c.updateIf(ctx, id, func(state logState) error {
		if err := holding(token)(state); err != nil {
			return err
		}
		if !state.Status.CanAdvanceTo(model.StatusCompleted) {
			return fmt.Errorf("%w: status is %s", ErrNotRevisable, state.Status)
		}
		return nil
	}, updates...)
}

func holding(token string) func(logState) error {
	return func(state logState) error {
		if token == "" || state.ConfirmationClaim != token {
			return ErrConfirmationLost
		}
		return nil
	}
}

// VideoRepository persists Video entities.
type VideoRepository struct {
	c collection[model.Video]
}

func NewVideoRepository(store cloud.DocumentStore) *VideoRepository {
	return &VideoRepository{c: newCollection(store, model.VideoCollection, func(v *model.Video, id string) { v.ID = id })}
}

func (r *VideoRepository) Create(ctx context.Context, video *model.Video) (string, error) {
	return r.c.create(ctx, video)
}

func (r *VideoRepository) Get(ctx context.Context, id string) (*model.Video, error) {
	return r.c.get(ctx, id)
}

// FindBySourceURL returns a video ingested from url.
func (r *VideoRepository) FindBySourceURL(ctx context.Context, url string) (*model.Video, error) {
	videos, err := r.c.query(ctx, "sourceUrl", url, 1)
	if err != nil {
		return nil, err
	}
	if len(videos) == 0 {
		return nil, fmt.Errorf("%w: no video for %s", cloud.ErrDocumentNotFound, url)
	}
	return videos[0], nil
}

// RecipeRepository persists recipes and their steps.
type RecipeRepository struct {
	recipes collection[model.Recipe]
	steps   collection[model.RecipeStep]
}

func NewRecipeRepository(store cloud.DocumentStore) *RecipeRepository {
	return &RecipeRepository{
		recipes: newCollection(store, model.RecipeCollection, func(r *model.Recipe, id string) { r.ID = id }),
		steps:   newCollection(store, model.RecipeItemCollection, func(s *model.RecipeStep, id string) { s.ID = id }),
	}
}

// Create stores a recipe for videoID and one document per step. Steps are
// validated before anything is written.
func (r *RecipeRepository) Create(ctx context.Context, videoID string, structured *model.StructuredRecipe) (*model.Recipe, []model.RecipeStep, error) {
	now := time.Now().UTC()
	recipe := &model.Recipe{
		VideoID:         videoID,
		Title:           structured.Recipe.Title,
		Summary:         structured.Recipe.Summary,
		AdditionalNotes: structured.Recipe.AdditionalNotes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := Validator().Struct(recipe); err != nil {
		return nil, nil, fmt.Errorf("invalid recipe: %w", err)
	}
	for i := range structured.RecipeItems {
		if err := Validator().Struct(&structured.RecipeItems[i]); err != nil {
			return nil, nil, fmt.Errorf("invalid recipe step %d: %w", i+1, err)
		}
	}

	recipeID, err := r.recipes.create(ctx, recipe)
	if err != nil {
		return nil, nil, err
	}
	steps := make([]model.RecipeStep, 0, len(structured.RecipeItems))
	var errs []error
	for _, item := range structured.RecipeItems {
		step := item
		step.ID = ""
		step.RecipeID = recipeID
		if _, err := r.steps.create(ctx, &step); err != nil {
			errs = append(errs, err)
			continue
		}
		steps = append(steps, step)
	}
	return recipe, steps, errors.Join(errs...)
}

// Get returns a recipe and its steps ordered by stepOrder.
func (r *RecipeRepository) Get(ctx context.Context, id string) (*model.Recipe, []model.RecipeStep, error) {
	recipe, err := r.recipes.get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	found, err := r.steps.query(ctx, "recipeId", id, 0)
	if err != nil {
		return nil, nil, err
	}
	steps := make([]model.RecipeStep, 0, len(found))
	for _, s := range found {
		steps = append(steps, *s)
	}
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].StepOrder < steps[j].StepOrder })
	return recipe, steps, nil
}

// FindByVideo returns the recipes generated for a video.
func (r *RecipeRepository) FindByVideo(ctx context.Context, videoID string) ([]*model.Recipe, error) {
	return r.recipes.query(ctx, "videoId", videoID, 0)
}

// NutritionRepository persists one nutrition record per video, keyed by the
// video id.
type NutritionRepository struct {
	c collection[model.NutritionRecord]
}

func NewNutritionRepository(store cloud.DocumentStore) *NutritionRepository {
	return &NutritionRepository{c: newCollection[model.NutritionRecord](store, model.NutritionCollection, nil)}
}

func (r *NutritionRepository) Save(ctx context.Context, record *model.NutritionRecord) error {
	return r.c.set(ctx, record.VideoID, record)
}

func (r *NutritionRepository) Get(ctx context.Context, videoID string) (*model.NutritionRecord, error) {
	return r.c.get(ctx, videoID)
}
