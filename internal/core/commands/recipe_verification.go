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

// This file defines the optional verification step of the ingestion chain.
// It cross-checks the consolidated scene recipe against the video's title,
// description, captions and transcript with one generation call. The
// verified text replaces the scene recipe as the input of structuring and
// nutrition.
package commands

import (
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/cloud"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/cor"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/services"
)

// RecipeVerification runs the RecipeVerifier over everything extracted so
// far. It only runs when scene analysis produced a recipe to verify.
type RecipeVerification struct {
	cor.BaseCommand
	logs     *services.RecipeLogRepository
	verifier *services.RecipeVerifier
}

func NewRecipeVerification(name string, logs *services.RecipeLogRepository, verifier *services.RecipeVerifier) *RecipeVerification {
	return &RecipeVerification{BaseCommand: jobCommand(name), logs: logs, verifier: verifier}
}

func (t *RecipeVerification) IsExecutable(context cor.Context) bool {
	return t.BaseCommand.IsExecutable(context) && len(recipeText(context)) > 0
}

func (t *RecipeVerification) Execute(context cor.Context) {
	ctx := context.GetContext()
	j := job(context)
	transcript, _ := context.Get(GetTranscriptParameterName()).(*model.Transcript)
	current := analysis(context)

	result := t.verifier.Verify(ctx, metadata(context), transcript, current)
	var fields []cloud.Update
	if result.Success() {
		current.VerifiedRecipe = result.Value
		fields = append(fields, cloud.Update{Path: "analysis.verified_recipe", Value: result.Value})
	}
	if err := t.logs.AppendStep(ctx, j.LogID, softStep(ctx, StepVerification, j, result.Err), fields...); err != nil {
		t.Fail(context, err)
		return
	}
	t.Succeed(context)
}
