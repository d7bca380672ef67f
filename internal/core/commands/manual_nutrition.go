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
	"errors"
	"fmt"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/cor"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/services"
)

// ManualNutrition estimates the nutrition of a confirmed manual recipe.
type ManualNutrition struct {
	cor.BaseCommand
	estimator *services.NutritionEstimator
}

func NewManualNutrition(name string, estimator *services.NutritionEstimator) *ManualNutrition {
	return &ManualNutrition{BaseCommand: manualCommand(name), estimator: estimator}
}

func (m *ManualNutrition) Execute(context cor.Context) {
	log := manualLog(context)
	if log.Recipe == nil {
		m.Fail(context, errors.New("manual recipe has no generated recipe"))
		return
	}
	result := m.estimator.Estimate(context.GetContext(), log.Recipe.Text())
	if !result.Success() {
		m.Fail(context, fmt.Errorf("nutrition estimation failed: %w", result.Err))
		return
	}
	m.Succeed(context)
	context.Add(GetNutritionParameterName(), result.Value)
}
