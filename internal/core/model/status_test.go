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

package model_test

import (
	"testing"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanAdvanceTo(t *testing.T) {
	tests := []struct {
		from, to model.LogStatus
		want     bool
	}{
		{model.StatusProcessing, model.StatusTranscribed, true},
		{model.StatusTranscribed, model.StatusAnalyzed, true},
		{model.StatusAnalyzed, model.StatusCompleted, true},
		{model.StatusProcessing, model.StatusAnalyzed, true},
		{model.StatusAnalyzed, model.StatusTranscribed, false},
		{model.StatusTranscribed, model.StatusProcessing, false},
		{model.StatusCompleted, model.StatusError, false},
		{model.StatusError, model.StatusProcessing, false},
		{model.StatusAnalyzed, model.StatusError, true},
		{model.StatusProcessing, model.StatusInitialGenerated, true},
		{model.StatusInitialGenerated, model.StatusUpdated, true},
		{model.StatusUpdated, model.StatusUpdated, true},
		{model.StatusUpdated, model.StatusCompleted, true},
		{model.StatusInitialGenerated, model.StatusCompleted, true},
		{model.StatusUpdated, model.StatusInitialGenerated, false},
		{model.StatusTranscribed, model.StatusInitialGenerated, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanAdvanceTo(tt.to))
		})
	}
}

func TestTransitionRejectsRegression(t *testing.T) {
	got, err := model.StatusAnalyzed.Transition(model.StatusTranscribed)
	require.ErrorIs(t, err, model.ErrInvalidTransition)
	assert.Equal(t, model.StatusAnalyzed, got)

	got, err = model.StatusAnalyzed.Transition(model.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got)
}
