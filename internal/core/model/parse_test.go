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
	"encoding/json"
	"errors"
	"testing"

	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanModelOutput(t *testing.T) {
	tests := map[string]struct {
		in   string
		want string
	}{
		"plain":          {in: ` {"a":1} `, want: `{"a":1}`},
		"json fence":     {in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		"bare fence":     {in: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		"upper tag":      {in: "```JSON\n{\"a\":1}```", want: `{"a":1}`},
		"trailing prose": {in: "```json\n{\"a\":1}\n```\nEnjoy!", want: `{"a":1}`},
		"quoted":         {in: `"{"a":1}"`, want: `{"a":1}`},
		"lone closing":   {in: "{\"ingredients\":[]}\n```", want: `{"ingredients":[]}`},
		"leading prose":  {in: "Here is the recipe:\n```json\n{\"a\":1}\n```", want: `{"a":1}`},
		"prose around":   {in: "Sure!\n```\n[1,2]\n```\nLet me know.", want: `[1,2]`},
		"unclosed":       {in: "```json\n{\"a\":1}", want: `{"a":1}`},
		"empty":          {in: "  ", want: ""},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, model.CleanModelOutput(tt.in))
		})
	}
}

func TestDecodeModelJSON(t *testing.T) {
	var out model.StructuredRecipe
	err := model.DecodeModelJSON("```json\n{\"recipe\":{\"title\":\"Soup\"},\"recipeItems\":[]}\n```", &out)
	require.NoError(t, err)
	assert.Equal(t, "Soup", out.Recipe.Title)

	err = model.DecodeModelJSON("Here you go:\n{\"recipe\":{\"title\":\"Stew\"},\"recipeItems\":[]}\n```", &out)
	require.NoError(t, err)
	assert.Equal(t, "Stew", out.Recipe.Title)

	err = model.DecodeModelJSON("", &out)
	assert.True(t, errors.Is(err, model.ErrEmptyModelOutput))

	err = model.DecodeModelJSON("Sorry, I can't help with that.", &out)
	assert.ErrorContains(t, err, "invalid JSON response")
}

func TestLooseStringAcceptsNumbers(t *testing.T) {
	var r model.GeneratedRecipe
	require.NoError(t, json.Unmarshal([]byte(`{"title":"x","servings":4,"prepTime":"10 minutes","cookTime":null}`), &r))

	assert.Equal(t, model.LooseString("4"), r.Servings)
	assert.Equal(t, model.LooseString("10 minutes"), r.PrepTime)
	assert.Equal(t, model.LooseString(""), r.CookTime)

	assert.Error(t, json.Unmarshal([]byte(`{"servings":[1]}`), &r))
}

func TestResult(t *testing.T) {
	ok := model.Ok("transcript")
	assert.True(t, ok.Success())
	assert.Empty(t, ok.Error())

	failed := model.Fail[string](errors.New("download failed"))
	assert.False(t, failed.Success())
	assert.Equal(t, "download failed", failed.Error())
	_, err := failed.Get()
	assert.Error(t, err)

	value, err := ok.Get()
	assert.NoError(t, err)
	assert.Equal(t, "transcript", value)
}
