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
// Package api holds the thin gin routers in front of the two workflows and
// the video read model. Handlers translate requests into workflow calls and
// workflow errors into status codes; no pipeline logic lives here.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/cloud"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/services"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/workflow"
)

// UserHeader carries the caller's user id. Requests without it act as the
// configured default user.
const UserHeader = "X-User-Id"

// API bundles what the routers need.
type API struct {
	ingestion     *workflow.RecipeIngestionWorkflow
	manual        *workflow.ManualRecipeWorkflow
	videos        *services.VideoService
	runs          services.RunRecorder
	tools         []string
	defaultUserID string
}

func New(config *cloud.Config, ingestion *workflow.RecipeIngestionWorkflow, manual *workflow.ManualRecipeWorkflow) *API {
	return &API{
		ingestion:     ingestion,
		manual:        manual,
		videos:        ingestion.Videos(),
		runs:          ingestion.Runs(),
		tools:         []string{config.Tools.YtDlp, config.Tools.FFmpeg, config.Tools.FFprobe},
		defaultUserID: config.Application.DefaultUserID,
	}
}

// Register adds every route to r, normally the /api/v1 group.
func (a *API) Register(r *gin.RouterGroup) {
	a.Recipes(r)
	a.ManualRecipes(r)
	a.Videos(r)
	a.Dashboard(r)
}

func (a *API) userID(c *gin.Context) string {
	if id := c.GetHeader(UserHeader); len(id) > 0 {
		return id
	}
	return a.defaultUserID
}

// abort maps workflow and store errors to a status code and a JSON error.
func abort(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, workflow.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, workflow.ErrLogNotFound), errors.Is(err, cloud.ErrDocumentNotFound):
		status = http.StatusNotFound
	case errors.Is(err, workflow.ErrInvalidState):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
