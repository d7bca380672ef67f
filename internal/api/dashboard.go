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
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/media"
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/services"
)

// Stats is the /stats response.
type Stats struct {
	Tools []media.ToolStatus     `json:"tools"`
	Ready bool                   `json:"ready"`
	Runs  []*services.RunSummary `json:"runs,omitempty"`
}

// Dashboard registers GET /stats: external tool availability and, when runs
// are recorded, the run counts per final status.
func (a *API) Dashboard(r *gin.RouterGroup) {
	stats := r.Group("/stats")
	{
		stats.GET("", func(c *gin.Context) {
			out := Stats{Tools: media.DependencyStatus(a.tools...), Ready: true}
			for _, t := range out.Tools {
				out.Ready = out.Ready && t.Found
			}
			if a.runs != nil {
				runs, err := a.runs.Summary(c.Request.Context())
				if err != nil {
					slog.WarnContext(c.Request.Context(), "failed to load run summary", "error", err)
				}
				out.Runs = runs
			}
			c.JSON(http.StatusOK, out)
		})
	}
}
