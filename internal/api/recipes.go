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
	"net/http"

	"github.com/gin-gonic/gin"
)

type submitRecipeRequest struct {
	VideoURL string `json:"videoUrl" binding:"required,url"`
}

// Recipes registers the ingestion routes:
//   - POST /recipes: submit a video URL, answered with 202 and the new log.
//   - GET /recipes/logs/:id: poll a recipe log.
func (a *API) Recipes(r *gin.RouterGroup) {
	recipes := r.Group("/recipes")
	{
		recipes.POST("", func(c *gin.Context) {
			var req submitRecipeRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			log, err := a.ingestion.Submit(c.Request.Context(), a.userID(c), req.VideoURL)
			if err != nil {
				abort(c, err)
				return
			}
			c.JSON(http.StatusAccepted, log)
		})

		recipes.GET("/logs/:id", func(c *gin.Context) {
			log, err := a.ingestion.Get(c.Request.Context(), c.Param("id"))
			if err != nil {
				abort(c, err)
				return
			}
			c.JSON(http.StatusOK, log)
		})
	}
}
