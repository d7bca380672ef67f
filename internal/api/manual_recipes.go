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
	"github.com/jaycherian/gcp-go-recipe-extraction/internal/core/model"
)

type startManualRecipeRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// ManualRecipes registers the prompt-driven recipe routes.
func (a *API) ManualRecipes(r *gin.RouterGroup) {
	manual := r.Group("/manual-recipes")
	{
		manual.POST("", func(c *gin.Context) {
			var req startManualRecipeRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			log, err := a.manual.Start(c.Request.Context(), a.userID(c), req.Prompt)
			if err != nil {
				abort(c, err)
				return
			}
			c.JSON(http.StatusCreated, log)
		})

		manual.GET("/:id", func(c *gin.Context) {
			log, err := a.manual.Get(c.Request.Context(), c.Param("id"))
			if err != nil {
				abort(c, err)
				return
			}
			c.JSON(http.StatusOK, log)
		})

		manual.PATCH("/:id", func(c *gin.Context) {
			var updates model.ManualRecipeUpdates
			if err := c.ShouldBindJSON(&updates); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			log, err := a.manual.Update(c.Request.Context(), c.Param("id"), updates)
			if err != nil {
				abort(c, err)
				return
			}
			c.JSON(http.StatusOK, log)
		})

		manual.POST("/:id/confirm", func(c *gin.Context) {
			log, err := a.manual.Confirm(c.Request.Context(), c.Param("id"))
			if err != nil {
				abort(c, err)
				return
			}
			c.JSON(http.StatusOK, log)
		})
	}
}
