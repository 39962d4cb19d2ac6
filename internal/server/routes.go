/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package server

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the graph API on rg
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	g := rg.Group("/graph")
	{
		g.GET("", h.HandleGetGraph)
		g.POST("", h.HandleUpload)
		g.GET("/document", h.HandleGetDocument)
		g.POST("/reset", h.HandleReset)
	}

	jobs := rg.Group("/jobs")
	{
		jobs.GET("", h.HandleListJobs)
		jobs.GET("/:name", h.HandleCheck)
		jobs.GET("/:name/upstream", h.HandleUpstream)
		jobs.GET("/:name/downstream", h.HandleDownstream)
		jobs.GET("/:name/relevant", h.HandleRelevant)
	}

	rg.GET("/check", h.HandleCheckQuery)
	rg.GET("/roots", h.HandleRoots)
	rg.GET("/leaves", h.HandleLeaves)
	rg.GET("/cycles", h.HandleCycles)
	rg.GET("/path", h.HandlePath)
}
