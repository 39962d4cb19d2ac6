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

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// requestLogger attaches a request-scoped logger to the request context and
// logs each request once it completes
func requestLogger(base logr.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		logger := base.WithValues("method", c.Request.Method, "path", c.Request.URL.Path)
		c.Request = c.Request.WithContext(log.IntoContext(c.Request.Context(), logger))

		c.Next()

		logger = logger.WithValues(
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		)
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.Last().Err, "Request failed")
			return
		}
		logger.V(1).Info("Handled request")
	}
}
