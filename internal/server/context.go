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
	"net/http"

	"github.com/authzed/controller-idioms/typedctx"
	"github.com/gin-gonic/gin"
)

// CtxSnapshot is the snapshot a request was pinned to when it arrived
var CtxSnapshot = typedctx.NewKey[*Snapshot]()

// pinSnapshot stores the current snapshot in the request context so that
// every step of the request reads the same graph
func pinSnapshot(holder *Holder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if snap := holder.Load(); snap != nil {
			c.Request = c.Request.WithContext(CtxSnapshot.WithValue(c.Request.Context(), snap))
		}
		c.Next()
	}
}

// snapshotFrom returns the pinned snapshot, writing a 503 when there is none
func snapshotFrom(c *gin.Context) (*Snapshot, bool) {
	snap, ok := CtxSnapshot.Value(c.Request.Context())
	if !ok || snap == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "no dependency graph loaded",
			Code:  CodeNotLoaded,
		})
		return nil, false
	}
	return snap, true
}
