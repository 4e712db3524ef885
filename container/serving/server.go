/*
 *     Copyright 2023 The Stitch Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package serving

import (
	"errors"
	"io"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/mcuadros/go-gin-prometheus"

	"github.com/stitchml/stitch/internal/sterrors"
	logger "github.com/stitchml/stitch/internal/stlog"
)

const PrometheusSubsystemName = "stitch_serving"

// NewRouter builds the inference HTTP surface: a liveness probe on /healthy
// and the invocation endpoint on /invocations.
func NewRouter(h *Handler, verbose bool) *gin.Engine {
	// Set mode.
	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Prometheus metrics.
	p := ginprometheus.NewPrometheus(PrometheusSubsystemName)
	// URL removes query string.
	// Prometheus metrics need to reduce label,
	// refer to https://prometheus.io/docs/practices/instrumentation/#do-not-overuse-labels.
	p.ReqCntURLLabelMappingFn = func(c *gin.Context) string {
		return c.Request.URL.Path
	}
	p.Use(r)

	// Middleware
	r.Use(gin.Recovery())
	r.Use(ginzap.Ginzap(logger.GinLogger.Desugar(), time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(logger.GinLogger.Desugar(), true))

	r.GET("/healthy", func(c *gin.Context) {
		if !h.Ready() {
			c.Status(http.StatusServiceUnavailable)
			return
		}
		c.Status(http.StatusOK)
	})

	r.POST("/invocations", func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}

		payload, contentType, err := h.Invoke(body, c.ContentType(), c.GetHeader("Accept"))
		if err != nil {
			c.JSON(invocationStatus(err), gin.H{"message": err.Error()})
			return
		}
		c.Data(http.StatusOK, contentType, payload)
	})

	return r
}

// invocationStatus maps invocation errors to HTTP statuses. Media type
// negotiation failures are 415, bad payloads are 400, everything else is a
// server fault.
func invocationStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnsupportedMediaType), errors.Is(err, ErrUnsupportedAccept):
		return http.StatusUnsupportedMediaType
	case sterrors.IsKind(err, sterrors.KindPayload):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
