// Copyright (c) 2026 Heimursaga. All rights reserved.

package api

import (
	"net/http"

	"github.com/heimursaga/api/internal/platform/constants"
	"github.com/heimursaga/api/internal/platform/postgres"
	"github.com/heimursaga/api/internal/platform/redis"
	"github.com/heimursaga/api/internal/platform/respond"
)

// handleHealth is the liveness probe: the process is up and serving.
//
// GET /health
func (server *Server) handleHealth(writer http.ResponseWriter, request *http.Request) {
	respond.JSON(writer, http.StatusOK, map[string]string{
		constants.FieldStatus: "ok",
		"version":             constants.AppVersion,
	})
}

// handleReady is the readiness probe: backing stores are reachable.
//
// GET /ready
func (server *Server) handleReady(writer http.ResponseWriter, request *http.Request) {
	checks := map[string]string{}
	healthy := true

	if err := postgres.Ping(request.Context(), server.pool); err != nil {
		checks["postgres"] = err.Error()
		healthy = false
	} else {
		checks["postgres"] = "ok"
	}

	if err := redis.Ping(request.Context(), server.cache); err != nil {
		checks["redis"] = err.Error()
		healthy = false
	} else {
		checks["redis"] = "ok"
	}

	status := http.StatusOK
	statusText := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		statusText = "degraded"
	}

	respond.JSON(writer, status, map[string]any{
		constants.FieldStatus: statusText,
		constants.FieldChecks: checks,
	})
}
