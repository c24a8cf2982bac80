package handlers

import (
	"context"
	"net/http"
	"time"

	"hirevoice/interview/internal/llm"
	"hirevoice/interview/internal/prompts"
	"hirevoice/interview/internal/utils"
)

const readinessTimeout = 2 * time.Second

type ReadinessCheck struct {
	Status  string `json:"status"` // "ok" | "failed"
	Message string `json:"message,omitempty"`
}

type ReadinessResponse struct {
	Status   string                    `json:"status"`  // "ready" | "not_ready"
	Service  string                    `json:"service"` // Service name
	Checks   map[string]ReadinessCheck `json:"checks"`  // Individual check results
	Pipeline map[string]interface{}    `json:"pipeline,omitempty"`
}

// DependencyCheck reports whether an external dependency is reachable.
type DependencyCheck func(ctx context.Context) error

type HealthHandler struct {
	provider      llm.Provider
	promptManager prompts.PromptProvider
	dependencies  map[string]DependencyCheck
	pipelineStats func() map[string]interface{}
}

func NewHealthHandler(provider llm.Provider, promptManager prompts.PromptProvider, dependencies map[string]DependencyCheck, pipelineStats func() map[string]interface{}) *HealthHandler {
	return &HealthHandler{
		provider:      provider,
		promptManager: promptManager,
		dependencies:  dependencies,
		pipelineStats: pipelineStats,
	}
}

func (handler *HealthHandler) HealthzHandler(writer http.ResponseWriter, request *http.Request) {
	utils.JSON(writer, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "interview",
		"version": "1.0.0",
	})
}

func (handler *HealthHandler) ReadyzHandler(writer http.ResponseWriter, request *http.Request) {
	checks := make(map[string]ReadinessCheck)
	allChecksPass := true

	// verify AI provider is initialized
	if handler.provider == nil {
		checks["provider"] = ReadinessCheck{
			Status:  "failed",
			Message: "AI provider not initialized",
		}
		allChecksPass = false
	} else {
		checks["provider"] = ReadinessCheck{Status: "ok"}
	}

	// verify prompt templates are loaded
	if handler.promptManager == nil || len(handler.promptManager.GetTemplates()) == 0 {
		checks["prompts"] = ReadinessCheck{
			Status:  "failed",
			Message: "No prompt templates loaded",
		}
		allChecksPass = false
	} else {
		checks["prompts"] = ReadinessCheck{Status: "ok"}
	}

	ctx, cancel := context.WithTimeout(request.Context(), readinessTimeout)
	defer cancel()
	for name, check := range handler.dependencies {
		if err := check(ctx); err != nil {
			checks[name] = ReadinessCheck{Status: "failed", Message: err.Error()}
			allChecksPass = false
			continue
		}
		checks[name] = ReadinessCheck{Status: "ok"}
	}

	response := ReadinessResponse{
		Service: "interview",
		Checks:  checks,
	}
	if handler.pipelineStats != nil {
		response.Pipeline = handler.pipelineStats()
	}

	if allChecksPass {
		response.Status = "ready"
		utils.JSON(writer, http.StatusOK, response)
	} else {
		response.Status = "not_ready"
		utils.JSON(writer, http.StatusServiceUnavailable, response)
	}
}
