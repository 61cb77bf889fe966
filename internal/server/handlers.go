// Package server provides HTTP handlers and server setup for the grid adapter.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"gridgate/internal/adapter"
	"gridgate/internal/core"
	"gridgate/internal/grid"
	"gridgate/internal/ratelimit"
)

// Generator runs one grid job from submission to finished text.
// *grid.Poller satisfies this.
type Generator interface {
	Generate(ctx context.Context, apiKey string, payload *grid.JobPayload) (string, error)
}

// ModelSource serves and validates the grid model list.
// *models.Registry satisfies this.
type ModelSource interface {
	List(ctx context.Context) (*core.ModelsResponse, error)
	Supports(ctx context.Context, model string) bool
}

// Handler holds the HTTP handlers
type Handler struct {
	translator *adapter.Translator
	emitter    *adapter.Emitter
	generator  Generator
	models     ModelSource
	limiter    ratelimit.Limiter // nil disables the gate

	// validateModels rejects models the grid does not advertise with a
	// 400 before any upstream call.
	validateModels bool
}

// HandlerConfig wires the handler's collaborators.
type HandlerConfig struct {
	Translator     *adapter.Translator
	Emitter        *adapter.Emitter
	Generator      Generator
	Models         ModelSource
	Limiter        ratelimit.Limiter
	ValidateModels bool
}

// NewHandler creates a new handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		translator:     cfg.Translator,
		emitter:        cfg.Emitter,
		generator:      cfg.Generator,
		models:         cfg.Models,
		limiter:        cfg.Limiter,
		validateModels: cfg.ValidateModels,
	}
}

// ChatCompletion handles POST /v1/chat/completions
func (h *Handler) ChatCompletion(c echo.Context) error {
	var req core.ChatRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("Invalid request body", err))
	}

	apiKey := ResolveAPIKey(c, req.APIKey)
	if apiKey == "" {
		return handleError(c, core.NewAuthenticationError("Missing API key"))
	}

	if len(req.Messages) == 0 {
		return handleError(c, core.NewInvalidRequestError("Missing messages", nil))
	}

	if err := h.admit(c, apiKey); err != nil {
		return err
	}

	model := h.translator.ResolveModel(req.Model)
	if h.validateModels && !h.models.Supports(c.Request().Context(), model) {
		return handleError(c, core.NewInvalidRequestError("Unknown model: "+model, nil))
	}

	payload := h.translator.ChatPayload(&req)
	text, err := h.generator.Generate(c.Request().Context(), apiKey, payload)
	if err != nil {
		return handleError(c, err)
	}

	if req.Stream {
		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set("Cache-Control", "no-cache")
		c.Response().Header().Set("Connection", "keep-alive")
		c.Response().WriteHeader(http.StatusOK)

		if err := h.emitter.StreamChat(c.Request().Context(), c.Response(), text, model); err != nil {
			// Headers are gone; nothing useful can be returned to the
			// client beyond what the stream already carried.
			slog.Warn("stream aborted", "error", err)
		}
		return nil
	}

	return c.JSON(http.StatusOK, h.emitter.ChatResponse(text, model))
}

// Completion handles POST /v1/completions (legacy shape, never streamed)
func (h *Handler) Completion(c echo.Context) error {
	var req core.CompletionRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("Invalid request body", err))
	}

	apiKey := ResolveAPIKey(c, req.APIKey)
	if apiKey == "" {
		return handleError(c, core.NewAuthenticationError("Missing API key"))
	}

	if req.Prompt == "" {
		return handleError(c, core.NewInvalidRequestError("Missing prompt", nil))
	}

	if err := h.admit(c, apiKey); err != nil {
		return err
	}

	model := h.translator.ResolveModel(req.Model)
	if h.validateModels && !h.models.Supports(c.Request().Context(), model) {
		return handleError(c, core.NewInvalidRequestError("Unknown model: "+model, nil))
	}

	payload := h.translator.CompletionPayload(&req)
	text, err := h.generator.Generate(c.Request().Context(), apiKey, payload)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(http.StatusOK, h.emitter.CompletionResponse(text, model))
}

// ListModels handles GET /v1/models
func (h *Handler) ListModels(c echo.Context) error {
	resp, err := h.models.List(c.Request().Context())
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(http.StatusOK, resp)
}

// Health handles GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// admit consults the rate-limit gate before the adapter runs. The gate
// fails open: a limiter backend error never blocks a request.
func (h *Handler) admit(c echo.Context, apiKey string) error {
	if h.limiter == nil {
		return nil
	}
	ok, err := h.limiter.Allow(c.Request().Context(), apiKey)
	if err != nil {
		slog.Warn("rate limiter unavailable, admitting request", "error", err)
		return nil
	}
	if !ok {
		return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
			"error": "Rate limit exceeded",
		})
	}
	return nil
}

// handleError converts adapter errors to HTTP responses. Upstream detail
// on the wrapped error is logged here and never serialized to the client.
func handleError(c echo.Context, err error) error {
	// Client went away; there is no one to answer.
	if errors.Is(err, context.Canceled) {
		slog.Info("request canceled by client", "path", c.Path())
		return nil
	}

	var gatewayErr *core.GatewayError
	if errors.As(err, &gatewayErr) {
		if gatewayErr.HTTPStatusCode() >= http.StatusInternalServerError {
			slog.Error("request failed", "path", c.Path(), "type", gatewayErr.Type, "error", gatewayErr.Unwrap())
		} else {
			slog.Warn("request rejected", "path", c.Path(), "type", gatewayErr.Type, "message", gatewayErr.Message)
		}
		return c.JSON(gatewayErr.HTTPStatusCode(), gatewayErr.ToJSON())
	}

	// Fallback for unexpected errors
	slog.Error("unexpected error", "path", c.Path(), "error", err)
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error": "Internal server error",
	})
}
