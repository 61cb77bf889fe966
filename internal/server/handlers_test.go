package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridgate/internal/adapter"
	"gridgate/internal/core"
	"gridgate/internal/grid"
)

type fakeGenerator struct {
	text    string
	err     error
	calls   int
	lastKey string
	payload *grid.JobPayload
}

func (f *fakeGenerator) Generate(_ context.Context, apiKey string, payload *grid.JobPayload) (string, error) {
	f.calls++
	f.lastKey = apiKey
	f.payload = payload
	return f.text, f.err
}

type fakeModels struct {
	list     *core.ModelsResponse
	listErr  error
	supports bool
}

func (f *fakeModels) List(context.Context) (*core.ModelsResponse, error) {
	return f.list, f.listErr
}

func (f *fakeModels) Supports(context.Context, string) bool {
	return f.supports
}

type fakeLimiter struct {
	allow bool
	err   error
}

func (f *fakeLimiter) Allow(context.Context, string) (bool, error) { return f.allow, f.err }
func (f *fakeLimiter) Close() error                                { return nil }

func testOptions() adapter.Options {
	return adapter.Options{
		DefaultModel:               "grid-default-model",
		DefaultMaxTokensChat:       150,
		DefaultMaxTokensCompletion: 50,
	}
}

func newTestHandler(gen *fakeGenerator, cfg HandlerConfig) *Handler {
	opts := testOptions()
	if cfg.Translator == nil {
		cfg.Translator = adapter.NewTranslator(opts)
	}
	if cfg.Emitter == nil {
		cfg.Emitter = adapter.NewEmitter(opts)
	}
	if cfg.Generator == nil {
		cfg.Generator = gen
	}
	if cfg.Models == nil {
		cfg.Models = &fakeModels{supports: true}
	}
	return NewHandler(cfg)
}

func doChat(t *testing.T, h *Handler, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, h.ChatCompletion(e.NewContext(req, rec)))
	return rec
}

func doCompletion(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/completions", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, h.Completion(e.NewContext(req, rec)))
	return rec
}

func TestChatCompletionSuccess(t *testing.T) {
	gen := &fakeGenerator{text: "hello from the grid"}
	h := newTestHandler(gen, HandlerConfig{})

	rec := doChat(t, h, `{"apiKey": "k", "messages": [{"role": "user", "content": "Hi"}]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp core.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "chat.completion", resp.Object)
	assert.Equal(t, "grid-default-model", resp.Model)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "hello from the grid", resp.Choices[0].Message.Content)
	assert.Equal(t, 0, resp.Usage.PromptTokens)
	assert.Equal(t, 4, resp.Usage.CompletionTokens)
	assert.Equal(t, "k", gen.lastKey)
}

func TestChatCompletionMissingAPIKey(t *testing.T) {
	gen := &fakeGenerator{text: "never"}
	h := newTestHandler(gen, HandlerConfig{})

	rec := doChat(t, h, `{"messages": [{"role": "user", "content": "Hi"}]}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error": "Missing API key"}`, rec.Body.String())
	assert.Zero(t, gen.calls, "no upstream call without credentials")
}

func TestChatCompletionHeaderKeyWinsOverBody(t *testing.T) {
	gen := &fakeGenerator{text: "ok"}
	h := newTestHandler(gen, HandlerConfig{})

	rec := doChat(t, h,
		`{"apiKey": "body-key", "messages": [{"role": "user", "content": "Hi"}]}`,
		map[string]string{"Authorization": "Bearer header-key"},
	)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "header-key", gen.lastKey)
}

func TestChatCompletionMissingMessages(t *testing.T) {
	gen := &fakeGenerator{}
	h := newTestHandler(gen, HandlerConfig{})

	rec := doChat(t, h, `{"apiKey": "k", "messages": []}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error": "Missing messages"}`, rec.Body.String())
	assert.Zero(t, gen.calls)
}

func TestChatCompletionMalformedBody(t *testing.T) {
	h := newTestHandler(&fakeGenerator{}, HandlerConfig{})
	rec := doChat(t, h, `{"messages": [`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error": "Invalid request body"}`, rec.Body.String())
}

func TestChatCompletionUpstreamErrorStaysGeneric(t *testing.T) {
	gen := &fakeGenerator{err: core.NewUpstreamError(errors.New("worker pool on fire at 10.0.0.3"))}
	h := newTestHandler(gen, HandlerConfig{})

	rec := doChat(t, h, `{"apiKey": "k", "messages": [{"role": "user", "content": "Hi"}]}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error": "Internal server error"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "10.0.0.3")
}

func TestChatCompletionStreaming(t *testing.T) {
	gen := &fakeGenerator{text: "alpha beta"}
	h := newTestHandler(gen, HandlerConfig{})

	rec := doChat(t, h, `{"apiKey": "k", "stream": true, "messages": [{"role": "user", "content": "Hi"}]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "data: "))
	assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))
	assert.Contains(t, body, `"alpha "`)
	assert.Contains(t, body, `"beta"`)
	assert.Contains(t, body, "chat.completion.chunk")
}

func TestChatCompletionRateLimited(t *testing.T) {
	gen := &fakeGenerator{}
	h := newTestHandler(gen, HandlerConfig{Limiter: &fakeLimiter{allow: false}})

	rec := doChat(t, h, `{"apiKey": "k", "messages": [{"role": "user", "content": "Hi"}]}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error": "Rate limit exceeded"}`, rec.Body.String())
	assert.Zero(t, gen.calls)
}

func TestChatCompletionLimiterFailureAdmits(t *testing.T) {
	gen := &fakeGenerator{text: "ok"}
	h := newTestHandler(gen, HandlerConfig{Limiter: &fakeLimiter{err: errors.New("redis down")}})

	rec := doChat(t, h, `{"apiKey": "k", "messages": [{"role": "user", "content": "Hi"}]}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, gen.calls)
}

func TestChatCompletionRejectsUnknownModel(t *testing.T) {
	gen := &fakeGenerator{}
	h := newTestHandler(gen, HandlerConfig{
		Models:         &fakeModels{supports: false},
		ValidateModels: true,
	})

	rec := doChat(t, h, `{"apiKey": "k", "model": "made-up", "messages": [{"role": "user", "content": "Hi"}]}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error": "Unknown model: made-up"}`, rec.Body.String())
	assert.Zero(t, gen.calls)
}

func TestCompletionSuccess(t *testing.T) {
	gen := &fakeGenerator{text: "once upon a time"}
	h := newTestHandler(gen, HandlerConfig{})

	rec := doCompletion(t, h, `{"apiKey": "k", "prompt": "tell me a story"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp core.CompletionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "text_completion", resp.Object)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "once upon a time", resp.Choices[0].Text)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	assert.Equal(t, "tell me a story", gen.payload.Prompt)
	assert.Equal(t, 50, gen.payload.Params.MaxLength)
}

func TestCompletionMissingPrompt(t *testing.T) {
	gen := &fakeGenerator{}
	h := newTestHandler(gen, HandlerConfig{})

	rec := doCompletion(t, h, `{"apiKey": "k"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error": "Missing prompt"}`, rec.Body.String())
	assert.Zero(t, gen.calls)
}

func TestCompletionNeverStreams(t *testing.T) {
	gen := &fakeGenerator{text: "plain"}
	h := newTestHandler(gen, HandlerConfig{})

	rec := doCompletion(t, h, `{"apiKey": "k", "prompt": "p", "stream": true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
	assert.NotContains(t, rec.Body.String(), "data:")
}

func TestListModels(t *testing.T) {
	h := newTestHandler(nil, HandlerConfig{
		Generator: &fakeGenerator{},
		Models: &fakeModels{list: &core.ModelsResponse{
			Object: "list",
			Data:   []core.Model{{ID: "m1", Object: "model", OwnedBy: "aipowergrid"}},
		}},
	})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.ListModels(e.NewContext(req, rec)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp core.ModelsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "list", resp.Object)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "m1", resp.Data[0].ID)
}

func TestListModelsUpstreamFailure(t *testing.T) {
	h := newTestHandler(nil, HandlerConfig{
		Generator: &fakeGenerator{},
		Models:    &fakeModels{listErr: core.NewUpstreamError(errors.New("grid 502"))},
	})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.ListModels(e.NewContext(req, rec)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error": "Internal server error"}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	h := newTestHandler(&fakeGenerator{}, HandlerConfig{})
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, h.Health(e.NewContext(req, rec)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestHandleErrorClientCancel(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, handleError(c, context.Canceled))
	assert.Empty(t, rec.Body.String(), "nothing written for a gone client")
}

func TestRoutesWired(t *testing.T) {
	gen := &fakeGenerator{text: "ok"}
	srv := New(newTestHandler(gen, HandlerConfig{}), nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/chat/completions",
		strings.NewReader(`{"apiKey": "k", "messages": [{"role": "user", "content": "Hi"}]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
