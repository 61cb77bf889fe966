// Package adapter translates between the OpenAI wire shapes and the grid's
// asynchronous job API, and renders finished jobs as JSON or SSE responses.
package adapter

import (
	"strings"
	"time"

	"gridgate/internal/core"
	"gridgate/internal/grid"
)

const (
	defaultTemperature = 0.7
	defaultTopP        = 0.9
)

// Options holds the request-shaping and emission policies.
type Options struct {
	// DefaultModel is submitted when the request does not name a model.
	DefaultModel string
	// DefaultMaxTokensChat / DefaultMaxTokensCompletion fill in max_length
	// when the request omits max_tokens.
	DefaultMaxTokensChat       int
	DefaultMaxTokensCompletion int
	// SystemDirective, when non-empty, is prepended to every instruction,
	// separated from the conversation by exactly one blank line.
	SystemDirective string
	// AnswerMarker splits hidden reasoning from the final answer.
	AnswerMarker string
	// AnswerExtractionEnabled turns marker extraction on.
	AnswerExtractionEnabled bool
	// StreamTokenDelay paces token events during streaming. Zero disables
	// the delay; ordering is preserved either way.
	StreamTokenDelay time.Duration
}

// Translator builds grid job payloads from inbound requests.
type Translator struct {
	opts Options
}

// NewTranslator creates a translator with the given policies.
func NewTranslator(opts Options) *Translator {
	return &Translator{opts: opts}
}

// ChatInstruction flattens chat messages into the single instruction string
// the grid understands: one "role: content" block per message, in input
// order, blocks separated by a blank line.
func (t *Translator) ChatInstruction(messages []core.Message) string {
	parts := make([]string, 0, len(messages)+1)
	if t.opts.SystemDirective != "" {
		parts = append(parts, t.opts.SystemDirective)
	}
	for _, msg := range messages {
		parts = append(parts, msg.Role+": "+msg.Content)
	}
	return strings.Join(parts, "\n\n")
}

// CompletionInstruction forwards a raw prompt verbatim, with the system
// directive prepended when configured.
func (t *Translator) CompletionInstruction(prompt string) string {
	if t.opts.SystemDirective == "" {
		return prompt
	}
	return t.opts.SystemDirective + "\n\n" + prompt
}

// ChatPayload builds the job payload for a chat request.
func (t *Translator) ChatPayload(req *core.ChatRequest) *grid.JobPayload {
	return t.payload(t.ChatInstruction(req.Messages), req.Model, req.Temperature, req.MaxTokens, t.opts.DefaultMaxTokensChat)
}

// CompletionPayload builds the job payload for a legacy completion request.
func (t *Translator) CompletionPayload(req *core.CompletionRequest) *grid.JobPayload {
	return t.payload(t.CompletionInstruction(req.Prompt), req.Model, req.Temperature, req.MaxTokens, t.opts.DefaultMaxTokensCompletion)
}

// ResolveModel returns the model a request will be submitted with.
func (t *Translator) ResolveModel(model string) string {
	if model == "" {
		return t.opts.DefaultModel
	}
	return model
}

// payload assembles the grid job body. Building it has no side effects.
func (t *Translator) payload(instruction, model string, temperature *float64, maxTokens *int, defaultMaxTokens int) *grid.JobPayload {
	temp := defaultTemperature
	if temperature != nil {
		temp = *temperature
	}
	maxLength := defaultMaxTokens
	if maxTokens != nil {
		maxLength = *maxTokens
	}

	return &grid.JobPayload{
		Prompt:         instruction,
		Models:         []string{t.ResolveModel(model)},
		N:              1,
		TrustedWorkers: false,
		Params: grid.JobParams{
			MaxContextLength: 512,
			MaxLength:        maxLength,
			Temperature:      temp,
			TopP:             defaultTopP,
			N:                1,
			Width:            512,
			Height:           512,
			Steps:            30,
			SamplerName:      "DDIM",
			CfgScale:         7.5,
			Tiling:           false,
			ClipSkip:         1,
			PostProcessing:   []string{},
			Karras:           false,
			HiresFix:         false,
		},
	}
}
