package adapter

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"gridgate/internal/core"
)

// Emitter renders finished job text as OpenAI-shaped envelopes.
type Emitter struct {
	opts Options
}

// NewEmitter creates an emitter with the given policies.
func NewEmitter(opts Options) *Emitter {
	return &Emitter{opts: opts}
}

// ExtractAnswer strips hidden reasoning from generated text. When extraction
// is enabled and the marker occurs, only the trimmed text after the first
// occurrence is kept; otherwise the whole trimmed text is returned.
// This runs before tokenization, for both streaming and non-streaming output.
func (e *Emitter) ExtractAnswer(text string) string {
	if !e.opts.AnswerExtractionEnabled || e.opts.AnswerMarker == "" {
		return strings.TrimSpace(text)
	}
	idx := strings.Index(text, e.opts.AnswerMarker)
	if idx < 0 {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(text[idx+len(e.opts.AnswerMarker):])
}

// splitTokens cuts text on single spaces, mirroring the split the usage
// counts are defined over. Not a tokenizer; the wire contract is this split.
func splitTokens(text string) []string {
	return strings.Split(text, " ")
}

// fingerprint returns a fresh opaque correlation tag for one response.
func fingerprint() string {
	return "fp_" + uuid.NewString()
}

// usageFor computes the usage block for generated text. The prompt is
// always counted as zero.
func usageFor(text string) core.Usage {
	n := len(splitTokens(text))
	return core.Usage{
		PromptTokens:     0,
		CompletionTokens: n,
		TotalTokens:      n,
	}
}

// ChatResponse builds the non-streaming chat completion envelope.
func (e *Emitter) ChatResponse(text, model string) *core.ChatResponse {
	content := e.ExtractAnswer(text)
	return &core.ChatResponse{
		ID:                uuid.NewString(),
		Object:            "chat.completion",
		Created:           time.Now().Unix(),
		Model:             model,
		SystemFingerprint: fingerprint(),
		Choices: []core.Choice{
			{
				Index:        0,
				Message:      core.Message{Role: "assistant", Content: content},
				FinishReason: "stop",
			},
		},
		Usage: usageFor(content),
	}
}

// CompletionResponse builds the legacy text completion envelope.
func (e *Emitter) CompletionResponse(text, model string) *core.CompletionResponse {
	content := e.ExtractAnswer(text)
	return &core.CompletionResponse{
		ID:      uuid.NewString(),
		Object:  "text_completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []core.CompletionChoice{
			{
				Text:         content,
				Index:        0,
				Logprobs:     nil,
				FinishReason: "stop",
			},
		},
		Usage: usageFor(content),
	}
}
