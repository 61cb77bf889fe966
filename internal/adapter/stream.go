package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"gridgate/internal/core"
	"gridgate/internal/observability"
)

// doneSentinel terminates every stream. Consumers must treat it as a literal
// string, not JSON.
const doneSentinel = "data: [DONE]\n\n"

// StreamChat writes the finished text as a simulated token-by-token SSE
// stream: one role-establishing event, one event per space-delimited token
// (each with a trailing space except the last), one terminal finish event,
// then the [DONE] sentinel. All events share one id and creation timestamp.
//
// The caller must have set the event-stream headers before calling. If a
// write fails mid-stream, a terminal error event and the sentinel are
// attempted so the client is never left hanging on an open connection.
// Cancellation of ctx (client disconnect) aborts without further writes.
func (e *Emitter) StreamChat(ctx context.Context, w http.ResponseWriter, text, model string) error {
	observability.StreamStarted()
	defer observability.StreamEnded()

	id := uuid.NewString()
	created := time.Now().Unix()
	fp := fingerprint()
	content := e.ExtractAnswer(text)
	tokens := splitTokens(content)

	flusher, _ := w.(http.Flusher)

	// Role-establishing event: empty content, assistant role.
	role := core.ChunkResponse{
		ID:                id,
		Object:            "chat.completion.chunk",
		Created:           created,
		Model:             model,
		SystemFingerprint: fp,
		Choices:           []core.ChunkChoice{{Delta: core.Delta{Role: "assistant"}, Index: 0}},
	}
	if err := writeEvent(w, flusher, &role); err != nil {
		return err
	}

	for i, token := range tokens {
		if i > 0 && e.opts.StreamTokenDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.opts.StreamTokenDelay):
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}

		chunkContent := token
		if i < len(tokens)-1 {
			chunkContent += " "
		}
		chunk := core.ChunkResponse{
			ID:                id,
			Object:            "chat.completion.chunk",
			Created:           created,
			Model:             model,
			SystemFingerprint: fp,
			Choices:           []core.ChunkChoice{{Delta: core.Delta{Content: chunkContent}, Index: 0}},
		}
		if err := writeEvent(w, flusher, &chunk); err != nil {
			// Best effort: close the stream shape before giving up.
			e.terminateWithError(w, flusher, id, created, fp, model)
			return err
		}
	}

	stop := "stop"
	terminal := core.ChunkResponse{
		ID:                id,
		Object:            "chat.completion.chunk",
		Created:           created,
		Model:             model,
		SystemFingerprint: fp,
		Choices:           []core.ChunkChoice{{Delta: core.Delta{}, Index: 0, FinishReason: &stop}},
	}
	if err := writeEvent(w, flusher, &terminal); err != nil {
		return err
	}

	if _, err := io.WriteString(w, doneSentinel); err != nil {
		return fmt.Errorf("write done sentinel: %w", err)
	}
	if flusher != nil {
		flusher.Flush()
	}
	return nil
}

// terminateWithError emits one terminal error chunk followed by the sentinel.
// Errors are ignored; this only runs when the stream is already failing.
func (e *Emitter) terminateWithError(w http.ResponseWriter, flusher http.Flusher, id string, created int64, fp, model string) {
	errorReason := "error"
	chunk := core.ChunkResponse{
		ID:                id,
		Object:            "chat.completion.chunk",
		Created:           created,
		Model:             model,
		SystemFingerprint: fp,
		Choices:           []core.ChunkChoice{{Delta: core.Delta{}, Index: 0, FinishReason: &errorReason}},
	}
	_ = writeEvent(w, flusher, &chunk)
	_, _ = io.WriteString(w, doneSentinel)
	if flusher != nil {
		flusher.Flush()
	}
}

// writeEvent frames one chunk as `data: <json>\n\n` and flushes it.
func writeEvent(w io.Writer, flusher http.Flusher, chunk *core.ChunkResponse) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("marshal chunk: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write chunk: %w", err)
	}
	if flusher != nil {
		flusher.Flush()
	}
	return nil
}
