package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kadirpekel/mamba/pkg/chat"
)

// openSSE writes the event-stream response headers and returns the
// flusher. SSE needs per-event flushing; a transport that cannot flush
// gets a 500 before any stream state exists.
func openSSE(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	return flusher, true
}

// writeSSEEvent frames one event as `data: <json>\n\n` and flushes it
// immediately. Each event is written in a single call, so frames never
// interleave within a stream.
func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, event chat.StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// streamSSE consumes the event channel and writes frames until a terminal
// event, the wall-clock deadline, or client disconnect. Every exit path
// except disconnect ends with exactly one terminal frame on the wire: a
// producer that closes its channel without one gets a synthesized error.
//
// cancel stops the upstream call; it is invoked on every exit so the
// producer never outlives the response.
func streamSSE(w http.ResponseWriter, r *http.Request, events <-chan chat.StreamEvent, timeout time.Duration, cancel context.CancelFunc, logger *slog.Logger) {
	defer cancel()

	flusher, ok := openSSE(w)
	if !ok {
		return
	}

	// The deadline starts at first-byte time: headers are flushed here and
	// the timer runs from this instant.
	flusher.Flush()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	requestID := RequestIDFrom(r.Context())

	for {
		select {
		case event, open := <-events:
			if !open {
				logger.Warn("stream ended without terminator", "request_id", requestID)
				_ = writeSSEEvent(w, flusher, chat.NewError("stream ended without terminator"))
				return
			}
			if err := writeSSEEvent(w, flusher, event); err != nil {
				logger.Info("client write failed, abandoning stream",
					"request_id", requestID, "error", err)
				return
			}
			if event.IsTerminal() {
				return
			}

		case <-timer.C:
			logger.Warn("stream timeout", "request_id", requestID, "timeout", timeout)
			_ = writeSSEEvent(w, flusher, chat.NewError("stream timeout"))
			return

		case <-r.Context().Done():
			// Disconnect is a cancellation path, not an error: the stream
			// is abandoned and no further bytes are written.
			logger.Info("client disconnected, cancelling upstream", "request_id", requestID)
			return
		}
	}
}
