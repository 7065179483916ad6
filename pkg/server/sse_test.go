package server

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kadirpekel/mamba/pkg/chat"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestWriteSSEEventFraming(t *testing.T) {
	w := httptest.NewRecorder()
	flusher, ok := openSSE(w)
	if !ok {
		t.Fatal("openSSE() failed on a recorder")
	}

	if err := writeSSEEvent(w, flusher, chat.NewTextDelta("He")); err != nil {
		t.Fatalf("writeSSEEvent() error = %v", err)
	}
	if err := writeSSEEvent(w, flusher, chat.NewFinish()); err != nil {
		t.Fatalf("writeSSEEvent() error = %v", err)
	}

	want := "data: {\"type\":\"text-delta\",\"textDelta\":\"He\"}\n\n" +
		"data: {\"type\":\"finish\"}\n\n"
	if got := w.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}

	if got := w.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := w.Header().Get("X-Accel-Buffering"); got != "no" {
		t.Errorf("X-Accel-Buffering = %q", got)
	}
	if !w.Flushed {
		t.Error("events were not flushed")
	}
}

func TestStreamSSETerminatesOnFinish(t *testing.T) {
	events := make(chan chat.StreamEvent, 3)
	events <- chat.NewTextDelta("He")
	events <- chat.NewTextDelta("llo")
	events <- chat.NewFinish()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/chat", nil)
	cancelled := false

	streamSSE(w, r, events, time.Minute, func() { cancelled = true }, discardLogger())

	want := "data: {\"type\":\"text-delta\",\"textDelta\":\"He\"}\n\n" +
		"data: {\"type\":\"text-delta\",\"textDelta\":\"llo\"}\n\n" +
		"data: {\"type\":\"finish\"}\n\n"
	if got := w.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
	if !cancelled {
		t.Error("streamSSE() did not cancel the upstream call")
	}
}

func TestStreamSSESynthesizesTerminator(t *testing.T) {
	// A producer that closes its channel without a terminal event still
	// leaves the client with exactly one terminator.
	events := make(chan chat.StreamEvent, 1)
	events <- chat.NewTextDelta("partial")
	close(events)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/chat", nil)

	streamSSE(w, r, events, time.Minute, func() {}, discardLogger())

	want := "data: {\"type\":\"text-delta\",\"textDelta\":\"partial\"}\n\n" +
		"data: {\"type\":\"error\",\"error\":\"stream ended without terminator\"}\n\n"
	if got := w.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}

func TestStreamSSETimeout(t *testing.T) {
	// An idle producer trips the wall-clock deadline.
	events := make(chan chat.StreamEvent)
	defer close(events)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/chat", nil)

	streamSSE(w, r, events, 10*time.Millisecond, func() {}, discardLogger())

	want := "data: {\"type\":\"error\",\"error\":\"stream timeout\"}\n\n"
	if got := w.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}
}

func TestStreamSSEClientDisconnect(t *testing.T) {
	events := make(chan chat.StreamEvent)
	defer close(events)

	ctx, cancelRequest := context.WithCancel(context.Background())
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/chat", nil).WithContext(ctx)

	cancelled := make(chan struct{})
	go func() {
		streamSSE(w, r, events, time.Minute, func() { close(cancelled) }, discardLogger())
	}()

	cancelRequest()

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("streamSSE() did not return on disconnect")
	}

	// Nothing is written after a disconnect.
	if got := w.Body.String(); got != "" {
		t.Errorf("body = %q, want empty", got)
	}
}
