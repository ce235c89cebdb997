package sse

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// Stream event names.
const (
	StreamStatus    = "status"
	StreamCompleted = "completed"
	StreamError     = "error"
)

// ErrStreamingUnsupported is returned when the response cannot be flushed.
var ErrStreamingUnsupported = errors.New("sse: streaming unsupported")

// Stream writes named events to one long-lived response. It is owned by the
// request that opened it and must not outlive it.
type Stream struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	done    bool
}

// NewStream prepares w for event streaming and sends the headers.
func NewStream(w http.ResponseWriter) (*Stream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	writeStreamHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &Stream{w: w, flusher: flusher}, nil
}

// Status reports progress of the running workflow.
func (s *Stream) Status(msg string) error {
	return s.send(StreamStatus, msg, false)
}

// Completed sends the final result. Later sends are ignored.
func (s *Stream) Completed(data string) error {
	return s.send(StreamCompleted, data, true)
}

// Fail sends a terminal error event. Later sends are ignored.
func (s *Stream) Fail(msg string) error {
	return s.send(StreamError, msg, true)
}

func (s *Stream) send(event, data string, last bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	s.done = last

	var b strings.Builder
	fmt.Fprintf(&b, "event: %s\n", event)
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	if _, err := s.w.Write([]byte(b.String())); err != nil {
		return fmt.Errorf("sse: write %s: %w", event, err)
	}
	s.flusher.Flush()
	return nil
}
