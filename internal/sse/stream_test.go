package sse

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStreamEvents(t *testing.T) {
	w := httptest.NewRecorder()
	s, err := NewStream(w)
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	_ = s.Status("Generating caption")
	_ = s.Completed("{\"id\":1,\n\"platform\":\"x\"}")
	_ = s.Status("ignored after completion")
	_ = s.Fail("ignored too")

	want := "event: status\ndata: Generating caption\n\n" +
		"event: completed\ndata: {\"id\":1,\ndata: \"platform\":\"x\"}\n\n"
	if got := w.Body.String(); got != want {
		t.Errorf("body:\n%q\nwant:\n%q", got, want)
	}
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}

type plainWriter struct{ http.ResponseWriter }

func TestStreamRequiresFlusher(t *testing.T) {
	if _, err := NewStream(plainWriter{httptest.NewRecorder()}); err != ErrStreamingUnsupported {
		t.Fatalf("got %v, want ErrStreamingUnsupported", err)
	}
}
