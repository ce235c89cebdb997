package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/starford/estatehub/internal/lifecycle"
	"github.com/starford/estatehub/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func drain(ch chan []byte) []string {
	time.Sleep(50 * time.Millisecond)
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe("alice")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("alice")
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "dictionary.reloaded", Data: map[string]string{"locale": "en"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: dictionary.reloaded") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"locale":"en"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestEntityEventsScopedToOwner(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	alice := b.Subscribe("alice")
	defer b.Unsubscribe(alice)
	bob := b.Subscribe("bob")
	defer b.Unsubscribe(bob)

	b.PublishEntity("alice", EntityCreated, models.Ref{Kind: models.KindProject, ID: 7})

	got := drain(alice)
	if len(got) != 1 || !strings.Contains(got[0], "event: entity.created") || !strings.Contains(got[0], `"kind":"project","id":7`) {
		t.Errorf("alice got %q", got)
	}
	if leaked := drain(bob); len(leaked) != 0 {
		t.Errorf("bob received another tenant's events: %q", leaked)
	}
}

func TestBinUpdatedThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe("alice")
	defer b.Unsubscribe(ch)

	ref := models.Ref{Kind: models.KindPost, ID: 1}
	// First bin change triggers bin.updated; the second is throttled.
	b.PublishEntity("alice", EntityBinned, ref)
	b.PublishEntity("alice", EntityRestored, ref)
	// Plain updates never touch the bin.
	b.PublishEntity("alice", EntityUpdated, ref)

	binCount, entityCount := 0, 0
	for _, s := range drain(ch) {
		if strings.Contains(s, "event: bin.updated") {
			binCount++
		} else {
			entityCount++
		}
	}
	if entityCount != 3 {
		t.Errorf("entity events = %d, want 3", entityCount)
	}
	if binCount != 1 {
		t.Errorf("bin events = %d, want 1 (throttled)", binCount)
	}
}

func TestEventType(t *testing.T) {
	cases := map[lifecycle.Op]string{
		lifecycle.OpBin:     EntityBinned,
		lifecycle.OpRestore: EntityRestored,
		lifecycle.OpPurge:   EntityPurged,
	}
	for op, want := range cases {
		if got := EventType(op); got != want {
			t.Errorf("EventType(%s) = %q, want %q", op, got, want)
		}
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.Handler(func(*http.Request) string { return "alice" })(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishEntity("alice", EntityUpdated, models.Ref{Kind: models.KindProperty, ID: 3})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content-type = %q", ct)
	}
	if body := w.Body.String(); !strings.Contains(body, "event: entity.updated") {
		t.Errorf("handler output missing event: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe("")
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for range 70 {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe("alice")
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: "entity.updated"})
	b.PublishEntity("alice", EntityPurged, models.Ref{Kind: models.KindPost, ID: 1})
	if ch := b.Subscribe("alice"); ch == nil {
		t.Fatal("Subscribe after close returned nil")
	}
}
