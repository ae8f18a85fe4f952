package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/sitesmith/internal/models"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
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
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "cycle.completed", Data: map[string]int{"changes": 2}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: cycle.completed") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"changes":2`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishChange_StaleThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// First change should trigger site.stale.
	b.PublishChange(models.Change{Type: models.ChangeCreated, Collection: "pages", ExternalID: "p1"})
	// Second change immediately should NOT trigger another site.stale.
	b.PublishChange(models.Change{Type: models.ChangeUpdated, Collection: "pages", ExternalID: "p2"})
	// Unknown change types are dropped.
	b.PublishChange(models.Change{Type: "moved", ExternalID: "p3"})

	time.Sleep(50 * time.Millisecond)
	staleCount := 0
	recordCount := 0
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			if strings.Contains(s, "site.stale") {
				staleCount++
			} else {
				recordCount++
			}
		default:
			break loop
		}
	}

	if recordCount != 2 {
		t.Errorf("record events = %d, want 2", recordCount)
	}
	if staleCount != 1 {
		t.Errorf("stale events = %d, want 1 (throttled)", staleCount)
	}
}

func TestPublishBuild(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishBuild(models.BuildReport{BuildID: "b1", Status: models.StatusFailed, Error: "render"})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: build.failed") || !strings.Contains(s, `"build_id":"b1"`) {
			t.Errorf("unexpected payload %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for build event")
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	// Start handler in background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishChange(models.Change{Type: models.ChangeUpdated, Collection: "sections", ExternalID: "s9"})
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: record.updated") || !strings.Contains(body, `"external_id":"s9"`) {
		t.Errorf("handler output missing event: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
	// If we reach here without deadlock, the test passes.
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
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
	b.Publish(Event{Type: "cycle.completed", Data: map[string]int{"changes": 0}})
	b.PublishChange(models.Change{Type: models.ChangeUpdated, ExternalID: "x"})
}
