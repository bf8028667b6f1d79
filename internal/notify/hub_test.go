package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHubPublishReachesAllSubscribers(t *testing.T) {
	hub := NewHub(quietLogger())
	a := hub.Subscribe("tab-1")
	b := hub.Subscribe("tab-2")

	data := map[string]any{"category": "good", "grade": 70, "earnedMinutes": 4}
	if err := hub.Publish(context.Background(), TypeGradeNotification, data); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	for name, ch := range map[string]<-chan Notification{"tab-1": a, "tab-2": b} {
		select {
		case n := <-ch:
			if n.Type != TypeGradeNotification {
				t.Errorf("%s: expected %s, got %s", name, TypeGradeNotification, n.Type)
			}
			var got map[string]any
			if err := json.Unmarshal(n.Data, &got); err != nil {
				t.Fatalf("%s: bad data: %v", name, err)
			}
			if got["category"] != "good" {
				t.Errorf("%s: unexpected data %v", name, got)
			}
		default:
			t.Errorf("%s: expected a notification", name)
		}
	}
}

func TestHubUnsubscribeStale(t *testing.T) {
	hub := NewHub(quietLogger())
	old := hub.Subscribe("tab-1")
	current := hub.Subscribe("tab-1")

	if _, ok := <-old; ok {
		t.Fatal("expected replaced channel to be closed")
	}

	// A stale unsubscribe must leave the replacement in place.
	hub.Unsubscribe("tab-1", old)
	if hub.Count() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", hub.Count())
	}

	hub.Unsubscribe("tab-1", current)
	if hub.Count() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", hub.Count())
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub(quietLogger())
	ch := hub.Subscribe("slow")

	for i := 0; i < subscriberBuffer+5; i++ {
		if err := hub.Publish(context.Background(), TypeGrantExpired, nil); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}
	if len(ch) != subscriberBuffer {
		t.Fatalf("expected buffer to hold %d, got %d", subscriberBuffer, len(ch))
	}
}

func TestHubPublishGrantExpired(t *testing.T) {
	hub := NewHub(quietLogger())
	ch := hub.Subscribe("tab")

	at := time.UnixMilli(1_700_000_000_000)
	hub.PublishGrantExpired(context.Background(), at)

	n := <-ch
	if n.Type != TypeGrantExpired {
		t.Fatalf("unexpected type %s", n.Type)
	}
	if string(n.Data) != `{"expiredAt":1700000000000}` {
		t.Fatalf("unexpected data %s", n.Data)
	}
}

func TestHubConcurrentAccess(t *testing.T) {
	hub := NewHub(quietLogger())
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			id := "tab-" + strconv.Itoa(i)
			ch := hub.Subscribe(id)
			hub.Unsubscribe(id, ch)
		}(i)
		go func() {
			defer wg.Done()
			_ = hub.Publish(context.Background(), TypeGrantExpired, nil)
		}()
	}
	wg.Wait()

	if hub.Count() != 0 {
		t.Fatalf("expected no subscribers left, got %d", hub.Count())
	}
}
