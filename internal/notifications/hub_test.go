package notifications

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

// TestHubPublishSubscribe проверяет доставку событий подписчику.
func TestHubPublishSubscribe(t *testing.T) {
	hub := NewHub()
	userID := uuid.New()

	ch, unsubscribe := hub.Subscribe(userID)
	defer unsubscribe()

	hub.Publish(userID, Event{Type: EventPlanReady})

	select {
	case event := <-ch:
		if event.Type != EventPlanReady {
			t.Fatalf("expected event type %s, got %s", EventPlanReady, event.Type)
		}
		if event.Timestamp.IsZero() {
			t.Fatal("expected timestamp to be set")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected event to be delivered")
	}
}

// TestHubPublishOtherUser проверяет, что события не уходят чужим подписчикам.
func TestHubPublishOtherUser(t *testing.T) {
	hub := NewHub()

	ch, unsubscribe := hub.Subscribe(uuid.New())
	defer unsubscribe()

	hub.Publish(uuid.New(), Event{Type: EventPlanReady})

	select {
	case event := <-ch:
		t.Fatalf("expected no event, got %s", event.Type)
	default:
	}
}

// TestHubUnsubscribe проверяет закрытие канала после отписки.
func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub()
	userID := uuid.New()

	ch, unsubscribe := hub.Subscribe(userID)
	unsubscribe()
	unsubscribe()

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed")
	}
	if n := hub.Subscribers(userID); n != 0 {
		t.Fatalf("expected 0 subscribers, got %d", n)
	}
}

// TestHubSlowSubscriber проверяет, что переполненный буфер не блокирует Publish.
func TestHubSlowSubscriber(t *testing.T) {
	hub := NewHub()
	userID := uuid.New()

	ch, unsubscribe := hub.Subscribe(userID)
	defer unsubscribe()

	for i := 0; i < subscriberBuffer*2; i++ {
		hub.Publish(userID, Event{Type: EventShoppingListUpdated})
	}

	if len(ch) != subscriberBuffer {
		t.Fatalf("expected %d buffered events, got %d", subscriberBuffer, len(ch))
	}
}

// TestHubClose проверяет закрытие всех потоков и последующие подписки.
func TestHubClose(t *testing.T) {
	hub := NewHub()
	userID := uuid.New()

	ch, unsubscribe := hub.Subscribe(userID)
	hub.Close()
	unsubscribe()

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed")
	}

	late, _ := hub.Subscribe(userID)
	if _, ok := <-late; ok {
		t.Fatal("expected subscription after close to be closed")
	}
}
