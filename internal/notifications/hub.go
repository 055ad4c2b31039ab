package notifications

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Типы событий, которые уходят в SSE-поток.
const (
	EventConnected           = "connected"
	EventGenerationStarted   = "generation_started"
	EventPlanReady           = "plan_ready"
	EventPlanFailed          = "plan_failed"
	EventPlanApproved        = "plan_approved"
	EventPlanRejected        = "plan_rejected"
	EventPlanDetailed        = "plan_detailed"
	EventShoppingListUpdated = "shopping_list_updated"
)

const subscriberBuffer = 16

type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

type Hub struct {
	mu          sync.RWMutex
	closed      bool
	subscribers map[uuid.UUID]map[chan Event]struct{}
}

// NewHub создает хаб для SSE-подписок.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[uuid.UUID]map[chan Event]struct{}),
	}
}

// Subscribe подписывает пользователя на события и возвращает канал и функцию отписки.
// После Close канал возвращается уже закрытым.
func (h *Hub) Subscribe(userID uuid.UUID) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return ch, func() {}
	}

	userSubs, ok := h.subscribers[userID]
	if !ok {
		userSubs = make(map[chan Event]struct{})
		h.subscribers[userID] = userSubs
	}
	userSubs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()

			subs, exists := h.subscribers[userID]
			if !exists {
				return
			}
			if _, live := subs[ch]; !live {
				return
			}
			delete(subs, ch)
			if len(subs) == 0 {
				delete(h.subscribers, userID)
			}
			close(ch)
		})
	}
}

// Publish отправляет событие всем подписчикам пользователя.
// Медленный подписчик с заполненным буфером событие пропускает.
func (h *Hub) Publish(userID uuid.UUID, event Event) {
	event.Timestamp = time.Now().UTC()

	h.mu.RLock()
	defer h.mu.RUnlock()

	subs, ok := h.subscribers[userID]
	if !ok {
		return
	}

	for ch := range subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribers возвращает число открытых потоков пользователя.
func (h *Hub) Subscribers(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[userID])
}

// Close закрывает все потоки, чтобы SSE-обработчики завершились при остановке сервера.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for userID, subs := range h.subscribers {
		for ch := range subs {
			close(ch)
		}
		delete(h.subscribers, userID)
	}
}
