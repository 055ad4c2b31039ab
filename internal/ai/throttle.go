package ai

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// ThrottledClient spaces out calls to the underlying client with a token bucket.
type ThrottledClient struct {
	next    Client
	limiter *rate.Limiter
}

// NewThrottledClient ограничивает частоту обращений к модели (запросов в минуту).
func NewThrottledClient(next Client, perMinute, burst int) *ThrottledClient {
	if burst <= 0 {
		burst = 1
	}

	return &ThrottledClient{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst),
	}
}

// Chat ждет свободный токен и передает вызов дальше.
func (c *ThrottledClient) Chat(ctx context.Context, messages []Message) (string, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", nil, fmt.Errorf("ai rate limit wait: %w", err)
	}

	return c.next.Chat(ctx, messages)
}
