package ai

import (
	"context"

	"github.com/google/uuid"
)

type userIDKey struct{}

// WithUserID помечает контекст пользователем, от имени которого идут запросы к модели.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext возвращает пользователя, если он был установлен.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(userIDKey{}).(uuid.UUID)
	return userID, ok
}
