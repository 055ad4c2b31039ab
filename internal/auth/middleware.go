package auth

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	ContextUserIDKey = "user_id"
	// EventSource в браузере не умеет слать заголовки, поэтому SSE-поток
	// принимает токен в query.
	queryTokenParam = "access_token"
)

type middlewareOptions struct {
	allowQuery bool
}

type MiddlewareOption func(*middlewareOptions)

// AllowQueryToken разрешает передавать access-токен параметром access_token.
func AllowQueryToken() MiddlewareOption {
	return func(o *middlewareOptions) {
		o.allowQuery = true
	}
}

// JWTMiddleware проверяет access-токен и сохраняет user_id в контексте.
func JWTMiddleware(manager *TokenManager, opts ...MiddlewareOption) echo.MiddlewareFunc {
	var options middlewareOptions
	for _, opt := range opts {
		opt(&options)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, message := tokenFromRequest(c, options.allowQuery)
			if message != "" {
				return echo.NewHTTPError(http.StatusUnauthorized, message)
			}

			claims, err := manager.ParseAccessToken(tokenString)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			userID, err := claims.UserID()
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token subject")
			}

			c.Set(ContextUserIDKey, userID)
			return next(c)
		}
	}
}

// tokenFromRequest достает токен из заголовка Authorization, а при allowQuery - и из query.
// Вторым значением возвращает текст ошибки для клиента.
func tokenFromRequest(c echo.Context, allowQuery bool) (string, string) {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		if allowQuery {
			if token := strings.TrimSpace(c.QueryParam(queryTokenParam)); token != "" {
				return token, ""
			}
		}
		return "", "missing authorization header"
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", "invalid authorization header"
	}

	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return "", "invalid authorization header"
	}
	return tokenString, ""
}

// UserIDFromContext извлекает идентификатор пользователя из контекста.
func UserIDFromContext(c echo.Context) (uuid.UUID, bool) {
	value := c.Get(ContextUserIDKey)
	userID, ok := value.(uuid.UUID)
	return userID, ok
}
