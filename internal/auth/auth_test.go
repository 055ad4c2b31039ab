package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newManager() *TokenManager {
	return NewTokenManager("test-secret", "meal-planner", 15*time.Minute, 24*time.Hour)
}

// TestTokenPairRoundTrip проверяет разбор выданных токенов.
func TestTokenPairRoundTrip(t *testing.T) {
	manager := newManager()
	userID := uuid.New()
	refreshID := uuid.New()

	pair, err := manager.NewTokenPair(userID, refreshID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	access, err := manager.ParseAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("expected valid access token, got %v", err)
	}
	if got, _ := access.UserID(); got != userID {
		t.Fatalf("expected user %s, got %s", userID, got)
	}

	refresh, err := manager.ParseRefreshToken(pair.RefreshToken)
	if err != nil {
		t.Fatalf("expected valid refresh token, got %v", err)
	}
	if got, _ := refresh.TokenID(); got != refreshID {
		t.Fatalf("expected refresh id %s, got %s", refreshID, got)
	}
}

// TestTokenTypeMismatch проверяет, что refresh-токен не проходит как access.
func TestTokenTypeMismatch(t *testing.T) {
	manager := newManager()
	pair, err := manager.NewTokenPair(uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, err := manager.ParseAccessToken(pair.RefreshToken); !errors.Is(err, ErrTokenType) {
		t.Fatalf("expected ErrTokenType, got %v", err)
	}
}

// TestTokenExpired проверяет истечение access-токена с учетом допуска часов.
func TestTokenExpired(t *testing.T) {
	manager := newManager()
	issued := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return issued }

	pair, err := manager.NewTokenPair(uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	manager.now = func() time.Time { return issued.Add(15*time.Minute + 10*time.Second) }
	if _, err := manager.ParseAccessToken(pair.AccessToken); err != nil {
		t.Fatalf("expected token within leeway, got %v", err)
	}

	manager.now = func() time.Time { return issued.Add(time.Hour) }
	if _, err := manager.ParseAccessToken(pair.AccessToken); err == nil {
		t.Fatal("expected expired token error")
	}
}

// TestTokenWrongIssuer проверяет отказ для токена другого сервиса.
func TestTokenWrongIssuer(t *testing.T) {
	other := NewTokenManager("test-secret", "other-service", time.Minute, time.Hour)
	pair, err := other.NewTokenPair(uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, err := newManager().ParseAccessToken(pair.AccessToken); err == nil {
		t.Fatal("expected issuer error")
	}
}

// TestHashPasswordTooLong проверяет ограничение bcrypt на длину пароля.
func TestHashPasswordTooLong(t *testing.T) {
	if _, err := HashPassword(strings.Repeat("a", 73)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}

	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := ComparePassword(hash, "correct horse"); err != nil {
		t.Fatalf("expected password to match, got %v", err)
	}
}

// TestCompareTokenHash проверяет сравнение хэша refresh-токена.
func TestCompareTokenHash(t *testing.T) {
	hash := HashToken("refresh-token")
	if !CompareTokenHash(hash, "refresh-token") {
		t.Fatal("expected hash to match")
	}
	if CompareTokenHash(hash, "other-token") {
		t.Fatal("expected hash mismatch")
	}
}

func serveWithMiddleware(t *testing.T, manager *TokenManager, target, header string, opts ...MiddlewareOption) (int, uuid.UUID) {
	t.Helper()

	e := echo.New()
	var seen uuid.UUID
	e.GET("/stream", func(c echo.Context) error {
		seen, _ = UserIDFromContext(c)
		return c.NoContent(http.StatusOK)
	}, JWTMiddleware(manager, opts...))

	req := httptest.NewRequest(http.MethodGet, target, nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code, seen
}

// TestJWTMiddlewareQueryToken проверяет токен в query только для разрешенных маршрутов.
func TestJWTMiddlewareQueryToken(t *testing.T) {
	manager := newManager()
	userID := uuid.New()
	pair, err := manager.NewTokenPair(userID, uuid.New())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	code, _ := serveWithMiddleware(t, manager, "/stream?access_token="+pair.AccessToken, "")
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without opt-in, got %d", code)
	}

	code, seen := serveWithMiddleware(t, manager, "/stream?access_token="+pair.AccessToken, "", AllowQueryToken())
	if code != http.StatusOK || seen != userID {
		t.Fatalf("expected 200 for %s, got %d for %s", userID, code, seen)
	}
}

// TestJWTMiddlewareHeader проверяет разбор заголовка Authorization.
func TestJWTMiddlewareHeader(t *testing.T) {
	manager := newManager()
	userID := uuid.New()
	pair, err := manager.NewTokenPair(userID, uuid.New())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	code, seen := serveWithMiddleware(t, manager, "/stream", "bearer "+pair.AccessToken)
	if code != http.StatusOK || seen != userID {
		t.Fatalf("expected 200 for %s, got %d for %s", userID, code, seen)
	}

	code, _ = serveWithMiddleware(t, manager, "/stream", "Token "+pair.AccessToken)
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong scheme, got %d", code)
	}

	code, _ = serveWithMiddleware(t, manager, "/stream", "Bearer "+pair.RefreshToken)
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for refresh token, got %d", code)
	}
}
