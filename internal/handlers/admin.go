package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/ai-meal-planner/backend/internal/auth"
	"example.com/ai-meal-planner/backend/internal/lifecycle"
	"example.com/ai-meal-planner/backend/internal/models"
	"example.com/ai-meal-planner/backend/internal/repository"
)

type AdminStore interface {
	ListUsers(ctx context.Context, limit, offset int) ([]repository.AdminUser, error)
	CountUsers(ctx context.Context) (int, error)
	ListAIRequests(ctx context.Context, filter repository.AIRequestFilter, limit, offset int, includePayloads bool) ([]repository.AIRequestRecord, error)
	CountAIRequests(ctx context.Context, filter repository.AIRequestFilter) (int, error)
	UsageStats(ctx context.Context, days int) (repository.UsageStats, error)
}

// Backfiller дозаполняет рецепты в планах с пометкой needs_detail.
type Backfiller interface {
	Backfill(ctx context.Context, limit int) (lifecycle.BackfillReport, error)
}

// UserLookup нужен AdminMiddleware, чтобы сверить email пользователя.
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (models.User, error)
}

type AdminHandler struct {
	Repo          AdminStore
	Backfiller    Backfiller
	BackfillLimit int
	Logger        *slog.Logger
}

// NewAdminHandler создает обработчик админских эндпоинтов.
func NewAdminHandler(repo AdminStore, backfiller Backfiller, backfillLimit int, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if backfillLimit <= 0 {
		backfillLimit = 20
	}
	return &AdminHandler{Repo: repo, Backfiller: backfiller, BackfillLimit: backfillLimit, Logger: logger}
}

type AdminUserResponse struct {
	ID               uuid.UUID `json:"id"`
	Email            string    `json:"email"`
	Name             *string   `json:"name,omitempty"`
	GenerationStatus string    `json:"generation_status"`
	PlanCount        int       `json:"plan_count"`
	CreatedAt        string    `json:"created_at"`
	UpdatedAt        string    `json:"updated_at"`
}

type AdminUsersResponse struct {
	Total int                 `json:"total"`
	Users []AdminUserResponse `json:"users"`
}

type AdminAIRequestResponse struct {
	ID              uuid.UUID       `json:"id"`
	UserID          *uuid.UUID      `json:"user_id,omitempty"`
	RequestType     string          `json:"request_type"`
	Provider        string          `json:"provider"`
	Model           string          `json:"model"`
	Success         bool            `json:"success"`
	ErrorMessage    *string         `json:"error_message,omitempty"`
	LatencyMS       int64           `json:"latency_ms"`
	CreatedAt       string          `json:"created_at"`
	Prompt          *string         `json:"prompt,omitempty"`
	RequestPayload  json.RawMessage `json:"request_payload,omitempty"`
	ResponsePayload json.RawMessage `json:"response_payload,omitempty"`
	RawResponse     *string         `json:"raw_response,omitempty"`
}

type AdminAIRequestsResponse struct {
	Total    int                      `json:"total"`
	Requests []AdminAIRequestResponse `json:"requests"`
}

type AdminUsageDay struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type AdminUsageResponse struct {
	Users            int             `json:"users"`
	UsersGenerating  int             `json:"users_generating"`
	Plans            int             `json:"plans"`
	PendingPlans     int             `json:"pending_plans"`
	ActivePlans      int             `json:"active_plans"`
	FallbackMeals    int             `json:"fallback_meals"`
	AIRequests       int             `json:"ai_requests"`
	AISuccess        int             `json:"ai_success"`
	AIFail           int             `json:"ai_fail"`
	AvgLatencyMS     float64         `json:"avg_latency_ms"`
	AIRequestsByDay  []AdminUsageDay `json:"ai_requests_by_day"`
	AIRequestsByType map[string]int  `json:"ai_requests_by_type"`
}

// ListUsers возвращает список пользователей для админки.
func (h *AdminHandler) ListUsers(c echo.Context) error {
	limit, offset, err := parsePagination(c, 50, 200)
	if err != nil {
		return badRequest(c, err.Error())
	}

	users, err := h.Repo.ListUsers(c.Request().Context(), limit, offset)
	if err != nil {
		return serverError(c)
	}

	total, err := h.Repo.CountUsers(c.Request().Context())
	if err != nil {
		return serverError(c)
	}

	response := make([]AdminUserResponse, 0, len(users))
	for _, user := range users {
		response = append(response, AdminUserResponse{
			ID:               user.ID,
			Email:            user.Email,
			Name:             user.Name,
			GenerationStatus: user.GenerationStatus,
			PlanCount:        user.PlanCount,
			CreatedAt:        user.CreatedAt.Format(timeLayout),
			UpdatedAt:        user.UpdatedAt.Format(timeLayout),
		})
	}

	return c.JSON(http.StatusOK, AdminUsersResponse{
		Total: total,
		Users: response,
	})
}

// ListAIRequests возвращает логи AI-запросов с фильтрами.
func (h *AdminHandler) ListAIRequests(c echo.Context) error {
	limit, offset, err := parsePagination(c, 50, 200)
	if err != nil {
		return badRequest(c, err.Error())
	}

	filter := repository.AIRequestFilter{}
	if raw := strings.TrimSpace(c.QueryParam("user_id")); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return badRequest(c, "invalid user_id")
		}
		filter.UserID = &parsed
	}

	if raw := strings.TrimSpace(c.QueryParam("success")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(c, "invalid success")
		}
		filter.Success = &parsed
	}

	if raw := strings.TrimSpace(c.QueryParam("request_type")); raw != "" {
		filter.RequestType = &raw
	}

	includePayloads := false
	if raw := strings.TrimSpace(c.QueryParam("include_payloads")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(c, "invalid include_payloads")
		}
		includePayloads = parsed
	}

	requests, err := h.Repo.ListAIRequests(c.Request().Context(), filter, limit, offset, includePayloads)
	if err != nil {
		return serverError(c)
	}

	total, err := h.Repo.CountAIRequests(c.Request().Context(), filter)
	if err != nil {
		return serverError(c)
	}

	response := make([]AdminAIRequestResponse, 0, len(requests))
	for _, req := range requests {
		item := AdminAIRequestResponse{
			ID:           req.ID,
			UserID:       req.UserID,
			RequestType:  req.RequestType,
			Provider:     req.Provider,
			Model:        req.Model,
			Success:      req.Success,
			ErrorMessage: req.ErrorMessage,
			LatencyMS:    req.LatencyMS,
			CreatedAt:    req.CreatedAt.Format(timeLayout),
		}

		if includePayloads {
			item.Prompt = req.Prompt
			if len(req.RequestPayload) > 0 {
				item.RequestPayload = json.RawMessage(req.RequestPayload)
			}
			if len(req.ResponsePayload) > 0 {
				item.ResponsePayload = json.RawMessage(req.ResponsePayload)
			}
			item.RawResponse = req.RawResponse
		}
		response = append(response, item)
	}

	return c.JSON(http.StatusOK, AdminAIRequestsResponse{
		Total:    total,
		Requests: response,
	})
}

// Usage возвращает агрегированную статистику использования.
func (h *AdminHandler) Usage(c echo.Context) error {
	days, err := parseBoundedInt(c, "days", 7, 30)
	if err != nil {
		return badRequest(c, err.Error())
	}

	stats, err := h.Repo.UsageStats(c.Request().Context(), days)
	if err != nil {
		if errors.Is(err, repository.ErrInvalid) {
			return badRequest(c, "invalid days")
		}
		return serverError(c)
	}

	daysResponse := make([]AdminUsageDay, 0, len(stats.AIRequestsByDay))
	for _, day := range stats.AIRequestsByDay {
		daysResponse = append(daysResponse, AdminUsageDay{
			Date:  day.Day.Format(dateLayout),
			Count: day.Count,
		})
	}

	byType := stats.AIRequestsByType
	if byType == nil {
		byType = map[string]int{}
	}

	return c.JSON(http.StatusOK, AdminUsageResponse{
		Users:            stats.Users,
		UsersGenerating:  stats.UsersGenerating,
		Plans:            stats.Plans,
		PendingPlans:     stats.PendingPlans,
		ActivePlans:      stats.ActivePlans,
		FallbackMeals:    stats.FallbackMeals,
		AIRequests:       stats.AIRequests,
		AISuccess:        stats.AISuccess,
		AIFail:           stats.AIFail,
		AvgLatencyMS:     stats.AvgLatencyMS,
		AIRequestsByDay:  daysResponse,
		AIRequestsByType: byType,
	})
}

// Backfill синхронно дозаполняет рецепты в планах, где остались заглушки.
func (h *AdminHandler) Backfill(c echo.Context) error {
	if h.Backfiller == nil {
		return unavailable(c, "backfill is not configured")
	}

	limit, err := parseBoundedInt(c, "limit", h.BackfillLimit, 100)
	if err != nil {
		return badRequest(c, err.Error())
	}

	report, err := h.Backfiller.Backfill(c.Request().Context(), limit)
	if err != nil {
		h.Logger.Error("backfill failed", slog.String("error", err.Error()))
		return serverError(c)
	}

	h.Logger.Info("backfill finished",
		slog.Int("plans", report.Plans),
		slog.Int("plans_failed", report.PlansFailed),
		slog.Int("meals", report.Meals),
	)
	return c.JSON(http.StatusOK, report)
}

// AdminMiddleware ограничивает доступ к админским роутам по email.
func AdminMiddleware(users UserLookup, emails []string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(emails))
	for _, email := range emails {
		trimmed := strings.ToLower(strings.TrimSpace(email))
		if trimmed == "" {
			continue
		}
		allowed[trimmed] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, ok := auth.UserIDFromContext(c)
			if !ok {
				return unauthorized(c)
			}

			if len(allowed) == 0 {
				return forbidden(c)
			}

			user, err := users.GetByID(c.Request().Context(), userID)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return forbidden(c)
				}
				return serverError(c)
			}

			email := strings.ToLower(strings.TrimSpace(user.Email))
			if _, ok := allowed[email]; !ok {
				return forbidden(c)
			}

			return next(c)
		}
	}
}
