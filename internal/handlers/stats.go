package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/ai-meal-planner/backend/internal/auth"
	"example.com/ai-meal-planner/backend/internal/repository"
)

type StatsReader interface {
	Overview(ctx context.Context, userID uuid.UUID) (repository.OverviewStats, error)
	ShoppingCategories(ctx context.Context, userID, planID uuid.UUID) ([]repository.CategoryCount, error)
	MonthlyComparison(ctx context.Context, userID uuid.UUID, months int) ([]repository.MonthlyComparison, error)
}

type StatsHandler struct {
	Stats StatsReader
}

// NewStatsHandler создает обработчик статистики.
func NewStatsHandler(stats StatsReader) *StatsHandler {
	return &StatsHandler{Stats: stats}
}

type OverviewResponse struct {
	TotalPlans    int `json:"total_plans"`
	PendingPlans  int `json:"pending_plans"`
	ActivePlans   int `json:"active_plans"`
	ArchivedPlans int `json:"archived_plans"`
	ValidPlans    int `json:"valid_plans"`
	FallbackMeals int `json:"fallback_meals"`
}

type ShoppingCategoriesResponse struct {
	PlanID     uuid.UUID                 `json:"plan_id"`
	Categories []ShoppingCategoryStatsItem `json:"categories"`
}

type ShoppingCategoryStatsItem struct {
	Category string `json:"category"`
	Items    int    `json:"items"`
	Checked  int    `json:"checked"`
}

type MonthlyComparisonResponse struct {
	Months []MonthlyComparisonItem `json:"months"`
}

type MonthlyComparisonItem struct {
	Month         string `json:"month"`
	Plans         int    `json:"plans"`
	FallbackMeals int    `json:"fallback_meals"`
}

// Overview возвращает сводную статистику по планам.
func (h *StatsHandler) Overview(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	stats, err := h.Stats.Overview(c.Request().Context(), userID)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, OverviewResponse{
		TotalPlans:    stats.TotalPlans,
		PendingPlans:  stats.PendingPlans,
		ActivePlans:   stats.ActivePlans,
		ArchivedPlans: stats.ArchivedPlans,
		ValidPlans:    stats.ValidPlans,
		FallbackMeals: stats.FallbackMeals,
	})
}

// ShoppingCategories возвращает разбивку списка покупок по категориям.
func (h *StatsHandler) ShoppingCategories(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	planIDParam := c.QueryParam("plan_id")
	if planIDParam == "" {
		return badRequest(c, "plan_id is required")
	}

	planID, err := uuid.Parse(planIDParam)
	if err != nil {
		return badRequest(c, "invalid plan_id")
	}

	items, err := h.Stats.ShoppingCategories(c.Request().Context(), userID, planID)
	if err != nil {
		return storeError(c, err, "shopping list not found")
	}

	categories := make([]ShoppingCategoryStatsItem, 0, len(items))
	for _, item := range items {
		categories = append(categories, ShoppingCategoryStatsItem{
			Category: string(item.Category),
			Items:    item.Items,
			Checked:  item.Checked,
		})
	}

	return c.JSON(http.StatusOK, ShoppingCategoriesResponse{
		PlanID:     planID,
		Categories: categories,
	})
}

// MonthlyComparison возвращает сравнение по месяцам.
func (h *StatsHandler) MonthlyComparison(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	months := 6
	if raw := c.QueryParam("months"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return badRequest(c, "invalid months")
		}
		if parsed > 24 {
			parsed = 24
		}
		months = parsed
	}

	items, err := h.Stats.MonthlyComparison(c.Request().Context(), userID, months)
	if err != nil {
		return storeError(c, err, "no data")
	}

	response := make([]MonthlyComparisonItem, 0, len(items))
	for _, item := range items {
		response = append(response, MonthlyComparisonItem{
			Month:         item.Month.Format("2006-01"),
			Plans:         item.Plans,
			FallbackMeals: item.FallbackMeals,
		})
	}

	return c.JSON(http.StatusOK, MonthlyComparisonResponse{Months: response})
}
