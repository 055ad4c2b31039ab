package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/ai-meal-planner/backend/internal/auth"
	"example.com/ai-meal-planner/backend/internal/lifecycle"
	"example.com/ai-meal-planner/backend/internal/models"
	"example.com/ai-meal-planner/backend/internal/repository"
)

// PlanLifecycle описывает операции жизненного цикла плана питания.
type PlanLifecycle interface {
	GeneratePlan(ctx context.Context, userID uuid.UUID, opts lifecycle.GenerateOptions) (lifecycle.GenerationOutcome, error)
	GenerationStatus(ctx context.Context, userID uuid.UUID) (lifecycle.GenerationState, error)
	ApprovePlan(ctx context.Context, userID, planID uuid.UUID) (models.MealPlan, models.ShoppingList, error)
	RejectPlan(ctx context.Context, userID, planID uuid.UUID, feedback *string) (models.MealPlan, error)
}

type PlanReader interface {
	GetByID(ctx context.Context, userID, planID uuid.UUID) (models.MealPlan, error)
	Current(ctx context.Context, userID uuid.UUID) (models.MealPlan, error)
	ListByUser(ctx context.Context, userID uuid.UUID, status *models.PlanStatus, limit, offset int) ([]models.MealPlan, error)
}

type PlanHandler struct {
	Lifecycle PlanLifecycle
	Plans     PlanReader
}

// NewPlanHandler создает обработчик планов питания.
func NewPlanHandler(lc PlanLifecycle, plans PlanReader) *PlanHandler {
	return &PlanHandler{Lifecycle: lc, Plans: plans}
}

type GenerateRequest struct {
	StartDate *string `json:"start_date"`
	Days      int     `json:"days" validate:"gte=0"`
}

type GenerateResponse struct {
	Status string `json:"status"`
}

type RejectRequest struct {
	Feedback *string `json:"feedback" validate:"omitempty,max=1000"`
}

type PlanSummaryResponse struct {
	ID                uuid.UUID         `json:"id"`
	Status            models.PlanStatus `json:"status"`
	StartDate         string            `json:"start_date"`
	EndDate           string            `json:"end_date"`
	Source            models.PlanSource `json:"source"`
	IsValid           bool              `json:"is_valid"`
	InvalidMealsCount int               `json:"invalid_meals_count"`
	CreatedAt         string            `json:"created_at"`
}

type PlanResponse struct {
	PlanSummaryResponse
	Days              map[string]models.DayPlan `json:"days"`
	Anchors           []models.Anchor           `json:"anchors"`
	RejectionFeedback *string                   `json:"rejection_feedback,omitempty"`
	UpdatedAt         string                    `json:"updated_at"`
}

type ApproveResponse struct {
	Plan         PlanResponse         `json:"plan"`
	ShoppingList ShoppingListResponse `json:"shopping_list"`
}

// Generate запускает фоновую генерацию плана.
func (h *PlanHandler) Generate(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req GenerateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "validation failed")
	}

	opts := lifecycle.GenerateOptions{Days: req.Days}
	if req.StartDate != nil && strings.TrimSpace(*req.StartDate) != "" {
		start, err := time.Parse(dateLayout, strings.TrimSpace(*req.StartDate))
		if err != nil {
			return badRequest(c, "invalid start_date format")
		}
		opts.StartDate = &start
	}

	outcome, err := h.Lifecycle.GeneratePlan(c.Request().Context(), userID, opts)
	if err != nil {
		switch {
		case errors.Is(err, lifecycle.ErrInvalidHorizon):
			return badRequest(c, "invalid days")
		case errors.Is(err, lifecycle.ErrProfileIncomplete):
			return badRequest(c, "daily calorie goal is not set")
		}
		return storeError(c, err, "user not found")
	}

	if outcome == lifecycle.OutcomeAlreadyCreating {
		return c.JSON(http.StatusConflict, GenerateResponse{Status: string(outcome)})
	}
	return c.JSON(http.StatusAccepted, GenerateResponse{Status: string(outcome)})
}

// GenerationStatus сообщает, идет ли сейчас генерация.
func (h *PlanHandler) GenerationStatus(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	state, err := h.Lifecycle.GenerationStatus(c.Request().Context(), userID)
	if err != nil {
		return storeError(c, err, "user not found")
	}
	return c.JSON(http.StatusOK, state)
}

// List возвращает планы пользователя, опционально по статусу.
func (h *PlanHandler) List(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	limit, offset, err := parsePagination(c, 20, 100)
	if err != nil {
		return badRequest(c, err.Error())
	}

	var status *models.PlanStatus
	if raw := strings.TrimSpace(c.QueryParam("status")); raw != "" {
		parsed, ok := parsePlanStatus(raw)
		if !ok {
			return badRequest(c, "invalid status")
		}
		status = &parsed
	}

	plans, err := h.Plans.ListByUser(c.Request().Context(), userID, status, limit, offset)
	if err != nil {
		return serverError(c)
	}

	response := make([]PlanSummaryResponse, 0, len(plans))
	for _, plan := range plans {
		response = append(response, toPlanSummary(plan))
	}
	return c.JSON(http.StatusOK, map[string][]PlanSummaryResponse{"plans": response})
}

// Current возвращает самый свежий ожидающий или активный план.
func (h *PlanHandler) Current(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	plan, err := h.Plans.Current(c.Request().Context(), userID)
	if err != nil {
		return storeError(c, err, "no current plan")
	}
	return c.JSON(http.StatusOK, toPlanResponse(plan))
}

// Get возвращает план по идентификатору.
func (h *PlanHandler) Get(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	planID, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid plan id")
	}

	plan, err := h.Plans.GetByID(c.Request().Context(), userID, planID)
	if err != nil {
		return storeError(c, err, "plan not found")
	}
	return c.JSON(http.StatusOK, toPlanResponse(plan))
}

// Approve активирует ожидающий план и собирает список покупок.
func (h *PlanHandler) Approve(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	planID, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid plan id")
	}

	plan, list, err := h.Lifecycle.ApprovePlan(c.Request().Context(), userID, planID)
	if err != nil {
		return storeError(c, err, "plan not found")
	}

	return c.JSON(http.StatusOK, ApproveResponse{
		Plan:         toPlanResponse(plan),
		ShoppingList: toShoppingListResponse(list),
	})
}

// Reject архивирует ожидающий план и запоминает отзыв для следующей генерации.
func (h *PlanHandler) Reject(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	planID, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid plan id")
	}

	var req RejectRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "validation failed")
	}

	plan, err := h.Lifecycle.RejectPlan(c.Request().Context(), userID, planID, req.Feedback)
	if err != nil {
		return storeError(c, err, "plan not found")
	}
	return c.JSON(http.StatusOK, toPlanResponse(plan))
}

func parsePlanStatus(value string) (models.PlanStatus, bool) {
	switch status := models.PlanStatus(strings.ToLower(value)); status {
	case models.PlanStatusPending, models.PlanStatusActive, models.PlanStatusArchived:
		return status, true
	}
	return "", false
}

func toPlanSummary(plan models.MealPlan) PlanSummaryResponse {
	return PlanSummaryResponse{
		ID:                plan.ID,
		Status:            plan.Status,
		StartDate:         plan.StartDate.Format(dateLayout),
		EndDate:           plan.EndDate.Format(dateLayout),
		Source:            plan.Source,
		IsValid:           plan.IsValid,
		InvalidMealsCount: plan.InvalidMealsCount,
		CreatedAt:         plan.CreatedAt.Format(timeLayout),
	}
}

func toPlanResponse(plan models.MealPlan) PlanResponse {
	days := plan.Days
	if days == nil {
		days = map[string]models.DayPlan{}
	}
	anchors := plan.Anchors
	if anchors == nil {
		anchors = []models.Anchor{}
	}

	return PlanResponse{
		PlanSummaryResponse: toPlanSummary(plan),
		Days:                days,
		Anchors:             anchors,
		RejectionFeedback:   plan.RejectionFeedback,
		UpdatedAt:           plan.UpdatedAt.Format(timeLayout),
	}
}

var _ PlanReader = (*repository.PlanRepository)(nil)
