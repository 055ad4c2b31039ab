package handlers

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/ai-meal-planner/backend/internal/auth"
	"example.com/ai-meal-planner/backend/internal/export"
	"example.com/ai-meal-planner/backend/internal/models"
)

type ShoppingLifecycle interface {
	GetShoppingList(ctx context.Context, userID, planID uuid.UUID) (models.ShoppingList, error)
	ToggleShoppingItem(ctx context.Context, userID, planID uuid.UUID, index int) (models.ShoppingList, error)
	ShoppingListExported(ctx context.Context, list models.ShoppingList, location string)
}

// ShoppingExporter выгружает список покупок во внешнее хранилище.
type ShoppingExporter interface {
	ExportShoppingList(ctx context.Context, list models.ShoppingList) (string, error)
}

type ShoppingHandler struct {
	Lifecycle ShoppingLifecycle
	Exporter  ShoppingExporter
	Logger    *slog.Logger
}

// NewShoppingHandler создает обработчик списка покупок. exporter может быть nil,
// тогда выгрузка в хранилище отвечает 503.
func NewShoppingHandler(lc ShoppingLifecycle, exporter ShoppingExporter, logger *slog.Logger) *ShoppingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ShoppingHandler{Lifecycle: lc, Exporter: exporter, Logger: logger}
}

type ShoppingListResponse struct {
	PlanID    uuid.UUID             `json:"plan_id"`
	Items     []models.ShoppingItem `json:"items"`
	UpdatedAt string                `json:"updated_at"`
}

type ShoppingExportResponse struct {
	Location string `json:"location"`
}

// Get возвращает список покупок плана.
func (h *ShoppingHandler) Get(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	planID, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid plan id")
	}

	list, err := h.Lifecycle.GetShoppingList(c.Request().Context(), userID, planID)
	if err != nil {
		return storeError(c, err, "shopping list not found")
	}
	return c.JSON(http.StatusOK, toShoppingListResponse(list))
}

// Toggle переключает отметку позиции по индексу.
func (h *ShoppingHandler) Toggle(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	planID, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid plan id")
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		return badRequest(c, "invalid item index")
	}

	list, err := h.Lifecycle.ToggleShoppingItem(c.Request().Context(), userID, planID, index)
	if err != nil {
		return storeError(c, err, "shopping list not found")
	}
	return c.JSON(http.StatusOK, toShoppingListResponse(list))
}

// ExportCSV отдает список покупок CSV-файлом.
func (h *ShoppingHandler) ExportCSV(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	planID, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid plan id")
	}

	list, err := h.Lifecycle.GetShoppingList(c.Request().Context(), userID, planID)
	if err != nil {
		return storeError(c, err, "shopping list not found")
	}

	var buf bytes.Buffer
	if err := export.WriteShoppingCSV(&buf, list); err != nil {
		return serverError(c)
	}

	return attachCSV(c, "shopping-list-"+planID.String()+".csv", buf.Bytes())
}

// Export выгружает список покупок в объектное хранилище.
func (h *ShoppingHandler) Export(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	if h.Exporter == nil {
		return unavailable(c, "export storage is not configured")
	}

	planID, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid plan id")
	}

	ctx := c.Request().Context()
	list, err := h.Lifecycle.GetShoppingList(ctx, userID, planID)
	if err != nil {
		return storeError(c, err, "shopping list not found")
	}

	location, err := h.Exporter.ExportShoppingList(ctx, list)
	if err != nil {
		h.Logger.Error("shopping list export failed",
			slog.String("user_id", userID.String()),
			slog.String("plan_id", planID.String()),
			slog.String("error", err.Error()),
		)
		return serverError(c)
	}

	h.Lifecycle.ShoppingListExported(ctx, list, location)
	return c.JSON(http.StatusCreated, ShoppingExportResponse{Location: location})
}

func toShoppingListResponse(list models.ShoppingList) ShoppingListResponse {
	items := list.Items
	if items == nil {
		items = []models.ShoppingItem{}
	}
	return ShoppingListResponse{
		PlanID:    list.PlanID,
		Items:     items,
		UpdatedAt: list.UpdatedAt.Format(timeLayout),
	}
}
