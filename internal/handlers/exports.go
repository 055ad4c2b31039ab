package handlers

import (
	"bytes"
	"net/http"

	"github.com/labstack/echo/v4"

	"example.com/ai-meal-planner/backend/internal/auth"
	"example.com/ai-meal-planner/backend/internal/export"
)

const csvContentType = "text/csv; charset=utf-8"

// ExportJSON выгружает план в JSON-файл.
func (h *PlanHandler) ExportJSON(c echo.Context) error {
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

	filename := "plan-" + plan.ID.String() + ".json"
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename=\""+filename+"\"")
	return c.JSON(http.StatusOK, toPlanResponse(plan))
}

// ExportCSV выгружает блюда плана в CSV-файл, по строке на прием пищи.
func (h *PlanHandler) ExportCSV(c echo.Context) error {
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

	var buf bytes.Buffer
	if err := export.WriteMealsCSV(&buf, plan); err != nil {
		return serverError(c)
	}

	return attachCSV(c, "plan-"+plan.ID.String()+"-meals.csv", buf.Bytes())
}

func attachCSV(c echo.Context, filename string, body []byte) error {
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename=\""+filename+"\"")
	return c.Blob(http.StatusOK, csvContentType, body)
}
