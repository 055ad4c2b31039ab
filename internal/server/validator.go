package server

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"example.com/ai-meal-planner/backend/internal/models"
)

type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator создает валидатор на базе go-playground/validator
// с тегами доменных перечислений.
func NewValidator() *CustomValidator {
	v := validator.New()
	_ = v.RegisterValidation("meal_type", validateMealType)
	_ = v.RegisterValidation("slot_mode", validateSlotMode)
	_ = v.RegisterValidation("weekday", validateWeekday)
	return &CustomValidator{validator: v}
}

// Validate запускает проверку структуры по тегам.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

func validateMealType(fl validator.FieldLevel) bool {
	value := models.MealType(fl.Field().String())
	for _, mealType := range models.AllMealTypes {
		if value == mealType {
			return true
		}
	}
	return false
}

func validateSlotMode(fl validator.FieldLevel) bool {
	switch models.SlotMode(fl.Field().String()) {
	case models.SlotModeAuto, models.SlotModeFixed, models.SlotModeCustom:
		return true
	}
	return false
}

func validateWeekday(fl validator.FieldLevel) bool {
	_, ok := models.ParseWeekday(strings.TrimSpace(fl.Field().String()))
	return ok
}
