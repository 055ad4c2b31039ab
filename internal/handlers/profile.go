package handlers

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/ai-meal-planner/backend/internal/auth"
	"example.com/ai-meal-planner/backend/internal/models"
	"example.com/ai-meal-planner/backend/internal/repository"
)

type ProfileStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, input repository.ProfileInput) (models.User, error)
}

type ProfileHandler struct {
	Users ProfileStore
}

// NewProfileHandler создает обработчик профиля питания.
func NewProfileHandler(users ProfileStore) *ProfileHandler {
	return &ProfileHandler{Users: users}
}

type NutritionRequest struct {
	Calories float64 `json:"calories" validate:"gt=0,lte=10000"`
	Protein  float64 `json:"protein" validate:"gte=0,lte=1000"`
	Fat      float64 `json:"fat" validate:"gte=0,lte=1000"`
	Carbs    float64 `json:"carbs" validate:"gte=0,lte=2000"`
}

type MealSettingRequest struct {
	Mode string `json:"mode" validate:"required,slot_mode"`
	Text string `json:"text" validate:"max=200"`
}

type ProfileRequest struct {
	Name         *string                       `json:"name" validate:"omitempty,max=100"`
	DailyGoal    NutritionRequest              `json:"daily_goal"`
	Dislikes     []string                      `json:"dislikes" validate:"max=50,dive,max=100"`
	MealSettings map[string]MealSettingRequest `json:"meal_settings" validate:"dive,keys,meal_type,endkeys"`
	CheatDays    []string                      `json:"cheat_days" validate:"max=7,dive,weekday"`
}

type ProfileResponse struct {
	ID           uuid.UUID                                  `json:"id"`
	Email        string                                     `json:"email"`
	Name         *string                                    `json:"name,omitempty"`
	DailyGoal    models.NutritionVector                     `json:"daily_goal"`
	Dislikes     []string                                   `json:"dislikes"`
	MealSettings map[models.MealType]models.MealSlotSetting `json:"meal_settings"`
	CheatDays    []string                                   `json:"cheat_days"`
	UpdatedAt    string                                     `json:"updated_at"`
}

// Get возвращает профиль питания текущего пользователя.
func (h *ProfileHandler) Get(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	user, err := h.Users.GetByID(c.Request().Context(), userID)
	if err != nil {
		return storeError(c, err, "user not found")
	}

	return c.JSON(http.StatusOK, toProfileResponse(user))
}

// Update заменяет профиль питания целиком.
func (h *ProfileHandler) Update(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req ProfileRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "validation failed")
	}

	user, err := h.Users.UpdateProfile(c.Request().Context(), userID, profileInput(req))
	if err != nil {
		return storeError(c, err, "user not found")
	}

	return c.JSON(http.StatusOK, toProfileResponse(user))
}

func profileInput(req ProfileRequest) repository.ProfileInput {
	settings := make(map[models.MealType]models.MealSlotSetting, len(req.MealSettings))
	for mealType, setting := range req.MealSettings {
		mode := models.SlotMode(setting.Mode)
		text := strings.TrimSpace(setting.Text)
		if mode == models.SlotModeAuto {
			text = ""
		}
		settings[models.MealType(mealType)] = models.MealSlotSetting{Mode: mode, Text: text}
	}

	return repository.ProfileInput{
		Name: normalizeName(req.Name),
		DailyGoal: models.NutritionVector{
			Calories: req.DailyGoal.Calories,
			Protein:  req.DailyGoal.Protein,
			Fat:      req.DailyGoal.Fat,
			Carbs:    req.DailyGoal.Carbs,
		},
		Dislikes:     normalizeDislikes(req.Dislikes),
		MealSettings: settings,
		CheatDays:    parseCheatDays(req.CheatDays),
	}
}

// normalizeDislikes убирает пустые и повторяющиеся строки, сохраняя порядок.
func normalizeDislikes(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

func parseCheatDays(values []string) []time.Weekday {
	seen := make(map[time.Weekday]bool, len(values))
	out := make([]time.Weekday, 0, len(values))
	for _, value := range values {
		day, ok := models.ParseWeekday(value)
		if !ok || seen[day] {
			continue
		}
		seen[day] = true
		out = append(out, day)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func toProfileResponse(user models.User) ProfileResponse {
	cheatDays := make([]string, 0, len(user.CheatDays))
	for _, day := range user.CheatDays {
		cheatDays = append(cheatDays, models.WeekdayName(day))
	}

	dislikes := user.Dislikes
	if dislikes == nil {
		dislikes = []string{}
	}
	settings := user.MealSettings
	if settings == nil {
		settings = map[models.MealType]models.MealSlotSetting{}
	}

	return ProfileResponse{
		ID:           user.ID,
		Email:        user.Email,
		Name:         user.Name,
		DailyGoal:    user.DailyGoal,
		Dislikes:     dislikes,
		MealSettings: settings,
		CheatDays:    cheatDays,
		UpdatedAt:    user.UpdatedAt.Format(timeLayout),
	}
}
