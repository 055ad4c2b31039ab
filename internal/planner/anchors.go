package planner

import (
	"context"
	"log/slog"
	"strings"

	"example.com/ai-meal-planner/backend/internal/ai"
	"example.com/ai-meal-planner/backend/internal/models"
)

type AnchorResolver struct {
	estimator Estimator
	logger    *slog.Logger
}

// NewAnchorResolver создает резолвер фиксированных и пользовательских слотов.
func NewAnchorResolver(estimator Estimator, logger *slog.Logger) *AnchorResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnchorResolver{estimator: estimator, logger: logger}
}

// Resolve превращает настройки слотов в якоря. Ошибка оценки любого слота
// не возвращается: результат тогда пустой и все слоты генерируются как auto.
func (r *AnchorResolver) Resolve(ctx context.Context, settings map[models.MealType]models.MealSlotSetting, daily models.NutritionVector) []models.Anchor {
	anchors := []models.Anchor{}

	var pending []models.MealType
	for _, mealType := range models.PlannedMealTypes {
		if isAnchored(settings[mealType]) {
			pending = append(pending, mealType)
		}
	}
	if len(pending) == 0 {
		return anchors
	}

	for _, mealType := range pending {
		setting := settings[mealType]
		text := strings.TrimSpace(setting.Text)

		estimate, err := r.estimator.EstimateNutrition(ctx, ai.EstimateRequest{
			MealType:    mealType,
			Description: text,
			DailyTarget: daily,
		})
		if err != nil {
			r.logger.Warn("anchor estimation failed, treating all slots as auto",
				slog.String("meal_type", string(mealType)),
				slog.Any("error", err),
			)
			return []models.Anchor{}
		}

		title := text
		if setting.Mode == models.SlotModeCustom && strings.TrimSpace(estimate.Title) != "" {
			title = strings.TrimSpace(estimate.Title)
		}

		anchors = append(anchors, models.Anchor{
			MealType:           mealType,
			Mode:               setting.Mode,
			ResolvedTitle:      title,
			EstimatedNutrition: estimate.Nutrition,
			Reason:             estimate.Reason,
		})
	}
	return anchors
}

// Слот без текста ведет себя как auto.
func isAnchored(setting models.MealSlotSetting) bool {
	switch setting.Mode {
	case models.SlotModeFixed, models.SlotModeCustom:
		return strings.TrimSpace(setting.Text) != ""
	default:
		return false
	}
}

func anchorSlots(anchors []models.Anchor, settings map[models.MealType]models.MealSlotSetting) []ai.AnchorSlot {
	slots := make([]ai.AnchorSlot, 0, len(anchors))
	for _, anchor := range anchors {
		slots = append(slots, ai.AnchorSlot{
			MealType:   anchor.MealType,
			Mode:       anchor.Mode,
			Title:      anchor.ResolvedTitle,
			Constraint: strings.TrimSpace(settings[anchor.MealType].Text),
			Nutrition:  anchor.EstimatedNutrition,
		})
	}
	return slots
}

func fixedTitles(anchors []models.Anchor) []string {
	var titles []string
	for _, anchor := range anchors {
		if anchor.Mode == models.SlotModeFixed {
			titles = append(titles, anchor.ResolvedTitle)
		}
	}
	return titles
}
