package planner

import (
	"sort"

	"github.com/google/uuid"

	"example.com/ai-meal-planner/backend/internal/ai"
	"example.com/ai-meal-planner/backend/internal/models"
	"example.com/ai-meal-planner/backend/internal/nutrition"
)

func slotKey(date string, mealType models.MealType) string {
	return date + "_" + string(mealType)
}

func sortedKeys(days map[string]models.DayPlan) []string {
	dates := make([]string, 0, len(days))
	for date := range days {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}

func candidateSlot(candidate ai.MealCandidate) models.MealSlot {
	return models.MealSlot{
		ID:          uuid.NewString(),
		Title:       candidate.Title,
		Status:      models.MealStatusPlanned,
		Nutrition:   candidate.Nutrition,
		Tags:        candidate.Tags,
		Ingredients: candidate.Ingredients,
		Steps:       candidate.Steps,
	}
}

// missingSlot занимает место блюда, которое модель не вернула. Нулевое питание
// не проходит проверку, поэтому слот уйдет в ремонт, а затем в запасной вариант.
func missingSlot() models.MealSlot {
	return models.MealSlot{ID: uuid.NewString(), Status: models.MealStatusPlanned}
}

// applyAnchors закрепляет за fixed-слотами текст пользователя и оценку питания.
// Читмил-дни остаются такими, какими их вернула модель.
func applyAnchors(day models.DayPlan, anchors []models.Anchor) {
	if day.IsCheatDay {
		return
	}
	for _, anchor := range anchors {
		meal, ok := day.Meals[anchor.MealType]
		if !ok {
			meal = missingSlot()
		}
		if anchor.Mode == models.SlotModeFixed {
			meal.Title = anchor.ResolvedTitle
			meal.Nutrition = anchor.EstimatedNutrition
		}
		if !meal.HasTag(models.TagAnchor) {
			meal.Tags = append(meal.Tags, models.TagAnchor)
		}
		day.Meals[anchor.MealType] = meal
	}
}

// fillMissing добавляет пустые слоты на место отсутствующих плановых приемов пищи.
func fillMissing(day models.DayPlan) {
	if day.IsCheatDay {
		return
	}
	for _, mealType := range models.PlannedMealTypes {
		if _, ok := day.Meals[mealType]; !ok {
			day.Meals[mealType] = missingSlot()
		}
	}
}

func recomputeAll(days map[string]models.DayPlan) {
	for date, day := range days {
		days[date] = nutrition.RecomputeDayTotals(day)
	}
}

func cheatSet(dates []string) map[string]bool {
	set := make(map[string]bool, len(dates))
	for _, date := range dates {
		set[date] = true
	}
	return set
}
