package nutrition

import (
	"math"

	"example.com/ai-meal-planner/backend/internal/models"
)

// RemainingBudget вычитает питание якорей из дневной цели с отсечкой на нуле.
func RemainingBudget(daily models.NutritionVector, anchors []models.Anchor) models.NutritionVector {
	var anchored models.NutritionVector
	for _, anchor := range anchors {
		anchored = anchored.Add(anchor.EstimatedNutrition)
	}

	return models.NutritionVector{
		Calories: math.Max(0, daily.Calories-anchored.Calories),
		Protein:  math.Max(0, daily.Protein-anchored.Protein),
		Fat:      math.Max(0, daily.Fat-anchored.Fat),
		Carbs:    math.Max(0, daily.Carbs-anchored.Carbs),
	}
}

// SlotTargets строит цели по слотам: custom-якоря проверяются по своей оценке,
// auto-слоты делят остаток бюджета пропорционально весам 20/40/40.
func SlotTargets(daily models.NutritionVector, anchors []models.Anchor) MealTargets {
	if len(anchors) == 0 {
		return SplitDailyTarget(daily)
	}

	anchored := make(map[models.MealType]models.Anchor, len(anchors))
	for _, anchor := range anchors {
		anchored[anchor.MealType] = anchor
	}

	targets := make(MealTargets, len(models.PlannedMealTypes))
	var autoWeight float64
	for _, mealType := range models.PlannedMealTypes {
		if _, ok := anchored[mealType]; !ok {
			autoWeight += splitRatios[mealType]
		}
	}

	remaining := RemainingBudget(daily, anchors)
	for _, mealType := range models.PlannedMealTypes {
		if anchor, ok := anchored[mealType]; ok {
			if anchor.Mode == models.SlotModeCustom {
				targets[mealType] = anchor.EstimatedNutrition
			}
			continue
		}
		if autoWeight == 0 {
			continue
		}
		targets[mealType] = scaleRounded(remaining, splitRatios[mealType]/autoWeight)
	}
	return targets
}

// Rescale переносит цель на новую калорийность, сохраняя пропорции БЖУ.
func Rescale(target models.NutritionVector, calories float64) models.NutritionVector {
	if target.Calories <= 0 || calories <= 0 {
		return target
	}
	ratio := calories / target.Calories
	return models.NutritionVector{
		Calories: math.Round(calories),
		Protein:  math.Round(target.Protein * ratio),
		Fat:      math.Round(target.Fat * ratio),
		Carbs:    math.Round(target.Carbs * ratio),
	}
}
