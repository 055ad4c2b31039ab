package nutrition

import (
	"testing"

	"example.com/ai-meal-planner/backend/internal/models"
)

// TestRemainingBudgetNoAnchors проверяет, что без якорей остаток равен цели.
func TestRemainingBudgetNoAnchors(t *testing.T) {
	daily := models.NutritionVector{Calories: 1800, Protein: 120, Fat: 50, Carbs: 200}
	if got := RemainingBudget(daily, nil); got != daily {
		t.Fatalf("expected %+v, got %+v", daily, got)
	}
}

// TestRemainingBudgetClamp проверяет отсечку отрицательных компонент.
func TestRemainingBudgetClamp(t *testing.T) {
	daily := models.NutritionVector{Calories: 1800, Protein: 120, Fat: 50, Carbs: 200}
	anchors := []models.Anchor{
		{MealType: models.MealTypeBreakfast, EstimatedNutrition: models.NutritionVector{Calories: 500, Protein: 30, Fat: 40, Carbs: 60}},
		{MealType: models.MealTypeLunch, EstimatedNutrition: models.NutritionVector{Calories: 700, Protein: 40, Fat: 30, Carbs: 90}},
	}

	got := RemainingBudget(daily, anchors)
	want := models.NutritionVector{Calories: 600, Protein: 50, Fat: 0, Carbs: 50}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

// TestSlotTargetsWithAnchors проверяет распределение остатка по auto-слотам.
func TestSlotTargetsWithAnchors(t *testing.T) {
	daily := models.NutritionVector{Calories: 1800, Protein: 120, Fat: 50, Carbs: 200}
	anchors := []models.Anchor{
		{MealType: models.MealTypeBreakfast, Mode: models.SlotModeFixed, EstimatedNutrition: models.NutritionVector{Calories: 400, Protein: 20, Fat: 10, Carbs: 40}},
		{MealType: models.MealTypeLunch, Mode: models.SlotModeCustom, EstimatedNutrition: models.NutritionVector{Calories: 600, Protein: 40, Fat: 20, Carbs: 60}},
	}

	targets := SlotTargets(daily, anchors)
	if _, ok := targets[models.MealTypeBreakfast]; ok {
		t.Fatal("expected fixed slot to have no target")
	}
	if targets[models.MealTypeLunch] != anchors[1].EstimatedNutrition {
		t.Fatalf("expected custom target to equal estimate, got %+v", targets[models.MealTypeLunch])
	}

	want := models.NutritionVector{Calories: 800, Protein: 60, Fat: 20, Carbs: 100}
	if targets[models.MealTypeDinner] != want {
		t.Fatalf("expected %+v, got %+v", want, targets[models.MealTypeDinner])
	}
}

// TestRescale проверяет сохранение пропорций БЖУ при смене калорийности.
func TestRescale(t *testing.T) {
	target := models.NutritionVector{Calories: 600, Protein: 40, Fat: 20, Carbs: 60}
	got := Rescale(target, 900)
	want := models.NutritionVector{Calories: 900, Protein: 60, Fat: 30, Carbs: 90}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	if got := Rescale(target, 0); got != target {
		t.Fatalf("expected unchanged target, got %+v", got)
	}
}
