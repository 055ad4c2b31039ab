package nutrition

import (
	"testing"

	"example.com/ai-meal-planner/backend/internal/models"
)

// TestSplitDailyTarget проверяет деление 20/40/40 с независимым округлением.
func TestSplitDailyTarget(t *testing.T) {
	targets := SplitDailyTarget(models.NutritionVector{Calories: 1800, Protein: 120, Fat: 50, Carbs: 200})

	want := models.NutritionVector{Calories: 360, Protein: 24, Fat: 10, Carbs: 40}
	if targets[models.MealTypeBreakfast] != want {
		t.Fatalf("expected %+v, got %+v", want, targets[models.MealTypeBreakfast])
	}

	want = models.NutritionVector{Calories: 720, Protein: 48, Fat: 20, Carbs: 80}
	if targets[models.MealTypeDinner] != want {
		t.Fatalf("expected %+v, got %+v", want, targets[models.MealTypeDinner])
	}

	odd := SplitDailyTarget(models.NutritionVector{Calories: 1001, Protein: 7, Fat: 3, Carbs: 11})
	if odd[models.MealTypeBreakfast].Calories != 200 || odd[models.MealTypeLunch].Calories != 400 {
		t.Fatalf("unexpected rounding: %+v", odd)
	}
	if odd.Daily().Calories != 1000 {
		t.Fatalf("expected rounding loss to be kept, got %v", odd.Daily().Calories)
	}
}

// TestWithinToleranceBoundary проверяет границу допуска 15%.
func TestWithinToleranceBoundary(t *testing.T) {
	for _, target := range []float64{24, 40, 360, 720, 1800, 13} {
		if !WithinTolerance(target*1.15, target, 15) {
			t.Fatalf("expected %v to pass for target %v", target*1.15, target)
		}
		if !WithinTolerance(target*0.85, target, 15) {
			t.Fatalf("expected %v to pass for target %v", target*0.85, target)
		}
		if WithinTolerance(target*1.1501, target, 15) {
			t.Fatalf("expected %v to fail for target %v", target*1.1501, target)
		}
	}
}

// TestWithinToleranceZeroTarget проверяет поведение при нулевой цели.
func TestWithinToleranceZeroTarget(t *testing.T) {
	if !WithinTolerance(0, 0, 15) {
		t.Fatal("expected 0 vs 0 to pass")
	}
	if WithinTolerance(5, 0, 15) {
		t.Fatal("expected 5 vs 0 to fail")
	}
}

// TestValidatePlanSkipsCheatDay проверяет, что читмил-день не проверяется.
func TestValidatePlanSkipsCheatDay(t *testing.T) {
	targets := SplitDailyTarget(models.NutritionVector{Calories: 1800, Protein: 120, Fat: 50, Carbs: 200})
	days := map[string]models.DayPlan{
		"2024-05-01": {
			IsCheatDay: true,
			Meals: map[models.MealType]models.MealSlot{
				models.MealTypeLunch: {Title: "ラーメン", Nutrition: models.NutritionVector{Calories: 3000, Protein: 5, Fat: 150, Carbs: 400}},
			},
		},
	}

	result := ValidatePlan(days, targets, ValidateOptions{})
	if !result.IsValid || len(result.InvalidMeals) != 0 {
		t.Fatalf("expected no errors, got %+v", result.InvalidMeals)
	}
}

// TestValidatePlanFixedTitle проверяет обход проверки для фиксированного меню.
func TestValidatePlanFixedTitle(t *testing.T) {
	targets := SplitDailyTarget(models.NutritionVector{Calories: 1800, Protein: 120, Fat: 50, Carbs: 200})
	day := models.DayPlan{Meals: map[models.MealType]models.MealSlot{
		models.MealTypeBreakfast: {Title: "納豆ごはん", Nutrition: models.NutritionVector{Calories: 900}},
		models.MealTypeLunch:     {Title: "サラダ", Nutrition: models.NutritionVector{Calories: 100}},
	}}
	days := map[string]models.DayPlan{"2024-05-01": day}

	result := ValidatePlan(days, targets, ValidateOptions{FixedTitles: []string{" 納豆ごはん "}})
	if result.IsValid {
		t.Fatal("expected lunch to be invalid")
	}
	if len(result.InvalidMeals) != 1 || result.InvalidMeals[0].MealType != models.MealTypeLunch {
		t.Fatalf("expected only lunch to fail, got %+v", result.InvalidMeals)
	}
	if len(result.InvalidMeals[0].Errors) != 4 {
		t.Fatalf("expected 4 nutrient errors, got %v", result.InvalidMeals[0].Errors)
	}
}

// TestRecomputeDayTotals проверяет, что итог равен сумме блюд.
func TestRecomputeDayTotals(t *testing.T) {
	day := models.DayPlan{
		Meals: map[models.MealType]models.MealSlot{
			models.MealTypeBreakfast: {Nutrition: models.NutritionVector{Calories: 300, Protein: 20, Fat: 10, Carbs: 30}},
			models.MealTypeSnack:     {Nutrition: models.NutritionVector{Calories: 150, Protein: 5, Fat: 5, Carbs: 20}},
		},
		TotalNutrition: models.NutritionVector{Calories: 1},
	}

	got := RecomputeDayTotals(day).TotalNutrition
	want := models.NutritionVector{Calories: 450, Protein: 25, Fat: 15, Carbs: 50}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	delete(day.Meals, models.MealTypeSnack)
	got = RecomputeDayTotals(day).TotalNutrition
	if got.Calories != 300 {
		t.Fatalf("expected 300 after removal, got %v", got.Calories)
	}
}
