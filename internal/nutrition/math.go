package nutrition

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"example.com/ai-meal-planner/backend/internal/models"
)

// DefaultTolerancePct is the accepted relative error for every nutrient.
const DefaultTolerancePct = 15.0

// toleranceEpsilon absorbs float representation error at the band edge.
const toleranceEpsilon = 1e-9

var splitRatios = map[models.MealType]float64{
	models.MealTypeBreakfast: 0.20,
	models.MealTypeLunch:     0.40,
	models.MealTypeDinner:    0.40,
}

type MealTargets map[models.MealType]models.NutritionVector

type ValidateOptions struct {
	TolerancePct float64
	FixedTitles  []string
}

// SplitDailyTarget делит дневную цель на завтрак, обед и ужин в пропорции 20/40/40.
func SplitDailyTarget(daily models.NutritionVector) MealTargets {
	targets := make(MealTargets, len(splitRatios))
	for _, mealType := range models.PlannedMealTypes {
		targets[mealType] = scaleRounded(daily, splitRatios[mealType])
	}
	return targets
}

// Daily возвращает сумму целей по всем приемам пищи.
func (t MealTargets) Daily() models.NutritionVector {
	var total models.NutritionVector
	for _, mealType := range models.PlannedMealTypes {
		total = total.Add(t[mealType])
	}
	return total
}

// WithinTolerance проверяет одно значение против цели с допуском pct процентов.
func WithinTolerance(actual, target, pct float64) bool {
	if target == 0 {
		return actual == 0
	}
	return math.Abs(actual-target)/target <= pct/100+toleranceEpsilon
}

// MealErrors возвращает нарушения допуска по каждому нутриенту блюда.
func MealErrors(actual, target models.NutritionVector, pct float64) []string {
	checks := []struct {
		name           string
		actual, target float64
	}{
		{"calories", actual.Calories, target.Calories},
		{"protein", actual.Protein, target.Protein},
		{"fat", actual.Fat, target.Fat},
		{"carbs", actual.Carbs, target.Carbs},
	}

	var errs []string
	for _, check := range checks {
		if WithinTolerance(check.actual, check.target, pct) {
			continue
		}
		errs = append(errs, fmt.Sprintf("%s %s outside ±%s%% of %s",
			check.name, formatNumber(check.actual), formatNumber(pct), formatNumber(check.target)))
	}
	return errs
}

// ValidatePlan проверяет все блюда плана, пропуская читмилы и фиксированные меню.
func ValidatePlan(days map[string]models.DayPlan, targets MealTargets, opts ValidateOptions) models.ValidationResult {
	pct := opts.TolerancePct
	if pct <= 0 {
		pct = DefaultTolerancePct
	}

	fixed := make(map[string]struct{}, len(opts.FixedTitles))
	for _, title := range opts.FixedTitles {
		if trimmed := strings.TrimSpace(title); trimmed != "" {
			fixed[trimmed] = struct{}{}
		}
	}

	result := models.ValidationResult{IsValid: true, InvalidMeals: []models.PlanValidationError{}}
	for _, date := range SortedDates(days) {
		day := days[date]
		if day.IsCheatDay {
			continue
		}

		for _, mealType := range models.AllMealTypes {
			meal, ok := day.Meals[mealType]
			if !ok {
				continue
			}
			target, ok := targets[mealType]
			if !ok {
				continue
			}
			if _, isFixed := fixed[strings.TrimSpace(meal.Title)]; isFixed {
				continue
			}

			errs := MealErrors(meal.Nutrition, target, pct)
			if len(errs) == 0 {
				continue
			}

			result.InvalidMeals = append(result.InvalidMeals, models.PlanValidationError{
				Date:     date,
				MealType: mealType,
				Actual:   meal.Nutrition,
				Target:   target,
				Errors:   errs,
			})
		}
	}

	result.IsValid = len(result.InvalidMeals) == 0
	if result.IsValid {
		result.Summary = "all meals within tolerance"
	} else {
		result.Summary = fmt.Sprintf("%d meal(s) outside ±%s%% tolerance", len(result.InvalidMeals), formatNumber(pct))
	}
	return result
}

// RecomputeDayTotals пересчитывает итог дня как сумму присутствующих блюд.
func RecomputeDayTotals(day models.DayPlan) models.DayPlan {
	var total models.NutritionVector
	for _, meal := range day.Meals {
		total = total.Add(meal.Nutrition)
	}
	day.TotalNutrition = total
	return day
}

// SortedDates возвращает ключи дней в хронологическом порядке.
func SortedDates(days map[string]models.DayPlan) []string {
	dates := make([]string, 0, len(days))
	for date := range days {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}

func scaleRounded(v models.NutritionVector, ratio float64) models.NutritionVector {
	return models.NutritionVector{
		Calories: math.Round(v.Calories * ratio),
		Protein:  math.Round(v.Protein * ratio),
		Fat:      math.Round(v.Fat * ratio),
		Carbs:    math.Round(v.Carbs * ratio),
	}
}

func formatNumber(value float64) string {
	if value == math.Trunc(value) {
		return fmt.Sprintf("%.0f", value)
	}
	return fmt.Sprintf("%.1f", value)
}
