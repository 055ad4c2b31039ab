package ai

import (
	"fmt"
	"math"
	"strings"
	"time"

	"example.com/ai-meal-planner/backend/internal/models"
)

const (
	maxTitleLength = 200
	maxTagsPerMeal = 10
	dateLayout     = "2006-01-02"
)

func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidResponse, fmt.Sprintf(format, args...))
}

func validNutrition(n models.NutritionVector) bool {
	for _, v := range []float64{n.Calories, n.Protein, n.Fat, n.Carbs} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func isPlannedMealType(mealType models.MealType) bool {
	for _, t := range models.PlannedMealTypes {
		if t == mealType {
			return true
		}
	}
	return false
}

func normalizeCandidate(candidate *MealCandidate) {
	candidate.Title = strings.TrimSpace(candidate.Title)

	tags := candidate.Tags[:0]
	for _, tag := range candidate.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	candidate.Tags = tags

	ingredients := candidate.Ingredients[:0]
	for _, ing := range candidate.Ingredients {
		ing.Name = strings.TrimSpace(ing.Name)
		ing.Amount = strings.TrimSpace(ing.Amount)
		if ing.Name != "" {
			ingredients = append(ingredients, ing)
		}
	}
	candidate.Ingredients = ingredients
}

func validateCandidate(label string, candidate MealCandidate) error {
	if candidate.Title == "" {
		return invalidf("%s: title is required", label)
	}
	if len(candidate.Title) > maxTitleLength {
		return invalidf("%s: title is too long", label)
	}
	if !validNutrition(candidate.Nutrition) {
		return invalidf("%s: nutrition must be non-negative", label)
	}
	if len(candidate.Tags) > maxTagsPerMeal {
		return invalidf("%s: too many tags", label)
	}
	return nil
}

func validateEstimateResponse(response EstimateResponse) error {
	if strings.TrimSpace(response.Title) == "" {
		return invalidf("estimate title is required")
	}
	if !validNutrition(response.Nutrition) {
		return invalidf("estimate nutrition must be non-negative")
	}
	if response.Nutrition.Calories == 0 {
		return invalidf("estimate calories are required")
	}
	return nil
}

// validateDays проверяет, что каждая запрошенная дата встречается ровно один раз.
func validateDays(requested []string, returned []string) error {
	want := make(map[string]bool, len(requested))
	for _, date := range requested {
		want[date] = false
	}

	for _, date := range returned {
		if _, err := time.Parse(dateLayout, date); err != nil {
			return invalidf("invalid date %q", date)
		}
		seen, ok := want[date]
		if !ok {
			return invalidf("unexpected date %s", date)
		}
		if seen {
			return invalidf("duplicate date %s", date)
		}
		want[date] = true
	}

	for _, date := range requested {
		if !want[date] {
			return invalidf("missing date %s", date)
		}
	}
	return nil
}

func validatePlanResponse(response PlanResponse, request PlanRequest) error {
	dates := make([]string, 0, len(response.Days))
	for _, day := range response.Days {
		dates = append(dates, day.Date)
	}
	if err := validateDays(request.Dates, dates); err != nil {
		return err
	}

	for _, day := range response.Days {
		if err := validateDayMeals(day.Date, day.Meals); err != nil {
			return err
		}
	}
	return nil
}

// validateDayMeals не требует всех приемов пищи: пропущенный слот планировщик
// заменяет пустым, и он проходит через ремонт и запасной вариант.
func validateDayMeals(date string, meals map[models.MealType]MealCandidate) error {
	for mealType, candidate := range meals {
		if mealType != models.MealTypeSnack && !isPlannedMealType(mealType) {
			return invalidf("%s: unknown meal type %q", date, mealType)
		}
		if err := validateCandidate(date+"_"+string(mealType), candidate); err != nil {
			return err
		}
	}
	return nil
}

// Ключи ответа ремонта не проверяются на соответствие запросу: лишние ключи отбрасывает оркестратор.
func validateRepairResponse(response RepairResponse) error {
	if response.Meals == nil {
		return invalidf("repair meals are required")
	}
	for key, candidate := range response.Meals {
		if err := validateCandidate(key, candidate); err != nil {
			return err
		}
	}
	return nil
}

func validateSkeletonResponse(response SkeletonResponse, request SkeletonRequest) error {
	dates := make([]string, 0, len(response.Days))
	for _, day := range response.Days {
		dates = append(dates, day.Date)
	}
	if err := validateDays(request.Dates, dates); err != nil {
		return err
	}

	for _, day := range response.Days {
		for _, mealType := range models.PlannedMealTypes {
			meal, ok := day.Meals[mealType]
			if !ok {
				return invalidf("%s: %s skeleton is missing", day.Date, mealType)
			}
			if strings.TrimSpace(meal.Title) == "" {
				return invalidf("%s: %s skeleton title is required", day.Date, mealType)
			}
			if meal.ApproxCalories < 0 || math.IsNaN(meal.ApproxCalories) {
				return invalidf("%s: %s approx_calories must be non-negative", day.Date, mealType)
			}
		}
	}

	if len(response.Pools) == 0 {
		return invalidf("ingredient pools are required")
	}
	for i, pool := range response.Pools {
		start, err := time.Parse(dateLayout, pool.Period.Start)
		if err != nil {
			return invalidf("pool %d: invalid start", i)
		}
		end, err := time.Parse(dateLayout, pool.Period.End)
		if err != nil {
			return invalidf("pool %d: invalid end", i)
		}
		if end.Before(start) {
			return invalidf("pool %d: end before start", i)
		}
	}
	return nil
}

func validateDayResponse(response DayResponse, request DayRequest) error {
	return validateDayMeals(request.Date, response.Meals)
}

func validateRecipeResponse(response RecipeResponse) error {
	if len(response.Ingredients) == 0 {
		return invalidf("recipe ingredients are required")
	}
	for _, ing := range response.Ingredients {
		if strings.TrimSpace(ing.Name) == "" {
			return invalidf("ingredient name is required")
		}
	}
	if len(response.Steps) == 0 {
		return invalidf("recipe steps are required")
	}
	return nil
}
