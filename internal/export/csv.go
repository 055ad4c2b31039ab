package export

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"strings"

	"example.com/ai-meal-planner/backend/internal/models"
)

// WriteShoppingCSV пишет список покупок: одна строка на позицию в порядке списка.
func WriteShoppingCSV(w io.Writer, list models.ShoppingList) error {
	writer := csv.NewWriter(w)

	header := []string{"plan_id", "index", "ingredient", "amount", "category", "checked"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for i, item := range list.Items {
		record := []string{
			list.PlanID.String(),
			strconv.Itoa(i),
			item.Ingredient,
			item.Amount,
			string(item.Category),
			strconv.FormatBool(item.Checked),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteMealsCSV пишет блюда плана по датам и слотам.
func WriteMealsCSV(w io.Writer, plan models.MealPlan) error {
	writer := csv.NewWriter(w)

	header := []string{
		"plan_id",
		"date",
		"is_cheat_day",
		"meal_type",
		"title",
		"calories",
		"protein",
		"fat",
		"carbs",
		"tags",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	dates := make([]string, 0, len(plan.Days))
	for date := range plan.Days {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	for _, date := range dates {
		day := plan.Days[date]
		for _, mealType := range models.AllMealTypes {
			meal, ok := day.Meals[mealType]
			if !ok {
				continue
			}
			record := []string{
				plan.ID.String(),
				date,
				strconv.FormatBool(day.IsCheatDay),
				string(mealType),
				meal.Title,
				formatFloat(meal.Nutrition.Calories),
				formatFloat(meal.Nutrition.Protein),
				formatFloat(meal.Nutrition.Fat),
				formatFloat(meal.Nutrition.Carbs),
				strings.Join(meal.Tags, "|"),
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
