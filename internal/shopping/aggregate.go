package shopping

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"

	"example.com/ai-meal-planner/backend/internal/models"
	"example.com/ai-meal-planner/backend/internal/nutrition"
)

// amountPattern: optional number or fraction followed by an optional letter run.
var amountPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?(?:/\d+(?:\.\d+)?)?)?\s*(\p{L}*)$`)

type Line struct {
	Name   string
	Amount string
}

type group struct {
	name     string
	units    []string
	totals   map[string]float64
	literals []string
	seen     map[string]struct{}
}

// LinesFromPlan собирает строки ингредиентов из всех блюд, кроме читмил-дней.
func LinesFromPlan(days map[string]models.DayPlan) []Line {
	lines := make([]Line, 0)
	for _, date := range nutrition.SortedDates(days) {
		day := days[date]
		if day.IsCheatDay {
			continue
		}
		for _, mealType := range models.AllMealTypes {
			meal, ok := day.Meals[mealType]
			if !ok {
				continue
			}
			for _, ingredient := range meal.Ingredients {
				lines = append(lines, Line{Name: ingredient.Name, Amount: ingredient.Amount})
			}
		}
	}
	return lines
}

// Aggregate группирует строки по названию, суммирует количества и назначает категории.
func Aggregate(lines []Line) []models.ShoppingItem {
	order := make([]string, 0)
	groups := make(map[string]*group)

	for _, line := range lines {
		name := strings.TrimSpace(line.Name)
		if name == "" {
			continue
		}

		g, ok := groups[name]
		if !ok {
			g = &group{name: name, totals: make(map[string]float64), seen: make(map[string]struct{})}
			groups[name] = g
			order = append(order, name)
		}
		g.add(strings.TrimSpace(line.Amount))
	}

	items := make([]models.ShoppingItem, 0, len(order))
	for _, name := range order {
		g := groups[name]
		amount := strings.Join(append(g.formatTotals(), g.literals...), ", ")
		items = append(items, models.ShoppingItem{
			Ingredient: name,
			Amount:     amount,
			Category:   Categorize(name, amount),
		})
	}
	return items
}

// ParseAmount разбирает строку количества на число и единицу.
// Полноширинные цифры и знаки («１／２個», «１５０ｇ») приводятся к ASCII.
func ParseAmount(amount string) (value float64, unit string, ok bool) {
	match := amountPattern.FindStringSubmatch(strings.TrimSpace(width.Fold.String(amount)))
	if match == nil || match[1] == "" {
		return 0, "", false
	}

	value, err := parseNumber(match[1])
	if err != nil {
		return 0, "", false
	}
	return value, match[2], true
}

// FormatQuantity выводит целые без дробной части, остальные с одним знаком.
func FormatQuantity(value float64, unit string) string {
	rounded := math.Round(value*10) / 10
	if rounded == math.Trunc(rounded) {
		return strconv.FormatFloat(rounded, 'f', 0, 64) + unit
	}
	return strconv.FormatFloat(rounded, 'f', 1, 64) + unit
}

func (g *group) add(amount string) {
	if value, unit, ok := ParseAmount(amount); ok {
		if _, exists := g.totals[unit]; !exists {
			g.units = append(g.units, unit)
		}
		g.totals[unit] += value
		return
	}

	if amount == "" {
		return
	}
	if _, dup := g.seen[amount]; dup {
		return
	}
	g.seen[amount] = struct{}{}
	g.literals = append(g.literals, amount)
}

func (g *group) formatTotals() []string {
	out := make([]string, 0, len(g.units))
	for _, unit := range g.units {
		out = append(out, FormatQuantity(g.totals[unit], unit))
	}
	return out
}

func parseNumber(raw string) (float64, error) {
	numerator, denominator, isFraction := strings.Cut(raw, "/")
	n, err := strconv.ParseFloat(numerator, 64)
	if err != nil {
		return 0, err
	}
	if !isFraction {
		return n, nil
	}

	d, err := strconv.ParseFloat(denominator, 64)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return 0, strconv.ErrRange
	}
	return n / d, nil
}
