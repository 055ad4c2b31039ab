package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

const systemPrompt = "You are a meal planning assistant that balances macro-nutrients. Respond with JSON only, without extra text."

const mealSchema = `{"title": string, "nutrition": {"calories": number, "protein": number, "fat": number, "carbs": number}, "tags": [string], "ingredients": [{"name": string, "amount": string}], "steps": [string]}`

type promptSpec struct {
	task   string
	schema string
	rules  []string
}

var (
	estimatePrompt = promptSpec{
		task:   "Estimate the nutrition of one meal described by the user.",
		schema: `{"title": string, "nutrition": {"calories": number, "protein": number, "fat": number, "carbs": number}, "reason": string}`,
		rules: []string{
			"The description may be free text without units; assume one standard serving.",
			"title is a short dish name for the description.",
			"Use the daily target only as context for portion size.",
		},
	}

	generatePlanPrompt = promptSpec{
		task:   "Create a multi-day meal plan.",
		schema: `{"days": [{"date": "YYYY-MM-DD", "meals": {"breakfast": MEAL, "lunch": MEAL, "dinner": MEAL}}]}` + "\nMEAL = " + mealSchema,
		rules: []string{
			"Return exactly one entry per date in dates.",
			"Anchor slots must be echoed verbatim: same title and nutrition as given.",
			"Fill every other slot so its nutrition matches slot_targets for that meal type within 10%.",
			"Never use ingredients from dislikes.",
			"Do not repeat titles from existing_titles and avoid repeating a title within the plan.",
			"Reuse ingredients across days to reduce waste.",
			"Cheat dates may ignore targets.",
			"If rejection_feedback is present, address it.",
			"Use Japanese for titles, ingredient names and amounts (e.g. 150g, 1/2個, 少々).",
		},
	}

	repairPrompt = promptSpec{
		task:   "Replace meals that missed their nutrition targets.",
		schema: `{"meals": {"<key>": MEAL}}` + "\nMEAL = " + mealSchema,
		rules: []string{
			"Return one meal per slot, keyed by the slot key exactly as given.",
			"Calories must be within tolerance_pct percent of the slot target; protein, fat and carbs as close as possible.",
			"If a slot has a constraint, the replacement must still satisfy it.",
			"Never use ingredients from dislikes and do not reuse existing_titles.",
			"Use Japanese for titles, ingredient names and amounts.",
		},
	}

	skeletonPrompt = promptSpec{
		task:   "Draft a weekly meal skeleton and shared ingredient pools.",
		schema: `{"days": [{"date": "YYYY-MM-DD", "meals": {"breakfast": SKELETON, "lunch": SKELETON, "dinner": SKELETON}}], "ingredient_pools": [{"period": {"start": "YYYY-MM-DD", "end": "YYYY-MM-DD"}, "ingredients": [string], "strategy": string}]}` +
			"\nSKELETON = " + `{"title": string, "main_ingredients": [string], "approx_calories": number}`,
		rules: []string{
			"Return exactly one entry per date in dates.",
			"approx_calories should stay close to slot_targets.",
			"Pools cover contiguous date ranges; every date belongs to one pool.",
			"Each pool lists foods to buy once and use up within its period.",
			"Anchor slots keep their anchor title.",
			"Never use ingredients from dislikes.",
			"Use Japanese for titles and ingredient names.",
		},
	}

	expandDayPrompt = promptSpec{
		task:   "Expand one day of a meal skeleton into full recipes.",
		schema: `{"meals": {"breakfast": MEAL, "lunch": MEAL, "dinner": MEAL}}` + "\nMEAL = " + mealSchema,
		rules: []string{
			"Keep each skeleton title unless it conflicts with dislikes.",
			"Match targets per meal type within 10%.",
			"Draw primarily from ingredient_pool.ingredients.",
			"Anchor slots are echoed verbatim.",
			"Use Japanese for titles, ingredient names and amounts.",
		},
	}

	recipePrompt = promptSpec{
		task:   "Write the ingredient list and steps for an existing meal.",
		schema: `{"ingredients": [{"name": string, "amount": string}], "steps": [string]}`,
		rules: []string{
			"Quantities must fit the given nutrition for one serving.",
			"Never use ingredients from dislikes.",
			"Use Japanese for ingredient names and amounts.",
		},
	}
)

func (p promptSpec) build(input interface{}) (string, []byte, error) {
	payload, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return "", nil, err
	}

	var rules strings.Builder
	for _, rule := range p.rules {
		rules.WriteString("- ")
		rules.WriteString(rule)
		rules.WriteString("\n")
	}

	prompt := fmt.Sprintf(`%s

Requirements:
- Output JSON only, no code fences, no extra text.
- All nutrition values are non-negative numbers (calories in kcal, macros in grams).
%s- Schema:
%s

Input:
%s`, p.task, rules.String(), p.schema, string(payload))

	return prompt, payload, nil
}
