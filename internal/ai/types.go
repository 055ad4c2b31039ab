package ai

import "example.com/ai-meal-planner/backend/internal/models"

type AnchorSlot struct {
	MealType   models.MealType        `json:"meal_type"`
	Mode       models.SlotMode        `json:"mode"`
	Title      string                 `json:"title"`
	Constraint string                 `json:"constraint"`
	Nutrition  models.NutritionVector `json:"nutrition"`
}

type MealCandidate struct {
	Title       string                 `json:"title"`
	Nutrition   models.NutritionVector `json:"nutrition"`
	Tags        []string               `json:"tags,omitempty"`
	Ingredients []models.Ingredient    `json:"ingredients"`
	Steps       []string               `json:"steps"`
}

type EstimateRequest struct {
	MealType    models.MealType        `json:"meal_type"`
	Description string                 `json:"description"`
	DailyTarget models.NutritionVector `json:"daily_target"`
}

type EstimateResponse struct {
	Title     string                 `json:"title"`
	Nutrition models.NutritionVector `json:"nutrition"`
	Reason    string                 `json:"reason,omitempty"`
}

type PlanRequest struct {
	Dates             []string                                   `json:"dates"`
	CheatDates        []string                                   `json:"cheat_dates,omitempty"`
	DailyTarget       models.NutritionVector                     `json:"daily_target"`
	RemainingBudget   models.NutritionVector                     `json:"remaining_budget"`
	SlotTargets       map[models.MealType]models.NutritionVector `json:"slot_targets"`
	Anchors           []AnchorSlot                               `json:"anchors,omitempty"`
	Dislikes          []string                                   `json:"dislikes,omitempty"`
	ExistingTitles    []string                                   `json:"existing_titles,omitempty"`
	RejectionFeedback string                                     `json:"rejection_feedback,omitempty"`
}

type GeneratedDay struct {
	Date  string                            `json:"date"`
	Meals map[models.MealType]MealCandidate `json:"meals"`
}

type PlanResponse struct {
	Days []GeneratedDay `json:"days"`
}

type RepairSlot struct {
	Key          string                 `json:"key"`
	Date         string                 `json:"date"`
	MealType     models.MealType        `json:"meal_type"`
	Target       models.NutritionVector `json:"target"`
	CurrentTitle string                 `json:"current_title,omitempty"`
	Problems     []string               `json:"problems,omitempty"`
	Constraint   string                 `json:"constraint,omitempty"`
}

type RepairRequest struct {
	Slots          []RepairSlot `json:"slots"`
	Dislikes       []string     `json:"dislikes,omitempty"`
	ExistingTitles []string     `json:"existing_titles,omitempty"`
	TolerancePct   float64      `json:"tolerance_pct"`
}

type RepairResponse struct {
	Meals map[string]MealCandidate `json:"meals"`
}

type SkeletonRequest struct {
	Dates             []string                                   `json:"dates"`
	CheatDates        []string                                   `json:"cheat_dates,omitempty"`
	SlotTargets       map[models.MealType]models.NutritionVector `json:"slot_targets"`
	Anchors           []AnchorSlot                               `json:"anchors,omitempty"`
	Dislikes          []string                                   `json:"dislikes,omitempty"`
	ExistingTitles    []string                                   `json:"existing_titles,omitempty"`
	RejectionFeedback string                                     `json:"rejection_feedback,omitempty"`
}

type SkeletonMeal struct {
	Title           string   `json:"title"`
	MainIngredients []string `json:"main_ingredients"`
	ApproxCalories  float64  `json:"approx_calories"`
}

type DailySkeleton struct {
	Date  string                           `json:"date"`
	Meals map[models.MealType]SkeletonMeal `json:"meals"`
}

type SkeletonResponse struct {
	Days  []DailySkeleton         `json:"days"`
	Pools []models.IngredientPool `json:"ingredient_pools"`
}

type DayRequest struct {
	Date     string                                     `json:"date"`
	Skeleton DailySkeleton                              `json:"skeleton"`
	Targets  map[models.MealType]models.NutritionVector `json:"targets"`
	Pool     models.IngredientPool                      `json:"ingredient_pool"`
	Anchors  []AnchorSlot                               `json:"anchors,omitempty"`
	Dislikes []string                                   `json:"dislikes,omitempty"`
}

type DayResponse struct {
	Meals map[models.MealType]MealCandidate `json:"meals"`
}

type RecipeRequest struct {
	Title     string                 `json:"title"`
	MealType  models.MealType        `json:"meal_type"`
	Nutrition models.NutritionVector `json:"nutrition"`
	Dislikes  []string               `json:"dislikes,omitempty"`
}

type RecipeResponse struct {
	Ingredients []models.Ingredient `json:"ingredients"`
	Steps       []string            `json:"steps"`
}
