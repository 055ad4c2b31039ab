package planner

import (
	"context"

	"example.com/ai-meal-planner/backend/internal/ai"
)

// Estimator оценивает питание блюда по описанию пользователя.
type Estimator interface {
	EstimateNutrition(ctx context.Context, input ai.EstimateRequest) (ai.EstimateResponse, error)
}

// Generator создает и чинит блюда плана.
type Generator interface {
	GeneratePlan(ctx context.Context, input ai.PlanRequest) (ai.PlanResponse, error)
	RepairMeals(ctx context.Context, input ai.RepairRequest) (ai.RepairResponse, error)
	GenerateSkeleton(ctx context.Context, input ai.SkeletonRequest) (ai.SkeletonResponse, error)
	ExpandDay(ctx context.Context, input ai.DayRequest) (ai.DayResponse, error)
}

// RecipeDetailer дописывает ингредиенты и шаги к блюду без рецепта.
type RecipeDetailer interface {
	DetailRecipe(ctx context.Context, input ai.RecipeRequest) (ai.RecipeResponse, error)
}

var (
	_ Estimator      = (*ai.Service)(nil)
	_ Generator      = (*ai.Service)(nil)
	_ RecipeDetailer = (*ai.Service)(nil)
)
