package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"example.com/ai-meal-planner/backend/internal/ai"
	"example.com/ai-meal-planner/backend/internal/models"
	"example.com/ai-meal-planner/backend/internal/nutrition"
)

type ExpandInput struct {
	Dates             []string
	CheatDates        []string
	Targets           nutrition.MealTargets
	Anchors           []ai.AnchorSlot
	Dislikes          []string
	ExistingTitles    []string
	RejectionFeedback string
}

// SkeletonExpander строит план в две фазы: каркас недели, затем детализация по дням.
type SkeletonExpander struct {
	generator   Generator
	concurrency int
	logger      *slog.Logger
}

func NewSkeletonExpander(generator Generator, concurrency int, logger *slog.Logger) *SkeletonExpander {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SkeletonExpander{generator: generator, concurrency: concurrency, logger: logger}
}

// Expand возвращает дни плана и пулы ингредиентов. Ошибка каркаса фатальна,
// ошибка отдельного дня оставляет его слоты с названием из каркаса и тегом needs_detail.
func (e *SkeletonExpander) Expand(ctx context.Context, input ExpandInput) (map[string]models.DayPlan, []models.IngredientPool, error) {
	skeleton, err := e.generator.GenerateSkeleton(ctx, ai.SkeletonRequest{
		Dates:             input.Dates,
		CheatDates:        input.CheatDates,
		SlotTargets:       input.Targets,
		Anchors:           input.Anchors,
		Dislikes:          input.Dislikes,
		ExistingTitles:    input.ExistingTitles,
		RejectionFeedback: input.RejectionFeedback,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("generate skeleton: %w", err)
	}

	byDate := make(map[string]ai.DailySkeleton, len(skeleton.Days))
	for _, day := range skeleton.Days {
		byDate[day.Date] = day
	}

	cheat := cheatSet(input.CheatDates)
	expanded := make([]models.DayPlan, len(input.Dates))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, date := range input.Dates {
		i, date := i, date
		g.Go(func() error {
			expanded[i] = e.expandDay(ctx, input, date, byDate[date], skeleton.Pools)
			expanded[i].IsCheatDay = cheat[date]
			return nil
		})
	}
	_ = g.Wait()

	days := make(map[string]models.DayPlan, len(input.Dates))
	for i, date := range input.Dates {
		days[date] = nutrition.RecomputeDayTotals(expanded[i])
	}
	return days, skeleton.Pools, nil
}

func (e *SkeletonExpander) expandDay(ctx context.Context, input ExpandInput, date string, skeleton ai.DailySkeleton, pools []models.IngredientPool) models.DayPlan {
	day := models.DayPlan{Meals: map[models.MealType]models.MealSlot{}}

	targets := make(map[models.MealType]models.NutritionVector, len(input.Targets))
	for mealType, target := range input.Targets {
		if meal, ok := skeleton.Meals[mealType]; ok {
			target = nutrition.Rescale(target, meal.ApproxCalories)
		}
		targets[mealType] = target
	}

	pool, _ := PoolFor(pools, date)
	skeleton.Date = date
	response, err := e.generator.ExpandDay(ctx, ai.DayRequest{
		Date:     date,
		Skeleton: skeleton,
		Targets:  targets,
		Pool:     pool,
		Anchors:  input.Anchors,
		Dislikes: input.Dislikes,
	})
	if err != nil {
		e.logger.Warn("day expansion failed, keeping skeleton", slog.String("date", date), slog.Any("error", err))
		response = ai.DayResponse{}
	}

	for mealType, meal := range skeleton.Meals {
		if candidate, ok := response.Meals[mealType]; ok {
			day.Meals[mealType] = candidateSlot(candidate)
			continue
		}
		slot := missingSlot()
		slot.Title = strings.TrimSpace(meal.Title)
		slot.Nutrition = targets[mealType]
		slot.Tags = []string{models.TagNeedsDetail}
		day.Meals[mealType] = slot
	}
	for mealType, candidate := range response.Meals {
		if _, ok := day.Meals[mealType]; !ok {
			day.Meals[mealType] = candidateSlot(candidate)
		}
	}
	return day
}

// PoolFor возвращает пул, период которого содержит дату, иначе первый пул.
func PoolFor(pools []models.IngredientPool, date string) (models.IngredientPool, bool) {
	if len(pools) == 0 {
		return models.IngredientPool{}, false
	}
	for _, pool := range pools {
		if pool.Period.Start <= date && date <= pool.Period.End {
			return pool, true
		}
	}
	return pools[0], true
}
