package planner

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"example.com/ai-meal-planner/backend/internal/ai"
	"example.com/ai-meal-planner/backend/internal/models"
)

type BatchConfig struct {
	BatchSize   int
	Concurrency int
	Delay       time.Duration
}

func DefaultBatchConfig() BatchConfig {
	return BatchConfig{BatchSize: 5, Concurrency: 2, Delay: 2 * time.Second}
}

type BatchStats struct {
	Processed int
	Failed    int
}

// RunBatches обрабатывает элементы пачками по BatchSize, не больше Concurrency
// одновременно, с паузой Delay между пачками. Ошибка элемента только логируется.
func RunBatches[T any](ctx context.Context, items []T, cfg BatchConfig, logger *slog.Logger, fn func(context.Context, T) error) (BatchStats, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	var failed atomic.Int64
	stats := BatchStats{}
	for start := 0; start < len(items); start += cfg.BatchSize {
		if start > 0 && cfg.Delay > 0 {
			timer := time.NewTimer(cfg.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				stats.Failed = int(failed.Load())
				return stats, ctx.Err()
			case <-timer.C:
			}
		}

		end := min(start+cfg.BatchSize, len(items))

		var g errgroup.Group
		g.SetLimit(cfg.Concurrency)
		for i := start; i < end; i++ {
			i := i
			item := items[i]
			g.Go(func() error {
				if err := fn(ctx, item); err != nil {
					failed.Add(1)
					logger.Warn("batch item failed", slog.Int("index", i), slog.Any("error", err))
				}
				return nil
			})
		}
		_ = g.Wait()
		stats.Processed += end - start
	}

	stats.Failed = int(failed.Load())
	return stats, nil
}

// DetailTarget is one meal that still lacks a recipe.
type DetailTarget struct {
	Date     string
	MealType models.MealType
}

// MissingDetails перечисляет блюда без ингредиентов в порядке дат и приемов пищи.
func MissingDetails(days map[string]models.DayPlan) []DetailTarget {
	var targets []DetailTarget
	for _, date := range sortedKeys(days) {
		for _, mealType := range models.AllMealTypes {
			meal, ok := days[date].Meals[mealType]
			if !ok || meal.Title == "" {
				continue
			}
			if len(meal.Ingredients) == 0 || meal.HasTag(models.TagNeedsDetail) {
				targets = append(targets, DetailTarget{Date: date, MealType: mealType})
			}
		}
	}
	return targets
}

type Backfiller struct {
	detailer RecipeDetailer
	cfg      BatchConfig
	logger   *slog.Logger
	// OnItem вызывается после каждого обработанного блюда.
	OnItem func()
}

func NewBackfiller(detailer RecipeDetailer, cfg BatchConfig, logger *slog.Logger) *Backfiller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backfiller{detailer: detailer, cfg: cfg, logger: logger}
}

// FillPlan дописывает рецепты к блюдам плана на месте и возвращает число заполненных.
func (b *Backfiller) FillPlan(ctx context.Context, plan *models.MealPlan, dislikes []string) (int, error) {
	targets := MissingDetails(plan.Days)
	if len(targets) == 0 {
		return 0, nil
	}

	var mu sync.Mutex
	filled := 0
	stats, err := RunBatches(ctx, targets, b.cfg, b.logger, func(ctx context.Context, target DetailTarget) error {
		if b.OnItem != nil {
			defer b.OnItem()
		}

		mu.Lock()
		meal := plan.Days[target.Date].Meals[target.MealType]
		mu.Unlock()

		recipe, err := b.detailer.DetailRecipe(ctx, ai.RecipeRequest{
			Title:     meal.Title,
			MealType:  target.MealType,
			Nutrition: meal.Nutrition,
			Dislikes:  dislikes,
		})
		if err != nil {
			return err
		}

		mu.Lock()
		defer mu.Unlock()
		day := plan.Days[target.Date]
		meal = day.Meals[target.MealType]
		meal.Ingredients = recipe.Ingredients
		meal.Steps = recipe.Steps
		meal.Tags = withoutTag(meal.Tags, models.TagNeedsDetail)
		day.Meals[target.MealType] = meal
		filled++
		return nil
	})

	b.logger.Info("plan backfill finished",
		slog.String("plan_id", plan.ID.String()),
		slog.Int("processed", stats.Processed),
		slog.Int("failed", stats.Failed),
		slog.Int("filled", filled),
	)
	return filled, err
}

func withoutTag(tags []string, tag string) []string {
	out := tags[:0:0]
	for _, t := range tags {
		if t != tag {
			out = append(out, t)
		}
	}
	return out
}
