package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/ai-meal-planner/backend/internal/models"
)

type StatsRepository struct {
	db *pgxpool.Pool
}

type OverviewStats struct {
	TotalPlans    int
	PendingPlans  int
	ActivePlans   int
	ArchivedPlans int
	ValidPlans    int
	FallbackMeals int
}

type CategoryCount struct {
	Category models.ShoppingCategory
	Items    int
	Checked  int
}

type MonthlyComparison struct {
	Month         time.Time
	Plans         int
	FallbackMeals int
}

// NewStatsRepository создает репозиторий статистики.
func NewStatsRepository(db *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{db: db}
}

// Overview возвращает сводную статистику по планам пользователя.
func (r *StatsRepository) Overview(ctx context.Context, userID uuid.UUID) (OverviewStats, error) {
	var stats OverviewStats

	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE status = 'pending'),
		        COUNT(*) FILTER (WHERE status = 'active'),
		        COUNT(*) FILTER (WHERE status = 'archived'),
		        COUNT(*) FILTER (WHERE is_valid),
		        COALESCE(SUM(invalid_meals_count), 0)
		 FROM meal_plans
		 WHERE user_id = $1`,
		userID,
	).Scan(&stats.TotalPlans, &stats.PendingPlans, &stats.ActivePlans, &stats.ArchivedPlans, &stats.ValidPlans, &stats.FallbackMeals)
	return stats, err
}

// ShoppingCategories возвращает число позиций списка покупок по категориям.
func (r *StatsRepository) ShoppingCategories(ctx context.Context, userID, planID uuid.UUID) ([]CategoryCount, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM shopping_lists WHERE plan_id = $1 AND user_id = $2
		 )`,
		planID, userID,
	).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}

	rows, err := r.db.Query(ctx,
		`SELECT item->>'category',
		        COUNT(*),
		        COUNT(*) FILTER (WHERE (item->>'checked')::boolean)
		 FROM shopping_lists s,
		      LATERAL jsonb_array_elements(s.items) AS item
		 WHERE s.plan_id = $1
		 GROUP BY 1
		 ORDER BY 2 DESC, 1`,
		planID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make([]CategoryCount, 0)
	for rows.Next() {
		var row CategoryCount
		var category string
		if err := rows.Scan(&category, &row.Items, &row.Checked); err != nil {
			return nil, err
		}
		row.Category = models.ShoppingCategory(category)
		counts = append(counts, row)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// MonthlyComparison возвращает число планов и запасных блюд по месяцам.
func (r *StatsRepository) MonthlyComparison(ctx context.Context, userID uuid.UUID, months int) ([]MonthlyComparison, error) {
	if months <= 0 {
		return nil, ErrInvalid
	}

	rows, err := r.db.Query(ctx,
		`SELECT date_trunc('month', start_date)::date AS month,
		        COUNT(*),
		        COALESCE(SUM(invalid_meals_count), 0)
		 FROM meal_plans
		 WHERE user_id = $1
		 GROUP BY month
		 ORDER BY month DESC
		 LIMIT $2`,
		userID, months,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]MonthlyComparison, 0)
	for rows.Next() {
		var row MonthlyComparison
		if err := rows.Scan(&row.Month, &row.Plans, &row.FallbackMeals); err != nil {
			return nil, err
		}
		items = append(items, row)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
