package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/ai-meal-planner/backend/internal/models"
)

const planColumns = `id, user_id, status, start_date, end_date, days, anchors, source,
	is_valid, invalid_meals_count, rejection_feedback, created_at, updated_at`

// Запрос находит блюда без ингредиентов или помеченные needs_detail.
const needsDetailPath = `$.*.meals.* ? (!exists(@.ingredients) || @.tags[*] == "needs_detail")`

type PlanRepository struct {
	db *pgxpool.Pool
}

// NewPlanRepository создает репозиторий планов питания.
func NewPlanRepository(db *pgxpool.Pool) *PlanRepository {
	return &PlanRepository{db: db}
}

// CreateSuperseding сохраняет новый план в статусе pending и в той же транзакции
// архивирует прежние pending и active планы пользователя.
func (r *PlanRepository) CreateSuperseding(ctx context.Context, plan models.MealPlan) (models.MealPlan, error) {
	days, err := json.Marshal(plan.Days)
	if err != nil {
		return models.MealPlan{}, err
	}
	anchors := plan.Anchors
	if anchors == nil {
		anchors = []models.Anchor{}
	}
	anchorsJSON, err := json.Marshal(anchors)
	if err != nil {
		return models.MealPlan{}, err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return models.MealPlan{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx,
		`UPDATE meal_plans
		 SET status = 'archived', updated_at = NOW()
		 WHERE user_id = $1 AND status IN ('pending', 'active')`,
		plan.UserID,
	)
	if err != nil {
		return models.MealPlan{}, err
	}

	created, err := scanPlan(tx.QueryRow(ctx,
		`INSERT INTO meal_plans
		 (user_id, status, start_date, end_date, days, anchors, source, is_valid, invalid_meals_count)
		 VALUES ($1, 'pending', $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+planColumns,
		plan.UserID, plan.StartDate, plan.EndDate, days, anchorsJSON, plan.Source, plan.IsValid, plan.InvalidMealsCount,
	))
	if err != nil {
		return models.MealPlan{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return models.MealPlan{}, err
	}
	return created, nil
}

// GetByID возвращает план пользователя.
func (r *PlanRepository) GetByID(ctx context.Context, userID, planID uuid.UUID) (models.MealPlan, error) {
	plan, err := scanPlan(r.db.QueryRow(ctx,
		`SELECT `+planColumns+` FROM meal_plans WHERE id = $1 AND user_id = $2`,
		planID, userID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return plan, ErrNotFound
	}
	return plan, err
}

// Current возвращает самый свежий pending или active план.
func (r *PlanRepository) Current(ctx context.Context, userID uuid.UUID) (models.MealPlan, error) {
	plan, err := scanPlan(r.db.QueryRow(ctx,
		`SELECT `+planColumns+`
		 FROM meal_plans
		 WHERE user_id = $1 AND status IN ('pending', 'active')
		 ORDER BY created_at DESC
		 LIMIT 1`,
		userID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return plan, ErrNotFound
	}
	return plan, err
}

// ListByUser возвращает планы пользователя, новые первыми; status nil означает все.
func (r *PlanRepository) ListByUser(ctx context.Context, userID uuid.UUID, status *models.PlanStatus, limit, offset int) ([]models.MealPlan, error) {
	args := []interface{}{userID}
	where := "user_id = $1"
	if status != nil {
		args = append(args, *status)
		where += " AND status = $2"
	}
	args = append(args, limit, offset)

	query := fmt.Sprintf(`SELECT %s FROM meal_plans WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		planColumns, where, len(args)-1, len(args))
	return r.queryPlans(ctx, query, args...)
}

// Transition переводит план из статуса from в to. Если план в другом статусе,
// возвращается ErrInvalidTransition.
func (r *PlanRepository) Transition(ctx context.Context, userID, planID uuid.UUID, from, to models.PlanStatus, feedback *string) (models.MealPlan, error) {
	plan, err := scanPlan(r.db.QueryRow(ctx,
		`UPDATE meal_plans
		 SET status = $4, rejection_feedback = COALESCE($5, rejection_feedback), updated_at = NOW()
		 WHERE id = $1 AND user_id = $2 AND status = $3
		 RETURNING `+planColumns,
		planID, userID, from, to, feedback,
	))
	if err == nil {
		return plan, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return plan, err
	}

	if _, getErr := r.GetByID(ctx, userID, planID); getErr != nil {
		return models.MealPlan{}, getErr
	}
	return models.MealPlan{}, ErrInvalidTransition
}

// Activate переводит план pending -> active и в той же транзакции сохраняет
// список покупок, который build собирает из дней плана.
func (r *PlanRepository) Activate(ctx context.Context, userID, planID uuid.UUID, build func(models.MealPlan) []models.ShoppingItem) (models.MealPlan, models.ShoppingList, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return models.MealPlan{}, models.ShoppingList{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	plan, err := scanPlan(tx.QueryRow(ctx,
		`UPDATE meal_plans
		 SET status = 'active', updated_at = NOW()
		 WHERE id = $1 AND user_id = $2 AND status = 'pending'
		 RETURNING `+planColumns,
		planID, userID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := r.GetByID(ctx, userID, planID); getErr != nil {
			return models.MealPlan{}, models.ShoppingList{}, getErr
		}
		return models.MealPlan{}, models.ShoppingList{}, ErrInvalidTransition
	}
	if err != nil {
		return models.MealPlan{}, models.ShoppingList{}, err
	}

	list, err := upsertShoppingList(ctx, tx, models.ShoppingList{PlanID: plan.ID, UserID: userID, Items: build(plan)})
	if err != nil {
		return models.MealPlan{}, models.ShoppingList{}, fmt.Errorf("store shopping list: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.MealPlan{}, models.ShoppingList{}, err
	}
	return plan, list, nil
}

// ReplaceDays целиком перезаписывает дни плана.
func (r *PlanRepository) ReplaceDays(ctx context.Context, planID uuid.UUID, days map[string]models.DayPlan) error {
	payload, err := json.Marshal(days)
	if err != nil {
		return err
	}

	cmd, err := r.db.Exec(ctx,
		`UPDATE meal_plans SET days = $2, updated_at = NOW() WHERE id = $1`,
		planID, payload,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimNeedingDetail выбирает активные планы с блюдами без рецепта и отмечает попытку.
// Давно не обработанные планы идут первыми, поэтому план с постоянными ошибками
// не загораживает очередь.
func (r *PlanRepository) ClaimNeedingDetail(ctx context.Context, limit int) ([]models.MealPlan, error) {
	return r.queryPlans(ctx,
		`UPDATE meal_plans
		 SET detail_attempted_at = NOW()
		 WHERE id IN (
			SELECT id FROM meal_plans
			WHERE status = 'active' AND jsonb_path_exists(days, $1::jsonpath)
			ORDER BY detail_attempted_at NULLS FIRST, created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+planColumns,
		needsDetailPath, limit,
	)
}

// RecentTitles возвращает названия блюд из последних планов пользователя.
func (r *PlanRepository) RecentTitles(ctx context.Context, userID uuid.UUID, plans int) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT meal->>'title'
		 FROM (
			SELECT days FROM meal_plans
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		 ) recent,
		 LATERAL jsonb_each(recent.days) AS d(date, day),
		 LATERAL jsonb_each(d.day->'meals') AS m(meal_type, meal)
		 WHERE meal->>'title' <> ''`,
		userID, plans,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	titles := make([]string, 0)
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, err
		}
		titles = append(titles, title)
	}
	return titles, rows.Err()
}

func (r *PlanRepository) queryPlans(ctx context.Context, query string, args ...interface{}) ([]models.MealPlan, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	plans := make([]models.MealPlan, 0)
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return plans, nil
}

func scanPlan(row pgx.Row) (models.MealPlan, error) {
	var plan models.MealPlan
	var status, source string
	var days, anchors []byte

	err := row.Scan(
		&plan.ID,
		&plan.UserID,
		&status,
		&plan.StartDate,
		&plan.EndDate,
		&days,
		&anchors,
		&source,
		&plan.IsValid,
		&plan.InvalidMealsCount,
		&plan.RejectionFeedback,
		&plan.CreatedAt,
		&plan.UpdatedAt,
	)
	if err != nil {
		return plan, err
	}

	plan.Status = models.PlanStatus(status)
	plan.Source = models.PlanSource(source)
	if err := unmarshalColumns(column{days, &plan.Days}, column{anchors, &plan.Anchors}); err != nil {
		return plan, err
	}
	return plan, nil
}
