package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/ai-meal-planner/backend/internal/models"
)

type ShoppingListRepository struct {
	db *pgxpool.Pool
}

// NewShoppingListRepository создает репозиторий списков покупок.
func NewShoppingListRepository(db *pgxpool.Pool) *ShoppingListRepository {
	return &ShoppingListRepository{db: db}
}

// rowQuerier покрывает пул и транзакцию.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Upsert сохраняет список покупок плана, заменяя предыдущий.
func (r *ShoppingListRepository) Upsert(ctx context.Context, list models.ShoppingList) (models.ShoppingList, error) {
	return upsertShoppingList(ctx, r.db, list)
}

func upsertShoppingList(ctx context.Context, q rowQuerier, list models.ShoppingList) (models.ShoppingList, error) {
	items := list.Items
	if items == nil {
		items = []models.ShoppingItem{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return models.ShoppingList{}, err
	}

	return scanShoppingList(q.QueryRow(ctx,
		`INSERT INTO shopping_lists (plan_id, user_id, items)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (plan_id) DO UPDATE SET items = EXCLUDED.items, updated_at = NOW()
		 RETURNING plan_id, user_id, items, created_at, updated_at`,
		list.PlanID, list.UserID, payload,
	))
}

// Get возвращает список покупок плана пользователя.
func (r *ShoppingListRepository) Get(ctx context.Context, userID, planID uuid.UUID) (models.ShoppingList, error) {
	list, err := scanShoppingList(r.db.QueryRow(ctx,
		`SELECT plan_id, user_id, items, created_at, updated_at
		 FROM shopping_lists
		 WHERE plan_id = $1 AND user_id = $2`,
		planID, userID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return list, ErrNotFound
	}
	return list, err
}

// ToggleItem инвертирует отметку позиции под блокировкой строки.
func (r *ShoppingListRepository) ToggleItem(ctx context.Context, userID, planID uuid.UUID, index int) (models.ShoppingList, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return models.ShoppingList{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	list, err := scanShoppingList(tx.QueryRow(ctx,
		`SELECT plan_id, user_id, items, created_at, updated_at
		 FROM shopping_lists
		 WHERE plan_id = $1 AND user_id = $2
		 FOR UPDATE`,
		planID, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return list, ErrNotFound
		}
		return list, err
	}

	if index < 0 || index >= len(list.Items) {
		return list, ErrInvalid
	}
	list.Items[index].Checked = !list.Items[index].Checked

	payload, err := json.Marshal(list.Items)
	if err != nil {
		return list, err
	}
	err = tx.QueryRow(ctx,
		`UPDATE shopping_lists SET items = $2, updated_at = NOW() WHERE plan_id = $1 RETURNING updated_at`,
		planID, payload,
	).Scan(&list.UpdatedAt)
	if err != nil {
		return list, err
	}

	if err := tx.Commit(ctx); err != nil {
		return list, err
	}
	return list, nil
}

func scanShoppingList(row pgx.Row) (models.ShoppingList, error) {
	var list models.ShoppingList
	var items []byte

	if err := row.Scan(&list.PlanID, &list.UserID, &items, &list.CreatedAt, &list.UpdatedAt); err != nil {
		return list, err
	}
	if err := unmarshalColumns(column{items, &list.Items}); err != nil {
		return list, err
	}
	return list, nil
}
