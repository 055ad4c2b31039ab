package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"example.com/ai-meal-planner/backend/internal/events"
	"example.com/ai-meal-planner/backend/internal/models"
	"example.com/ai-meal-planner/backend/internal/notifications"
	"example.com/ai-meal-planner/backend/internal/repository"
	"example.com/ai-meal-planner/backend/internal/shopping"
)

// ApprovePlan переводит план pending -> active вместе с агрегированным списком покупок.
// Если список не сохранился, план остается pending.
func (s *Service) ApprovePlan(ctx context.Context, userID, planID uuid.UUID) (models.MealPlan, models.ShoppingList, error) {
	plan, list, err := s.plans.Activate(ctx, userID, planID, func(plan models.MealPlan) []models.ShoppingItem {
		return shopping.Aggregate(shopping.LinesFromPlan(plan.Days))
	})
	if err != nil {
		return models.MealPlan{}, models.ShoppingList{}, err
	}

	data := map[string]interface{}{
		"plan_id": plan.ID.String(),
		"items":   len(list.Items),
	}
	s.notify(userID, notifications.EventPlanApproved, data)
	s.publish(ctx, events.TypePlanApproved, userID, &plan.ID, data)

	return plan, list, nil
}

// RejectPlan архивирует план pending и запоминает отзыв для следующей генерации.
func (s *Service) RejectPlan(ctx context.Context, userID, planID uuid.UUID, feedback *string) (models.MealPlan, error) {
	feedback = normalizeFeedback(feedback)

	plan, err := s.plans.Transition(ctx, userID, planID, models.PlanStatusPending, models.PlanStatusArchived, feedback)
	if err != nil {
		return models.MealPlan{}, err
	}

	if feedback != nil {
		if err := s.users.SetRejectionFeedback(ctx, userID, feedback); err != nil {
			return plan, fmt.Errorf("store rejection feedback: %w", err)
		}
	}

	data := map[string]interface{}{
		"plan_id":      plan.ID.String(),
		"has_feedback": feedback != nil,
	}
	s.notify(userID, notifications.EventPlanRejected, data)
	s.publish(ctx, events.TypePlanRejected, userID, &plan.ID, data)

	return plan, nil
}

func (s *Service) GetShoppingList(ctx context.Context, userID, planID uuid.UUID) (models.ShoppingList, error) {
	return s.lists.Get(ctx, userID, planID)
}

// ToggleShoppingItem переключает отметку позиции по индексу.
func (s *Service) ToggleShoppingItem(ctx context.Context, userID, planID uuid.UUID, index int) (models.ShoppingList, error) {
	list, err := s.lists.ToggleItem(ctx, userID, planID, index)
	if err != nil {
		return models.ShoppingList{}, err
	}

	s.notify(userID, notifications.EventShoppingListUpdated, map[string]interface{}{
		"plan_id": planID.String(),
		"index":   index,
		"checked": list.Items[index].Checked,
	})
	return list, nil
}

// ShoppingListExported фиксирует выгрузку списка во внешнее хранилище.
func (s *Service) ShoppingListExported(ctx context.Context, list models.ShoppingList, location string) {
	s.publish(ctx, events.TypeShoppingListSent, list.UserID, &list.PlanID, map[string]interface{}{
		"location": location,
		"items":    len(list.Items),
	})
}

type BackfillReport struct {
	Plans       int `json:"plans"`
	PlansFailed int `json:"plans_failed"`
	Meals       int `json:"meals"`
}

// Backfill дописывает рецепты к активным планам. Ошибка одного плана не прерывает остальные.
func (s *Service) Backfill(ctx context.Context, limit int) (BackfillReport, error) {
	if limit <= 0 {
		limit = s.cfg.BackfillLimit
	}

	plans, err := s.plans.ClaimNeedingDetail(ctx, limit)
	if err != nil {
		return BackfillReport{}, fmt.Errorf("list plans needing detail: %w", err)
	}

	var report BackfillReport
	for i := range plans {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		filled, err := s.backfillPlan(ctx, &plans[i])
		if err != nil {
			report.PlansFailed++
			s.logger.Warn("plan backfill failed",
				slog.String("plan_id", plans[i].ID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		if filled > 0 {
			report.Plans++
			report.Meals += filled
		}
	}

	return report, nil
}

func (s *Service) backfillPlan(ctx context.Context, plan *models.MealPlan) (int, error) {
	var dislikes []string
	user, err := s.users.GetByID(ctx, plan.UserID)
	if err != nil {
		s.logger.Warn("load user for backfill failed",
			slog.String("user_id", plan.UserID.String()),
			slog.String("error", err.Error()),
		)
	} else {
		dislikes = user.Dislikes
	}

	filled, err := s.filler.FillPlan(ctx, plan, dislikes)
	if filled == 0 {
		return 0, err
	}

	if err := s.plans.ReplaceDays(ctx, plan.ID, plan.Days); err != nil {
		return 0, fmt.Errorf("save days: %w", err)
	}

	if _, err := s.reaggregate(ctx, *plan); err != nil {
		return filled, err
	}

	data := map[string]interface{}{
		"plan_id": plan.ID.String(),
		"meals":   filled,
	}
	s.notify(plan.UserID, notifications.EventPlanDetailed, data)
	s.publish(ctx, events.TypePlanDetailed, plan.UserID, &plan.ID, data)

	return filled, nil
}

// RebuildShoppingList заново собирает список покупок активного плана,
// сохраняя отметки у совпадающих позиций.
func (s *Service) RebuildShoppingList(ctx context.Context, userID, planID uuid.UUID) (models.ShoppingList, error) {
	plan, err := s.plans.GetByID(ctx, userID, planID)
	if err != nil {
		return models.ShoppingList{}, err
	}
	if plan.Status != models.PlanStatusActive {
		return models.ShoppingList{}, repository.ErrInvalidTransition
	}

	list, err := s.reaggregate(ctx, plan)
	if err != nil {
		return models.ShoppingList{}, err
	}

	s.notify(userID, notifications.EventShoppingListUpdated, map[string]interface{}{
		"plan_id": plan.ID.String(),
		"items":   len(list.Items),
	})
	return list, nil
}

func (s *Service) reaggregate(ctx context.Context, plan models.MealPlan) (models.ShoppingList, error) {
	items := shopping.Aggregate(shopping.LinesFromPlan(plan.Days))
	if previous, err := s.lists.Get(ctx, plan.UserID, plan.ID); err == nil {
		items = carryChecked(previous.Items, items)
	}
	list, err := s.lists.Upsert(ctx, models.ShoppingList{PlanID: plan.ID, UserID: plan.UserID, Items: items})
	if err != nil {
		return models.ShoppingList{}, fmt.Errorf("store shopping list: %w", err)
	}
	return list, nil
}

// carryChecked переносит отметки на позиции с тем же названием и количеством.
func carryChecked(previous, next []models.ShoppingItem) []models.ShoppingItem {
	checked := make(map[string]bool, len(previous))
	for _, item := range previous {
		if item.Checked {
			checked[item.Ingredient+"\x00"+item.Amount] = true
		}
	}
	for i := range next {
		if checked[next[i].Ingredient+"\x00"+next[i].Amount] {
			next[i].Checked = true
		}
	}
	return next
}

func normalizeFeedback(feedback *string) *string {
	if feedback == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*feedback)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
