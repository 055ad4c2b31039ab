package lifecycle

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"example.com/ai-meal-planner/backend/internal/models"
	"example.com/ai-meal-planner/backend/internal/notifications"
	"example.com/ai-meal-planner/backend/internal/planner"
	"example.com/ai-meal-planner/backend/internal/repository"
)

type memUsers struct {
	mu       sync.Mutex
	users    map[uuid.UUID]models.User
	now      func() time.Time
	finishes int
}

func newMemUsers(now func() time.Time, users ...models.User) *memUsers {
	store := &memUsers{users: make(map[uuid.UUID]models.User), now: now}
	for _, user := range users {
		if user.GenerationStatus == "" {
			user.GenerationStatus = models.GenerationStatusIdle
		}
		store.users[user.ID] = user
	}
	return store
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return models.User{}, repository.ErrNotFound
	}
	return user, nil
}

func (m *memUsers) TryStartGeneration(_ context.Context, id uuid.UUID, lease time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return false, nil
	}
	now := m.now()
	expired := user.GenerationStartedAt == nil || now.Sub(*user.GenerationStartedAt) > lease
	if user.GenerationStatus == models.GenerationStatusCreating && !expired {
		return false, nil
	}
	user.GenerationStatus = models.GenerationStatusCreating
	user.GenerationStartedAt = &now
	m.users[id] = user
	return true, nil
}

func (m *memUsers) FinishGeneration(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user := m.users[id]
	user.GenerationStatus = models.GenerationStatusIdle
	user.GenerationStartedAt = nil
	m.users[id] = user
	m.finishes++
	return nil
}

func (m *memUsers) SetRejectionFeedback(_ context.Context, id uuid.UUID, feedback *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.LastRejectionFeedback = feedback
	m.users[id] = user
	return nil
}

func (m *memUsers) get(id uuid.UUID) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id]
}

type memPlans struct {
	mu       sync.Mutex
	plans    map[uuid.UUID]models.MealPlan
	titles   []string
	replaced int

	// lists получает список покупок при Activate; listErr имитирует сбой записи.
	lists   *memLists
	listErr error

	// порядок последних попыток дозаполнения, 0 - не пробовали
	attempts   map[uuid.UUID]int
	attemptSeq int
}

func newMemPlans(plans ...models.MealPlan) *memPlans {
	store := &memPlans{plans: make(map[uuid.UUID]models.MealPlan)}
	for _, plan := range plans {
		store.plans[plan.ID] = plan
	}
	return store
}

func (m *memPlans) CreateSuperseding(_ context.Context, plan models.MealPlan) (models.MealPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.plans {
		if existing.UserID == plan.UserID && (existing.Status == models.PlanStatusPending || existing.Status == models.PlanStatusActive) {
			existing.Status = models.PlanStatusArchived
			m.plans[id] = existing
		}
	}
	plan.ID = uuid.New()
	m.plans[plan.ID] = plan
	return plan, nil
}

func (m *memPlans) GetByID(_ context.Context, userID, planID uuid.UUID) (models.MealPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	plan, ok := m.plans[planID]
	if !ok || plan.UserID != userID {
		return models.MealPlan{}, repository.ErrNotFound
	}
	return plan, nil
}

func (m *memPlans) Transition(_ context.Context, userID, planID uuid.UUID, from, to models.PlanStatus, feedback *string) (models.MealPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	plan, ok := m.plans[planID]
	if !ok || plan.UserID != userID {
		return models.MealPlan{}, repository.ErrNotFound
	}
	if plan.Status != from {
		return models.MealPlan{}, repository.ErrInvalidTransition
	}
	plan.Status = to
	if feedback != nil {
		plan.RejectionFeedback = feedback
	}
	m.plans[planID] = plan
	return plan, nil
}

func (m *memPlans) Activate(ctx context.Context, userID, planID uuid.UUID, build func(models.MealPlan) []models.ShoppingItem) (models.MealPlan, models.ShoppingList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	plan, ok := m.plans[planID]
	if !ok || plan.UserID != userID {
		return models.MealPlan{}, models.ShoppingList{}, repository.ErrNotFound
	}
	if plan.Status != models.PlanStatusPending {
		return models.MealPlan{}, models.ShoppingList{}, repository.ErrInvalidTransition
	}

	items := build(plan)
	if m.listErr != nil {
		return models.MealPlan{}, models.ShoppingList{}, m.listErr
	}
	plan.Status = models.PlanStatusActive
	list, err := m.lists.Upsert(ctx, models.ShoppingList{PlanID: plan.ID, UserID: userID, Items: items})
	if err != nil {
		return models.MealPlan{}, models.ShoppingList{}, err
	}
	m.plans[planID] = plan
	return plan, list, nil
}

func (m *memPlans) ReplaceDays(_ context.Context, planID uuid.UUID, days map[string]models.DayPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	plan, ok := m.plans[planID]
	if !ok {
		return repository.ErrNotFound
	}
	plan.Days = days
	m.plans[planID] = plan
	m.replaced++
	return nil
}

func (m *memPlans) ClaimNeedingDetail(_ context.Context, limit int) ([]models.MealPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attempts == nil {
		m.attempts = make(map[uuid.UUID]int)
	}

	var out []models.MealPlan
	for _, plan := range m.plans {
		if plan.Status == models.PlanStatusActive && len(planner.MissingDetails(plan.Days)) > 0 {
			out = append(out, plan)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		left, right := m.attempts[out[i].ID], m.attempts[out[j].ID]
		if left != right {
			return left < right
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if len(out) > limit {
		out = out[:limit]
	}

	for _, plan := range out {
		m.attemptSeq++
		m.attempts[plan.ID] = m.attemptSeq
	}
	return out, nil
}

func (m *memPlans) RecentTitles(context.Context, uuid.UUID, int) ([]string, error) {
	return m.titles, nil
}

func (m *memPlans) byUser(userID uuid.UUID) []models.MealPlan {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.MealPlan
	for _, plan := range m.plans {
		if plan.UserID == userID {
			out = append(out, plan)
		}
	}
	return out
}

type memLists struct {
	mu    sync.Mutex
	lists map[uuid.UUID]models.ShoppingList
}

func newMemLists() *memLists {
	return &memLists{lists: make(map[uuid.UUID]models.ShoppingList)}
}

func (m *memLists) Upsert(_ context.Context, list models.ShoppingList) (models.ShoppingList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[list.PlanID] = list
	return list, nil
}

func (m *memLists) Get(_ context.Context, userID, planID uuid.UUID) (models.ShoppingList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list, ok := m.lists[planID]
	if !ok || list.UserID != userID {
		return models.ShoppingList{}, repository.ErrNotFound
	}
	return list, nil
}

func (m *memLists) ToggleItem(_ context.Context, userID, planID uuid.UUID, index int) (models.ShoppingList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list, ok := m.lists[planID]
	if !ok || list.UserID != userID {
		return models.ShoppingList{}, repository.ErrNotFound
	}
	if index < 0 || index >= len(list.Items) {
		return models.ShoppingList{}, repository.ErrInvalid
	}
	list.Items[index].Checked = !list.Items[index].Checked
	m.lists[planID] = list
	return list, nil
}

type scriptedRunner struct {
	result  planner.Result
	err     error
	release chan struct{}
	calls   atomic.Int32

	mu       sync.Mutex
	requests []planner.Request
}

func (r *scriptedRunner) Run(ctx context.Context, req planner.Request) (planner.Result, error) {
	r.calls.Add(1)
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()

	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return planner.Result{}, ctx.Err()
		}
	}
	return r.result, r.err
}

func (r *scriptedRunner) lastRequest() planner.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests[len(r.requests)-1]
}

type recipeFiller struct {
	ingredients []models.Ingredient
	err         error
	seen        []uuid.UUID
}

func (f *recipeFiller) FillPlan(_ context.Context, plan *models.MealPlan, _ []string) (int, error) {
	f.seen = append(f.seen, plan.ID)
	if f.err != nil {
		return 0, f.err
	}
	filled := 0
	for _, target := range planner.MissingDetails(plan.Days) {
		day := plan.Days[target.Date]
		meal := day.Meals[target.MealType]
		meal.Ingredients = f.ingredients
		meal.Tags = nil
		day.Meals[target.MealType] = meal
		filled++
	}
	return filled, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (n *recordingNotifier) Publish(_ uuid.UUID, event notifications.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, event := range n.events {
		out = append(out, event.Type)
	}
	return out
}
