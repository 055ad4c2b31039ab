package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/ai-meal-planner/backend/internal/auth"
	"example.com/ai-meal-planner/backend/internal/lifecycle"
	"example.com/ai-meal-planner/backend/internal/models"
	"example.com/ai-meal-planner/backend/internal/notifications"
	"example.com/ai-meal-planner/backend/internal/repository"
)

type structValidator struct {
	v *validator.Validate
}

func (sv structValidator) Validate(i interface{}) error {
	return sv.v.Struct(i)
}

type fakeLifecycle struct {
	outcome     lifecycle.GenerationOutcome
	generateErr error
	opts        lifecycle.GenerateOptions
	rejectErr   error
	feedback    *string
	list        models.ShoppingList
	listErr     error
	toggled     int
	exported    string
}

func (f *fakeLifecycle) GeneratePlan(_ context.Context, _ uuid.UUID, opts lifecycle.GenerateOptions) (lifecycle.GenerationOutcome, error) {
	f.opts = opts
	return f.outcome, f.generateErr
}

func (f *fakeLifecycle) GenerationStatus(context.Context, uuid.UUID) (lifecycle.GenerationState, error) {
	return lifecycle.GenerationState{Status: models.GenerationStatusIdle}, nil
}

func (f *fakeLifecycle) ApprovePlan(_ context.Context, _ uuid.UUID, planID uuid.UUID) (models.MealPlan, models.ShoppingList, error) {
	return models.MealPlan{ID: planID, Status: models.PlanStatusActive}, f.list, nil
}

func (f *fakeLifecycle) RejectPlan(_ context.Context, _ uuid.UUID, planID uuid.UUID, feedback *string) (models.MealPlan, error) {
	f.feedback = feedback
	if f.rejectErr != nil {
		return models.MealPlan{}, f.rejectErr
	}
	return models.MealPlan{ID: planID, Status: models.PlanStatusArchived, RejectionFeedback: feedback}, nil
}

func (f *fakeLifecycle) GetShoppingList(context.Context, uuid.UUID, uuid.UUID) (models.ShoppingList, error) {
	return f.list, f.listErr
}

func (f *fakeLifecycle) ToggleShoppingItem(_ context.Context, _ uuid.UUID, _ uuid.UUID, index int) (models.ShoppingList, error) {
	f.toggled = index
	if index >= len(f.list.Items) {
		return models.ShoppingList{}, repository.ErrInvalid
	}
	f.list.Items[index].Checked = !f.list.Items[index].Checked
	return f.list, nil
}

func (f *fakeLifecycle) ShoppingListExported(_ context.Context, _ models.ShoppingList, location string) {
	f.exported = location
}

type fakeExporter struct {
	location string
	err      error
}

func (f fakeExporter) ExportShoppingList(context.Context, models.ShoppingList) (string, error) {
	return f.location, f.err
}

type fakeBackfiller struct {
	limit int
}

func (f *fakeBackfiller) Backfill(_ context.Context, limit int) (lifecycle.BackfillReport, error) {
	f.limit = limit
	return lifecycle.BackfillReport{Plans: 2, Meals: 5}, nil
}

type fakeUsers map[uuid.UUID]models.User

func (f fakeUsers) GetByID(_ context.Context, id uuid.UUID) (models.User, error) {
	user, ok := f[id]
	if !ok {
		return models.User{}, repository.ErrNotFound
	}
	return user, nil
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = structValidator{v: validator.New()}
	return e
}

// serve выполняет запрос от имени userID, минуя JWT.
func serve(e *echo.Echo, method, target, body string, userID uuid.UUID, handler echo.HandlerFunc, route string) *httptest.ResponseRecorder {
	e.Add(method, route, func(c echo.Context) error {
		c.Set(auth.ContextUserIDKey, userID)
		return handler(c)
	})

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func sampleList(planID uuid.UUID) models.ShoppingList {
	return models.ShoppingList{
		PlanID: planID,
		Items: []models.ShoppingItem{
			{Ingredient: "鶏むね肉", Amount: "200g", Category: models.CategoryMeat},
			{Ingredient: "醤油", Amount: "適量", Category: models.CategoryPantry},
		},
	}
}

func TestGenerateResponses(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		outcome  lifecycle.GenerationOutcome
		err      error
		wantCode int
		wantBody string
	}{
		{name: "started", body: `{"days":7}`, outcome: lifecycle.OutcomeStarted, wantCode: http.StatusAccepted, wantBody: `"started"`},
		{name: "already creating", outcome: lifecycle.OutcomeAlreadyCreating, wantCode: http.StatusConflict, wantBody: `"already_creating"`},
		{name: "bad horizon", body: `{"days":30}`, err: lifecycle.ErrInvalidHorizon, wantCode: http.StatusBadRequest},
		{name: "no goal", err: lifecycle.ErrProfileIncomplete, wantCode: http.StatusBadRequest},
		{name: "bad start date", body: `{"start_date":"15.10.2026"}`, wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lc := &fakeLifecycle{outcome: tt.outcome, generateErr: tt.err}
			h := NewPlanHandler(lc, nil)

			rec := serve(newEcho(), http.MethodPost, "/plans/generate", tt.body, uuid.New(), h.Generate, "/plans/generate")

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestGenerateParsesStartDate(t *testing.T) {
	lc := &fakeLifecycle{outcome: lifecycle.OutcomeStarted}
	h := NewPlanHandler(lc, nil)

	rec := serve(newEcho(), http.MethodPost, "/plans/generate", `{"start_date":"2026-10-19","days":5}`, uuid.New(), h.Generate, "/plans/generate")

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.NotNil(t, lc.opts.StartDate)
	assert.Equal(t, "2026-10-19", lc.opts.StartDate.Format(dateLayout))
	assert.Equal(t, 5, lc.opts.Days)
}

func TestRejectMapsErrors(t *testing.T) {
	planID := uuid.New()

	lc := &fakeLifecycle{}
	h := NewPlanHandler(lc, nil)
	rec := serve(newEcho(), http.MethodPost, "/plans/"+planID.String()+"/reject", `{"feedback":"辛いものを減らして"}`, uuid.New(), h.Reject, "/plans/:id/reject")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, lc.feedback)
	assert.Equal(t, "辛いものを減らして", *lc.feedback)

	lc = &fakeLifecycle{rejectErr: repository.ErrInvalidTransition}
	h = NewPlanHandler(lc, nil)
	rec = serve(newEcho(), http.MethodPost, "/plans/"+planID.String()+"/reject", "", uuid.New(), h.Reject, "/plans/:id/reject")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(newEcho(), http.MethodPost, "/plans/not-a-uuid/reject", "", uuid.New(), h.Reject, "/plans/:id/reject")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	long := `{"feedback":"` + strings.Repeat("a", 1001) + `"}`
	rec = serve(newEcho(), http.MethodPost, "/plans/"+planID.String()+"/reject", long, uuid.New(), h.Reject, "/plans/:id/reject")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestToggleShoppingItem(t *testing.T) {
	planID := uuid.New()
	lc := &fakeLifecycle{list: sampleList(planID)}
	h := NewShoppingHandler(lc, nil, nil)
	route := "/plans/:id/shopping-list/items/:index/toggle"

	rec := serve(newEcho(), http.MethodPatch, "/plans/"+planID.String()+"/shopping-list/items/1/toggle", "", uuid.New(), h.Toggle, route)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, lc.toggled)
	assert.True(t, lc.list.Items[1].Checked)

	rec = serve(newEcho(), http.MethodPatch, "/plans/"+planID.String()+"/shopping-list/items/9/toggle", "", uuid.New(), h.Toggle, route)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(newEcho(), http.MethodPatch, "/plans/"+planID.String()+"/shopping-list/items/-1/toggle", "", uuid.New(), h.Toggle, route)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestShoppingExport(t *testing.T) {
	planID := uuid.New()
	route := "/plans/:id/shopping-list/export"
	target := "/plans/" + planID.String() + "/shopping-list/export"

	lc := &fakeLifecycle{list: sampleList(planID)}
	rec := serve(newEcho(), http.MethodPost, target, "", uuid.New(), NewShoppingHandler(lc, nil, nil).Export, route)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	exporter := fakeExporter{location: "s3://bucket/shopping-lists/list.csv"}
	rec = serve(newEcho(), http.MethodPost, target, "", uuid.New(), NewShoppingHandler(lc, exporter, nil).Export, route)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, exporter.location, lc.exported)

	lc = &fakeLifecycle{listErr: repository.ErrNotFound}
	rec = serve(newEcho(), http.MethodPost, target, "", uuid.New(), NewShoppingHandler(lc, exporter, nil).Export, route)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	lc = &fakeLifecycle{list: sampleList(planID)}
	failing := fakeExporter{err: errors.New("access denied")}
	rec = serve(newEcho(), http.MethodPost, target, "", uuid.New(), NewShoppingHandler(lc, failing, nil).Export, route)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, lc.exported)
}

func TestShoppingExportCSV(t *testing.T) {
	planID := uuid.New()
	lc := &fakeLifecycle{list: sampleList(planID)}
	h := NewShoppingHandler(lc, nil, nil)

	rec := serve(newEcho(), http.MethodGet, "/plans/"+planID.String()+"/shopping-list/export/csv", "", uuid.New(), h.ExportCSV, "/plans/:id/shopping-list/export/csv")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, csvContentType, rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "shopping-list-"+planID.String()+".csv")
	assert.Contains(t, rec.Body.String(), "鶏むね肉,200g,meat")
}

func TestAdminBackfill(t *testing.T) {
	backfiller := &fakeBackfiller{}
	h := NewAdminHandler(nil, backfiller, 20, nil)

	rec := serve(newEcho(), http.MethodPost, "/admin/backfill?limit=500", "", uuid.New(), h.Backfill, "/admin/backfill")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100, backfiller.limit)
	assert.Contains(t, rec.Body.String(), `"meals":5`)

	rec = serve(newEcho(), http.MethodPost, "/admin/backfill", "", uuid.New(), h.Backfill, "/admin/backfill")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, backfiller.limit)

	rec = serve(newEcho(), http.MethodPost, "/admin/backfill?limit=abc", "", uuid.New(), h.Backfill, "/admin/backfill")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminMiddleware(t *testing.T) {
	admin := uuid.New()
	member := uuid.New()
	users := fakeUsers{
		admin:  {ID: admin, Email: "Admin@Example.com"},
		member: {ID: member, Email: "member@example.com"},
	}
	mw := AdminMiddleware(users, []string{" admin@example.com "})
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }

	rec := serve(newEcho(), http.MethodGet, "/admin/users", "", admin, mw(ok), "/admin/users")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(newEcho(), http.MethodGet, "/admin/users", "", member, mw(ok), "/admin/users")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(newEcho(), http.MethodGet, "/admin/users", "", uuid.New(), mw(ok), "/admin/users")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestNotificationStream(t *testing.T) {
	hub := notifications.NewHub()
	h := NewNotificationHandler(hub)
	userID := uuid.New()

	done := make(chan *httptest.ResponseRecorder)
	go func() {
		done <- serve(newEcho(), http.MethodGet, "/notifications/stream", "", userID, h.Stream, "/notifications/stream")
	}()

	require.Eventually(t, func() bool { return hub.Subscribers(userID) == 1 }, time.Second, 5*time.Millisecond)
	hub.Publish(userID, notifications.Event{Type: notifications.EventPlanReady, Data: map[string]string{"plan_id": "p1"}})
	hub.Close()

	var rec *httptest.ResponseRecorder
	select {
	case rec = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not finish after hub close")
	}

	body := rec.Body.String()
	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, body, "event: connected\n")
	assert.Contains(t, body, "event: plan_ready\n")
}

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(context.Context) error {
	return f.err
}

func TestReady(t *testing.T) {
	e := newEcho()
	e.GET("/ready", Ready(fakePinger{}))
	e.GET("/ready-down", Ready(fakePinger{err: errors.New("connection refused")}))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready-down", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
