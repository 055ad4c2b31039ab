package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/ai-meal-planner/backend/internal/models"
)

const userColumns = `id, email, password_hash, name, daily_goal, dislikes, meal_settings, cheat_days,
	generation_status, generation_started_at, last_rejection_feedback, created_at, updated_at`

type UserRepository struct {
	db *pgxpool.Pool
}

type ProfileInput struct {
	Name         *string
	DailyGoal    models.NutritionVector
	Dislikes     []string
	MealSettings map[models.MealType]models.MealSlotSetting
	CheatDays    []time.Weekday
}

// NewUserRepository создает репозиторий пользователей.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// Create создает пользователя в базе.
func (r *UserRepository) Create(ctx context.Context, email, passwordHash string, name *string) (models.User, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, name)
		 VALUES ($1, $2, $3)
		 RETURNING `+userColumns,
		email, passwordHash, name,
	)

	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return user, ErrConflict
		}
		return user, err
	}
	return user, nil
}

// GetByEmail возвращает пользователя по email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (models.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return user, ErrNotFound
	}
	return user, err
}

// GetByID возвращает пользователя с профилем питания.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return user, ErrNotFound
	}
	return user, err
}

// UpdateProfile сохраняет цель, нелюбимые продукты, настройки слотов и читмил-дни.
func (r *UserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, input ProfileInput) (models.User, error) {
	goal, err := json.Marshal(input.DailyGoal)
	if err != nil {
		return models.User{}, err
	}
	dislikes, err := json.Marshal(nonNilStrings(input.Dislikes))
	if err != nil {
		return models.User{}, err
	}
	settings := input.MealSettings
	if settings == nil {
		settings = map[models.MealType]models.MealSlotSetting{}
	}
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return models.User{}, err
	}
	cheatDays := input.CheatDays
	if cheatDays == nil {
		cheatDays = []time.Weekday{}
	}
	cheatJSON, err := json.Marshal(cheatDays)
	if err != nil {
		return models.User{}, err
	}

	user, err := scanUser(r.db.QueryRow(ctx,
		`UPDATE users
		 SET name = $2, daily_goal = $3, dislikes = $4, meal_settings = $5, cheat_days = $6, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, input.Name, goal, dislikes, settingsJSON, cheatJSON,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return user, ErrNotFound
	}
	return user, err
}

// TryStartGeneration атомарно ставит флаг генерации. Флаг старше lease считается брошенным.
// Возвращает false, если генерация уже идет.
func (r *UserRepository) TryStartGeneration(ctx context.Context, id uuid.UUID, lease time.Duration) (bool, error) {
	cmd, err := r.db.Exec(ctx,
		`UPDATE users
		 SET generation_status = 'creating', generation_started_at = NOW(), updated_at = NOW()
		 WHERE id = $1
		   AND (generation_status = 'idle'
		        OR generation_started_at IS NULL
		        OR generation_started_at < NOW() - make_interval(secs => $2))`,
		id, lease.Seconds(),
	)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

// FinishGeneration снимает флаг генерации.
func (r *UserRepository) FinishGeneration(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`UPDATE users
		 SET generation_status = 'idle', generation_started_at = NULL, updated_at = NOW()
		 WHERE id = $1`,
		id,
	)
	return err
}

// SetRejectionFeedback запоминает отзыв для следующей генерации; nil очищает его.
func (r *UserRepository) SetRejectionFeedback(ctx context.Context, id uuid.UUID, feedback *string) error {
	cmd, err := r.db.Exec(ctx,
		`UPDATE users SET last_rejection_feedback = $2, updated_at = NOW() WHERE id = $1`,
		id, feedback,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	var goal, dislikes, settings, cheatDays []byte
	var status string

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&goal,
		&dislikes,
		&settings,
		&cheatDays,
		&status,
		&user.GenerationStartedAt,
		&user.LastRejectionFeedback,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return user, err
	}

	user.GenerationStatus = models.GenerationStatus(status)
	if err := unmarshalColumns(
		column{goal, &user.DailyGoal},
		column{dislikes, &user.Dislikes},
		column{settings, &user.MealSettings},
		column{cheatDays, &user.CheatDays},
	); err != nil {
		return user, err
	}
	return user, nil
}

type column struct {
	raw    []byte
	target interface{}
}

func unmarshalColumns(columns ...column) error {
	for _, c := range columns {
		if len(c.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(c.raw, c.target); err != nil {
			return err
		}
	}
	return nil
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
