package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayush/skill-swap/internal/models"
)

const pgUniqueViolation = "23505"

// PostgresStore handles users and swaps against PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the users and swaps tables if they don't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name           VARCHAR(255) NOT NULL,
			email          VARCHAR(255) UNIQUE NOT NULL,
			password       VARCHAR(255) NOT NULL,
			location       TEXT         NOT NULL DEFAULT '',
			profile_photo  TEXT         NOT NULL DEFAULT '',
			skills_offered TEXT[]       NOT NULL DEFAULT '{}',
			skills_wanted  TEXT[]       NOT NULL DEFAULT '{}',
			availability   VARCHAR(16)  NOT NULL DEFAULT 'Weekends',
			is_public      BOOLEAN      NOT NULL DEFAULT TRUE,
			is_banned      BOOLEAN      NOT NULL DEFAULT FALSE,
			role           VARCHAR(16)  NOT NULL DEFAULT 'user',
			ratings        JSONB        NOT NULL DEFAULT '[]',
			avg_rating     DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at     TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			updated_at     TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS swaps (
			id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			requester_id     UUID        NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			responder_id     UUID        NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			requester_skills TEXT[]      NOT NULL,
			responder_skills TEXT[]      NOT NULL,
			message          TEXT        NOT NULL,
			status           VARCHAR(16) NOT NULL DEFAULT 'pending',
			created_at       TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
			updated_at       TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
		);
		CREATE INDEX IF NOT EXISTS swaps_requester_idx ON swaps (requester_id, created_at DESC);
		CREATE INDEX IF NOT EXISTS swaps_responder_idx ON swaps (responder_id, created_at DESC);
	`)
	return err
}

const userColumns = `id::text, name, email, password, location, profile_photo, skills_offered,
	skills_wanted, availability, is_public, is_banned, role, ratings, avg_rating, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var (
		u            models.User
		availability string
		role         string
		ratings      []byte
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Location, &u.ProfilePhoto,
		&u.SkillsOffered, &u.SkillsWanted, &availability, &u.IsPublic, &u.IsBanned, &role,
		&ratings, &u.AvgRating, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	u.Availability = models.Availability(availability)
	u.Role = models.Role(role)
	u.Ratings = []models.Rating{}
	if err := json.Unmarshal(ratings, &u.Ratings); err != nil {
		return nil, fmt.Errorf("decode ratings: %w", err)
	}
	return &u, nil
}

// validID filters out ids that cannot be a UUID before they reach the query.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (name, email, password, location, profile_photo, skills_offered,
		                    skills_wanted, availability, is_public, is_banned, role)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id::text, created_at, updated_at`,
		u.Name, u.Email, u.PasswordHash, u.Location, u.ProfilePhoto, nonNil(u.SkillsOffered),
		nonNil(u.SkillsWanted), string(u.Availability), u.IsPublic, u.IsBanned, string(u.Role),
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return models.ErrDuplicateEmail
		}
		return fmt.Errorf("create user: %w", err)
	}
	u.Ratings = []models.Rating{}
	return nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if !validID(id) {
		return nil, models.ErrNotFound
	}
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.listUsers(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
}

func (s *PostgresStore) ListPublicUsers(ctx context.Context) ([]models.User, error) {
	return s.listUsers(ctx, `SELECT `+userColumns+` FROM users WHERE is_public ORDER BY created_at`)
}

func (s *PostgresStore) listUsers(ctx context.Context, query string) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, u *models.User) error {
	if !validID(u.ID) {
		return models.ErrNotFound
	}
	err := s.pool.QueryRow(ctx,
		`UPDATE users SET name = $2, location = $3, profile_photo = $4, skills_offered = $5,
		        skills_wanted = $6, availability = $7, is_public = $8, updated_at = NOW()
		 WHERE id = $1
		 RETURNING updated_at`,
		u.ID, u.Name, u.Location, u.ProfilePhoto, nonNil(u.SkillsOffered), nonNil(u.SkillsWanted),
		string(u.Availability), u.IsPublic,
	).Scan(&u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// SetBanned moves is_banned to banned only from the opposite value, so two
// racing toggles cannot both apply.
func (s *PostgresStore) SetBanned(ctx context.Context, id string, banned bool) error {
	if !validID(id) {
		return models.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET is_banned = $2, updated_at = NOW() WHERE id = $1 AND is_banned = $3`, id, banned, !banned)
	if err != nil {
		return fmt.Errorf("ban user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missOrConflict(ctx, "users", id)
	}
	return nil
}

func (s *PostgresStore) SetProfilePhoto(ctx context.Context, id, url string) error {
	return s.setUserColumn(ctx, "profile_photo", id, url)
}

func (s *PostgresStore) SetRole(ctx context.Context, id string, role models.Role) error {
	return s.setUserColumn(ctx, "role", id, string(role))
}

func (s *PostgresStore) setUserColumn(ctx context.Context, column, id string, value any) error {
	if !validID(id) {
		return models.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET `+column+` = $2, updated_at = NOW() WHERE id = $1`, id, value)
	if err != nil {
		return fmt.Errorf("update user %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ReplaceRatings writes the rating list only while the stored list still has
// expectedCount entries.
func (s *PostgresStore) ReplaceRatings(ctx context.Context, id string, ratings []models.Rating, avg float64, expectedCount int) error {
	if !validID(id) {
		return models.ErrNotFound
	}
	if ratings == nil {
		ratings = []models.Rating{}
	}
	raw, err := json.Marshal(ratings)
	if err != nil {
		return fmt.Errorf("encode ratings: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET ratings = $2, avg_rating = $3, updated_at = NOW()
		 WHERE id = $1 AND jsonb_array_length(ratings) = $4`,
		id, raw, avg, expectedCount)
	if err != nil {
		return fmt.Errorf("replace ratings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missOrConflict(ctx, "users", id)
	}
	return nil
}

// DeleteUser removes the user; swaps referencing it go with it through the
// foreign key cascade.
func (s *PostgresStore) DeleteUser(ctx context.Context, id string) error {
	if !validID(id) {
		return models.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

const swapColumns = `id::text, requester_id::text, responder_id::text, requester_skills, responder_skills,
	message, status, created_at, updated_at`

func scanSwap(row pgx.Row) (*models.Swap, error) {
	var (
		sw     models.Swap
		status string
	)
	err := row.Scan(&sw.ID, &sw.RequesterID, &sw.ResponderID, &sw.RequesterSkills,
		&sw.ResponderSkills, &sw.Message, &status, &sw.CreatedAt, &sw.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	sw.Status = models.SwapStatus(status)
	return &sw, nil
}

func (s *PostgresStore) InsertSwap(ctx context.Context, sw *models.Swap) error {
	if !validID(sw.RequesterID) {
		return fmt.Errorf("requester: %w", models.ErrNotFound)
	}
	if !validID(sw.ResponderID) {
		return fmt.Errorf("responder: %w", models.ErrNotFound)
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO swaps (requester_id, responder_id, requester_skills, responder_skills, message, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id::text, created_at, updated_at`,
		sw.RequesterID, sw.ResponderID, nonNil(sw.RequesterSkills), nonNil(sw.ResponderSkills),
		sw.Message, string(sw.Status),
	).Scan(&sw.ID, &sw.CreatedAt, &sw.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert swap: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSwap(ctx context.Context, id string) (*models.Swap, error) {
	if !validID(id) {
		return nil, models.ErrNotFound
	}
	return scanSwap(s.pool.QueryRow(ctx, `SELECT `+swapColumns+` FROM swaps WHERE id = $1`, id))
}

func (s *PostgresStore) ListSwapsByParticipant(ctx context.Context, userID string) ([]models.Swap, error) {
	if !validID(userID) {
		return []models.Swap{}, nil
	}
	return s.listSwaps(ctx,
		`SELECT `+swapColumns+` FROM swaps
		 WHERE requester_id = $1 OR responder_id = $1
		 ORDER BY created_at DESC, id DESC`, userID)
}

func (s *PostgresStore) ListSwaps(ctx context.Context) ([]models.Swap, error) {
	return s.listSwaps(ctx, `SELECT `+swapColumns+` FROM swaps ORDER BY created_at DESC, id DESC`)
}

func (s *PostgresStore) listSwaps(ctx context.Context, query string, args ...any) ([]models.Swap, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list swaps: %w", err)
	}
	defer rows.Close()

	out := []models.Swap{}
	for rows.Next() {
		sw, err := scanSwap(rows)
		if err != nil {
			return nil, fmt.Errorf("scan swap: %w", err)
		}
		out = append(out, *sw)
	}
	return out, rows.Err()
}

// TransitionSwap is a compare-and-swap on the status column.
func (s *PostgresStore) TransitionSwap(ctx context.Context, id string, from, to models.SwapStatus) error {
	if !validID(id) {
		return models.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE swaps SET status = $3, updated_at = clock_timestamp() WHERE id = $1 AND status = $2`,
		id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("transition swap: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missOrConflict(ctx, "swaps", id)
	}
	return nil
}

func (s *PostgresStore) DeleteSwapIf(ctx context.Context, id string, status models.SwapStatus) error {
	if !validID(id) {
		return models.ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM swaps WHERE id = $1 AND status = $2`, id, string(status))
	if err != nil {
		return fmt.Errorf("delete swap: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missOrConflict(ctx, "swaps", id)
	}
	return nil
}

func (s *PostgresStore) DeleteSwapsByParticipant(ctx context.Context, userID string) (int64, error) {
	if !validID(userID) {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM swaps WHERE requester_id = $1 OR responder_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete swaps: %w", err)
	}
	return tag.RowsAffected(), nil
}

// missOrConflict explains a conditional write that matched no row. table is
// always a constant from this file.
func (s *PostgresStore) missOrConflict(ctx context.Context, table, id string) error {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check %s: %w", table, err)
	}
	if !exists {
		return models.ErrNotFound
	}
	return models.ErrPreconditionFailed
}
