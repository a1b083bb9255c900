package repo

import (
	"context"
	"errors"
	"fmt"

	dom "userauth/internal/domain"
	"userauth/internal/utils"

	"github.com/jackc/pgx/v5"
)

var (
	// ErrNotFound is returned when no user matches the lookup key.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicate is returned when an insert violates the unique email constraint.
	ErrDuplicate = errors.New("user with this email already exists")
)

// UserRepo provides user persistence.
type UserRepo interface {
	GetByEmail(ctx context.Context, email string) (dom.User, error)
	GetByID(ctx context.Context, id int64) (dom.User, error)
	Create(ctx context.Context, name, email, passwordHash string) (dom.User, error)
}

// Querier is the part of pgxpool.Pool the repository needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGUserRepo implements UserRepo with Postgres.
type PGUserRepo struct {
	db Querier
}

// NewPGUserRepo returns a new PGUserRepo.
func NewPGUserRepo(db Querier) *PGUserRepo {
	return &PGUserRepo{db: db}
}

const userColumns = `id, name, email, password, "createdAt", "updatedAt"`

// GetByEmail returns the user by email.
func (r *PGUserRepo) GetByEmail(ctx context.Context, email string) (dom.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// GetByID returns the user by id.
func (r *PGUserRepo) GetByID(ctx context.Context, id int64) (dom.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// Create inserts a new user and returns it with the id assigned by the database.
func (r *PGUserRepo) Create(ctx context.Context, name, email, passwordHash string) (dom.User, error) {
	query := `
		INSERT INTO users (name, email, password)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns
	var u dom.User
	err := r.db.QueryRow(ctx, query, name, email, passwordHash).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if utils.IsPGUniqueViolation(err) {
			return dom.User{}, ErrDuplicate
		}
		return dom.User{}, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func (r *PGUserRepo) getOne(ctx context.Context, query string, arg any) (dom.User, error) {
	var u dom.User
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dom.User{}, ErrNotFound
		}
		return dom.User{}, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}
