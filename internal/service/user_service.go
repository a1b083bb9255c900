package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"

	"userauth/internal/auth"
	dom "userauth/internal/domain"
	"userauth/internal/repo"

	"golang.org/x/sync/singleflight"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("invalid token")
)

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) (bool, error)
}

// TokenIssuer issues and verifies access tokens.
type TokenIssuer interface {
	Issue(subjectID int64, email string) (string, error)
	Verify(token string) (dom.Claims, error)
}

// ProfileCache is an optional copy of profiles, served while the store is
// unavailable.
type ProfileCache interface {
	GetUser(ctx context.Context, id int64) (dom.User, bool, error)
	SetUser(ctx context.Context, u dom.User) error
	DeleteUser(ctx context.Context, id int64) error
}

// UserService handles registration, login and token-gated profile access.
type UserService struct {
	repo   repo.UserRepo
	hasher PasswordHasher
	tokens TokenIssuer
	cache  ProfileCache
	sf     singleflight.Group
}

// NewUserService returns a new UserService. If c is nil, caching is disabled.
func NewUserService(r repo.UserRepo, h PasswordHasher, t TokenIssuer, c ProfileCache) *UserService {
	return &UserService{repo: r, hasher: h, tokens: t, cache: c}
}

// Register creates a new user with a hashed password.
func (s *UserService) Register(ctx context.Context, name, email, password string) (dom.User, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if err := validateRegistration(name, email, password); err != nil {
		return dom.User{}, err
	}

	_, err := s.repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return dom.User{}, ErrUserExists
	case !errors.Is(err, repo.ErrNotFound):
		return dom.User{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return dom.User{}, err
	}

	u, err := s.repo.Create(ctx, name, email, hash)
	if err != nil {
		// Lost a race with a concurrent registration for the same email.
		if errors.Is(err, repo.ErrDuplicate) {
			return dom.User{}, ErrUserExists
		}
		return dom.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Login checks email and password and returns a signed access token.
func (s *UserService) Login(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}

	ok, err := s.hasher.Verify(password, u.PasswordHash)
	if err != nil {
		return "", fmt.Errorf("verify password for user %d: %w", u.ID, err)
	}
	if !ok {
		return "", ErrInvalidCredentials
	}

	return s.tokens.Issue(u.ID, u.Email)
}

// AuthenticateAndFetchProfile verifies token and returns the user it was issued for.
func (s *UserService) AuthenticateAndFetchProfile(ctx context.Context, token string) (dom.User, error) {
	if token == "" {
		return dom.User{}, ErrUnauthorized
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return dom.User{}, fmt.Errorf("%w: %w", ErrForbidden, err)
	}
	return s.getByID(ctx, claims.SubjectID)
}

// getByID loads the user from the store, which is authoritative. Concurrent
// lookups for one id share a single store call that is not tied to any one
// caller's cancellation. The cache is refreshed on every hit, evicted when
// the user is gone, and read only when the store fails.
func (s *UserService) getByID(ctx context.Context, id int64) (dom.User, error) {
	v, err, _ := s.sf.Do(strconv.FormatInt(id, 10), func() (interface{}, error) {
		return s.loadUser(context.WithoutCancel(ctx), id)
	})
	if err != nil {
		return dom.User{}, err
	}
	return v.(dom.User), nil
}

func (s *UserService) loadUser(ctx context.Context, id int64) (dom.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	switch {
	case err == nil:
		if s.cache != nil {
			_ = s.cache.SetUser(ctx, u)
		}
		return u, nil
	case errors.Is(err, repo.ErrNotFound):
		if s.cache != nil {
			_ = s.cache.DeleteUser(ctx, id)
		}
		return dom.User{}, ErrUserNotFound
	}
	if s.cache != nil {
		if cached, ok, cerr := s.cache.GetUser(ctx, id); cerr == nil && ok {
			return cached, nil
		}
	}
	return dom.User{}, fmt.Errorf("lookup user %d: %w", id, err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateRegistration(name, email, password string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: email is not valid", ErrInvalidInput)
	}
	if password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if len(password) > auth.MaxPasswordBytes {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, auth.MaxPasswordBytes)
	}
	return nil
}
