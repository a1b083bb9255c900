package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"userauth/internal/config"
	"userauth/internal/dto"
	"userauth/internal/logging"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// loadTestConfig points the app at a fresh sqlite file.
func loadTestConfig(t *testing.T, redisAddr string) config.Config {
	t.Helper()
	t.Setenv("JWT_SECRET", "app-test-secret")
	t.Setenv("PASSWORD_HASH_COST", "4")
	t.Setenv("DB_DIALECT", "sqlite")
	t.Setenv("DB_NAME", filepath.Join(t.TempDir(), "users.db"))
	t.Setenv("DB_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("REDIS_ADDR", redisAddr)
	t.Setenv("VERSION", "test")

	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func newTestApp(t *testing.T, redisAddr string) *App {
	t.Helper()
	a, err := New(context.Background(), loadTestConfig(t, redisAddr), discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, h http.Handler, email, password string) string {
	t.Helper()
	w := doJSON(t, h, http.MethodPost, "/login", dto.LoginRequest{Email: email, Password: password}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp dto.TokenEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token
}

func TestEndToEnd(t *testing.T) {
	h := newTestApp(t, "").Router()

	w := doJSON(t, h, http.MethodPost, "/register", dto.RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "s3cret"}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	token := login(t, h, "ann@example.com", "s3cret")

	w = doJSON(t, h, http.MethodGet, "/profile", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
	var prof dto.UserEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &prof))
	assert.Equal(t, "Ann", prof.User.Name)
	assert.Equal(t, "ann@example.com", prof.User.Email)
	assert.False(t, prof.User.CreatedAt.IsZero())

	w = doJSON(t, h, http.MethodPost, "/login", dto.LoginRequest{Email: "ann@example.com", Password: "wrong"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, h, http.MethodGet, "/profile", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, h, http.MethodGet, "/profile", nil, "garbage")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, h, http.MethodPost, "/register", dto.RegisterRequest{Name: "Ann 2", Email: "ann@example.com", Password: "other"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "User already exists")
}

func TestConcurrentRegistration(t *testing.T) {
	h := newTestApp(t, "").Router()

	const n = 8
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := doJSON(t, h, http.MethodPost, "/register", dto.RegisterRequest{Name: "Racer", Email: "race@example.com", Password: "pw"}, "")
			codes[i] = w.Code
		}(i)
	}
	wg.Wait()

	created := 0
	for _, c := range codes {
		switch c {
		case http.StatusCreated:
			created++
		case http.StatusBadRequest:
		default:
			t.Fatalf("unexpected status %d", c)
		}
	}
	assert.Equal(t, 1, created)
}

func TestProfileCachedInRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	h := newTestApp(t, mr.Addr()).Router()

	w := doJSON(t, h, http.MethodPost, "/register", dto.RegisterRequest{Name: "Cy", Email: "cy@example.com", Password: "pw"}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	token := login(t, h, "cy@example.com", "pw")

	w = doJSON(t, h, http.MethodGet, "/profile", nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	require.True(t, mr.Exists("user:1"))
	cached, err := mr.Get("user:1")
	require.NoError(t, err)
	assert.Contains(t, cached, "cy@example.com")
	assert.NotContains(t, cached, "$2a$")
}

func TestNewFailsWhenRedisUnreachable(t *testing.T) {
	_, err := New(context.Background(), loadTestConfig(t, "127.0.0.1:1"), discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping")
}

func TestServiceRoutes(t *testing.T) {
	h := newTestApp(t, "").Router()

	w := doJSON(t, h, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, h, http.MethodGet, "/version", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"version":"test"}`, w.Body.String())

	w = doJSON(t, h, http.MethodGet, "/swagger-doc.json", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/profile")

	doJSON(t, h, http.MethodGet, "/profile", nil, "")
	w = doJSON(t, h, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `auth_operations_total{operation="profile",outcome="unauthorized"} 1`)
	assert.True(t, strings.Contains(body, "http_requests_total"))
}

func TestOpenStoreUnsupportedDialect(t *testing.T) {
	_, _, err := openStore(context.Background(), config.DBConfig{Dialect: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported db dialect")
}

func TestRunMigrations_Success(t *testing.T) {
	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		if len(opts) != 0 {
			return errors.New("unexpected opts")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	require.NoError(t, runMigrations(context.Background(), "postgres://u:p@127.0.0.1:1/userauth?sslmode=disable"))
}

func TestRunMigrations_Error(t *testing.T) {
	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	err := runMigrations(context.Background(), "postgres://u:p@127.0.0.1:1/userauth?sslmode=disable")
	require.Error(t, err)
	assert.Equal(t, "goose up: boom", err.Error())
}
