package repo

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newGormRepo(t *testing.T) *GormUserRepo {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	r := NewGormUserRepo(db)
	require.NoError(t, r.AutoMigrate())
	return r
}

func TestGormCreateAndGet(t *testing.T) {
	r := newGormRepo(t)
	ctx := context.Background()

	u, err := r.Create(ctx, "A", "a@x.com", "hash")
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	byEmail, err := r.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)
	assert.Equal(t, "hash", byEmail.PasswordHash)

	byID, err := r.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", byID.Email)
}

func TestGormAutoMigrate_Idempotent(t *testing.T) {
	r := newGormRepo(t)
	ctx := context.Background()

	_, err := r.Create(ctx, "A", "a@x.com", "hash")
	require.NoError(t, err)

	require.NoError(t, r.AutoMigrate())

	_, err = r.GetByEmail(ctx, "a@x.com")
	assert.NoError(t, err, "re-running migrations must keep existing rows")
}

func TestGormNotFound(t *testing.T) {
	r := newGormRepo(t)
	ctx := context.Background()

	_, err := r.GetByEmail(ctx, "ghost@x.com")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.GetByID(ctx, 12345)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormCreate_Duplicate(t *testing.T) {
	r := newGormRepo(t)
	ctx := context.Background()

	first, err := r.Create(ctx, "A", "a@x.com", "hash-1")
	require.NoError(t, err)

	_, err = r.Create(ctx, "B", "a@x.com", "hash-2")
	assert.ErrorIs(t, err, ErrDuplicate)

	got, err := r.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "hash-1", got.PasswordHash)
}

func TestGormCreate_ConcurrentDuplicate(t *testing.T) {
	r := newGormRepo(t)
	ctx := context.Background()

	const n = 8
	var ok, dup atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.Create(ctx, fmt.Sprintf("u%d", i), "same@x.com", "hash")
			switch {
			case err == nil:
				ok.Add(1)
			case assert.ErrorIs(t, err, ErrDuplicate):
				dup.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(n-1), dup.Load())
}
