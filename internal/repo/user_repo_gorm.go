package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	dom "userauth/internal/domain"

	"gorm.io/gorm"
)

// userRow is the gorm model for the users table. Column names match the
// Postgres migration so both backends share one schema.
type userRow struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name      string    `gorm:"column:name;not null"`
	Email     string    `gorm:"column:email;not null;uniqueIndex"`
	Password  string    `gorm:"column:password;not null"`
	CreatedAt time.Time `gorm:"column:createdAt"`
	UpdatedAt time.Time `gorm:"column:updatedAt"`
}

func (userRow) TableName() string { return "users" }

func (r userRow) toDomain() dom.User {
	return dom.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.Password,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// GormUserRepo implements UserRepo on top of gorm. It backs the sqlite dialect.
// The *gorm.DB must be opened with TranslateError enabled so unique
// violations surface as gorm.ErrDuplicatedKey.
type GormUserRepo struct {
	db *gorm.DB
}

// NewGormUserRepo returns a new GormUserRepo.
func NewGormUserRepo(db *gorm.DB) *GormUserRepo {
	return &GormUserRepo{db: db}
}

// AutoMigrate creates the users table if it is absent. Existing data is kept.
func (r *GormUserRepo) AutoMigrate() error {
	return r.db.AutoMigrate(&userRow{})
}

func (r *GormUserRepo) GetByEmail(ctx context.Context, email string) (dom.User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *GormUserRepo) GetByID(ctx context.Context, id int64) (dom.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *GormUserRepo) Create(ctx context.Context, name, email, passwordHash string) (dom.User, error) {
	row := userRow{Name: name, Email: email, Password: passwordHash}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dom.User{}, ErrDuplicate
		}
		return dom.User{}, fmt.Errorf("db error: %w", err)
	}
	return row.toDomain(), nil
}

func (r *GormUserRepo) first(ctx context.Context, cond string, arg any) (dom.User, error) {
	var row userRow
	if err := r.db.WithContext(ctx).Where(cond, arg).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dom.User{}, ErrNotFound
		}
		return dom.User{}, fmt.Errorf("db error: %w", err)
	}
	return row.toDomain(), nil
}
