package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/anonto42/loopline/backend/internal/models"
	"gorm.io/gorm"
)

// UserRepository resolves the contact fields the off-channel sinks need.
// Account storage is owned by the users service; this reads its table.
type UserRepository interface {
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
}

type postgresUserRepository struct {
	db *gorm.DB
}

// NewPostgresUserRepository returns the gorm-backed user lookup.
func NewPostgresUserRepository(db *gorm.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

func (r *postgresUserRepository) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UserDirectory adapts a UserRepository to the recipient lookup the sinks
// consume (sinks.RecipientDirectory).
type UserDirectory struct {
	users UserRepository
}

// NewUserDirectory wraps the given user repository.
func NewUserDirectory(users UserRepository) *UserDirectory {
	return &UserDirectory{users: users}
}

// EmailAddress returns the user's email or an error when unknown.
func (d *UserDirectory) EmailAddress(ctx context.Context, userID uint) (string, error) {
	user, err := d.users.GetUserByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("look up user %d: %w", userID, err)
	}
	if user.Email == "" {
		return "", errors.New("user has no email address")
	}
	return user.Email, nil
}

// DeviceTokens returns the user's push registration tokens; an empty slice
// means the user has no registered device, which is not an error.
func (d *UserDirectory) DeviceTokens(ctx context.Context, userID uint) ([]string, error) {
	user, err := d.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("look up user %d: %w", userID, err)
	}
	if user.DeviceToken == "" {
		return nil, nil
	}
	return []string{user.DeviceToken}, nil
}
