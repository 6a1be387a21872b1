package repositories

import (
	"context"

	"github.com/anonto42/loopline/backend/internal/models"
	"gorm.io/gorm"
)

// PreferenceRepository defines the interface for preference storage
type PreferenceRepository interface {
	// GetOrCreate returns the recipient's preferences, creating the
	// default-enabled row on first use.
	GetOrCreate(ctx context.Context, recipientID uint) (*models.NotificationPreferences, error)
	Update(ctx context.Context, prefs *models.NotificationPreferences) error
}

type postgresPreferenceRepository struct {
	db *gorm.DB
}

// NewPostgresPreferenceRepository returns the gorm-backed preference store.
func NewPostgresPreferenceRepository(db *gorm.DB) PreferenceRepository {
	return &postgresPreferenceRepository{db: db}
}

func (r *postgresPreferenceRepository) GetOrCreate(ctx context.Context, recipientID uint) (*models.NotificationPreferences, error) {
	defaults := models.DefaultPreferences(recipientID)
	var prefs models.NotificationPreferences
	err := r.db.WithContext(ctx).
		Where(models.NotificationPreferences{RecipientID: recipientID}).
		Attrs(defaults).
		FirstOrCreate(&prefs).Error
	if err != nil {
		return nil, err
	}
	return &prefs, nil
}

func (r *postgresPreferenceRepository) Update(ctx context.Context, prefs *models.NotificationPreferences) error {
	return r.db.WithContext(ctx).Save(prefs).Error
}
