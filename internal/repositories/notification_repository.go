package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/anonto42/loopline/backend/internal/models"
	"gorm.io/gorm"
)

// ListFilter narrows a recipient's notification listing.
type ListFilter struct {
	Kind       models.Kind // empty means all kinds
	UnreadOnly bool
	Page       int
	Limit      int
}

// RevokedRef identifies a deleted notification so live subscribers can be
// told to drop it.
type RevokedRef struct {
	ID          uint
	RecipientID uint
}

// NotificationStats are the operational numbers served by the admin surface.
type NotificationStats struct {
	CreatedLastHour int64   `json:"created_last_hour"`
	CreatedLastDay  int64   `json:"created_last_day"`
	ReadRateLastDay float64 `json:"read_rate_last_day"`
	UnreadBacklog   int64   `json:"unread_backlog"`
}

// NotificationRepository defines the interface for notification storage
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	Save(ctx context.Context, n *models.Notification) error
	GetByID(ctx context.Context, id uint) (*models.Notification, error)

	// FindMergeable returns the newest unread notification matching the
	// aggregation key created at or after since, or nil when none exists.
	FindMergeable(ctx context.Context, recipientID uint, kind models.Kind, targetType models.TargetType, targetID string, since time.Time) (*models.Notification, error)

	List(ctx context.Context, recipientID uint, f ListFilter) ([]models.Notification, int64, error)
	GetGrouped(ctx context.Context, recipientID uint) (today, yesterday, thisWeek, older []models.Notification, err error)

	MarkRead(ctx context.Context, recipientID uint, ids []uint, at time.Time) (int64, error)
	MarkUnread(ctx context.Context, recipientID uint, ids []uint) (int64, error)
	MarkAllRead(ctx context.Context, recipientID uint, at time.Time) (int64, error)
	UnreadCount(ctx context.Context, recipientID uint) (int64, error)

	// ClaimDelivery flips is_delivered from false to true and reports
	// whether this caller won the flip. Used to keep dispatch at-most-once
	// when the quiet-hours sweep runs concurrently.
	ClaimDelivery(ctx context.Context, id uint) (bool, error)
	// Defer pulls a row back into the undelivered, deferred state so the
	// quiet-hours sweep republishes it. Used when an event merges into an
	// already-delivered notification inside a quiet window.
	Defer(ctx context.Context, id uint, until time.Time) error
	ListDeferredDue(ctx context.Context, now time.Time, limit int) ([]models.Notification, error)

	// DeleteExpired removes rows past their expiry, returning the total
	// number deleted and refs for the unread ones so live subscribers
	// can be told to drop them.
	DeleteExpired(ctx context.Context, now time.Time) (int64, []RevokedRef, error)
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Stats(ctx context.Context, now time.Time) (NotificationStats, error)
}

type postgresNotificationRepository struct {
	db *gorm.DB
}

// NewPostgresNotificationRepository returns the gorm-backed store.
func NewPostgresNotificationRepository(db *gorm.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

func (r *postgresNotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *postgresNotificationRepository) Save(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Save(n).Error
}

func (r *postgresNotificationRepository) GetByID(ctx context.Context, id uint) (*models.Notification, error) {
	var n models.Notification
	err := r.db.WithContext(ctx).First(&n, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *postgresNotificationRepository) FindMergeable(ctx context.Context, recipientID uint, kind models.Kind, targetType models.TargetType, targetID string, since time.Time) (*models.Notification, error) {
	var n models.Notification
	err := r.db.WithContext(ctx).
		Where("recipient_id = ? AND kind = ? AND target_type = ? AND target_id = ? AND is_read = ? AND created_at >= ?",
			recipientID, kind, targetType, targetID, false, since).
		Order("created_at DESC").
		First(&n).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *postgresNotificationRepository) List(ctx context.Context, recipientID uint, f ListFilter) ([]models.Notification, int64, error) {
	var notifications []models.Notification
	var total int64

	q := r.db.WithContext(ctx).Model(&models.Notification{}).Where("recipient_id = ?", recipientID)
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if f.UnreadOnly {
		q = q.Where("is_read = ?", false)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (f.Page - 1) * f.Limit
	err := q.Order("created_at DESC").
		Offset(offset).Limit(f.Limit).
		Find(&notifications).Error

	return notifications, total, err
}

func (r *postgresNotificationRepository) GetGrouped(ctx context.Context, recipientID uint) (today, yesterday, thisWeek, older []models.Notification, retErr error) {
	now := time.Now()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterdayStart := todayStart.AddDate(0, 0, -1)
	weekStart := todayStart.AddDate(0, 0, -7)

	db := r.db.WithContext(ctx)

	if err := db.Where("recipient_id = ? AND created_at >= ?", recipientID, todayStart).
		Order("created_at DESC").Find(&today).Error; err != nil {
		return nil, nil, nil, nil, err
	}

	if err := db.Where("recipient_id = ? AND created_at >= ? AND created_at < ?", recipientID, yesterdayStart, todayStart).
		Order("created_at DESC").Find(&yesterday).Error; err != nil {
		return nil, nil, nil, nil, err
	}

	if err := db.Where("recipient_id = ? AND created_at >= ? AND created_at < ?", recipientID, weekStart, yesterdayStart).
		Order("created_at DESC").Find(&thisWeek).Error; err != nil {
		return nil, nil, nil, nil, err
	}

	if err := db.Where("recipient_id = ? AND created_at < ?", recipientID, weekStart).
		Order("created_at DESC").Limit(50).Find(&older).Error; err != nil {
		return nil, nil, nil, nil, err
	}

	return today, yesterday, thisWeek, older, nil
}

func (r *postgresNotificationRepository) MarkRead(ctx context.Context, recipientID uint, ids []uint, at time.Time) (int64, error) {
	// Single statement: ids not owned by the recipient or already read
	// fall out of the WHERE clause instead of erroring.
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND id IN ? AND is_read = ?", recipientID, ids, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	return res.RowsAffected, res.Error
}

func (r *postgresNotificationRepository) MarkUnread(ctx context.Context, recipientID uint, ids []uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND id IN ? AND is_read = ?", recipientID, ids, true).
		Updates(map[string]interface{}{"is_read": false, "read_at": nil})
	return res.RowsAffected, res.Error
}

func (r *postgresNotificationRepository) MarkAllRead(ctx context.Context, recipientID uint, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": at})
	return res.RowsAffected, res.Error
}

func (r *postgresNotificationRepository) UnreadCount(ctx context.Context, recipientID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&count).Error
	return count, err
}

func (r *postgresNotificationRepository) ClaimDelivery(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND is_delivered = ?", id, false).
		Updates(map[string]interface{}{"is_delivered": true, "deferred_until": nil})
	return res.RowsAffected > 0, res.Error
}

func (r *postgresNotificationRepository) Defer(ctx context.Context, id uint, until time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_delivered": false, "deferred_until": until}).Error
}

func (r *postgresNotificationRepository) ListDeferredDue(ctx context.Context, now time.Time, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	err := r.db.WithContext(ctx).
		Where("is_delivered = ? AND deferred_until IS NOT NULL AND deferred_until <= ?", false, now).
		Order("deferred_until ASC").
		Limit(limit).
		Find(&notifications).Error
	return notifications, err
}

func (r *postgresNotificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, []RevokedRef, error) {
	// Collect unread victims first so live subscribers can be told to
	// drop them, then delete everything past its expiry.
	var unread []models.Notification
	if err := r.db.WithContext(ctx).
		Select("id", "recipient_id").
		Where("expires_at IS NOT NULL AND expires_at <= ? AND is_read = ?", now, false).
		Find(&unread).Error; err != nil {
		return 0, nil, err
	}

	res := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Delete(&models.Notification{})
	if res.Error != nil {
		return 0, nil, res.Error
	}

	refs := make([]RevokedRef, 0, len(unread))
	for _, n := range unread {
		refs = append(refs, RevokedRef{ID: n.ID, RecipientID: n.RecipientID})
	}
	return res.RowsAffected, refs, nil
}

func (r *postgresNotificationRepository) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("is_read = ? AND read_at IS NOT NULL AND read_at < ?", true, cutoff).
		Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}

func (r *postgresNotificationRepository) Stats(ctx context.Context, now time.Time) (NotificationStats, error) {
	var stats NotificationStats
	db := r.db.WithContext(ctx).Model(&models.Notification{})

	if err := db.Session(&gorm.Session{}).
		Where("created_at >= ?", now.Add(-time.Hour)).
		Count(&stats.CreatedLastHour).Error; err != nil {
		return stats, err
	}
	if err := db.Session(&gorm.Session{}).
		Where("created_at >= ?", now.Add(-24*time.Hour)).
		Count(&stats.CreatedLastDay).Error; err != nil {
		return stats, err
	}

	var readLastDay int64
	if err := db.Session(&gorm.Session{}).
		Where("created_at >= ? AND is_read = ?", now.Add(-24*time.Hour), true).
		Count(&readLastDay).Error; err != nil {
		return stats, err
	}
	if stats.CreatedLastDay > 0 {
		stats.ReadRateLastDay = float64(readLastDay) / float64(stats.CreatedLastDay)
	}

	if err := db.Session(&gorm.Session{}).
		Where("is_read = ?", false).
		Count(&stats.UnreadBacklog).Error; err != nil {
		return stats, err
	}

	return stats, nil
}
