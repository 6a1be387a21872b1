package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/anonto42/loopline/backend/internal/models"
)

// MemoryNotificationRepository is an in-memory NotificationRepository used
// by tests and local development. All methods are safe for concurrent use.
type MemoryNotificationRepository struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]*models.Notification
}

// NewMemoryNotificationRepository returns an empty in-memory store.
func NewMemoryNotificationRepository() *MemoryNotificationRepository {
	return &MemoryNotificationRepository{nextID: 1, rows: make(map[uint]*models.Notification)}
}

func (r *MemoryNotificationRepository) Create(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n.ID = r.nextID
	r.nextID++
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	cp := *n
	r.rows[n.ID] = &cp
	return nil
}

func (r *MemoryNotificationRepository) Save(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *n
	r.rows[n.ID] = &cp
	return nil
}

func (r *MemoryNotificationRepository) GetByID(_ context.Context, id uint) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *n
	return &cp, nil
}

func (r *MemoryNotificationRepository) FindMergeable(_ context.Context, recipientID uint, kind models.Kind, targetType models.TargetType, targetID string, since time.Time) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var newest *models.Notification
	for _, n := range r.rows {
		if n.RecipientID != recipientID || n.Kind != kind || n.TargetType != targetType || n.TargetID != targetID {
			continue
		}
		if n.IsRead || n.CreatedAt.Before(since) {
			continue
		}
		if newest == nil || n.CreatedAt.After(newest.CreatedAt) {
			newest = n
		}
	}
	if newest == nil {
		return nil, nil
	}
	cp := *newest
	return &cp, nil
}

func (r *MemoryNotificationRepository) List(_ context.Context, recipientID uint, f ListFilter) ([]models.Notification, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []models.Notification
	for _, n := range r.rows {
		if n.RecipientID != recipientID {
			continue
		}
		if f.Kind != "" && n.Kind != f.Kind {
			continue
		}
		if f.UnreadOnly && n.IsRead {
			continue
		}
		matched = append(matched, *n)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := int64(len(matched))

	offset := (f.Page - 1) * f.Limit
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + f.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (r *MemoryNotificationRepository) GetGrouped(ctx context.Context, recipientID uint) (today, yesterday, thisWeek, older []models.Notification, err error) {
	all, _, err := r.List(ctx, recipientID, ListFilter{Page: 1, Limit: int(^uint(0) >> 1)})
	if err != nil {
		return nil, nil, nil, nil, err
	}
	now := time.Now()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterdayStart := todayStart.AddDate(0, 0, -1)
	weekStart := todayStart.AddDate(0, 0, -7)
	for _, n := range all {
		switch {
		case !n.CreatedAt.Before(todayStart):
			today = append(today, n)
		case !n.CreatedAt.Before(yesterdayStart):
			yesterday = append(yesterday, n)
		case !n.CreatedAt.Before(weekStart):
			thisWeek = append(thisWeek, n)
		default:
			older = append(older, n)
		}
	}
	return today, yesterday, thisWeek, older, nil
}

func (r *MemoryNotificationRepository) MarkRead(_ context.Context, recipientID uint, ids []uint, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var updated int64
	for _, id := range ids {
		n, ok := r.rows[id]
		if !ok || n.RecipientID != recipientID || n.IsRead {
			continue
		}
		n.IsRead = true
		readAt := at
		n.ReadAt = &readAt
		updated++
	}
	return updated, nil
}

func (r *MemoryNotificationRepository) MarkUnread(_ context.Context, recipientID uint, ids []uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var updated int64
	for _, id := range ids {
		n, ok := r.rows[id]
		if !ok || n.RecipientID != recipientID || !n.IsRead {
			continue
		}
		n.IsRead = false
		n.ReadAt = nil
		updated++
	}
	return updated, nil
}

func (r *MemoryNotificationRepository) MarkAllRead(_ context.Context, recipientID uint, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var updated int64
	for _, n := range r.rows {
		if n.RecipientID != recipientID || n.IsRead {
			continue
		}
		n.IsRead = true
		readAt := at
		n.ReadAt = &readAt
		updated++
	}
	return updated, nil
}

func (r *MemoryNotificationRepository) UnreadCount(_ context.Context, recipientID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, n := range r.rows {
		if n.RecipientID == recipientID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *MemoryNotificationRepository) ClaimDelivery(_ context.Context, id uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok || n.IsDelivered {
		return false, nil
	}
	n.IsDelivered = true
	n.DeferredUntil = nil
	return true, nil
}

func (r *MemoryNotificationRepository) Defer(_ context.Context, id uint, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.rows[id]
	if !ok {
		return nil
	}
	n.IsDelivered = false
	u := until
	n.DeferredUntil = &u
	return nil
}

func (r *MemoryNotificationRepository) ListDeferredDue(_ context.Context, now time.Time, limit int) ([]models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []models.Notification
	for _, n := range r.rows {
		if n.IsDelivered || n.DeferredUntil == nil || n.DeferredUntil.After(now) {
			continue
		}
		due = append(due, *n)
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].DeferredUntil.Before(*due[j].DeferredUntil)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *MemoryNotificationRepository) DeleteExpired(_ context.Context, now time.Time) (int64, []RevokedRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	var refs []RevokedRef
	for id, n := range r.rows {
		if n.ExpiresAt == nil || n.ExpiresAt.After(now) {
			continue
		}
		if !n.IsRead {
			refs = append(refs, RevokedRef{ID: n.ID, RecipientID: n.RecipientID})
		}
		delete(r.rows, id)
		deleted++
	}
	return deleted, refs, nil
}

func (r *MemoryNotificationRepository) DeleteReadBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for id, n := range r.rows {
		if n.IsRead && n.ReadAt != nil && n.ReadAt.Before(cutoff) {
			delete(r.rows, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *MemoryNotificationRepository) Stats(_ context.Context, now time.Time) (NotificationStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stats NotificationStats
	var readLastDay int64
	for _, n := range r.rows {
		if !n.CreatedAt.Before(now.Add(-time.Hour)) {
			stats.CreatedLastHour++
		}
		if !n.CreatedAt.Before(now.Add(-24 * time.Hour)) {
			stats.CreatedLastDay++
			if n.IsRead {
				readLastDay++
			}
		}
		if !n.IsRead {
			stats.UnreadBacklog++
		}
	}
	if stats.CreatedLastDay > 0 {
		stats.ReadRateLastDay = float64(readLastDay) / float64(stats.CreatedLastDay)
	}
	return stats, nil
}

// MemoryPreferenceRepository is the in-memory PreferenceRepository twin.
type MemoryPreferenceRepository struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]*models.NotificationPreferences // keyed by recipient id
}

// NewMemoryPreferenceRepository returns an empty in-memory preference store.
func NewMemoryPreferenceRepository() *MemoryPreferenceRepository {
	return &MemoryPreferenceRepository{nextID: 1, rows: make(map[uint]*models.NotificationPreferences)}
}

func (r *MemoryPreferenceRepository) GetOrCreate(_ context.Context, recipientID uint) (*models.NotificationPreferences, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prefs, ok := r.rows[recipientID]; ok {
		cp := *prefs
		return &cp, nil
	}
	prefs := models.DefaultPreferences(recipientID)
	prefs.ID = r.nextID
	r.nextID++
	r.rows[recipientID] = &prefs
	cp := prefs
	return &cp, nil
}

func (r *MemoryPreferenceRepository) Update(_ context.Context, prefs *models.NotificationPreferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *prefs
	r.rows[prefs.RecipientID] = &cp
	return nil
}
