package models

import "time"

// NotificationPreferences holds a user's per-kind opt-in flags, the
// off-channel delivery switches, and the optional quiet-hours window.
// One row per user, created lazily with everything enabled.
type NotificationPreferences struct {
	ID          uint `json:"-" gorm:"primaryKey"`
	RecipientID uint `json:"recipient_id" gorm:"uniqueIndex"`

	FollowEnabled  bool `json:"follow_enabled" gorm:"default:true"`
	LikeEnabled    bool `json:"like_enabled" gorm:"default:true"`
	CommentEnabled bool `json:"comment_enabled" gorm:"default:true"`
	ReplyEnabled   bool `json:"reply_enabled" gorm:"default:true"`
	MentionEnabled bool `json:"mention_enabled" gorm:"default:true"`
	MessageEnabled bool `json:"message_enabled" gorm:"default:true"`
	ShareEnabled   bool `json:"share_enabled" gorm:"default:true"`
	SystemEnabled  bool `json:"system_enabled" gorm:"default:true"`

	EmailEnabled bool `json:"email_enabled" gorm:"default:true"`
	PushEnabled  bool `json:"push_enabled" gorm:"default:false"`

	// Quiet hours are time-of-day values in "HH:MM" form. Both are set
	// or both are nil. The window may wrap midnight (start > end).
	QuietHoursStart *string `json:"quiet_hours_start,omitempty" gorm:"size:5"`
	QuietHoursEnd   *string `json:"quiet_hours_end,omitempty" gorm:"size:5"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// DefaultPreferences returns the record created the first time a user's
// preferences are needed: every kind on, email on, push off, no quiet hours.
func DefaultPreferences(recipientID uint) NotificationPreferences {
	return NotificationPreferences{
		RecipientID:    recipientID,
		FollowEnabled:  true,
		LikeEnabled:    true,
		CommentEnabled: true,
		ReplyEnabled:   true,
		MentionEnabled: true,
		MessageEnabled: true,
		ShareEnabled:   true,
		SystemEnabled:  true,
		EmailEnabled:   true,
		PushEnabled:    false,
	}
}

// KindEnabled reports whether the given kind is switched on.
func (p *NotificationPreferences) KindEnabled(k Kind) bool {
	switch k {
	case KindFollow:
		return p.FollowEnabled
	case KindLike:
		return p.LikeEnabled
	case KindComment:
		return p.CommentEnabled
	case KindReply:
		return p.ReplyEnabled
	case KindMention:
		return p.MentionEnabled
	case KindMessage:
		return p.MessageEnabled
	case KindShare:
		return p.ShareEnabled
	case KindSystem:
		return p.SystemEnabled
	}
	return false
}

// HasQuietHours reports whether a quiet-hours window is configured.
func (p *NotificationPreferences) HasQuietHours() bool {
	return p.QuietHoursStart != nil && p.QuietHoursEnd != nil
}

// UpdatePreferencesRequest is the payload accepted by the preferences
// endpoint. Pointers distinguish "leave unchanged" from "set to false".
type UpdatePreferencesRequest struct {
	FollowEnabled  *bool `json:"follow_enabled,omitempty"`
	LikeEnabled    *bool `json:"like_enabled,omitempty"`
	CommentEnabled *bool `json:"comment_enabled,omitempty"`
	ReplyEnabled   *bool `json:"reply_enabled,omitempty"`
	MentionEnabled *bool `json:"mention_enabled,omitempty"`
	MessageEnabled *bool `json:"message_enabled,omitempty"`
	ShareEnabled   *bool `json:"share_enabled,omitempty"`
	SystemEnabled  *bool `json:"system_enabled,omitempty"`

	EmailEnabled *bool `json:"email_enabled,omitempty"`
	PushEnabled  *bool `json:"push_enabled,omitempty"`

	QuietHoursStart *string `json:"quiet_hours_start,omitempty" validate:"omitempty,len=5"`
	QuietHoursEnd   *string `json:"quiet_hours_end,omitempty" validate:"omitempty,len=5"`
	ClearQuietHours bool    `json:"clear_quiet_hours,omitempty"`
}
