package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Kind is the category of a notification.
type Kind string

const (
	KindFollow  Kind = "follow"
	KindLike    Kind = "like"
	KindComment Kind = "comment"
	KindReply   Kind = "reply"
	KindMention Kind = "mention"
	KindMessage Kind = "message"
	KindShare   Kind = "share"
	KindSystem  Kind = "system"
)

// Kinds lists every known notification kind.
var Kinds = []Kind{
	KindFollow, KindLike, KindComment, KindReply,
	KindMention, KindMessage, KindShare, KindSystem,
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindFollow, KindLike, KindComment, KindReply,
		KindMention, KindMessage, KindShare, KindSystem:
		return true
	}
	return false
}

// Aggregable reports whether notifications of this kind may be merged
// into an existing open notification. Only likes and follows merge.
func (k Kind) Aggregable() bool {
	return k == KindLike || k == KindFollow
}

// TargetType identifies the entity a notification points at.
type TargetType string

const (
	TargetPost    TargetType = "post"
	TargetComment TargetType = "comment"
	TargetMessage TargetType = "message"
	TargetUser    TargetType = "user"
)

// Valid reports whether t is a known target type.
func (t TargetType) Valid() bool {
	switch t {
	case TargetPost, TargetComment, TargetMessage, TargetUser:
		return true
	}
	return false
}

// AggregatedActor is one entry in a merged notification's actor list.
type AggregatedActor struct {
	ID          uint   `json:"id"`
	DisplayName string `json:"display_name"`
}

// AggregationData holds the merged actor list of an aggregable
// notification. Count is always the number of distinct actor ids.
// Stored as JSONB; opaque to everything except the aggregator.
type AggregationData struct {
	Actors []AggregatedActor `json:"actors,omitempty"`
	Count  int               `json:"count"`
}

// Value implements driver.Valuer so gorm can persist the JSONB column.
func (a AggregationData) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan implements sql.Scanner.
func (a *AggregationData) Scan(value interface{}) error {
	if value == nil {
		*a = AggregationData{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("unsupported type %T for aggregation data", value)
	}
}

// HasActor reports whether the actor id is already in the merged list.
func (a AggregationData) HasActor(id uint) bool {
	for _, actor := range a.Actors {
		if actor.ID == id {
			return true
		}
	}
	return false
}

// Notification represents a durable notification delivered to a user (PostgreSQL)
type Notification struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	RecipientID     uint            `json:"recipient_id" gorm:"index:idx_recipient_read_created,priority:1"`
	ActorID         *uint           `json:"actor_id,omitempty" gorm:"index"` // nil for system notifications
	Kind            Kind            `json:"kind" gorm:"size:30;index:idx_kind_created,priority:1"`
	Title           string          `json:"title"`
	Message         string          `json:"message"`
	TargetType      TargetType      `json:"target_type,omitempty" gorm:"size:20"` // post, comment, message, user
	TargetID        string          `json:"target_id,omitempty"`                  // weak reference, lookup only
	AggregationData AggregationData `json:"aggregation_data" gorm:"type:jsonb"`
	IsRead          bool            `json:"is_read" gorm:"default:false;index:idx_recipient_read_created,priority:2"`
	ReadAt          *time.Time      `json:"read_at,omitempty"` // set iff IsRead is true
	IsDelivered     bool            `json:"is_delivered" gorm:"default:false"`
	DeferredUntil   *time.Time      `json:"deferred_until,omitempty" gorm:"index"` // quiet-hours deferral
	CreatedAt       time.Time       `json:"created_at" gorm:"index:idx_recipient_read_created,priority:3;index:idx_kind_created,priority:2"`
	ExpiresAt       *time.Time      `json:"expires_at,omitempty" gorm:"index"` // must be after CreatedAt when set
}
