package sinks

import (
	"context"
	"fmt"
	"strconv"

	"firebase.google.com/go/v4/messaging"
	"github.com/anonto42/loopline/backend/internal/models"
)

const PushSinkName = "push"

// PushSink delivers notifications via Firebase Cloud Messaging.
type PushSink struct {
	client    *messaging.Client
	directory RecipientDirectory
}

// NewPushSink builds the FCM-backed push sink.
func NewPushSink(client *messaging.Client, directory RecipientDirectory) *PushSink {
	return &PushSink{client: client, directory: directory}
}

func (s *PushSink) Name() string { return PushSinkName }

func (s *PushSink) Deliver(ctx context.Context, n *models.Notification) error {
	tokens, err := s.directory.DeviceTokens(ctx, n.RecipientID)
	if err != nil {
		return fmt.Errorf("resolve device tokens: %w", err)
	}
	if len(tokens) == 0 {
		// No registered device is a normal state, not a delivery failure.
		return nil
	}

	for _, token := range tokens {
		msg := &messaging.Message{
			Token: token,
			Notification: &messaging.Notification{
				Title: n.Title,
				Body:  n.Message,
			},
			Data: map[string]string{
				"notification_id": strconv.FormatUint(uint64(n.ID), 10),
				"kind":            string(n.Kind),
				"target_type":     string(n.TargetType),
				"target_id":       n.TargetID,
			},
		}
		if _, err := s.client.Send(ctx, msg); err != nil {
			return fmt.Errorf("send push to device: %w", err)
		}
	}
	return nil
}
