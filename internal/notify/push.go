// Package notify tells requesters about decisions on their join requests.
package notify

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"fishtank-backend/internal/domain"
	"fishtank-backend/internal/logger"
)

// messageSender is the part of *messaging.Client PushNotifier needs.
type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// ContactInvalidator forgets cached contact details of a user.
type ContactInvalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

// PushNotifier sends a Firebase Cloud Messaging notification to the requester's device.
type PushNotifier struct {
	client      messageSender
	invalidator ContactInvalidator
	// unregistered reports a dead device token; messaging.IsUnregistered when nil
	unregistered func(error) bool
}

func NewPushNotifier(ctx context.Context, projectID, credentialsFile string) (*PushNotifier, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("open messaging client: %w", err)
	}
	return &PushNotifier{client: client}, nil
}

// WithInvalidator makes the notifier drop a user's cached contact when FCM
// reports the token unregistered, so the next lookup reads the current token.
func (n *PushNotifier) WithInvalidator(inv ContactInvalidator) *PushNotifier {
	n.invalidator = inv
	return n
}

func (n *PushNotifier) NotifyDecision(ctx context.Context, notice *domain.DecisionNotice) error {
	if notice.Requester.PushToken == "" {
		return nil
	}
	title, body := decisionText(notice)
	msg := &messaging.Message{
		Token: notice.Requester.PushToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: map[string]string{
			"type":        "join_request_resolved",
			"request_id":  notice.Resolution.Request.ID,
			"fishtank_id": notice.Fishtank.ID,
			"status":      string(notice.Resolution.Request.Status),
		},
	}

	logger.ExternalServiceCall("FCM", "Send", "requestID", notice.Resolution.Request.ID)
	_, err := n.client.Send(ctx, msg)
	logger.ExternalServiceResult("FCM", "Send", err, "requestID", notice.Resolution.Request.ID)
	if err != nil {
		if n.isUnregistered(err) {
			logger.Info("Push token no longer registered", "userID", notice.Requester.UserID)
			if n.invalidator != nil {
				if err := n.invalidator.Invalidate(ctx, notice.Requester.UserID); err != nil {
					logger.Warn("Failed to drop cached contact", "userID", notice.Requester.UserID, "error", err)
				}
			}
			return nil
		}
		return fmt.Errorf("send push notification: %w", err)
	}
	return nil
}

func (n *PushNotifier) isUnregistered(err error) bool {
	if n.unregistered != nil {
		return n.unregistered(err)
	}
	return messaging.IsUnregistered(err)
}

func decisionText(notice *domain.DecisionNotice) (subject, body string) {
	name := notice.Fishtank.Name
	if name == "" {
		name = "the fishtank"
	}
	if notice.Resolution.Decision == domain.DecisionAccept {
		return fmt.Sprintf("Welcome to %s", name),
			fmt.Sprintf("Your request to join %s was accepted.", name)
	}
	return fmt.Sprintf("Your request to join %s", name),
		fmt.Sprintf("Your request to join %s was declined.", name)
}
