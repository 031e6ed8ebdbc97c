package google

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"farm-advisory/internal/models"
	"farm-advisory/internal/services"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

const androidChannelID = "farm_alerts"

type PushNotificationPayload struct {
	Token    string            `json:"token"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Sound    string            `json:"sound,omitempty"`
	Priority models.Priority   `json:"priority,omitempty"`
}

// messageClient is the part of *messaging.Client the service uses.
type messageClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type FirebaseService struct {
	client messageClient
	config *FirebaseConfig
}

type FirebaseConfig struct {
	CredentialsPath string
	ProjectID       string
}

func NewFirebaseService(ctx context.Context, cfg *FirebaseConfig) (*FirebaseService, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID},
		option.WithCredentialsFile(cfg.CredentialsPath))
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}
	return &FirebaseService{client: client, config: cfg}, nil
}

func urgent(p models.Priority) bool {
	return p == models.PriorityHigh || p == models.PriorityUrgent
}

// ttl bounds how long FCM holds a message for an offline device. An alert
// that arrives hours late is worse than none.
func ttl(p models.Priority) time.Duration {
	if urgent(p) {
		return time.Hour
	}
	return 24 * time.Hour
}

func buildMessage(payload *PushNotificationPayload) *messaging.Message {
	androidPriority, apnsPriority := "normal", "5"
	if urgent(payload.Priority) {
		androidPriority, apnsPriority = "high", "10"
	}
	expiry := ttl(payload.Priority)

	return &messaging.Message{
		Token: payload.Token,
		Notification: &messaging.Notification{
			Title: payload.Title,
			Body:  payload.Body,
		},
		Data: payload.Data,
		Android: &messaging.AndroidConfig{
			Priority: androidPriority,
			TTL:      &expiry,
			Notification: &messaging.AndroidNotification{
				ChannelID: androidChannelID,
				Sound:     payload.Sound,
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": apnsPriority},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: payload.Sound},
			},
		},
	}
}

func (f *FirebaseService) SendPushNotification(ctx context.Context, payload *PushNotificationPayload) (string, error) {
	response, err := f.client.Send(ctx, buildMessage(payload))
	if err != nil {
		return "", fmt.Errorf("error sending message: %w", err)
	}
	return response, nil
}

// PushPayloadFor flattens a notification into the FCM payload. FCM data
// values must be strings.
func PushPayloadFor(n *models.Notification, token string) *PushNotificationPayload {
	data := map[string]string{
		"notificationId": n.ID,
		"type":           string(n.Type),
	}
	for k, v := range n.Data {
		data[k] = fmt.Sprint(v)
	}
	return &PushNotificationPayload{
		Token:    token,
		Title:    n.Title,
		Body:     n.Message,
		Data:     data,
		Sound:    "default",
		Priority: n.Priority,
	}
}

func (f *FirebaseService) Channel() models.Channel { return models.ChannelPush }

// Send treats an unregistered device token like a missing one, so the queue
// consumer drops the job instead of retrying it.
func (f *FirebaseService) Send(ctx context.Context, n *models.Notification, contact models.ContactInfo) (models.DeliveryStatus, error) {
	if contact.DeviceToken == "" {
		return models.DeliverySkipped, services.ErrMissingContact
	}
	if _, err := f.SendPushNotification(ctx, PushPayloadFor(n, contact.DeviceToken)); err != nil {
		if messaging.IsUnregistered(err) {
			slog.Warn("Device token no longer registered", "user_id", n.UserID, "notification_id", n.ID)
			return models.DeliverySkipped, fmt.Errorf("%w: device token unregistered", services.ErrMissingContact)
		}
		return models.DeliveryFailed, err
	}
	return models.DeliveryDelivered, nil
}
