package models

import "time"

type NotificationType string

const (
	NotificationWeatherAlert NotificationType = "weather_alert"
	NotificationPriceAlert   NotificationType = "price_alert"
	NotificationSensorAlert  NotificationType = "sensor_alert"
	NotificationCropAdvisory NotificationType = "crop_advisory"
	NotificationScheduled    NotificationType = "scheduled"
)

var NotificationTypes = []NotificationType{
	NotificationWeatherAlert,
	NotificationPriceAlert,
	NotificationSensorAlert,
	NotificationCropAdvisory,
	NotificationScheduled,
}

type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

var Channels = []Channel{ChannelPush, ChannelEmail, ChannelSMS}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type Frequency string

const (
	FrequencyImmediate Frequency = "immediate"
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyNever     Frequency = "never"
)

type NotificationStatus string

const (
	StatusPending   NotificationStatus = "pending"
	StatusDelivered NotificationStatus = "delivered"
)

type DeliveryStatus string

const (
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryQueued    DeliveryStatus = "queued"
	DeliveryFailed    DeliveryStatus = "failed"
	DeliverySkipped   DeliveryStatus = "skipped"
)

// QuietHours holds hours of the day in [0,23]. Start > End wraps past midnight.
type QuietHours struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type Preferences struct {
	Frequency  Frequency   `json:"frequency"`
	QuietHours *QuietHours `json:"quietHours,omitempty"`
	Language   string      `json:"language"`
	Timezone   string      `json:"timezone"`
}

type ContactInfo struct {
	DeviceToken string `json:"deviceToken,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

type NotificationSubscription struct {
	UserID      string             `json:"userId"`
	FarmID      string             `json:"farmId"`
	Types       []NotificationType `json:"types"`
	Channels    []Channel          `json:"channels"`
	Contact     ContactInfo        `json:"contact"`
	Preferences Preferences        `json:"preferences"`
	Active      bool               `json:"active"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

func (s *NotificationSubscription) Wants(t NotificationType) bool {
	for _, st := range s.Types {
		if st == t {
			return true
		}
	}
	return false
}

type DeliveryResult struct {
	Channel Channel        `json:"channel"`
	Status  DeliveryStatus `json:"status"`
	Error   string         `json:"error,omitempty"`
}

type Notification struct {
	ID              string             `json:"id"`
	UserID          string             `json:"userId"`
	Type            NotificationType   `json:"type"`
	Title           string             `json:"title"`
	Message         string             `json:"message"`
	Data            map[string]any     `json:"data,omitempty"`
	Priority        Priority           `json:"priority"`
	Channels        []Channel          `json:"channels"`
	Timestamp       time.Time          `json:"timestamp"`
	Status          NotificationStatus `json:"status"`
	Read            bool               `json:"read"`
	DeliveryResults []DeliveryResult   `json:"deliveryResults,omitempty"`
}

// ScheduledNotificationRequest is the body of the external scheduled trigger.
type ScheduledNotificationRequest struct {
	Type    NotificationType `json:"type"`
	Title   string           `json:"title"`
	Message string           `json:"message"`
}

type ScheduledResult struct {
	Considered int `json:"considered"`
	Delivered  int `json:"delivered"`
	Suppressed int `json:"suppressed"`
}

// AddressFor returns the contact address used by ch, "" when unset.
func (c ContactInfo) AddressFor(ch Channel) string {
	switch ch {
	case ChannelPush:
		return c.DeviceToken
	case ChannelEmail:
		return c.Email
	case ChannelSMS:
		return c.Phone
	default:
		return ""
	}
}
