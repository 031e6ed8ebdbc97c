package event

import (
	"time"

	"farm-advisory/internal/models"
)

const (
	ChannelJobQueue           = "notification_channel_jobs"
	ChannelJobDeadLetterQueue = "notification_channel_jobs.dlq"

	retryHeader = "x-retry-count"
	MaxRetries  = 3
)

// ChannelJob is one notification to deliver over one channel.
type ChannelJob struct {
	ID           string              `json:"id"`
	Channel      models.Channel      `json:"channel"`
	Notification models.Notification `json:"notification"`
	Contact      models.ContactInfo  `json:"contact"`
	CreatedAt    time.Time           `json:"created_at"`
}
