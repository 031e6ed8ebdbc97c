package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"farm-advisory/internal/metrics"
	"farm-advisory/internal/models"
	"farm-advisory/internal/repository"
	"farm-advisory/shared/utils"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ChannelSender delivers one notification over one channel. Implementations
// return DeliveryQueued when the message was handed to a broker instead of the
// end provider.
type ChannelSender interface {
	Channel() models.Channel
	Send(ctx context.Context, n *models.Notification, contact models.ContactInfo) (models.DeliveryStatus, error)
}

// ErrMissingContact is returned by senders when the subscription has no
// address for their channel.
var ErrMissingContact = errors.New("no contact address for channel")

const (
	suppressInactive   = "inactive"
	suppressFrequency  = "frequency"
	suppressQuietHours = "quiet_hours"
)

type INotificationService interface {
	Subscribe(ctx context.Context, sub models.NotificationSubscription) (*models.NotificationSubscription, error)
	GetUserNotifications(ctx context.Context, userID string) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, userID, notificationID string) (*models.Notification, error)
	SendScheduled(ctx context.Context, req models.ScheduledNotificationRequest, now time.Time) (*models.ScheduledResult, error)
	SendWeatherAlert(ctx context.Context, farmID, title, message string, data map[string]any) (int, error)
	SendPriceAlert(ctx context.Context, sample models.MarketPriceSample) (int, error)
	SendSensorAlert(ctx context.Context, farmID string, alert models.Alert) error
	SendCropAdvisory(ctx context.Context, userID, title, message string, data map[string]any) (*models.Notification, error)
}

type NotificationService struct {
	repo    *repository.NotificationRepository
	senders map[models.Channel]ChannelSender
	metrics *metrics.AdvisoryMetrics
	now     func() time.Time
}

func NewNotificationService(repo *repository.NotificationRepository, m *metrics.AdvisoryMetrics, senders ...ChannelSender) *NotificationService {
	s := &NotificationService{
		repo:    repo,
		senders: map[models.Channel]ChannelSender{},
		metrics: m,
		now:     time.Now,
	}
	for _, sender := range senders {
		if sender != nil {
			s.senders[sender.Channel()] = sender
		}
	}
	return s
}

// AvailableChannels lists the channels that have a sender wired.
func (s *NotificationService) AvailableChannels() []models.Channel {
	channels := make([]models.Channel, 0, len(s.senders))
	for _, c := range models.Channels {
		if _, ok := s.senders[c]; ok {
			channels = append(channels, c)
		}
	}
	return channels
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

// unique drops repeated entries, keeping first-occurrence order.
func unique[T comparable](items []T) []T {
	seen := make(map[T]struct{}, len(items))
	out := items[:0]
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}

func validateSubscription(sub *models.NotificationSubscription) error {
	utils.TrimAllStringFields(sub)

	if sub.UserID == "" {
		return invalid("userId", "is required")
	}
	if len(sub.Channels) == 0 {
		return invalid("channels", "at least one channel is required")
	}
	for _, c := range sub.Channels {
		if !slices.Contains(models.Channels, c) {
			return invalid("channels", "unknown channel %q", c)
		}
	}
	if len(sub.Types) == 0 {
		sub.Types = slices.Clone(models.NotificationTypes)
	}
	for _, t := range sub.Types {
		if !slices.Contains(models.NotificationTypes, t) {
			return invalid("types", "unknown notification type %q", t)
		}
	}
	sub.Channels = unique(sub.Channels)
	sub.Types = unique(sub.Types)

	prefs := &sub.Preferences
	switch prefs.Frequency {
	case "":
		prefs.Frequency = models.FrequencyImmediate
	case models.FrequencyImmediate, models.FrequencyDaily, models.FrequencyWeekly, models.FrequencyNever:
	default:
		return invalid("preferences.frequency", "unknown frequency %q", prefs.Frequency)
	}
	if q := prefs.QuietHours; q != nil {
		if q.Start < 0 || q.Start > 23 || q.End < 0 || q.End > 23 {
			return invalid("preferences.quietHours", "hours must be between 0 and 23")
		}
	}
	if _, err := loadLocation(prefs.Timezone); err != nil {
		return invalid("preferences.timezone", "unknown timezone %q", prefs.Timezone)
	}
	if prefs.Language == "" {
		prefs.Language = "en"
	}

	if sub.Contact.Email != "" {
		if _, err := utils.ValidateEmail(sub.Contact.Email); err != nil {
			return invalid("contact.email", "%v", err)
		}
	}
	if sub.Contact.Phone != "" {
		if _, err := utils.ValidatePhone(sub.Contact.Phone); err != nil {
			return invalid("contact.phone", "%v", err)
		}
	}
	return nil
}

// Subscribe stores sub as the user's only subscription. Subscribing again
// replaces the previous one and keeps its creation time.
func (s *NotificationService) Subscribe(ctx context.Context, sub models.NotificationSubscription) (*models.NotificationSubscription, error) {
	if err := validateSubscription(&sub); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sub.Active = true
	sub.CreatedAt = now
	sub.UpdatedAt = now

	previousFarmID := ""
	previous, err := s.repo.GetSubscription(ctx, sub.UserID)
	switch {
	case err == nil:
		sub.CreatedAt = previous.CreatedAt
		previousFarmID = previous.FarmID
	case !errors.Is(err, repository.ErrKeyNotFound):
		return nil, fmt.Errorf("failed to load existing subscription: %w", err)
	}

	if err := s.repo.SaveSubscription(ctx, &sub, previousFarmID); err != nil {
		return nil, err
	}
	slog.Info("Notification subscription saved", "user_id", sub.UserID, "farm_id", sub.FarmID, "channels", sub.Channels)
	return &sub, nil
}

// GetUserNotifications returns the list newest first. Fetching marks every
// pending entry as delivered.
func (s *NotificationService) GetUserNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, invalid("userId", "is required")
	}

	list, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load notifications: %w", err)
	}
	if !slices.ContainsFunc(list, func(n models.Notification) bool { return n.Status == models.StatusPending }) {
		return list, nil
	}

	return s.repo.Modify(ctx, userID, func(list []models.Notification) error {
		for i := range list {
			if list[i].Status == models.StatusPending {
				list[i].Status = models.StatusDelivered
			}
		}
		return nil
	})
}

func (s *NotificationService) MarkAsRead(ctx context.Context, userID, notificationID string) (*models.Notification, error) {
	var marked models.Notification
	_, err := s.repo.Modify(ctx, userID, func(list []models.Notification) error {
		for i := range list {
			if list[i].ID == notificationID {
				list[i].Read = true
				marked = list[i]
				return nil
			}
		}
		return fmt.Errorf("notification %s: %w", notificationID, ErrNotFound)
	})
	if err != nil {
		return nil, err
	}
	return &marked, nil
}

// Store prepends n to the owner's list, keeping the newest 100.
func (s *NotificationService) Store(ctx context.Context, n *models.Notification) error {
	return s.repo.Prepend(ctx, n)
}

// Deliver attempts every subscribed channel concurrently. A failing channel is
// recorded in its result and never stops the others. ErrNoChannelAvailable is
// returned only when none of the channels has a sender.
func (s *NotificationService) Deliver(ctx context.Context, n *models.Notification, sub *models.NotificationSubscription) ([]models.DeliveryResult, error) {
	results := make([]models.DeliveryResult, len(sub.Channels))
	available := 0

	g, gctx := errgroup.WithContext(ctx)
	for i, channel := range sub.Channels {
		results[i] = models.DeliveryResult{Channel: channel}
		sender, ok := s.senders[channel]
		if !ok {
			results[i].Status = models.DeliverySkipped
			results[i].Error = "channel not configured"
			continue
		}
		available++

		g.Go(func() error {
			status, err := sender.Send(gctx, n, sub.Contact)
			switch {
			case errors.Is(err, ErrMissingContact):
				results[i].Status = models.DeliverySkipped
				results[i].Error = err.Error()
			case err != nil:
				results[i].Status = models.DeliveryFailed
				results[i].Error = err.Error()
			default:
				results[i].Status = status
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		s.metrics.RecordNotificationDelivery(string(r.Channel), string(r.Status))
	}
	if available == 0 {
		return results, ErrNoChannelAvailable
	}
	return results, nil
}

// Notify is the single path every builder uses: fill in the envelope, fan out
// to the subscription's channels and store the result in the user's list.
func (s *NotificationService) Notify(ctx context.Context, sub *models.NotificationSubscription, n *models.Notification) (*models.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.UserID = sub.UserID
	n.Channels = slices.Clone(sub.Channels)
	n.Timestamp = s.now().UTC()
	n.Status = models.StatusPending
	if n.Priority == "" {
		n.Priority = models.PriorityNormal
	}

	results, deliverErr := s.Deliver(ctx, n, sub)
	n.DeliveryResults = results

	if err := s.Store(ctx, n); err != nil {
		return nil, err
	}
	if deliverErr != nil {
		return n, deliverErr
	}
	return n, nil
}

// notifyMany sends a copy of the notification built by build to every user in
// userIDs that is active and subscribed to t. It returns how many were stored.
func (s *NotificationService) notifyMany(ctx context.Context, userIDs []string, t models.NotificationType, build func(sub *models.NotificationSubscription) *models.Notification) int {
	log := slog.With("operation", "NotificationService.notifyMany", "type", t)

	var (
		mu     sync.Mutex
		stored int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, userID := range userIDs {
		g.Go(func() error {
			sub, err := s.repo.GetSubscription(gctx, userID)
			if err != nil {
				log.Warn("Failed to load subscription", "user_id", userID, "error", err)
				return nil
			}
			if !sub.Active || !sub.Wants(t) {
				return nil
			}
			_, err = s.Notify(gctx, sub, build(sub))
			if err != nil && !errors.Is(err, ErrNoChannelAvailable) {
				log.Warn("Failed to notify subscriber", "user_id", userID, "error", err)
				return nil
			}
			if err != nil {
				log.Warn("No delivery channel available, notification stored only", "user_id", userID)
			}
			mu.Lock()
			stored++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return stored
}

var alertTitles = map[models.AlertType]string{
	models.AlertCritical:    "Critical",
	models.AlertWarning:     "Warning",
	models.AlertMaintenance: "Maintenance",
}

func alertPriority(alertType models.AlertType) models.Priority {
	switch alertType {
	case models.AlertCritical:
		return models.PriorityUrgent
	case models.AlertWarning:
		return models.PriorityHigh
	default:
		return models.PriorityNormal
	}
}

// SendSensorAlert notifies every subscriber of the farm. It satisfies the
// alert hook of the IoT ingest path.
func (s *NotificationService) SendSensorAlert(ctx context.Context, farmID string, alert models.Alert) error {
	userIDs, err := s.repo.ListFarmSubscriberIDs(ctx, farmID)
	if err != nil {
		return err
	}
	if len(userIDs) == 0 {
		return nil
	}

	title := fmt.Sprintf("%s alert: %s", alertTitles[alert.Type], sensorLabel(alert.SensorType))
	s.notifyMany(ctx, userIDs, models.NotificationSensorAlert, func(*models.NotificationSubscription) *models.Notification {
		return &models.Notification{
			Type:     models.NotificationSensorAlert,
			Title:    title,
			Message:  alert.Message,
			Priority: alertPriority(alert.Type),
			Data: map[string]any{
				"farmId":     farmID,
				"sensorId":   alert.SensorID,
				"sensorType": alert.SensorType,
				"value":      alert.Value,
				"tier":       alert.Tier,
				"action":     alert.Action,
			},
		}
	})
	return nil
}

// SendPriceAlert notifies every price_alert subscriber about one price move.
func (s *NotificationService) SendPriceAlert(ctx context.Context, sample models.MarketPriceSample) (int, error) {
	userIDs, err := s.repo.ListSubscriberIDs(ctx)
	if err != nil {
		return 0, err
	}

	direction := "up"
	if sample.ChangePercent < 0 {
		direction = "down"
	}
	priority := models.PriorityNormal
	if math.Abs(sample.ChangePercent) >= 10 {
		priority = models.PriorityHigh
	}
	title := fmt.Sprintf("%s price %s %.1f%%", sample.Crop, direction, math.Abs(sample.ChangePercent))
	message := fmt.Sprintf("%s is trading at %.2f %s, previously %.2f.", sample.Crop, sample.CurrentPrice, sample.Unit, sample.PreviousPrice)

	return s.notifyMany(ctx, userIDs, models.NotificationPriceAlert, func(*models.NotificationSubscription) *models.Notification {
		return &models.Notification{
			Type:     models.NotificationPriceAlert,
			Title:    title,
			Message:  message,
			Priority: priority,
			Data: map[string]any{
				"crop":          sample.Crop,
				"region":        sample.Region,
				"currentPrice":  sample.CurrentPrice,
				"previousPrice": sample.PreviousPrice,
				"changePercent": sample.ChangePercent,
			},
		}
	}), nil
}

// SendWeatherAlert notifies the weather_alert subscribers of one farm.
func (s *NotificationService) SendWeatherAlert(ctx context.Context, farmID, title, message string, data map[string]any) (int, error) {
	userIDs, err := s.repo.ListFarmSubscriberIDs(ctx, farmID)
	if err != nil {
		return 0, err
	}
	payload := map[string]any{"farmId": farmID}
	for k, v := range data {
		payload[k] = v
	}
	return s.notifyMany(ctx, userIDs, models.NotificationWeatherAlert, func(*models.NotificationSubscription) *models.Notification {
		return &models.Notification{
			Type:     models.NotificationWeatherAlert,
			Title:    title,
			Message:  message,
			Priority: models.PriorityHigh,
			Data:     payload,
		}
	}), nil
}

// SendCropAdvisory sends a one-off advisory to a single user.
func (s *NotificationService) SendCropAdvisory(ctx context.Context, userID, title, message string, data map[string]any) (*models.Notification, error) {
	sub, err := s.repo.GetSubscription(ctx, userID)
	if errors.Is(err, repository.ErrKeyNotFound) {
		return nil, fmt.Errorf("subscription for %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return s.Notify(ctx, sub, &models.Notification{
		Type:     models.NotificationCropAdvisory,
		Title:    title,
		Message:  message,
		Priority: models.PriorityNormal,
		Data:     data,
	})
}

// InQuietHours reports whether hour lies in [start, end). A window with
// start > end wraps past midnight and start == end is empty.
func InQuietHours(q *models.QuietHours, hour int) bool {
	if q == nil || q.Start == q.End {
		return false
	}
	if q.Start < q.End {
		return hour >= q.Start && hour < q.End
	}
	return hour >= q.Start || hour < q.End
}

// ShouldDeliverScheduled applies the frequency and quiet-hours gates in the
// subscriber's timezone. The returned reason is empty when delivery may go
// ahead.
func ShouldDeliverScheduled(sub *models.NotificationSubscription, now time.Time) (bool, string) {
	if !sub.Active {
		return false, suppressInactive
	}
	loc, err := loadLocation(sub.Preferences.Timezone)
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)

	switch sub.Preferences.Frequency {
	case models.FrequencyNever:
		return false, suppressFrequency
	case models.FrequencyWeekly:
		if local.Weekday() != time.Monday {
			return false, suppressFrequency
		}
	}
	if InQuietHours(sub.Preferences.QuietHours, local.Hour()) {
		return false, suppressQuietHours
	}
	return true, ""
}

// SendScheduled is the entry point for the external scheduler. Every
// subscriber of the type is passed through ShouldDeliverScheduled.
func (s *NotificationService) SendScheduled(ctx context.Context, req models.ScheduledNotificationRequest, now time.Time) (*models.ScheduledResult, error) {
	if req.Type == "" {
		req.Type = models.NotificationScheduled
	}
	if !slices.Contains(models.NotificationTypes, req.Type) {
		return nil, invalid("type", "unknown notification type %q", req.Type)
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Message) == "" {
		return nil, invalid("title", "title and message are required")
	}
	if now.IsZero() {
		now = s.now()
	}

	userIDs, err := s.repo.ListSubscriberIDs(ctx)
	if err != nil {
		return nil, err
	}
	log := slog.With("operation", "NotificationService.SendScheduled", "type", req.Type)

	result := &models.ScheduledResult{}
	for _, userID := range userIDs {
		sub, err := s.repo.GetSubscription(ctx, userID)
		if err != nil {
			log.Warn("Failed to load subscription", "user_id", userID, "error", err)
			continue
		}
		if !sub.Wants(req.Type) {
			continue
		}
		result.Considered++

		if ok, reason := ShouldDeliverScheduled(sub, now); !ok {
			result.Suppressed++
			s.metrics.RecordNotificationSuppressed(reason)
			continue
		}

		_, err = s.Notify(ctx, sub, &models.Notification{
			Type:    req.Type,
			Title:   req.Title,
			Message: req.Message,
		})
		if err != nil && !errors.Is(err, ErrNoChannelAvailable) {
			log.Warn("Failed to deliver scheduled notification", "user_id", userID, "error", err)
			continue
		}
		result.Delivered++
	}

	log.Info("Scheduled notifications processed",
		"considered", result.Considered,
		"delivered", result.Delivered,
		"suppressed", result.Suppressed)
	return result, nil
}
