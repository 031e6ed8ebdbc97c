package google

import (
	"context"
	"fmt"
	"strings"

	"farm-advisory/internal/models"
	"farm-advisory/internal/services"
	"farm-advisory/internal/template"

	"gopkg.in/gomail.v2"
)

type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailService struct {
	dialer mailDialer
	from   string
}

func NewEmailService(host string, port int, email, password string) *EmailService {
	d := gomail.NewDialer(host, port, email, password)
	return &EmailService{dialer: d, from: email}
}

func subjectFor(n *models.Notification) string {
	if n.Priority == models.PriorityUrgent || n.Priority == models.PriorityHigh {
		return "[" + strings.ToUpper(string(n.Priority)) + "] " + n.Title
	}
	return n.Title
}

func (e *EmailService) buildMessage(to string, n *models.Notification) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subjectFor(n))
	m.SetBody("text/html", template.NotificationTemplate(n.Title, n.Message, string(n.Priority), n.Data))
	return m
}

func (e *EmailService) NotificationEmail(to string, n *models.Notification) error {
	if err := e.dialer.DialAndSend(e.buildMessage(to, n)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}

func (e *EmailService) Channel() models.Channel { return models.ChannelEmail }

// Send ignores ctx; gomail dials synchronously without one.
func (e *EmailService) Send(_ context.Context, n *models.Notification, contact models.ContactInfo) (models.DeliveryStatus, error) {
	if contact.Email == "" {
		return models.DeliverySkipped, services.ErrMissingContact
	}
	if err := e.NotificationEmail(contact.Email, n); err != nil {
		return models.DeliveryFailed, err
	}
	return models.DeliveryDelivered, nil
}
