package phone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"farm-advisory/internal/models"
	"farm-advisory/internal/services"
)

// maxSMSLength keeps alerts within a few concatenated segments.
const maxSMSLength = 480

type PhoneService struct {
	Host     string
	Port     string
	Username string
	Password string
	client   *http.Client
}

type smsPayload struct {
	TextMessage struct {
		Text string `json:"text"`
	} `json:"textMessage"`
	PhoneNumbers []string `json:"phoneNumbers"`
}

func NewPhoneService(host, port, username, password string) *PhoneService {
	return &PhoneService{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *PhoneService) endpoint() string {
	if p.Port == "" {
		return fmt.Sprintf("%s/message", p.Host)
	}
	return fmt.Sprintf("%s:%s/message", p.Host, p.Port)
}

func smsText(title, content string) string {
	text := fmt.Sprintf("%s\n%s", title, content)
	if r := []rune(text); len(r) > maxSMSLength {
		text = string(r[:maxSMSLength-3]) + "..."
	}
	return text
}

func (p *PhoneService) SendSMS(ctx context.Context, title, content string, phoneNumbers []string) error {
	const op = "PhoneService.SendSMS"
	log := slog.With("operation", op)

	url := p.endpoint()
	log.Info("Starting SMS delivery process",
		"target_url", url,
		"recipients_count", len(phoneNumbers),
		"title", title,
	)

	payload := smsPayload{
		PhoneNumbers: phoneNumbers,
	}
	payload.TextMessage.Text = smsText(title, content)

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		log.Error("Failed to marshal SMS payload", "error", err)
		return fmt.Errorf("failed to marshal SMS payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		log.Error("Failed to create HTTP request", "error", err)
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.SetBasicAuth(p.Username, p.Password)
	req.Header.Set("Content-Type", "application/json")

	startTime := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		log.Error("Failed to send SMS request (network/timeout error)",
			"error", err,
			"elapsed_time", time.Since(startTime),
		)
		return fmt.Errorf("failed to send SMS request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		responseBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			responseBody = fmt.Appendf(nil, "failed to read response body: %v", readErr)
		}

		log.Error("External server returned non-success status",
			"status_code", resp.StatusCode,
			"response_body", string(responseBody),
			"url", url,
		)
		return fmt.Errorf("external server returned non-success status: %s. Response body: %s", resp.Status, responseBody)
	}

	log.Info("SMS successfully sent",
		"status", resp.Status,
		"elapsed_time", time.Since(startTime),
	)
	return nil
}

func (p *PhoneService) Channel() models.Channel { return models.ChannelSMS }

func (p *PhoneService) Send(ctx context.Context, n *models.Notification, contact models.ContactInfo) (models.DeliveryStatus, error) {
	if contact.Phone == "" {
		return models.DeliverySkipped, services.ErrMissingContact
	}
	if err := p.SendSMS(ctx, n.Title, n.Message, []string{contact.Phone}); err != nil {
		return models.DeliveryFailed, err
	}
	return models.DeliveryDelivered, nil
}
