package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"farm-advisory/internal/models"
	"farm-advisory/shared/utils"

	"github.com/robfig/cron/v3"
)

const protectedPrefix = "/advisory/protected/api/v2"

// Briefing is the scheduled notification sent on every tick.
var Briefing = models.ScheduledNotificationRequest{
	Type:    models.NotificationScheduled,
	Title:   "Daily farm briefing",
	Message: "Check today's weather, market prices and sensor readings for your farm.",
}

// Trigger calls the advisory API's protected scheduling endpoints. Without a
// bearer token it identifies itself through the gateway headers.
type Trigger struct {
	baseURL string
	token   string
	farmIDs []string
	client  *http.Client
}

func NewTrigger(baseURL, token string, farmIDs []string) *Trigger {
	return &Trigger{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		farmIDs: farmIDs,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (t *Trigger) post(ctx context.Context, runID, path string, body any) error {
	var payload io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	url := t.baseURL + protectedPrefix + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, payload)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", runID)
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	} else {
		req.Header.Set("X-User-ID", "scheduler")
		req.Header.Set("X-User-Roles", models.RoleService)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s returned %s: %s", path, resp.Status, respBody)
	}
	return nil
}

// Run performs one tick: the scheduled briefing, price alerts, then an
// advisory per configured farm. Failures are logged and the rest still run.
// It returns the number of calls that failed.
func (t *Trigger) Run(ctx context.Context) int {
	runID := "run-" + utils.GenerateRandomStringWithLength(8)
	log := slog.With("run_id", runID)
	log.Info("Scheduler tick started", "farms", len(t.farmIDs))

	failed := 0
	call := func(path string, body any) {
		if err := t.post(ctx, runID, path, body); err != nil {
			failed++
			log.Error("Scheduled call failed", "path", path, "error", err)
		}
	}

	call("/notifications/scheduled", Briefing)
	call("/market/price-alerts", nil)
	for _, farmID := range t.farmIDs {
		call("/farms/"+farmID+"/advisories", nil)
	}

	log.Info("Scheduler tick finished", "failed", failed)
	return failed
}

// Schedule registers Run on spec and returns the unstarted cron.
func (t *Trigger) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { t.Run(ctx) }); err != nil {
		return nil, fmt.Errorf("error scheduling cron job: %w", err)
	}
	return c, nil
}
