package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var ErrNoClients = errors.New("no Gemini clients configured")

// GeminiClientSelector spreads diagnosis requests over the configured API keys
// and fails over to the next key when one errors (usually quota).
type GeminiClientSelector struct {
	clients []GeminiClient

	mu   sync.Mutex
	next int
}

func NewGeminiClientSelector(clients []GeminiClient) *GeminiClientSelector {
	return &GeminiClientSelector{clients: clients}
}

func (s *GeminiClientSelector) pick() (*GeminiClient, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.next
	s.next = (s.next + 1) % len(s.clients)
	return &s.clients[idx], idx
}

func (s *GeminiClientSelector) GetClientCount() int {
	if s == nil {
		return 0
	}
	return len(s.clients)
}

func (s *GeminiClientSelector) Close() {
	for i := range s.clients {
		if err := s.clients[i].Close(); err != nil {
			slog.Warn("Failed to close gemini client", "client_index", i, "error", err)
		}
	}
}

// TryAllClients runs operation on each client at most once, starting from the
// next one in rotation, and stops at the first success or when ctx ends.
func (s *GeminiClientSelector) TryAllClients(ctx context.Context, operation func(*GeminiClient, int) error) error {
	count := s.GetClientCount()
	if count == 0 {
		return ErrNoClients
	}

	var errs []error
	for attempt := 1; attempt <= count; attempt++ {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		client, idx := s.pick()
		err := operation(client, idx)
		if err == nil {
			if attempt > 1 {
				slog.Info("Gemini request succeeded after failover", "client_index", idx, "attempt", attempt)
			}
			return nil
		}
		slog.Warn("Gemini request failed", "client_index", idx, "attempt", attempt, "error", err)
		errs = append(errs, fmt.Errorf("client[%d]: %w", idx, err))
	}

	return fmt.Errorf("gemini: %d of %d clients tried: %w", len(errs), count, errors.Join(errs...))
}

// AnalyzeImage sends one image with failover across all configured keys.
func (s *GeminiClientSelector) AnalyzeImage(ctx context.Context, prompt string, image []byte) (map[string]any, error) {
	return SendAIWithImageAndRetry(ctx, prompt, image, s)
}
