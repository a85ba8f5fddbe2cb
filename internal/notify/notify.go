// Package notify delivers trade and cycle notifications to external
// sinks. Delivery is best effort: a failed notification is logged and
// dropped, never retried into the trading path.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Event is one notification message. Facts render as a name/value table
// in sinks that support it.
type Event struct {
	Title     string
	Message   string
	Facts     [][2]string
	Timestamp time.Time
}

// Notifier sends events to a sink.
type Notifier interface {
	Send(ctx context.Context, event Event) error
}

// NopNotifier discards every event.
type NopNotifier struct{}

func (NopNotifier) Send(ctx context.Context, event Event) error { return nil }

// WebhookNotifier posts events to an incoming webhook as a Teams
// MessageCard.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger zerolog.Logger
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(url string, logger zerolog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger.With().Str("component", "notify").Logger(),
	}
}

type messageCard struct {
	Type       string        `json:"@type"`
	Context    string        `json:"@context"`
	ThemeColor string        `json:"themeColor"`
	Summary    string        `json:"summary"`
	Sections   []cardSection `json:"sections"`
}

type cardSection struct {
	ActivityTitle string     `json:"activityTitle"`
	Text          string     `json:"text,omitempty"`
	Facts         []cardFact `json:"facts,omitempty"`
	Markdown      bool       `json:"markdown"`
}

type cardFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Send posts the event. A non-2xx response is an error; the caller
// decides whether that matters.
func (w *WebhookNotifier) Send(ctx context.Context, event Event) error {
	facts := make([]cardFact, 0, len(event.Facts))
	for _, f := range event.Facts {
		facts = append(facts, cardFact{Name: f[0], Value: f[1]})
	}

	card := messageCard{
		Type:       "MessageCard",
		Context:    "http://schema.org/extensions",
		ThemeColor: "0076D7",
		Summary:    event.Title,
		Sections: []cardSection{{
			ActivityTitle: event.Title,
			Text:          event.Message,
			Facts:         facts,
			Markdown:      true,
		}},
	}

	body, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("encoding message card: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// SendAsync fires the event on a goroutine and logs failures. Used from
// the trading path where delivery must never block a cycle.
func SendAsync(n Notifier, logger zerolog.Logger, event Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := n.Send(ctx, event); err != nil {
			logger.Warn().Err(err).Str("title", event.Title).Msg("notification failed")
		}
	}()
}
