package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookNotifierPostsMessageCard(t *testing.T) {
	var got messageCard
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, zerolog.Nop())
	err := n.Send(context.Background(), Event{
		Title:   "Trade executed",
		Message: "bought 2 GLD",
		Facts:   [][2]string{{"symbol", "GLD"}, {"quantity", "2"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "MessageCard", got.Type)
	assert.Equal(t, "Trade executed", got.Summary)
	require.Len(t, got.Sections, 1)
	assert.Equal(t, "bought 2 GLD", got.Sections[0].Text)
	require.Len(t, got.Sections[0].Facts, 2)
	assert.Equal(t, "symbol", got.Sections[0].Facts[0].Name)
}

func TestWebhookNotifierRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, zerolog.Nop())
	err := n.Send(context.Background(), Event{Title: "x"})
	assert.Error(t, err)
}

func TestWebhookNotifierHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	n := NewWebhookNotifier(srv.URL, zerolog.Nop())
	err := n.Send(ctx, Event{Title: "x"})
	assert.Error(t, err)
}
