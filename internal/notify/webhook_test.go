package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookSenderPostsJSON(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL)
	require.NoError(t, s.Send(context.Background(), "Bet sync", "market 1 refreshed"))

	assert.Equal(t, "Bet sync", got["title"])
	assert.Equal(t, "market 1 refreshed", got["message"])
	assert.NotEmpty(t, got["sent_at"])
}

func TestWebhookSenderRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL)
	err := s.Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestNotifierFiltersEvents(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	n := NewNotifier([]Sender{NewWebhookSender(srv.URL)}, []string{"sync_failed"}, logger)

	require.NoError(t, n.Notify(context.Background(), "bet_sync", "t", "m"))
	assert.Zero(t, calls)

	require.NoError(t, n.Notify(context.Background(), "sync_failed", "t", "m"))
	assert.Equal(t, 1, calls)

	require.NoError(t, n.NotifyAll(context.Background(), "t", "m"))
	assert.Equal(t, 2, calls)
}
