package server

import (
	"crypto/subtle"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/xthestreams/current-rms-watcher/internal/model"
	"github.com/xthestreams/current-rms-watcher/internal/store"
)

const maxWebhookBody = 1 << 20 // 1MB

// handleWebhook receives a Current RMS delivery. The response is 202 even
// when processing fails: Current RMS retries undelivered hooks and a
// permanently failing payload would otherwise be redelivered forever. Failed
// deliveries stay queryable through /api/events.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.webhookSecret != "" {
		got := r.Header.Get("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.webhookSecret)) != 1 {
			respondError(w, http.StatusUnauthorized, "invalid webhook secret")
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "unreadable request body")
		return
	}

	if err := s.processor.Process(r.Context(), body); err != nil {
		zap.L().Warn("webhook processing failed", zap.Error(err))
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// handleListEvents returns the webhook delivery log, newest first.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	filter := store.EventFilter{}
	if status := r.URL.Query().Get("status"); status != "" {
		switch model.WebhookEventStatus(status) {
		case model.WebhookEventReceived, model.WebhookEventProcessed, model.WebhookEventFailed:
			filter.Status = model.WebhookEventStatus(status)
		default:
			respondError(w, http.StatusBadRequest, "status must be received, processed, or failed")
			return
		}
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	events, err := s.store.ListWebhookEvents(r.Context(), filter)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	// Raw payloads are an audit detail; keep list responses light.
	for i := range events {
		events[i].Payload = nil
	}
	respondJSON(w, http.StatusOK, map[string]any{"events": events})
}
