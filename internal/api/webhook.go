package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/joselpq/whatsapp-integration-sub000/internal/models"
	"github.com/joselpq/whatsapp-integration-sub000/internal/util"
)

// maxWebhookBody caps how much of a webhook payload is read.
const maxWebhookBody = 1 << 20

// handleWebhookVerify answers the Cloud API verification handshake: echo
// hub.challenge when the mode and token match.
func (s *Server) handleWebhookVerify(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode != "subscribe" || token != s.verifyToken {
		slog.Warn("Webhook verification rejected", "mode", mode)
		w.WriteHeader(http.StatusForbidden)
		return
	}

	slog.Info("Webhook verified")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(challenge))
}

// handleWebhook ingests a Cloud API event batch. Malformed payloads are
// rejected; everything else is acknowledged with 200 so the provider stops
// redelivering, with per-message outcomes reported in the response body.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("failed to read request body"))
		return
	}
	if s.metrics != nil {
		s.metrics.WebhookPayloadSize.Observe(float64(len(body)))
	}

	var payload models.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.Warn("Webhook payload malformed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("malformed webhook payload"))
		return
	}

	var results []models.PhaseResult
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			names := contactNames(change.Value.Contacts)
			for _, wm := range change.Value.Messages {
				result := s.processWebhookMessage(r, wm, names[wm.From])
				if result != nil {
					results = append(results, *result)
				}
			}
		}
	}

	if len(results) == 0 {
		writeJSONResponse(w, http.StatusOK, models.Ignored("no processable messages"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(results))
}

// processWebhookMessage handles one inbound message event: dedup, user
// resolution, inbound persistence, window bookkeeping and dispatch. Returns
// nil when the event was dropped as a duplicate.
func (s *Server) processWebhookMessage(r *http.Request, wm models.WebhookMessage, senderName string) *models.PhaseResult {
	ctx := r.Context()

	if s.dedup != nil && wm.ID != "" {
		dup, err := s.dedup.Seen(ctx, wm.ID)
		if err != nil {
			slog.Warn("Webhook deduplication check failed, processing anyway", "error", err, "messageID", wm.ID)
		} else if dup {
			slog.Debug("Webhook duplicate dropped", "messageID", wm.ID)
			if s.metrics != nil {
				s.metrics.DuplicatesDropped.Inc()
			}
			return nil
		}
	}

	if s.metrics != nil {
		s.metrics.MessagesReceived.WithLabelValues(string(wm.MessageType())).Inc()
	}

	phone := "+" + wm.From
	user, err := s.resolveUser(phone, senderName)
	if err != nil {
		slog.Error("Webhook failed to resolve user", "error", err, "from", wm.From)
		result := models.PhaseResult{Processed: false, Phase: models.PhaseError, Error: "failed to resolve user"}
		return &result
	}

	if err := s.store.SaveMessage(models.Message{
		ID:         util.NewMessageID(),
		UserID:     user.ID,
		Direction:  models.DirectionInbound,
		Type:       wm.MessageType(),
		Content:    wm.TextBody(),
		ProviderID: wm.ID,
		Timestamp:  wm.Time(),
	}); err != nil {
		slog.Error("Webhook failed to persist inbound message", "error", err, "userID", user.ID)
	}

	if s.window != nil {
		s.window.RecordInbound(phone, wm.Time())
	}

	result := s.engine.ProcessMessage(ctx, models.IncomingMessage{
		UserID:      user.ID,
		PhoneNumber: phone,
		Content:     wm.TextBody(),
		Type:        wm.MessageType(),
		ProviderID:  wm.ID,
		Timestamp:   wm.Time(),
	})

	if s.metrics != nil {
		if result.TransitionTo != "" {
			s.metrics.PhaseTransitions.WithLabelValues(string(result.TransitionTo)).Inc()
		}
		if result.Phase == models.PhaseError {
			s.metrics.HandlerFailures.Inc()
		}
	}
	return &result
}

// resolveUser finds the user for a phone number, creating one on first
// contact.
func (s *Server) resolveUser(phone, name string) (*models.User, error) {
	user, err := s.store.GetUserByPhone(phone)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	now := time.Now().UTC()
	created := models.User{
		ID:          util.NewUserID(),
		PhoneNumber: phone,
		Name:        name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.SaveUser(created); err != nil {
		return nil, err
	}
	slog.Info("Webhook created user on first contact", "userID", created.ID)
	return &created, nil
}

func contactNames(contacts []models.WebhookContact) map[string]string {
	names := make(map[string]string, len(contacts))
	for _, c := range contacts {
		names[c.WaID] = c.Profile.Name
	}
	return names
}
