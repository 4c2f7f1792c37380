package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joselpq/whatsapp-integration-sub000/internal/models"
	"github.com/joselpq/whatsapp-integration-sub000/internal/util"
)

// RecordingStore is the slice of the store the recording wrapper needs.
type RecordingStore interface {
	GetUserByPhone(phoneNumber string) (*models.User, error)
	SaveMessage(msg models.Message) error
}

// RecordingService wraps a Service and persists every successfully sent
// message as an outbound conversation turn. Phase detection reads outbound
// history, so all production sends must go through this wrapper.
type RecordingService struct {
	inner       Service
	store       RecordingStore
	sentCounter prometheus.Counter // nil when metrics are not wired
}

// RecordingOption defines a configuration option for the recording wrapper.
type RecordingOption func(*RecordingService)

// WithSentCounter sets the counter incremented for every successful send.
func WithSentCounter(c prometheus.Counter) RecordingOption {
	return func(s *RecordingService) { s.sentCounter = c }
}

// NewRecordingService wraps the given delivery service with persistence.
func NewRecordingService(inner Service, store RecordingStore, opts ...RecordingOption) *RecordingService {
	s := &RecordingService{inner: inner, store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidateAndCanonicalizeRecipient delegates to the wrapped service.
func (s *RecordingService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return s.inner.ValidateAndCanonicalizeRecipient(recipient)
}

// SendMessage sends through the wrapped service, then records the outbound
// turn. A recording failure does not fail the send.
func (s *RecordingService) SendMessage(ctx context.Context, to string, body string) (string, error) {
	providerID, err := s.inner.SendMessage(ctx, to, body)
	if err != nil {
		return "", err
	}
	if s.sentCounter != nil {
		s.sentCounter.Inc()
	}

	canonical, cerr := s.inner.ValidateAndCanonicalizeRecipient(to)
	if cerr != nil {
		canonical = to
	}
	user, uerr := s.store.GetUserByPhone(canonical)
	if uerr != nil || user == nil {
		slog.Warn("RecordingService could not resolve user for sent message", "error", uerr, "to", canonical)
		return providerID, nil
	}

	msg := models.Message{
		ID:         util.NewMessageID(),
		UserID:     user.ID,
		Direction:  models.DirectionOutbound,
		Type:       models.MessageTypeText,
		Content:    body,
		ProviderID: providerID,
		Timestamp:  time.Now().UTC(),
	}
	if err := s.store.SaveMessage(msg); err != nil {
		slog.Error("RecordingService failed to persist outbound message", "error", err, "userID", user.ID)
	}
	return providerID, nil
}
