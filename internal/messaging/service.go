// Package messaging provides outbound message delivery for the assistant.
//
// It defines a pluggable Service abstraction with WhatsApp Cloud API,
// Twilio and personal-device (whatsmeow) implementations.
package messaging

import (
	"context"
	"fmt"
	"strings"

	"github.com/joselpq/whatsapp-integration-sub000/internal/models"
)

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient
	// identifier. Returns the canonicalized recipient and an error if
	// validation fails.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a text message to a recipient and returns the
	// provider-assigned message ID.
	SendMessage(ctx context.Context, to string, body string) (string, error)
}

// CanonicalizePhoneNumber normalizes a phone number to E.164 form: strips
// separators and guarantees a leading plus.
func CanonicalizePhoneNumber(recipient string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(recipient))

	cleaned = strings.TrimPrefix(cleaned, "+")
	if cleaned == "" {
		return "", models.ErrEmptyPhoneNumber
	}
	if len(cleaned) > models.MaxPhoneNumberLength {
		return "", models.ErrInvalidPhoneNumber
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return "", models.ErrInvalidPhoneNumber
		}
	}
	return "+" + cleaned, nil
}

// MockService is an in-memory Service implementation for tests.
type MockService struct {
	SentMessages []SentMessage
	SendErr      error
	nextID       int
}

// SentMessage records one delivery made through a MockService.
type SentMessage struct {
	To   string
	Body string
}

// NewMockService creates an empty mock messaging service.
func NewMockService() *MockService {
	return &MockService{}
}

// ValidateAndCanonicalizeRecipient canonicalizes the recipient as E.164.
func (m *MockService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizePhoneNumber(recipient)
}

// SendMessage records the message and returns a synthetic message ID.
func (m *MockService) SendMessage(ctx context.Context, to string, body string) (string, error) {
	if m.SendErr != nil {
		return "", m.SendErr
	}
	m.SentMessages = append(m.SentMessages, SentMessage{To: to, Body: body})
	m.nextID++
	return fmt.Sprintf("mock-%d", m.nextID), nil
}
