package messaging

import (
	"context"
	"strings"

	"github.com/joselpq/whatsapp-integration-sub000/internal/whatsapp"
)

// DeviceService sends messages through a paired personal WhatsApp device
// session (whatsmeow).
type DeviceService struct {
	client whatsapp.Sender
}

// NewDeviceService creates a messaging service backed by a device session.
func NewDeviceService(client whatsapp.Sender) *DeviceService {
	return &DeviceService{client: client}
}

// ValidateAndCanonicalizeRecipient canonicalizes the recipient as E.164.
func (s *DeviceService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return CanonicalizePhoneNumber(recipient)
}

// SendMessage sends a text message to the recipient's JID. Whatsmeow
// addresses users by bare digits, so the leading plus is stripped.
func (s *DeviceService) SendMessage(ctx context.Context, to string, body string) (string, error) {
	canonical, err := CanonicalizePhoneNumber(to)
	if err != nil {
		return "", err
	}
	return s.client.SendMessage(ctx, strings.TrimPrefix(canonical, "+"), body)
}
