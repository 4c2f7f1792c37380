// Package models defines the WhatsApp Cloud API webhook payload shapes.
//
// Only the fields the service reads are declared; the provider sends more.
package models

import (
	"strconv"
	"time"
)

// WebhookPayload is the top-level envelope posted by the Cloud API.
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

// WebhookEntry groups changes for one WhatsApp business account.
type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

// WebhookChange carries one field-level change, usually "messages".
type WebhookChange struct {
	Field string       `json:"field"`
	Value WebhookValue `json:"value"`
}

// WebhookValue holds the messages and contacts of a change.
type WebhookValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Metadata         WebhookMetadata  `json:"metadata"`
	Contacts         []WebhookContact `json:"contacts,omitempty"`
	Messages         []WebhookMessage `json:"messages,omitempty"`
	Statuses         []WebhookStatus  `json:"statuses,omitempty"`
}

// WebhookMetadata identifies the receiving business phone number.
type WebhookMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// WebhookContact carries the sender's profile information.
type WebhookContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// WebhookMessage is one inbound message event.
type WebhookMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"` // unix seconds as string
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
}

// WebhookStatus is a delivery status update for an outbound message.
type WebhookStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}

// MessageType maps the provider's type string onto the internal enum.
func (m WebhookMessage) MessageType() MessageType {
	switch m.Type {
	case "text":
		return MessageTypeText
	case "image":
		return MessageTypeImage
	case "document":
		return MessageTypeDocument
	case "audio":
		return MessageTypeAudio
	case "video":
		return MessageTypeVideo
	default:
		return MessageTypeOther
	}
}

// Time parses the provider's unix-seconds timestamp, falling back to now.
func (m WebhookMessage) Time() time.Time {
	secs, err := strconv.ParseInt(m.Timestamp, 10, 64)
	if err != nil {
		return time.Now()
	}
	return time.Unix(secs, 0)
}

// TextBody returns the text content of a text message, or empty.
func (m WebhookMessage) TextBody() string {
	if m.Text == nil {
		return ""
	}
	return m.Text.Body
}
