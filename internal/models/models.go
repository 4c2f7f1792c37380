// Package models defines the core data structures for the financial
// assistant service.
//
// It includes users, conversation messages, webhook payloads and the API
// response envelope, which are shared across modules.
package models

import (
	"errors"
	"time"
)

// MessageType classifies the content of an inbound WhatsApp message.
type MessageType string

const (
	// MessageTypeText is the only type routed to the conversation engine.
	MessageTypeText MessageType = "text"
	// MessageTypeImage identifies image attachments.
	MessageTypeImage MessageType = "image"
	// MessageTypeDocument identifies document attachments.
	MessageTypeDocument MessageType = "document"
	// MessageTypeAudio identifies voice notes and audio attachments.
	MessageTypeAudio MessageType = "audio"
	// MessageTypeVideo identifies video attachments.
	MessageTypeVideo MessageType = "video"
	// MessageTypeOther covers stickers, locations, contacts and anything else.
	MessageTypeOther MessageType = "other"
)

// IsValidMessageType checks if the given message type is supported.
func IsValidMessageType(mt MessageType) bool {
	switch mt {
	case MessageTypeText, MessageTypeImage, MessageTypeDocument, MessageTypeAudio, MessageTypeVideo, MessageTypeOther:
		return true
	default:
		return false
	}
}

// MessageDirection distinguishes user-authored from bot-authored messages.
type MessageDirection string

const (
	// DirectionInbound marks messages received from the user.
	DirectionInbound MessageDirection = "inbound"
	// DirectionOutbound marks messages sent by the assistant.
	DirectionOutbound MessageDirection = "outbound"
)

// Validation constants for input validation
const (
	// MaxMessageBodyLength defines the maximum allowed length for message content
	MaxMessageBodyLength = 4096
	// MaxPhoneNumberLength defines the maximum allowed length for a phone number
	MaxPhoneNumberLength = 20
)

// Error variables for better error handling and testability
var (
	ErrEmptyPhoneNumber   = errors.New("phone number cannot be empty")
	ErrInvalidPhoneNumber = errors.New("phone number is not a valid E.164 number")
	ErrEmptyUserID        = errors.New("user id cannot be empty")
	ErrEmptyMessageBody   = errors.New("message body cannot be empty")
	ErrMessageBodyTooLong = errors.New("message body exceeds maximum length")
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrInvalidPhase       = errors.New("invalid conversation phase")
)

// User represents a WhatsApp user known to the assistant.
type User struct {
	ID          string    `json:"id"`
	PhoneNumber string    `json:"phone_number"`
	Name        string    `json:"name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Message represents a single persisted conversation turn.
type Message struct {
	ID         string           `json:"id"`
	UserID     string           `json:"user_id"`
	Direction  MessageDirection `json:"direction"`
	Type       MessageType      `json:"type"`
	Content    string           `json:"content"`
	ProviderID string           `json:"provider_id,omitempty"` // message id assigned by the provider
	Timestamp  time.Time        `json:"timestamp"`
}

// IncomingMessage is the normalized webhook event handed to the orchestrator.
type IncomingMessage struct {
	UserID      string      `json:"user_id"`
	PhoneNumber string      `json:"phone_number"`
	Content     string      `json:"content"`
	Type        MessageType `json:"type"`
	ProviderID  string      `json:"provider_id,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// Validate performs validation on an IncomingMessage.
func (m *IncomingMessage) Validate() error {
	if m.UserID == "" {
		return ErrEmptyUserID
	}
	if m.PhoneNumber == "" {
		return ErrEmptyPhoneNumber
	}
	if !IsValidMessageType(m.Type) {
		return ErrInvalidMessageType
	}
	if len(m.Content) > MaxMessageBodyLength {
		return ErrMessageBodyTooLong
	}
	return nil
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
	// APIStatusIgnored indicates a webhook event was acknowledged but not processed.
	APIStatusIgnored APIStatus = "ignored"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}

// Ignored creates an acknowledged-but-ignored API response with a reason.
func Ignored(reason string) APIResponse {
	return APIResponse{Status: string(APIStatusIgnored), Message: reason}
}
