package models

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestIncomingMessageValidate(t *testing.T) {
	valid := IncomingMessage{
		UserID:      "u1",
		PhoneNumber: "+5511999990000",
		Content:     "oi",
		Type:        MessageTypeText,
	}

	tests := []struct {
		name    string
		mutate  func(*IncomingMessage)
		wantErr error
	}{
		{name: "valid", mutate: func(m *IncomingMessage) {}},
		{name: "missing user id", mutate: func(m *IncomingMessage) { m.UserID = "" }, wantErr: ErrEmptyUserID},
		{name: "missing phone", mutate: func(m *IncomingMessage) { m.PhoneNumber = "" }, wantErr: ErrEmptyPhoneNumber},
		{name: "bad type", mutate: func(m *IncomingMessage) { m.Type = "sticker" }, wantErr: ErrInvalidMessageType},
		{name: "body too long", mutate: func(m *IncomingMessage) { m.Content = strings.Repeat("a", MaxMessageBodyLength+1) }, wantErr: ErrMessageBodyTooLong},
		{name: "empty body allowed", mutate: func(m *IncomingMessage) { m.Content = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := valid
			tt.mutate(&msg)
			if err := msg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestWebhookMessageMessageType(t *testing.T) {
	tests := []struct {
		provider string
		want     MessageType
	}{
		{"text", MessageTypeText},
		{"image", MessageTypeImage},
		{"document", MessageTypeDocument},
		{"audio", MessageTypeAudio},
		{"video", MessageTypeVideo},
		{"sticker", MessageTypeOther},
		{"location", MessageTypeOther},
		{"", MessageTypeOther},
	}
	for _, tt := range tests {
		m := WebhookMessage{Type: tt.provider}
		if got := m.MessageType(); got != tt.want {
			t.Errorf("MessageType(%q) = %q, want %q", tt.provider, got, tt.want)
		}
	}
}

func TestWebhookMessageTime(t *testing.T) {
	m := WebhookMessage{Timestamp: "1700000000"}
	if got := m.Time(); !got.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("Time() = %v, want %v", got, time.Unix(1700000000, 0))
	}

	// malformed timestamps fall back to roughly now
	before := time.Now().Add(-time.Minute)
	got := WebhookMessage{Timestamp: "not-a-number"}.Time()
	if got.Before(before) {
		t.Errorf("expected fallback near now, got %v", got)
	}
}

func TestWebhookMessageTextBody(t *testing.T) {
	if body := (WebhookMessage{}).TextBody(); body != "" {
		t.Errorf("expected empty body without text object, got %q", body)
	}

	m := WebhookMessage{Text: &struct {
		Body string `json:"body"`
	}{Body: "oi, tudo bem?"}}
	if body := m.TextBody(); body != "oi, tudo bem?" {
		t.Errorf("TextBody() = %q", body)
	}
}

func TestAPIResponseHelpers(t *testing.T) {
	if r := Success(map[string]int{"n": 1}); r.Status != string(APIStatusOK) || r.Result == nil {
		t.Errorf("unexpected success response %+v", r)
	}
	if r := Error("boom"); r.Status != string(APIStatusError) || r.Message != "boom" {
		t.Errorf("unexpected error response %+v", r)
	}
	if r := Ignored("status only"); r.Status != string(APIStatusIgnored) || r.Message != "status only" {
		t.Errorf("unexpected ignored response %+v", r)
	}
}
