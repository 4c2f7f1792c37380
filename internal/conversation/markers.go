// Package conversation implements the phase dispatch engine: a detector
// that resolves the active phase for a user, four phase handlers and an
// orchestrator that routes every inbound text message to the right handler.
package conversation

import (
	"encoding/json"
	"strings"

	"github.com/joselpq/whatsapp-integration-sub000/internal/models"
)

// Marker matching is confined to this file so the coupling between
// bot-authored wording and phase detection stays in one place.

func containsGoalCompleteMarker(text string) bool {
	return strings.Contains(text, models.MarkerGoalComplete)
}

func containsExpensesCompleteMarker(text string) bool {
	return strings.Contains(text, models.MarkerExpensesComplete)
}

func containsGoalConfirmQuestion(text string) bool {
	return strings.Contains(text, models.MarkerGoalConfirmQuestion)
}

// unwrapMessageBody extracts the text body from a stored message content.
// Histories imported from other systems may store the raw provider envelope
// ({"text":{"body":"..."}}) instead of plain text.
func unwrapMessageBody(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "{") {
		return content
	}
	var envelope struct {
		Text struct {
			Body string `json:"body"`
		} `json:"text"`
	}
	if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil {
		return content
	}
	if envelope.Text.Body == "" {
		return content
	}
	return envelope.Text.Body
}
