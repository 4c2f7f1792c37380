package conversation

import (
	"context"
	"log/slog"

	"github.com/joselpq/whatsapp-integration-sub000/internal/models"
)

// CompleteHandler is the terminal silence state: once both goal and expense
// discovery are done, inbound text is acknowledged but never answered.
type CompleteHandler struct{}

// NewCompleteHandler creates the complete phase handler.
func NewCompleteHandler() *CompleteHandler {
	return &CompleteHandler{}
}

// Name returns the phase this handler owns.
func (h *CompleteHandler) Name() models.Phase {
	return models.PhaseComplete
}

// Process takes no action and sends no message.
func (h *CompleteHandler) Process(ctx context.Context, msg models.IncomingMessage) (models.PhaseResult, error) {
	slog.Debug("CompleteHandler ignoring message in terminal phase", "userID", msg.UserID)
	return models.PhaseResult{
		Processed: false,
		Phase:     models.PhaseComplete,
		Action:    "none",
		Reason:    "conversation_complete",
	}, nil
}
