package conversation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joselpq/whatsapp-integration-sub000/internal/advisor"
	"github.com/joselpq/whatsapp-integration-sub000/internal/models"
)

// ExpensesStore persists the completed monthly expense estimate.
type ExpensesStore interface {
	SaveMonthlyExpenses(expenses models.MonthlyExpenses) error
}

// MonthlyExpensesHandler walks the user through their monthly spending. The
// phase is complete once the model's reply contains the expense summary
// marker.
type MonthlyExpensesHandler struct {
	advisor   ReplyGenerator
	messenger Sender
	expenses  ExpensesStore
}

// NewMonthlyExpensesHandler creates the monthly expenses phase handler. The
// expenses store may be nil; estimate capture is best-effort.
func NewMonthlyExpensesHandler(advisorSvc ReplyGenerator, messenger Sender, expenses ExpensesStore) *MonthlyExpensesHandler {
	return &MonthlyExpensesHandler{advisor: advisorSvc, messenger: messenger, expenses: expenses}
}

// Name returns the phase this handler owns.
func (h *MonthlyExpensesHandler) Name() models.Phase {
	return models.PhaseMonthlyExpenses
}

// Process delegates to the text-generation collaborator and reports the
// phase complete iff the reply contains the expense summary marker.
func (h *MonthlyExpensesHandler) Process(ctx context.Context, msg models.IncomingMessage) (models.PhaseResult, error) {
	reply, usedFallback := h.advisor.GenerateReply(ctx, msg.UserID, msg.Content, advisor.VariantMonthlyExpenses)
	if _, err := h.messenger.SendMessage(ctx, msg.PhoneNumber, reply); err != nil {
		return models.PhaseResult{Phase: models.PhaseMonthlyExpenses}, fmt.Errorf("failed to send monthly expenses reply: %w", err)
	}

	result := models.PhaseResult{
		Processed:   true,
		Phase:       models.PhaseMonthlyExpenses,
		Action:      "monthly_expenses_reply",
		SentMessage: true,
	}
	if containsExpensesCompleteMarker(reply) {
		result.ExpensesComplete = true
		result.TransitionTo = models.PhaseComplete
		h.captureExpenses(msg.UserID, reply)
		slog.Info("MonthlyExpensesHandler estimate complete", "userID", msg.UserID)
	} else {
		slog.Debug("MonthlyExpensesHandler sent reply", "userID", msg.UserID, "usedFallback", usedFallback)
	}
	return result, nil
}

// captureExpenses persists the structured estimate parsed from the summary
// reply. Extraction is best-effort; failures are logged and ignored.
func (h *MonthlyExpensesHandler) captureExpenses(userID, reply string) {
	if h.expenses == nil {
		return
	}
	estimate, ok := extractExpenses(userID, reply)
	if !ok {
		slog.Debug("MonthlyExpensesHandler could not extract structured estimate", "userID", userID)
		return
	}
	if err := h.expenses.SaveMonthlyExpenses(*estimate); err != nil {
		slog.Warn("MonthlyExpensesHandler failed to persist estimate", "error", err, "userID", userID)
	}
}
