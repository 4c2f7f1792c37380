package conversation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joselpq/whatsapp-integration-sub000/internal/advisor"
	"github.com/joselpq/whatsapp-integration-sub000/internal/models"
)

// GoalTransitionMessage is sent when the user confirms their goal. It opens
// with the goal-complete marker the detector's backfill scans for.
var GoalTransitionMessage = models.MarkerGoalComplete + ". 💸\n\nPra começar: quanto você gasta por mês com moradia (aluguel ou financiamento, condomínio, contas da casa)?"

// GoalStore persists the confirmed financial goal.
type GoalStore interface {
	SaveGoal(goal models.FinancialGoal) error
}

// GoalDiscoveryHandler converges on a single financial goal. When the
// previous bot turn asked the confirmation question and the user answers
// affirmatively, it emits the fixed transition message; otherwise it
// delegates to the text-generation collaborator.
type GoalDiscoveryHandler struct {
	detector  *Detector
	advisor   ReplyGenerator
	messenger Sender
	goals     GoalStore
}

// NewGoalDiscoveryHandler creates the goal discovery phase handler. The goal
// store may be nil; goal capture is best-effort.
func NewGoalDiscoveryHandler(detector *Detector, advisorSvc ReplyGenerator, messenger Sender, goals GoalStore) *GoalDiscoveryHandler {
	return &GoalDiscoveryHandler{detector: detector, advisor: advisorSvc, messenger: messenger, goals: goals}
}

// Name returns the phase this handler owns.
func (h *GoalDiscoveryHandler) Name() models.Phase {
	return models.PhaseGoalDiscovery
}

// Process handles one inbound message during goal discovery.
func (h *GoalDiscoveryHandler) Process(ctx context.Context, msg models.IncomingMessage) (models.PhaseResult, error) {
	lastOutbound, err := h.detector.LastOutboundMessage(msg.UserID)
	if err != nil {
		return models.PhaseResult{Phase: models.PhaseGoalDiscovery}, fmt.Errorf("failed to load last outbound message: %w", err)
	}

	askedGoalConfirmation := containsGoalConfirmQuestion(lastOutbound)
	if askedGoalConfirmation && IsAffirmativeResponse(msg.Content) {
		if _, err := h.messenger.SendMessage(ctx, msg.PhoneNumber, GoalTransitionMessage); err != nil {
			return models.PhaseResult{Phase: models.PhaseGoalDiscovery}, fmt.Errorf("failed to send goal transition message: %w", err)
		}
		h.captureGoal(msg.UserID, lastOutbound)
		slog.Info("GoalDiscoveryHandler goal confirmed", "userID", msg.UserID)
		return models.PhaseResult{
			Processed:    true,
			Phase:        models.PhaseGoalDiscovery,
			Action:       "goal_confirmed",
			SentMessage:  true,
			GoalComplete: true,
			TransitionTo: models.PhaseMonthlyExpenses,
		}, nil
	}

	reply, usedFallback := h.advisor.GenerateReply(ctx, msg.UserID, msg.Content, advisor.VariantGoalDiscovery)
	if _, err := h.messenger.SendMessage(ctx, msg.PhoneNumber, reply); err != nil {
		return models.PhaseResult{Phase: models.PhaseGoalDiscovery}, fmt.Errorf("failed to send goal discovery reply: %w", err)
	}
	slog.Debug("GoalDiscoveryHandler sent reply", "userID", msg.UserID, "usedFallback", usedFallback)
	return models.PhaseResult{
		Processed:   true,
		Phase:       models.PhaseGoalDiscovery,
		Action:      "goal_discovery_reply",
		SentMessage: true,
	}, nil
}

// captureGoal persists a structured goal parsed from the confirmed proposal
// text. Extraction is best-effort; failures are logged and ignored.
func (h *GoalDiscoveryHandler) captureGoal(userID, proposal string) {
	if h.goals == nil {
		return
	}
	goal, ok := extractGoal(userID, proposal)
	if !ok {
		slog.Debug("GoalDiscoveryHandler could not extract structured goal", "userID", userID)
		return
	}
	if err := h.goals.SaveGoal(*goal); err != nil {
		slog.Warn("GoalDiscoveryHandler failed to persist goal", "error", err, "userID", userID)
	}
}
