package conversation

import (
	"log/slog"
	"time"

	"github.com/joselpq/whatsapp-integration-sub000/internal/models"
)

// DetectorStore is the slice of the store the detector needs.
type DetectorStore interface {
	GetConversationState(userID string) (*models.ConversationState, error)
	SaveConversationState(state models.ConversationState) error
	CountOutboundMessages(userID string) (int, error)
	GetOutboundMessages(userID string) ([]models.Message, error)
	GetLastOutboundMessage(userID string) (*models.Message, error)
}

// Detector resolves the active conversation phase for a user.
//
// The persisted phase row is authoritative. Users without a row (histories
// predating phase persistence) are backfilled by scanning their outbound
// message history for the two completion markers; the backfilled phase is
// then persisted so the scan happens at most once per user.
type Detector struct {
	store DetectorStore
}

// NewDetector creates a phase detector backed by the given store.
func NewDetector(store DetectorStore) *Detector {
	return &Detector{store: store}
}

// DetectPhase returns the active phase for a user. It never fails: storage
// errors fail open to goal_discovery so dispatch keeps working and the
// welcome text is never repeated after the first message.
func (d *Detector) DetectPhase(userID string) models.Phase {
	state, err := d.store.GetConversationState(userID)
	if err != nil {
		slog.Warn("Detector failed to read conversation state, falling back to history scan", "error", err, "userID", userID)
	}
	if state != nil && models.IsValidPhase(state.CurrentPhase) {
		slog.Debug("Detector resolved phase from persisted state", "userID", userID, "phase", state.CurrentPhase)
		return state.CurrentPhase
	}

	count, err := d.store.CountOutboundMessages(userID)
	if err != nil {
		slog.Error("Detector failed to count outbound messages, failing open", "error", err, "userID", userID)
		return models.PhaseGoalDiscovery
	}
	if count == 0 {
		slog.Debug("Detector found no outbound history", "userID", userID, "phase", models.PhaseWelcome)
		return models.PhaseWelcome
	}

	phase := d.backfillFromHistory(userID)
	slog.Debug("Detector backfilled phase from history", "userID", userID, "phase", phase)
	return phase
}

// backfillFromHistory derives the phase from marker substrings in the
// outbound history and persists the result.
func (d *Detector) backfillFromHistory(userID string) models.Phase {
	messages, err := d.store.GetOutboundMessages(userID)
	if err != nil {
		slog.Error("Detector failed to load outbound history, failing open", "error", err, "userID", userID)
		return models.PhaseGoalDiscovery
	}

	var goalComplete, expensesComplete bool
	for _, msg := range messages {
		body := unwrapMessageBody(msg.Content)
		if containsGoalCompleteMarker(body) {
			goalComplete = true
		}
		if containsExpensesCompleteMarker(body) {
			expensesComplete = true
		}
	}

	var phase models.Phase
	switch {
	case !goalComplete:
		phase = models.PhaseGoalDiscovery
	case !expensesComplete:
		phase = models.PhaseMonthlyExpenses
	default:
		phase = models.PhaseComplete
	}

	now := time.Now().UTC()
	if err := d.store.SaveConversationState(models.ConversationState{
		UserID:       userID,
		CurrentPhase: phase,
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		slog.Warn("Detector failed to persist backfilled phase", "error", err, "userID", userID, "phase", phase)
	}
	return phase
}

// LastOutboundMessage returns the content of the most recent bot-authored
// message for the user, with any stored provider envelope unwrapped. Returns
// an empty string when the user has no outbound history.
func (d *Detector) LastOutboundMessage(userID string) (string, error) {
	msg, err := d.store.GetLastOutboundMessage(userID)
	if err != nil {
		return "", err
	}
	if msg == nil {
		return "", nil
	}
	return unwrapMessageBody(msg.Content), nil
}
