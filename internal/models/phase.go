// Package models defines conversation phase types shared across modules to
// avoid circular imports.
package models

import "time"

// Phase represents a conversational stage of the financial onboarding flow.
type Phase string

// Phase constants. The set is closed; there is no runtime registration of
// new phases.
const (
	PhaseWelcome         Phase = "welcome"
	PhaseGoalDiscovery   Phase = "goal_discovery"
	PhaseMonthlyExpenses Phase = "monthly_expenses"
	PhaseComplete        Phase = "complete"
	// PhaseError is a per-invocation outcome, never persisted.
	PhaseError Phase = "error"
)

// IsValidPhase checks if the given phase is one of the four persisted stages.
func IsValidPhase(p Phase) bool {
	switch p {
	case PhaseWelcome, PhaseGoalDiscovery, PhaseMonthlyExpenses, PhaseComplete:
		return true
	default:
		return false
	}
}

// PhaseResult is produced once per inbound message by the orchestrator and
// its handlers. It is used for logging and telemetry only, never persisted.
type PhaseResult struct {
	Processed        bool   `json:"processed"`
	Phase            Phase  `json:"phase"`
	Action           string `json:"action,omitempty"`
	SentMessage      bool   `json:"sent_message"`
	TransitionTo     Phase  `json:"transition_to,omitempty"`
	GoalComplete     bool   `json:"goal_complete,omitempty"`
	ExpensesComplete bool   `json:"expenses_complete,omitempty"`
	Reason           string `json:"reason,omitempty"`
	Error            string `json:"error,omitempty"`
}

// ConversationState is the persisted phase row for a user. The phase is
// updated exactly when a handler signals a transition; users with no row are
// resolved by scanning their outbound message history.
type ConversationState struct {
	UserID       string    `json:"user_id"`
	CurrentPhase Phase     `json:"current_phase"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
