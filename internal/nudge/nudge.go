// Package nudge re-engages users who stalled mid-onboarding.
//
// A cron-scheduled sweep finds users whose conversation is incomplete and
// whose last turn was a bot message older than the stale threshold, and
// sends them a gentle reminder. The transport decides free-form versus
// template delivery; outside the 24-hour window the reminder goes out as
// the approved re-engagement template.
package nudge

import (
	"context"
	"log/slog"
	"time"

	"github.com/joselpq/whatsapp-integration-sub000/internal/models"
)

// DefaultStaleAfter is how long a conversation may sit waiting on the user
// before a nudge is sent.
const DefaultStaleAfter = 24 * time.Hour

// NudgeMessage is the reminder text.
const NudgeMessage = "Oi! 👋 Ficamos no meio do seu planejamento financeiro. Quer continuar de onde paramos? É rapidinho! 😊"

// Store is the slice of the store the nudge sweep needs.
type Store interface {
	ListUsers() ([]models.User, error)
	GetConversationState(userID string) (*models.ConversationState, error)
	GetRecentMessages(userID string, limit int) ([]models.Message, error)
}

// Sender delivers the reminder.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) (string, error)
}

// Service runs the re-engagement sweep.
type Service struct {
	store      Store
	messenger  Sender
	staleAfter time.Duration
	now        func() time.Time
}

// NewService creates a nudge service with the default stale threshold.
func NewService(store Store, messenger Sender) *Service {
	return &Service{
		store:      store,
		messenger:  messenger,
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
	}
}

// Sweep nudges every stalled user once. Per-user failures are logged and do
// not stop the sweep. Returns how many nudges were sent.
func (s *Service) Sweep(ctx context.Context) int {
	users, err := s.store.ListUsers()
	if err != nil {
		slog.Error("Nudge sweep failed to list users", "error", err)
		return 0
	}

	sent := 0
	for _, user := range users {
		if s.shouldNudge(user) {
			if _, err := s.messenger.SendMessage(ctx, user.PhoneNumber, NudgeMessage); err != nil {
				slog.Error("Nudge send failed", "error", err, "userID", user.ID)
				continue
			}
			slog.Info("Nudge sent", "userID", user.ID)
			sent++
		}
	}
	slog.Debug("Nudge sweep finished", "users", len(users), "sent", sent)
	return sent
}

// shouldNudge reports whether the user's conversation is incomplete and
// stalled on a bot turn older than the threshold. Sending the nudge records
// a new outbound turn, so a user is not re-nudged until the threshold passes
// again.
func (s *Service) shouldNudge(user models.User) bool {
	state, err := s.store.GetConversationState(user.ID)
	if err != nil {
		slog.Warn("Nudge failed to read conversation state", "error", err, "userID", user.ID)
		return false
	}
	if state == nil || state.CurrentPhase == models.PhaseComplete {
		return false
	}

	recent, err := s.store.GetRecentMessages(user.ID, 1)
	if err != nil {
		slog.Warn("Nudge failed to read history", "error", err, "userID", user.ID)
		return false
	}
	if len(recent) == 0 {
		return false
	}
	last := recent[len(recent)-1]
	if last.Direction != models.DirectionOutbound {
		// still our turn to answer, not the user's
		return false
	}
	return s.now().Sub(last.Timestamp) >= s.staleAfter
}
