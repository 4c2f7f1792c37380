package conversation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joselpq/whatsapp-integration-sub000/internal/models"
)

// WelcomeMessage is the fixed onboarding text sent to every new user.
const WelcomeMessage = `Oi! 👋 Eu sou seu assistente financeiro pessoal aqui no WhatsApp.

Vou te ajudar a organizar sua vida financeira em dois passos rápidos:

1️⃣ Entender seu principal objetivo financeiro
2️⃣ Mapear seus gastos mensais

Pra começar: qual é hoje o seu maior objetivo financeiro? Pode ser montar uma reserva de emergência, comprar algo, quitar dívidas, investir... me conta! 😊`

// WelcomeHandler sends the fixed onboarding message and hands the
// conversation to goal discovery. No branching.
type WelcomeHandler struct {
	messenger Sender
}

// NewWelcomeHandler creates the welcome phase handler.
func NewWelcomeHandler(messenger Sender) *WelcomeHandler {
	return &WelcomeHandler{messenger: messenger}
}

// Name returns the phase this handler owns.
func (h *WelcomeHandler) Name() models.Phase {
	return models.PhaseWelcome
}

// Process sends the onboarding message and signals the transition to goal
// discovery.
func (h *WelcomeHandler) Process(ctx context.Context, msg models.IncomingMessage) (models.PhaseResult, error) {
	if _, err := h.messenger.SendMessage(ctx, msg.PhoneNumber, WelcomeMessage); err != nil {
		return models.PhaseResult{Phase: models.PhaseWelcome}, fmt.Errorf("failed to send welcome message: %w", err)
	}
	slog.Debug("WelcomeHandler sent onboarding message", "userID", msg.UserID)
	return models.PhaseResult{
		Processed:    true,
		Phase:        models.PhaseWelcome,
		Action:       "sent_welcome",
		SentMessage:  true,
		TransitionTo: models.PhaseGoalDiscovery,
	}, nil
}
