package conversation

import (
	"context"

	"github.com/joselpq/whatsapp-integration-sub000/internal/advisor"
	"github.com/joselpq/whatsapp-integration-sub000/internal/models"
)

// Handler processes one inbound message for one conversational stage.
//
// Process must not return an error for expected domain conditions; only
// unexpected failures propagate, and the orchestrator converts those into a
// best-effort apology.
type Handler interface {
	Name() models.Phase
	Process(ctx context.Context, msg models.IncomingMessage) (models.PhaseResult, error)
}

// ReplyGenerator is the text-generation collaborator consumed by handlers.
// Implementations return a canned fallback string on failure instead of an
// error; handlers depend on that contract and do not guard these calls.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, userID, userText string, variant advisor.Variant) (string, bool)
}

// Sender is the outbound delivery surface handlers use.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) (string, error)
}
