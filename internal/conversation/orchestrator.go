package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joselpq/whatsapp-integration-sub000/internal/models"
)

// ApologyMessage is sent best-effort when a handler fails unexpectedly.
const ApologyMessage = "Desculpe, tive um problema para processar sua mensagem. 😔 Pode tentar de novo?"

// ReasonNonText is the result reason for messages that are not routable text.
const ReasonNonText = "non-text message"

// Orchestrator owns the phase registry and routes every inbound text
// message: detect the phase, dispatch to the matching handler, persist the
// transition the handler signals, and convert unexpected handler failures
// into a best-effort apology.
//
// Processing is serialized per user so concurrent webhook deliveries for the
// same user cannot double-send or skip a transition.
type Orchestrator struct {
	detector  *Detector
	store     DetectorStore
	messenger Sender
	handlers  map[models.Phase]Handler

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewOrchestrator creates an orchestrator with the given handlers registered
// by phase name.
func NewOrchestrator(detector *Detector, store DetectorStore, messenger Sender, handlers ...Handler) *Orchestrator {
	registry := make(map[models.Phase]Handler, len(handlers))
	for _, h := range handlers {
		registry[h.Name()] = h
	}
	return &Orchestrator{
		detector:  detector,
		store:     store,
		messenger: messenger,
		handlers:  registry,
		userLocks: make(map[string]*sync.Mutex),
	}
}

// lockUser returns the per-user mutex, creating it on first contact. Entries
// live for the life of the process: removing one while another goroutine
// still holds it would hand out a second mutex for the same user and break
// serialization. At one pointer-sized entry per user this stays small.
func (o *Orchestrator) lockUser(userID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		o.userLocks[userID] = lock
	}
	return lock
}

// ProcessMessage is the sole public entry point of the conversation engine.
// It never returns an error; every outcome is reported in the PhaseResult.
func (o *Orchestrator) ProcessMessage(ctx context.Context, msg models.IncomingMessage) models.PhaseResult {
	if msg.Type != models.MessageTypeText || msg.Content == "" {
		slog.Debug("Orchestrator ignoring non-text message", "userID", msg.UserID, "type", msg.Type)
		return models.PhaseResult{Processed: false, Reason: ReasonNonText}
	}

	lock := o.lockUser(msg.UserID)
	lock.Lock()
	defer lock.Unlock()

	phase := o.detector.DetectPhase(msg.UserID)

	handler, ok := o.handlers[phase]
	if !ok {
		// Unreachable given the closed phase enum.
		slog.Error("Orchestrator has no handler for phase", "phase", phase, "userID", msg.UserID)
		o.sendApology(ctx, msg)
		return models.PhaseResult{Processed: false, Phase: models.PhaseError, Error: "no handler for phase " + string(phase)}
	}

	result, err := handler.Process(ctx, msg)
	if err != nil {
		slog.Error("Orchestrator handler failed", "error", err, "phase", phase, "userID", msg.UserID, "phoneNumber", msg.PhoneNumber)
		o.sendApology(ctx, msg)
		return models.PhaseResult{Processed: false, Phase: models.PhaseError, Error: err.Error()}
	}

	if result.TransitionTo != "" {
		o.persistTransition(msg.UserID, result.TransitionTo)
		slog.Info("Orchestrator phase transition", "userID", msg.UserID, "from", phase, "to", result.TransitionTo)
	}
	return result
}

// persistTransition updates the stored phase row. A persistence failure is
// logged and ignored; the detector's history backfill still resolves the
// correct phase on the next message.
func (o *Orchestrator) persistTransition(userID string, to models.Phase) {
	now := time.Now().UTC()
	if err := o.store.SaveConversationState(models.ConversationState{
		UserID:       userID,
		CurrentPhase: to,
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		slog.Error("Orchestrator failed to persist phase transition", "error", err, "userID", userID, "to", to)
	}
}

// sendApology sends the generic apology. Best-effort: a send failure is
// logged and swallowed.
func (o *Orchestrator) sendApology(ctx context.Context, msg models.IncomingMessage) {
	if _, err := o.messenger.SendMessage(ctx, msg.PhoneNumber, ApologyMessage); err != nil {
		slog.Error("Orchestrator failed to send apology message", "error", err, "userID", msg.UserID)
	}
}
