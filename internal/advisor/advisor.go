// Package advisor implements the text-generation collaborator of the
// conversation engine.
//
// It is conversation-history-aware: prior turns for the user are loaded
// from the store and replayed to the model before the latest message. On
// any LLM failure it returns a canned apology instead of propagating the
// error; phase handlers rely on this contract and do not guard LLM calls
// themselves.
package advisor

import (
	"context"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/joselpq/whatsapp-integration-sub000/internal/genai"
	"github.com/joselpq/whatsapp-integration-sub000/internal/models"
)

// Variant selects the system prompt used for a reply.
type Variant string

const (
	// VariantGoalDiscovery converges on a single financial goal.
	VariantGoalDiscovery Variant = "goal_discovery"
	// VariantMonthlyExpenses enumerates monthly spending categories.
	VariantMonthlyExpenses Variant = "monthly_expenses"
)

// FallbackReply is returned whenever the model call fails.
const FallbackReply = "Desculpe, estou com uma dificuldade técnica agora. 😕 Pode tentar de novo em alguns instantes?"

// DefaultHistoryLimit caps how many prior turns are replayed to the model.
const DefaultHistoryLimit = 40

// HistoryStore is the read-only slice of the store the advisor needs.
type HistoryStore interface {
	GetRecentMessages(userID string, limit int) ([]models.Message, error)
}

// Service generates assistant replies for a user message.
type Service struct {
	store           HistoryStore
	genaiClient     genai.ClientInterface
	historyLimit    int
	fallbackCounter prometheus.Counter // nil when metrics are not wired
}

// Option defines a configuration option for the advisor service.
type Option func(*Service)

// WithFallbackCounter sets the counter incremented whenever the canned
// fallback reply is served.
func WithFallbackCounter(c prometheus.Counter) Option {
	return func(s *Service) { s.fallbackCounter = c }
}

// NewService creates an advisor backed by the given history store and GenAI client.
func NewService(store HistoryStore, genaiClient genai.ClientInterface, opts ...Option) *Service {
	s := &Service{
		store:        store,
		genaiClient:  genaiClient,
		historyLimit: DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateReply produces a reply to userText for the given prompt variant.
// The returned bool reports whether the canned fallback was used.
func (s *Service) GenerateReply(ctx context.Context, userID, userText string, variant Variant) (string, bool) {
	slog.Debug("Advisor GenerateReply invoked", "userID", userID, "variant", variant)

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPromptFor(variant)),
	}

	history, err := s.store.GetRecentMessages(userID, s.historyLimit)
	if err != nil {
		// A reply without history is better than no reply.
		slog.Warn("Advisor failed to load history, continuing without it", "error", err, "userID", userID)
		history = nil
	}
	for _, msg := range history {
		if msg.Type != models.MessageTypeText || msg.Content == "" {
			continue
		}
		switch msg.Direction {
		case models.DirectionInbound:
			messages = append(messages, openai.UserMessage(msg.Content))
		case models.DirectionOutbound:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		}
	}
	messages = append(messages, openai.UserMessage(userText))

	reply, err := s.genaiClient.GenerateWithMessages(ctx, messages)
	if err != nil {
		slog.Error("Advisor LLM call failed, returning fallback reply", "error", err, "userID", userID, "variant", variant)
		return s.fallback(), true
	}
	if reply == "" {
		slog.Error("Advisor LLM returned empty reply, returning fallback reply", "userID", userID, "variant", variant)
		return s.fallback(), true
	}

	slog.Debug("Advisor GenerateReply succeeded", "userID", userID, "variant", variant, "reply_length", len(reply))
	return reply, false
}

func (s *Service) fallback() string {
	if s.fallbackCounter != nil {
		s.fallbackCounter.Inc()
	}
	return FallbackReply
}
