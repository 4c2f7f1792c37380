// Package store provides storage backends for the financial assistant.
//
// It includes SQLite and PostgreSQL implementations behind a single Store
// interface, plus an in-memory implementation for tests.
package store

import (
	"strings"

	"github.com/joselpq/whatsapp-integration-sub000/internal/models"
)

// Store is the persistence interface consumed by the conversation engine
// and the HTTP API.
type Store interface {
	// SaveUser stores or updates a user.
	SaveUser(user models.User) error
	// GetUser retrieves a user by ID. Returns nil when not found.
	GetUser(id string) (*models.User, error)
	// GetUserByPhone retrieves a user by phone number. Returns nil when not found.
	GetUserByPhone(phoneNumber string) (*models.User, error)
	// ListUsers returns all known users.
	ListUsers() ([]models.User, error)

	// SaveMessage stores a conversation message.
	SaveMessage(msg models.Message) error
	// GetOutboundMessages returns all bot-authored messages for a user,
	// oldest first.
	GetOutboundMessages(userID string) ([]models.Message, error)
	// CountOutboundMessages returns the number of bot-authored messages for a user.
	CountOutboundMessages(userID string) (int, error)
	// GetLastOutboundMessage returns the most recent bot-authored message,
	// or nil when the user has none.
	GetLastOutboundMessage(userID string) (*models.Message, error)
	// GetRecentMessages returns the most recent messages in both directions,
	// oldest first. A non-positive limit returns the full history.
	GetRecentMessages(userID string, limit int) ([]models.Message, error)

	// GetConversationState retrieves the persisted phase row for a user.
	// Returns nil when the user has no row.
	GetConversationState(userID string) (*models.ConversationState, error)
	// SaveConversationState stores or updates the persisted phase row.
	SaveConversationState(state models.ConversationState) error

	// SaveGoal stores or updates a financial goal.
	SaveGoal(goal models.FinancialGoal) error
	// GetGoalByUser retrieves a user's goal. Returns nil when not found.
	GetGoalByUser(userID string) (*models.FinancialGoal, error)
	// SaveMonthlyExpenses stores or updates a monthly expense estimate.
	SaveMonthlyExpenses(expenses models.MonthlyExpenses) error
	// GetMonthlyExpensesByUser retrieves a user's estimate. Returns nil when not found.
	GetMonthlyExpensesByUser(userID string) (*models.MonthlyExpenses, error)

	// Close releases the underlying database resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType inspects a DSN and reports "postgres" or "sqlite".
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}
