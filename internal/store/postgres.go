// Package store provides storage backends for the financial assistant.
//
// This file implements a PostgreSQL-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/joselpq/whatsapp-integration-sub000/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	slog.Debug("Opening Postgres database connection")
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreWithDB wraps an existing database handle. Used by tests.
func NewPostgresStoreWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// SaveUser stores or updates a user.
func (s *PostgresStore) SaveUser(user models.User) error {
	query := `
		INSERT INTO users (id, phone_number, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			phone_number = EXCLUDED.phone_number,
			name = EXCLUDED.name,
			updated_at = EXCLUDED.updated_at`

	_, err := s.db.Exec(query, user.ID, user.PhoneNumber, user.Name, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveUser failed", "error", err, "id", user.ID)
		return fmt.Errorf("failed to save user %s: %w", user.ID, err)
	}
	slog.Debug("PostgresStore SaveUser succeeded", "id", user.ID, "phone", user.PhoneNumber)
	return nil
}

// GetUser retrieves a user by ID.
func (s *PostgresStore) GetUser(id string) (*models.User, error) {
	query := `SELECT id, phone_number, name, created_at, updated_at FROM users WHERE id = $1`
	return s.scanUserRow(s.db.QueryRow(query, id), "id", id)
}

// GetUserByPhone retrieves a user by phone number.
func (s *PostgresStore) GetUserByPhone(phoneNumber string) (*models.User, error) {
	query := `SELECT id, phone_number, name, created_at, updated_at FROM users WHERE phone_number = $1`
	return s.scanUserRow(s.db.QueryRow(query, phoneNumber), "phone", phoneNumber)
}

func (s *PostgresStore) scanUserRow(row *sql.Row, keyName, keyValue string) (*models.User, error) {
	var user models.User
	var name sql.NullString
	err := row.Scan(&user.ID, &user.PhoneNumber, &name, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore user not found", keyName, keyValue)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore user scan failed", "error", err, keyName, keyValue)
		return nil, fmt.Errorf("failed to scan user row: %w", err)
	}
	user.Name = name.String
	return &user, nil
}

// ListUsers returns all known users, oldest first.
func (s *PostgresStore) ListUsers() ([]models.User, error) {
	query := `SELECT id, phone_number, name, created_at, updated_at FROM users ORDER BY created_at`
	rows, err := s.db.Query(query)
	if err != nil {
		slog.Error("PostgresStore ListUsers failed", "error", err)
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

// SaveMessage stores a conversation message.
func (s *PostgresStore) SaveMessage(msg models.Message) error {
	query := `
		INSERT INTO messages (id, user_id, direction, type, content, provider_id, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.Exec(query, msg.ID, msg.UserID, string(msg.Direction), string(msg.Type),
		msg.Content, nilIfEmpty(msg.ProviderID), msg.Timestamp)
	if err != nil {
		slog.Error("PostgresStore SaveMessage failed", "error", err, "id", msg.ID, "userID", msg.UserID)
		return fmt.Errorf("failed to insert message for %s: %w", msg.UserID, err)
	}
	slog.Debug("PostgresStore SaveMessage succeeded", "id", msg.ID, "userID", msg.UserID, "direction", msg.Direction)
	return nil
}

// GetOutboundMessages returns all bot-authored messages for a user, oldest first.
func (s *PostgresStore) GetOutboundMessages(userID string) ([]models.Message, error) {
	query := `SELECT id, user_id, direction, type, content, provider_id, timestamp
			  FROM messages WHERE user_id = $1 AND direction = $2 ORDER BY timestamp ASC`

	rows, err := s.db.Query(query, userID, string(models.DirectionOutbound))
	if err != nil {
		slog.Error("PostgresStore GetOutboundMessages query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query outbound messages: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		slog.Error("PostgresStore GetOutboundMessages scan failed", "error", err, "userID", userID)
		return nil, err
	}
	slog.Debug("PostgresStore GetOutboundMessages succeeded", "userID", userID, "count", len(messages))
	return messages, nil
}

// CountOutboundMessages returns the number of bot-authored messages for a user.
func (s *PostgresStore) CountOutboundMessages(userID string) (int, error) {
	query := `SELECT COUNT(*) FROM messages WHERE user_id = $1 AND direction = $2`

	var count int
	if err := s.db.QueryRow(query, userID, string(models.DirectionOutbound)).Scan(&count); err != nil {
		slog.Error("PostgresStore CountOutboundMessages failed", "error", err, "userID", userID)
		return 0, fmt.Errorf("failed to count outbound messages: %w", err)
	}
	slog.Debug("PostgresStore CountOutboundMessages succeeded", "userID", userID, "count", count)
	return count, nil
}

// GetLastOutboundMessage returns the most recent bot-authored message for a user.
func (s *PostgresStore) GetLastOutboundMessage(userID string) (*models.Message, error) {
	query := `SELECT id, user_id, direction, type, content, provider_id, timestamp
			  FROM messages WHERE user_id = $1 AND direction = $2 ORDER BY timestamp DESC LIMIT 1`

	msg, err := scanMessageRow(s.db.QueryRow(query, userID, string(models.DirectionOutbound)))
	if err != nil {
		slog.Error("PostgresStore GetLastOutboundMessage failed", "error", err, "userID", userID)
		return nil, err
	}
	return msg, nil
}

// GetRecentMessages returns the most recent messages in both directions, oldest first.
func (s *PostgresStore) GetRecentMessages(userID string, limit int) ([]models.Message, error) {
	query := `SELECT id, user_id, direction, type, content, provider_id, timestamp
			  FROM messages WHERE user_id = $1 ORDER BY timestamp DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore GetRecentMessages query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query recent messages: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		slog.Error("PostgresStore GetRecentMessages scan failed", "error", err, "userID", userID)
		return nil, err
	}
	reverseMessages(messages)
	slog.Debug("PostgresStore GetRecentMessages succeeded", "userID", userID, "count", len(messages))
	return messages, nil
}

// GetConversationState retrieves the persisted phase row for a user.
func (s *PostgresStore) GetConversationState(userID string) (*models.ConversationState, error) {
	query := `SELECT user_id, current_phase, created_at, updated_at
			  FROM conversation_states WHERE user_id = $1`

	var state models.ConversationState
	var phase string
	err := s.db.QueryRow(query, userID).Scan(&state.UserID, &phase, &state.CreatedAt, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetConversationState not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetConversationState failed", "error", err, "userID", userID)
		return nil, err
	}
	state.CurrentPhase = models.Phase(phase)
	slog.Debug("PostgresStore GetConversationState found", "userID", userID, "phase", state.CurrentPhase)
	return &state, nil
}

// SaveConversationState stores or updates the persisted phase row.
func (s *PostgresStore) SaveConversationState(state models.ConversationState) error {
	query := `
		INSERT INTO conversation_states (user_id, current_phase, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			current_phase = EXCLUDED.current_phase,
			updated_at = EXCLUDED.updated_at`

	_, err := s.db.Exec(query, state.UserID, string(state.CurrentPhase), state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveConversationState failed", "error", err, "userID", state.UserID, "phase", state.CurrentPhase)
		return err
	}
	slog.Debug("PostgresStore SaveConversationState succeeded", "userID", state.UserID, "phase", state.CurrentPhase)
	return nil
}

// SaveGoal stores or updates a financial goal.
func (s *PostgresStore) SaveGoal(goal models.FinancialGoal) error {
	query := `
		INSERT INTO financial_goals (id, user_id, type, description, amount_cents, timeline_months, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			type = EXCLUDED.type,
			description = EXCLUDED.description,
			amount_cents = EXCLUDED.amount_cents,
			timeline_months = EXCLUDED.timeline_months,
			updated_at = EXCLUDED.updated_at`

	_, err := s.db.Exec(query, goal.ID, goal.UserID, string(goal.Type), goal.Description,
		goal.AmountCents, goal.TimelineMonths, goal.CreatedAt, goal.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveGoal failed", "error", err, "id", goal.ID, "userID", goal.UserID)
		return err
	}
	slog.Debug("PostgresStore SaveGoal succeeded", "id", goal.ID, "userID", goal.UserID)
	return nil
}

// GetGoalByUser retrieves a user's financial goal.
func (s *PostgresStore) GetGoalByUser(userID string) (*models.FinancialGoal, error) {
	query := `SELECT id, user_id, type, description, amount_cents, timeline_months, created_at, updated_at
			  FROM financial_goals WHERE user_id = $1`

	var goal models.FinancialGoal
	var goalType string
	var description sql.NullString
	err := s.db.QueryRow(query, userID).Scan(&goal.ID, &goal.UserID, &goalType, &description,
		&goal.AmountCents, &goal.TimelineMonths, &goal.CreatedAt, &goal.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetGoalByUser not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetGoalByUser failed", "error", err, "userID", userID)
		return nil, err
	}
	goal.Type = models.GoalType(goalType)
	goal.Description = description.String
	return &goal, nil
}

// SaveMonthlyExpenses stores or updates a monthly expense estimate.
func (s *PostgresStore) SaveMonthlyExpenses(expenses models.MonthlyExpenses) error {
	query := `
		INSERT INTO monthly_expenses (id, user_id, items, total_cents, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			items = EXCLUDED.items,
			total_cents = EXCLUDED.total_cents,
			updated_at = EXCLUDED.updated_at`

	var itemsJSON []byte
	var err error
	if len(expenses.Items) > 0 {
		itemsJSON, err = json.Marshal(expenses.Items)
		if err != nil {
			slog.Error("PostgresStore SaveMonthlyExpenses JSON marshal failed", "error", err, "userID", expenses.UserID)
			return err
		}
	}

	_, err = s.db.Exec(query, expenses.ID, expenses.UserID, itemsJSON, expenses.TotalCents,
		expenses.CreatedAt, expenses.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveMonthlyExpenses failed", "error", err, "id", expenses.ID, "userID", expenses.UserID)
		return err
	}
	slog.Debug("PostgresStore SaveMonthlyExpenses succeeded", "id", expenses.ID, "userID", expenses.UserID)
	return nil
}

// GetMonthlyExpensesByUser retrieves a user's monthly expense estimate.
func (s *PostgresStore) GetMonthlyExpensesByUser(userID string) (*models.MonthlyExpenses, error) {
	query := `SELECT id, user_id, items, total_cents, created_at, updated_at
			  FROM monthly_expenses WHERE user_id = $1`

	var expenses models.MonthlyExpenses
	var itemsJSON []byte
	err := s.db.QueryRow(query, userID).Scan(&expenses.ID, &expenses.UserID, &itemsJSON,
		&expenses.TotalCents, &expenses.CreatedAt, &expenses.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetMonthlyExpensesByUser not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetMonthlyExpensesByUser failed", "error", err, "userID", userID)
		return nil, err
	}

	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &expenses.Items); err != nil {
			slog.Error("PostgresStore GetMonthlyExpensesByUser JSON unmarshal failed", "error", err, "userID", userID)
			// Continue with empty items rather than failing
			expenses.Items = nil
		}
	}
	return &expenses, nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close PostgreSQL database", "error", err)
	}
	return err
}
