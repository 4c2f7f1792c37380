// Package store provides storage backends for the financial assistant.
//
// This file implements an SQLite-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/joselpq/whatsapp-integration-sub000/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	slog.Debug("Opening SQLite database connection")
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// SaveUser stores or updates a user.
func (s *SQLiteStore) SaveUser(user models.User) error {
	query := `
		INSERT OR REPLACE INTO users (id, phone_number, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query, user.ID, user.PhoneNumber, user.Name, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveUser failed", "error", err, "id", user.ID)
		return fmt.Errorf("failed to save user %s: %w", user.ID, err)
	}
	slog.Debug("SQLiteStore SaveUser succeeded", "id", user.ID, "phone", user.PhoneNumber)
	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(id string) (*models.User, error) {
	query := `SELECT id, phone_number, name, created_at, updated_at FROM users WHERE id = ?`
	return s.scanUserRow(s.db.QueryRow(query, id), "id", id)
}

// GetUserByPhone retrieves a user by phone number.
func (s *SQLiteStore) GetUserByPhone(phoneNumber string) (*models.User, error) {
	query := `SELECT id, phone_number, name, created_at, updated_at FROM users WHERE phone_number = ?`
	return s.scanUserRow(s.db.QueryRow(query, phoneNumber), "phone", phoneNumber)
}

func (s *SQLiteStore) scanUserRow(row *sql.Row, keyName, keyValue string) (*models.User, error) {
	var user models.User
	var name sql.NullString
	err := row.Scan(&user.ID, &user.PhoneNumber, &name, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore user not found", keyName, keyValue)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore user scan failed", "error", err, keyName, keyValue)
		return nil, fmt.Errorf("failed to scan user row: %w", err)
	}
	user.Name = name.String
	return &user, nil
}

// ListUsers returns all known users, oldest first.
func (s *SQLiteStore) ListUsers() ([]models.User, error) {
	query := `SELECT id, phone_number, name, created_at, updated_at FROM users ORDER BY created_at`
	rows, err := s.db.Query(query)
	if err != nil {
		slog.Error("SQLiteStore ListUsers failed", "error", err)
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

// SaveMessage stores a conversation message.
func (s *SQLiteStore) SaveMessage(msg models.Message) error {
	query := `
		INSERT INTO messages (id, user_id, direction, type, content, provider_id, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query, msg.ID, msg.UserID, string(msg.Direction), string(msg.Type),
		msg.Content, nilIfEmpty(msg.ProviderID), msg.Timestamp)
	if err != nil {
		slog.Error("SQLiteStore SaveMessage failed", "error", err, "id", msg.ID, "userID", msg.UserID)
		return fmt.Errorf("failed to insert message for %s: %w", msg.UserID, err)
	}
	slog.Debug("SQLiteStore SaveMessage succeeded", "id", msg.ID, "userID", msg.UserID, "direction", msg.Direction)
	return nil
}

// GetOutboundMessages returns all bot-authored messages for a user, oldest first.
func (s *SQLiteStore) GetOutboundMessages(userID string) ([]models.Message, error) {
	query := `SELECT id, user_id, direction, type, content, provider_id, timestamp
			  FROM messages WHERE user_id = ? AND direction = ? ORDER BY timestamp ASC`

	rows, err := s.db.Query(query, userID, string(models.DirectionOutbound))
	if err != nil {
		slog.Error("SQLiteStore GetOutboundMessages query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query outbound messages: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		slog.Error("SQLiteStore GetOutboundMessages scan failed", "error", err, "userID", userID)
		return nil, err
	}
	slog.Debug("SQLiteStore GetOutboundMessages succeeded", "userID", userID, "count", len(messages))
	return messages, nil
}

// CountOutboundMessages returns the number of bot-authored messages for a user.
func (s *SQLiteStore) CountOutboundMessages(userID string) (int, error) {
	query := `SELECT COUNT(*) FROM messages WHERE user_id = ? AND direction = ?`

	var count int
	if err := s.db.QueryRow(query, userID, string(models.DirectionOutbound)).Scan(&count); err != nil {
		slog.Error("SQLiteStore CountOutboundMessages failed", "error", err, "userID", userID)
		return 0, fmt.Errorf("failed to count outbound messages: %w", err)
	}
	slog.Debug("SQLiteStore CountOutboundMessages succeeded", "userID", userID, "count", count)
	return count, nil
}

// GetLastOutboundMessage returns the most recent bot-authored message for a user.
func (s *SQLiteStore) GetLastOutboundMessage(userID string) (*models.Message, error) {
	query := `SELECT id, user_id, direction, type, content, provider_id, timestamp
			  FROM messages WHERE user_id = ? AND direction = ? ORDER BY timestamp DESC LIMIT 1`

	msg, err := scanMessageRow(s.db.QueryRow(query, userID, string(models.DirectionOutbound)))
	if err != nil {
		slog.Error("SQLiteStore GetLastOutboundMessage failed", "error", err, "userID", userID)
		return nil, err
	}
	return msg, nil
}

// GetRecentMessages returns the most recent messages in both directions, oldest first.
func (s *SQLiteStore) GetRecentMessages(userID string, limit int) ([]models.Message, error) {
	query := `SELECT id, user_id, direction, type, content, provider_id, timestamp
			  FROM messages WHERE user_id = ? ORDER BY timestamp DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore GetRecentMessages query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query recent messages: %w", err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		slog.Error("SQLiteStore GetRecentMessages scan failed", "error", err, "userID", userID)
		return nil, err
	}
	reverseMessages(messages)
	slog.Debug("SQLiteStore GetRecentMessages succeeded", "userID", userID, "count", len(messages))
	return messages, nil
}

// GetConversationState retrieves the persisted phase row for a user.
func (s *SQLiteStore) GetConversationState(userID string) (*models.ConversationState, error) {
	query := `SELECT user_id, current_phase, created_at, updated_at
			  FROM conversation_states WHERE user_id = ?`

	var state models.ConversationState
	var phase string
	err := s.db.QueryRow(query, userID).Scan(&state.UserID, &phase, &state.CreatedAt, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetConversationState not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetConversationState failed", "error", err, "userID", userID)
		return nil, err
	}
	state.CurrentPhase = models.Phase(phase)
	slog.Debug("SQLiteStore GetConversationState found", "userID", userID, "phase", state.CurrentPhase)
	return &state, nil
}

// SaveConversationState stores or updates the persisted phase row.
func (s *SQLiteStore) SaveConversationState(state models.ConversationState) error {
	query := `
		INSERT OR REPLACE INTO conversation_states (user_id, current_phase, created_at, updated_at)
		VALUES (?, ?, ?, ?)`

	_, err := s.db.Exec(query, state.UserID, string(state.CurrentPhase), state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveConversationState failed", "error", err, "userID", state.UserID, "phase", state.CurrentPhase)
		return err
	}
	slog.Debug("SQLiteStore SaveConversationState succeeded", "userID", state.UserID, "phase", state.CurrentPhase)
	return nil
}

// SaveGoal stores or updates a financial goal.
func (s *SQLiteStore) SaveGoal(goal models.FinancialGoal) error {
	query := `
		INSERT OR REPLACE INTO financial_goals (id, user_id, type, description, amount_cents, timeline_months, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query, goal.ID, goal.UserID, string(goal.Type), goal.Description,
		goal.AmountCents, goal.TimelineMonths, goal.CreatedAt, goal.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveGoal failed", "error", err, "id", goal.ID, "userID", goal.UserID)
		return err
	}
	slog.Debug("SQLiteStore SaveGoal succeeded", "id", goal.ID, "userID", goal.UserID)
	return nil
}

// GetGoalByUser retrieves a user's financial goal.
func (s *SQLiteStore) GetGoalByUser(userID string) (*models.FinancialGoal, error) {
	query := `SELECT id, user_id, type, description, amount_cents, timeline_months, created_at, updated_at
			  FROM financial_goals WHERE user_id = ?`

	var goal models.FinancialGoal
	var goalType string
	var description sql.NullString
	err := s.db.QueryRow(query, userID).Scan(&goal.ID, &goal.UserID, &goalType, &description,
		&goal.AmountCents, &goal.TimelineMonths, &goal.CreatedAt, &goal.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetGoalByUser not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetGoalByUser failed", "error", err, "userID", userID)
		return nil, err
	}
	goal.Type = models.GoalType(goalType)
	goal.Description = description.String
	return &goal, nil
}

// SaveMonthlyExpenses stores or updates a monthly expense estimate.
func (s *SQLiteStore) SaveMonthlyExpenses(expenses models.MonthlyExpenses) error {
	query := `
		INSERT OR REPLACE INTO monthly_expenses (id, user_id, items, total_cents, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	var itemsJSON string
	if len(expenses.Items) > 0 {
		jsonBytes, err := json.Marshal(expenses.Items)
		if err != nil {
			slog.Error("SQLiteStore SaveMonthlyExpenses JSON marshal failed", "error", err, "userID", expenses.UserID)
			return err
		}
		itemsJSON = string(jsonBytes)
	}

	_, err := s.db.Exec(query, expenses.ID, expenses.UserID, itemsJSON, expenses.TotalCents,
		expenses.CreatedAt, expenses.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveMonthlyExpenses failed", "error", err, "id", expenses.ID, "userID", expenses.UserID)
		return err
	}
	slog.Debug("SQLiteStore SaveMonthlyExpenses succeeded", "id", expenses.ID, "userID", expenses.UserID)
	return nil
}

// GetMonthlyExpensesByUser retrieves a user's monthly expense estimate.
func (s *SQLiteStore) GetMonthlyExpensesByUser(userID string) (*models.MonthlyExpenses, error) {
	query := `SELECT id, user_id, items, total_cents, created_at, updated_at
			  FROM monthly_expenses WHERE user_id = ?`

	var expenses models.MonthlyExpenses
	var itemsJSON sql.NullString
	err := s.db.QueryRow(query, userID).Scan(&expenses.ID, &expenses.UserID, &itemsJSON,
		&expenses.TotalCents, &expenses.CreatedAt, &expenses.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetMonthlyExpensesByUser not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetMonthlyExpensesByUser failed", "error", err, "userID", userID)
		return nil, err
	}

	if itemsJSON.Valid && itemsJSON.String != "" {
		if err := json.Unmarshal([]byte(itemsJSON.String), &expenses.Items); err != nil {
			slog.Error("SQLiteStore GetMonthlyExpensesByUser JSON unmarshal failed", "error", err, "userID", userID)
			// Continue with empty items rather than failing
			expenses.Items = nil
		}
	}
	return &expenses, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
