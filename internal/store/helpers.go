package store

import (
	"database/sql"
	"fmt"

	"github.com/joselpq/whatsapp-integration-sub000/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanUsers scans all rows into users.
func scanUsers(rows *sql.Rows) ([]models.User, error) {
	var users []models.User
	for rows.Next() {
		var user models.User
		var name sql.NullString
		if err := rows.Scan(&user.ID, &user.PhoneNumber, &name, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user failed: %w", err)
		}
		user.Name = name.String
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows failed: %w", err)
	}
	return users, nil
}

// scanMessages scans all rows into messages.
func scanMessages(rows *sql.Rows) ([]models.Message, error) {
	var messages []models.Message
	for rows.Next() {
		var m models.Message
		var direction, msgType string
		var providerID sql.NullString
		err := rows.Scan(&m.ID, &m.UserID, &direction, &msgType, &m.Content, &providerID, &m.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("scan message failed: %w", err)
		}
		m.Direction = models.MessageDirection(direction)
		m.Type = models.MessageType(msgType)
		m.ProviderID = providerID.String
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows failed: %w", err)
	}
	return messages, nil
}

// scanMessageRow scans a message from a single sql.Row. Returns nil when the
// row does not exist.
func scanMessageRow(row *sql.Row) (*models.Message, error) {
	var m models.Message
	var direction, msgType string
	var providerID sql.NullString
	err := row.Scan(&m.ID, &m.UserID, &direction, &msgType, &m.Content, &providerID, &m.Timestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan message failed: %w", err)
	}
	m.Direction = models.MessageDirection(direction)
	m.Type = models.MessageType(msgType)
	m.ProviderID = providerID.String
	return &m, nil
}

// reverseMessages reverses a message slice in place. Used to flip DESC query
// results into chronological order.
func reverseMessages(messages []models.Message) {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
}
