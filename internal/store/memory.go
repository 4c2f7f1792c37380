// Package store provides storage backends for the financial assistant.
//
// This file implements an in-memory store used by tests and local development.
package store

import (
	"sort"
	"sync"

	"github.com/joselpq/whatsapp-integration-sub000/internal/models"
)

// InMemoryStore is a thread-safe in-memory implementation of Store.
type InMemoryStore struct {
	mu       sync.RWMutex
	users    map[string]models.User // keyed by user ID
	messages []models.Message
	states   map[string]models.ConversationState // keyed by user ID
	goals    map[string]models.FinancialGoal     // keyed by user ID
	expenses map[string]models.MonthlyExpenses   // keyed by user ID
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:    make(map[string]models.User),
		states:   make(map[string]models.ConversationState),
		goals:    make(map[string]models.FinancialGoal),
		expenses: make(map[string]models.MonthlyExpenses),
	}
}

// SaveUser stores or updates a user.
func (s *InMemoryStore) SaveUser(user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	return nil
}

// GetUser retrieves a user by ID.
func (s *InMemoryStore) GetUser(id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.users[id]; ok {
		return &user, nil
	}
	return nil, nil
}

// GetUserByPhone retrieves a user by phone number.
func (s *InMemoryStore) GetUserByPhone(phoneNumber string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.PhoneNumber == phoneNumber {
			u := user
			return &u, nil
		}
	}
	return nil, nil
}

// ListUsers returns all known users.
func (s *InMemoryStore) ListUsers() ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]models.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

// SaveMessage stores a conversation message.
func (s *InMemoryStore) SaveMessage(msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

func (s *InMemoryStore) userMessages(userID string, direction models.MessageDirection, both bool) []models.Message {
	var out []models.Message
	for _, m := range s.messages {
		if m.UserID != userID {
			continue
		}
		if both || m.Direction == direction {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// GetOutboundMessages returns all bot-authored messages for a user, oldest first.
func (s *InMemoryStore) GetOutboundMessages(userID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userMessages(userID, models.DirectionOutbound, false), nil
}

// CountOutboundMessages returns the number of bot-authored messages for a user.
func (s *InMemoryStore) CountOutboundMessages(userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.userMessages(userID, models.DirectionOutbound, false)), nil
}

// GetLastOutboundMessage returns the most recent bot-authored message for a user.
func (s *InMemoryStore) GetLastOutboundMessage(userID string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.userMessages(userID, models.DirectionOutbound, false)
	if len(msgs) == 0 {
		return nil, nil
	}
	last := msgs[len(msgs)-1]
	return &last, nil
}

// GetRecentMessages returns the most recent messages in both directions, oldest first.
func (s *InMemoryStore) GetRecentMessages(userID string, limit int) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.userMessages(userID, "", true)
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// GetConversationState retrieves the persisted phase row for a user.
func (s *InMemoryStore) GetConversationState(userID string) (*models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if state, ok := s.states[userID]; ok {
		return &state, nil
	}
	return nil, nil
}

// SaveConversationState stores or updates the persisted phase row.
func (s *InMemoryStore) SaveConversationState(state models.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.UserID] = state
	return nil
}

// SaveGoal stores or updates a financial goal.
func (s *InMemoryStore) SaveGoal(goal models.FinancialGoal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals[goal.UserID] = goal
	return nil
}

// GetGoalByUser retrieves a user's financial goal.
func (s *InMemoryStore) GetGoalByUser(userID string) (*models.FinancialGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if goal, ok := s.goals[userID]; ok {
		return &goal, nil
	}
	return nil, nil
}

// SaveMonthlyExpenses stores or updates a monthly expense estimate.
func (s *InMemoryStore) SaveMonthlyExpenses(expenses models.MonthlyExpenses) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses[expenses.UserID] = expenses
	return nil
}

// GetMonthlyExpensesByUser retrieves a user's monthly expense estimate.
func (s *InMemoryStore) GetMonthlyExpensesByUser(userID string) (*models.MonthlyExpenses, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if expenses, ok := s.expenses[userID]; ok {
		return &expenses, nil
	}
	return nil, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
