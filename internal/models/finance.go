// Package models defines financial entities captured during onboarding.
package models

import (
	"errors"
	"time"
)

// GoalType classifies the user's primary financial goal.
type GoalType string

const (
	// GoalTypeEmergencyFund is a safety-reserve goal.
	GoalTypeEmergencyFund GoalType = "emergency_fund"
	// GoalTypePurchase is a planned purchase (house, car, trip).
	GoalTypePurchase GoalType = "purchase"
	// GoalTypeDebtPayoff is paying off outstanding debt.
	GoalTypeDebtPayoff GoalType = "debt_payoff"
	// GoalTypeInvestment is growing invested savings.
	GoalTypeInvestment GoalType = "investment"
	// GoalTypeOther covers goals that fit no named category.
	GoalTypeOther GoalType = "other"
)

// FinancialGoal is the single goal converged on during goal discovery.
// Amounts are stored in centavos to avoid floating point drift.
type FinancialGoal struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Type           GoalType  `json:"type"`
	Description    string    `json:"description"`
	AmountCents    int64     `json:"amount_cents"`
	TimelineMonths int       `json:"timeline_months"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Validate checks that a goal carries the three attributes goal discovery
// converges on: type, amount and timeline.
func (g *FinancialGoal) Validate() error {
	if g.UserID == "" {
		return ErrEmptyUserID
	}
	if g.Type == "" {
		return errors.New("goal type is required")
	}
	if g.AmountCents <= 0 {
		return errors.New("goal amount must be positive")
	}
	if g.TimelineMonths <= 0 {
		return errors.New("goal timeline must be positive")
	}
	return nil
}

// ExpenseEstimate is one category line of the monthly cost estimate.
type ExpenseEstimate struct {
	Category    string `json:"category"`
	AmountCents int64  `json:"amount_cents"`
}

// MonthlyExpenses is the per-user estimate assembled during the monthly
// expenses phase. Weekly amounts are normalized as weekly*4 and annual
// amounts as annual/12 before being recorded here.
type MonthlyExpenses struct {
	ID         string            `json:"id"`
	UserID     string            `json:"user_id"`
	Items      []ExpenseEstimate `json:"items"`
	TotalCents int64             `json:"total_cents"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Total recomputes the estimate total from its items.
func (e *MonthlyExpenses) Total() int64 {
	var total int64
	for _, item := range e.Items {
		total += item.AmountCents
	}
	return total
}
