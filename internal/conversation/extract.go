package conversation

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joselpq/whatsapp-integration-sub000/internal/models"
	"github.com/joselpq/whatsapp-integration-sub000/internal/util"
)

// Best-effort extraction of structured goal and expense records from
// bot-authored summary text. Extraction failures never affect dispatch;
// callers persist only when extraction succeeds.

var (
	amountRe   = regexp.MustCompile(`R\$\s*([0-9][0-9.]*)(?:,([0-9]{1,2}))?`)
	milRe      = regexp.MustCompile(`(?i)([0-9]+)\s*mil\b`)
	timelineRe = regexp.MustCompile(`(?i)([0-9]+)\s*(meses|mês|mes|anos|ano)`)
)

// parseAmountCents extracts the first Brazilian-formatted currency amount
// ("R$ 1.234,56") from the text, in centavos.
func parseAmountCents(text string) (int64, bool) {
	if m := amountRe.FindStringSubmatch(text); m != nil {
		whole, err := strconv.ParseInt(strings.ReplaceAll(m[1], ".", ""), 10, 64)
		if err != nil {
			return 0, false
		}
		cents := whole * 100
		if m[2] != "" {
			frac, _ := strconv.Atoi(m[2])
			if len(m[2]) == 1 {
				frac *= 10
			}
			cents += int64(frac)
		}
		return cents, true
	}
	if m := milRe.FindStringSubmatch(text); m != nil {
		thousands, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, false
		}
		return thousands * 1000 * 100, true
	}
	return 0, false
}

// parseTimelineMonths extracts the first duration ("6 meses", "2 anos")
// from the text, in months.
func parseTimelineMonths(text string) (int, bool) {
	m := timelineRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	unit := strings.ToLower(m[2])
	if strings.HasPrefix(unit, "ano") {
		n *= 12
	}
	return n, true
}

func goalTypeFor(text string) models.GoalType {
	lowered := strings.ToLower(text)
	switch {
	case strings.Contains(lowered, "emergência") || strings.Contains(lowered, "emergencia") || strings.Contains(lowered, "reserva"):
		return models.GoalTypeEmergencyFund
	case strings.Contains(lowered, "dívida") || strings.Contains(lowered, "divida") || strings.Contains(lowered, "quitar"):
		return models.GoalTypeDebtPayoff
	case strings.Contains(lowered, "investi"):
		return models.GoalTypeInvestment
	case strings.Contains(lowered, "compra") || strings.Contains(lowered, "casa") || strings.Contains(lowered, "carro") || strings.Contains(lowered, "viagem"):
		return models.GoalTypePurchase
	default:
		return models.GoalTypeOther
	}
}

// extractGoal builds a FinancialGoal from a confirmed goal proposal. It only
// succeeds when both an amount and a timeline can be parsed from the text.
func extractGoal(userID, proposal string) (*models.FinancialGoal, bool) {
	amount, ok := parseAmountCents(proposal)
	if !ok {
		return nil, false
	}
	timeline, ok := parseTimelineMonths(proposal)
	if !ok {
		return nil, false
	}
	now := time.Now().UTC()
	return &models.FinancialGoal{
		ID:             util.NewGoalID(),
		UserID:         userID,
		Type:           goalTypeFor(proposal),
		Description:    strings.TrimSpace(proposal),
		AmountCents:    amount,
		TimelineMonths: timeline,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, true
}

// extractExpenses builds a MonthlyExpenses record from an expense summary
// reply, reading one "category: R$ amount" line per estimate. Lines labeled
// as totals are skipped; the total is recomputed from the items.
func extractExpenses(userID, reply string) (*models.MonthlyExpenses, bool) {
	var items []models.ExpenseEstimate
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*•"))
		category, rest, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		category = strings.TrimSpace(category)
		if category == "" || strings.Contains(strings.ToLower(category), "total") {
			continue
		}
		amount, ok := parseAmountCents(rest)
		if !ok {
			continue
		}
		items = append(items, models.ExpenseEstimate{Category: category, AmountCents: amount})
	}
	if len(items) == 0 {
		return nil, false
	}
	now := time.Now().UTC()
	expenses := &models.MonthlyExpenses{
		ID:        util.NewExpensesID(),
		UserID:    userID,
		Items:     items,
		CreatedAt: now,
		UpdatedAt: now,
	}
	expenses.TotalCents = expenses.Total()
	return expenses, true
}
