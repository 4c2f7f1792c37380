package conversation

import "testing"

func TestParseAmountCents(t *testing.T) {
	cases := []struct {
		text string
		want int64
		ok   bool
	}{
		{"R$ 1.234,56", 123456, true},
		{"R$1500", 150000, true},
		{"R$ 30.000,00 em um ano", 3000000, true},
		{"R$ 99,9", 9990, true},
		{"uns 10 mil", 1000000, true},
		{"não sei", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseAmountCents(tc.text)
		if ok != tc.ok || got != tc.want {
			t.Errorf("parseAmountCents(%q) = (%d, %v), want (%d, %v)", tc.text, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseTimelineMonths(t *testing.T) {
	cases := []struct {
		text string
		want int
		ok   bool
	}{
		{"em 6 meses", 6, true},
		{"1 mês", 1, true},
		{"daqui 2 anos", 24, true},
		{"1 ano", 12, true},
		{"sem prazo", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseTimelineMonths(tc.text)
		if ok != tc.ok || got != tc.want {
			t.Errorf("parseTimelineMonths(%q) = (%d, %v), want (%d, %v)", tc.text, got, ok, tc.want, tc.ok)
		}
	}
}

func TestExtractExpensesSkipsTotalAndNonAmountLines(t *testing.T) {
	reply := "Fechado, então essa é a estimativa dos seus custos mensais:\n" +
		"- moradia: R$ 1.500,00\n" +
		"- transporte: R$ 400,00\n" +
		"- lazer: depende do mês\n" +
		"- Total: R$ 1.900,00"

	expenses, ok := extractExpenses("u1", reply)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if len(expenses.Items) != 2 {
		t.Fatalf("expected 2 items, got %d: %+v", len(expenses.Items), expenses.Items)
	}
	if expenses.TotalCents != 190000 {
		t.Errorf("expected total 190000, got %d", expenses.TotalCents)
	}
}

func TestExtractGoalRequiresAmountAndTimeline(t *testing.T) {
	if _, ok := extractGoal("u1", "quitar minhas dívidas logo"); ok {
		t.Error("expected extraction to fail without amount and timeline")
	}
	goal, ok := extractGoal("u1", "quitar R$ 5.000,00 de dívidas em 8 meses")
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if goal.Type != "debt_payoff" {
		t.Errorf("expected debt_payoff, got %s", goal.Type)
	}
	if goal.AmountCents != 500000 || goal.TimelineMonths != 8 {
		t.Errorf("unexpected goal fields: %+v", goal)
	}
}
