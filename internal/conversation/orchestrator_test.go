package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/joselpq/whatsapp-integration-sub000/internal/advisor"
	"github.com/joselpq/whatsapp-integration-sub000/internal/models"
	"github.com/joselpq/whatsapp-integration-sub000/internal/store"
)

// mockSender records sends and optionally persists them as outbound turns,
// mirroring what the recording transport wrapper does in production.
type mockSender struct {
	sent    []string
	sendErr error
	store   *store.InMemoryStore
	userID  string
}

func (m *mockSender) SendMessage(ctx context.Context, to string, body string) (string, error) {
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.sent = append(m.sent, body)
	if m.store != nil {
		_ = m.store.SaveMessage(models.Message{
			ID:        fmt.Sprintf("out-%d", len(m.sent)),
			UserID:    m.userID,
			Direction: models.DirectionOutbound,
			Type:      models.MessageTypeText,
			Content:   body,
			Timestamp: time.Now(),
		})
		time.Sleep(time.Millisecond)
	}
	return fmt.Sprintf("prov-%d", len(m.sent)), nil
}

// mockAdvisor returns scripted replies in order, then repeats the last one.
type mockAdvisor struct {
	replies []string
	calls   int
}

func (m *mockAdvisor) GenerateReply(ctx context.Context, userID, userText string, variant advisor.Variant) (string, bool) {
	m.calls++
	if len(m.replies) == 0 {
		return advisor.FallbackReply, true
	}
	i := m.calls - 1
	if i >= len(m.replies) {
		i = len(m.replies) - 1
	}
	return m.replies[i], false
}

// spyHandler counts invocations.
type spyHandler struct {
	phase models.Phase
	calls int
}

func (s *spyHandler) Name() models.Phase { return s.phase }
func (s *spyHandler) Process(ctx context.Context, msg models.IncomingMessage) (models.PhaseResult, error) {
	s.calls++
	return models.PhaseResult{Processed: true, Phase: s.phase}, nil
}

func newTestOrchestrator(st *store.InMemoryStore, sender *mockSender, adv *mockAdvisor) *Orchestrator {
	detector := NewDetector(st)
	return NewOrchestrator(detector, st, sender,
		NewWelcomeHandler(sender),
		NewGoalDiscoveryHandler(detector, adv, sender, st),
		NewMonthlyExpensesHandler(adv, sender, st),
		NewCompleteHandler(),
	)
}

func inbound(userID, content string) models.IncomingMessage {
	return models.IncomingMessage{
		UserID:      userID,
		PhoneNumber: "+5511999990000",
		Content:     content,
		Type:        models.MessageTypeText,
		Timestamp:   time.Now(),
	}
}

func TestProcessMessageWelcomesNewUser(t *testing.T) {
	st := store.NewInMemoryStore()
	sender := &mockSender{store: st, userID: "u1"}
	orch := newTestOrchestrator(st, sender, &mockAdvisor{})

	result := orch.ProcessMessage(context.Background(), inbound("u1", "Oi"))

	if !result.Processed {
		t.Error("expected processed result")
	}
	if result.TransitionTo != models.PhaseGoalDiscovery {
		t.Errorf("expected transition to goal_discovery, got %q", result.TransitionTo)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected exactly one send, got %d", len(sender.sent))
	}
	if sender.sent[0] != WelcomeMessage {
		t.Errorf("expected fixed welcome text, got %q", sender.sent[0])
	}

	state, _ := st.GetConversationState("u1")
	if state == nil || state.CurrentPhase != models.PhaseGoalDiscovery {
		t.Errorf("expected persisted phase goal_discovery, got %+v", state)
	}
}

func TestProcessMessageRejectsNonText(t *testing.T) {
	st := store.NewInMemoryStore()
	sender := &mockSender{}
	detector := NewDetector(st)
	spies := []*spyHandler{
		{phase: models.PhaseWelcome},
		{phase: models.PhaseGoalDiscovery},
		{phase: models.PhaseMonthlyExpenses},
		{phase: models.PhaseComplete},
	}
	orch := NewOrchestrator(detector, st, sender, spies[0], spies[1], spies[2], spies[3])

	for _, mt := range []models.MessageType{models.MessageTypeImage, models.MessageTypeDocument, models.MessageTypeAudio, models.MessageTypeVideo} {
		msg := inbound("u1", "ignored")
		msg.Type = mt
		result := orch.ProcessMessage(context.Background(), msg)
		if result.Processed {
			t.Errorf("type %s: expected processed=false", mt)
		}
		if result.Reason != ReasonNonText {
			t.Errorf("type %s: expected reason %q, got %q", mt, ReasonNonText, result.Reason)
		}
	}

	// empty text is rejected the same way
	result := orch.ProcessMessage(context.Background(), inbound("u1", ""))
	if result.Processed || result.Reason != ReasonNonText {
		t.Errorf("empty content: expected non-text rejection, got %+v", result)
	}

	for _, spy := range spies {
		if spy.calls != 0 {
			t.Errorf("handler %s was invoked %d times for non-text input", spy.phase, spy.calls)
		}
	}
	if len(sender.sent) != 0 {
		t.Errorf("expected no sends, got %d", len(sender.sent))
	}
}

func TestGoalConfirmationTransitions(t *testing.T) {
	st := store.NewInMemoryStore()
	sender := &mockSender{store: st, userID: "u1"}
	orch := newTestOrchestrator(st, sender, &mockAdvisor{})

	// last bot turn asked the confirmation question
	seedOutbound(t, st, "u1",
		"Oi! Qual seu objetivo?",
		models.MarkerGoalProposal+" juntar R$ 30.000,00 de reserva de emergência em 12 meses. "+models.MarkerGoalConfirmQuestion,
	)

	result := orch.ProcessMessage(context.Background(), inbound("u1", "sim, perfeito"))

	if !result.GoalComplete {
		t.Error("expected goalComplete=true")
	}
	if result.TransitionTo != models.PhaseMonthlyExpenses {
		t.Errorf("expected transition to monthly_expenses, got %q", result.TransitionTo)
	}
	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], models.MarkerGoalComplete) {
		t.Errorf("expected transition text containing goal-complete marker, got %v", sender.sent)
	}

	// the confirmed proposal carried amount and timeline, so a structured
	// goal is captured
	goal, err := st.GetGoalByUser("u1")
	if err != nil {
		t.Fatalf("GetGoalByUser failed: %v", err)
	}
	if goal == nil {
		t.Fatal("expected captured goal")
	}
	if goal.Type != models.GoalTypeEmergencyFund {
		t.Errorf("expected emergency_fund goal, got %s", goal.Type)
	}
	if goal.AmountCents != 30000_00 {
		t.Errorf("expected 3000000 centavos, got %d", goal.AmountCents)
	}
	if goal.TimelineMonths != 12 {
		t.Errorf("expected 12 months, got %d", goal.TimelineMonths)
	}
}

func TestGoalRejectionDelegatesToAdvisor(t *testing.T) {
	st := store.NewInMemoryStore()
	sender := &mockSender{store: st, userID: "u1"}
	adv := &mockAdvisor{replies: []string{"Sem problema! O que você quer ajustar?"}}
	orch := newTestOrchestrator(st, sender, adv)

	seedOutbound(t, st, "u1", models.MarkerGoalConfirmQuestion)

	result := orch.ProcessMessage(context.Background(), inbound("u1", "não, quero mudar algo"))

	if result.GoalComplete {
		t.Error("expected goalComplete=false")
	}
	if result.TransitionTo != "" {
		t.Errorf("expected no transition, got %q", result.TransitionTo)
	}
	if adv.calls != 1 {
		t.Errorf("expected one advisor call, got %d", adv.calls)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "Sem problema! O que você quer ajustar?" {
		t.Errorf("expected advisor reply to be sent, got %v", sender.sent)
	}
}

func TestExpensesMarkerCompletesConversation(t *testing.T) {
	st := store.NewInMemoryStore()
	sender := &mockSender{store: st, userID: "u1"}
	summary := "Ok, " + models.MarkerExpensesComplete + "\n- moradia: R$ 1.500,00\n- alimentação: R$ 800,00\n- Total: R$ 2.300,00"
	adv := &mockAdvisor{replies: []string{summary}}
	orch := newTestOrchestrator(st, sender, adv)

	mustSaveState(t, st, "u1", models.PhaseMonthlyExpenses)

	result := orch.ProcessMessage(context.Background(), inbound("u1", "gasto 1500 de aluguel e 800 com comida"))

	if !result.ExpensesComplete {
		t.Error("expected expensesComplete=true")
	}
	if result.TransitionTo != models.PhaseComplete {
		t.Errorf("expected transition to complete, got %q", result.TransitionTo)
	}

	expenses, err := st.GetMonthlyExpensesByUser("u1")
	if err != nil {
		t.Fatalf("GetMonthlyExpensesByUser failed: %v", err)
	}
	if expenses == nil {
		t.Fatal("expected captured expense estimate")
	}
	if len(expenses.Items) != 2 {
		t.Fatalf("expected 2 items (total line skipped), got %d: %+v", len(expenses.Items), expenses.Items)
	}
	if expenses.TotalCents != 2300_00 {
		t.Errorf("expected total 230000 centavos, got %d", expenses.TotalCents)
	}
}

func TestCompletePhaseStaysSilent(t *testing.T) {
	st := store.NewInMemoryStore()
	sender := &mockSender{store: st, userID: "u1"}
	adv := &mockAdvisor{replies: []string{"should never be sent"}}
	orch := newTestOrchestrator(st, sender, adv)

	mustSaveState(t, st, "u1", models.PhaseComplete)

	for _, content := range []string{"oi", "e agora?", "sim"} {
		result := orch.ProcessMessage(context.Background(), inbound("u1", content))
		if result.Processed {
			t.Errorf("content %q: expected processed=false in terminal phase", content)
		}
		if result.Reason != "conversation_complete" {
			t.Errorf("content %q: expected reason conversation_complete, got %q", content, result.Reason)
		}
	}
	if len(sender.sent) != 0 {
		t.Errorf("expected no sends in terminal phase, got %d", len(sender.sent))
	}
	if adv.calls != 0 {
		t.Errorf("expected no advisor calls in terminal phase, got %d", adv.calls)
	}
}

func TestHandlerFailureSendsApology(t *testing.T) {
	st := store.NewInMemoryStore()
	// the welcome send fails, then the apology send succeeds
	sender := &mockSender{sendErr: errors.New("transport down")}
	orch := newTestOrchestrator(st, sender, &mockAdvisor{})

	result := orch.ProcessMessage(context.Background(), inbound("u1", "Oi"))

	if result.Processed {
		t.Error("expected processed=false on handler failure")
	}
	if result.Phase != models.PhaseError {
		t.Errorf("expected phase error, got %q", result.Phase)
	}
	if result.Error == "" {
		t.Error("expected error detail in result")
	}
}

func TestApologySendFailureIsSwallowed(t *testing.T) {
	st := store.NewInMemoryStore()
	sender := &mockSender{sendErr: errors.New("transport down")}
	orch := newTestOrchestrator(st, sender, &mockAdvisor{})

	// must not panic or propagate despite both sends failing
	result := orch.ProcessMessage(context.Background(), inbound("u1", "Oi"))
	if result.Phase != models.PhaseError {
		t.Errorf("expected phase error, got %q", result.Phase)
	}
}

// TestFullConversationNeverRegresses drives a whole onboarding conversation
// through the orchestrator and checks the detected phase is monotonic.
func TestFullConversationNeverRegresses(t *testing.T) {
	st := store.NewInMemoryStore()
	sender := &mockSender{store: st, userID: "u1"}
	adv := &mockAdvisor{replies: []string{
		models.MarkerGoalProposal + " juntar R$ 10.000,00 em 10 meses. " + models.MarkerGoalConfirmQuestion,
		"Quanto você gasta com moradia?",
		"Ok, " + models.MarkerExpensesComplete + "\n- moradia: R$ 1.000,00",
	}}
	orch := newTestOrchestrator(st, sender, adv)
	detector := NewDetector(st)

	rank := map[models.Phase]int{
		models.PhaseWelcome:         0,
		models.PhaseGoalDiscovery:   1,
		models.PhaseMonthlyExpenses: 2,
		models.PhaseComplete:        3,
	}

	inputs := []string{
		"Oi",                      // welcome -> goal_discovery
		"quero juntar 10 mil",     // advisor proposes goal
		"sim",                     // confirmation -> monthly_expenses
		"gasto mil com aluguel",   // advisor asks categories
		"só isso mesmo",           // advisor emits summary -> complete
		"obrigado",                // terminal silence
	}
	last := 0
	for _, content := range inputs {
		orch.ProcessMessage(context.Background(), inbound("u1", content))
		phase := detector.DetectPhase("u1")
		if rank[phase] < last {
			t.Fatalf("phase regressed to %s after %q", phase, content)
		}
		last = rank[phase]
	}
	if final := detector.DetectPhase("u1"); final != models.PhaseComplete {
		t.Errorf("expected final phase complete, got %s", final)
	}
}

func seedOutbound(t *testing.T, st *store.InMemoryStore, userID string, contents ...string) {
	t.Helper()
	for i, content := range contents {
		if err := st.SaveMessage(models.Message{
			ID:        fmt.Sprintf("seed-%d", i),
			UserID:    userID,
			Direction: models.DirectionOutbound,
			Type:      models.MessageTypeText,
			Content:   content,
			Timestamp: time.Now().Add(time.Duration(i) * time.Millisecond),
		}); err != nil {
			t.Fatalf("SaveMessage failed: %v", err)
		}
	}
}

func mustSaveState(t *testing.T, st *store.InMemoryStore, userID string, phase models.Phase) {
	t.Helper()
	if err := st.SaveConversationState(models.ConversationState{UserID: userID, CurrentPhase: phase}); err != nil {
		t.Fatalf("SaveConversationState failed: %v", err)
	}
}
