package store

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/joselpq/whatsapp-integration-sub000/internal/models"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresStoreWithDB(db), mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresSaveUser(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO users").
		WithArgs("u1", "+5511999990000", "Maria", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := st.SaveUser(models.User{ID: "u1", PhoneNumber: "+5511999990000", Name: "Maria"})
	if err != nil {
		t.Fatalf("SaveUser failed: %v", err)
	}
	expectationsMet(t, mock)
}

func TestPostgresGetUserByPhoneNotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, phone_number, name, created_at, updated_at FROM users WHERE phone_number").
		WithArgs("+5511999990000").
		WillReturnRows(sqlmock.NewRows([]string{"id", "phone_number", "name", "created_at", "updated_at"}))

	user, err := st.GetUserByPhone("+5511999990000")
	if err != nil {
		t.Fatalf("GetUserByPhone failed: %v", err)
	}
	if user != nil {
		t.Errorf("expected nil user for no rows, got %+v", user)
	}
	expectationsMet(t, mock)
}

func TestPostgresGetUserNullName(t *testing.T) {
	st, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery("SELECT id, phone_number, name, created_at, updated_at FROM users WHERE id").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "phone_number", "name", "created_at", "updated_at"}).
			AddRow("u1", "+5511999990000", nil, now, now))

	user, err := st.GetUser("u1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user == nil || user.Name != "" {
		t.Errorf("expected empty name for NULL column, got %+v", user)
	}
	expectationsMet(t, mock)
}

func TestPostgresCountOutboundMessages(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM messages").
		WithArgs("u1", string(models.DirectionOutbound)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := st.CountOutboundMessages("u1")
	if err != nil {
		t.Fatalf("CountOutboundMessages failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected count 3, got %d", count)
	}
	expectationsMet(t, mock)
}

func TestPostgresGetLastOutboundMessageNotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("FROM messages WHERE user_id").
		WithArgs("u1", string(models.DirectionOutbound)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "direction", "type", "content", "provider_id", "timestamp"}))

	msg, err := st.GetLastOutboundMessage("u1")
	if err != nil {
		t.Fatalf("GetLastOutboundMessage failed: %v", err)
	}
	if msg != nil {
		t.Errorf("expected nil message for no rows, got %+v", msg)
	}
	expectationsMet(t, mock)
}

func TestPostgresGetRecentMessagesReversesOrder(t *testing.T) {
	st, mock := newMockStore(t)
	now := time.Now()

	// the query returns newest first; the store flips to chronological
	mock.ExpectQuery("FROM messages WHERE user_id").
		WithArgs("u1", 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "direction", "type", "content", "provider_id", "timestamp"}).
			AddRow("m2", "u1", "inbound", "text", "depois", nil, now).
			AddRow("m1", "u1", "outbound", "text", "antes", "wamid.1", now.Add(-time.Minute)))

	msgs, err := st.GetRecentMessages("u1", 2)
	if err != nil {
		t.Fatalf("GetRecentMessages failed: %v", err)
	}
	if len(msgs) != 2 || msgs[0].ID != "m1" || msgs[1].ID != "m2" {
		t.Errorf("expected chronological order, got %+v", msgs)
	}
	if msgs[0].ProviderID != "wamid.1" || msgs[1].ProviderID != "" {
		t.Errorf("unexpected provider IDs: %+v", msgs)
	}
	expectationsMet(t, mock)
}

func TestPostgresConversationStateRoundTrip(t *testing.T) {
	st, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectExec("INSERT INTO conversation_states").
		WithArgs("u1", string(models.PhaseMonthlyExpenses), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM conversation_states WHERE user_id").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "current_phase", "created_at", "updated_at"}).
			AddRow("u1", "monthly_expenses", now, now))

	if err := st.SaveConversationState(models.ConversationState{UserID: "u1", CurrentPhase: models.PhaseMonthlyExpenses}); err != nil {
		t.Fatalf("SaveConversationState failed: %v", err)
	}
	state, err := st.GetConversationState("u1")
	if err != nil {
		t.Fatalf("GetConversationState failed: %v", err)
	}
	if state == nil || state.CurrentPhase != models.PhaseMonthlyExpenses {
		t.Errorf("unexpected state %+v", state)
	}
	expectationsMet(t, mock)
}

func TestPostgresSaveMonthlyExpensesMarshalsItems(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO monthly_expenses").
		WithArgs("e1", "u1", []byte(`[{"category":"moradia","amount_cents":150000}]`), int64(150000), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := st.SaveMonthlyExpenses(models.MonthlyExpenses{
		ID: "e1", UserID: "u1",
		Items:      []models.ExpenseEstimate{{Category: "moradia", AmountCents: 1500_00}},
		TotalCents: 1500_00,
	})
	if err != nil {
		t.Fatalf("SaveMonthlyExpenses failed: %v", err)
	}
	expectationsMet(t, mock)
}
