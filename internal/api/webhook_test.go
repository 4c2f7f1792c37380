package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/joselpq/whatsapp-integration-sub000/internal/dedup"
	"github.com/joselpq/whatsapp-integration-sub000/internal/metrics"
	"github.com/joselpq/whatsapp-integration-sub000/internal/models"
	"github.com/joselpq/whatsapp-integration-sub000/internal/store"
	"github.com/joselpq/whatsapp-integration-sub000/internal/testutil"
)

// mockEngine records dispatched messages and returns a scripted result.
type mockEngine struct {
	received []models.IncomingMessage
	result   models.PhaseResult
}

func (m *mockEngine) ProcessMessage(ctx context.Context, msg models.IncomingMessage) models.PhaseResult {
	m.received = append(m.received, msg)
	return m.result
}

func newTestServer(engine *mockEngine) (*Server, *store.InMemoryStore) {
	st := store.NewInMemoryStore()
	srv := NewServer(st, engine, nil, dedup.NewMemoryDeduplicator(), metrics.New(), nil,
		WithVerifyToken("secret-token"))
	return srv, st
}

func textPayload(from, messageID, body string) map[string]any {
	return map[string]any{
		"object": "whatsapp_business_account",
		"entry": []map[string]any{{
			"id": "entry-1",
			"changes": []map[string]any{{
				"field": "messages",
				"value": map[string]any{
					"messaging_product": "whatsapp",
					"metadata":          map[string]any{"phone_number_id": "pn-1"},
					"contacts": []map[string]any{{
						"wa_id":   from,
						"profile": map[string]any{"name": "Maria"},
					}},
					"messages": []map[string]any{{
						"from":      from,
						"id":        messageID,
						"timestamp": fmt.Sprintf("%d", time.Now().Unix()),
						"type":      "text",
						"text":      map[string]any{"body": body},
					}},
				},
			}},
		}},
	}
}

func TestWebhookVerifyHandshake(t *testing.T) {
	srv, _ := newTestServer(&mockEngine{})
	router := srv.Router()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=secret-token&hub.challenge=12345", nil)
	router.ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "valid handshake")
	if rr.Body.String() != "12345" {
		t.Errorf("expected challenge echoed, got %q", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	router.ServeHTTP(rr, req)
	testutil.AssertHTTPStatus(t, http.StatusForbidden, rr.Code, "bad token")
}

func TestWebhookDispatchesTextMessage(t *testing.T) {
	engine := &mockEngine{result: models.PhaseResult{Processed: true, Phase: models.PhaseWelcome, TransitionTo: models.PhaseGoalDiscovery}}
	srv, st := newTestServer(engine)
	router := srv.Router()

	rr := httptest.NewRecorder()
	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/webhook", textPayload("5511999990000", "wamid.1", "Oi"))
	router.ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "webhook post")
	testutil.AssertJSONResponse(t, rr, "ok")

	if len(engine.received) != 1 {
		t.Fatalf("expected one dispatched message, got %d", len(engine.received))
	}
	dispatched := engine.received[0]
	if dispatched.Content != "Oi" || dispatched.Type != models.MessageTypeText {
		t.Errorf("unexpected dispatched message: %+v", dispatched)
	}
	if dispatched.PhoneNumber != "+5511999990000" {
		t.Errorf("expected E.164 phone, got %q", dispatched.PhoneNumber)
	}

	// user created on first contact, inbound turn persisted
	user, err := st.GetUserByPhone("+5511999990000")
	if err != nil || user == nil {
		t.Fatalf("expected user created, got %v, %v", user, err)
	}
	if user.Name != "Maria" {
		t.Errorf("expected contact name captured, got %q", user.Name)
	}
	history, _ := st.GetRecentMessages(user.ID, 0)
	if len(history) != 1 || history[0].Direction != models.DirectionInbound {
		t.Errorf("expected one persisted inbound turn, got %+v", history)
	}
}

func TestWebhookDropsDuplicateDeliveries(t *testing.T) {
	engine := &mockEngine{result: models.PhaseResult{Processed: true}}
	srv, _ := newTestServer(engine)
	router := srv.Router()

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		req := testutil.CreateHTTPRequest(t, http.MethodPost, "/webhook", textPayload("5511999990000", "wamid.dup", "Oi"))
		router.ServeHTTP(rr, req)
		testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "webhook post")
	}

	if len(engine.received) != 1 {
		t.Errorf("expected duplicate delivery dropped, engine saw %d messages", len(engine.received))
	}
}

func TestWebhookIgnoresStatusOnlyPayload(t *testing.T) {
	engine := &mockEngine{}
	srv, _ := newTestServer(engine)
	router := srv.Router()

	payload := map[string]any{
		"object": "whatsapp_business_account",
		"entry": []map[string]any{{
			"changes": []map[string]any{{
				"field": "messages",
				"value": map[string]any{
					"statuses": []map[string]any{{"id": "wamid.1", "status": "delivered"}},
				},
			}},
		}},
	}

	rr := httptest.NewRecorder()
	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/webhook", payload)
	router.ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "status-only payload")
	testutil.AssertJSONResponse(t, rr, "ignored")
	if len(engine.received) != 0 {
		t.Errorf("expected no dispatch for status-only payload, got %d", len(engine.received))
	}
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	srv, _ := newTestServer(&mockEngine{})
	router := srv.Router()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	req.Body = http.NoBody
	router.ServeHTTP(rr, req)
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "empty body")
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(&mockEngine{})
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "health")
	testutil.AssertJSONResponse(t, rr, "ok")
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(&mockEngine{})
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "metrics")
}
