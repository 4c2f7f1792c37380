package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/joselpq/whatsapp-integration-sub000/internal/models"
	"github.com/joselpq/whatsapp-integration-sub000/internal/openfinance"
)

type connectTokenBody struct {
	ItemID string `json:"item_id,omitempty"`
}

func (s *Server) handleConnectToken(w http.ResponseWriter, r *http.Request) {
	var body connectTokenBody
	if r.Body != nil {
		// an empty body means a fresh connection
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	token, err := s.pluggy.CreateConnectToken(r.Context(), body.ItemID)
	if err != nil {
		slog.Error("Connect token request failed", "error", err, "itemID", body.ItemID)
		writeJSONResponse(w, http.StatusBadGateway, models.Error("failed to create connect token"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"access_token": token}))
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	itemID := r.URL.Query().Get("item_id")
	if itemID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("item_id is required"))
		return
	}

	accounts, err := s.pluggy.ListAccounts(r.Context(), itemID)
	if err != nil {
		slog.Error("Account listing failed", "error", err, "itemID", itemID)
		writeJSONResponse(w, http.StatusBadGateway, models.Error("failed to list accounts"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(accounts))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("account_id is required"))
		return
	}

	to := time.Now()
	from := to.AddDate(0, -3, 0)
	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("from must be YYYY-MM-DD"))
			return
		}
		from = parsed
	}
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("to must be YYYY-MM-DD"))
			return
		}
		to = parsed
	}

	transactions, err := s.pluggy.ListTransactions(r.Context(), accountID, from, to)
	if err != nil {
		slog.Error("Transaction listing failed", "error", err, "accountID", accountID)
		writeJSONResponse(w, http.StatusBadGateway, models.Error("failed to list transactions"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(transactions))
}

// handleOpenFinanceWebhook acknowledges Pluggy item events. Events are
// logged for operators; item state is fetched on demand, not mirrored.
func (s *Server) handleOpenFinanceWebhook(w http.ResponseWriter, r *http.Request) {
	var event openfinance.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("malformed webhook payload"))
		return
	}

	if event.Error != nil {
		slog.Warn("Open Finance item error event", "event", event.Event, "itemID", event.ItemID, "code", event.Error.Code)
	} else {
		slog.Info("Open Finance event received", "event", event.Event, "itemID", event.ItemID)
	}
	writeJSONResponse(w, http.StatusOK, models.Success(nil))
}
