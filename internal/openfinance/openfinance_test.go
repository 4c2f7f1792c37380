package openfinance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(
		WithBaseURL(srv.URL),
		WithCredentials("client-id", "client-secret"),
	)
	require.NoError(t, err)
	return client, srv
}

func authHandler(t *testing.T, authCalls *int32, next http.HandlerFunc) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(authCalls, 1)
		var req authRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "client-id", req.ClientID)
		assert.Equal(t, "client-secret", req.ClientSecret)
		json.NewEncoder(w).Encode(authResponse{APIKey: "test-key"})
	})
	mux.HandleFunc("/", next)
	return mux
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient()
	assert.Error(t, err)
}

func TestCreateConnectToken(t *testing.T) {
	var authCalls int32
	client, _ := newTestClient(t, authHandler(t, &authCalls, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/connect_token", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-API-KEY"))
		var req connectTokenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "item-1", req.ItemID)
		json.NewEncoder(w).Encode(connectTokenResponse{AccessToken: "connect-token"})
	}))

	token, err := client.CreateConnectToken(context.Background(), "item-1")
	require.NoError(t, err)
	assert.Equal(t, "connect-token", token)
	assert.EqualValues(t, 1, authCalls)
}

func TestAPIKeyIsCachedAcrossCalls(t *testing.T) {
	var authCalls int32
	client, _ := newTestClient(t, authHandler(t, &authCalls, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(connectTokenResponse{AccessToken: "tok"})
	}))

	for i := 0; i < 3; i++ {
		_, err := client.CreateConnectToken(context.Background(), "")
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, authCalls, "API key should be reused while fresh")
}

func TestListAccounts(t *testing.T) {
	var authCalls int32
	client, _ := newTestClient(t, authHandler(t, &authCalls, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/accounts", r.URL.Path)
		assert.Equal(t, "item-1", r.URL.Query().Get("itemId"))
		json.NewEncoder(w).Encode(map[string]any{
			"results": []Account{
				{ID: "acc-1", ItemID: "item-1", Type: "BANK", Name: "Conta Corrente", Balance: 1234.56, Currency: "BRL"},
			},
			"page":       1,
			"totalPages": 1,
		})
	}))

	accounts, err := client.ListAccounts(context.Background(), "item-1")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "acc-1", accounts[0].ID)
	assert.Equal(t, 1234.56, accounts[0].Balance)
}

func TestListTransactionsWalksPages(t *testing.T) {
	var authCalls int32
	client, _ := newTestClient(t, authHandler(t, &authCalls, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transactions", r.URL.Path)
		assert.Equal(t, "acc-1", r.URL.Query().Get("accountId"))
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		require.NoError(t, err)
		tx := Transaction{ID: "tx-" + strconv.Itoa(page), AccountID: "acc-1", Amount: -42.5, Date: time.Now().UTC()}
		json.NewEncoder(w).Encode(map[string]any{
			"results":    []Transaction{tx},
			"page":       page,
			"totalPages": 2,
		})
	}))

	from := time.Now().AddDate(0, -1, 0)
	txs, err := client.ListTransactions(context.Background(), "acc-1", from, time.Now())
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "tx-1", txs[0].ID)
	assert.Equal(t, "tx-2", txs[1].ID)
}

func TestServerErrorsAreReported(t *testing.T) {
	var authCalls int32
	client, _ := newTestClient(t, authHandler(t, &authCalls, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"item not found"}`, http.StatusNotFound)
	}))

	_, err := client.ListAccounts(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
