package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alpaca-trader/internal/models"
)

func newTestAlpaca(t *testing.T, handler http.HandlerFunc) *AlpacaBroker {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAlpacaBroker(AlpacaConfig{
		APIKey:    "key",
		SecretKey: "secret",
		BaseURL:   srv.URL,
	})
}

func TestAlpacaGetAccountParsesStringNumbers(t *testing.T) {
	b := newTestAlpaca(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/account", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("APCA-API-KEY-ID"))
		assert.Equal(t, "secret", r.Header.Get("APCA-API-SECRET-KEY"))
		json.NewEncoder(w).Encode(map[string]string{
			"cash":         "1234.56",
			"equity":       "10000.00",
			"buying_power": "2469.12",
		})
	})

	account, err := b.GetAccount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1234.56, account.Cash)
	assert.Equal(t, 10000.00, account.Equity)
	assert.WithinDuration(t, time.Now(), account.FetchedAt, time.Minute)
}

func TestAlpacaGetPositionAbsentIsNotAnError(t *testing.T) {
	b := newTestAlpaca(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":40410000,"message":"position does not exist"}`, http.StatusNotFound)
	})

	pos, err := b.GetPosition(context.Background(), "GLD")
	require.NoError(t, err)
	assert.Nil(t, pos)
}

func TestAlpacaSubmitOrderSendsClientID(t *testing.T) {
	var body map[string]interface{}
	b := newTestAlpaca(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v2/orders", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		json.NewEncoder(w).Encode(map[string]string{"id": "srv-123", "status": "accepted"})
	})

	intent := models.NewTradeIntent("BTCUSD", models.OrderSideBuy, 0.5, 1000)
	result, err := b.SubmitOrder(context.Background(), intent)
	require.NoError(t, err)

	assert.Equal(t, "srv-123", result.OrderID)
	assert.Equal(t, intent.ClientID, body["client_order_id"])
	assert.Equal(t, "0.5", body["qty"])
	assert.Equal(t, "market", body["type"])
	assert.NotContains(t, body, "limit_price")
}

func TestAlpacaSubmitLimitOrderSendsLimitPrice(t *testing.T) {
	var body map[string]interface{}
	b := newTestAlpaca(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		json.NewEncoder(w).Encode(map[string]string{"id": "srv-124", "status": "accepted"})
	})

	intent := models.NewTradeIntent("GLD", models.OrderSideSell, 3, 200)
	intent.OrderType = models.OrderTypeLimit
	intent.LimitPrice = 198.0

	_, err := b.SubmitOrder(context.Background(), intent)
	require.NoError(t, err)
	assert.Equal(t, "limit", body["type"])
	assert.Equal(t, "198.00", body["limit_price"])
}

func TestAlpacaErrorStatusSurfacesAsBrokerError(t *testing.T) {
	b := newTestAlpaca(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"forbidden"}`, http.StatusForbidden)
	})

	_, err := b.GetAccount(context.Background())
	assert.Error(t, err)
}

func TestPaperBrokerBuyThenSellRoundTrip(t *testing.T) {
	ctx := context.Background()
	pb := NewPaperBroker(1000)

	buy := models.NewTradeIntent("GLD", models.OrderSideBuy, 4, 100)
	_, err := pb.SubmitOrder(ctx, buy)
	require.NoError(t, err)

	account, err := pb.GetAccount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 600.0, account.Cash)
	assert.Equal(t, 1000.0, account.Equity)

	pos, err := pb.GetPosition(ctx, "GLD")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, 4.0, pos.Quantity)
	assert.Equal(t, 100.0, pos.AvgEntryPrice)

	sell := models.NewTradeIntent("GLD", models.OrderSideSell, 4, 100)
	_, err = pb.SubmitOrder(ctx, sell)
	require.NoError(t, err)

	pos, err = pb.GetPosition(ctx, "GLD")
	require.NoError(t, err)
	assert.Nil(t, pos)

	fills, err := pb.GetDayFills(ctx, time.Now())
	require.NoError(t, err)
	assert.Len(t, fills, 2)
}

func TestPaperBrokerAveragesEntryPrice(t *testing.T) {
	ctx := context.Background()
	pb := NewPaperBroker(10000)

	_, err := pb.SubmitOrder(ctx, models.NewTradeIntent("SLV", models.OrderSideBuy, 10, 20))
	require.NoError(t, err)
	_, err = pb.SubmitOrder(ctx, models.NewTradeIntent("SLV", models.OrderSideBuy, 10, 30))
	require.NoError(t, err)

	pos, err := pb.GetPosition(ctx, "SLV")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, 20.0, pos.Quantity)
	assert.Equal(t, 25.0, pos.AvgEntryPrice)
}
