package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"alpaca-trader/internal/errors"
	"alpaca-trader/internal/models"
)

// AlpacaConfig holds configuration for the Alpaca REST client.
type AlpacaConfig struct {
	APIKey    string
	SecretKey string
	BaseURL   string // e.g. https://paper-api.alpaca.markets
	Timeout   time.Duration
}

// AlpacaBroker implements Broker against the Alpaca trading REST API.
type AlpacaBroker struct {
	cfg    AlpacaConfig
	client *http.Client
}

// NewAlpacaBroker creates a new Alpaca REST broker.
func NewAlpacaBroker(cfg AlpacaConfig) *AlpacaBroker {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &AlpacaBroker{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// Alpaca returns numeric fields as JSON strings.
type alpacaAccount struct {
	Cash        string `json:"cash"`
	Equity      string `json:"equity"`
	BuyingPower string `json:"buying_power"`
}

type alpacaPosition struct {
	Symbol         string `json:"symbol"`
	Qty            string `json:"qty"`
	AvgEntryPrice  string `json:"avg_entry_price"`
	CurrentPrice   string `json:"current_price"`
	UnrealizedPLPC string `json:"unrealized_plpc"`
}

type alpacaOrder struct {
	ID            string `json:"id"`
	ClientOrderID string `json:"client_order_id"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Qty           string `json:"qty"`
	Status        string `json:"status"`
}

type alpacaActivity struct {
	ActivityType    string `json:"activity_type"`
	Symbol          string `json:"symbol"`
	Side            string `json:"side"`
	Qty             string `json:"qty"`
	Price           string `json:"price"`
	TransactionTime string `json:"transaction_time"`
}

// GetAccount returns a fresh account snapshot.
func (a *AlpacaBroker) GetAccount(ctx context.Context) (*models.Account, error) {
	var acct alpacaAccount
	if err := a.get(ctx, "/v2/account", &acct); err != nil {
		return nil, errors.NewBrokerError("get_account", "", err.Error(), err)
	}
	return &models.Account{
		Cash:        parseFloat(acct.Cash),
		Equity:      parseFloat(acct.Equity),
		BuyingPower: parseFloat(acct.BuyingPower),
		FetchedAt:   time.Now(),
	}, nil
}

// GetPositions returns all held positions.
func (a *AlpacaBroker) GetPositions(ctx context.Context) ([]models.Position, error) {
	var raw []alpacaPosition
	if err := a.get(ctx, "/v2/positions", &raw); err != nil {
		return nil, errors.NewBrokerError("list_positions", "", err.Error(), err)
	}
	positions := make([]models.Position, 0, len(raw))
	for _, p := range raw {
		positions = append(positions, p.toModel())
	}
	return positions, nil
}

// GetPosition returns the position for a symbol, or (nil, nil) when none
// exists. Alpaca signals absence with a 404, which is not an error here.
func (a *AlpacaBroker) GetPosition(ctx context.Context, symbol string) (*models.Position, error) {
	var raw alpacaPosition
	err := a.get(ctx, "/v2/positions/"+symbol, &raw)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, errors.NewBrokerError("get_position", symbol, err.Error(), err)
	}
	pos := raw.toModel()
	return &pos, nil
}

// GetOpenOrders returns orders with the given status.
func (a *AlpacaBroker) GetOpenOrders(ctx context.Context, status models.OrderStatus) ([]models.OpenOrder, error) {
	var raw []alpacaOrder
	if err := a.get(ctx, "/v2/orders?status="+string(status), &raw); err != nil {
		return nil, errors.NewBrokerError("list_orders", "", err.Error(), err)
	}
	orders := make([]models.OpenOrder, 0, len(raw))
	for _, o := range raw {
		orders = append(orders, models.OpenOrder{
			Symbol:   o.Symbol,
			Side:     models.OrderSide(o.Side),
			Quantity: parseFloat(o.Qty),
			Status:   models.OrderStatus(o.Status),
		})
	}
	return orders, nil
}

// GetDayFills returns fill activity for the given trading day.
func (a *AlpacaBroker) GetDayFills(ctx context.Context, day time.Time) ([]models.Fill, error) {
	path := "/v2/account/activities/FILL?date=" + day.Format("2006-01-02")
	var raw []alpacaActivity
	if err := a.get(ctx, path, &raw); err != nil {
		return nil, errors.NewBrokerError("get_activities", "", err.Error(), err)
	}
	fills := make([]models.Fill, 0, len(raw))
	for _, act := range raw {
		ts, err := time.Parse(time.RFC3339, act.TransactionTime)
		if err != nil {
			continue
		}
		fills = append(fills, models.Fill{
			Symbol:   act.Symbol,
			Side:     models.OrderSide(act.Side),
			Quantity: parseFloat(act.Qty),
			Price:    parseFloat(act.Price),
			FilledAt: ts,
		})
	}
	return fills, nil
}

// SubmitOrder submits a trade intent. The intent's client ID is passed as
// Alpaca's client_order_id so a duplicate submission is rejected by the
// brokerage instead of filling twice.
func (a *AlpacaBroker) SubmitOrder(ctx context.Context, intent models.TradeIntent) (*models.OrderResult, error) {
	body := map[string]interface{}{
		"symbol":          intent.Symbol,
		"qty":             strconv.FormatFloat(intent.Quantity, 'f', -1, 64),
		"side":            string(intent.Side),
		"type":            string(intent.OrderType),
		"time_in_force":   "gtc",
		"client_order_id": intent.ClientID,
	}
	if intent.OrderType == models.OrderTypeLimit {
		body["limit_price"] = strconv.FormatFloat(intent.LimitPrice, 'f', 2, 64)
	}

	var placed alpacaOrder
	if err := a.post(ctx, "/v2/orders", body, &placed); err != nil {
		return nil, errors.NewBrokerError("submit_order", intent.Symbol, err.Error(), err)
	}
	return &models.OrderResult{
		OrderID: placed.ID,
		Status:  models.OrderStatus(placed.Status),
	}, nil
}

func (p alpacaPosition) toModel() models.Position {
	return models.Position{
		Symbol:          p.Symbol,
		Quantity:        parseFloat(p.Qty),
		AvgEntryPrice:   parseFloat(p.AvgEntryPrice),
		CurrentPrice:    parseFloat(p.CurrentPrice),
		UnrealizedPLPct: parseFloat(p.UnrealizedPLPC),
	}
}

type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.status, e.body)
}

func isNotFound(err error) bool {
	se, ok := err.(*httpStatusError)
	return ok && se.status == http.StatusNotFound
}

func (a *AlpacaBroker) get(ctx context.Context, path string, out interface{}) error {
	return a.do(ctx, http.MethodGet, path, nil, out)
}

func (a *AlpacaBroker) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	return a.do(ctx, http.MethodPost, path, body, out)
}

func (a *AlpacaBroker) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("APCA-API-KEY-ID", a.cfg.APIKey)
	req.Header.Set("APCA-API-SECRET-KEY", a.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var buf bytes.Buffer
		buf.ReadFrom(resp.Body)
		return &httpStatusError{status: resp.StatusCode, body: buf.String()}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
