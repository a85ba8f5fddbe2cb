package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"alpaca-trader/internal/errors"
	"alpaca-trader/internal/models"
)

// AlphaVantageConfig holds configuration for the Alpha Vantage client.
type AlphaVantageConfig struct {
	APIKey        string
	BaseURL       string
	AlpacaDataURL string // crypto-bar fallback, e.g. https://data.alpaca.markets
	Timeout       time.Duration
}

// AlphaVantageProvider implements QuoteProvider against the Alpha
// Vantage HTTP API, falling back to Alpaca's crypto bars for *USD
// symbols when Alpha Vantage has no daily series for them.
type AlphaVantageProvider struct {
	cfg    AlphaVantageConfig
	client *http.Client
}

// NewAlphaVantageProvider creates a new Alpha Vantage market data provider.
func NewAlphaVantageProvider(cfg AlphaVantageConfig) *AlphaVantageProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.alphavantage.co"
	}
	if cfg.AlpacaDataURL == "" {
		cfg.AlpacaDataURL = "https://data.alpaca.markets"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &AlphaVantageProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// GetQuote returns the most recent daily close for a symbol. For *USD
// symbols the Alpaca crypto bars endpoint is tried when Alpha Vantage
// has nothing.
func (p *AlphaVantageProvider) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	closes, err := p.dailyCloses(ctx, symbol)
	if err == nil && len(closes) > 0 {
		last := closes[len(closes)-1]
		return &models.Quote{Symbol: symbol, Price: last.close, Timestamp: last.day}, nil
	}

	if strings.HasSuffix(symbol, "USD") {
		quote, ferr := p.alpacaCryptoQuote(ctx, symbol)
		if ferr == nil {
			return quote, nil
		}
	}

	return nil, fmt.Errorf("%w: no quote for %s", errors.ErrDataUnavailable, symbol)
}

// GetIndicator returns the latest value of an Alpha Vantage technical
// indicator (e.g. kind "SMA" with params {"time_period": "10"}).
func (p *AlphaVantageProvider) GetIndicator(ctx context.Context, symbol, kind string, params map[string]string) (float64, error) {
	q := url.Values{}
	q.Set("function", strings.ToUpper(kind))
	q.Set("symbol", symbol)
	q.Set("interval", "daily")
	q.Set("series_type", "close")
	q.Set("apikey", p.cfg.APIKey)
	for k, v := range params {
		q.Set(k, v)
	}

	var payload map[string]json.RawMessage
	if err := p.getJSON(ctx, p.cfg.BaseURL+"/query?"+q.Encode(), &payload); err != nil {
		return 0, fmt.Errorf("%w: %s %s: %v", errors.ErrDataUnavailable, kind, symbol, err)
	}

	analysisKey := "Technical Analysis: " + strings.ToUpper(kind)
	raw, ok := payload[analysisKey]
	if !ok {
		return 0, fmt.Errorf("%w: %s %s: missing series", errors.ErrDataUnavailable, kind, symbol)
	}

	var series map[string]map[string]string
	if err := json.Unmarshal(raw, &series); err != nil {
		return 0, fmt.Errorf("%w: %s %s: %v", errors.ErrDataUnavailable, kind, symbol, err)
	}

	latestDay := ""
	for day := range series {
		if day > latestDay {
			latestDay = day
		}
	}
	if latestDay == "" {
		return 0, fmt.Errorf("%w: %s %s: empty series", errors.ErrDataUnavailable, kind, symbol)
	}
	for _, v := range series[latestDay] {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %s %s: unparseable value", errors.ErrDataUnavailable, kind, symbol)
}

// GetDailyReturns returns log returns over the last days closes.
func (p *AlphaVantageProvider) GetDailyReturns(ctx context.Context, symbol string, days int) ([]float64, error) {
	closes, err := p.dailyCloses(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if len(closes) > days+1 {
		closes = closes[len(closes)-days-1:]
	}
	returns := make([]float64, 0, len(closes))
	for i := 1; i < len(closes); i++ {
		if closes[i-1].close <= 0 || closes[i].close <= 0 {
			continue
		}
		returns = append(returns, math.Log(closes[i].close/closes[i-1].close))
	}
	return returns, nil
}

type dailyClose struct {
	day   time.Time
	close float64
}

func (p *AlphaVantageProvider) dailyCloses(ctx context.Context, symbol string) ([]dailyClose, error) {
	q := url.Values{}
	q.Set("function", "TIME_SERIES_DAILY")
	q.Set("symbol", symbol)
	q.Set("apikey", p.cfg.APIKey)

	var payload struct {
		Series map[string]map[string]string `json:"Time Series (Daily)"`
	}
	if err := p.getJSON(ctx, p.cfg.BaseURL+"/query?"+q.Encode(), &payload); err != nil {
		return nil, fmt.Errorf("%w: daily series %s: %v", errors.ErrDataUnavailable, symbol, err)
	}
	if len(payload.Series) == 0 {
		return nil, fmt.Errorf("%w: daily series %s: empty", errors.ErrDataUnavailable, symbol)
	}

	closes := make([]dailyClose, 0, len(payload.Series))
	for day, fields := range payload.Series {
		ts, err := time.Parse("2006-01-02", day)
		if err != nil {
			continue
		}
		c, err := strconv.ParseFloat(fields["4. close"], 64)
		if err != nil {
			continue
		}
		closes = append(closes, dailyClose{day: ts, close: c})
	}
	sort.Slice(closes, func(i, j int) bool { return closes[i].day.Before(closes[j].day) })
	return closes, nil
}

// alpacaCryptoQuote fetches the latest crypto bar from Alpaca for a
// BTCUSD-style symbol (converted to BTC/USD pair form).
func (p *AlphaVantageProvider) alpacaCryptoQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	pair := strings.TrimSuffix(symbol, "USD") + "/USD"
	endpoint := p.cfg.AlpacaDataURL + "/v1beta3/crypto/us/latest/bars?symbols=" + url.QueryEscape(pair)

	var payload struct {
		Bars map[string]struct {
			Close     float64   `json:"c"`
			Timestamp time.Time `json:"t"`
		} `json:"bars"`
	}
	if err := p.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, fmt.Errorf("%w: crypto bars %s: %v", errors.ErrDataUnavailable, symbol, err)
	}
	bar, ok := payload.Bars[pair]
	if !ok || bar.Close <= 0 {
		return nil, fmt.Errorf("%w: crypto bars %s: no bar", errors.ErrDataUnavailable, symbol)
	}
	return &models.Quote{Symbol: symbol, Price: bar.Close, Timestamp: bar.Timestamp}, nil
}

func (p *AlphaVantageProvider) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
