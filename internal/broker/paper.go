package broker

import (
	"context"
	"sync"
	"time"

	"alpaca-trader/internal/models"
)

// PaperBroker implements the Broker interface for paper trading and
// tests. Orders fill immediately at the intent's reference price; cash,
// positions and fill activity are tracked in memory.
type PaperBroker struct {
	mu        sync.RWMutex
	cash      float64
	positions map[string]*models.Position
	open      []models.OpenOrder
	fills     []models.Fill
	orderSeq  int
}

// NewPaperBroker creates a paper broker seeded with the given cash.
func NewPaperBroker(initialCash float64) *PaperBroker {
	return &PaperBroker{
		cash:      initialCash,
		positions: make(map[string]*models.Position),
	}
}

// GetAccount returns a snapshot of the simulated account.
func (p *PaperBroker) GetAccount(ctx context.Context) (*models.Account, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	equity := p.cash
	for _, pos := range p.positions {
		equity += pos.MarketValue()
	}
	return &models.Account{
		Cash:        p.cash,
		Equity:      equity,
		BuyingPower: p.cash,
		FetchedAt:   time.Now(),
	}, nil
}

// GetPositions returns all simulated positions.
func (p *PaperBroker) GetPositions(ctx context.Context) ([]models.Position, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	positions := make([]models.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		positions = append(positions, *pos)
	}
	return positions, nil
}

// GetPosition returns the simulated position for a symbol, or (nil, nil).
func (p *PaperBroker) GetPosition(ctx context.Context, symbol string) (*models.Position, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	pos, ok := p.positions[symbol]
	if !ok {
		return nil, nil
	}
	cp := *pos
	return &cp, nil
}

// GetOpenOrders returns simulated open orders.
func (p *PaperBroker) GetOpenOrders(ctx context.Context, status models.OrderStatus) ([]models.OpenOrder, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	orders := make([]models.OpenOrder, 0, len(p.open))
	for _, o := range p.open {
		if o.Status == status {
			orders = append(orders, o)
		}
	}
	return orders, nil
}

// GetDayFills returns simulated fill activity for the given day.
func (p *PaperBroker) GetDayFills(ctx context.Context, day time.Time) ([]models.Fill, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	y, m, d := day.Date()
	fills := make([]models.Fill, 0)
	for _, f := range p.fills {
		fy, fm, fd := f.FilledAt.Date()
		if fy == y && fm == m && fd == d {
			fills = append(fills, f)
		}
	}
	return fills, nil
}

// SubmitOrder fills the intent immediately at its reference price.
func (p *PaperBroker) SubmitOrder(ctx context.Context, intent models.TradeIntent) (*models.OrderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	price := intent.ReferencePrice
	if intent.OrderType == models.OrderTypeLimit && intent.LimitPrice > 0 {
		price = intent.LimitPrice
	}

	pos := p.positions[intent.Symbol]
	switch intent.Side {
	case models.OrderSideBuy:
		p.cash -= intent.Quantity * price
		if pos == nil {
			p.positions[intent.Symbol] = &models.Position{
				Symbol:        intent.Symbol,
				Quantity:      intent.Quantity,
				AvgEntryPrice: price,
				CurrentPrice:  price,
			}
		} else {
			total := pos.Quantity + intent.Quantity
			pos.AvgEntryPrice = (pos.CostBasis() + intent.Quantity*price) / total
			pos.Quantity = total
			pos.CurrentPrice = price
		}
	case models.OrderSideSell:
		p.cash += intent.Quantity * price
		if pos != nil {
			pos.Quantity -= intent.Quantity
			if pos.Quantity <= 0 {
				delete(p.positions, intent.Symbol)
			}
		}
	}

	p.fills = append(p.fills, models.Fill{
		Symbol:   intent.Symbol,
		Side:     intent.Side,
		Quantity: intent.Quantity,
		Price:    price,
		FilledAt: time.Now(),
	})

	p.orderSeq++
	return &models.OrderResult{
		OrderID: intent.ClientID,
		Status:  models.OrderStatusFilled,
	}, nil
}

// SeedPosition installs a position directly, for tests and paper-mode
// bootstrapping.
func (p *PaperBroker) SeedPosition(pos models.Position) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := pos
	p.positions[pos.Symbol] = &cp
}

// SeedOpenOrder installs an open order directly.
func (p *PaperBroker) SeedOpenOrder(order models.OpenOrder) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = append(p.open, order)
}

// SeedFill installs a fill activity record directly.
func (p *PaperBroker) SeedFill(fill models.Fill) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fills = append(p.fills, fill)
}

// MarkPrice updates the current price of a held position.
func (p *PaperBroker) MarkPrice(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pos, ok := p.positions[symbol]; ok {
		pos.CurrentPrice = price
		if pos.AvgEntryPrice > 0 {
			pos.UnrealizedPLPct = (price - pos.AvgEntryPrice) / pos.AvgEntryPrice
		}
	}
}
