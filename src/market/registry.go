package market

import (
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"orderbook-analytics/src/analytics"
	"orderbook-analytics/src/engine"
)

type Settings struct {
	DepthLevels int
	Liquidity   analytics.LiquidityConfig
}

func DefaultSettings() Settings {
	return Settings{
		DepthLevels: analytics.DefaultDepthLevels,
		Liquidity:   analytics.DefaultLiquidityConfig(),
	}
}

// Market is one instrument: its book and the analyzers reading it.
type Market struct {
	Symbol    string
	Book      *engine.OrderBook
	Spread    *analytics.SpreadAnalyzer
	Depth     *analytics.DepthAnalyzer
	Liquidity *analytics.LiquidityAnalyzer
}

func newMarket(symbol string, settings Settings) *Market {
	book := engine.NewOrderBook(symbol)
	return &Market{
		Symbol:    symbol,
		Book:      book,
		Spread:    analytics.NewSpreadAnalyzer(book),
		Depth:     analytics.NewDepthAnalyzer(book, settings.DepthLevels),
		Liquidity: analytics.NewLiquidityAnalyzerWithConfig(book, settings.Liquidity, nil, nil),
	}
}

type Registry struct {
	settings Settings
	markets  map[string]*Market
	mu       sync.RWMutex
}

func NewRegistry(settings Settings) *Registry {
	return &Registry{
		settings: settings,
		markets:  make(map[string]*Market),
	}
}

// NormalizeSymbol trims and upper-cases a symbol so "btc-usdt" and
// "BTC-USDT" address the same market.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func (r *Registry) Get(symbol string) (*Market, bool) {
	symbol = NormalizeSymbol(symbol)

	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.markets[symbol]
	return m, ok
}

func (r *Registry) GetOrCreate(symbol string) *Market {
	symbol = NormalizeSymbol(symbol)

	r.mu.RLock()
	if m, exists := r.markets[symbol]; exists {
		r.mu.RUnlock()
		return m
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// edge case: double-check after acquiring write lock
	if m, exists := r.markets[symbol]; exists {
		return m
	}

	// the caller's string may alias a reused request buffer
	symbol = strings.Clone(symbol)
	m := newMarket(symbol, r.settings)
	r.markets[symbol] = m

	log.Info().
		Str("symbol", symbol).
		Int("depth_levels", m.Depth.Levels()).
		Msg("Market created")
	return m
}

func (r *Registry) Snapshot() map[string]*Market {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make(map[string]*Market, len(r.markets))
	for k, v := range r.markets {
		snapshot[k] = v
	}
	return snapshot
}

func (r *Registry) Symbols() []string {
	r.mu.RLock()
	symbols := make([]string, 0, len(r.markets))
	for k := range r.markets {
		symbols = append(symbols, k)
	}
	r.mu.RUnlock()

	sort.Strings(symbols)
	return symbols
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.markets)
}
