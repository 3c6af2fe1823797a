package engine

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/btree"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type PriceLevelItem struct {
	PriceLevel *PriceLevel
}

func (p *PriceLevelItem) Less(than btree.Item) bool {
	other := than.(*PriceLevelItem)
	return p.PriceLevel.Price > other.PriceLevel.Price
}

type PriceLevelItemAscending struct {
	PriceLevel *PriceLevel
}

func (p *PriceLevelItemAscending) Less(than btree.Item) bool {
	other := than.(*PriceLevelItemAscending)
	return p.PriceLevel.Price < other.PriceLevel.Price
}

func levelOf(item btree.Item) *PriceLevel {
	switch it := item.(type) {
	case *PriceLevelItem:
		return it.PriceLevel
	case *PriceLevelItemAscending:
		return it.PriceLevel
	}
	return nil
}

// Quote is the cached top of book. A new Quote is published after every
// side replacement, so its fields always come from the same update.
type Quote struct {
	BestBid   float64
	BestAsk   float64
	MidPrice  float64
	HasBid    bool
	HasAsk    bool
	HasMid    bool
	Version   uint64
	UpdatedAt time.Time
}

func (q Quote) Spread() (float64, bool) {
	if !q.HasBid || !q.HasAsk {
		return 0, false
	}
	return q.BestAsk - q.BestBid, true
}

type OrderBook struct {
	Symbol string
	bids   *btree.BTree // sorted descending (highest first)
	asks   *btree.BTree // sorted ascending (lowest first)
	mu     sync.RWMutex
	quote  atomic.Pointer[Quote]
}

func NewOrderBook(symbol string) *OrderBook {
	ob := &OrderBook{
		Symbol: symbol,
		bids:   btree.New(32),
		asks:   btree.New(32),
	}
	ob.quote.Store(&Quote{})
	return ob
}

// UpdateBids replaces the whole bid side and returns how many entries were
// kept. Entries with a non-positive price or quantity are dropped.
func (ob *OrderBook) UpdateBids(entries []Entry) int {
	tree, accepted := buildSide(entries, SideBuy)

	ob.mu.Lock()
	ob.bids = tree
	q := ob.publishQuote()
	ob.mu.Unlock()

	ob.logUpdate("bids", len(entries), accepted, q)
	return accepted
}

// UpdateAsks replaces the whole ask side; see UpdateBids.
func (ob *OrderBook) UpdateAsks(entries []Entry) int {
	tree, accepted := buildSide(entries, SideSell)

	ob.mu.Lock()
	ob.asks = tree
	q := ob.publishQuote()
	ob.mu.Unlock()

	ob.logUpdate("asks", len(entries), accepted, q)
	return accepted
}

func buildSide(entries []Entry, side Side) (*btree.BTree, int) {
	valid := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Price > 0 && e.Quantity > 0 {
			valid = append(valid, e)
		}
	}

	if side == SideBuy {
		sort.SliceStable(valid, func(i, j int) bool { return valid[i].Price > valid[j].Price })
	} else {
		sort.SliceStable(valid, func(i, j int) bool { return valid[i].Price < valid[j].Price })
	}

	tree := btree.New(32)
	now := time.Now().UnixMilli()

	var level *PriceLevel
	for _, e := range valid {
		// edge case: repeated prices share one level, quantities are summed
		if level == nil || level.Price != e.Price {
			level = NewPriceLevel(e.Price)
			if side == SideBuy {
				tree.ReplaceOrInsert(&PriceLevelItem{PriceLevel: level})
			} else {
				tree.ReplaceOrInsert(&PriceLevelItemAscending{PriceLevel: level})
			}
		}
		level.AddOrder(Order{
			ID:        uuid.NewString(),
			Price:     e.Price,
			Quantity:  e.Quantity,
			Timestamp: now,
		})
	}

	return tree, len(valid)
}

// publishQuote must be called with mu held for writing.
func (ob *OrderBook) publishQuote() Quote {
	prev := ob.quote.Load()
	q := Quote{
		Version:   prev.Version + 1,
		UpdatedAt: time.Now(),
	}

	if item := ob.bids.Min(); item != nil {
		q.BestBid = levelOf(item).Price
		q.HasBid = true
	}
	if item := ob.asks.Min(); item != nil {
		q.BestAsk = levelOf(item).Price
		q.HasAsk = true
	}
	if q.HasBid && q.HasAsk {
		q.MidPrice = (q.BestBid + q.BestAsk) / 2
		q.HasMid = true
	}

	ob.quote.Store(&q)
	return q
}

func (ob *OrderBook) logUpdate(side string, received, accepted int, q Quote) {
	event := log.Debug().
		Str("symbol", ob.Symbol).
		Str("side", side).
		Int("received", received).
		Int("accepted", accepted).
		Uint64("version", q.Version)
	if dropped := received - accepted; dropped > 0 {
		event = event.Int("dropped", dropped)
	}
	event.Msg("Order book side replaced")
}

func (ob *OrderBook) Quote() Quote {
	return *ob.quote.Load()
}

func (ob *OrderBook) BestBid() (float64, bool) {
	q := ob.quote.Load()
	return q.BestBid, q.HasBid
}

func (ob *OrderBook) BestAsk() (float64, bool) {
	q := ob.quote.Load()
	return q.BestAsk, q.HasAsk
}

func (ob *OrderBook) MidPrice() (float64, bool) {
	q := ob.quote.Load()
	return q.MidPrice, q.HasMid
}

func (ob *OrderBook) Spread() (float64, bool) {
	return ob.quote.Load().Spread()
}

// UpdateCount is the number of side replacements applied so far.
func (ob *OrderBook) UpdateCount() uint64 {
	return ob.quote.Load().Version
}

type LevelInfo struct {
	Price      float64 `json:"price"`
	Quantity   float64 `json:"quantity"`
	OrderCount int     `json:"order_count"`
}

type Depth struct {
	Bids           []LevelInfo `json:"bids"` // sorted descending (highest first)
	Asks           []LevelInfo `json:"asks"` // sorted ascending (lowest first)
	TotalBidVolume float64     `json:"total_bid_volume"`
	TotalAskVolume float64     `json:"total_ask_volume"`
}

// Depth returns up to levels price levels per side, nearest to the touch first.
func (ob *OrderBook) Depth(levels int) Depth {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.depthLocked(levels)
}

// View returns the quote together with the depth it was derived from. Both
// come from the same side replacement.
func (ob *OrderBook) View(levels int) (Quote, Depth) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return *ob.quote.Load(), ob.depthLocked(levels)
}

func (ob *OrderBook) depthLocked(levels int) Depth {
	depth := Depth{
		Bids: make([]LevelInfo, 0, min(max(levels, 0), ob.bids.Len())),
		Asks: make([]LevelInfo, 0, min(max(levels, 0), ob.asks.Len())),
	}
	if levels <= 0 {
		return depth
	}

	depth.Bids, depth.TotalBidVolume = collectLevels(ob.bids, levels, depth.Bids)
	depth.Asks, depth.TotalAskVolume = collectLevels(ob.asks, levels, depth.Asks)
	return depth
}

func collectLevels(tree *btree.BTree, levels int, out []LevelInfo) ([]LevelInfo, float64) {
	var total float64
	tree.Ascend(func(item btree.Item) bool {
		if len(out) >= levels {
			return false
		}
		level := levelOf(item)
		out = append(out, LevelInfo{
			Price:      level.Price,
			Quantity:   level.TotalQuantity,
			OrderCount: len(level.Orders),
		})
		total += level.TotalQuantity
		return true
	})
	return out, total
}

// LevelCount reports how many distinct price levels each side holds.
func (ob *OrderBook) LevelCount() (bids int, asks int) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.bids.Len(), ob.asks.Len()
}

// PriceLevelForBid returns a copy of the bid level at price.
func (ob *OrderBook) PriceLevelForBid(price float64) (PriceLevel, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	item := ob.bids.Get(&PriceLevelItem{PriceLevel: &PriceLevel{Price: price}})
	if item == nil {
		return PriceLevel{}, false
	}
	return levelOf(item).clone(), true
}

// PriceLevelForAsk returns a copy of the ask level at price.
func (ob *OrderBook) PriceLevelForAsk(price float64) (PriceLevel, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	item := ob.asks.Get(&PriceLevelItemAscending{PriceLevel: &PriceLevel{Price: price}})
	if item == nil {
		return PriceLevel{}, false
	}
	return levelOf(item).clone(), true
}

type Summary struct {
	Symbol    string    `json:"symbol"`
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
	BestBid   *float64  `json:"best_bid"`
	BestAsk   *float64  `json:"best_ask"`
	MidPrice  *float64  `json:"mid_price"`
	Spread    *float64  `json:"spread"`
	BidLevels int       `json:"bid_levels"`
	AskLevels int       `json:"ask_levels"`
	Depth     Depth     `json:"depth"`
}

func (ob *OrderBook) Summary(levels int) Summary {
	ob.mu.RLock()
	q := *ob.quote.Load()
	s := Summary{
		Symbol:    ob.Symbol,
		Version:   q.Version,
		UpdatedAt: q.UpdatedAt,
		BidLevels: ob.bids.Len(),
		AskLevels: ob.asks.Len(),
		Depth:     ob.depthLocked(levels),
	}
	ob.mu.RUnlock()

	if q.HasBid {
		s.BestBid = &q.BestBid
	}
	if q.HasAsk {
		s.BestAsk = &q.BestAsk
	}
	if q.HasMid {
		s.MidPrice = &q.MidPrice
	}
	if spread, ok := q.Spread(); ok {
		s.Spread = &spread
	}
	return s
}
