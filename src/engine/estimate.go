package engine

import (
	"github.com/google/btree"
)

type VWAPResult struct {
	VWAP      float64 `json:"vwap"`
	Filled    float64 `json:"filled"`
	Remaining float64 `json:"remaining"`
}

type SlippageResult struct {
	SlippageBps float64 `json:"slippage_bps"`
	SlippageAbs float64 `json:"slippage_abs"`
	VWAP        float64 `json:"vwap"`
	MidPrice    float64 `json:"mid_price"`
	Filled      float64 `json:"filled"`
}

// EstimateVWAP walks the side opposite to the order (asks for a buy, bids
// for a sell) from the touch outward, taking whole levels until quantity is
// reached and a partial fill from the last level touched.
func (ob *OrderBook) EstimateVWAP(quantity float64, side Side) (VWAPResult, error) {
	if !side.Valid() {
		return VWAPResult{}, &InvalidArgumentError{Argument: "side", Value: string(side)}
	}

	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.vwapLocked(quantity, side), nil
}

// vwapLocked must be called with mu held.
func (ob *OrderBook) vwapLocked(quantity float64, side Side) VWAPResult {
	// edge case: nothing to fill
	if quantity <= 0 {
		return VWAPResult{}
	}

	tree := ob.asks
	if side == SideSell {
		tree = ob.bids
	}
	totalCost, filled := walkLevels(tree, quantity)

	if filled == 0 {
		return VWAPResult{Remaining: quantity}
	}

	return VWAPResult{
		VWAP:      totalCost / filled,
		Filled:    filled,
		Remaining: quantity - filled,
	}
}

func walkLevels(tree *btree.BTree, quantity float64) (totalCost, filled float64) {
	tree.Ascend(func(item btree.Item) bool {
		level := levelOf(item)
		available := level.TotalQuantity

		if filled+available <= quantity {
			totalCost += level.Price * available
			filled += available
			return true
		}

		remaining := quantity - filled
		totalCost += level.Price * remaining
		filled = quantity
		return false
	})
	return totalCost, filled
}

// EstimateSlippage measures the VWAP of an order against the mid price.
// Positive slippage means the order executes worse than mid.
func (ob *OrderBook) EstimateSlippage(quantity float64, side Side) (SlippageResult, error) {
	if !side.Valid() {
		return SlippageResult{}, &InvalidArgumentError{Argument: "side", Value: string(side)}
	}

	// mid and the level walk must come from the same side replacement
	ob.mu.RLock()
	q := *ob.quote.Load()
	if !q.HasMid || q.MidPrice == 0 {
		ob.mu.RUnlock()
		return SlippageResult{}, nil
	}
	mid := q.MidPrice
	vwap := ob.vwapLocked(quantity, side)
	ob.mu.RUnlock()

	if vwap.Filled == 0 {
		return SlippageResult{}, nil
	}

	var slippageAbs float64
	if side == SideBuy {
		slippageAbs = vwap.VWAP - mid
	} else {
		slippageAbs = mid - vwap.VWAP
	}

	return SlippageResult{
		SlippageBps: slippageAbs / mid * 10000,
		SlippageAbs: slippageAbs,
		VWAP:        vwap.VWAP,
		MidPrice:    mid,
		Filled:      vwap.Filled,
	}, nil
}
