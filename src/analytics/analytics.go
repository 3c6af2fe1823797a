// Package analytics derives market-microstructure metrics from an order book.
// Analyzers never fail: when the book or the history cannot support a metric
// it degrades to a neutral default (0, 0.5 or 50).
package analytics

import "orderbook-analytics/src/engine"

// HistoryCapacity bounds every rolling history kept by the analyzers.
const HistoryCapacity = 1000

// BookReader is the read side of an order book.
type BookReader interface {
	Quote() engine.Quote
	Depth(levels int) engine.Depth
	// View reads the quote and depth under one lock so both describe the
	// same book state.
	View(levels int) (engine.Quote, engine.Depth)
}
