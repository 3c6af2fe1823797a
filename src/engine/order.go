package engine

import (
	"strconv"
	"strings"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// ParseSide accepts "buy" or "sell" in any case, surrounding spaces ignored.
func ParseSide(raw string) (Side, error) {
	side := Side(strings.ToLower(strings.TrimSpace(raw)))
	if !side.Valid() {
		return "", &InvalidArgumentError{Argument: "side", Value: raw}
	}
	return side, nil
}

// Entry is one (price, quantity) pair of a side snapshot.
type Entry struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

type Order struct {
	ID        string
	Price     float64
	Quantity  float64
	Timestamp int64 // unix ms
}

type PriceLevel struct {
	Price         float64
	Orders        []Order // insertion order
	TotalQuantity float64
}

func NewPriceLevel(price float64) *PriceLevel {
	return &PriceLevel{
		Price:  price,
		Orders: make([]Order, 0, 1),
	}
}

func (pl *PriceLevel) AddOrder(order Order) {
	pl.Orders = append(pl.Orders, order)
	pl.TotalQuantity += order.Quantity
}

func (pl *PriceLevel) RemoveOrder(orderID string) bool {
	for i, o := range pl.Orders {
		if o.ID == orderID {
			pl.TotalQuantity -= o.Quantity
			pl.Orders = append(pl.Orders[:i], pl.Orders[i+1:]...)
			return true
		}
	}
	return false
}

func (pl *PriceLevel) UpdateQuantity(orderID string, quantity float64) bool {
	for i := range pl.Orders {
		if pl.Orders[i].ID == orderID {
			pl.TotalQuantity += quantity - pl.Orders[i].Quantity
			pl.Orders[i].Quantity = quantity
			return true
		}
	}
	return false
}

func (pl *PriceLevel) clone() PriceLevel {
	orders := make([]Order, len(pl.Orders))
	copy(orders, pl.Orders)
	return PriceLevel{
		Price:         pl.Price,
		Orders:        orders,
		TotalQuantity: pl.TotalQuantity,
	}
}

// InvalidArgumentError reports an argument outside its accepted domain.
type InvalidArgumentError struct {
	Argument string
	Value    string
}

func (e *InvalidArgumentError) Error() string {
	if e.Argument == "side" {
		return "invalid side " + strconv.Quote(e.Value) + ": must be buy or sell"
	}
	return "invalid " + e.Argument + " " + strconv.Quote(e.Value)
}

// Is lets errors.Is match side failures against ErrInvalidSide.
func (e *InvalidArgumentError) Is(target error) bool {
	t, ok := target.(*InvalidArgumentError)
	if !ok {
		return false
	}
	return t.Argument == e.Argument && (t.Value == "" || t.Value == e.Value)
}

var ErrInvalidSide = &InvalidArgumentError{Argument: "side"}
