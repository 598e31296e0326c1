package order

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
)

type Order struct {
	ID          uuid.UUID
	Status      Status
	Currency    string
	AmountCents int64
	SessionID   *string
	CreatedAt   time.Time
	PaidAt      *time.Time
	Items       []OrderItem
}

// OrderItem is the price and name snapshot taken at checkout time.
type OrderItem struct {
	OrderID        uuid.UUID
	ProductID      string
	Slug           string
	Name           string
	Quantity       int
	UnitPriceCents int64
}

func (i OrderItem) LineTotalCents() int64 {
	return i.UnitPriceCents * int64(i.Quantity)
}

type StockAdjustment struct {
	ProductID string `json:"product_id"`
	Slug      string `json:"slug"`
	Quantity  int    `json:"quantity"`
}

// SettlementResult describes one call to CompleteAndAdjustStock. AlreadySettled
// is true when the order had left pending before this call; Adjustments is
// then empty.
type SettlementResult struct {
	OrderID        uuid.UUID
	AlreadySettled bool
	Status         Status
	AmountCents    int64
	Currency       string
	Adjustments    []StockAdjustment
}
