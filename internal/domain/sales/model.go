package sales

import "time"

type Item struct {
	MaterialID int64
	Name       string
	Quantity   float64
}

type Record struct {
	ID          int64
	SaleDate    time.Time
	OrderNumber string
	Customer    string
	SalesAmount float64
	Receiver    string
	ShippingFee float64
	HandlingFee float64
	Income      float64
	Notes       string
	Items       []Item
	CreatedAt   time.Time
}
