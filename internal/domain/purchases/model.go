package purchases

import "time"

type Record struct {
	ID            int64
	PurchaseDate  time.Time
	InvoiceNumber string
	MaterialID    int64 // 0 — закупка не привязана к материалу
	Name          string
	Specification string
	Description   string
	Quantity      float64
	Seller        string
	Payer         string
	Amount        float64
	CreatedAt     time.Time
}
