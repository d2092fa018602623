package materials

import "time"

type Material struct {
	ID            int64
	MaterialCode  string // уникальный код, задаёт человек
	Name          string
	Description   string
	Quantity      float64 // остаток, никогда не уходит в минус
	Unit          string
	Supplier      string
	Notes         string
	LowStockAlert *float64 // порог «мало на складе», может быть не задан
	CanSell       bool
	UpdatedAt     time.Time
}

// Update — изменяемые вручную поля (без количества, им владеет леджер).
type Update struct {
	Name          string
	Description   string
	Unit          string
	Supplier      string
	Notes         string
	LowStockAlert *float64
	CanSell       bool
}
