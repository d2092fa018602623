package combos

// Combo — отгрузочный набор: продукты и/или материалы, уходящие вместе.
type Combo struct {
	ID          int64
	Name        string
	Description string
	Items       []Item
}

// Item ссылается либо на продукт, либо на материал (ровно одно из двух).
type Item struct {
	ProductID        int64
	MaterialID       int64
	QuantityRequired float64
}
