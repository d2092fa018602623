package products

type Kind string

const (
	// KindProduct — производимый продукт с назначенным выходным материалом.
	KindProduct Kind = "product"
	// KindCombo — отгрузочный набор, сам по себе не производится.
	KindCombo Kind = "combo"
)

type Product struct {
	ID               int64
	Name             string
	Description      string
	Kind             Kind
	OutputMaterialID int64 // 0 — выходной материал не назначен
}

// RecipeEntry — одна строка рецепта: сколько материала уходит на единицу продукта.
type RecipeEntry struct {
	MaterialID       int64
	QuantityRequired float64
}
