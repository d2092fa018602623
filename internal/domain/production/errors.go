package production

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidQuantity  = errors.New("quantity must be a positive integer")
	ErrProductNotFound  = errors.New("product not found")
	ErrMaterialNotFound = errors.New("recipe material not found")
	ErrNotProducible    = errors.New("only products can be produced")
	ErrNoOutputMaterial = errors.New("product has no output material assigned")
	ErrNoRecipe         = errors.New("product has no recipe")
	// ErrConflict — транзакция не прошла из-за конкурентной записи; повтор безопасен.
	ErrConflict = errors.New("write conflict")
)

// InsufficientStockError перечисляет все дефицитные материалы рецепта, не
// только первый найденный.
type InsufficientStockError struct {
	Materials []string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: %s", strings.Join(e.Materials, ", "))
}
