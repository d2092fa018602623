package products

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("product not found")
	ErrBadQuantity   = errors.New("quantity_required must be > 0")
	ErrSelfReference = errors.New("recipe must not consume the product's own output material")
)

// DuplicateEntryError — один материал встречается в рецепте дважды.
type DuplicateEntryError struct {
	MaterialID int64
}

func (e *DuplicateEntryError) Error() string {
	return fmt.Sprintf("duplicate recipe entry for material %d", e.MaterialID)
}
