package materials

import "errors"

var (
	ErrNotFound          = errors.New("material not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNegativeQuantity  = errors.New("quantity must be >= 0")
)
