package products

// ValidateRecipe проверяет набор строк рецепта до записи: количества строго
// положительные, материал не повторяется и рецепт не потребляет собственный
// выходной материал продукта. Пустой список — легальное «рецепт не задан».
func ValidateRecipe(outputMaterialID int64, entries []RecipeEntry) error {
	seen := make(map[int64]bool, len(entries))
	for _, e := range entries {
		if e.QuantityRequired <= 0 {
			return ErrBadQuantity
		}
		if seen[e.MaterialID] {
			return &DuplicateEntryError{MaterialID: e.MaterialID}
		}
		seen[e.MaterialID] = true
		if outputMaterialID != 0 && e.MaterialID == outputMaterialID {
			return ErrSelfReference
		}
	}
	return nil
}
