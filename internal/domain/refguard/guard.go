package refguard

import (
	"context"
	"fmt"
)

type Kind string

const (
	KindMaterial Kind = "material"
	KindProduct  Kind = "product"
)

// Relation — зависимая таблица и её внешний ключ на проверяемую сущность.
type Relation struct {
	Table  string
	Column string
}

// Материал нельзя удалить, пока на него ссылаются рецепты, отгрузочные наборы,
// продажи или закупки; продукт — пока у него есть рецепт или он входит в набор.
var relations = map[Kind][]Relation{
	KindMaterial: {
		{"product_recipes", "material_id"},
		{"shipment_combo_items", "material_id"},
		{"sales_record_items", "material_id"},
		{"purchase_records", "material_id"},
	},
	KindProduct: {
		{"product_recipes", "product_id"},
		{"shipment_combo_items", "product_id"},
	},
}

// Scanner отвечает на один вопрос: есть ли в таблице хотя бы одна строка с
// данным значением внешнего ключа. Только чтение, без загрузки таблицы.
type Scanner interface {
	Exists(ctx context.Context, rel Relation, id int64) (bool, error)
}

// ConflictError — удаление заблокировано зависимой таблицей.
type ConflictError struct {
	Kind     Kind
	ID       int64
	Relation string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %d is referenced by %s", e.Kind, e.ID, e.Relation)
}

type Guard struct{ sc Scanner }

func New(sc Scanner) *Guard { return &Guard{sc: sc} }

// CanDelete прогоняет проверки всех зависимых таблиц и возвращает ConflictError
// с именем первой заблокировавшей. Сам ничего не изменяет.
func (g *Guard) CanDelete(ctx context.Context, kind Kind, id int64) error {
	rels, ok := relations[kind]
	if !ok {
		return fmt.Errorf("unknown entity kind %q", kind)
	}
	for _, rel := range rels {
		found, err := g.sc.Exists(ctx, rel, id)
		if err != nil {
			return err
		}
		if found {
			return &ConflictError{Kind: kind, ID: id, Relation: rel.Table}
		}
	}
	return nil
}
