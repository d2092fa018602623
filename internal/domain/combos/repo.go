package combos

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound    = errors.New("combo not found")
	ErrBadItem     = errors.New("combo item must reference a product or a material")
	ErrBadQuantity = errors.New("quantity_required must be > 0")
)

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func (r *Repo) Create(ctx context.Context, name, description string, items []Item) (*Combo, error) {
	for _, it := range items {
		if (it.ProductID == 0) == (it.MaterialID == 0) {
			return nil, ErrBadItem
		}
		if it.QuantityRequired <= 0 {
			return nil, ErrBadQuantity
		}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	c := Combo{Name: name, Description: description, Items: items}
	if err := tx.QueryRow(ctx, `
		INSERT INTO shipment_combos (name, description)
		VALUES ($1, NULLIF($2,''))
		RETURNING id
	`, name, description).Scan(&c.ID); err != nil {
		return nil, err
	}

	for _, it := range items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO shipment_combo_items (combo_id, product_id, material_id, quantity_required)
			VALUES ($1, NULLIF($2,0), NULLIF($3,0), $4)
		`, c.ID, it.ProductID, it.MaterialID, it.QuantityRequired); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repo) List(ctx context.Context) ([]Combo, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, COALESCE(description,'')
		FROM shipment_combos
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Combo
	for rows.Next() {
		var c Combo
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		items, err := r.GetItems(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

func (r *Repo) GetItems(ctx context.Context, comboID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT COALESCE(product_id,0), COALESCE(material_id,0), quantity_required
		FROM shipment_combo_items
		WHERE combo_id = $1
		ORDER BY COALESCE(product_id,0), COALESCE(material_id,0)
	`, comboID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.MaterialID, &it.QuantityRequired); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Delete удаляет набор; позиции уходят каскадом.
func (r *Repo) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM shipment_combos WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
