package sales

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("sales record not found")

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

// Create пишет запись и её позиции одной транзакцией.
func (r *Repo) Create(ctx context.Context, rec Record) (*Record, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		INSERT INTO sales_records
			(sale_date, order_number, customer, sales_amount, receiver, shipping_fee, handling_fee, income, notes)
		VALUES ($1,$2,NULLIF($3,''),$4,NULLIF($5,''),$6,$7,$8,NULLIF($9,''))
		RETURNING id, created_at
	`, rec.SaleDate, rec.OrderNumber, rec.Customer, rec.SalesAmount, rec.Receiver,
		rec.ShippingFee, rec.HandlingFee, rec.Income, rec.Notes)
	if err := row.Scan(&rec.ID, &rec.CreatedAt); err != nil {
		return nil, err
	}

	for _, it := range rec.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO sales_record_items (sale_id, material_id, name, quantity)
			VALUES ($1,$2,$3,$4)
		`, rec.ID, it.MaterialID, it.Name, it.Quantity); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *Repo) List(ctx context.Context) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, sale_date, order_number, COALESCE(customer,''), sales_amount,
		       COALESCE(receiver,''), shipping_fee, handling_fee, income,
		       COALESCE(notes,''), created_at
		FROM sales_records
		ORDER BY sale_date DESC, created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.SaleDate, &rec.OrderNumber, &rec.Customer,
			&rec.SalesAmount, &rec.Receiver, &rec.ShippingFee, &rec.HandlingFee,
			&rec.Income, &rec.Notes, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		items, err := r.items(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

func (r *Repo) items(ctx context.Context, saleID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT material_id, name, quantity
		FROM sales_record_items
		WHERE sale_id = $1
		ORDER BY material_id
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.MaterialID, &it.Name, &it.Quantity); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Delete удаляет запись; позиции уходят каскадом.
func (r *Repo) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sales_records WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
