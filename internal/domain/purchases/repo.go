package purchases

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("purchase record not found")

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

const purCols = `
	id, purchase_date, invoice_number, COALESCE(material_id,0), name,
	COALESCE(specification,''), COALESCE(description,''), quantity,
	COALESCE(seller,''), COALESCE(payer,''), amount, created_at`

func (r *Repo) Create(ctx context.Context, rec Record) (*Record, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO purchase_records
			(purchase_date, invoice_number, material_id, name, specification, description, quantity, seller, payer, amount)
		VALUES ($1,$2,NULLIF($3,0),$4,NULLIF($5,''),NULLIF($6,''),$7,NULLIF($8,''),NULLIF($9,''),$10)
		RETURNING`+purCols,
		rec.PurchaseDate, rec.InvoiceNumber, rec.MaterialID, rec.Name, rec.Specification,
		rec.Description, rec.Quantity, rec.Seller, rec.Payer, rec.Amount)
	var out Record
	if err := row.Scan(&out.ID, &out.PurchaseDate, &out.InvoiceNumber, &out.MaterialID,
		&out.Name, &out.Specification, &out.Description, &out.Quantity,
		&out.Seller, &out.Payer, &out.Amount, &out.CreatedAt); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Repo) List(ctx context.Context) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+purCols+`
		FROM purchase_records
		ORDER BY purchase_date DESC, created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.PurchaseDate, &rec.InvoiceNumber, &rec.MaterialID,
			&rec.Name, &rec.Specification, &rec.Description, &rec.Quantity,
			&rec.Seller, &rec.Payer, &rec.Amount, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *Repo) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM purchase_records WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
