package production

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Spok95/workshop-stock/internal/domain/products"
)

// PgStore исполняет производственную транзакцию в Postgres. Строки материалов
// берутся через SELECT ... FOR UPDATE, так что между проверкой достаточности и
// списанием не может вклиниться чужая запись.
type PgStore struct {
	pool     *pgxpool.Pool
	deadline time.Duration
}

func NewPgStore(pool *pgxpool.Pool, deadline time.Duration) *PgStore {
	return &PgStore{pool: pool, deadline: deadline}
}

func (s *PgStore) Run(ctx context.Context, fn func(tx Tx) error) error {
	if s.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.deadline)
		defer cancel()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return mapConflict(err)
	}
	return mapConflict(tx.Commit(ctx))
}

// Дедлок или serialization failure: транзакцию можно безопасно повторить.
func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01") {
		return fmt.Errorf("%s: %w", pgErr.Message, ErrConflict)
	}
	return err
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) Product(ctx context.Context, productID int64) (*products.Product, error) {
	var (
		p         products.Product
		isProduct bool
	)
	err := t.tx.QueryRow(ctx, `
		SELECT id, name, COALESCE(description,''), COALESCE(material_id,0), is_product
		FROM products WHERE id=$1
	`, productID).Scan(&p.ID, &p.Name, &p.Description, &p.OutputMaterialID, &isProduct)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Kind = products.KindCombo
	if isProduct {
		p.Kind = products.KindProduct
	}
	return &p, nil
}

func (t *pgTx) Recipe(ctx context.Context, productID int64) ([]products.RecipeEntry, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT material_id, quantity_required
		FROM product_recipes
		WHERE product_id=$1
		ORDER BY material_id
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []products.RecipeEntry
	for rows.Next() {
		var e products.RecipeEntry
		if err := rows.Scan(&e.MaterialID, &e.QuantityRequired); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *pgTx) LockMaterials(ctx context.Context, ids []int64) (map[int64]MaterialState, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, name, quantity
		FROM materials
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]MaterialState, len(ids))
	for rows.Next() {
		var (
			id int64
			st MaterialState
		)
		if err := rows.Scan(&id, &st.Name, &st.Quantity); err != nil {
			return nil, err
		}
		out[id] = st
	}
	return out, rows.Err()
}

func (t *pgTx) ApplyDelta(ctx context.Context, materialID int64, delta float64) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE materials SET quantity = quantity + $2, updated_at = now()
		WHERE id = $1
	`, materialID, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMaterialNotFound
	}
	return nil
}
