package materials

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

const matCols = `
	id, material_code, name, COALESCE(description,''), quantity, unit,
	COALESCE(supplier,''), COALESCE(notes,''), low_stock_alert, can_sell, updated_at`

func scanMaterial(row pgx.Row) (*Material, error) {
	var m Material
	if err := row.Scan(
		&m.ID,
		&m.MaterialCode,
		&m.Name,
		&m.Description,
		&m.Quantity,
		&m.Unit,
		&m.Supplier,
		&m.Notes,
		&m.LowStockAlert,
		&m.CanSell,
		&m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}

/* Materials CRUD */

func (r *Repo) Create(ctx context.Context, code, name, description, unit string, quantity float64, supplier, notes string, lowStockAlert *float64, canSell bool) (*Material, error) {
	if quantity < 0 {
		return nil, ErrNegativeQuantity
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO materials (material_code, name, description, quantity, unit, supplier, notes, low_stock_alert, can_sell)
		VALUES ($1,$2,NULLIF($3,''),$4,$5,NULLIF($6,''),NULLIF($7,''),$8,$9)
		RETURNING`+matCols,
		code, name, description, quantity, unit, supplier, notes, lowStockAlert, canSell)
	return scanMaterial(row)
}

func (r *Repo) GetByID(ctx context.Context, id int64) (*Material, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+matCols+` FROM materials WHERE id = $1`, id)
	m, err := scanMaterial(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

func (r *Repo) GetByCode(ctx context.Context, code string) (*Material, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+matCols+` FROM materials WHERE material_code = $1`, code)
	m, err := scanMaterial(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

func (r *Repo) List(ctx context.Context) ([]Material, error) {
	rows, err := r.pool.Query(ctx, `SELECT`+matCols+` FROM materials ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// SearchByName ищет материалы по части названия/кода, без учёта регистра.
func (r *Repo) SearchByName(ctx context.Context, q string) ([]Material, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}
	like := "%" + strings.ToLower(q) + "%"

	rows, err := r.pool.Query(ctx, `
		SELECT`+matCols+`
		FROM materials
		WHERE LOWER(name) LIKE $1 OR LOWER(material_code) LIKE $1
		ORDER BY name
	`, like)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// ListLowStock возвращает материалы, у которых остаток ниже порога предупреждения.
func (r *Repo) ListLowStock(ctx context.Context) ([]Material, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+matCols+`
		FROM materials
		WHERE low_stock_alert IS NOT NULL AND quantity < low_stock_alert
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *Repo) Update(ctx context.Context, id int64, u Update) (*Material, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE materials
		SET name=$2, description=NULLIF($3,''), unit=$4, supplier=NULLIF($5,''),
		    notes=NULLIF($6,''), low_stock_alert=$7, can_sell=$8, updated_at=now()
		WHERE id=$1
		RETURNING`+matCols,
		id, u.Name, u.Description, u.Unit, u.Supplier, u.Notes, u.LowStockAlert, u.CanSell)
	m, err := scanMaterial(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

// Delete удаляет строку материала. Проверки зависимостей делает вызывающий
// (refguard); FK с ON DELETE RESTRICT страхуют от гонки на уровне БД.
func (r *Repo) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM materials WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

/* Stock ledger */

func (r *Repo) GetQuantity(ctx context.Context, id int64) (float64, error) {
	var q float64
	err := r.pool.QueryRow(ctx, `SELECT quantity FROM materials WHERE id=$1`, id).Scan(&q)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return q, err
}

// ApplyDelta прибавляет delta (может быть отрицательной) к остатку одной
// командой: проверка «не уйдём в минус» и запись неразделимы, читать-потом-писать
// здесь нельзя. CTE заодно отличает «материала нет» от «не хватило остатка»
// в том же стейтменте, без второго запроса.
func (r *Repo) ApplyDelta(ctx context.Context, id int64, delta float64) (float64, error) {
	var newQty *float64
	err := r.pool.QueryRow(ctx, `
		WITH target AS (
			SELECT id FROM materials WHERE id = $1
		), updated AS (
			UPDATE materials m
			SET quantity = m.quantity + $2, updated_at = now()
			FROM target t
			WHERE m.id = t.id AND m.quantity + $2 >= 0
			RETURNING m.quantity
		)
		SELECT u.quantity
		FROM target t
		LEFT JOIN updated u ON TRUE
	`, id, delta).Scan(&newQty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	if newQty == nil {
		return 0, ErrInsufficientStock
	}
	return *newQty, nil
}

// SetQuantity — ручная правка остатка (абсолютное значение).
func (r *Repo) SetQuantity(ctx context.Context, id int64, quantity float64) (*Material, error) {
	if quantity < 0 {
		return nil, ErrNegativeQuantity
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE materials SET quantity=$2, updated_at=now()
		WHERE id=$1
		RETURNING`+matCols, id, quantity)
	m, err := scanMaterial(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}
