package products

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func kindOf(isProduct bool) Kind {
	if isProduct {
		return KindProduct
	}
	return KindCombo
}

func scanProduct(row pgx.Row) (*Product, error) {
	var (
		p         Product
		isProduct bool
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.OutputMaterialID, &isProduct); err != nil {
		return nil, err
	}
	p.Kind = kindOf(isProduct)
	return &p, nil
}

const prodCols = ` id, name, COALESCE(description,''), COALESCE(material_id,0), is_product`

/* Products CRUD */

func (r *Repo) Create(ctx context.Context, name, description string, kind Kind, outputMaterialID int64) (*Product, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO products (name, description, material_id, is_product)
		VALUES ($1, NULLIF($2,''), NULLIF($3,0), $4)
		RETURNING`+prodCols,
		name, description, outputMaterialID, kind == KindProduct)
	return scanProduct(row)
}

func (r *Repo) GetByID(ctx context.Context, id int64) (*Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT`+prodCols+` FROM products WHERE id=$1`, id)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// List возвращает продукты; kind == "" — без фильтра.
func (r *Repo) List(ctx context.Context, kind Kind) ([]Product, error) {
	q := `SELECT` + prodCols + ` FROM products`
	args := []any{}
	if kind != "" {
		q += ` WHERE is_product = $1`
		args = append(args, kind == KindProduct)
	}
	q += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *Repo) Update(ctx context.Context, id int64, name, description string) (*Product, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE products SET name=$2, description=NULLIF($3,'')
		WHERE id=$1
		RETURNING`+prodCols, id, name, description)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// SetOutputMaterial назначает выходной материал (0 — снять назначение).
func (r *Repo) SetOutputMaterial(ctx context.Context, id, materialID int64) (*Product, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE products SET material_id=NULLIF($2,0)
		WHERE id=$1
		RETURNING`+prodCols, id, materialID)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// Delete удаляет строку продукта; зависимости проверяет вызывающий (refguard).
func (r *Repo) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

/* Recipes */

func (r *Repo) GetRecipe(ctx context.Context, productID int64) ([]RecipeEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT material_id, quantity_required
		FROM product_recipes
		WHERE product_id = $1
		ORDER BY material_id
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RecipeEntry
	for rows.Next() {
		var e RecipeEntry
		if err := rows.Scan(&e.MaterialID, &e.QuantityRequired); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// recipeTx — шаги замены рецепта внутри одной транзакции.
type recipeTx interface {
	outputMaterialID(ctx context.Context, productID int64) (int64, error)
	clearRecipe(ctx context.Context, productID int64) error
	insertEntry(ctx context.Context, productID int64, e RecipeEntry) error
}

// replaceRecipe целиком заменяет рецепт продукта: старый набор удаляется, новый
// вставляется. Повторный вызов с тем же списком даёт тот же результат без дублей.
func replaceRecipe(ctx context.Context, tx recipeTx, productID int64, entries []RecipeEntry) error {
	outputMaterialID, err := tx.outputMaterialID(ctx, productID)
	if err != nil {
		return err
	}
	if err := ValidateRecipe(outputMaterialID, entries); err != nil {
		return err
	}

	if err := tx.clearRecipe(ctx, productID); err != nil {
		return err
	}
	for _, e := range entries {
		if err := tx.insertEntry(ctx, productID, e); err != nil {
			return err
		}
	}
	return nil
}

type pgRecipeTx struct{ tx pgx.Tx }

func (t pgRecipeTx) outputMaterialID(ctx context.Context, productID int64) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(material_id,0) FROM products WHERE id=$1`, productID).
		Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return id, err
}

func (t pgRecipeTx) clearRecipe(ctx context.Context, productID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM product_recipes WHERE product_id=$1`, productID)
	return err
}

func (t pgRecipeTx) insertEntry(ctx context.Context, productID int64, e RecipeEntry) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO product_recipes (product_id, material_id, quantity_required)
		VALUES ($1,$2,$3)
	`, productID, e.MaterialID, e.QuantityRequired)
	return err
}

// SetRecipe — замена рецепта в одной транзакции (см. replaceRecipe).
func (r *Repo) SetRecipe(ctx context.Context, productID int64, entries []RecipeEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := replaceRecipe(ctx, pgRecipeTx{tx: tx}, productID, entries); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
