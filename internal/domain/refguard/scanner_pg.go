package refguard

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PgScanner struct{ pool *pgxpool.Pool }

func NewPgScanner(pool *pgxpool.Pool) *PgScanner { return &PgScanner{pool: pool} }

// Имена таблиц и колонок приходят только из фиксированного списка relations,
// в строку запроса они попадают без пользовательского ввода.
func (s *PgScanner) Exists(ctx context.Context, rel Relation, id int64) (bool, error) {
	q := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE %s = $1)`, rel.Table, rel.Column)
	var found bool
	if err := s.pool.QueryRow(ctx, q, id).Scan(&found); err != nil {
		return false, err
	}
	return found, nil
}
