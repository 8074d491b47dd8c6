package crud

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scrypto/portal/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// PGRepository implements Repository[T] on Postgres. Reads go through the
// table's view and writes go to the table. T's db tags name the view columns.
type PGRepository[T any] struct {
	pool  *pgxpool.Pool
	table Table
	cols  []string
}

func NewPGRepository[T any](pool *pgxpool.Pool, table Table) *PGRepository[T] {
	return &PGRepository[T]{pool: pool, table: table, cols: Columns[T]()}
}

// connFor prefers the request transaction, then the request connection.
func connFor(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

func (r *PGRepository[T]) conn(ctx context.Context) queryable {
	return connFor(ctx, r.pool)
}

func (r *PGRepository[T]) List(ctx context.Context, userID uuid.UUID, q ListQuery) ([]*T, int, error) {
	countSQL, listSQL, args := buildListSQL(r.table, r.cols, userID, q)
	conn := r.conn(ctx)

	var total int
	if err := conn.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", r.table.Name, err)
	}
	rows, err := conn.Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", r.table.Name, err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByNameLax[T])
	if err != nil {
		return nil, 0, fmt.Errorf("scan %s: %w", r.table.Name, err)
	}
	return items, total, nil
}

func (r *PGRepository[T]) Get(ctx context.Context, userID, id uuid.UUID) (*T, error) {
	sql := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 AND user_id = $2%s`,
		strings.Join(r.cols, ", "), r.table.view(), r.table.Key(), activeClause(r.table))
	rows, err := r.conn(ctx).Query(ctx, sql, id, userID)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", r.table.Name, err)
	}
	item, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByNameLax[T])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", r.table.Name, err)
	}
	return item, nil
}

func (r *PGRepository[T]) Create(ctx context.Context, userID uuid.UUID, values Values) (*T, error) {
	sql, args := buildInsertSQL(r.table, userID, values)
	var id uuid.UUID
	if err := r.conn(ctx).QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		return nil, fmt.Errorf("create %s: %w", r.table.Name, err)
	}
	return r.Get(ctx, userID, id)
}

func (r *PGRepository[T]) Update(ctx context.Context, userID, id uuid.UUID, values Values) (*T, error) {
	sql, args := buildUpdateSQL(r.table, userID, id, values)
	tag, err := r.conn(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", r.table.Name, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, userID, id)
}

func (r *PGRepository[T]) Delete(ctx context.Context, userID, id uuid.UUID) error {
	var sql string
	if r.table.SoftDelete {
		sql = fmt.Sprintf(`UPDATE %s SET is_active = false, updated_at = NOW() WHERE %s = $1 AND user_id = $2 AND is_active`,
			r.table.Name, r.table.Key())
	} else {
		sql = fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND user_id = $2`, r.table.Name, r.table.Key())
	}
	if _, err := r.conn(ctx).Exec(ctx, sql, id, userID); err != nil {
		return fmt.Errorf("delete %s: %w", r.table.Name, err)
	}
	return nil
}

func activeClause(t Table) string {
	if t.SoftDelete {
		return " AND is_active"
	}
	return ""
}

// buildListSQL returns the count and page queries sharing one argument list.
func buildListSQL(t Table, cols []string, userID uuid.UUID, q ListQuery) (string, string, []interface{}) {
	args := []interface{}{userID}
	where := []string{"user_id = $1"}
	if t.SoftDelete {
		where = append(where, "is_active")
	}

	if q.Search != "" && len(t.SearchColumns) > 0 {
		args = append(args, "%"+escapeLike(q.Search)+"%")
		n := len(args)
		ors := make([]string, len(t.SearchColumns))
		for i, c := range t.SearchColumns {
			ors[i] = fmt.Sprintf("%s::text ILIKE $%d", c, n)
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}

	for _, f := range q.Filters {
		args = append(args, f.Value)
		where = append(where, fmt.Sprintf("%s %s $%d", f.Column, f.op(), len(args)))
	}

	whereSQL := strings.Join(where, " AND ")
	countSQL := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, t.view(), whereSQL)

	order := make([]string, 0, len(q.Sort)+1)
	for _, s := range q.Sort {
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		order = append(order, fmt.Sprintf("%s %s NULLS LAST", s.Column, dir))
	}
	order = append(order, t.Key())

	listSQL := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY %s LIMIT %d OFFSET %d`,
		strings.Join(cols, ", "), t.view(), whereSQL, strings.Join(order, ", "), q.PageSize, q.Offset())
	return countSQL, listSQL, args
}

func buildInsertSQL(t Table, userID uuid.UUID, values Values) (string, []interface{}) {
	keys := sortedKeys(values)
	cols := append([]string{"user_id"}, keys...)
	args := []interface{}{userID}
	ph := []string{"$1"}
	for _, k := range keys {
		args = append(args, values[k])
		ph = append(ph, fmt.Sprintf("$%d", len(args)))
	}
	sql := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING %s`,
		t.Name, strings.Join(cols, ", "), strings.Join(ph, ", "), t.Key())
	return sql, args
}

func buildUpdateSQL(t Table, userID, id uuid.UUID, values Values) (string, []interface{}) {
	args := []interface{}{id, userID}
	sets := []string{}
	for _, k := range sortedKeys(values) {
		args = append(args, values[k])
		sets = append(sets, fmt.Sprintf("%s = $%d", k, len(args)))
	}
	sets = append(sets, "updated_at = NOW()")
	sql := fmt.Sprintf(`UPDATE %s SET %s WHERE %s = $1 AND user_id = $2%s`,
		t.Name, strings.Join(sets, ", "), t.Key(), activeClause(t))
	return sql, args
}

// sortedKeys keeps generated SQL deterministic.
func sortedKeys(v Values) []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
