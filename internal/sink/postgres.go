package sink

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/fortuna/cesta/internal/logging"
	"github.com/fortuna/cesta/internal/mapping"
	"github.com/fortuna/cesta/internal/store"
	"github.com/fortuna/cesta/internal/syncerr"
)

// maxParams stays under Postgres' 65535 bind parameter limit.
const maxParams = 60000

// Postgres writes with plain SQL over a direct connection.
type Postgres struct {
	db     *sqlx.DB
	logger *logging.Logger
}

func NewPostgres(db *store.Database, logger *logging.Logger) *Postgres {
	if logger == nil {
		logger = logging.Default()
	}
	return &Postgres{db: db.DB(), logger: logger.Named("postgres-sink")}
}

func (p *Postgres) Delete(ctx context.Context, table string, filter Filter) error {
	if err := filter.Validate(); err != nil {
		return syncerr.SinkWrite(err, "delete %s", table)
	}

	var (
		query string
		arg   any
	)
	switch filter.Op {
	case OpNotEqual:
		query = fmt.Sprintf("DELETE FROM %s WHERE %s <> $1", pq.QuoteIdentifier(table), pq.QuoteIdentifier(filter.Column))
		arg = filter.Value
	case OpNotIn:
		keys := make([]string, len(filter.Values))
		for i, v := range filter.Values {
			keys[i] = formatValue(v)
		}
		query = fmt.Sprintf("DELETE FROM %s WHERE %s::text <> ALL($1)", pq.QuoteIdentifier(table), pq.QuoteIdentifier(filter.Column))
		arg = pq.Array(keys)
	}

	res, err := p.db.ExecContext(ctx, query, arg)
	if err != nil {
		return syncerr.SinkWrite(err, "delete %s", table)
	}
	if n, err := res.RowsAffected(); err == nil {
		p.logger.DebugContext(ctx, "rows deleted", "table", table, "rows", n)
	}
	return nil
}

func (p *Postgres) Insert(ctx context.Context, table string, columns []string, rows []mapping.Row) error {
	return p.write(ctx, table, columns, rows, "")
}

func (p *Postgres) Upsert(ctx context.Context, table string, columns []string, rows []mapping.Row, conflictKey []string) error {
	if len(conflictKey) == 0 {
		return syncerr.SinkWrite(nil, "upsert %s: conflict key is required", table)
	}
	return p.write(ctx, table, columns, rows, onConflict(columns, conflictKey))
}

// write inserts rows in chunks inside one transaction.
func (p *Postgres) write(ctx context.Context, table string, columns []string, rows []mapping.Row, suffix string) error {
	if len(columns) == 0 {
		return syncerr.SinkWrite(nil, "write %s: no columns", table)
	}
	if len(rows) == 0 {
		return nil
	}

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return syncerr.SinkWrite(err, "begin write %s", table)
	}
	defer func() { _ = tx.Rollback() }()

	chunk := max(maxParams/len(columns), 1)
	for start := 0; start < len(rows); start += chunk {
		end := min(start+chunk, len(rows))
		query, args := insertStatement(table, columns, rows[start:end])
		if _, err := tx.ExecContext(ctx, query+suffix, args...); err != nil {
			return syncerr.SinkWrite(err, "write %s rows %d-%d", table, start, end-1)
		}
	}

	if err := tx.Commit(); err != nil {
		return syncerr.SinkWrite(err, "commit write %s", table)
	}
	return nil
}

func insertStatement(table string, columns []string, rows []mapping.Row) (string, []any) {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = pq.QuoteIdentifier(c)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", pq.QuoteIdentifier(table), strings.Join(quoted, ", "))

	args := make([]any, 0, len(rows)*len(columns))
	for r, row := range rows {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c, col := range columns {
			if c > 0 {
				b.WriteString(", ")
			}
			args = append(args, row[col])
			fmt.Fprintf(&b, "$%d", len(args))
		}
		b.WriteByte(')')
	}
	return b.String(), args
}

func onConflict(columns, key []string) string {
	isKey := make(map[string]bool, len(key))
	quotedKey := make([]string, len(key))
	for i, k := range key {
		isKey[k] = true
		quotedKey[i] = pq.QuoteIdentifier(k)
	}

	var sets []string
	for _, c := range columns {
		if isKey[c] {
			continue
		}
		q := pq.QuoteIdentifier(c)
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", q, q))
	}

	target := strings.Join(quotedKey, ", ")
	if len(sets) == 0 {
		return fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", target)
	}
	return fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", target, strings.Join(sets, ", "))
}
