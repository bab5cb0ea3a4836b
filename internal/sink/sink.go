// Package sink writes normalized rows into a keyed row store.
package sink

import (
	"context"
	"fmt"

	"github.com/fortuna/cesta/internal/mapping"
)

type FilterOp string

const (
	// OpNotEqual matches rows whose column differs from Value.
	OpNotEqual FilterOp = "neq"
	// OpNotIn matches rows whose column is outside Values.
	OpNotIn FilterOp = "not_in"
)

// Filter selects the rows a Delete removes.
type Filter struct {
	Column string
	Op     FilterOp
	Value  any
	Values []any
}

func (f Filter) Validate() error {
	if f.Column == "" {
		return fmt.Errorf("delete filter needs a column")
	}
	switch f.Op {
	case OpNotEqual:
		if f.Value == nil {
			return fmt.Errorf("neq filter needs a value")
		}
	case OpNotIn:
		if len(f.Values) == 0 {
			return fmt.Errorf("not_in filter needs values")
		}
	default:
		return fmt.Errorf("unknown filter op %q", f.Op)
	}
	return nil
}

// Sink is the destination store. Implementations wrap failures as
// syncerr.ErrSinkWrite.
type Sink interface {
	Delete(ctx context.Context, table string, filter Filter) error
	Insert(ctx context.Context, table string, columns []string, rows []mapping.Row) error
	Upsert(ctx context.Context, table string, columns []string, rows []mapping.Row, conflictKey []string) error
}

// project returns rows restricted to columns, as plain maps for encoders.
func project(columns []string, rows []mapping.Row) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		m := make(map[string]any, len(columns))
		for _, c := range columns {
			m[c] = row[c]
		}
		out[i] = m
	}
	return out
}
