// Package tablesync reconciles a destination table with one run's rows.
package tablesync

import (
	"context"
	"fmt"
	"strings"

	"github.com/fortuna/cesta/internal/mapping"
	"github.com/fortuna/cesta/internal/sink"
	"github.com/fortuna/cesta/internal/syncerr"
)

type Strategy string

const (
	// StrategyUpsert writes rows keyed by ConflictKey and leaves other rows alone.
	StrategyUpsert Strategy = "upsert"
	// StrategyReplace deletes every row, then inserts the run's rows. The two
	// calls are not atomic: readers can observe an empty table in between.
	StrategyReplace Strategy = "replace"
)

// StalePolicy decides what happens, under upsert, to rows whose key is not
// part of the current run.
type StalePolicy string

const (
	StaleKeep  StalePolicy = "keep"
	StalePrune StalePolicy = "prune"
)

// Sentinel is the "column <> value" filter a replace uses to match every
// row. The value must never occur in the column.
type Sentinel struct {
	Column string `yaml:"column"`
	Value  any    `yaml:"value"`
}

type Target struct {
	Table       string      `yaml:"table"`
	Strategy    Strategy    `yaml:"strategy"`
	ConflictKey []string    `yaml:"conflict_key"`
	Sentinel    Sentinel    `yaml:"sentinel"`
	BatchSize   int         `yaml:"batch_size"`
	Stale       StalePolicy `yaml:"stale"`
}

func (t Target) Validate() error {
	if t.Table == "" {
		return fmt.Errorf("target table is required")
	}
	if t.BatchSize < 0 {
		return fmt.Errorf("batch_size must be >= 0")
	}
	switch t.Strategy {
	case StrategyUpsert:
		if len(t.ConflictKey) == 0 {
			return fmt.Errorf("upsert into %s needs conflict_key", t.Table)
		}
		switch t.Stale {
		case "", StaleKeep:
		case StalePrune:
			if len(t.ConflictKey) != 1 {
				return fmt.Errorf("stale: prune needs a single-column conflict_key")
			}
		default:
			return fmt.Errorf("unknown stale policy %q", t.Stale)
		}
	case StrategyReplace:
		if t.Sentinel.Column == "" || t.Sentinel.Value == nil {
			return fmt.Errorf("replace on %s needs sentinel column and value", t.Table)
		}
	default:
		return fmt.Errorf("unknown strategy %q", t.Strategy)
	}
	return nil
}

// Result summarizes one reconciliation.
type Result struct {
	Written int
	Batches int
	Pruned  bool
	// Duplicates counts rows dropped because a later row had the same
	// conflict key.
	Duplicates int
}

// Sync writes rows into the target table. Zero rows make no sink call and
// return syncerr.ErrNoData; callers apply their empty-result policy.
func Sync(ctx context.Context, s sink.Sink, target Target, columns []string, rows []mapping.Row) (Result, error) {
	if err := target.Validate(); err != nil {
		return Result{}, err
	}
	if len(rows) == 0 {
		return Result{}, syncerr.ErrNoData
	}

	switch target.Strategy {
	case StrategyReplace:
		return replace(ctx, s, target, columns, rows)
	default:
		return upsert(ctx, s, target, columns, rows)
	}
}

func replace(ctx context.Context, s sink.Sink, target Target, columns []string, rows []mapping.Row) (Result, error) {
	filter := sink.Filter{Column: target.Sentinel.Column, Op: sink.OpNotEqual, Value: target.Sentinel.Value}
	if err := s.Delete(ctx, target.Table, filter); err != nil {
		return Result{}, err
	}

	var res Result
	for _, batch := range batches(rows, target.BatchSize) {
		if err := s.Insert(ctx, target.Table, columns, batch); err != nil {
			return res, err
		}
		res.Written += len(batch)
		res.Batches++
	}
	return res, nil
}

func upsert(ctx context.Context, s sink.Sink, target Target, columns []string, rows []mapping.Row) (Result, error) {
	var res Result
	rows, res.Duplicates = lastPerKey(rows, target.ConflictKey)
	for _, batch := range batches(rows, target.BatchSize) {
		if err := s.Upsert(ctx, target.Table, columns, batch, target.ConflictKey); err != nil {
			return res, err
		}
		res.Written += len(batch)
		res.Batches++
	}

	if target.Stale == StalePrune {
		key := target.ConflictKey[0]
		keys := make([]any, 0, len(rows))
		for _, row := range rows {
			if v := row[key]; v != nil {
				keys = append(keys, v)
			}
		}
		if len(keys) > 0 {
			if err := s.Delete(ctx, target.Table, sink.Filter{Column: key, Op: sink.OpNotIn, Values: keys}); err != nil {
				return res, err
			}
			res.Pruned = true
		}
	}
	return res, nil
}

// lastPerKey keeps the last row for each conflict key, at the position of
// the key's first occurrence. Postgres rejects an upsert statement that
// touches the same key twice.
func lastPerKey(rows []mapping.Row, key []string) ([]mapping.Row, int) {
	pos := make(map[string]int, len(rows))
	out := make([]mapping.Row, 0, len(rows))
	for _, row := range rows {
		k := conflictValue(row, key)
		if i, ok := pos[k]; ok {
			out[i] = row
			continue
		}
		pos[k] = len(out)
		out = append(out, row)
	}
	return out, len(rows) - len(out)
}

func conflictValue(row mapping.Row, key []string) string {
	parts := make([]string, len(key))
	for i, k := range key {
		parts[i] = fmt.Sprintf("%T:%v", row[k], row[k])
	}
	return strings.Join(parts, "\x1f")
}

func batches(rows []mapping.Row, size int) [][]mapping.Row {
	if size <= 0 || size >= len(rows) {
		return [][]mapping.Row{rows}
	}
	out := make([][]mapping.Row, 0, (len(rows)+size-1)/size)
	for start := 0; start < len(rows); start += size {
		out = append(out, rows[start:min(start+size, len(rows))])
	}
	return out
}
