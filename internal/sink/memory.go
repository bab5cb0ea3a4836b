package sink

import (
	"context"
	"strings"
	"sync"

	"github.com/fortuna/cesta/internal/mapping"
	"github.com/fortuna/cesta/internal/syncerr"
)

// Call records one operation a Memory sink received.
type Call struct {
	Op    string
	Table string
	Rows  int
}

// Memory is an in-process row store. It backs --dry-run and tests.
type Memory struct {
	mu     sync.Mutex
	tables map[string][]mapping.Row
	calls  []Call
	fail   map[string]error
}

func NewMemory() *Memory {
	return &Memory{
		tables: map[string][]mapping.Row{},
		fail:   map[string]error{},
	}
}

// FailOn makes every later call of op ("delete", "insert", "upsert") fail.
func (m *Memory) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[op] = err
}

func (m *Memory) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// Rows returns a copy of table's rows in storage order.
func (m *Memory) Rows(table string) []mapping.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mapping.Row, len(m.tables[table]))
	for i, r := range m.tables[table] {
		out[i] = copyRow(r)
	}
	return out
}

// Seed loads rows without recording a call.
func (m *Memory) Seed(table string, rows ...mapping.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.tables[table] = append(m.tables[table], copyRow(r))
	}
}

func (m *Memory) Delete(_ context.Context, table string, filter Filter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("delete", table, 0); err != nil {
		return err
	}
	if err := filter.Validate(); err != nil {
		return syncerr.SinkWrite(err, "delete %s", table)
	}

	keep := m.tables[table][:0]
	for _, row := range m.tables[table] {
		if !matches(row, filter) {
			keep = append(keep, row)
		}
	}
	m.tables[table] = keep
	return nil
}

func (m *Memory) Insert(_ context.Context, table string, columns []string, rows []mapping.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("insert", table, len(rows)); err != nil {
		return err
	}
	for _, r := range project(columns, rows) {
		m.tables[table] = append(m.tables[table], mapping.Row(r))
	}
	return nil
}

func (m *Memory) Upsert(_ context.Context, table string, columns []string, rows []mapping.Row, conflictKey []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("upsert", table, len(rows)); err != nil {
		return err
	}
	if len(conflictKey) == 0 {
		return syncerr.SinkWrite(nil, "upsert %s: conflict key is required", table)
	}

	projected := project(columns, rows)
	seen := make(map[string]struct{}, len(projected))
	for _, r := range projected {
		k := keyOf(r, conflictKey)
		if _, dup := seen[k]; dup {
			return syncerr.SinkWrite(nil, "upsert %s: key %s appears twice in one statement", table, k)
		}
		seen[k] = struct{}{}
	}

	for _, r := range projected {
		k := keyOf(r, conflictKey)
		replaced := false
		for i, existing := range m.tables[table] {
			if keyOf(existing, conflictKey) == k {
				for c, v := range r {
					existing[c] = v
				}
				m.tables[table][i] = existing
				replaced = true
				break
			}
		}
		if !replaced {
			m.tables[table] = append(m.tables[table], mapping.Row(r))
		}
	}
	return nil
}

func (m *Memory) record(op, table string, rows int) error {
	m.calls = append(m.calls, Call{Op: op, Table: table, Rows: rows})
	if err := m.fail[op]; err != nil {
		return syncerr.SinkWrite(err, "%s %s", op, table)
	}
	return nil
}

// matches follows SQL semantics: a NULL column never satisfies <> or NOT IN.
func matches(row mapping.Row, f Filter) bool {
	if row[f.Column] == nil {
		return false
	}
	v := formatValue(row[f.Column])
	switch f.Op {
	case OpNotEqual:
		return v != formatValue(f.Value)
	case OpNotIn:
		for _, candidate := range f.Values {
			if v == formatValue(candidate) {
				return false
			}
		}
		return true
	}
	return false
}

func keyOf(row map[string]any, key []string) string {
	parts := make([]string, len(key))
	for i, k := range key {
		parts[i] = formatValue(row[k])
	}
	return strings.Join(parts, "\x1f")
}

func copyRow(r mapping.Row) mapping.Row {
	out := make(mapping.Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
