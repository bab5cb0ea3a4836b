package mapping

import (
	"strings"

	"github.com/fortuna/cesta/internal/syncerr"
)

// Normalize maps every record to a row, preserving source order. Records that
// fail a required column (or carry too few cells) are left out and reported
// in skipped as syncerr.ErrRowCoercion; they never abort the batch.
func (m *Mapping) Normalize(records []Record) (rows []Row, skipped []error, err error) {
	if err := m.Compile(); err != nil {
		return nil, nil, err
	}

	rows = make([]Row, 0, len(records))
	for i, rec := range records {
		row, rowErr := m.normalizeOne(i, rec)
		if rowErr != nil {
			skipped = append(skipped, rowErr)
			continue
		}
		rows = append(rows, row)
	}
	return rows, skipped, nil
}

// NormalizeOne maps a single record.
func (m *Mapping) NormalizeOne(rec Record) (Row, error) {
	if err := m.Compile(); err != nil {
		return nil, err
	}
	return m.normalizeOne(0, rec)
}

func (m *Mapping) normalizeOne(idx int, rec Record) (Row, error) {
	rec = m.flatten(rec)

	if m.MinCells > 0 {
		cells, _ := Resolve(rec, m.cells)
		arr, _ := cells.([]any)
		if len(arr) < m.MinCells {
			return nil, syncerr.RowCoercion("record %d: %d cells, want at least %d", idx, len(arr), m.MinCells)
		}
	}

	row := make(Row, len(m.Columns))
	for i := range m.Columns {
		col := &m.Columns[i]
		v, found, unparsable := col.resolve(rec)
		if !found && col.Derive != nil {
			v, found = col.derive(row)
		}
		if !found {
			if col.Required {
				if unparsable != "" {
					return nil, syncerr.RowCoercion("record %d: column %q: %s", idx, col.Name, unparsable)
				}
				return nil, syncerr.RowCoercion("record %d: column %q: no candidate resolved", idx, col.Name)
			}
			v = col.Default
		}
		row[col.Name] = v
	}
	return row, nil
}

// resolve tries each candidate in order and returns the first one that is
// defined and coerces cleanly. unparsable describes the last coercion error.
func (c *Column) resolve(rec Record) (v any, found bool, unparsable string) {
	for _, p := range c.paths {
		raw, ok := Lookup(rec, p)
		if !ok {
			continue
		}
		if s, isString := raw.(string); isString {
			if c.strip != nil {
				s = c.strip.ReplaceAllString(s, "")
			}
			s = strings.TrimSpace(s)
			if s == "" && (c.BlankIsMissing || c.Type == TypeInt || c.Type == TypeFloat) {
				continue
			}
			raw = s
		}
		out, err := coerce(raw, c.Type)
		if err != nil {
			unparsable = err.Error()
			continue
		}
		if c.Round != nil {
			out = round(out.(float64), *c.Round)
		}
		return out, true, ""
	}
	return nil, false, unparsable
}

func (c *Column) derive(row Row) (any, bool) {
	a, okA := asFloat(row[c.Derive.Args[0]])
	b, okB := asFloat(row[c.Derive.Args[1]])
	if !okA || !okB {
		return nil, false
	}

	var result float64
	switch c.Derive.Op {
	case OpWinPct:
		if a+b == 0 {
			return nil, false
		}
		result = round(a/(a+b), 3)
	case OpDifference:
		result = a - b
	case OpSum:
		result = a + b
	}

	if c.Round != nil {
		result = round(result, *c.Round)
	}
	out, err := coerce(result, c.Type)
	if err != nil {
		return nil, false
	}
	return out, true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func (m *Mapping) flatten(rec Record) Record {
	if len(m.Flatten) == 0 {
		return rec
	}
	obj, ok := rec.(map[string]any)
	if !ok {
		return rec
	}

	out := make(map[string]any, len(obj)+len(m.Flatten))
	for k, v := range obj {
		out[k] = v
	}
	for _, f := range m.Flatten {
		entries, ok := Resolve(obj, f.from)
		if !ok {
			continue
		}
		arr, ok := entries.([]any)
		if !ok {
			continue
		}
		out[f.Into] = f.apply(arr)
	}
	return out
}

func (f *Flatten) apply(entries []any) map[string]any {
	lookup := make(map[string]any, len(entries)*len(f.keys))
	for _, entry := range entries {
		var value any
		for _, vp := range f.values {
			v, ok := Lookup(entry, vp)
			if !ok {
				continue
			}
			if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
				continue
			}
			value = v
			break
		}
		if value == nil {
			continue
		}
		for _, kp := range f.keys {
			raw, ok := Lookup(entry, kp)
			if !ok {
				continue
			}
			if key, err := coerceString(raw); err == nil && key != "" {
				lookup[key] = value
			}
		}
	}
	return lookup
}
