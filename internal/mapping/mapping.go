// Package mapping turns loosely shaped source records into fixed-shape rows.
//
// A Mapping is data: every destination column lists the candidate paths
// where its value may live, how to coerce it and what to use when nothing
// resolves. Mappings are usually declared in the job catalog YAML.
package mapping

import (
	"fmt"
	"regexp"
	"strings"
)

// Record is one raw entity as decoded from a source payload.
type Record = any

// Row is one normalized destination row keyed by column name.
type Row map[string]any

// Values returns the row's values in the given column order.
func (r Row) Values(columns []string) []any {
	out := make([]any, len(columns))
	for i, c := range columns {
		out[i] = r[c]
	}
	return out
}

type Mapping struct {
	Flatten   []Flatten `yaml:"flatten"`
	MinCells  int       `yaml:"min_cells"`
	CellsPath string    `yaml:"cells_path"`
	Columns   []Column  `yaml:"columns"`

	cells    Path
	compiled bool
}

type Column struct {
	Name           string   `yaml:"name"`
	Paths          []string `yaml:"paths"`
	Type           Type     `yaml:"type"`
	Default        any      `yaml:"default"`
	Required       bool     `yaml:"required"`
	BlankIsMissing bool     `yaml:"blank_is_missing"`
	Strip          string   `yaml:"strip"`
	Round          *int     `yaml:"round"`
	Derive         *Derive  `yaml:"derive"`

	paths []Path
	strip *regexp.Regexp
}

// Derive computes a column from other columns of the same row. It is only
// consulted when the column's own paths resolve to nothing.
type Derive struct {
	Op   DeriveOp `yaml:"op"`
	Args []string `yaml:"args"`
}

type DeriveOp string

const (
	OpWinPct     DeriveOp = "win_pct"
	OpDifference DeriveOp = "difference"
	OpSum        DeriveOp = "sum"
)

// Flatten rewrites an array of stat entries such as
// {"name":"wins","abbreviation":"W","displayValue":"48"} into an object keyed
// by every non-empty key field, stored at Into on the record.
type Flatten struct {
	From   string   `yaml:"from"`
	Into   string   `yaml:"into"`
	Keys   []string `yaml:"keys"`
	Values []string `yaml:"values"`

	from   Path
	keys   []Path
	values []Path
}

// Compile validates the mapping and prepares paths and patterns. Normalize
// calls it lazily; loaders call it up front to fail on bad catalog entries.
func (m *Mapping) Compile() error {
	if m.compiled {
		return nil
	}
	if len(m.Columns) == 0 {
		return fmt.Errorf("mapping has no columns")
	}

	for i := range m.Flatten {
		if err := m.Flatten[i].compile(); err != nil {
			return fmt.Errorf("flatten %d: %w", i, err)
		}
	}

	if m.MinCells < 0 {
		return fmt.Errorf("min_cells must be >= 0")
	}
	cellsPath := m.CellsPath
	if cellsPath == "" {
		cellsPath = "cells"
	}
	cells, err := ParsePath(cellsPath)
	if err != nil {
		return fmt.Errorf("cells_path: %w", err)
	}
	m.cells = cells

	seen := make(map[string]bool, len(m.Columns))
	for i := range m.Columns {
		col := &m.Columns[i]
		if err := col.compile(seen); err != nil {
			return fmt.Errorf("column %q: %w", col.Name, err)
		}
		seen[col.Name] = true
	}

	m.compiled = true
	return nil
}

// ColumnNames returns destination columns in declaration order.
func (m *Mapping) ColumnNames() []string {
	names := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		names[i] = c.Name
	}
	return names
}

func (c *Column) compile(earlier map[string]bool) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if earlier[c.Name] {
		return fmt.Errorf("declared twice")
	}
	if !c.Type.valid() {
		return fmt.Errorf("unknown type %q", c.Type)
	}
	if len(c.Paths) == 0 && c.Derive == nil && c.Default == nil && !c.Required {
		return fmt.Errorf("needs paths, derive or default")
	}

	c.paths = c.paths[:0]
	for _, raw := range c.Paths {
		p, err := ParsePath(raw)
		if err != nil {
			return err
		}
		c.paths = append(c.paths, p)
	}

	if c.Strip != "" {
		re, err := regexp.Compile(c.Strip)
		if err != nil {
			return fmt.Errorf("strip: %w", err)
		}
		c.strip = re
	}

	if c.Round != nil && (*c.Round < 0 || c.Type != TypeFloat) {
		return fmt.Errorf("round needs a float column and a non-negative precision")
	}

	if c.Default != nil {
		v, err := coerce(c.Default, c.Type)
		if err != nil {
			return fmt.Errorf("default: %w", err)
		}
		c.Default = v
	}

	if c.Derive != nil {
		switch c.Derive.Op {
		case OpWinPct, OpDifference, OpSum:
		default:
			return fmt.Errorf("unknown derive op %q", c.Derive.Op)
		}
		if len(c.Derive.Args) != 2 {
			return fmt.Errorf("derive %s takes two columns", c.Derive.Op)
		}
		for _, arg := range c.Derive.Args {
			if !earlier[arg] {
				return fmt.Errorf("derive argument %q must be a column declared before %q", arg, c.Name)
			}
		}
	}
	return nil
}

func (f *Flatten) compile() error {
	if f.From == "" || f.Into == "" {
		return fmt.Errorf("from and into are required")
	}
	if strings.ContainsAny(f.Into, ".[") {
		return fmt.Errorf("into must be a top-level key")
	}
	if len(f.Keys) == 0 || len(f.Values) == 0 {
		return fmt.Errorf("keys and values are required")
	}

	var err error
	if f.from, err = ParsePath(f.From); err != nil {
		return err
	}
	f.keys, f.values = nil, nil
	for _, raw := range f.Keys {
		p, err := ParsePath(raw)
		if err != nil {
			return err
		}
		f.keys = append(f.keys, p)
	}
	for _, raw := range f.Values {
		p, err := ParsePath(raw)
		if err != nil {
			return err
		}
		f.values = append(f.values, p)
	}
	return nil
}
