// Package htmltable extracts row-per-entity tables from stat pages.
package htmltable

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/fortuna/cesta/internal/syncerr"
)

// Table holds the body rows of one <table> as whitespace-collapsed cell text.
type Table [][]string

// ParseHTML converts raw HTML to a goquery Document.
func ParseHTML(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// Tables returns every table in document order. Header rows in <thead> are
// left out; rows without <td> cells are kept so callers can drop them by
// cell count like any other malformed row.
func Tables(doc *goquery.Document) []Table {
	var out []Table
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tbody tr")
		if rows.Length() == 0 {
			rows = table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
				return tr.ParentsFiltered("thead").Length() == 0
			})
		}

		var t Table
		rows.Each(func(_ int, tr *goquery.Selection) {
			var row []string
			tr.ChildrenFiltered("td, th").Each(func(_ int, cell *goquery.Selection) {
				row = append(row, cellText(cell))
			})
			t = append(t, row)
		})
		out = append(out, t)
	})
	return out
}

// Join concatenates the selected tables side by side by row index. Pages
// that freeze the team column render it as a separate table from the stats.
// When row counts differ the longest table wins and missing parts stay short.
func Join(tables []Table, indexes []int) ([][]string, error) {
	if len(indexes) == 0 {
		indexes = []int{0}
	}

	rowCount := 0
	for _, idx := range indexes {
		if idx < 0 || idx >= len(tables) {
			return nil, syncerr.ShapeMismatch("page has %d tables, table %d not found", len(tables), idx)
		}
		if n := len(tables[idx]); n > rowCount {
			rowCount = n
		}
	}

	rows := make([][]string, rowCount)
	for _, idx := range indexes {
		for i, row := range tables[idx] {
			rows[i] = append(rows[i], row...)
		}
	}
	return rows, nil
}

func cellText(cell *goquery.Selection) string {
	return strings.Join(strings.Fields(cell.Text()), " ")
}
