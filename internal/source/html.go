package source

import (
	"context"

	"github.com/fortuna/cesta/internal/ingest/htmltable"
	"github.com/fortuna/cesta/internal/mapping"
)

const KindHTMLTable = "html_table"

func init() {
	Register(KindHTMLTable, func(d Deps) Source { return &htmlTableSource{deps: d} })
}

// htmlTableSource emits one {"cells": [...]} record per table row. Row
// validity (cell count, numeric cells) is left to the mapping.
type htmlTableSource struct {
	deps Deps
}

func (s *htmlTableSource) Fetch(ctx context.Context, spec Spec) ([]mapping.Record, error) {
	var pages PageFetcher = s.deps.HTTP
	if spec.Browser {
		if s.deps.Browser != nil {
			pages = s.deps.Browser
		} else {
			s.deps.Logger.WarnContext(ctx, "browser fetch requested but disabled, using plain HTTP", "url", spec.URL)
		}
	}

	var records []mapping.Record
	for _, url := range spec.Endpoints() {
		html, err := pages.FetchPage(ctx, url, spec.Headers)
		if err != nil {
			return nil, err
		}
		doc, err := htmltable.ParseHTML(html)
		if err != nil {
			return nil, err
		}

		rows, err := htmltable.Join(htmltable.Tables(doc), spec.Tables)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			cells := make([]any, len(row))
			for i, c := range row {
				cells[i] = c
			}
			records = append(records, map[string]any{"cells": cells, "url": url})
		}
		s.deps.Logger.InfoContext(ctx, "parsed table rows", "url", url, "rows", len(rows))
	}
	return records, nil
}
