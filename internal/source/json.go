package source

import (
	"context"
	"fmt"

	"github.com/fortuna/cesta/internal/mapping"
	"github.com/fortuna/cesta/internal/syncerr"
)

const KindJSON = "json"

func init() {
	Register(KindJSON, func(d Deps) Source { return &jsonSource{deps: d} })
}

// jsonSource fetches each endpoint and collects the arrays found at the
// record paths. Paths that are absent from a payload contribute nothing,
// but a payload where none of them resolve is a shape mismatch.
type jsonSource struct {
	deps Deps
}

func (s *jsonSource) Fetch(ctx context.Context, spec Spec) ([]mapping.Record, error) {
	endpoints := spec.Endpoints()
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("json source needs url or urls")
	}

	paths := make([]mapping.Path, 0, len(spec.Records))
	for _, raw := range spec.Records {
		p, err := mapping.ParsePath(raw)
		if err != nil {
			return nil, fmt.Errorf("records: %w", err)
		}
		paths = append(paths, p)
	}

	var records []mapping.Record
	for _, url := range endpoints {
		payload, err := s.deps.HTTP.GetJSON(ctx, url, spec.Headers)
		if err != nil {
			return nil, err
		}

		found, err := collect(payload, paths)
		if err != nil {
			return nil, fmt.Errorf("GET %s: %w", url, err)
		}
		s.deps.Logger.InfoContext(ctx, "fetched records", "url", url, "records", len(found))
		records = append(records, found...)
	}
	return records, nil
}

func collect(payload any, paths []mapping.Path) ([]mapping.Record, error) {
	if len(paths) == 0 {
		switch v := payload.(type) {
		case []any:
			return v, nil
		case map[string]any:
			return []mapping.Record{v}, nil
		default:
			return nil, syncerr.ShapeMismatch("payload is %T, not an object or array", payload)
		}
	}

	var (
		out      []mapping.Record
		resolved int
	)
	for _, p := range paths {
		v, ok := mapping.Resolve(payload, p)
		if !ok || v == nil {
			continue
		}
		arr, ok := v.([]any)
		if !ok {
			return nil, syncerr.ShapeMismatch("%q is %T, not an array", p.String(), v)
		}
		resolved++
		out = append(out, arr...)
	}
	if resolved == 0 {
		return nil, syncerr.ShapeMismatch("none of %v present in payload", pathNames(paths))
	}
	return out, nil
}

func pathNames(paths []mapping.Path) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = p.String()
	}
	return out
}
