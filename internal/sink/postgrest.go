package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/fortuna/cesta/internal/logging"
	"github.com/fortuna/cesta/internal/mapping"
	"github.com/fortuna/cesta/internal/syncerr"
)

// PostgREST writes through a hosted store's REST interface (Supabase style:
// {base}/rest/v1/{table}, service key in apikey and Authorization).
type PostgREST struct {
	baseURL    string
	key        string
	httpClient *http.Client
	logger     *logging.Logger
}

func NewPostgREST(baseURL, key string, httpClient *http.Client, logger *logging.Logger) *PostgREST {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PostgREST{
		baseURL:    strings.TrimRight(baseURL, "/"),
		key:        key,
		httpClient: httpClient,
		logger:     logger.Named("postgrest"),
	}
}

func (p *PostgREST) Delete(ctx context.Context, table string, filter Filter) error {
	if err := filter.Validate(); err != nil {
		return syncerr.SinkWrite(err, "delete %s", table)
	}

	q := url.Values{}
	switch filter.Op {
	case OpNotEqual:
		q.Set(filter.Column, "neq."+formatValue(filter.Value))
	case OpNotIn:
		quoted := make([]string, len(filter.Values))
		for i, v := range filter.Values {
			quoted[i] = quoteListItem(formatValue(v))
		}
		q.Set(filter.Column, "not.in.("+strings.Join(quoted, ",")+")")
	}

	return p.do(ctx, http.MethodDelete, table, q, nil, "return=minimal")
}

func (p *PostgREST) Insert(ctx context.Context, table string, columns []string, rows []mapping.Row) error {
	body, err := sonic.Marshal(project(columns, rows))
	if err != nil {
		return syncerr.SinkWrite(err, "encode rows for %s", table)
	}
	return p.do(ctx, http.MethodPost, table, nil, body, "return=minimal")
}

func (p *PostgREST) Upsert(ctx context.Context, table string, columns []string, rows []mapping.Row, conflictKey []string) error {
	if len(conflictKey) == 0 {
		return syncerr.SinkWrite(nil, "upsert %s: conflict key is required", table)
	}
	body, err := sonic.Marshal(project(columns, rows))
	if err != nil {
		return syncerr.SinkWrite(err, "encode rows for %s", table)
	}
	q := url.Values{}
	q.Set("on_conflict", strings.Join(conflictKey, ","))
	return p.do(ctx, http.MethodPost, table, q, body, "resolution=merge-duplicates,return=minimal")
}

func (p *PostgREST) do(ctx context.Context, method, table string, query url.Values, body []byte, prefer string) error {
	endpoint := p.baseURL + "/rest/v1/" + url.PathEscape(table)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return syncerr.SinkWrite(err, "%s %s", method, table)
	}
	req.Header.Set("apikey", p.key)
	req.Header.Set("Authorization", "Bearer "+p.key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return syncerr.SinkWrite(err, "%s %s", method, table)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return syncerr.SinkWrite(nil, "%s %s: status %d: %s", method, table, resp.StatusCode, describeError(raw))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	p.logger.DebugContext(ctx, "write accepted", "method", method, "table", table, "status", resp.StatusCode)
	return nil
}

type apiError struct {
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
	Code    string `json:"code"`
}

func describeError(raw []byte) string {
	var e apiError
	if err := sonic.Unmarshal(raw, &e); err != nil || e.Message == "" {
		return strings.TrimSpace(string(raw))
	}
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + " " + msg
	}
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprint(t)
	}
}

// quoteListItem quotes an in.() list item so commas and parentheses in
// values survive PostgREST's list syntax.
func quoteListItem(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
