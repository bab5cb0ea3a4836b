// Package source adapts statistics providers into flat lists of raw records.
//
// Declarative kinds (json, html_table) are built in; providers that need
// reference-graph traversal register their own kinds from their packages.
package source

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fortuna/cesta/internal/ingest"
	"github.com/fortuna/cesta/internal/logging"
	"github.com/fortuna/cesta/internal/mapping"
	"github.com/fortuna/cesta/internal/syncerr"
)

// Spec configures one source in the job catalog.
type Spec struct {
	Kind    string            `yaml:"kind"`
	URL     string            `yaml:"url"`
	URLs    []string          `yaml:"urls"`
	Headers map[string]string `yaml:"headers"`
	Records []string          `yaml:"records"`
	Tables  []int             `yaml:"tables"`
	Browser bool              `yaml:"browser"`
	Params  map[string]string `yaml:"params"`
}

// Endpoints returns URL followed by URLs.
func (s Spec) Endpoints() []string {
	var out []string
	if s.URL != "" {
		out = append(out, s.URL)
	}
	return append(out, s.URLs...)
}

func (s Spec) Param(key, fallback string) string {
	if v, ok := s.Params[key]; ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func (s Spec) IntParam(key string, fallback int) (int, error) {
	raw := s.Param(key, "")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, syncerr.Configuration("param %s: %q is not an integer", key, raw)
	}
	return n, nil
}

func (s Spec) BoolParam(key string, fallback bool) (bool, error) {
	raw := s.Param(key, "")
	if raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, syncerr.Configuration("param %s: %q is not a boolean", key, raw)
	}
	return b, nil
}

// Source fetches every raw record for one run, in source order.
type Source interface {
	Fetch(ctx context.Context, spec Spec) ([]mapping.Record, error)
}

// PageFetcher loads an HTML document. ingest.Client and ingest.Browser
// both satisfy it.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string, headers map[string]string) (string, error)
}

// Deps are the shared collaborators handed to every source factory.
type Deps struct {
	HTTP    *ingest.Client
	Browser PageFetcher
	Logger  *logging.Logger
	Now     func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = logging.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

type Factory func(Deps) Source

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a source kind available to the catalog. It panics on
// duplicates since kinds are registered from init functions.
func Register(kind string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("source kind %q registered twice", kind))
	}
	factories[kind] = factory
}

// New builds the source registered for kind.
func New(kind string, deps Deps) (Source, error) {
	mu.RLock()
	factory, ok := factories[kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown source kind %q (known: %s)", kind, strings.Join(Kinds(), ", "))
	}
	return factory(deps.withDefaults()), nil
}

// Known reports whether kind has been registered.
func Known(kind string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := factories[kind]
	return ok
}

func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
