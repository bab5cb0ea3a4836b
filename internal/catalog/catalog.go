// Package catalog loads the declarative job definitions.
package catalog

import (
	"bytes"
	_ "embed"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	// Registers the espn_* source kinds referenced by the catalog.
	_ "github.com/fortuna/cesta/internal/ingest/espn"
	"github.com/fortuna/cesta/internal/syncerr"
	"github.com/fortuna/cesta/internal/syncjob"
)

//go:embed jobs.yaml
var embedded []byte

// Catalog is an ordered set of validated jobs.
type Catalog struct {
	jobs  []syncjob.Job
	index map[string]int
}

type document struct {
	Jobs []syncjob.Job `yaml:"jobs"`
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(embedded)
}

// Load reads a catalog file, or the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, syncerr.Configuration("read catalog %s: %v", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a catalog document. Unknown keys are
// rejected so a typo in a mapping does not silently drop a column.
func Parse(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, syncerr.Configuration("decode catalog: %v", err)
	}
	if len(doc.Jobs) == 0 {
		return nil, syncerr.Configuration("catalog defines no jobs")
	}

	c := &Catalog{
		jobs:  doc.Jobs,
		index: make(map[string]int, len(doc.Jobs)),
	}
	for i := range c.jobs {
		job := &c.jobs[i]
		if err := job.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.index[job.Name]; dup {
			return nil, syncerr.Configuration("job %s defined twice", job.Name)
		}
		c.index[job.Name] = i
	}
	return c, nil
}

// Get returns the named job.
func (c *Catalog) Get(name string) (syncjob.Job, error) {
	i, ok := c.index[name]
	if !ok {
		return syncjob.Job{}, syncerr.Configuration("unknown job %q (known: %v)", name, c.Names())
	}
	return c.jobs[i], nil
}

// Select resolves names in the order given.
func (c *Catalog) Select(names ...string) ([]syncjob.Job, error) {
	out := make([]syncjob.Job, 0, len(names))
	for _, name := range names {
		job, err := c.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, nil
}

// All returns every job in file order.
func (c *Catalog) All() []syncjob.Job {
	return append([]syncjob.Job(nil), c.jobs...)
}

func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.index))
	for name := range c.index {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithParam returns a copy of job with a source parameter set. The params
// map is copied so catalog entries stay untouched.
func WithParam(job syncjob.Job, key, value string) syncjob.Job {
	params := make(map[string]string, len(job.Source.Params)+1)
	for k, v := range job.Source.Params {
		params[k] = v
	}
	params[key] = value
	job.Source.Params = params
	return job
}
