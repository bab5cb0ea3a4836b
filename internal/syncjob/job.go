package syncjob

import (
	"time"

	"github.com/fortuna/cesta/internal/mapping"
	"github.com/fortuna/cesta/internal/source"
	"github.com/fortuna/cesta/internal/syncerr"
	"github.com/fortuna/cesta/internal/tablesync"
)

// EmptyPolicy decides what a run that normalized zero rows ends with.
type EmptyPolicy string

const (
	EmptyFail EmptyPolicy = "fail"
	EmptySkip EmptyPolicy = "skip"
)

// ParseEmptyPolicy accepts "", "fail" and "skip". The empty string means
// no override.
func ParseEmptyPolicy(raw string) (EmptyPolicy, error) {
	switch p := EmptyPolicy(raw); p {
	case "", EmptyFail, EmptySkip:
		return p, nil
	default:
		return "", syncerr.Configuration("invalid empty policy %q: valid values are fail, skip", raw)
	}
}

// Status represents the outcome of a single run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusNoData    Status = "no_data"
	StatusFailed    Status = "failed"
)

// Job binds a source, a field mapping and a destination table.
type Job struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Source      source.Spec      `yaml:"source"`
	Mapping     *mapping.Mapping `yaml:"mapping"`
	Target      tablesync.Target `yaml:"target"`
	OnEmpty     EmptyPolicy      `yaml:"on_empty"`
}

// Validate checks the job is runnable and compiles its mapping.
func (j *Job) Validate() error {
	if j.Name == "" {
		return syncerr.Configuration("job name is required")
	}
	if !source.Known(j.Source.Kind) {
		return syncerr.Configuration("job %s: unknown source kind %q", j.Name, j.Source.Kind)
	}
	if j.Mapping == nil {
		return syncerr.Configuration("job %s: mapping is required", j.Name)
	}
	if err := j.Mapping.Compile(); err != nil {
		return syncerr.Configuration("job %s: mapping: %v", j.Name, err)
	}
	if err := j.Target.Validate(); err != nil {
		return syncerr.Configuration("job %s: target: %v", j.Name, err)
	}
	for _, key := range j.Target.ConflictKey {
		if !hasColumn(j.Mapping, key) {
			return syncerr.Configuration("job %s: conflict key %q is not a mapped column", j.Name, key)
		}
	}
	if j.Target.Strategy == tablesync.StrategyReplace && !hasColumn(j.Mapping, j.Target.Sentinel.Column) {
		return syncerr.Configuration("job %s: sentinel column %q is not a mapped column", j.Name, j.Target.Sentinel.Column)
	}
	if _, err := ParseEmptyPolicy(string(j.OnEmpty)); err != nil {
		return syncerr.Configuration("job %s: on_empty: %v", j.Name, err)
	}
	if j.OnEmpty == "" {
		j.OnEmpty = EmptyFail
	}
	return nil
}

func hasColumn(m *mapping.Mapping, name string) bool {
	for _, col := range m.ColumnNames() {
		if col == name {
			return true
		}
	}
	return false
}

// Result summarises one run. Err is kept out of serialized events; ErrorKind
// and Error carry the same information.
type Result struct {
	Job        string        `json:"job"`
	Table      string        `json:"table"`
	Status     Status        `json:"status"`
	Fetched    int           `json:"rows_fetched"`
	Normalized int           `json:"rows_normalized"`
	Dropped    int           `json:"rows_dropped"`
	Written    int           `json:"rows_written"`
	Batches    int           `json:"batches"`
	DryRun     bool          `json:"dry_run"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
	ErrorKind  string        `json:"error_kind,omitempty"`
	Error      string        `json:"error,omitempty"`
	Err        error         `json:"-"`
}
