package syncjob

// Reporter receives lifecycle callbacks from the runner.
type Reporter interface {
	OnJobStart(job Job)
	OnFetched(job Job, records int)
	OnRowSkipped(job Job, err error)
	OnJobComplete(result Result)
	OnJobError(job Job, err error)
}
