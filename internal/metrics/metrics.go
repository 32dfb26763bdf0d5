// Package metrics records step, row and batch counters for a load run
// through a pluggable Backend (Prometheus Pushgateway, DogStatsD, or nop).
//
// A Recorder is passed explicitly to the components that report. The zero
// Recorder and a nil *Recorder are both valid and discard everything.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Metric names shared by every backend.
const (
	StepTotal    = "etl_step_total"
	StepDuration = "etl_step_duration_seconds"
	RecordsTotal = "etl_records_total"
	BatchesTotal = "etl_batches_total"
)

// Row kinds reported via RecordRow.
const (
	KindRead     = "read"
	KindInserted = "inserted"
	KindBad      = "bad"
	KindNullDate = "null_date"
)

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}
func (Nop) Flush() error                             { return nil }

// Recorder binds a backend to a job name.
type Recorder struct {
	backend Backend
	job     string
}

// New returns a Recorder for job. A nil backend records nothing.
func New(b Backend, job string) *Recorder {
	if b == nil {
		b = Nop{}
	}
	return &Recorder{backend: b, job: job}
}

func (r *Recorder) b() Backend {
	if r == nil || r.backend == nil {
		return Nop{}
	}
	return r.backend
}

// Job is the job label attached to every metric.
func (r *Recorder) Job() string {
	if r == nil {
		return ""
	}
	return r.job
}

// RecordStep counts one execution of step and observes its duration,
// labelled success or failure from err.
func (r *Recorder) RecordStep(step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": r.Job(), "step": step, "status": status}
	r.b().IncCounter(StepTotal, 1, lbls)
	r.b().ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow adds delta rows of the given kind. Non-positive deltas are ignored.
func (r *Recorder) RecordRow(kind string, delta int64) {
	if delta <= 0 {
		return
	}
	r.b().IncCounter(RecordsTotal, float64(delta), Labels{"job": r.Job(), "kind": kind})
}

// RecordBatches adds delta committed batches.
func (r *Recorder) RecordBatches(delta int64) {
	if delta <= 0 {
		return
	}
	r.b().IncCounter(BatchesTotal, float64(delta), Labels{"job": r.Job()})
}

// Flush delegates to the backend.
func (r *Recorder) Flush() error { return r.b().Flush() }
