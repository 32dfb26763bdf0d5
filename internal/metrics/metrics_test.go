package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeBackend is a simple in-memory Backend implementation for tests.
type fakeBackend struct {
	mu sync.Mutex

	counters   []counterCall
	histograms []histCall
	flushCount int
	flushErr   error
}

type counterCall struct {
	name   string
	delta  float64
	labels Labels
}

type histCall struct {
	name   string
	value  float64
	labels Labels
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters = append(f.counters, counterCall{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.histograms = append(f.histograms, histCall{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushCount++
	return f.flushErr
}

func TestRecordStep_SuccessAndFailure(t *testing.T) {
	t.Parallel()

	fb := &fakeBackend{}
	r := New(fb, "retail")

	r.RecordStep("ingest", nil, 2*time.Second)
	r.RecordStep("stage", errors.New("boom"), 1500*time.Millisecond)

	if len(fb.counters) != 2 || len(fb.histograms) != 2 {
		t.Fatalf("calls = %d counters, %d histograms; want 2, 2", len(fb.counters), len(fb.histograms))
	}

	c0 := fb.counters[0]
	if c0.name != StepTotal || c0.delta != 1 {
		t.Fatalf("counter[0] = %#v", c0)
	}
	if c0.labels["job"] != "retail" || c0.labels["step"] != "ingest" || c0.labels["status"] != "success" {
		t.Fatalf("counter[0].labels = %v", c0.labels)
	}
	if h := fb.histograms[0]; h.name != StepDuration || h.value < 1.999 || h.value > 2.001 {
		t.Fatalf("hist[0] = %#v; want ~2s", h)
	}
	if got := fb.counters[1].labels["status"]; got != "failure" {
		t.Fatalf("counter[1].status = %q, want failure", got)
	}
}

func TestRecordRowAndBatches(t *testing.T) {
	t.Parallel()

	fb := &fakeBackend{}
	r := New(fb, "retail")

	r.RecordRow(KindRead, 3)
	r.RecordRow(KindRead, 0) // ignored
	r.RecordRow(KindBad, 2)
	r.RecordBatches(4)
	r.RecordBatches(-1) // ignored

	if len(fb.counters) != 3 {
		t.Fatalf("expected 3 counter calls, got %d", len(fb.counters))
	}
	if c := fb.counters[1]; c.name != RecordsTotal || c.delta != 2 || c.labels["kind"] != KindBad {
		t.Fatalf("counter[1] = %#v", c)
	}
	if c := fb.counters[2]; c.name != BatchesTotal || c.delta != 4 || c.labels["job"] != "retail" {
		t.Fatalf("counter[2] = %#v", c)
	}
}

func TestFlush(t *testing.T) {
	t.Parallel()

	fb := &fakeBackend{flushErr: errors.New("gateway down")}
	r := New(fb, "retail")
	if err := r.Flush(); err == nil || fb.flushCount != 1 {
		t.Fatalf("Flush = %v, flushCount=%d", err, fb.flushCount)
	}
}

// TestNilRecorder verifies that a nil or zero Recorder is safe to use.
func TestNilRecorder(t *testing.T) {
	t.Parallel()

	var r *Recorder
	r.RecordStep("x", nil, time.Second)
	r.RecordRow(KindRead, 1)
	r.RecordBatches(1)
	if err := r.Flush(); err != nil {
		t.Fatalf("nil Flush = %v", err)
	}
	if r.Job() != "" {
		t.Fatalf("nil Job = %q", r.Job())
	}

	z := &Recorder{}
	z.RecordRow(KindRead, 1)

	n := New(nil, "j")
	n.RecordBatches(1)
}
