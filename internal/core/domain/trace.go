package domain

import "time"

type Stage string

const (
	StageEmbed        Stage = "embed"
	StageSearch       Stage = "search"
	StageFilter       Stage = "filter"
	StageAssemble     Stage = "assemble"
	StageGenerate     Stage = "generate"
	StageMapCitations Stage = "map_citations"
)

type StageStatus string

const (
	StagePending   StageStatus = "PENDING"
	StageRunning   StageStatus = "RUNNING"
	StageCompleted StageStatus = "COMPLETED"
	StageFailed    StageStatus = "FAILED"
)

// StageRecord captures one stage execution of one run. Timing spans
// the full wall-clock wait on the stage, including gateway latency.
type StageRecord struct {
	Name      Stage       `json:"name"`
	Status    StageStatus `json:"status"`
	StartedAt time.Time   `json:"started_at"`
	EndedAt   time.Time   `json:"ended_at,omitempty"`
	Detail    string      `json:"detail,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// Trace is the ordered operation trace of a single run. It is owned
// by that run's orchestrator and returned by value; nothing is shared
// across runs.
type Trace struct {
	records []StageRecord
}

// Begin appends a RUNNING record for the stage and returns its index.
func (t *Trace) Begin(stage Stage) int {
	t.records = append(t.records, StageRecord{
		Name:      stage,
		Status:    StageRunning,
		StartedAt: time.Now(),
	})
	return len(t.records) - 1
}

// Complete closes the record at idx as COMPLETED.
func (t *Trace) Complete(idx int, detail string) {
	if idx < 0 || idx >= len(t.records) {
		return
	}
	t.records[idx].Status = StageCompleted
	t.records[idx].EndedAt = time.Now()
	t.records[idx].Detail = detail
}

// Fail closes the record at idx as FAILED with the error detail.
func (t *Trace) Fail(idx int, err error) {
	if idx < 0 || idx >= len(t.records) {
		return
	}
	t.records[idx].Status = StageFailed
	t.records[idx].EndedAt = time.Now()
	if err != nil {
		t.records[idx].Error = err.Error()
	}
}

// Records returns a copy of the trace so the caller cannot mutate a
// terminated run's history.
func (t *Trace) Records() []StageRecord {
	out := make([]StageRecord, len(t.records))
	copy(out, t.records)
	return out
}
