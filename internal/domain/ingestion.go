package domain

import (
	"time"

	"github.com/google/uuid"
)

type BatchStatus string

const (
	BatchSucceeded BatchStatus = "success"
	BatchPartial   BatchStatus = "partial"
	BatchFailed    BatchStatus = "failed"
)

// SymbolSuccess records a symbol whose observation is in the store,
// either freshly inserted or already present.
type SymbolSuccess struct {
	Symbol   string         `json:"symbol"`
	Inserted bool           `json:"inserted"`
	Snapshot *PriceSnapshot `json:"snapshot"`
}

type SymbolFailure struct {
	Symbol string      `json:"symbol"`
	Kind   FailureKind `json:"kind"`
	Reason string      `json:"reason"`
}

// BatchResult aggregates the per-symbol outcomes of one ingestion run.
type BatchResult struct {
	RunID      uuid.UUID       `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Succeeded  []SymbolSuccess `json:"succeeded"`
	Failed     []SymbolFailure `json:"failed"`
}

func NewBatchResult(startedAt time.Time) *BatchResult {
	return &BatchResult{
		RunID:     uuid.New(),
		StartedAt: startedAt,
		Succeeded: []SymbolSuccess{},
		Failed:    []SymbolFailure{},
	}
}

func (r *BatchResult) AddSuccess(snapshot *PriceSnapshot, inserted bool) {
	r.Succeeded = append(r.Succeeded, SymbolSuccess{
		Symbol:   snapshot.Symbol,
		Inserted: inserted,
		Snapshot: snapshot,
	})
}

func (r *BatchResult) AddFailure(symbol string, err error) {
	r.Failed = append(r.Failed, SymbolFailure{
		Symbol: symbol,
		Kind:   FailureKindOf(err),
		Reason: err.Error(),
	})
}

// Status is success when nothing failed, partial when at least one symbol
// succeeded, and failed otherwise.
func (r *BatchResult) Status() BatchStatus {
	switch {
	case len(r.Succeeded) > 0 && len(r.Failed) == 0:
		return BatchSucceeded
	case len(r.Succeeded) > 0:
		return BatchPartial
	default:
		return BatchFailed
	}
}

// Inserted counts the successes that created a new row.
func (r *BatchResult) Inserted() int {
	n := 0
	for _, s := range r.Succeeded {
		if s.Inserted {
			n++
		}
	}
	return n
}
