package pipeline

import "time"

// State is a record's position in the processing pipeline.
type State string

const (
	StatePending     State = "pending"
	StateExtracting  State = "extracting"
	StateExtracted   State = "extracted"
	StateSummarizing State = "summarizing"
	StateSummarized  State = "summarized"
	StateEmbedding   State = "embedding"
	StateComplete    State = "complete"
	StateFailed      State = "failed"
)

// AllStates lists every state in pipeline order, terminals last.
var AllStates = []State{
	StatePending,
	StateExtracting,
	StateExtracted,
	StateSummarizing,
	StateSummarized,
	StateEmbedding,
	StateComplete,
	StateFailed,
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// InProgress reports whether a worker currently owns the record.
func (s State) InProgress() bool {
	return s == StateExtracting || s == StateSummarizing || s == StateEmbedding
}

// Stage is one transformation step of the pipeline.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageSummarize Stage = "summarize"
	StageEmbed     Stage = "embed"
)

// Entry returns the state a record must be in before the stage starts,
// and the state a transient failure reverts it to.
func (st Stage) Entry() State {
	switch st {
	case StageExtract:
		return StatePending
	case StageSummarize:
		return StateExtracted
	case StageEmbed:
		return StateSummarized
	}
	return ""
}

// Running returns the in-progress state owned by the stage.
func (st Stage) Running() State {
	switch st {
	case StageExtract:
		return StateExtracting
	case StageSummarize:
		return StateSummarizing
	case StageEmbed:
		return StateEmbedding
	}
	return ""
}

// Done returns the state reached when the stage succeeds.
func (st Stage) Done() State {
	switch st {
	case StageExtract:
		return StateExtracted
	case StageSummarize:
		return StateSummarized
	case StageEmbed:
		return StateComplete
	}
	return ""
}

// transitions is the set of legal forward edges. The extracting→complete
// edge is the content-dedup shortcut: a record whose extracted content
// hashes identically to a completed record skips straight to complete.
var transitions = map[State][]State{
	StatePending:     {StateExtracting},
	StateExtracting:  {StateExtracted, StateComplete, StatePending},
	StateExtracted:   {StateSummarizing},
	StateSummarizing: {StateSummarized, StateExtracted},
	StateSummarized:  {StateEmbedding},
	StateEmbedding:   {StateComplete, StateSummarized},
}

// CanTransition reports whether from→to is a legal edge. Reverting an
// in-progress state to its stage entry (same-stage retry) is legal; any
// in-progress state may also move to failed.
func CanTransition(from, to State) bool {
	if to == StateFailed {
		return !from.Terminal()
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ProcessingState tracks one record through the pipeline, one-to-one
// with the record. Only the Tracker writes it.
// Collection: processing_states
type ProcessingState struct {
	RecordID    string         `bson:"_id" json:"record_id"`
	State       State          `bson:"state" json:"state"`
	Retries     map[Stage]int  `bson:"retries" json:"retries"`
	LastError   string         `bson:"last_error,omitempty" json:"last_error,omitempty"`
	UpdatedAt   time.Time      `bson:"updated_at" json:"updated_at"`
	CompletedAt *time.Time     `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// RetryCount returns the recorded retries for a stage.
func (p *ProcessingState) RetryCount(stage Stage) int {
	if p.Retries == nil {
		return 0
	}
	return p.Retries[stage]
}
