package batch

import "time"

// Kind is the mutation an operation performs.
type Kind string

const (
	KindCreate   Kind = "create"
	KindUpdate   Kind = "update"
	KindComplete Kind = "complete"
	KindDelete   Kind = "delete"
)

// TargetType is the entity schema an operation's payload must satisfy.
type TargetType string

const (
	TargetProject TargetType = "project"
	TargetTask    TargetType = "task"
	TargetTag     TargetType = "tag"
	TargetFolder  TargetType = "folder"
)

// Operation is one requested mutation. Index is its position in the request
// and is assigned by the orchestrator, never by the caller.
type Operation struct {
	Index      int            `json:"index" yaml:"-" toml:"-"`
	Kind       Kind           `json:"kind" yaml:"kind" toml:"kind" validate:"required,oneof=create update complete delete"`
	TargetType TargetType     `json:"target_type" yaml:"target_type" toml:"target_type" validate:"required,oneof=project task tag folder"`
	TempID     string         `json:"temp_id,omitempty" yaml:"temp_id,omitempty" toml:"temp_id,omitempty" validate:"omitempty,max=128,printascii"`
	References []string       `json:"references,omitempty" yaml:"references,omitempty" toml:"references,omitempty" validate:"omitempty,dive,required,max=128"`
	Payload    map[string]any `json:"payload,omitempty" yaml:"payload,omitempty" toml:"payload,omitempty"`
}

// Request is a batch of operations plus the failure policy.
type Request struct {
	Operations      []Operation `json:"operations" yaml:"operations" toml:"operations" validate:"required,min=1,dive"`
	StopOnError     bool        `json:"stop_on_error,omitempty" yaml:"stop_on_error" toml:"stop_on_error"`
	AtomicOperation bool        `json:"atomic_operation,omitempty" yaml:"atomic_operation" toml:"atomic_operation"`
	// ReturnMapping defaults to true when unset.
	ReturnMapping *bool `json:"return_mapping,omitempty" yaml:"return_mapping,omitempty" toml:"return_mapping,omitempty"`
}

// WantsMapping reports whether the result should carry the temp id mapping.
func (r *Request) WantsMapping() bool {
	return r.ReturnMapping == nil || *r.ReturnMapping
}

// OutcomeStatus tags an Outcome.
type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeFailed    OutcomeStatus = "failed"
	OutcomeSkipped   OutcomeStatus = "skipped"
)

// SkipReason explains why an operation never reached the bridge.
type SkipReason string

const (
	// SkipNotAttempted: stop_on_error halted the batch before this operation.
	SkipNotAttempted SkipReason = "not_attempted"
	// SkipCancelled: the request context ended before this operation.
	SkipCancelled SkipReason = "cancelled"
	// SkipDependencyFailed: an operation this one references failed or was skipped.
	SkipDependencyFailed SkipReason = "dependency_failed"
	// SkipAborted: an internal scheduling fault stopped the batch.
	SkipAborted SkipReason = "aborted"
)

// OperationError is the structured failure carried by a failed Outcome.
type OperationError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Outcome is the result of one operation: succeeded with a real id, failed
// with an error, or skipped with a reason.
type Outcome struct {
	Index      int             `json:"index"`
	Kind       Kind            `json:"kind"`
	TargetType TargetType      `json:"target_type"`
	TempID     string          `json:"temp_id,omitempty"`
	Status     OutcomeStatus   `json:"status"`
	RealID     string          `json:"real_id,omitempty"`
	Fields     map[string]any  `json:"fields,omitempty"`
	Error      *OperationError `json:"error,omitempty"`
	SkipReason SkipReason      `json:"skip_reason,omitempty"`
	// DependsOn lists the indices whose failure caused a dependency_failed skip.
	DependsOn []int         `json:"depends_on,omitempty"`
	Duration  time.Duration `json:"-"`
}

func newOutcome(op Operation) Outcome {
	return Outcome{Index: op.Index, Kind: op.Kind, TargetType: op.TargetType, TempID: op.TempID}
}

func succeeded(op Operation, realID string, fields map[string]any, d time.Duration) Outcome {
	o := newOutcome(op)
	o.Status = OutcomeSucceeded
	o.RealID = realID
	o.Fields = fields
	o.Duration = d
	return o
}

func failed(op Operation, err *OperationError, d time.Duration) Outcome {
	o := newOutcome(op)
	o.Status = OutcomeFailed
	o.Error = err
	o.Duration = d
	return o
}

func skipped(op Operation, reason SkipReason) Outcome {
	o := newOutcome(op)
	o.Status = OutcomeSkipped
	o.SkipReason = reason
	return o
}
