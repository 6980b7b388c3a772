package batch

// Status is the caller-facing verdict on a batch.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Summary tallies outcomes by final status. Succeeded operations are counted
// under their kind.
type Summary struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Completed int `json:"completed"`
	Deleted   int `json:"deleted"`
	Errors    int `json:"errors"`
	Skipped   int `json:"skipped"`
}

// Succeeded returns the number of operations that succeeded.
func (s Summary) Succeeded() int {
	return s.Created + s.Updated + s.Completed + s.Deleted
}

// Results groups outcomes the same way Summary counts them.
type Results struct {
	Created   []Outcome `json:"created"`
	Updated   []Outcome `json:"updated"`
	Completed []Outcome `json:"completed"`
	Deleted   []Outcome `json:"deleted"`
	Errors    []Outcome `json:"errors"`
	Skipped   []Outcome `json:"skipped"`
}

func newResults() Results {
	return Results{
		Created:   []Outcome{},
		Updated:   []Outcome{},
		Completed: []Outcome{},
		Deleted:   []Outcome{},
		Errors:    []Outcome{},
		Skipped:   []Outcome{},
	}
}

// Result is the structured answer to every batch request, including rejected
// ones.
type Result struct {
	// Success is true only when every operation succeeded: no errors, no
	// skipped operations (a cancelled batch with zero errors is not a
	// success) and no fatal error.
	Success    bool      `json:"success"`
	Status     Status    `json:"status"`
	BatchID    string    `json:"batch_id"`
	Atomic     bool      `json:"atomic_operation,omitempty"`
	Summary    Summary   `json:"summary"`
	Results    Results   `json:"results"`
	Operations []Outcome `json:"operations"`
	// TempIDMapping is nil when the caller opted out and otherwise holds
	// every temp id whose create succeeded.
	TempIDMapping map[string]string `json:"temp_id_mapping,omitzero"`
	Error         *Error            `json:"error,omitempty"`
}

// IsError reports whether the result should be surfaced as a failed call.
func (r *Result) IsError() bool {
	return r.Status == StatusFailed
}

// Outcome returns the outcome for the operation at index i.
func (r *Result) Outcome(i int) (Outcome, bool) {
	for _, o := range r.Operations {
		if o.Index == i {
			return o, true
		}
	}
	return Outcome{}, false
}

// aggregate builds the result of an executed batch. fatal is non-nil when a
// scheduling invariant violation aborted the run.
func aggregate(batchID string, req *Request, outcomes []Outcome, realIDs map[string]string, fatal *Error) *Result {
	res := &Result{
		BatchID:    batchID,
		Atomic:     req.AtomicOperation,
		Results:    newResults(),
		Operations: outcomes,
		Error:      fatal,
	}

	for _, o := range outcomes {
		switch o.Status {
		case OutcomeSucceeded:
			switch o.Kind {
			case KindCreate:
				res.Summary.Created++
				res.Results.Created = append(res.Results.Created, o)
			case KindUpdate:
				res.Summary.Updated++
				res.Results.Updated = append(res.Results.Updated, o)
			case KindComplete:
				res.Summary.Completed++
				res.Results.Completed = append(res.Results.Completed, o)
			case KindDelete:
				res.Summary.Deleted++
				res.Results.Deleted = append(res.Results.Deleted, o)
			}
		case OutcomeFailed:
			res.Summary.Errors++
			res.Results.Errors = append(res.Results.Errors, o)
		case OutcomeSkipped:
			res.Summary.Skipped++
			res.Results.Skipped = append(res.Results.Skipped, o)
		}
	}

	if req.WantsMapping() {
		res.TempIDMapping = make(map[string]string, len(realIDs))
		for tempID, realID := range realIDs {
			res.TempIDMapping[tempID] = realID
		}
	}

	res.Success = fatal == nil && res.Summary.Errors == 0 && res.Summary.Skipped == 0
	res.Status = verdict(res, req.AtomicOperation)
	return res
}

func verdict(res *Result, atomic bool) Status {
	switch {
	case res.Error != nil:
		return StatusFailed
	case res.Success:
		return StatusSuccess
	case atomic:
		return StatusFailed
	case res.Summary.Succeeded() > 0:
		return StatusPartial
	}
	return StatusFailed
}

// rejected builds the result for a request refused before execution.
func rejected(batchID string, req *Request, err *Error) *Result {
	res := &Result{
		BatchID:    batchID,
		Status:     StatusFailed,
		Results:    newResults(),
		Operations: []Outcome{},
		Error:      err,
	}
	if req != nil {
		res.Atomic = req.AtomicOperation
		if req.WantsMapping() {
			res.TempIDMapping = map[string]string{}
		}
	}
	return res
}
