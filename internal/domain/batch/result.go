package batch

// ItemStatus is the processing outcome of a single batch item.
type ItemStatus string

// Batch item status values.
const (
	StatusOK      ItemStatus = "ok"
	StatusError   ItemStatus = "error"
	StatusSkipped ItemStatus = "skipped"
)

// Result is the outcome of processing one record of a batch.
type Result struct {
	position int
	id       string
	status   ItemStatus
	err      error
}

// NewOK creates a successful batch result.
func NewOK(position int, id string) Result {
	return Result{position: position, id: id, status: StatusOK}
}

// NewError creates a failed batch result.
func NewError(position int, id string, err error) Result {
	return Result{position: position, id: id, status: StatusError, err: err}
}

// NewSkipped creates a result for a record that was not processed.
func NewSkipped(position int, id string, reason error) Result {
	return Result{position: position, id: id, status: StatusSkipped, err: reason}
}

// Position returns the record's index in the original batch.
func (r Result) Position() int { return r.position }

// ID returns the record identifier.
func (r Result) ID() string { return r.id }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Report summarizes a batch run. Items keep the original record order.
type Report struct {
	Items []Result
}

// Count returns the number of items with the given status.
func (r Report) Count(status ItemStatus) int {
	n := 0
	for _, it := range r.Items {
		if it.status == status {
			n++
		}
	}
	return n
}

// Failures returns the items that did not succeed, in original order.
func (r Report) Failures() []Result {
	var out []Result
	for _, it := range r.Items {
		if it.status != StatusOK {
			out = append(out, it)
		}
	}
	return out
}
