package checkpoint

import (
	"time"
)

// Entry is the progress of a batch run.
type Entry struct {
	// NextIndex is the first record index not processed yet.
	NextIndex int `json:"next_index"`

	Succeeded      int `json:"succeeded"`
	RemoteFailures int `json:"remote_failures"`
	Failed         int `json:"failed"`

	// UpdatedAt is when the entry was last saved.
	UpdatedAt time.Time `json:"updated_at"`
}

// Processed returns the number of records processed so far.
func (e *Entry) Processed() int {
	return e.Succeeded + e.RemoteFailures + e.Failed
}

// Advance records the outcome of the record at index. result is one of
// "succeeded", "remote_failure" or "failed".
func (e *Entry) Advance(index int, result string) {
	switch result {
	case "succeeded":
		e.Succeeded++
	case "remote_failure":
		e.RemoteFailures++
	default:
		e.Failed++
	}
	if index+1 > e.NextIndex {
		e.NextIndex = index + 1
	}
}

// Age returns the time since the entry was last saved.
func (e *Entry) Age() time.Duration {
	return time.Since(e.UpdatedAt)
}
