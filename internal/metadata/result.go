package metadata

import "fmt"

// Status says how much of a Result can be trusted.
type Status int

const (
	// StatusComplete means every entry the format offered was read.
	StatusComplete Status = iota
	// StatusPartial means some entries failed and were skipped.
	StatusPartial
	// StatusPlaceholder means the container was unreadable; the record holds
	// only defaults.
	StatusPlaceholder
)

func (s Status) String() string {
	switch s {
	case StatusComplete:
		return "complete"
	case StatusPartial:
		return "partial"
	case StatusPlaceholder:
		return "placeholder"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result is what an extraction hands back: always a record, plus how it was
// obtained.
type Result struct {
	Record   Record
	Format   string
	Status   Status
	Warnings []string
	Err      error
}

// Placeholder builds the result for an unreadable container.
func Placeholder(format string, err error) Result {
	return Result{
		Record: NewRecord(),
		Format: format,
		Status: StatusPlaceholder,
		Err:    err,
	}
}

// Completed builds the result for a successfully read container.
func Completed(format string, rec Record, warnings []string) Result {
	status := StatusComplete
	if len(warnings) > 0 {
		status = StatusPartial
	}
	return Result{
		Record:   rec.Clone(),
		Format:   format,
		Status:   status,
		Warnings: warnings,
	}
}

// OK reports whether the container was read at all.
func (r Result) OK() bool { return r.Status != StatusPlaceholder }
