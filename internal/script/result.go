package script

import (
	"time"

	"gridscript/internal/sheet"
)

// Result is everything an evaluation produced: captured output, the
// rendered return value, staged document operations, and the abort
// classification. Aborts are flags on the result rather than error
// types; Error carries the guest-facing message.
type Result struct {
	ID        string        `json:"id"`
	Output    []string      `json:"output,omitempty"`
	Value     string        `json:"value,omitempty"`
	HasValue  bool          `json:"has_value"`
	Error     string        `json:"error,omitempty"`
	Ops       []sheet.Op    `json:"ops,omitempty"`
	Mutations int           `json:"mutations"`
	Duration  time.Duration `json:"duration"`

	OutputTruncated          bool `json:"output_truncated,omitempty"`
	InstructionLimitExceeded bool `json:"instruction_limit_exceeded,omitempty"`
	Cancelled                bool `json:"cancelled,omitempty"`
	TimedOut                 bool `json:"timed_out,omitempty"`
}

// OK reports whether the evaluation completed without error or abort.
func (r *Result) OK() bool { return r.Error == "" }

// HasMutations reports whether any document operations were staged.
func (r *Result) HasMutations() bool { return len(r.Ops) > 0 }

// Status labels the result for logs and metrics. Abort classifications
// take precedence over the generic error label.
func (r *Result) Status() string {
	switch {
	case r.Cancelled:
		return "cancelled"
	case r.TimedOut:
		return "timeout"
	case r.InstructionLimitExceeded:
		return "instruction_limit"
	case r.Error != "":
		return "error"
	default:
		return "ok"
	}
}
