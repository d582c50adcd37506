package script

import (
	"fmt"
	"time"
)

// Limits bound a single evaluation. All three abort limits are enforced
// together; whichever trips first classifies the result.
type Limits struct {
	Instructions int64         `json:"instructions"`  // Lua VM instruction budget
	HookInterval int64         `json:"hook_interval"` // Instructions between governor checks
	Timeout      time.Duration `json:"timeout"`       // Wall-clock ceiling
	OutputLines  int           `json:"output_lines"`  // Captured print lines before truncation
	Ops          int           `json:"ops"`           // Staged document operations
}

func DefaultLimits() Limits {
	return Limits{
		Instructions: 100_000_000, // ~1s of tight-loop Lua
		HookInterval: 10_000,
		Timeout:      30 * time.Second,
		OutputLines:  5_000,
		Ops:          1_000_000,
	}
}

func (l Limits) Validate() error {
	if l.Instructions < 1_000 || l.Instructions > 10_000_000_000 {
		return fmt.Errorf("%w: instructions must be 1000-10000000000, got %d", ErrInvalidRequest, l.Instructions)
	}
	if l.HookInterval < 100 || l.HookInterval > l.Instructions {
		return fmt.Errorf("%w: hook_interval must be 100-instructions, got %d", ErrInvalidRequest, l.HookInterval)
	}
	if l.Timeout < 10*time.Millisecond || l.Timeout > 10*time.Minute {
		return fmt.Errorf("%w: timeout must be 10ms-10m, got %s", ErrInvalidRequest, l.Timeout)
	}
	if l.OutputLines < 1 || l.OutputLines > 1_000_000 {
		return fmt.Errorf("%w: output_lines must be 1-1000000, got %d", ErrInvalidRequest, l.OutputLines)
	}
	if l.Ops < 1 || l.Ops > 100_000_000 {
		return fmt.Errorf("%w: ops must be 1-100000000, got %d", ErrInvalidRequest, l.Ops)
	}
	return nil
}
