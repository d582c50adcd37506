package script

import (
	"fmt"
	"sync/atomic"
	"time"
)

// governor is the resource arbiter for one evaluation. It implements
// context.Context and is installed on the Lua state, whose interpreter
// loop polls Done() once per VM instruction. That poll is the metering
// point: every HookInterval polls the governor runs its checks in
// fixed priority order (host cancellation, then wall-clock deadline,
// then instruction budget) and trips by handing back a closed channel.
// The interpreter reacts by raising Err() inside the script, which
// unwinds the run even through protected calls re-entered afterwards,
// since a tripped governor stays tripped.
//
// A governor serves a single evaluation on a single goroutine; only the
// cancel flag is shared with the host.
type governor struct {
	done     chan struct{} // closed on trip
	cancel   *atomic.Bool  // host-owned; nil means not cancellable
	deadline time.Time
	timeout  time.Duration
	interval int64
	budget   int64 // remaining instructions
	polls    int64 // polls since last check
	err      error
}

// newGovernor builds a governor from limits. The deadline is anchored
// at construction, immediately before the script starts.
func newGovernor(limits Limits, cancel *atomic.Bool) *governor {
	return &governor{
		done:     make(chan struct{}),
		cancel:   cancel,
		deadline: time.Now().Add(limits.Timeout),
		timeout:  limits.Timeout,
		interval: limits.HookInterval,
		budget:   limits.Instructions,
	}
}

func (g *governor) Done() <-chan struct{} {
	if g.err == nil {
		g.polls++
		if g.polls >= g.interval {
			g.polls = 0
			g.check()
			if g.err != nil {
				close(g.done)
			}
		}
	}
	return g.done
}

// check runs the three abort conditions in priority order. Cancellation
// wins over timeout wins over the instruction budget, so a flag set
// just before a deadline expires still reports as a cancellation.
func (g *governor) check() {
	if g.cancel != nil && g.cancel.Load() {
		g.err = ErrCancelled
		return
	}
	if !time.Now().Before(g.deadline) {
		// The interpreter raises Err().Error() as a format string, so
		// the message must not contain '%'.
		g.err = fmt.Errorf("%w after %s", ErrTimeout, g.timeout)
		return
	}
	g.budget -= g.interval
	if g.budget <= 0 {
		g.err = ErrInstructionLimit
	}
}

func (g *governor) Err() error { return g.err }

func (g *governor) Deadline() (time.Time, bool) { return g.deadline, true }

func (g *governor) Value(key any) any { return nil }
