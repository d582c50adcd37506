package script

import "fmt"

// outputBuffer captures guest print output up to a line cap. Lines past
// the cap are counted but dropped, and draining a truncated buffer
// appends a single notice outside the cap.
type outputBuffer struct {
	max     int
	lines   []string
	dropped int
}

func newOutputBuffer(max int) *outputBuffer {
	return &outputBuffer{max: max}
}

func (b *outputBuffer) push(line string) {
	if len(b.lines) >= b.max {
		b.dropped++
		return
	}
	b.lines = append(b.lines, line)
}

func (b *outputBuffer) truncated() bool { return b.dropped > 0 }

func (b *outputBuffer) reset() {
	b.lines = b.lines[:0]
	b.dropped = 0
}

// drain returns the captured lines, plus the truncation notice when any
// were dropped. The returned slice is a copy; the buffer can be reset
// and reused.
func (b *outputBuffer) drain() []string {
	n := len(b.lines)
	if b.dropped > 0 {
		n++
	}
	if n == 0 {
		return nil
	}
	out := make([]string, 0, n)
	out = append(out, b.lines...)
	if b.dropped > 0 {
		out = append(out, fmt.Sprintf("... output truncated (%d line limit)", b.max))
	}
	return out
}
