package sheet

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced to the guest as script runtime errors.
var (
	ErrOpLimit = errors.New("operation limit exceeded")
	ErrClosed  = errors.New("sheet is no longer attached to an evaluation")
)

type pendingKind uint8

const (
	pendingValue pendingKind = iota
	pendingFormula
)

// pendingCell is an overlay entry recording what a script has staged for
// a cell, so later reads in the same run see their own writes.
type pendingCell struct {
	kind    pendingKind
	value   Value
	formula string
}

// readValue returns the in-script read for the entry. A pending formula
// reads as Nil: its result is unknown until the host recalculates.
func (p pendingCell) readValue() Value {
	if p.kind == pendingValue {
		return p.value
	}
	return NilValue
}

// Sink is the operation sink between a running script and the document.
// It is the only path to document state: reads consult the overlay first
// and fall back to the snapshot; writes append to the ordered journal
// and update the overlay. The host applies the journal after the script
// terminates. Coordinates at this layer are 1-indexed (guest convention)
// and converted to 0-indexed storage at entry.
type Sink struct {
	reader    Reader
	selection Rect
	maxOps    int

	ops        []Op
	pending    map[CellKey]pendingCell
	opLimitHit bool
	closed     bool
}

// NewSink creates a sink over a snapshot reader. The selection is the
// host's current selection rectangle, 0-indexed; the zero Rect means a
// single-cell selection at A1. maxOps caps the journal length.
func NewSink(reader Reader, selection Rect, maxOps int) *Sink {
	return &Sink{
		reader:    reader,
		selection: selection,
		maxOps:    maxOps,
		pending:   make(map[CellKey]pendingCell),
	}
}

// Close detaches the sink. Any guest reference that survives the
// evaluation (e.g. stashed in a global) errors instead of reading or
// staging against a drained journal.
func (s *Sink) Close() { s.closed = true }

// Mutations returns the number of distinct cells touched by staged
// operations. Writing one cell twice counts once.
func (s *Sink) Mutations() int { return len(s.pending) }

// Ops returns the staged operations without draining them.
func (s *Sink) Ops() []Op { return s.ops }

// TakeOps drains the journal, leaving it empty.
func (s *Sink) TakeOps() []Op {
	ops := s.ops
	s.ops = nil
	return ops
}

// OpLimitHit reports whether a write was rejected for exceeding maxOps.
func (s *Sink) OpLimitHit() bool { return s.opLimitHit }

// Selection returns the host-supplied selection rectangle, 0-indexed.
func (s *Sink) Selection() Rect { return s.selection }

func (s *Sink) Rows() int { return s.reader.Rows() }

func (s *Sink) Cols() int { return s.reader.Cols() }

// Value returns the value at 1-indexed (row, col), preferring the
// overlay over the snapshot.
func (s *Sink) Value(row, col int) (Value, error) {
	if err := s.checkCoord(row, col); err != nil {
		return NilValue, err
	}
	key := KeyOf(row-1, col-1)
	if p, ok := s.pending[key]; ok {
		return p.readValue(), nil
	}
	return s.reader.Value(row-1, col-1), nil
}

// Formula returns the formula at 1-indexed (row, col), preferring the
// overlay over the snapshot. A pending plain value shadows any snapshot
// formula.
func (s *Sink) Formula(row, col int) (string, bool, error) {
	if err := s.checkCoord(row, col); err != nil {
		return "", false, err
	}
	key := KeyOf(row-1, col-1)
	if p, ok := s.pending[key]; ok {
		if p.kind == pendingFormula {
			return p.formula, true, nil
		}
		return "", false, nil
	}
	f, ok := s.reader.Formula(row-1, col-1)
	return f, ok, nil
}

// SetValue stages a value write at 1-indexed (row, col). A Nil value is
// an explicit clear operation, not the absence of one.
func (s *Sink) SetValue(row, col int, v Value) error {
	if err := s.checkWrite(row, col); err != nil {
		return err
	}
	s.pending[KeyOf(row-1, col-1)] = pendingCell{kind: pendingValue, value: v}
	s.ops = append(s.ops, Op{Kind: OpSetValue, Row: row - 1, Col: col - 1, Value: v})
	return nil
}

// SetFormula stages a formula write at 1-indexed (row, col).
func (s *Sink) SetFormula(row, col int, formula string) error {
	if err := s.checkWrite(row, col); err != nil {
		return err
	}
	s.pending[KeyOf(row-1, col-1)] = pendingCell{kind: pendingFormula, formula: formula}
	s.ops = append(s.ops, Op{Kind: OpSetFormula, Row: row - 1, Col: col - 1, Formula: formula})
	return nil
}

// SetStyle stages a style op over a 0-indexed rectangle. Styles do not
// participate in the value overlay and do not count as cell mutations;
// only the journal records them.
func (s *Sink) SetStyle(r Rect, style uint8) error {
	if s.closed {
		return ErrClosed
	}
	if err := s.checkOpLimit(); err != nil {
		return err
	}
	s.ops = append(s.ops, Op{
		Kind:   OpSetStyle,
		Row:    r.StartRow,
		Col:    r.StartCol,
		EndRow: r.EndRow,
		EndCol: r.EndCol,
		Style:  style,
	})
	return nil
}

// Begin is accepted as a transactional marker. Operations are already
// batched per evaluation; it has no independent effect.
func (s *Sink) Begin() {}

// Commit is accepted as a transactional marker. The host applies the
// journal when the script terminates; there is nothing to do here.
func (s *Sink) Commit() {}

// Rollback discards every staged operation and overlay entry, returning
// the number of operations discarded. Reads afterwards see only the
// snapshot until new writes are staged.
func (s *Sink) Rollback() int {
	n := len(s.ops)
	s.ops = nil
	s.pending = make(map[CellKey]pendingCell)
	return n
}

func (s *Sink) checkCoord(row, col int) error {
	if s.closed {
		return ErrClosed
	}
	if row < 1 || col < 1 {
		return fmt.Errorf("%w: row and column must be >= 1, got (%d, %d)", ErrInvalidAddress, row, col)
	}
	return nil
}

func (s *Sink) checkWrite(row, col int) error {
	if err := s.checkCoord(row, col); err != nil {
		return err
	}
	return s.checkOpLimit()
}

func (s *Sink) checkOpLimit() error {
	if s.maxOps > 0 && len(s.ops) >= s.maxOps {
		s.opLimitHit = true
		return fmt.Errorf("%w (%d ops)", ErrOpLimit, s.maxOps)
	}
	return nil
}
