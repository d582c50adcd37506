package sheet

// Reader is a read-only view of document state as of the start of one
// evaluation. All coordinates are 0-indexed. Implementations must not
// observe writes staged during the evaluation; the Sink overlays those.
type Reader interface {
	// Value returns the typed value at (row, col); NilValue if empty.
	Value(row, col int) Value

	// Formula returns the formula text at (row, col), if any.
	Formula(row, col int) (string, bool)

	// Rows returns the number of rows with data.
	Rows() int

	// Cols returns the number of columns with data.
	Cols() int
}

// Snapshot is a map-backed Reader. Hosts copy document state into a
// Snapshot before an evaluation so the engine never touches live state.
type Snapshot struct {
	rows, cols int
	values     map[CellKey]Value
	formulas   map[CellKey]string
}

// NewSnapshot creates an empty snapshot with the given dimensions.
func NewSnapshot(rows, cols int) *Snapshot {
	return &Snapshot{
		rows:     rows,
		cols:     cols,
		values:   make(map[CellKey]Value),
		formulas: make(map[CellKey]string),
	}
}

// SetValue stores a value at 0-indexed (row, col). Nil values are not
// stored; empty cells are the map's default.
func (s *Snapshot) SetValue(row, col int, v Value) {
	if v.IsNil() {
		delete(s.values, KeyOf(row, col))
		return
	}
	s.values[KeyOf(row, col)] = v
}

// SetFormula stores formula text at 0-indexed (row, col).
func (s *Snapshot) SetFormula(row, col int, formula string) {
	s.formulas[KeyOf(row, col)] = formula
}

func (s *Snapshot) Value(row, col int) Value {
	if v, ok := s.values[KeyOf(row, col)]; ok {
		return v
	}
	return NilValue
}

func (s *Snapshot) Formula(row, col int) (string, bool) {
	f, ok := s.formulas[KeyOf(row, col)]
	return f, ok
}

func (s *Snapshot) Rows() int { return s.rows }

func (s *Snapshot) Cols() int { return s.cols }
