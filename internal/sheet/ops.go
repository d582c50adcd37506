package sheet

// CellKey is a packed (row, col) pair used as a cheap map key.
type CellKey uint64

// KeyOf packs 0-indexed row and column into a CellKey.
func KeyOf(row, col int) CellKey {
	return CellKey(uint64(uint32(row))<<32 | uint64(uint32(col)))
}

// Row returns the 0-indexed row of the key.
func (k CellKey) Row() int { return int(k >> 32) }

// Col returns the 0-indexed column of the key.
func (k CellKey) Col() int { return int(uint32(k)) }

// OpKind discriminates staged document operations.
type OpKind uint8

const (
	OpSetValue OpKind = iota
	OpSetFormula
	OpSetStyle
)

func (k OpKind) String() string {
	switch k {
	case OpSetValue:
		return "set_value"
	case OpSetFormula:
		return "set_formula"
	case OpSetStyle:
		return "set_style"
	default:
		return "unknown"
	}
}

// Cell style codes applied by OpSetStyle.
const (
	StyleDefault uint8 = iota
	StyleError
	StyleWarning
	StyleSuccess
	StyleInput
	StyleTotal
	StyleNote
)

// styleNames lists the canonical guest-visible style names, as exposed
// through the styles table.
var styleNames = map[string]uint8{
	"default": StyleDefault,
	"error":   StyleError,
	"warning": StyleWarning,
	"success": StyleSuccess,
	"input":   StyleInput,
	"total":   StyleTotal,
	"note":    StyleNote,
}

// StyleFromName maps a style name to its code. Names are matched
// case-insensitively by the bridge before calling this.
func StyleFromName(name string) (uint8, bool) {
	switch name {
	case "default", "none", "clear":
		return StyleDefault, true
	case "error":
		return StyleError, true
	case "warning", "warn":
		return StyleWarning, true
	case "success", "ok":
		return StyleSuccess, true
	case "input":
		return StyleInput, true
	case "total", "totals":
		return StyleTotal, true
	case "note":
		return StyleNote, true
	default:
		return 0, false
	}
}

// Op is a single staged mutation. Coordinates are 0-indexed. For
// OpSetStyle, (Row, Col) is the top-left and (EndRow, EndCol) the
// bottom-right of the affected rectangle.
type Op struct {
	Kind    OpKind `json:"kind"`
	Row     int    `json:"row"`
	Col     int    `json:"col"`
	Value   Value  `json:"value,omitempty"`
	Formula string `json:"formula,omitempty"`
	EndRow  int    `json:"end_row,omitempty"`
	EndCol  int    `json:"end_col,omitempty"`
	Style   uint8  `json:"style,omitempty"`
}

// Key returns the cell the operation affects (top-left for style ops).
func (op Op) Key() CellKey { return KeyOf(op.Row, op.Col) }
