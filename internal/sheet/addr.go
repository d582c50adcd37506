package sheet

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidAddress indicates a malformed A1-style cell or range address.
var ErrInvalidAddress = errors.New("invalid address")

// ParseAddress parses an A1-style address ("B2", "AA10") into 1-indexed
// row and column numbers. Column letters are case-insensitive.
func ParseAddress(addr string) (row, col int, err error) {
	s := strings.ToUpper(strings.TrimSpace(addr))
	if s == "" {
		return 0, 0, fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}

	letters := 0
	for letters < len(s) && s[letters] >= 'A' && s[letters] <= 'Z' {
		letters++
	}
	if letters == 0 || letters == len(s) {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}

	// A=1, B=2, ..., Z=26, AA=27, ...
	for i := 0; i < letters; i++ {
		col = col*26 + int(s[i]-'A') + 1
	}

	row, convErr := strconv.Atoi(s[letters:])
	if convErr != nil || row < 1 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}

	return row, col, nil
}

// FormatAddress formats 1-indexed row and column numbers as an A1-style
// address. Out-of-range inputs produce an empty string.
func FormatAddress(row, col int) string {
	if row < 1 || col < 1 {
		return ""
	}

	var letters []byte
	for c := col; c > 0; {
		c--
		letters = append([]byte{byte('A' + c%26)}, letters...)
		c /= 26
	}
	return fmt.Sprintf("%s%d", letters, row)
}

// Rect is an inclusive cell rectangle stored 0-indexed. The zero value is
// the single cell A1.
type Rect struct {
	StartRow int `json:"start_row"`
	StartCol int `json:"start_col"`
	EndRow   int `json:"end_row"`
	EndCol   int `json:"end_col"`
}

// ParseRect parses "A1:C5" or a single cell "A1" into a normalized Rect
// (start <= end on both axes).
func ParseRect(s string) (Rect, error) {
	s = strings.TrimSpace(s)

	if colon := strings.IndexByte(s, ':'); colon >= 0 {
		r1, c1, err := ParseAddress(s[:colon])
		if err != nil {
			return Rect{}, err
		}
		r2, c2, err := ParseAddress(s[colon+1:])
		if err != nil {
			return Rect{}, err
		}
		return Rect{
			StartRow: min(r1, r2) - 1,
			StartCol: min(c1, c2) - 1,
			EndRow:   max(r1, r2) - 1,
			EndCol:   max(c1, c2) - 1,
		}, nil
	}

	row, col, err := ParseAddress(s)
	if err != nil {
		return Rect{}, err
	}
	return Rect{StartRow: row - 1, StartCol: col - 1, EndRow: row - 1, EndCol: col - 1}, nil
}

// Rows returns the number of rows the rectangle spans.
func (r Rect) Rows() int { return r.EndRow - r.StartRow + 1 }

// Cols returns the number of columns the rectangle spans.
func (r Rect) Cols() int { return r.EndCol - r.StartCol + 1 }

// String renders the rectangle as an A1-style address: "A1:C5", or just
// "A1" for a single cell.
func (r Rect) String() string {
	start := FormatAddress(r.StartRow+1, r.StartCol+1)
	end := FormatAddress(r.EndRow+1, r.EndCol+1)
	if start == end {
		return start
	}
	return start + ":" + end
}
