// Package document holds the host-side spreadsheet state that scripts
// evaluate against. Scripts never touch a Document directly: each
// evaluation reads a point-in-time snapshot, and the host applies the
// resulting operation journal here afterwards.
package document

import (
	"gridscript/internal/sheet"
)

// Document is a growable grid of values, formulas, and cell styles.
// Coordinates are 0-indexed. Extents grow to cover writes; they never
// shrink on clears.
type Document struct {
	rows, cols int
	values     map[sheet.CellKey]sheet.Value
	formulas   map[sheet.CellKey]string
	styles     map[sheet.CellKey]uint8
}

// New creates a document with the given initial extents.
func New(rows, cols int) *Document {
	return &Document{
		rows:     rows,
		cols:     cols,
		values:   make(map[sheet.CellKey]sheet.Value),
		formulas: make(map[sheet.CellKey]string),
		styles:   make(map[sheet.CellKey]uint8),
	}
}

func (d *Document) Rows() int { return d.rows }

func (d *Document) Cols() int { return d.cols }

// Value returns the value at (row, col); empty cells read as Nil.
func (d *Document) Value(row, col int) sheet.Value {
	if v, ok := d.values[sheet.KeyOf(row, col)]; ok {
		return v
	}
	return sheet.NilValue
}

// Formula returns the formula at (row, col), if any.
func (d *Document) Formula(row, col int) (string, bool) {
	f, ok := d.formulas[sheet.KeyOf(row, col)]
	return f, ok
}

// Style returns the style code at (row, col); unstyled cells read as
// the default style.
func (d *Document) Style(row, col int) uint8 {
	return d.styles[sheet.KeyOf(row, col)]
}

// SetValue writes a value, clearing any formula on the cell. A Nil
// value clears the cell.
func (d *Document) SetValue(row, col int, v sheet.Value) {
	key := sheet.KeyOf(row, col)
	delete(d.formulas, key)
	if v.IsNil() {
		delete(d.values, key)
		return
	}
	d.values[key] = v
	d.grow(row, col)
}

// SetFormula writes a formula. The cell's value is cleared; it reads as
// Nil until the host recalculates.
func (d *Document) SetFormula(row, col int, formula string) {
	key := sheet.KeyOf(row, col)
	delete(d.values, key)
	d.formulas[key] = formula
	d.grow(row, col)
}

// SetStyle writes a style code; the default code removes the entry.
func (d *Document) SetStyle(row, col int, style uint8) {
	key := sheet.KeyOf(row, col)
	if style == sheet.StyleDefault {
		delete(d.styles, key)
		return
	}
	d.styles[key] = style
	d.grow(row, col)
}

func (d *Document) grow(row, col int) {
	if row >= d.rows {
		d.rows = row + 1
	}
	if col >= d.cols {
		d.cols = col + 1
	}
}

// Snapshot copies the current state into an immutable reader for an
// evaluation.
func (d *Document) Snapshot() *sheet.Snapshot {
	snap := sheet.NewSnapshot(d.rows, d.cols)
	for key, v := range d.values {
		snap.SetValue(key.Row(), key.Col(), v)
	}
	for key, f := range d.formulas {
		snap.SetFormula(key.Row(), key.Col(), f)
	}
	return snap
}

// Apply replays an operation journal in order. Later operations on the
// same cell overwrite earlier ones.
func (d *Document) Apply(ops []sheet.Op) {
	for _, op := range ops {
		switch op.Kind {
		case sheet.OpSetValue:
			d.SetValue(op.Row, op.Col, op.Value)
		case sheet.OpSetFormula:
			d.SetFormula(op.Row, op.Col, op.Formula)
		case sheet.OpSetStyle:
			for row := op.Row; row <= op.EndRow; row++ {
				for col := op.Col; col <= op.EndCol; col++ {
					d.SetStyle(row, col, op.Style)
				}
			}
		}
	}
}
