package sheet

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
)

const (
	sheetTypeName = "sheet"
	rangeTypeName = "range"
)

// RegisterTypes installs the sheet and range metatables on an LState.
// Call once per state, before the first Bind.
func RegisterTypes(L *lua.LState) {
	mt := L.NewTypeMetatable(sheetTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), sheetMethods))

	rmt := L.NewTypeMetatable(rangeTypeName)
	L.SetField(rmt, "__index", L.SetFuncs(L.NewTable(), rangeMethods))
}

// Bind exposes a sink to the guest as the `sheet` global, alongside the
// `styles` lookup table.
func Bind(L *lua.LState, s *Sink) {
	ud := L.NewUserData()
	ud.Value = s
	L.SetMetatable(ud, L.GetTypeMetatable(sheetTypeName))
	L.SetGlobal("sheet", ud)
	L.SetGlobal("styles", stylesTable(L))
}

// Unbind removes the sheet bindings after an evaluation. Guest code that
// stashed the userdata elsewhere still hits the closed-sink error.
func Unbind(L *lua.LState) {
	L.SetGlobal("sheet", lua.LNil)
	L.SetGlobal("styles", lua.LNil)
}

func stylesTable(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	for name, code := range styleNames {
		t.RawSetString(name, lua.LNumber(code))
	}
	return t
}

func checkSink(L *lua.LState) *Sink {
	ud := L.CheckUserData(1)
	s, ok := ud.Value.(*Sink)
	if !ok {
		L.ArgError(1, "sheet expected")
		return nil
	}
	if s.closed {
		L.RaiseError("%s", ErrClosed.Error())
		return nil
	}
	return s
}

var sheetMethods = map[string]lua.LGFunction{
	"get_value":   sheetGetValue,
	"set_value":   sheetSetValue,
	"get_formula": sheetGetFormula,
	"set_formula": sheetSetFormula,
	"get":         sheetGet,
	"set":         sheetSet,
	"rows":        sheetRows,
	"cols":        sheetCols,
	"selection":   sheetSelection,
	"begin":       sheetBegin,
	"commit":      sheetCommit,
	"rollback":    sheetRollback,
	"range":       sheetRange,
	"style":       sheetStyle,
}

func sheetGetValue(L *lua.LState) int {
	s := checkSink(L)
	row, col := L.CheckInt(2), L.CheckInt(3)
	v, err := s.Value(row, col)
	if err != nil {
		L.RaiseError("%s", err.Error())
	}
	L.Push(v.ToLua())
	return 1
}

func sheetSetValue(L *lua.LState) int {
	s := checkSink(L)
	row, col := L.CheckInt(2), L.CheckInt(3)
	v := FromLua(L.Get(4))
	if err := s.SetValue(row, col, v); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

func sheetGetFormula(L *lua.LState) int {
	s := checkSink(L)
	row, col := L.CheckInt(2), L.CheckInt(3)
	f, ok, err := s.Formula(row, col)
	if err != nil {
		L.RaiseError("%s", err.Error())
	}
	if !ok {
		L.Push(lua.LNil)
	} else {
		L.Push(lua.LString(f))
	}
	return 1
}

func sheetSetFormula(L *lua.LState) int {
	s := checkSink(L)
	row, col := L.CheckInt(2), L.CheckInt(3)
	formula := L.CheckString(4)
	if err := s.SetFormula(row, col, formula); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

// sheetGet is the address-shorthand read: sheet:get("B2").
func sheetGet(L *lua.LState) int {
	s := checkSink(L)
	row, col := checkA1(L, 2)
	v, err := s.Value(row, col)
	if err != nil {
		L.RaiseError("%s", err.Error())
	}
	L.Push(v.ToLua())
	return 1
}

// sheetSet is the address-shorthand write: sheet:set("B2", v).
func sheetSet(L *lua.LState) int {
	s := checkSink(L)
	row, col := checkA1(L, 2)
	v := FromLua(L.Get(3))
	if err := s.SetValue(row, col, v); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

// checkA1 parses a 1-indexed A1 reference argument. An unparseable
// address is a guest-visible error, not a silent nil.
func checkA1(L *lua.LState, n int) (row, col int) {
	addr := L.CheckString(n)
	row, col, err := ParseAddress(addr)
	if err != nil {
		L.RaiseError("%s", err.Error())
	}
	return row, col
}

func sheetRows(L *lua.LState) int {
	s := checkSink(L)
	L.Push(lua.LNumber(s.Rows()))
	return 1
}

func sheetCols(L *lua.LState) int {
	s := checkSink(L)
	L.Push(lua.LNumber(s.Cols()))
	return 1
}

// sheetSelection returns the selection as a table with 1-indexed
// start_row, start_col, end_row, end_col fields plus the formatted
// range address.
func sheetSelection(L *lua.LState) int {
	s := checkSink(L)
	sel := s.Selection()
	t := L.NewTable()
	t.RawSetString("start_row", lua.LNumber(sel.StartRow+1))
	t.RawSetString("start_col", lua.LNumber(sel.StartCol+1))
	t.RawSetString("end_row", lua.LNumber(sel.EndRow+1))
	t.RawSetString("end_col", lua.LNumber(sel.EndCol+1))
	t.RawSetString("range", lua.LString(sel.String()))
	L.Push(t)
	return 1
}

func sheetBegin(L *lua.LState) int {
	checkSink(L).Begin()
	return 0
}

func sheetCommit(L *lua.LState) int {
	checkSink(L).Commit()
	return 0
}

func sheetRollback(L *lua.LState) int {
	n := checkSink(L).Rollback()
	L.Push(lua.LNumber(n))
	return 1
}

func sheetRange(L *lua.LState) int {
	s := checkSink(L)
	spec := L.CheckString(2)
	rect, err := ParseRect(spec)
	if err != nil {
		L.RaiseError("%s", err.Error())
	}
	ud := L.NewUserData()
	ud.Value = &rangeRef{sink: s, rect: rect}
	L.SetMetatable(ud, L.GetTypeMetatable(rangeTypeName))
	L.Push(ud)
	return 1
}

func sheetStyle(L *lua.LState) int {
	s := checkSink(L)
	spec := L.CheckString(2)
	rect, err := ParseRect(spec)
	if err != nil {
		L.RaiseError("%s", err.Error())
	}
	style, ok := checkStyle(L, 3)
	if !ok {
		return 0
	}
	if err := s.SetStyle(rect, style); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

// checkStyle accepts either a code from the styles table or a style name.
func checkStyle(L *lua.LState, n int) (uint8, bool) {
	switch lv := L.Get(n).(type) {
	case lua.LNumber:
		code := int(lv)
		if code < 0 || code > int(StyleNote) {
			L.ArgError(n, "unknown style code")
			return 0, false
		}
		return uint8(code), true
	case lua.LString:
		code, ok := StyleFromName(strings.ToLower(string(lv)))
		if !ok {
			L.ArgError(n, "unknown style name")
			return 0, false
		}
		return code, true
	default:
		L.ArgError(n, "style code or name expected")
		return 0, false
	}
}

// rangeRef is a guest handle to a rectangle of a bound sink.
type rangeRef struct {
	sink *Sink
	rect Rect
}

var rangeMethods = map[string]lua.LGFunction{
	"values":     rangeValues,
	"set_values": rangeSetValues,
	"rows":       rangeRows,
	"cols":       rangeCols,
	"address":    rangeAddress,
}

func checkRange(L *lua.LState) *rangeRef {
	ud := L.CheckUserData(1)
	r, ok := ud.Value.(*rangeRef)
	if !ok {
		L.ArgError(1, "range expected")
		return nil
	}
	if r.sink.closed {
		L.RaiseError("%s", ErrClosed.Error())
		return nil
	}
	return r
}

// rangeValues returns a table of row tables covering the rectangle,
// read through the sink overlay.
func rangeValues(L *lua.LState) int {
	r := checkRange(L)
	out := L.NewTable()
	for row := r.rect.StartRow; row <= r.rect.EndRow; row++ {
		rowT := L.NewTable()
		for col := r.rect.StartCol; col <= r.rect.EndCol; col++ {
			v, err := r.sink.Value(row+1, col+1)
			if err != nil {
				L.RaiseError("%s", err.Error())
			}
			rowT.Append(v.ToLua())
		}
		out.Append(rowT)
	}
	L.Push(out)
	return 1
}

// rangeSetValues writes a table of row tables into the rectangle,
// clipped to its extent. Non-table rows are skipped; nil cells inside a
// row table stage explicit clears.
func rangeSetValues(L *lua.LState) int {
	r := checkRange(L)
	data := L.CheckTable(2)
	for i := 0; i < r.rect.Rows(); i++ {
		rowVal := data.RawGetInt(i + 1)
		rowT, ok := rowVal.(*lua.LTable)
		if !ok {
			continue
		}
		for j := 0; j < r.rect.Cols(); j++ {
			v := FromLua(rowT.RawGetInt(j + 1))
			row := r.rect.StartRow + i + 1
			col := r.rect.StartCol + j + 1
			if err := r.sink.SetValue(row, col, v); err != nil {
				L.RaiseError("%s", err.Error())
			}
		}
	}
	return 0
}

func rangeRows(L *lua.LState) int {
	r := checkRange(L)
	L.Push(lua.LNumber(r.rect.Rows()))
	return 1
}

func rangeCols(L *lua.LState) int {
	r := checkRange(L)
	L.Push(lua.LNumber(r.rect.Cols()))
	return 1
}

func rangeAddress(L *lua.LState) int {
	r := checkRange(L)
	L.Push(lua.LString(r.rect.String()))
	return 1
}
