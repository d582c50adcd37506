package sheet

import (
	"encoding/json"
	"math"
	"strconv"

	lua "github.com/yuin/gopher-lua"
)

// Kind discriminates the closed set of cell value types that may cross
// the guest/host boundary. Guest-native values (tables, functions,
// coroutines) never escape into the document model.
type Kind uint8

const (
	KindNil Kind = iota
	KindNumber
	KindText
	KindBool
	KindError
)

// Value is a typed cell value. Nil means "empty cell" on read and "clear
// the cell" on write. Error carries a formula evaluation error message.
type Value struct {
	Kind Kind
	Num  float64
	Text string // text for KindText, message for KindError
	Bool bool
}

// NilValue is the empty cell value.
var NilValue = Value{Kind: KindNil}

// NumberValue returns a numeric cell value.
func NumberValue(n float64) Value { return Value{Kind: KindNumber, Num: n} }

// TextValue returns a text cell value.
func TextValue(s string) Value { return Value{Kind: KindText, Text: s} }

// BoolValue returns a boolean cell value.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// ErrorValue returns an error cell value with the given message.
func ErrorValue(msg string) Value { return Value{Kind: KindError, Text: msg} }

// IsNil reports whether the value is the empty cell value.
func (v Value) IsNil() bool { return v.Kind == KindNil }

// Display renders the value for human-facing output. Integer-valued
// numbers render without a decimal point.
func (v Value) Display() string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindNumber:
		if v.Num == math.Trunc(v.Num) && math.Abs(v.Num) < 1e15 {
			return strconv.FormatFloat(v.Num, 'f', 0, 64)
		}
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case KindText:
		return v.Text
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindError:
		return "#ERROR: " + v.Text
	default:
		return ""
	}
}

// ToLua converts the value to its guest representation. Error values
// surface as "#ERROR: ..." strings so scripts can inspect them.
func (v Value) ToLua() lua.LValue {
	switch v.Kind {
	case KindNumber:
		return lua.LNumber(v.Num)
	case KindText:
		return lua.LString(v.Text)
	case KindBool:
		return lua.LBool(v.Bool)
	case KindError:
		return lua.LString("#ERROR: " + v.Text)
	default:
		return lua.LNil
	}
}

// FromLua converts a guest value to a cell value. Types outside the
// closed set convert to an error value rather than leaking through.
func FromLua(lv lua.LValue) Value {
	switch val := lv.(type) {
	case *lua.LNilType:
		return NilValue
	case lua.LBool:
		return BoolValue(bool(val))
	case lua.LNumber:
		return NumberValue(float64(val))
	case lua.LString:
		return TextValue(string(val))
	default:
		return ErrorValue("unsupported type: " + lv.Type().String())
	}
}

// MarshalJSON renders the value as its natural JSON type; error values
// become {"error": msg}.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNumber:
		return json.Marshal(v.Num)
	case KindText:
		return json.Marshal(v.Text)
	case KindBool:
		return json.Marshal(v.Bool)
	case KindError:
		return json.Marshal(map[string]string{"error": v.Text})
	default:
		return []byte("null"), nil
	}
}
