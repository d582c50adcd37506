package sheet

import (
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func TestValueDisplay(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"nil", NilValue, "nil"},
		{"integer", NumberValue(42), "42"},
		{"negative integer", NumberValue(-7), "-7"},
		{"float", NumberValue(3.14), "3.14"},
		{"text", TextValue("hello"), "hello"},
		{"bool true", BoolValue(true), "true"},
		{"bool false", BoolValue(false), "false"},
		{"error", ErrorValue("div by zero"), "#ERROR: div by zero"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Display(); got != tt.want {
				t.Errorf("Display() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFromLua(t *testing.T) {
	if v := FromLua(lua.LNil); !v.IsNil() {
		t.Errorf("FromLua(nil) = %+v, want nil", v)
	}
	if v := FromLua(lua.LNumber(2.5)); v.Kind != KindNumber || v.Num != 2.5 {
		t.Errorf("FromLua(2.5) = %+v", v)
	}
	if v := FromLua(lua.LString("x")); v.Kind != KindText || v.Text != "x" {
		t.Errorf("FromLua(x) = %+v", v)
	}
	if v := FromLua(lua.LTrue); v.Kind != KindBool || !v.Bool {
		t.Errorf("FromLua(true) = %+v", v)
	}

	// Tables and other guest-native types do not cross the boundary.
	L := lua.NewState()
	defer L.Close()
	if v := FromLua(L.NewTable()); v.Kind != KindError {
		t.Errorf("FromLua(table) = %+v, want error value", v)
	}
}

func TestToLuaRoundTrip(t *testing.T) {
	for _, v := range []Value{NilValue, NumberValue(1.5), TextValue("a"), BoolValue(true)} {
		if got := FromLua(v.ToLua()); got != v {
			t.Errorf("FromLua(ToLua(%+v)) = %+v", v, got)
		}
	}
	// Error values surface as strings in the guest.
	if lv := ErrorValue("bad").ToLua(); lv.String() != "#ERROR: bad" {
		t.Errorf("error ToLua = %q", lv.String())
	}
}
