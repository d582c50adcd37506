package script

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gridscript/internal/sheet"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt, err := New(DefaultLimits(), nil)
	if err != nil {
		t.Fatalf("New = %v", err)
	}
	t.Cleanup(rt.Close)
	return rt
}

func newTestRuntimeWithLimits(t *testing.T, limits Limits) *Runtime {
	t.Helper()
	rt, err := New(limits, nil)
	if err != nil {
		t.Fatalf("New = %v", err)
	}
	t.Cleanup(rt.Close)
	return rt
}

func testSnapshot() *sheet.Snapshot {
	snap := sheet.NewSnapshot(3, 3)
	snap.SetValue(0, 0, sheet.NumberValue(10))
	snap.SetValue(0, 1, sheet.NumberValue(20))
	snap.SetValue(1, 0, sheet.TextValue("hello"))
	snap.SetFormula(2, 2, "=A1+B1")
	return snap
}

func TestEvalExpression(t *testing.T) {
	rt := newTestRuntime(t)

	res := rt.Eval("1 + 2")
	if !res.OK() {
		t.Fatalf("error: %s", res.Error)
	}
	if !res.HasValue || res.Value != "3" {
		t.Errorf("Value = %q (has=%v), want 3", res.Value, res.HasValue)
	}
}

func TestEvalExpressionShowsNil(t *testing.T) {
	rt := newTestRuntime(t)

	res := rt.Eval("nil")
	if !res.HasValue || res.Value != "nil" {
		t.Errorf("Value = %q (has=%v), want nil shown", res.Value, res.HasValue)
	}
}

func TestEvalStatementNoValue(t *testing.T) {
	rt := newTestRuntime(t)

	res := rt.Eval("local x = 5")
	if !res.OK() {
		t.Fatalf("error: %s", res.Error)
	}
	if res.HasValue {
		t.Errorf("statement produced value %q", res.Value)
	}
}

func TestEvalMultipleReturns(t *testing.T) {
	rt := newTestRuntime(t)

	res := rt.Eval("return 1, \"two\", true")
	if !res.OK() {
		t.Fatalf("error: %s", res.Error)
	}
	if res.Value != "1\ttwo\ttrue" {
		t.Errorf("Value = %q", res.Value)
	}
}

func TestEvalEmptySource(t *testing.T) {
	rt := newTestRuntime(t)

	res := rt.Eval("   \n\t  ")
	if !res.OK() || res.HasValue || len(res.Output) != 0 {
		t.Errorf("empty source result = %+v", res)
	}
}

func TestGlobalsPersistAcrossEvaluations(t *testing.T) {
	rt := newTestRuntime(t)

	if res := rt.Eval("counter = 41"); !res.OK() {
		t.Fatalf("error: %s", res.Error)
	}
	res := rt.Eval("counter + 1")
	if res.Value != "42" {
		t.Errorf("Value = %q, want 42", res.Value)
	}
}

func TestSyntaxError(t *testing.T) {
	rt := newTestRuntime(t)

	res := rt.Eval("this is not lua")
	if res.OK() {
		t.Fatal("expected syntax error")
	}
	if res.Status() != "error" {
		t.Errorf("Status = %q, want error", res.Status())
	}
	if strings.Contains(res.Error, "<string>") {
		t.Errorf("chunk name leaked into error: %q", res.Error)
	}
}

func TestRuntimeError(t *testing.T) {
	rt := newTestRuntime(t)

	res := rt.Eval(`error("boom")`)
	if res.OK() {
		t.Fatal("expected runtime error")
	}
	if !strings.Contains(res.Error, "boom") {
		t.Errorf("Error = %q, want boom", res.Error)
	}
	if res.Cancelled || res.TimedOut || res.InstructionLimitExceeded {
		t.Errorf("runtime error misclassified: %+v", res)
	}
}

func TestPrintCapture(t *testing.T) {
	rt := newTestRuntime(t)

	res := rt.Eval(`print("a", 1, true)` + "\n" + `print("second")`)
	if !res.OK() {
		t.Fatalf("error: %s", res.Error)
	}
	if len(res.Output) != 2 {
		t.Fatalf("Output = %v", res.Output)
	}
	if res.Output[0] != "a\t1\ttrue" {
		t.Errorf("Output[0] = %q", res.Output[0])
	}
	if res.Output[1] != "second" {
		t.Errorf("Output[1] = %q", res.Output[1])
	}
}

func TestOutputTruncation(t *testing.T) {
	limits := DefaultLimits()
	limits.OutputLines = 3
	rt := newTestRuntimeWithLimits(t, limits)

	res := rt.Eval(`for i = 1, 10 do print(i) end`)
	if !res.OK() {
		t.Fatalf("error: %s", res.Error)
	}
	if !res.OutputTruncated {
		t.Fatal("OutputTruncated = false")
	}
	// Cap lines plus the notice.
	if len(res.Output) != 4 {
		t.Fatalf("Output = %v", res.Output)
	}
	if res.Output[3] != "... output truncated (3 line limit)" {
		t.Errorf("notice = %q", res.Output[3])
	}
}

func TestOutputResetBetweenEvaluations(t *testing.T) {
	rt := newTestRuntime(t)

	rt.Eval(`print("first run")`)
	res := rt.Eval(`print("second run")`)
	if len(res.Output) != 1 || res.Output[0] != "second run" {
		t.Errorf("Output = %v, want only second run", res.Output)
	}
}

func TestSandboxDeniesCapabilities(t *testing.T) {
	rt := newTestRuntime(t)

	// Denied libraries are absent, not stubbed.
	for _, src := range []string{"type(io)", "type(os)", "type(package)", "type(debug)", "type(coroutine)", "type(require)", "type(dofile)", "type(load)", "type(loadstring)", "type(collectgarbage)"} {
		res := rt.Eval(src)
		if res.Value != "nil" {
			t.Errorf("%s = %q, want nil", src, res.Value)
		}
	}

	// Calling through an absent capability is an ordinary error.
	res := rt.Eval(`io.open("/etc/passwd")`)
	if res.OK() {
		t.Fatal("expected error calling io.open")
	}
}

func TestSandboxAllowsComputeLibraries(t *testing.T) {
	rt := newTestRuntime(t)

	res := rt.Eval(`math.floor(7.9) + #("abc") + #({1, 2})`)
	if !res.OK() {
		t.Fatalf("error: %s", res.Error)
	}
	if res.Value != "12" {
		t.Errorf("Value = %q, want 12", res.Value)
	}

	res = rt.Eval(`table.concat({"a", "b"}, "-") .. string.upper("c")`)
	if res.Value != "a-bC" {
		t.Errorf("Value = %q, want a-bC", res.Value)
	}
}

func TestInstructionLimit(t *testing.T) {
	limits := DefaultLimits()
	limits.Instructions = 100_000
	limits.HookInterval = 1_000
	rt := newTestRuntimeWithLimits(t, limits)

	res := rt.Eval(`while true do end`)
	if res.OK() {
		t.Fatal("expected abort")
	}
	if !res.InstructionLimitExceeded {
		t.Errorf("flags = %+v, want instruction limit", res)
	}
	if res.Status() != "instruction_limit" {
		t.Errorf("Status = %q", res.Status())
	}
}

func TestTimeout(t *testing.T) {
	limits := DefaultLimits()
	limits.Timeout = 20 * time.Millisecond
	limits.HookInterval = 1_000
	rt := newTestRuntimeWithLimits(t, limits)

	res := rt.Eval(`while true do end`)
	if !res.TimedOut {
		t.Fatalf("flags = %+v, want timeout", res)
	}
	if res.Status() != "timeout" {
		t.Errorf("Status = %q", res.Status())
	}
}

func TestCancelPreSet(t *testing.T) {
	rt := newTestRuntime(t)

	var cancel atomic.Bool
	cancel.Store(true)
	res := rt.Execute(context.Background(), Request{Source: "1 + 1", Cancel: &cancel})
	if !res.Cancelled {
		t.Fatalf("flags = %+v, want cancelled", res)
	}
	if res.Status() != "cancelled" {
		t.Errorf("Status = %q", res.Status())
	}
}

func TestCancelDuringRun(t *testing.T) {
	limits := DefaultLimits()
	limits.HookInterval = 1_000
	rt := newTestRuntimeWithLimits(t, limits)

	var cancel atomic.Bool
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel.Store(true)
	}()
	res := rt.Execute(context.Background(), Request{Source: "while true do end", Cancel: &cancel})
	if !res.Cancelled {
		t.Fatalf("flags = %+v, want cancelled", res)
	}
}

func TestGovernorTripSurvivesPcall(t *testing.T) {
	limits := DefaultLimits()
	limits.Instructions = 100_000
	limits.HookInterval = 1_000
	rt := newTestRuntimeWithLimits(t, limits)

	// A guest pcall can catch the raised abort once, but the tripped
	// governor re-raises before any further instruction runs.
	res := rt.Eval(`pcall(function() while true do end end) print("escaped")`)
	if !res.InstructionLimitExceeded {
		t.Fatalf("flags = %+v, want instruction limit", res)
	}
	for _, line := range res.Output {
		if line == "escaped" {
			t.Error("script continued after governor trip")
		}
	}
}

func TestSheetReadWrite(t *testing.T) {
	rt := newTestRuntime(t)

	res := rt.Execute(context.Background(), Request{
		Source:   `sheet:set_value(2, 2, sheet:get_value(1, 1) + sheet:get_value(1, 2))`,
		Snapshot: testSnapshot(),
	})
	if !res.OK() {
		t.Fatalf("error: %s", res.Error)
	}
	if len(res.Ops) != 1 {
		t.Fatalf("Ops = %+v", res.Ops)
	}
	op := res.Ops[0]
	if op.Kind != sheet.OpSetValue || op.Row != 1 || op.Col != 1 || op.Value.Num != 30 {
		t.Errorf("op = %+v, want B2 = 30", op)
	}
	if res.Mutations != 1 {
		t.Errorf("Mutations = %d, want 1", res.Mutations)
	}
}

func TestSheetReadYourOwnWrites(t *testing.T) {
	rt := newTestRuntime(t)

	res := rt.Execute(context.Background(), Request{
		Source: `
			sheet:set_value(1, 1, 5)
			return sheet:get_value(1, 1)
		`,
		Snapshot: testSnapshot(),
	})
	if !res.OK() {
		t.Fatalf("error: %s", res.Error)
	}
	if res.Value != "5" {
		t.Errorf("Value = %q, want overlay value 5", res.Value)
	}
}

func TestSheetFormulas(t *testing.T) {
	rt := newTestRuntime(t)

	res := rt.Execute(context.Background(), Request{
		Source: `
			sheet:set_formula(1, 3, "=A1*2")
			print(sheet:get_formula(3, 3))
			print(sheet:get_formula(1, 3))
			print(sheet:get_value(1, 3))
		`,
		Snapshot: testSnapshot(),
	})
	if !res.OK() {
		t.Fatalf("error: %s", res.Error)
	}
	want := []string{"=A1+B1", "=A1*2", "nil"}
	for i, w := range want {
		if res.Output[i] != w {
			t.Errorf("Output[%d] = %q, want %q", i, res.Output[i], w)
		}
	}
	if len(res.Ops) != 1 || res.Ops[0].Kind != sheet.OpSetFormula {
		t.Errorf("Ops = %+v", res.Ops)
	}
}

func TestSheetA1Access(t *testing.T) {
	rt := newTestRuntime(t)

	res := rt.Execute(context.Background(), Request{
		Source: `
			sheet:set("C3", sheet:get("A1"))
			return sheet:get("C3")
		`,
		Snapshot: testSnapshot(),
	})
	if !res.OK() {
		t.Fatalf("error: %s", res.Error)
	}
	if res.Value != "10" {
		t.Errorf("Value = %q, want 10", res.Value)
	}
}

func TestSheetInvalidAddressIsGuestError(t *testing.T) {
	rt := newTestRuntime(t)

	res := rt.Execute(context.Background(), Request{
		Source:   `sheet:get("totally wrong")`,
		Snapshot: testSnapshot(),
	})
	if res.OK() {
		t.Fatal("expected error for invalid address")
	}
	if !strings.Contains(res.Error, "invalid address") {
		t.Errorf("Error = %q", res.Error)
	}
}

func TestSheetOutOfBoundsCoordinates(t *testing.T) {
	rt := newTestRuntime(t)

	res := rt.Execute(context.Background(), Request{
		Source:   `sheet:get_value(0, 1)`,
		Snapshot: testSnapshot(),
	})
	if res.OK() {
		t.Fatal("expected error for coordinate 0")
	}
}

func TestSheetDimensions(t *testing.T) {
	rt := newTestRuntime(t)

	res := rt.Execute(context.Background(), Request{
		Source:   `return sheet:rows(), sheet:cols()`,
		Snapshot: testSnapshot(),
	})
	if res.Value != "3\t3" {
		t.Errorf("Value = %q, want 3\\t3", res.Value)
	}
}

func TestSheetSelection(t *testing.T) {
	rt := newTestRuntime(t)

	res := rt.Execute(context.Background(), Request{
		Source: `
			local s = sheet:selection()
			return s.start_row, s.start_col, s.end_row, s.end_col, s.range
		`,
		Snapshot:  testSnapshot(),
		Selection: sheet.Rect{StartRow: 1, StartCol: 1, EndRow: 9, EndCol: 3},
	})
	if !res.OK() {
		t.Fatalf("error: %s", res.Error)
	}
	if res.Value != "2\t2\t10\t4\tB2:D10" {
		t.Errorf("Value = %q, want 1-indexed selection", res.Value)
	}
}

func TestSheetRollback(t *testing.T) {
	rt := newTestRuntime(t)

	res := rt.Execute(context.Background(), Request{
		Source: `
			sheet:set_value(1, 1, 99)
			sheet:set_value(1, 2, 98)
			local n = sheet:rollback()
			print(n, sheet:get_value(1, 1))
			sheet:set_value(2, 1, 1)
		`,
		Snapshot: testSnapshot(),
	})
	if !res.OK() {
		t.Fatalf("error: %s", res.Error)
	}
	// Rollback discarded two ops; the read fell back to the snapshot.
	if res.Output[0] != "2\t10" {
		t.Errorf("Output[0] = %q", res.Output[0])
	}
	// Only the post-rollback write survives.
	if len(res.Ops) != 1 || res.Ops[0].Row != 1 || res.Ops[0].Col != 0 {
		t.Errorf("Ops = %+v", res.Ops)
	}
}

func TestSheetBeginCommitAccepted(t *testing.T) {
	rt := newTestRuntime(t)

	res := rt.Execute(context.Background(), Request{
		Source: `
			sheet:begin()
			sheet:set_value(1, 1, 1)
			sheet:commit()
		`,
		Snapshot: testSnapshot(),
	})
	if !res.OK() {
		t.Fatalf("error: %s", res.Error)
	}
	if len(res.Ops) != 1 {
		t.Errorf("Ops = %+v", res.Ops)
	}
}

func TestSheetRange(t *testing.T) {
	rt := newTestRuntime(t)

	res := rt.Execute(context.Background(), Request{
		Source: `
			local r = sheet:range("A1:B2")
			r:set_values({{1, 2}, {3, 4}})
			local v = r:values()
			print(r:address(), r:rows(), r:cols())
			return v[2][2]
		`,
		Snapshot: testSnapshot(),
	})
	if !res.OK() {
		t.Fatalf("error: %s", res.Error)
	}
	if res.Output[0] != "A1:B2\t2\t2" {
		t.Errorf("Output[0] = %q", res.Output[0])
	}
	if res.Value != "4" {
		t.Errorf("Value = %q, want overlay read 4", res.Value)
	}
	if len(res.Ops) != 4 {
		t.Errorf("len(Ops) = %d, want 4", len(res.Ops))
	}
}

func TestSheetStyle(t *testing.T) {
	rt := newTestRuntime(t)

	res := rt.Execute(context.Background(), Request{
		Source:   `sheet:style("A1:B1", styles.total)`,
		Snapshot: testSnapshot(),
	})
	if !res.OK() {
		t.Fatalf("error: %s", res.Error)
	}
	if len(res.Ops) != 1 {
		t.Fatalf("Ops = %+v", res.Ops)
	}
	op := res.Ops[0]
	if op.Kind != sheet.OpSetStyle || op.Style != sheet.StyleTotal || op.EndCol != 1 {
		t.Errorf("op = %+v", op)
	}
}

func TestSheetOpLimit(t *testing.T) {
	limits := DefaultLimits()
	limits.Ops = 5
	rt := newTestRuntimeWithLimits(t, limits)

	res := rt.Execute(context.Background(), Request{
		Source:   `for i = 1, 10 do sheet:set_value(i, 1, i) end`,
		Snapshot: testSnapshot(),
	})
	if res.OK() {
		t.Fatal("expected op limit error")
	}
	if !strings.Contains(res.Error, "operation limit") {
		t.Errorf("Error = %q", res.Error)
	}
}

func TestSheetAbsentWithoutSnapshot(t *testing.T) {
	rt := newTestRuntime(t)

	res := rt.Eval(`type(sheet)`)
	if res.Value != "nil" {
		t.Errorf("type(sheet) = %q, want nil", res.Value)
	}
	if len(res.Ops) != 0 || res.Mutations != 0 {
		t.Errorf("ops without bridge: %+v", res)
	}
}

func TestSheetDoesNotLeakAcrossEvaluations(t *testing.T) {
	rt := newTestRuntime(t)

	res := rt.Execute(context.Background(), Request{
		Source:   `sheet:set_value(1, 1, 1)`,
		Snapshot: testSnapshot(),
	})
	if !res.OK() {
		t.Fatalf("error: %s", res.Error)
	}

	// The capability vanishes for the next call that supplies no bridge.
	res = rt.Eval(`type(sheet) .. "/" .. type(styles)`)
	if res.Value != "nil/nil" {
		t.Errorf("leak check = %q, want nil/nil", res.Value)
	}
}

func TestStaleSheetHandleErrors(t *testing.T) {
	rt := newTestRuntime(t)

	res := rt.Execute(context.Background(), Request{
		Source:   `stashed = sheet`,
		Snapshot: testSnapshot(),
	})
	if !res.OK() {
		t.Fatalf("error: %s", res.Error)
	}
	res = rt.Eval(`stashed:get_value(1, 1)`)
	if res.OK() {
		t.Fatal("expected error through stale handle")
	}
	if !strings.Contains(res.Error, "no longer attached") {
		t.Errorf("Error = %q", res.Error)
	}
}

func TestErrorDiscardsNothingAtRuntimeLevel(t *testing.T) {
	rt := newTestRuntime(t)

	// The result still reports staged ops on failure; the caller is the
	// one who must not apply them.
	res := rt.Execute(context.Background(), Request{
		Source:   `sheet:set_value(1, 1, 1) error("late failure")`,
		Snapshot: testSnapshot(),
	})
	if res.OK() {
		t.Fatal("expected error")
	}
	if len(res.Ops) != 1 {
		t.Errorf("Ops = %+v, want staged op reported", res.Ops)
	}
}

func TestResultIDAssigned(t *testing.T) {
	rt := newTestRuntime(t)

	a, b := rt.Eval("1"), rt.Eval("2")
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("IDs = %q, %q", a.ID, b.ID)
	}
}
