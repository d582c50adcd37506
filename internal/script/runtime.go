package script

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"
	"go.opentelemetry.io/otel/trace"

	"gridscript/internal/monitor"
	"gridscript/internal/sheet"
)

// Request describes one evaluation. Snapshot is the document state the
// script reads through; a nil Snapshot means an empty document. Cancel
// is an optional host-owned flag checked by the governor; setting it
// mid-run aborts the script at the next governor check.
type Request struct {
	Source    string
	Snapshot  sheet.Reader
	Selection sheet.Rect
	Cancel    *atomic.Bool
}

// Runtime hosts a single sandboxed Lua state and evaluates scripts
// against document snapshots. Globals persist across evaluations on the
// same Runtime, which is what an interactive session wants; use one
// Runtime per session. A Runtime is not safe for concurrent use.
type Runtime struct {
	ls       *lua.LState
	out      *outputBuffer
	limits   Limits
	metrics  *monitor.Metrics
	tracer   *monitor.Tracer
	detector *monitor.ProbeDetector
}

// New creates a runtime with the given limits. metrics may be nil.
func New(limits Limits, metrics *monitor.Metrics) (*Runtime, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	out := newOutputBuffer(limits.OutputLines)
	ls := newState(out)
	sheet.RegisterTypes(ls)
	return &Runtime{
		ls:       ls,
		out:      out,
		limits:   limits,
		metrics:  metrics,
		tracer:   monitor.NewTracer(),
		detector: monitor.NewProbeDetector(),
	}, nil
}

// Close releases the underlying Lua state.
func (r *Runtime) Close() {
	r.ls.Close()
}

// Eval evaluates source against an empty document with default
// bindings. Convenience for tests and simple callers.
func (r *Runtime) Eval(source string) *Result {
	return r.Execute(context.Background(), Request{Source: source})
}

// Execute runs one script to completion (or abort) and returns its
// result. The result always carries the staged operations; callers
// decide whether to apply them, and should discard them unless the
// result is OK.
func (r *Runtime) Execute(ctx context.Context, req Request) *Result {
	evalID := uuid.New().String()

	logger := log.With().
		Str("eval_id", evalID).
		Logger()

	ctx, span := r.tracer.StartSpan(ctx, "evaluate", monitor.AttrEvalID.String(evalID))
	defer span.End()

	if r.metrics != nil {
		r.metrics.ActiveEvaluations.Inc()
		defer r.metrics.ActiveEvaluations.Dec()
		r.metrics.ScriptSizeBytes.Observe(float64(len(req.Source)))
	}

	res := &Result{ID: evalID}

	// A cancellation that arrives before the script starts still wins,
	// even over scripts too short to reach a governor check.
	if ctx.Err() != nil || (req.Cancel != nil && req.Cancel.Load()) {
		res.Cancelled = true
		res.Error = ErrCancelled.Error()
		r.record(res, span)
		return res
	}

	source := strings.TrimSpace(req.Source)
	if source == "" {
		r.record(res, span)
		return res
	}

	// Enforcement is the sandbox's job; detections are a signal only.
	for _, det := range r.detector.AnalyzeScript(source) {
		if r.metrics != nil {
			r.metrics.RecordProbe(det.Pattern)
		}
	}

	// The document capability exists only for calls that supply a
	// snapshot, and only for the duration of this call.
	var sink *sheet.Sink
	if req.Snapshot != nil {
		sink = sheet.NewSink(req.Snapshot, req.Selection, r.limits.Ops)
		sheet.Bind(r.ls, sink)
		defer func() {
			sheet.Unbind(r.ls)
			sink.Close()
		}()
	}

	r.out.reset()

	fn, isExpr, err := r.compile(source)
	if err != nil {
		res.Error = formatScriptError(err)
		logger.Debug().Str("error", res.Error).Msg("compile failed")
		r.record(res, span)
		return res
	}

	gov := newGovernor(r.limits, req.Cancel)
	r.ls.SetContext(gov)
	start := time.Now()

	r.ls.Push(fn)
	callErr := r.ls.PCall(0, lua.MultRet, nil)
	res.Duration = time.Since(start)
	r.ls.RemoveContext()

	var rets []lua.LValue
	if callErr == nil {
		for i := 1; i <= r.ls.GetTop(); i++ {
			rets = append(rets, r.ls.Get(i))
		}
	}
	r.ls.SetTop(0)

	// A tripped governor classifies the result even if the script
	// swallowed the raised error before terminating.
	switch govErr := gov.Err(); {
	case IsCancelled(govErr):
		res.Cancelled = true
		res.Error = govErr.Error()
	case IsTimeout(govErr):
		res.TimedOut = true
		res.Error = govErr.Error()
	case IsInstructionLimit(govErr):
		res.InstructionLimitExceeded = true
		res.Error = govErr.Error()
	case callErr != nil:
		res.Error = formatScriptError(callErr)
	default:
		res.Value, res.HasValue = formatReturn(rets, isExpr)
	}

	res.Output = r.out.drain()
	res.OutputTruncated = r.out.truncated()
	if sink != nil {
		res.Ops = sink.TakeOps()
		res.Mutations = sink.Mutations()
	}

	r.record(res, span)

	logger.Info().
		Str("status", res.Status()).
		Int("ops", len(res.Ops)).
		Int("mutations", res.Mutations).
		Dur("duration", res.Duration).
		Msg("evaluation completed")

	return res
}

func (r *Runtime) record(res *Result, span trace.Span) {
	span.SetAttributes(
		monitor.AttrStatus.String(res.Status()),
		monitor.AttrOps.Int(len(res.Ops)),
		monitor.AttrMutations.Int(res.Mutations),
		monitor.AttrDurationMS.Int64(res.Duration.Milliseconds()),
	)
	if r.metrics == nil {
		return
	}
	status := res.Status()
	r.metrics.RecordEvaluation(status, res.Duration.Seconds(), len(res.Ops), len(res.Output))
	if res.Cancelled || res.TimedOut || res.InstructionLimitExceeded {
		r.metrics.RecordAbort(status)
	}
}

// compile probes the source as an expression first, so `1 + 2` and bare
// function calls produce a displayable value; anything that does not
// parse as an expression is compiled as a statement chunk.
func (r *Runtime) compile(source string) (*lua.LFunction, bool, error) {
	fn, err := r.ls.LoadString("return (" + source + "\n)")
	if err == nil {
		return fn, true, nil
	}
	fn, err = r.ls.LoadString(source)
	if err != nil {
		return nil, false, err
	}
	return fn, false, nil
}

// formatReturn renders the script's return values for display. An
// expression always shows its value, nil included; a statement chunk
// only shows values when it explicitly returned something non-nil.
func formatReturn(rets []lua.LValue, isExpr bool) (string, bool) {
	if len(rets) == 0 {
		return "", false
	}
	if !isExpr {
		allNil := true
		for _, lv := range rets {
			if lv != lua.LNil {
				allNil = false
				break
			}
		}
		if allNil {
			return "", false
		}
	}
	parts := make([]string, len(rets))
	for i, lv := range rets {
		parts[i] = formatLValue(lv)
	}
	return strings.Join(parts, "\t"), true
}

// formatLValue renders a Lua value the way tostring would. LNumber
// prints integers without a decimal point; tables and functions render
// as their type-and-address form.
func formatLValue(lv lua.LValue) string {
	return lv.String()
}

// formatScriptError extracts the guest-facing message from a Lua error,
// stripping the interpreter's internal chunk name.
func formatScriptError(err error) string {
	msg := err.Error()
	if apiErr, ok := err.(*lua.ApiError); ok {
		msg = apiErr.Object.String()
	}
	msg = strings.ReplaceAll(msg, "<string> ", "")
	msg = strings.ReplaceAll(msg, "<string>", "")
	return strings.TrimSpace(msg)
}
