package vm

import (
	"fmt"
	"strings"
)

// Debug proccodes recognized by procedures_call. Their first argument is
// written to the log instead of running a body.
const (
	debugLogProc   = "\u200b\u200blog\u200b\u200b %s"
	debugWarnProc  = "\u200b\u200bwarn\u200b\u200b %s"
	debugErrorProc = "\u200b\u200berror\u200b\u200b %s"
)

// ---------------------------------------------------------------------------
// Procedure Primitives
// ---------------------------------------------------------------------------

func registerProcedurePrimitives(h *Handlers) {
	h.Command("procedures_call", callProcedure)

	// Definitions and prototypes are entered only through calls.
	h.Command("procedures_definition", func(*Invocation) BlockResult { return Continue })
	h.Command("procedures_prototype", func(*Invocation) BlockResult { return Continue })

	h.Reporter("argument_reporter_string_number", func(x *Invocation) Value {
		if v, ok := x.Frame().Args[x.Field("VALUE")]; ok {
			return v
		}
		return FromInt(0)
	})

	h.Reporter("argument_reporter_boolean", func(x *Invocation) Value {
		if v, ok := x.Frame().Args[x.Field("VALUE")]; ok {
			return v
		}
		return FromInt(0)
	})
}

// callProcedure runs a custom block. The body executes in a child frame
// with its own repeat stack and argument bindings. While the body has
// queued blocks the call stays on the caller's repeat stack and steps the
// child frame once per step; warp bodies are drained synchronously.
func callProcedure(x *Invocation) BlockResult {
	ex := x.ex
	st := x.State()
	if x.FromRepeat() && st.Phase == PhaseCalling && st.Callee != nil {
		callee := st.Callee
		if callee.Warp {
			ex.runRepeatsWithoutRefresh(callee)
		} else {
			ex.stepFrame(callee)
		}
		if x.Stopped() {
			return Return
		}
		if callee.HasActiveRepeats() {
			return Return
		}
		return x.Done()
	}

	m := x.Block().Mutation
	if m == nil {
		return Continue
	}
	if debugProc(x, m) {
		return Continue
	}
	sp := x.Sprite()
	proc := sp.Procedure(m.ProcCode)
	if proc == nil {
		ex.warnOnce("proc:"+sp.Name+":"+m.ProcCode, "vm: sprite %q has no procedure %q", sp.Name, m.ProcCode)
		return Continue
	}

	fr := x.Frame()
	if fr.Depth()+1 > ex.maxCallDepth {
		err := fmt.Errorf("%w: %q in %s at depth %d", ErrRecursionLimit, proc.ProcCode, describe(x.Thread()), fr.Depth())
		ex.log.Errorf("%s", err)
		ex.stats.Faults++
		ex.stopThread(x.Thread())
		return Return
	}

	if ex.profiler != nil {
		ex.profiler.RecordProcedure(sp.Name, proc.ProcCode)
	}

	callee := newFrame(x.Thread(), fr)
	callee.Procedure = proc
	callee.Warp = fr.Warp || proc.Warp
	callee.Args = make(map[string]Value, len(proc.ArgumentNames))
	for i, name := range proc.ArgumentNames {
		if i >= len(proc.ArgumentIDs) {
			break
		}
		if _, bound := x.Block().Inputs[proc.ArgumentIDs[i]]; bound {
			callee.Args[name] = x.Input(proc.ArgumentIDs[i])
		} else if i < len(proc.Defaults) {
			callee.Args[name] = FromString(proc.Defaults[i])
		} else {
			callee.Args[name] = FromString("")
		}
	}

	ex.runBlock(callee, proc.Definition.Next, false)
	if callee.Warp && callee.HasActiveRepeats() && !x.Stopped() {
		ex.runRepeatsWithoutRefresh(callee)
	}
	if x.Stopped() {
		return Return
	}
	if !callee.HasActiveRepeats() {
		return Continue
	}
	st = x.State()
	st.Phase = PhaseCalling
	st.Callee = callee
	return x.Yield()
}

// debugProc handles the logging proccodes. It reports whether m was one.
func debugProc(x *Invocation, m *Mutation) bool {
	var level string
	switch m.ProcCode {
	case debugLogProc:
		level = "log"
	case debugWarnProc:
		level = "warn"
	case debugErrorProc:
		level = "error"
	default:
		return false
	}
	msg := ""
	if len(m.ArgumentIDs) > 0 {
		msg = x.Input(m.ArgumentIDs[0]).AsString()
	}
	who := strings.TrimSpace(x.Sprite().Name)
	switch level {
	case "log":
		x.ex.log.Infof("%s: %s", who, msg)
	case "warn":
		x.ex.log.Warningf("%s: %s", who, msg)
	default:
		x.ex.log.Errorf("%s: %s", who, msg)
	}
	return true
}
