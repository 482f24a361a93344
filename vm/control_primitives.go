package vm

import (
	"math"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Control Primitives
// ---------------------------------------------------------------------------

func registerControlPrimitives(h *Handlers) {
	h.Command("control_wait", func(x *Invocation) BlockResult {
		st := x.State()
		if !x.FromRepeat() || st.Phase != PhaseArmed {
			st.Phase = PhaseArmed
			st.Started = x.Now()
			st.Duration = seconds(x.Input("DURATION").AsFloat())
			return x.Yield()
		}
		if x.Now().Sub(st.Started) < st.Duration {
			return Return
		}
		return x.Done()
	})

	h.Command("control_wait_until", func(x *Invocation) BlockResult {
		if x.Input("CONDITION").AsBool() {
			return x.Done()
		}
		x.State().Phase = PhasePolling
		return x.Yield()
	})

	h.Command("control_repeat", func(x *Invocation) BlockResult {
		if !x.FromRepeat() {
			x.State().Remaining = roundCount(x.Input("TIMES").AsFloat())
		}
		return runLoop(x, func(st *BlockState) bool {
			if st.Remaining <= 0 {
				return false
			}
			st.Remaining--
			return true
		})
	})

	h.Command("control_forever", func(x *Invocation) BlockResult {
		return runLoop(x, func(*BlockState) bool { return true })
	})

	h.Command("control_repeat_until", func(x *Invocation) BlockResult {
		return runLoop(x, func(*BlockState) bool { return !x.Input("CONDITION").AsBool() })
	})

	h.Command("control_while", func(x *Invocation) BlockResult {
		return runLoop(x, func(*BlockState) bool { return x.Input("CONDITION").AsBool() })
	})

	h.Command("control_for_each", func(x *Invocation) BlockResult {
		return runLoop(x, func(st *BlockState) bool {
			if float64(st.Counter) >= x.Input("VALUE").AsFloat() {
				return false
			}
			st.Counter++
			x.ex.SetVariable(x.Sprite(), x.FieldID("VARIABLE"), x.Field("VARIABLE"), FromInt(st.Counter))
			return true
		})
	})

	h.Command("control_if", func(x *Invocation) BlockResult {
		return runBranch(x, func() string {
			if x.Input("CONDITION").AsBool() {
				return "SUBSTACK"
			}
			return ""
		})
	})

	h.Command("control_if_else", func(x *Invocation) BlockResult {
		return runBranch(x, func() string {
			if x.Input("CONDITION").AsBool() {
				return "SUBSTACK"
			}
			return "SUBSTACK2"
		})
	})

	h.Command("control_stop", func(x *Invocation) BlockResult {
		switch strings.ToLower(x.Field("STOP_OPTION")) {
		case "all":
			x.ex.StopAll()
			return Return
		case "other scripts in sprite", "other scripts in stage":
			x.ex.StopSprite(x.Sprite(), x.Thread())
			return Continue
		default:
			// Inside a procedure this returns from the procedure.
			x.Frame().stop()
			return Return
		}
	})

	h.Command("control_create_clone_of", func(x *Invocation) BlockResult {
		target := x.Input("CLONE_OPTION").AsString()
		src := x.Sprite()
		if target != "_myself_" {
			src = x.ex.SpriteByName(target)
		}
		if src == nil {
			x.ex.warnOnce("clone:"+target, "vm: cannot clone unknown sprite %q", target)
			return Continue
		}
		x.ex.CreateClone(src)
		return Continue
	})

	h.Command("control_delete_this_clone", func(x *Invocation) BlockResult {
		sp := x.Sprite()
		if !sp.Clone {
			return Continue
		}
		x.ex.DeleteClone(sp)
		return Return
	})

	h.Reporter("control_get_counter", func(x *Invocation) Value { return FromInt(x.ex.counter) })
	h.Command("control_incr_counter", func(x *Invocation) BlockResult {
		x.ex.counter++
		return Continue
	})
	h.Command("control_clear_counter", func(x *Invocation) BlockResult {
		x.ex.counter = 0
		return Continue
	})
}

// runLoop drives a loop container. next is consulted at each iteration
// boundary and reports whether another iteration runs. Every iteration
// ends with a yield, so a loop body runs at most once per step outside of
// warp frames.
func runLoop(x *Invocation, next func(st *BlockState) bool) BlockResult {
	st := x.State()
	if x.FromRepeat() && st.Phase == PhaseSubstack {
		st.Phase = PhaseLooping
		return Return
	}
	if !next(st) {
		return x.Done()
	}
	x.Yield()
	res := x.RunSubstack("SUBSTACK")
	if x.Stopped() {
		return Return
	}
	if res == Return {
		st.Phase = PhaseSubstack
	} else {
		st.Phase = PhaseLooping
	}
	return Return
}

// runBranch drives if and if-else. pick names the substack to run, or ""
// for none.
func runBranch(x *Invocation, pick func() string) BlockResult {
	st := x.State()
	if x.FromRepeat() && st.Phase == PhaseSubstack {
		return x.Done()
	}
	name := pick()
	if name == "" || x.Substack(name) == NoBlock {
		return Continue
	}
	x.Yield()
	res := x.RunSubstack(name)
	if x.Stopped() {
		return Return
	}
	if res == Return {
		st.Phase = PhaseSubstack
		return Return
	}
	return x.Done()
}

// seconds converts a block duration to a time.Duration. Negative and NaN
// durations are zero.
func seconds(f float64) time.Duration {
	if f != f || f <= 0 {
		return 0
	}
	if f > float64(math.MaxInt64)/float64(time.Second) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(f * float64(time.Second))
}

// roundCount rounds half up, as repeat counts do.
func roundCount(f float64) int64 {
	if f != f {
		return 0
	}
	f = math.Floor(f + 0.5)
	if f > 1e15 {
		return 1e15
	}
	if f < 0 {
		return 0
	}
	return int64(f)
}
