package vm

import (
	"math"
	"strings"
)

// ---------------------------------------------------------------------------
// Looks Primitives
// ---------------------------------------------------------------------------

func registerLooksPrimitives(h *Handlers) {
	h.Command("looks_say", func(x *Invocation) BlockResult {
		x.ex.Say(x.Sprite(), x.Input("MESSAGE").AsString(), "say")
		return Continue
	})
	h.Command("looks_think", func(x *Invocation) BlockResult {
		x.ex.Say(x.Sprite(), x.Input("MESSAGE").AsString(), "think")
		return Continue
	})
	h.Command("looks_sayforsecs", func(x *Invocation) BlockResult {
		return sayForSecs(x, "say")
	})
	h.Command("looks_thinkforsecs", func(x *Invocation) BlockResult {
		return sayForSecs(x, "think")
	})

	h.Command("looks_switchcostumeto", func(x *Invocation) BlockResult {
		if sp := x.Sprite(); !sp.IsStage {
			selectCostume(x, sp, x.Input("COSTUME"))
		}
		return Continue
	})

	h.Command("looks_nextcostume", func(x *Invocation) BlockResult {
		if sp := x.Sprite(); !sp.IsStage {
			sp.SetCostume(sp.CurrentCostume + 1)
		}
		return Continue
	})

	h.Command("looks_switchbackdropto", func(x *Invocation) BlockResult {
		stage := x.ex.Stage()
		selectCostume(x, stage, x.Input("BACKDROP"))
		x.ex.queueHats("event_whenbackdropswitchesto", stage.CostumeName(), nil)
		return Continue
	})

	h.Command("looks_nextbackdrop", func(x *Invocation) BlockResult {
		stage := x.ex.Stage()
		stage.SetCostume(stage.CurrentCostume + 1)
		x.ex.queueHats("event_whenbackdropswitchesto", stage.CostumeName(), nil)
		return Continue
	})

	h.Command("looks_switchbackdroptoandwait", func(x *Invocation) BlockResult {
		st := x.State()
		if !x.FromRepeat() || st.Phase != PhasePolling || st.Wait == nil {
			stage := x.ex.Stage()
			selectCostume(x, stage, x.Input("BACKDROP"))
			name := stage.CostumeName()
			threads := x.ex.spawnHats("event_whenbackdropswitchesto", name, nil)
			if x.Stopped() {
				return Return
			}
			w := newBroadcastWait(name, x.Thread(), threads)
			if !w.Pending() {
				return Continue
			}
			st = x.State()
			st.Phase = PhasePolling
			st.Wait = w
			return x.Yield()
		}
		if st.Wait.Pending() {
			return Return
		}
		return x.Done()
	})

	h.Command("looks_changesizeby", func(x *Invocation) BlockResult {
		sp := x.Sprite()
		setSize(sp, sp.Size+x.Input("CHANGE").AsFloat())
		return Continue
	})

	h.Command("looks_setsizeto", func(x *Invocation) BlockResult {
		setSize(x.Sprite(), x.Input("SIZE").AsFloat())
		return Continue
	})

	h.Command("looks_changeeffectby", func(x *Invocation) BlockResult {
		sp := x.Sprite()
		effect := strings.ToLower(x.Field("EFFECT"))
		setEffect(sp, effect, sp.Effects[effect]+x.Input("CHANGE").AsFloat())
		return Continue
	})

	h.Command("looks_seteffectto", func(x *Invocation) BlockResult {
		setEffect(x.Sprite(), strings.ToLower(x.Field("EFFECT")), x.Input("VALUE").AsFloat())
		return Continue
	})

	h.Command("looks_cleargraphiceffects", func(x *Invocation) BlockResult {
		clear(x.Sprite().Effects)
		return Continue
	})

	h.Command("looks_show", func(x *Invocation) BlockResult {
		if sp := x.Sprite(); !sp.IsStage {
			sp.Visible = true
		}
		return Continue
	})

	h.Command("looks_hide", func(x *Invocation) BlockResult {
		if sp := x.Sprite(); !sp.IsStage {
			sp.Visible = false
		}
		return Continue
	})

	h.Command("looks_gotofrontback", func(x *Invocation) BlockResult {
		if sp := x.Sprite(); !sp.IsStage {
			delta := -len(x.ex.sprites)
			if x.Field("FRONT_BACK") == "front" {
				delta = len(x.ex.sprites)
			}
			x.ex.MoveLayer(sp, delta)
		}
		return Continue
	})

	h.Command("looks_goforwardbackwardlayers", func(x *Invocation) BlockResult {
		if sp := x.Sprite(); !sp.IsStage {
			n := int(x.Input("NUM").AsInt())
			if x.Field("FORWARD_BACKWARD") == "backward" {
				n = -n
			}
			x.ex.MoveLayer(sp, n)
		}
		return Continue
	})

	h.Reporter("looks_costumenumbername", func(x *Invocation) Value {
		return costumeReport(x.Sprite(), x.Field("NUMBER_NAME"))
	})

	h.Reporter("looks_backdropnumbername", func(x *Invocation) Value {
		return costumeReport(x.ex.Stage(), x.Field("NUMBER_NAME"))
	})

	h.Reporter("looks_size", func(x *Invocation) Value {
		return FromFloat(math.Round(x.Sprite().Size))
	})
}

// Say shows a speech or thought bubble. Empty text clears the bubble.
func (e *Executor) Say(sp *Sprite, text, style string) {
	if sp.IsStage {
		return
	}
	if text == "" {
		e.clearBubble(sp)
		return
	}
	sp.Bubble = text
	sp.BubbleStyle = style
	sp.bubbleSeq++
	if e.Host.Speech != nil {
		e.Host.Speech.ShowSpeech(sp, text, style)
	}
}

// sayForSecs shows a bubble, waits, then clears it unless another bubble
// replaced it in the meantime.
func sayForSecs(x *Invocation, style string) BlockResult {
	sp := x.Sprite()
	st := x.State()
	if !x.FromRepeat() || st.Phase != PhaseArmed {
		x.ex.Say(sp, x.Input("MESSAGE").AsString(), style)
		st.Phase = PhaseArmed
		st.Started = x.Now()
		st.Duration = seconds(x.Input("SECS").AsFloat())
		st.Counter = int64(sp.bubbleSeq)
		return x.Yield()
	}
	if x.Now().Sub(st.Started) < st.Duration {
		return Return
	}
	if uint64(st.Counter) == sp.bubbleSeq {
		x.ex.clearBubble(sp)
	}
	return x.Done()
}

// selectCostume applies a costume menu value: a costume name, a 1-based
// number, or one of the next/previous/random keywords.
func selectCostume(x *Invocation, sp *Sprite, v Value) {
	if v.IsNumber() {
		sp.SetCostume(int(v.AsInt()) - 1)
		return
	}
	name := v.AsString()
	if i := sp.CostumeIndex(name); i >= 0 {
		sp.SetCostume(i)
		return
	}
	switch name {
	case "next costume", "next backdrop":
		sp.SetCostume(sp.CurrentCostume + 1)
	case "previous costume", "previous backdrop":
		sp.SetCostume(sp.CurrentCostume - 1)
	case "random costume", "random backdrop":
		if n := len(sp.Costumes); n > 1 {
			sp.SetCostume(sp.CurrentCostume + 1 + x.Rand(n-1))
		}
	default:
		if v.IsNumeric() {
			sp.SetCostume(int(v.AsInt()) - 1)
		}
	}
}

func costumeReport(sp *Sprite, which string) Value {
	if which == "name" {
		return FromString(sp.CostumeName())
	}
	return FromInt(int64(sp.CurrentCostume + 1))
}

func setSize(sp *Sprite, size float64) {
	if sp.IsStage || size != size {
		return
	}
	sp.Size = clamp(size, 0, 54000)
}

// setEffect stores a graphic effect value, clamping the bounded ones.
func setEffect(sp *Sprite, effect string, v float64) {
	switch effect {
	case "ghost":
		v = clamp(v, 0, 100)
	case "brightness":
		v = clamp(v, -100, 100)
	case "color", "fisheye", "whirl", "pixelate", "mosaic":
	default:
		return
	}
	sp.Effects[effect] = v
}
