package vm

import (
	"math"
	"strings"
	"time"
)

var epoch2000 = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// ---------------------------------------------------------------------------
// Sensing Primitives
// ---------------------------------------------------------------------------

func registerSensingPrimitives(h *Handlers) {
	h.Reporter("sensing_touchingobject", func(x *Invocation) Value {
		c := x.ex.Host.Collider
		if c == nil {
			return FromBool(false)
		}
		return FromBool(c.Touching(x.Sprite(), x.Input("TOUCHINGOBJECTMENU").AsString()))
	})

	h.Command("sensing_askandwait", func(x *Invocation) BlockResult {
		asker := x.ex.Host.Asker
		if asker == nil {
			x.ex.answer = ""
			return Continue
		}
		st := x.State()
		if !x.FromRepeat() || st.Phase != PhasePolling {
			asker.Ask(x.Sprite(), x.Input("QUESTION").AsString())
			st.Phase = PhasePolling
			return x.Yield()
		}
		answer, done := asker.Answer()
		if !done {
			return Return
		}
		x.ex.answer = answer
		return x.Done()
	})

	h.Reporter("sensing_answer", func(x *Invocation) Value {
		return FromString(x.ex.answer)
	})

	h.Reporter("sensing_keypressed", func(x *Invocation) Value {
		in := x.ex.Host.Input
		if in == nil {
			return FromBool(false)
		}
		return FromBool(in.KeyPressed(x.Input("KEY_OPTION").AsString()))
	})

	h.Reporter("sensing_mousedown", func(x *Invocation) Value {
		in := x.ex.Host.Input
		return FromBool(in != nil && in.MouseDown())
	})

	h.Reporter("sensing_mousex", func(x *Invocation) Value {
		if in := x.ex.Host.Input; in != nil {
			return FromFloat(in.MouseX())
		}
		return FromInt(0)
	})

	h.Reporter("sensing_mousey", func(x *Invocation) Value {
		if in := x.ex.Host.Input; in != nil {
			return FromFloat(in.MouseY())
		}
		return FromInt(0)
	})

	h.Reporter("sensing_loudness", func(x *Invocation) Value {
		if in := x.ex.Host.Input; in != nil {
			return FromFloat(in.Loudness())
		}
		return FromInt(-1)
	})

	h.Reporter("sensing_timer", func(x *Invocation) Value {
		return FromFloat(x.ex.Timer())
	})

	h.Command("sensing_resettimer", func(x *Invocation) BlockResult {
		x.ex.ResetTimer()
		return Continue
	})

	h.Reporter("sensing_of", func(x *Invocation) Value {
		return x.ex.propertyOf(x.Input("OBJECT").AsString(), x.Field("PROPERTY"))
	})

	h.Reporter("sensing_current", func(x *Invocation) Value {
		now := x.Now().Local()
		switch strings.ToUpper(x.Field("CURRENTMENU")) {
		case "YEAR":
			return FromInt(int64(now.Year()))
		case "MONTH":
			return FromInt(int64(now.Month()))
		case "DATE":
			return FromInt(int64(now.Day()))
		case "DAYOFWEEK":
			return FromInt(int64(now.Weekday()) + 1)
		case "HOUR":
			return FromInt(int64(now.Hour()))
		case "MINUTE":
			return FromInt(int64(now.Minute()))
		case "SECOND":
			return FromInt(int64(now.Second()))
		}
		return FromInt(0)
	})

	h.Reporter("sensing_dayssince2000", func(x *Invocation) Value {
		return FromFloat(x.Now().Sub(epoch2000).Hours() / 24)
	})

	h.Reporter("sensing_username", func(x *Invocation) Value {
		return FromString(x.ex.Host.Username)
	})

	h.Reporter("sensing_distanceto", func(x *Invocation) Value {
		sp := x.Sprite()
		if sp.IsStage {
			return FromInt(10000)
		}
		target := x.Input("DISTANCETOMENU").AsString()
		if target == "_random_" {
			return FromInt(10000)
		}
		tx, ty, ok := x.ex.targetXY(sp, target)
		if !ok {
			return FromInt(10000)
		}
		return FromFloat(math.Hypot(tx-sp.X, ty-sp.Y))
	})

	h.Command("sensing_setdragmode", func(x *Invocation) BlockResult {
		x.Sprite().Draggable = x.Field("DRAG_MODE") == "draggable"
		return Continue
	})
}

// propertyOf implements the "of" block: a motion or looks attribute of a
// sprite or the stage, or one of its variables by name.
func (e *Executor) propertyOf(object, property string) Value {
	if object == "_stage_" {
		st := e.stage
		switch property {
		case "background #", "backdrop #":
			return FromInt(int64(st.CurrentCostume + 1))
		case "backdrop name":
			return FromString(st.CostumeName())
		case "volume":
			return FromFloat(st.Volume)
		}
		if v := st.Local.Variable("", property); v != nil {
			return v.Value
		}
		return FromInt(0)
	}
	sp := e.SpriteByName(object)
	if sp == nil {
		return FromInt(0)
	}
	switch property {
	case "x position":
		return FromFloat(limitPrecision(sp.X))
	case "y position":
		return FromFloat(limitPrecision(sp.Y))
	case "direction":
		return FromFloat(sp.Direction)
	case "costume #":
		return FromInt(int64(sp.CurrentCostume + 1))
	case "costume name":
		return FromString(sp.CostumeName())
	case "size":
		return FromFloat(math.Round(sp.Size))
	case "volume":
		return FromFloat(sp.Volume)
	}
	if v := sp.Local.Variable("", property); v != nil {
		return v.Value
	}
	return FromInt(0)
}
