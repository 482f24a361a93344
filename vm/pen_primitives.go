package vm

import "math"

// ---------------------------------------------------------------------------
// Pen Primitives
// ---------------------------------------------------------------------------

func registerPenPrimitives(h *Handlers) {
	h.Command("pen_clear", func(x *Invocation) BlockResult {
		if p := x.ex.Host.Pen; p != nil {
			p.Clear()
		}
		return Continue
	})

	h.Command("pen_stamp", func(x *Invocation) BlockResult {
		if p := x.ex.Host.Pen; p != nil && !x.Sprite().IsStage {
			p.Stamp(x.Sprite())
		}
		return Continue
	})

	h.Command("pen_penDown", func(x *Invocation) BlockResult {
		sp := x.Sprite()
		if sp.IsStage {
			return Continue
		}
		sp.Pen.Down = true
		if p := x.ex.Host.Pen; p != nil {
			p.DrawLine(sp.X, sp.Y, sp.X, sp.Y, sp.Pen)
		}
		return Continue
	})

	h.Command("pen_penUp", func(x *Invocation) BlockResult {
		x.Sprite().Pen.Down = false
		return Continue
	})

	h.Command("pen_setPenColorToColor", func(x *Invocation) BlockResult {
		x.Sprite().Pen.Color = x.Input("COLOR").AsColor()
		return Continue
	})

	h.Command("pen_changePenColorParamBy", func(x *Invocation) BlockResult {
		pen := &x.Sprite().Pen
		param := x.Input("COLOR_PARAM").AsString()
		setPenParam(pen, param, penParam(pen, param)+x.Input("VALUE").AsFloat())
		return Continue
	})

	h.Command("pen_setPenColorParamTo", func(x *Invocation) BlockResult {
		setPenParam(&x.Sprite().Pen, x.Input("COLOR_PARAM").AsString(), x.Input("VALUE").AsFloat())
		return Continue
	})

	h.Command("pen_changePenSizeBy", func(x *Invocation) BlockResult {
		pen := &x.Sprite().Pen
		pen.Size = clamp(pen.Size+x.Input("SIZE").AsFloat(), 1, 1200)
		return Continue
	})

	h.Command("pen_setPenSizeTo", func(x *Invocation) BlockResult {
		x.Sprite().Pen.Size = clamp(x.Input("SIZE").AsFloat(), 1, 1200)
		return Continue
	})

	h.Reporter("pen_menu_colorParam", func(x *Invocation) Value {
		return FromString(x.Field("colorParam"))
	})
}

func penParam(pen *PenState, param string) float64 {
	switch param {
	case "color":
		return pen.Color.Hue
	case "saturation":
		return pen.Color.Saturation
	case "brightness":
		return pen.Color.Brightness
	case "transparency":
		return pen.Color.Transparency
	}
	return 0
}

// setPenParam writes one pen color component. Hue wraps around; the other
// components clamp to 0..100.
func setPenParam(pen *PenState, param string, v float64) {
	switch param {
	case "color":
		v = math.Mod(v, 100)
		if v < 0 {
			v += 100
		}
		pen.Color.Hue = v
	case "saturation":
		pen.Color.Saturation = clamp(v, 0, 100)
	case "brightness":
		pen.Color.Brightness = clamp(v, 0, 100)
	case "transparency":
		pen.Color.Transparency = clamp(v, 0, 100)
	}
}
