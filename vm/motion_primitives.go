package vm

import "math"

// Stage dimensions in Scratch units, centered on the origin.
const (
	StageWidth  = 480
	StageHeight = 360
)

// ---------------------------------------------------------------------------
// Motion Primitives
// ---------------------------------------------------------------------------

func registerMotionPrimitives(h *Handlers) {
	motion := func(op string, fn func(x *Invocation, sp *Sprite)) {
		h.Command(op, func(x *Invocation) BlockResult {
			if sp := x.Sprite(); !sp.IsStage {
				fn(x, sp)
			}
			return Continue
		})
	}

	motion("motion_movesteps", func(x *Invocation, sp *Sprite) {
		steps := x.Input("STEPS").AsFloat()
		rad := (90 - sp.Direction) * math.Pi / 180
		x.ex.MoveTo(sp, sp.X+steps*math.Cos(rad), sp.Y+steps*math.Sin(rad))
	})

	motion("motion_turnright", func(x *Invocation, sp *Sprite) {
		sp.SetDirection(sp.Direction + x.Input("DEGREES").AsFloat())
	})

	motion("motion_turnleft", func(x *Invocation, sp *Sprite) {
		sp.SetDirection(sp.Direction - x.Input("DEGREES").AsFloat())
	})

	motion("motion_goto", func(x *Invocation, sp *Sprite) {
		if tx, ty, ok := x.ex.targetXY(sp, x.Input("TO").AsString()); ok {
			x.ex.MoveTo(sp, tx, ty)
		}
	})

	motion("motion_gotoxy", func(x *Invocation, sp *Sprite) {
		x.ex.MoveTo(sp, x.Input("X").AsFloat(), x.Input("Y").AsFloat())
	})

	h.Command("motion_glidesecstoxy", func(x *Invocation) BlockResult {
		return glide(x, func() (float64, float64, bool) {
			return x.Input("X").AsFloat(), x.Input("Y").AsFloat(), true
		})
	})

	h.Command("motion_glideto", func(x *Invocation) BlockResult {
		return glide(x, func() (float64, float64, bool) {
			return x.ex.targetXY(x.Sprite(), x.Input("TO").AsString())
		})
	})

	motion("motion_pointindirection", func(x *Invocation, sp *Sprite) {
		sp.SetDirection(x.Input("DIRECTION").AsFloat())
	})

	motion("motion_pointtowards", func(x *Invocation, sp *Sprite) {
		target := x.Input("TOWARDS").AsString()
		if target == "_random_" {
			sp.SetDirection(float64(x.Rand(360) - 179))
			return
		}
		tx, ty, ok := x.ex.targetXY(sp, target)
		if !ok {
			return
		}
		dx, dy := tx-sp.X, ty-sp.Y
		if dx == 0 && dy == 0 {
			return
		}
		sp.SetDirection(90 - math.Atan2(dy, dx)*180/math.Pi)
	})

	motion("motion_changexby", func(x *Invocation, sp *Sprite) {
		x.ex.MoveTo(sp, sp.X+x.Input("DX").AsFloat(), sp.Y)
	})

	motion("motion_setx", func(x *Invocation, sp *Sprite) {
		x.ex.MoveTo(sp, x.Input("X").AsFloat(), sp.Y)
	})

	motion("motion_changeyby", func(x *Invocation, sp *Sprite) {
		x.ex.MoveTo(sp, sp.X, sp.Y+x.Input("DY").AsFloat())
	})

	motion("motion_sety", func(x *Invocation, sp *Sprite) {
		x.ex.MoveTo(sp, sp.X, x.Input("Y").AsFloat())
	})

	motion("motion_ifonedgebounce", func(x *Invocation, sp *Sprite) {
		bounce(x.ex, sp)
	})

	motion("motion_setrotationstyle", func(x *Invocation, sp *Sprite) {
		switch style := x.Field("STYLE"); style {
		case RotateAllAround, RotateLeftRight, RotateNone:
			sp.RotationStyle = style
		}
	})

	h.Reporter("motion_xposition", func(x *Invocation) Value {
		return FromFloat(limitPrecision(x.Sprite().X))
	})
	h.Reporter("motion_yposition", func(x *Invocation) Value {
		return FromFloat(limitPrecision(x.Sprite().Y))
	})
	h.Reporter("motion_direction", func(x *Invocation) Value {
		return FromFloat(x.Sprite().Direction)
	})
}

// glide moves the sprite linearly toward a target over SECS seconds.
// target is evaluated once, when the glide starts.
func glide(x *Invocation, target func() (float64, float64, bool)) BlockResult {
	sp := x.Sprite()
	if sp.IsStage {
		return Continue
	}
	st := x.State()
	if !x.FromRepeat() || st.Phase != PhaseArmed {
		tx, ty, ok := target()
		if !ok {
			return Continue
		}
		st.Phase = PhaseArmed
		st.Started = x.Now()
		st.Duration = seconds(x.Input("SECS").AsFloat())
		st.GlideStartX, st.GlideStartY = sp.X, sp.Y
		st.GlideEndX, st.GlideEndY = tx, ty
		return x.Yield()
	}
	elapsed := x.Now().Sub(st.Started)
	if elapsed < st.Duration {
		frac := float64(elapsed) / float64(st.Duration)
		x.ex.MoveTo(sp,
			st.GlideStartX+frac*(st.GlideEndX-st.GlideStartX),
			st.GlideStartY+frac*(st.GlideEndY-st.GlideStartY))
		return Return
	}
	x.ex.MoveTo(sp, st.GlideEndX, st.GlideEndY)
	return x.Done()
}

// MoveTo sets a sprite's position, drawing a pen line when the pen is down.
func (e *Executor) MoveTo(sp *Sprite, x, y float64) {
	if x != x || y != y {
		return
	}
	ox, oy := sp.X, sp.Y
	sp.X, sp.Y = x, y
	if sp.Pen.Down && e.Host.Pen != nil {
		e.Host.Pen.DrawLine(ox, oy, x, y, sp.Pen)
	}
}

// targetXY resolves a motion menu target: "_mouse_", "_random_" or a
// sprite name.
func (e *Executor) targetXY(sp *Sprite, target string) (float64, float64, bool) {
	switch target {
	case "_mouse_":
		if e.Host.Input == nil {
			return 0, 0, true
		}
		return e.Host.Input.MouseX(), e.Host.Input.MouseY(), true
	case "_random_":
		return float64(e.rand.Intn(StageWidth+1) - StageWidth/2),
			float64(e.rand.Intn(StageHeight+1) - StageHeight/2), true
	}
	other := e.SpriteByName(target)
	if other == nil {
		return 0, 0, false
	}
	return other.X, other.Y, true
}

// bounce reflects the sprite's direction off the stage edge it has passed
// and pulls it back inside. Sprites are treated as points.
func bounce(e *Executor, sp *Sprite) {
	const halfW, halfH = StageWidth / 2, StageHeight / 2
	rad := (90 - sp.Direction) * math.Pi / 180
	dx, dy := math.Cos(rad), math.Sin(rad)
	x, y := sp.X, sp.Y
	switch {
	case x < -halfW:
		dx, x = math.Abs(dx), -halfW
	case x > halfW:
		dx, x = -math.Abs(dx), halfW
	case y < -halfH:
		dy, y = math.Abs(dy), -halfH
	case y > halfH:
		dy, y = -math.Abs(dy), halfH
	default:
		return
	}
	sp.SetDirection(90 - math.Atan2(dy, dx)*180/math.Pi)
	e.MoveTo(sp, x, y)
}

// limitPrecision trims float noise from reported coordinates.
func limitPrecision(f float64) float64 {
	r := math.Round(f)
	if math.Abs(f-r) < 1e-9 {
		return r
	}
	return math.Round(f*1e8) / 1e8
}
