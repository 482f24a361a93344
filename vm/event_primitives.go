package vm

// ---------------------------------------------------------------------------
// Event Primitives
// ---------------------------------------------------------------------------

func registerEventPrimitives(h *Handlers) {
	h.Command("event_broadcast", func(x *Invocation) BlockResult {
		x.ex.queueBroadcast(x.Input("BROADCAST_INPUT").AsString())
		return Continue
	})

	h.Command("event_broadcastandwait", func(x *Invocation) BlockResult {
		st := x.State()
		if !x.FromRepeat() || st.Phase != PhasePolling || st.Wait == nil {
			w := x.ex.broadcastAndWait(x.Thread(), x.Input("BROADCAST_INPUT").AsString())
			if x.Stopped() {
				// The sender received its own message and restarted.
				x.ex.waits.Remove(w)
				return Return
			}
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
		x.ex.waits.Remove(st.Wait)
		return x.Done()
	})

	// Menus that carry their choice in a field.
	h.Reporter("event_broadcast_menu", func(x *Invocation) Value {
		return FromString(x.Field("BROADCAST_OPTION"))
	})
	h.Reporter("event_touchingobjectmenu", func(x *Invocation) Value {
		return FromString(x.Field("TOUCHINGOBJECTMENU"))
	})
}
