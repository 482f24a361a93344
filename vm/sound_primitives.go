package vm

import "strings"

// ---------------------------------------------------------------------------
// Sound Primitives
// ---------------------------------------------------------------------------

func registerSoundPrimitives(h *Handlers) {
	h.Command("sound_play", func(x *Invocation) BlockResult {
		playSound(x)
		return Continue
	})

	h.Command("sound_playuntildone", func(x *Invocation) BlockResult {
		st := x.State()
		if !x.FromRepeat() || st.Phase != PhasePlaying {
			snd := playSound(x)
			if snd == nil || x.ex.Host.Sound == nil {
				return Continue
			}
			st.Phase = PhasePlaying
			st.Sound = snd
			return x.Yield()
		}
		if x.ex.Host.Sound.IsPlaying(x.Sprite(), st.Sound) {
			return Return
		}
		return x.Done()
	})

	h.Command("sound_stopallsounds", func(x *Invocation) BlockResult {
		if x.ex.Host.Sound != nil {
			x.ex.Host.Sound.StopAll()
		}
		return Continue
	})

	h.Command("sound_changevolumeby", func(x *Invocation) BlockResult {
		sp := x.Sprite()
		sp.Volume = clamp(sp.Volume+x.Input("VOLUME").AsFloat(), 0, 100)
		return Continue
	})

	h.Command("sound_setvolumeto", func(x *Invocation) BlockResult {
		x.Sprite().Volume = clamp(x.Input("VOLUME").AsFloat(), 0, 100)
		return Continue
	})

	h.Reporter("sound_volume", func(x *Invocation) Value {
		return FromFloat(x.Sprite().Volume)
	})

	h.Command("sound_changeeffectby", func(x *Invocation) BlockResult {
		sp := x.Sprite()
		effect := strings.ToLower(x.Field("EFFECT"))
		setSoundEffect(sp, effect, sp.SoundEffects[effect]+x.Input("VALUE").AsFloat())
		return Continue
	})

	h.Command("sound_seteffectto", func(x *Invocation) BlockResult {
		setSoundEffect(x.Sprite(), strings.ToLower(x.Field("EFFECT")), x.Input("VALUE").AsFloat())
		return Continue
	})

	h.Command("sound_cleareffects", func(x *Invocation) BlockResult {
		clear(x.Sprite().SoundEffects)
		return Continue
	})
}

// playSound starts the sound named by the SOUND_MENU input. A missing
// sound is logged and skipped.
func playSound(x *Invocation) *Sound {
	sp := x.Sprite()
	key := x.Input("SOUND_MENU")
	snd := sp.FindSound(key)
	if snd == nil {
		x.ex.warnOnce("sound:"+sp.Name+":"+key.AsString(), "vm: sprite %q has no sound %q", sp.Name, key.AsString())
		return nil
	}
	if x.ex.Host.Sound == nil {
		return snd
	}
	if err := x.ex.Host.Sound.Play(sp, snd); err != nil {
		x.ex.log.Warningf("vm: playing %q: %s", snd.Name, err)
		return nil
	}
	return snd
}

func setSoundEffect(sp *Sprite, effect string, v float64) {
	switch effect {
	case "pitch":
		v = clamp(v, -360, 360)
	case "pan":
		v = clamp(v, -100, 100)
	default:
		return
	}
	sp.SoundEffects[effect] = v
}
