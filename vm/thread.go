package vm

import "time"

// ---------------------------------------------------------------------------
// BlockState: per-invocation interpreter state
// ---------------------------------------------------------------------------

// Phase is the position of a multi-frame block in its state machine.
type Phase uint8

const (
	// PhaseIdle: not started, or reset by a fresh invocation.
	PhaseIdle Phase = iota
	// PhaseArmed: a timer or counter is running (wait, glide, repeat).
	PhaseArmed
	// PhaseSubstack: a container is waiting for its substack to finish.
	PhaseSubstack
	// PhaseLooping: a loop finished an iteration and resumes next step.
	PhaseLooping
	// PhasePolling: waiting on an external condition (ask, broadcast receivers).
	PhasePolling
	// PhasePlaying: waiting for a sound to finish.
	PhasePlaying
	// PhaseCalling: a procedure call is waiting for its callee frame.
	PhaseCalling
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseArmed:
		return "armed"
	case PhaseSubstack:
		return "substack"
	case PhaseLooping:
		return "looping"
	case PhasePolling:
		return "polling"
	case PhasePlaying:
		return "playing"
	case PhaseCalling:
		return "calling"
	}
	return "unknown"
}

// BlockState is the transient state of one block inside one Frame.
type BlockState struct {
	Phase Phase

	// Remaining counts loop iterations left (repeat, for each).
	Remaining int64
	Counter   int64

	// Started and Duration drive waits, glides and timed bubbles.
	Started  time.Time
	Duration time.Duration

	GlideStartX, GlideStartY float64
	GlideEndX, GlideEndY     float64

	// Callee is the procedure frame a call block is waiting on.
	Callee *Frame
	// Wait tracks receivers for broadcast-and-wait style blocks.
	Wait *BroadcastWait

	Sound  *Sound
	Bubble string
}

// ---------------------------------------------------------------------------
// Frame: one activation of a chain
// ---------------------------------------------------------------------------

// Frame is one activation of a block chain: the hat script itself, or a
// procedure body invoked by a call block. It owns the chain's LIFO repeat
// stack and the states of the blocks running inside it.
type Frame struct {
	Thread *ScriptThread
	Parent *Frame

	// Procedure is nil for the root frame.
	Procedure *Procedure
	Args      map[string]Value
	Warp      bool

	repeat  []BlockID
	states  map[BlockID]*BlockState
	stopped bool
}

func newFrame(th *ScriptThread, parent *Frame) *Frame {
	return &Frame{
		Thread: th,
		Parent: parent,
		states: make(map[BlockID]*BlockState),
	}
}

// Depth returns the number of procedure frames above the root.
func (f *Frame) Depth() int {
	d := 0
	for p := f.Parent; p != nil; p = p.Parent {
		d++
	}
	return d
}

// HasActiveRepeats reports whether any block in the frame is still
// waiting to be revisited.
func (f *Frame) HasActiveRepeats() bool {
	return !f.stopped && len(f.repeat) > 0
}

// RepeatStack returns a copy of the frame's repeat stack, bottom first.
func (f *Frame) RepeatStack() []BlockID {
	return append([]BlockID(nil), f.repeat...)
}

func (f *Frame) top() BlockID {
	if len(f.repeat) == 0 {
		return NoBlock
	}
	return f.repeat[len(f.repeat)-1]
}

func (f *Frame) push(id BlockID) {
	if f.stopped {
		return
	}
	for _, r := range f.repeat {
		if r == id {
			return
		}
	}
	f.repeat = append(f.repeat, id)
}

func (f *Frame) remove(id BlockID) {
	for i := len(f.repeat) - 1; i >= 0; i-- {
		if f.repeat[i] == id {
			f.repeat = append(f.repeat[:i], f.repeat[i+1:]...)
			return
		}
	}
}

func (f *Frame) state(id BlockID) *BlockState {
	st, ok := f.states[id]
	if !ok {
		st = &BlockState{}
		f.states[id] = st
	}
	return st
}

func (f *Frame) peekState(id BlockID) *BlockState {
	return f.states[id]
}

func (f *Frame) reset(id BlockID) {
	delete(f.states, id)
	f.remove(id)
}

// stop clears the repeat stack and every block state so nothing in the
// frame can resume. Callee frames of waiting call blocks are stopped too.
func (f *Frame) stop() {
	if f.stopped {
		return
	}
	f.stopped = true
	for _, st := range f.states {
		if st.Callee != nil {
			st.Callee.stop()
		}
		st.Phase = PhaseIdle
	}
	f.repeat = nil
	f.states = make(map[BlockID]*BlockState)
}

// ---------------------------------------------------------------------------
// ScriptThread
// ---------------------------------------------------------------------------

// ThreadID identifies a thread within an executor.
type ThreadID uint64

// ScriptThread is one running instance of a hat script.
type ScriptThread struct {
	ID     ThreadID
	Sprite *Sprite
	Hat    *Block

	root     *Frame
	finished bool
	stopped  bool

	// run counts restarts; a broadcast wait only tracks the run it started.
	run uint64

	// fresh is set when the thread was started without running its first
	// slice. blocked is set when a polling block yielded in this step.
	fresh   bool
	blocked bool
	stepped uint64

	startFrame uint64
	warpStart  time.Time
	warpDepth  int
}

// Root returns the hat script's frame.
func (t *ScriptThread) Root() *Frame { return t.root }

// Finished reports whether the thread has run to completion or was stopped.
func (t *ScriptThread) Finished() bool { return t.finished }

// Active reports whether the thread still has work queued.
func (t *ScriptThread) Active() bool {
	if t.finished || t.stopped || t.Sprite == nil || t.Sprite.ToDelete {
		return false
	}
	return t.fresh || t.root.HasActiveRepeats()
}

// CallDepth returns the depth of the deepest live procedure frame.
func (t *ScriptThread) CallDepth() int {
	return frameDepth(t.root)
}

func frameDepth(f *Frame) int {
	best := 0
	for _, st := range f.states {
		if st.Callee != nil && !st.Callee.stopped {
			if d := 1 + frameDepth(st.Callee); d > best {
				best = d
			}
		}
	}
	return best
}

// stop halts the thread: every frame is cleared and no block may queue
// itself again.
func (t *ScriptThread) stop() {
	t.stopped = true
	t.finished = true
	t.fresh = false
	t.root.stop()
}

// restart discards the current run and installs a fresh root frame.
func (t *ScriptThread) restart(frame uint64) {
	t.root.stop()
	t.root = newFrame(t, nil)
	t.stopped = false
	t.finished = false
	t.startFrame = frame
	t.warpDepth = 0
	t.run++
}
