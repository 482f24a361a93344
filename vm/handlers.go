package vm

import "time"

// ---------------------------------------------------------------------------
// Handler table
// ---------------------------------------------------------------------------

// CommandFunc implements a stack block. It returns Return to yield.
type CommandFunc func(x *Invocation) BlockResult

// ReporterFunc implements a reporter or boolean block.
type ReporterFunc func(x *Invocation) Value

// Handlers maps opcodes to their implementations.
type Handlers struct {
	commands  map[string]CommandFunc
	reporters map[string]ReporterFunc
}

// NewHandlers creates an empty table.
func NewHandlers() *Handlers {
	return &Handlers{
		commands:  make(map[string]CommandFunc),
		reporters: make(map[string]ReporterFunc),
	}
}

// DefaultHandlers returns a table with every built-in opcode registered.
func DefaultHandlers() *Handlers {
	h := NewHandlers()
	registerControlPrimitives(h)
	registerEventPrimitives(h)
	registerDataPrimitives(h)
	registerOperatorPrimitives(h)
	registerMotionPrimitives(h)
	registerLooksPrimitives(h)
	registerSoundPrimitives(h)
	registerSensingPrimitives(h)
	registerPenPrimitives(h)
	registerProcedurePrimitives(h)
	return h
}

// Command registers a stack block handler.
func (h *Handlers) Command(opcode string, fn CommandFunc) { h.commands[opcode] = fn }

// Reporter registers a reporter handler.
func (h *Handlers) Reporter(opcode string, fn ReporterFunc) { h.reporters[opcode] = fn }

// Has reports whether opcode has any handler.
func (h *Handlers) Has(opcode string) bool {
	return h.commands[opcode] != nil || h.reporters[opcode] != nil
}

// Len returns the number of registered opcodes.
func (h *Handlers) Len() int { return len(h.commands) + len(h.reporters) }

func (h *Handlers) command(opcode string) CommandFunc   { return h.commands[opcode] }
func (h *Handlers) reporter(opcode string) ReporterFunc { return h.reporters[opcode] }

// ---------------------------------------------------------------------------
// Hats
// ---------------------------------------------------------------------------

type hatInfo struct {
	// field is the field matched against a trigger, if any.
	field string
	// restart means a new trigger restarts a running thread.
	restart bool
}

var hatTable = map[string]hatInfo{
	"event_whenflagclicked":        {restart: true},
	"event_whenkeypressed":         {field: "KEY_OPTION"},
	"event_whenthisspriteclicked":  {restart: true},
	"event_whenstageclicked":       {restart: true},
	"event_whenbackdropswitchesto": {field: "BACKDROP", restart: true},
	"event_whengreaterthan":        {},
	"event_whenbroadcastreceived":  {field: "BROADCAST_OPTION", restart: true},
	"control_start_as_clone":       {restart: true},
	"event_whentouchingobject":     {},
}

// IsHat reports whether opcode starts a script.
func IsHat(opcode string) bool {
	_, ok := hatTable[opcode]
	return ok
}

func hatRestarts(opcode string) bool { return hatTable[opcode].restart }

func hatField(opcode string) string { return hatTable[opcode].field }

// ---------------------------------------------------------------------------
// Invocation
// ---------------------------------------------------------------------------

// Invocation is the context handed to a handler for one execution of one
// block.
type Invocation struct {
	ex         *Executor
	frame      *Frame
	block      *Block
	fromRepeat bool
}

// Executor returns the running executor.
func (x *Invocation) Executor() *Executor { return x.ex }

// Thread returns the thread executing the block.
func (x *Invocation) Thread() *ScriptThread { return x.frame.Thread }

// Frame returns the activation the block runs in.
func (x *Invocation) Frame() *Frame { return x.frame }

// Sprite returns the sprite that owns the thread.
func (x *Invocation) Sprite() *Sprite { return x.frame.Thread.Sprite }

// Block returns the executing block.
func (x *Invocation) Block() *Block { return x.block }

// FromRepeat reports whether the block is being resumed from the repeat
// stack rather than reached by the chain walk.
func (x *Invocation) FromRepeat() bool { return x.fromRepeat }

// Now reads the executor clock.
func (x *Invocation) Now() time.Time { return x.ex.clock.Now() }

// Input evaluates the named input. Unbound inputs yield the empty Value.
func (x *Invocation) Input(name string) Value {
	return x.ex.evalInput(x.frame, x.block, name)
}

// Substack returns the block id bound to a substack input.
func (x *Invocation) Substack(name string) BlockID {
	in, ok := x.block.Inputs[name]
	if !ok || in.Kind != InputBlock {
		return NoBlock
	}
	return in.Block
}

// Field returns the named field's value.
func (x *Invocation) Field(name string) string { return x.block.Field(name) }

// FieldID returns the id attached to the named field.
func (x *Invocation) FieldID(name string) string { return x.block.Fields[name].ID }

// State returns this block's state in the current frame.
func (x *Invocation) State() *BlockState { return x.frame.state(x.block.ID) }

// Yield queues the block for another step and returns Return.
func (x *Invocation) Yield() BlockResult {
	x.ex.AddToRepeatQueue(x.frame, x.block.ID)
	return Return
}

// Done removes the block from the repeat stack and returns Continue.
func (x *Invocation) Done() BlockResult {
	x.ex.RemoveFromRepeatQueue(x.frame, x.block.ID)
	delete(x.frame.states, x.block.ID)
	return Continue
}

// RunSubstack walks the chain bound to a substack input.
func (x *Invocation) RunSubstack(name string) BlockResult {
	id := x.Substack(name)
	if id == NoBlock {
		return Continue
	}
	return x.ex.runBlock(x.frame, id, false)
}

// Stopped reports whether the frame or thread was stopped while the block
// was running.
func (x *Invocation) Stopped() bool {
	return x.frame.stopped || x.frame.Thread.stopped
}

// Warp reports whether the frame runs without screen refresh.
func (x *Invocation) Warp() bool { return x.frame.Warp }

// Rand returns an integer in [0, n).
func (x *Invocation) Rand(n int) int {
	if n <= 0 {
		return 0
	}
	return x.ex.rand.Intn(n)
}
