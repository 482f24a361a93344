package vm

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/tliron/commonlog"
)

// BlockResult is what a command handler reports back to the chain walker.
type BlockResult uint8

const (
	// Continue advances to the next block in the chain.
	Continue BlockResult = iota
	// Return stops the walk for this step: the block is not finished.
	Return
)

func (r BlockResult) String() string {
	if r == Return {
		return "return"
	}
	return "continue"
}

// ErrRecursionLimit is logged when a procedure call would exceed the
// configured call depth. The offending thread is stopped.
var ErrRecursionLimit = errors.New("vm: procedure recursion limit exceeded")

// Defaults for executor limits.
const (
	DefaultMaxCallDepth = 512
	DefaultWarpBudget   = 500 * time.Millisecond
	DefaultMaxClones    = 300
)

var log = commonlog.GetLogger("sb3vm.vm")

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// Option configures an Executor.
type Option func(*Executor)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c Clock) Option { return func(e *Executor) { e.clock = c } }

// WithRand seeds the source used by random blocks.
func WithRand(r *rand.Rand) Option { return func(e *Executor) { e.rand = r } }

// WithHost installs the host collaborators.
func WithHost(h Host) Option { return func(e *Executor) { e.Host = h } }

// WithLogger replaces the package logger.
func WithLogger(l commonlog.Logger) Option { return func(e *Executor) { e.log = l } }

// WithHandlers replaces the opcode table.
func WithHandlers(h *Handlers) Option { return func(e *Executor) { e.handlers = h } }

// WithMaxCallDepth sets the procedure recursion ceiling.
func WithMaxCallDepth(n int) Option { return func(e *Executor) { e.maxCallDepth = n } }

// WithWarpBudget bounds how long a warp frame may run inside one step.
// Zero disables the bound.
func WithWarpBudget(d time.Duration) Option { return func(e *Executor) { e.warpBudget = d } }

// WithMaxClones caps the number of live clones.
func WithMaxClones(n int) Option { return func(e *Executor) { e.maxClones = n } }

// WithMaxListLength sets the item cap for lists installed afterwards.
func WithMaxListLength(n int) Option { return func(e *Executor) { e.maxListLength = n } }

// ---------------------------------------------------------------------------
// Executor
// ---------------------------------------------------------------------------

// Stats are cumulative executor counters.
type Stats struct {
	Frames      uint64
	BlocksRun   uint64 // blocks executed during the last frame
	TotalBlocks uint64
	Threads     int
	Clones      int
	Faults      int
}

type hatTrigger struct {
	opcode string
	match  string
	sprite *Sprite // nil means every sprite
}

type edgeKey struct {
	sprite string
	block  BlockID
}

// Executor is the block scheduler. It owns the sprites, the global scope,
// the broadcast queue and every running ScriptThread, and advances them in
// lock-step, one RunThreads call per frame.
type Executor struct {
	Host Host

	sprites []*Sprite
	stage   *Sprite
	global  *Scope

	handlers *Handlers
	clock    Clock
	rand     *rand.Rand
	log      commonlog.Logger

	maxCallDepth  int
	warpBudget    time.Duration
	maxClones     int
	maxListLength int

	frame    uint64
	threadID ThreadID
	clones   int
	counter  int64

	timerStart time.Time
	answer     string

	broadcasts []string
	waits      *BroadcastRegistry
	pending    []hatTrigger
	edges      map[edgeKey]bool

	warned   map[string]bool
	stats    Stats
	profiler *Profiler
}

// NewExecutor creates an executor with an empty stage.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		clock:         SystemClock{},
		log:           log,
		maxCallDepth:  DefaultMaxCallDepth,
		warpBudget:    DefaultWarpBudget,
		maxClones:     DefaultMaxClones,
		maxListLength: MaxListLength,
		waits:         NewBroadcastRegistry(),
		edges:         make(map[edgeKey]bool),
		warned:        make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.handlers == nil {
		e.handlers = DefaultHandlers()
	}
	if e.rand == nil {
		e.rand = rand.New(rand.NewSource(e.clock.Now().UnixNano()))
	}
	e.timerStart = e.clock.Now()
	e.SetStage(NewStage())
	return e
}

// SetStage installs the stage. Its scope becomes the global scope.
func (e *Executor) SetStage(stage *Sprite) {
	stage.IsStage = true
	if e.stage != nil {
		for i, sp := range e.sprites {
			if sp == e.stage {
				e.sprites = append(e.sprites[:i], e.sprites[i+1:]...)
				break
			}
		}
	}
	e.stage = stage
	e.global = stage.Local
	e.applyListCap(stage)
	e.sprites = append([]*Sprite{stage}, e.sprites...)
}

// AddSprite appends a sprite to the execution order.
func (e *Executor) AddSprite(sp *Sprite) {
	e.applyListCap(sp)
	if sp.Layer == 0 {
		sp.Layer = len(e.sprites)
	}
	e.sprites = append(e.sprites, sp)
}

func (e *Executor) applyListCap(sp *Sprite) {
	if e.maxListLength == MaxListLength {
		return
	}
	for _, l := range sp.Local.Lists {
		if l.Cap == 0 {
			l.Cap = e.maxListLength
		}
	}
}

// Stage returns the stage sprite.
func (e *Executor) Stage() *Sprite { return e.stage }

// Global returns the global scope owned by the stage.
func (e *Executor) Global() *Scope { return e.global }

// Sprites returns every live sprite in execution order, stage first.
func (e *Executor) Sprites() []*Sprite { return e.sprites }

// SpriteByName returns the original (non-clone) sprite called name.
func (e *Executor) SpriteByName(name string) *Sprite {
	for _, sp := range e.sprites {
		if !sp.Clone && !sp.IsStage && sp.Name == name {
			return sp
		}
	}
	return nil
}

// Clock returns the executor clock.
func (e *Executor) Clock() Clock { return e.clock }

// Handlers returns the opcode table.
func (e *Executor) Handlers() *Handlers { return e.handlers }

// Stats returns a snapshot of the executor counters.
func (e *Executor) Stats() Stats {
	s := e.stats
	s.Threads = 0
	for _, sp := range e.sprites {
		for _, th := range sp.threads {
			if !th.finished {
				s.Threads++
			}
		}
	}
	s.Clones = e.clones
	return s
}

// Timer returns the seconds elapsed since the timer was last reset.
func (e *Executor) Timer() float64 {
	return e.clock.Now().Sub(e.timerStart).Seconds()
}

// ResetTimer zeroes the sensing timer.
func (e *Executor) ResetTimer() { e.timerStart = e.clock.Now() }

// Answer returns the last answer given to "ask and wait".
func (e *Executor) Answer() string { return e.answer }

// ---------------------------------------------------------------------------
// Frame loop
// ---------------------------------------------------------------------------

// RunThreads advances the project by one frame: every existing thread
// takes one step, edge and queued hats start, broadcasts are drained, and
// deleted clones and finished threads are swept.
func (e *Executor) RunThreads() {
	e.frame++
	e.stats.Frames++
	before := e.stats.TotalBlocks

	e.stepAll()
	e.checkEdgeHats()
	e.startPending()
	e.RunBroadcasts()
	e.sweep()

	e.stats.BlocksRun = e.stats.TotalBlocks - before
}

// Idle reports whether no thread is running and nothing is queued.
func (e *Executor) Idle() bool {
	if len(e.broadcasts) > 0 || len(e.pending) > 0 {
		return false
	}
	for _, sp := range e.sprites {
		for _, th := range sp.threads {
			if !th.finished {
				return false
			}
		}
	}
	return true
}

func (e *Executor) stepAll() {
	sprites := append([]*Sprite(nil), e.sprites...)
	for _, sp := range sprites {
		if sp.ToDelete {
			continue
		}
		threads := append([]*ScriptThread(nil), sp.threads...)
		for _, th := range threads {
			if th.finished || th.stepped == e.frame || (th.startFrame == e.frame && !th.fresh) {
				continue
			}
			e.stepThread(th)
			if sp.ToDelete {
				break
			}
		}
	}
	e.stepFresh(sprites)
}

// stepFresh runs the first slice of threads spawned during this pass on
// sprites the pass had already visited. A thread steps at most once per
// frame; anything spawned here waits for the next frame.
func (e *Executor) stepFresh(sprites []*Sprite) {
	for _, sp := range sprites {
		if sp.ToDelete {
			continue
		}
		threads := append([]*ScriptThread(nil), sp.threads...)
		for _, th := range threads {
			if th.fresh && !th.finished && th.stepped != e.frame {
				e.stepThread(th)
				if sp.ToDelete {
					break
				}
			}
		}
	}
}

func (e *Executor) stepThread(th *ScriptThread) {
	th.stepped = e.frame
	th.blocked = false
	if th.fresh {
		th.fresh = false
		e.runBlock(th.root, th.Hat.Next, false)
	} else if th.Active() {
		e.stepFrame(th.root)
	}
	if !th.Active() {
		e.finish(th)
	}
}

// stepFrame re-invokes the top of the frame's repeat stack. When that
// block finishes and the walk after it completes, an enclosing container
// waiting on its substack is resumed in the same step.
func (e *Executor) stepFrame(fr *Frame) {
	for fr.HasActiveRepeats() && !fr.Thread.stopped {
		res := e.runBlock(fr, fr.top(), true)
		if res == Return || fr.stopped {
			return
		}
		next := fr.top()
		if next == NoBlock {
			return
		}
		if st := fr.peekState(next); st == nil || st.Phase != PhaseSubstack {
			return
		}
	}
}

// runRepeatsWithoutRefresh drains a warp frame synchronously. The drain
// stops early once the thread has spent the warp budget, and the remaining
// entries continue on the next frame.
func (e *Executor) runRepeatsWithoutRefresh(fr *Frame) {
	th := fr.Thread
	if th.warpDepth == 0 {
		th.warpStart = e.clock.Now()
	}
	th.warpDepth++
	defer func() { th.warpDepth-- }()

	for fr.HasActiveRepeats() && !th.stopped {
		if e.warpBudget > 0 && e.clock.Now().Sub(th.warpStart) >= e.warpBudget {
			return
		}
		e.stepFrame(fr)
		// A polling block waits on other threads or the host, neither of
		// which can move during the drain.
		if th.blocked {
			return
		}
	}
}

// RunBlock walks the chain starting at id inside fr. The first block is
// invoked with fromRepeat; the rest are fresh invocations. The walk stops
// at the first block that returns Return.
func (e *Executor) RunBlock(fr *Frame, id BlockID, fromRepeat bool) BlockResult {
	return e.runBlock(fr, id, fromRepeat)
}

func (e *Executor) runBlock(fr *Frame, id BlockID, fromRepeat bool) BlockResult {
	sp := fr.Thread.Sprite
	if sp == nil || sp.ToDelete {
		return Return
	}
	limit := sp.Blocks.Len() + 1
	for steps := 0; id != NoBlock; steps++ {
		if steps > limit {
			e.warnOnce("cycle:"+sp.Name, "vm: block chain in %q loops back on itself", sp.Name)
			return Continue
		}
		b := sp.Blocks.Get(id)
		if b == nil {
			return Continue
		}
		res := e.executeBlock(fr, b, fromRepeat)
		fromRepeat = false
		if res == Return || fr.stopped || fr.Thread.stopped || sp.ToDelete {
			return Return
		}
		id = b.Next
	}
	return Continue
}

func (e *Executor) executeBlock(fr *Frame, b *Block, fromRepeat bool) BlockResult {
	e.stats.TotalBlocks++
	if e.profiler != nil {
		e.profiler.RecordOpcode(b.Opcode)
	}
	if !fromRepeat {
		fr.reset(b.ID)
	}
	fn := e.handlers.command(b.Opcode)
	if fn == nil {
		if b.Opcode != "" && !IsHat(b.Opcode) && e.handlers.reporter(b.Opcode) == nil {
			e.warnOnce("op:"+b.Opcode, "vm: unknown opcode %q", b.Opcode)
		}
		return Continue
	}
	x := Invocation{ex: e, frame: fr, block: b, fromRepeat: fromRepeat}
	res := fn(&x)
	if res == Return {
		if st := fr.peekState(b.ID); st != nil && st.Phase == PhasePolling {
			fr.Thread.blocked = true
		}
	}
	return res
}

// evalInput evaluates the named input of b in frame fr.
func (e *Executor) evalInput(fr *Frame, b *Block, name string) Value {
	in, ok := b.Inputs[name]
	if !ok {
		return Value{}
	}
	sp := fr.Thread.Sprite
	switch in.Kind {
	case InputLiteral:
		return in.Literal
	case InputBlock:
		return e.evalReporter(fr, in.Block)
	case InputVariable:
		return e.VariableValue(sp, in.RefID, in.RefName)
	case InputList:
		if l := e.LookupList(sp, in.RefID, in.RefName); l != nil {
			return FromString(l.Contents())
		}
		return Value{}
	case InputBroadcast:
		return FromString(in.RefName)
	}
	return Value{}
}

func (e *Executor) evalReporter(fr *Frame, id BlockID) Value {
	sp := fr.Thread.Sprite
	if sp == nil {
		return Value{}
	}
	b := sp.Blocks.Get(id)
	if b == nil {
		return Value{}
	}
	fn := e.handlers.reporter(b.Opcode)
	if fn == nil {
		if len(b.Fields) == 1 {
			for _, f := range b.Fields {
				return FromString(f.Value)
			}
		}
		if e.handlers.command(b.Opcode) == nil {
			e.warnOnce("op:"+b.Opcode, "vm: unknown reporter %q", b.Opcode)
		}
		return Value{}
	}
	x := Invocation{ex: e, frame: fr, block: b}
	return fn(&x)
}

func (e *Executor) warnOnce(key, format string, args ...any) {
	if e.warned[key] {
		return
	}
	e.warned[key] = true
	e.log.Warningf(format, args...)
}

// ---------------------------------------------------------------------------
// Repeat queue
// ---------------------------------------------------------------------------

// AddToRepeatQueue marks block id in fr for re-invocation on a later step.
// A block already queued keeps its position.
func (e *Executor) AddToRepeatQueue(fr *Frame, id BlockID) {
	if fr.stopped || fr.Thread.stopped {
		return
	}
	fr.push(id)
}

// RemoveFromRepeatQueue drops block id from fr's repeat stack.
func (e *Executor) RemoveFromRepeatQueue(fr *Frame, id BlockID) {
	fr.remove(id)
}

// HasActiveRepeats reports whether fr still has queued blocks.
func (e *Executor) HasActiveRepeats(fr *Frame) bool {
	return fr.HasActiveRepeats()
}

// ---------------------------------------------------------------------------
// Threads
// ---------------------------------------------------------------------------

// StartThread starts (or restarts) the thread for hat on sp and runs its
// first slice immediately. It returns nil when the hat does not restart and
// a thread for it is already running.
func (e *Executor) StartThread(sp *Sprite, hat *Block) *ScriptThread {
	th := e.spawnThread(sp, hat)
	if th == nil {
		return nil
	}
	th.fresh = false
	th.blocked = false
	e.runBlock(th.root, hat.Next, false)
	if !th.Active() {
		e.finish(th)
	}
	return th
}

// spawnThread starts (or restarts) the thread for hat on sp without running
// it. The first slice runs on the thread's next step.
func (e *Executor) spawnThread(sp *Sprite, hat *Block) *ScriptThread {
	if sp == nil || sp.ToDelete || hat == nil {
		return nil
	}
	th, running := sp.byHat[hat.ID]
	if running && !th.finished {
		if !hatRestarts(hat.Opcode) {
			return nil
		}
		e.log.Debugf("vm: restarting %s thread %d on %q", hat.Opcode, th.ID, sp.Name)
		th.restart(e.frame)
		e.waits.forgetSender(th)
	} else {
		e.threadID++
		th = &ScriptThread{ID: e.threadID, Sprite: sp, Hat: hat, startFrame: e.frame}
		th.root = newFrame(th, nil)
		sp.byHat[hat.ID] = th
		sp.threads = append(sp.threads, th)
	}
	th.fresh = true
	return th
}

// StartHats starts every hat with opcode whose match field equals match
// (case-insensitive; "" matches all). sp limits the search to one sprite
// when non-nil. The started threads are returned.
func (e *Executor) StartHats(opcode, match string, sp *Sprite) []*ScriptThread {
	return e.eachHat(opcode, match, sp, e.StartThread)
}

// spawnHats is StartHats for callers running inside a thread: the matching
// threads are started or restarted but not run, so a script can never
// re-enter itself on the Go stack.
func (e *Executor) spawnHats(opcode, match string, sp *Sprite) []*ScriptThread {
	return e.eachHat(opcode, match, sp, e.spawnThread)
}

func (e *Executor) eachHat(opcode, match string, sp *Sprite, start func(*Sprite, *Block) *ScriptThread) []*ScriptThread {
	var started []*ScriptThread
	sprites := e.sprites
	if sp != nil {
		sprites = []*Sprite{sp}
	} else {
		sprites = append([]*Sprite(nil), sprites...)
	}
	field := hatField(opcode)
	for _, s := range sprites {
		if s.ToDelete {
			continue
		}
		for _, id := range s.Hats {
			b := s.Blocks.Get(id)
			if b == nil || b.Opcode != opcode {
				continue
			}
			if field != "" && match != "" && !hatMatches(opcode, b.Field(field), match) {
				continue
			}
			if th := start(s, b); th != nil {
				started = append(started, th)
			}
		}
	}
	return started
}

func hatMatches(opcode, field, match string) bool {
	if opcode == "event_whenkeypressed" && strings.EqualFold(field, "any") {
		return true
	}
	return strings.EqualFold(field, match)
}

func (e *Executor) queueHats(opcode, match string, sp *Sprite) {
	e.pending = append(e.pending, hatTrigger{opcode: opcode, match: match, sprite: sp})
}

func (e *Executor) startPending() {
	for len(e.pending) > 0 {
		t := e.pending[0]
		e.pending = e.pending[1:]
		if t.sprite != nil && t.sprite.ToDelete {
			continue
		}
		e.StartHats(t.opcode, t.match, t.sprite)
	}
}

func (e *Executor) finish(th *ScriptThread) {
	th.finished = true
	if cur, ok := th.Sprite.byHat[th.Hat.ID]; ok && cur == th {
		delete(th.Sprite.byHat, th.Hat.ID)
	}
}

// stopThread halts th and forgets any broadcast waits it owns.
func (e *Executor) stopThread(th *ScriptThread) {
	th.stop()
	e.finish(th)
	e.waits.forgetSender(th)
}

// StopSprite stops every thread of sp except keep.
func (e *Executor) StopSprite(sp *Sprite, keep *ScriptThread) {
	for _, th := range sp.threads {
		if th != keep && !th.finished {
			e.stopThread(th)
		}
	}
}

// StopAll stops every thread, deletes every clone, stops sounds and clears
// queued broadcasts and hats.
func (e *Executor) StopAll() {
	for _, sp := range e.sprites {
		e.StopSprite(sp, nil)
		if sp.Clone && !sp.ToDelete {
			e.deleteClone(sp)
		}
		e.clearBubble(sp)
	}
	e.broadcasts = nil
	e.pending = nil
	e.waits.reset()
	if e.Host.Sound != nil {
		e.Host.Sound.StopAll()
	}
}

func (e *Executor) sweep() {
	live := e.sprites[:0]
	for _, sp := range e.sprites {
		if sp.ToDelete {
			continue
		}
		threads := sp.threads[:0]
		for _, th := range sp.threads {
			if !th.finished {
				threads = append(threads, th)
			}
		}
		for i := len(threads); i < len(sp.threads); i++ {
			sp.threads[i] = nil
		}
		sp.threads = threads
		live = append(live, sp)
	}
	for i := len(live); i < len(e.sprites); i++ {
		e.sprites[i] = nil
	}
	e.sprites = live
	e.waits.prune()
}

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

// GreenFlag stops the project, resets the timer and queues the flag hats.
func (e *Executor) GreenFlag() {
	e.StopAll()
	e.ResetTimer()
	e.queueHats("event_whenflagclicked", "", nil)
}

// KeyPressed queues the key-press hats for key.
func (e *Executor) KeyPressed(key string) {
	e.queueHats("event_whenkeypressed", key, nil)
}

// ClickSprite queues the click hats of sp.
func (e *Executor) ClickSprite(sp *Sprite) {
	if sp == nil {
		return
	}
	if sp.IsStage {
		e.ClickStage()
		return
	}
	e.queueHats("event_whenthisspriteclicked", "", sp)
}

// ClickStage queues the stage click hats.
func (e *Executor) ClickStage() {
	e.queueHats("event_whenstageclicked", "", e.stage)
}

// Broadcast enqueues message for the next broadcast phase.
func (e *Executor) Broadcast(message string) {
	e.queueBroadcast(message)
}

func (e *Executor) checkEdgeHats() {
	sprites := append([]*Sprite(nil), e.sprites...)
	for _, sp := range sprites {
		if sp.ToDelete {
			continue
		}
		for _, id := range sp.Hats {
			b := sp.Blocks.Get(id)
			if b == nil || (b.Opcode != "event_whengreaterthan" && b.Opcode != "event_whentouchingobject") {
				continue
			}
			key := edgeKey{sprite: sp.ID, block: id}
			now := e.edgeValue(sp, b)
			was := e.edges[key]
			e.edges[key] = now
			if now && !was {
				e.StartThread(sp, b)
			}
		}
	}
}

func (e *Executor) edgeValue(sp *Sprite, b *Block) bool {
	probe := &ScriptThread{Sprite: sp}
	probe.root = newFrame(probe, nil)
	if b.Opcode == "event_whentouchingobject" {
		if e.Host.Collider == nil {
			return false
		}
		return e.Host.Collider.Touching(sp, e.evalInput(probe.root, b, "TOUCHINGOBJECTMENU").AsString())
	}
	limit := e.evalInput(probe.root, b, "VALUE").AsFloat()
	var v float64
	switch strings.ToLower(b.Field("WHENGREATERTHANMENU")) {
	case "timer":
		v = e.Timer()
	case "loudness":
		if e.Host.Input != nil {
			v = e.Host.Input.Loudness()
		} else {
			v = -1
		}
	default:
		return false
	}
	return v > limit
}

// ---------------------------------------------------------------------------
// Variables
// ---------------------------------------------------------------------------

// LookupVariable finds a variable visible to sp: local scope first, then
// the global scope.
func (e *Executor) LookupVariable(sp *Sprite, id, name string) *Variable {
	if sp != nil {
		if v := sp.Local.Variable(id, name); v != nil {
			return v
		}
	}
	return e.global.Variable(id, name)
}

// LookupList finds a list visible to sp: local scope first, then global.
func (e *Executor) LookupList(sp *Sprite, id, name string) *List {
	if sp != nil {
		if l := sp.Local.List(id, name); l != nil {
			return l
		}
	}
	return e.global.List(id, name)
}

// VariableValue reads a variable, falling back to list contents, in the
// order local variable, local list, global variable, global list.
func (e *Executor) VariableValue(sp *Sprite, id, name string) Value {
	if sp != nil {
		if v := sp.Local.Variable(id, name); v != nil {
			return v.Value
		}
		if l := sp.Local.List(id, name); l != nil {
			return FromString(l.Contents())
		}
	}
	if v := e.global.Variable(id, name); v != nil {
		return v.Value
	}
	if l := e.global.List(id, name); l != nil {
		return FromString(l.Contents())
	}
	return Value{}
}

// SetVariable writes a variable visible to sp, creating a local one when
// none exists. Writes to global cloud variables are mirrored to the cloud
// provider.
func (e *Executor) SetVariable(sp *Sprite, id, name string, v Value) {
	e.setVariable(e.variableOrCreate(sp, id, name), v)
}

func (e *Executor) setVariable(vr *Variable, v Value) {
	vr.Value = v
	if !vr.Cloud || e.Host.Cloud == nil {
		return
	}
	if e.global.Variables[vr.ID] != vr {
		return
	}
	if err := e.Host.Cloud.Set(vr.Name, v); err != nil {
		e.log.Errorf("vm: cloud set %q: %s", vr.Name, err)
	}
}

func (e *Executor) variableOrCreate(sp *Sprite, id, name string) *Variable {
	if v := e.LookupVariable(sp, id, name); v != nil {
		return v
	}
	scope := e.global
	if sp != nil {
		scope = sp.Local
	}
	if id == "" {
		id = name
	}
	return scope.AddVariable(&Variable{ID: id, Name: name, Value: FromInt(0)})
}

func (e *Executor) listOrCreate(sp *Sprite, id, name string) *List {
	if l := e.LookupList(sp, id, name); l != nil {
		return l
	}
	scope := e.global
	if sp != nil {
		scope = sp.Local
	}
	if id == "" {
		id = name
	}
	l := &List{ID: id, Name: name}
	if e.maxListLength != MaxListLength {
		l.Cap = e.maxListLength
	}
	return scope.AddList(l)
}

// CloudVariables returns the global variables flagged for cloud sync.
func (e *Executor) CloudVariables() []*Variable {
	var out []*Variable
	for _, v := range e.global.Variables {
		if v.Cloud {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ---------------------------------------------------------------------------
// Clones and layers
// ---------------------------------------------------------------------------

// CreateClone clones src and queues its "when I start as a clone" hats.
// It returns nil when the clone limit is reached or src is the stage.
func (e *Executor) CreateClone(src *Sprite) *Sprite {
	if src == nil || src.IsStage || src.ToDelete {
		return nil
	}
	if e.clones >= e.maxClones {
		e.warnOnce("clones", "vm: clone limit of %d reached", e.maxClones)
		return nil
	}
	c := src.newClone()
	e.clones++
	for i, sp := range e.sprites {
		if sp == src {
			e.sprites = append(e.sprites[:i+1], append([]*Sprite{c}, e.sprites[i+1:]...)...)
			break
		}
	}
	e.placeBehind(c, src)
	e.queueHats("control_start_as_clone", "", c)
	return c
}

func (e *Executor) deleteClone(sp *Sprite) {
	if !sp.Clone || sp.ToDelete {
		return
	}
	sp.ToDelete = true
	e.clones--
	for _, th := range sp.threads {
		th.stop()
		e.finish(th)
	}
	e.waits.Purge(sp)
	e.clearBubble(sp)
}

// DeleteClone marks clone sp for removal at the end of the frame. Its
// threads are stopped immediately and it leaves every broadcast wait.
func (e *Executor) DeleteClone(sp *Sprite) { e.deleteClone(sp) }

func (e *Executor) clearBubble(sp *Sprite) {
	if sp.Bubble == "" {
		return
	}
	sp.Bubble = ""
	sp.bubbleSeq++
	if e.Host.Speech != nil {
		e.Host.Speech.ClearSpeech(sp)
	}
}

// layered returns the non-stage sprites sorted back to front.
func (e *Executor) layered() []*Sprite {
	var out []*Sprite
	for _, sp := range e.sprites {
		if !sp.IsStage && !sp.ToDelete {
			out = append(out, sp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Layer < out[j].Layer })
	return out
}

// placeBehind renumbers the layers so sp sits directly behind ref.
func (e *Executor) placeBehind(sp, ref *Sprite) {
	var order []*Sprite
	for _, s := range e.layered() {
		if s == sp {
			continue
		}
		if s == ref {
			order = append(order, sp)
		}
		order = append(order, s)
	}
	for i, s := range order {
		s.Layer = i + 1
	}
}

// MoveLayer moves sp by delta layers (positive is toward the front).
func (e *Executor) MoveLayer(sp *Sprite, delta int) {
	order := e.layered()
	idx := -1
	for i, s := range order {
		if s == sp {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	to := idx + delta
	if to < 0 {
		to = 0
	}
	if to > len(order)-1 {
		to = len(order) - 1
	}
	order = append(order[:idx], order[idx+1:]...)
	order = append(order[:to], append([]*Sprite{sp}, order[to:]...)...)
	for i, s := range order {
		s.Layer = i + 1
	}
}

// ---------------------------------------------------------------------------
// Debugging
// ---------------------------------------------------------------------------

// describe renders a short thread label for log lines.
func describe(th *ScriptThread) string {
	if th == nil || th.Sprite == nil {
		return "<detached>"
	}
	op := ""
	if th.Hat != nil {
		op = th.Hat.Opcode
	}
	return fmt.Sprintf("%s#%d(%s)", th.Sprite.Name, th.ID, op)
}
