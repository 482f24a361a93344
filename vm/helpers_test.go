package vm

import (
	"math/rand"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Clocks
// ---------------------------------------------------------------------------

var testEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeClock struct{ now time.Time }

func newFakeClock() *fakeClock { return &fakeClock{now: testEpoch} }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// tickingClock moves forward by step on every read.
type tickingClock struct {
	now  time.Time
	step time.Duration
}

func (c *tickingClock) Now() time.Time {
	c.now = c.now.Add(c.step)
	return c.now
}

// newTestExecutor returns an executor on a fake clock with one sprite
// added after the stage.
func newTestExecutor(t *testing.T, opts ...Option) (*Executor, *Sprite, *fakeClock) {
	t.Helper()
	clk := newFakeClock()
	base := []Option{WithClock(clk), WithRand(rand.New(rand.NewSource(1)))}
	ex := NewExecutor(append(base, opts...)...)
	sp := NewSprite("Sprite1")
	ex.AddSprite(sp)
	return ex, sp, clk
}

// ---------------------------------------------------------------------------
// Block builders
// ---------------------------------------------------------------------------

type blockOpt func(b *Block)

func in(name string, v Value) blockOpt {
	return func(b *Block) { b.Inputs[name] = LiteralInput(v) }
}

func num(name string, f float64) blockOpt { return in(name, FromFloat(f)) }

func str(name, s string) blockOpt { return in(name, FromString(s)) }

// sub binds a substack or reporter block to an input.
func sub(name string, child *Block) blockOpt {
	return func(b *Block) {
		if child != nil {
			b.Inputs[name] = BlockInput(child.ID)
		}
	}
}

func field(name, value string) blockOpt {
	return func(b *Block) { b.Fields[name] = ParsedField{Value: value} }
}

func fieldID(name, value, id string) blockOpt {
	return func(b *Block) { b.Fields[name] = ParsedField{Value: value, ID: id} }
}

func mut(m *Mutation) blockOpt {
	return func(b *Block) { b.Mutation = m }
}

func blk(sp *Sprite, opcode string, opts ...blockOpt) *Block {
	b := sp.Blocks.New(opcode)
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// seq links blocks through Next and returns the first one.
func seq(blocks ...*Block) *Block {
	if len(blocks) == 0 {
		return nil
	}
	for i := 0; i+1 < len(blocks); i++ {
		blocks[i].Next = blocks[i+1].ID
	}
	return blocks[0]
}

func hat(sp *Sprite, opcode string, body *Block, opts ...blockOpt) *Block {
	h := blk(sp, opcode, opts...)
	h.TopLevel = true
	if body != nil {
		h.Next = body.ID
	}
	return h
}

func defineProc(sp *Sprite, code string, warp bool, argIDs, argNames []string, body *Block) *Block {
	proto := blk(sp, "procedures_prototype", mut(&Mutation{
		ProcCode:      code,
		ArgumentIDs:   argIDs,
		ArgumentNames: argNames,
		Warp:          warp,
	}))
	proto.Shadow = true
	def := hat(sp, "procedures_definition", body, sub("custom_block", proto))
	return def
}

func call(sp *Sprite, code string, argIDs []string, opts ...blockOpt) *Block {
	opts = append([]blockOpt{mut(&Mutation{ProcCode: code, ArgumentIDs: argIDs})}, opts...)
	return blk(sp, "procedures_call", opts...)
}

func finalize(sprites ...*Sprite) {
	for _, sp := range sprites {
		sp.Blocks.Link()
		sp.Index()
	}
}

// ---------------------------------------------------------------------------
// Variable helpers
// ---------------------------------------------------------------------------

func setVar(sp *Sprite, name string, v Value) *Variable {
	return sp.Local.AddVariable(&Variable{ID: name, Name: name, Value: v})
}

func varValue(ex *Executor, sp *Sprite, name string) Value {
	return ex.VariableValue(sp, name, name)
}

func changeBy(sp *Sprite, name string, n int64) *Block {
	return blk(sp, "data_changevariableby", fieldID("VARIABLE", name, name), in("VALUE", FromInt(n)))
}

func wait(sp *Sprite, secs float64) *Block {
	return blk(sp, "control_wait", num("DURATION", secs))
}

// ---------------------------------------------------------------------------
// Running fragments
// ---------------------------------------------------------------------------

func probeFrame(sp *Sprite) *Frame {
	th := &ScriptThread{Sprite: sp}
	th.root = newFrame(th, nil)
	return th.root
}

// runChain walks a chain once in a detached frame.
func runChain(ex *Executor, sp *Sprite, first *Block) BlockResult {
	return ex.RunBlock(probeFrame(sp), first.ID, false)
}

// evalBlock evaluates a reporter block in a detached frame.
func evalBlock(ex *Executor, sp *Sprite, b *Block) Value {
	return ex.evalReporter(probeFrame(sp), b.ID)
}
