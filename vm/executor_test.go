package vm

import (
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Chain walking
// ---------------------------------------------------------------------------

func TestRunBlockChainResolvesInOneCall(t *testing.T) {
	ex, sp, _ := newTestExecutor(t)
	setVar(sp, "score", FromInt(0))
	first := seq(changeBy(sp, "score", 5), changeBy(sp, "score", -2))
	finalize(sp)

	if res := runChain(ex, sp, first); res != Continue {
		t.Errorf("RunBlock = %v, want continue", res)
	}
	if got := varValue(ex, sp, "score").AsFloat(); got != 3 {
		t.Errorf("score = %v, want 3", got)
	}
}

func TestUnknownOpcodeContinues(t *testing.T) {
	ex, sp, _ := newTestExecutor(t)
	setVar(sp, "x", FromInt(0))
	first := seq(blk(sp, "extension_doesnotexist"), changeBy(sp, "x", 1))
	finalize(sp)

	if res := runChain(ex, sp, first); res != Continue {
		t.Errorf("RunBlock = %v, want continue", res)
	}
	if got := varValue(ex, sp, "x").AsFloat(); got != 1 {
		t.Errorf("x = %v, want 1", got)
	}
}

func TestMissingReporterReturnsSoleField(t *testing.T) {
	ex, sp, _ := newTestExecutor(t)
	menu := blk(sp, "music_menu_DRUM", field("DRUM", "costume2"))
	finalize(sp)
	if got := evalBlock(ex, sp, menu).AsString(); got != "costume2" {
		t.Errorf("menu value = %q, want costume2", got)
	}
}

// ---------------------------------------------------------------------------
// Waits and the repeat stack
// ---------------------------------------------------------------------------

func TestWaitCompletesOnCeilFrame(t *testing.T) {
	tests := []struct {
		secs  float64
		delta time.Duration
		want  int
	}{
		{1, 100 * time.Millisecond, 10},
		{1, 30 * time.Millisecond, 34},
		{0.5, 40 * time.Millisecond, 13},
		{2, time.Second, 2},
		{0, 16 * time.Millisecond, 1},
	}
	for _, tt := range tests {
		ex, sp, clk := newTestExecutor(t)
		setVar(sp, "done", FromInt(0))
		h := hat(sp, "event_whenflagclicked", seq(wait(sp, tt.secs), changeBy(sp, "done", 1)))
		finalize(sp)
		ex.StartThread(sp, h)

		got := 0
		for frame := 1; frame <= 1000; frame++ {
			clk.Advance(tt.delta)
			ex.RunThreads()
			if varValue(ex, sp, "done").AsFloat() == 1 {
				got = frame
				break
			}
		}
		if got != tt.want {
			t.Errorf("wait %vs at %v/frame finished on frame %d, want %d", tt.secs, tt.delta, got, tt.want)
		}
	}
}

func TestWaitIgnoresFrameJitter(t *testing.T) {
	ex, sp, clk := newTestExecutor(t)
	setVar(sp, "done", FromInt(0))
	h := hat(sp, "event_whenflagclicked", seq(wait(sp, 1), changeBy(sp, "done", 1)))
	finalize(sp)
	ex.StartThread(sp, h)

	deltas := []time.Duration{17 * time.Millisecond, 40 * time.Millisecond, 3 * time.Millisecond, 90 * time.Millisecond}
	var elapsed time.Duration
	for frame := 0; frame < 200; frame++ {
		d := deltas[frame%len(deltas)]
		elapsed += d
		clk.Advance(d)
		ex.RunThreads()
		done := varValue(ex, sp, "done").AsFloat() == 1
		if done != (elapsed >= time.Second) {
			t.Fatalf("frame %d at %v: done = %v", frame+1, elapsed, done)
		}
		if done {
			return
		}
	}
	t.Fatal("wait never finished")
}

func TestRepeatDoesNotAdvanceWhileWaitQueued(t *testing.T) {
	ex, sp, clk := newTestExecutor(t)
	setVar(sp, "count", FromInt(0))
	setVar(sp, "after", FromInt(0))
	w := wait(sp, 1)
	loop := blk(sp, "control_repeat", num("TIMES", 3), sub("SUBSTACK", seq(w, changeBy(sp, "count", 1))))
	h := hat(sp, "event_whenflagclicked", seq(loop, changeBy(sp, "after", 1)))
	finalize(sp)

	th := ex.StartThread(sp, h)
	stack := th.Root().RepeatStack()
	if len(stack) != 2 || stack[0] != loop.ID || stack[1] != w.ID {
		t.Fatalf("repeat stack = %v, want [%d %d]", stack, loop.ID, w.ID)
	}

	wantCount := []float64{1, 1, 2, 2, 3, 3}
	for i, want := range wantCount {
		clk.Advance(time.Second)
		ex.RunThreads()
		if got := varValue(ex, sp, "count").AsFloat(); got != want {
			t.Errorf("frame %d: count = %v, want %v", i+1, got, want)
		}
		after := varValue(ex, sp, "after").AsFloat()
		if i < len(wantCount)-1 && after != 0 {
			t.Errorf("frame %d: repeat advanced early", i+1)
		}
	}
	if got := varValue(ex, sp, "after").AsFloat(); got != 1 {
		t.Errorf("after = %v, want 1", got)
	}
	if !th.Finished() {
		t.Error("thread still running after repeat finished")
	}
}

func TestForeverYieldsEachFrame(t *testing.T) {
	ex, sp, _ := newTestExecutor(t)
	setVar(sp, "n", FromInt(0))
	loop := blk(sp, "control_forever", sub("SUBSTACK", changeBy(sp, "n", 1)))
	h := hat(sp, "event_whenflagclicked", loop)
	finalize(sp)

	ex.StartThread(sp, h)
	for i := 0; i < 3; i++ {
		ex.RunThreads()
	}
	if got := varValue(ex, sp, "n").AsFloat(); got != 4 {
		t.Errorf("n = %v, want 4", got)
	}
}

func TestIfResumesAfterSubstackWait(t *testing.T) {
	ex, sp, clk := newTestExecutor(t)
	setVar(sp, "a", FromInt(0))
	setVar(sp, "b", FromInt(0))
	branch := blk(sp, "control_if", in("CONDITION", FromBool(true)),
		sub("SUBSTACK", seq(wait(sp, 1), changeBy(sp, "a", 1))))
	h := hat(sp, "event_whenflagclicked", seq(branch, changeBy(sp, "b", 1)))
	finalize(sp)

	th := ex.StartThread(sp, h)
	if varValue(ex, sp, "b").AsFloat() != 0 {
		t.Fatal("block after if ran before the substack finished")
	}
	clk.Advance(time.Second)
	ex.RunThreads()
	if a, b := varValue(ex, sp, "a").AsFloat(), varValue(ex, sp, "b").AsFloat(); a != 1 || b != 1 {
		t.Errorf("a, b = %v, %v, want 1, 1", a, b)
	}
	if !th.Finished() {
		t.Error("thread not finished")
	}
}

func TestRepeatQueueHelpers(t *testing.T) {
	ex, sp, _ := newTestExecutor(t)
	fr := probeFrame(sp)
	ex.AddToRepeatQueue(fr, 3)
	ex.AddToRepeatQueue(fr, 5)
	ex.AddToRepeatQueue(fr, 3)
	if got := fr.RepeatStack(); len(got) != 2 || got[1] != 5 {
		t.Errorf("RepeatStack() = %v, want [3 5]", got)
	}
	ex.RemoveFromRepeatQueue(fr, 5)
	if fr.top() != 3 {
		t.Errorf("top = %d, want 3", fr.top())
	}
	ex.RemoveFromRepeatQueue(fr, 3)
	if ex.HasActiveRepeats(fr) {
		t.Error("HasActiveRepeats() = true on empty stack")
	}
}

// ---------------------------------------------------------------------------
// Procedures
// ---------------------------------------------------------------------------

func TestWarpProcedureDrainsInOneCall(t *testing.T) {
	for _, warp := range []bool{true, false} {
		ex, sp, _ := newTestExecutor(t)
		setVar(sp, "n", FromInt(0))
		loop := blk(sp, "control_repeat", num("TIMES", 100000), sub("SUBSTACK", changeBy(sp, "n", 1)))
		defineProc(sp, "spin", warp, nil, nil, loop)
		h := hat(sp, "event_whenflagclicked", call(sp, "spin", nil))
		finalize(sp)

		th := ex.StartThread(sp, h)
		got := varValue(ex, sp, "n").AsFloat()
		if warp {
			if got != 100000 || !th.Finished() {
				t.Errorf("warp: n = %v, finished = %v, want 100000, true", got, th.Finished())
			}
		} else if got != 1 {
			t.Errorf("no warp: n = %v after first slice, want 1", got)
		}
	}
}

func TestWarpBudgetYields(t *testing.T) {
	clk := &tickingClock{now: testEpoch, step: time.Millisecond}
	ex, sp, _ := newTestExecutor(t, WithClock(clk), WithWarpBudget(50*time.Millisecond))
	setVar(sp, "n", FromInt(0))
	loop := blk(sp, "control_forever", sub("SUBSTACK", changeBy(sp, "n", 1)))
	defineProc(sp, "spin forever", true, nil, nil, loop)
	h := hat(sp, "event_whenflagclicked", call(sp, "spin forever", nil))
	finalize(sp)

	th := ex.StartThread(sp, h)
	first := varValue(ex, sp, "n").AsFloat()
	if first < 2 || first > 1000 {
		t.Fatalf("n = %v after first slice, want a bounded drain", first)
	}
	if th.Finished() {
		t.Fatal("warp forever loop finished")
	}
	ex.RunThreads()
	if got := varValue(ex, sp, "n").AsFloat(); got <= first {
		t.Errorf("n = %v after next frame, want > %v", got, first)
	}
}

func TestRecursionLimitStopsThread(t *testing.T) {
	ex, sp, _ := newTestExecutor(t, WithMaxCallDepth(16))
	defineProc(sp, "recurse", false, nil, nil, call(sp, "recurse", nil))
	h := hat(sp, "event_whenflagclicked", call(sp, "recurse", nil))
	finalize(sp)

	th := ex.StartThread(sp, h)
	if !th.Finished() {
		t.Error("thread still running after recursion limit")
	}
	if got := ex.Stats().Faults; got != 1 {
		t.Errorf("Faults = %d, want 1", got)
	}
}

func TestRecursiveArgumentsBoundPerCall(t *testing.T) {
	ex, sp, _ := newTestExecutor(t)
	setVar(sp, "total", FromInt(0))
	arg := func() *Block { return blk(sp, "argument_reporter_string_number", field("VALUE", "n")) }

	minus := blk(sp, "operator_subtract", sub("NUM1", arg()), num("NUM2", 1))
	body := blk(sp, "control_if",
		sub("CONDITION", blk(sp, "operator_gt", sub("OPERAND1", arg()), num("OPERAND2", 0))),
		sub("SUBSTACK", seq(
			blk(sp, "data_changevariableby", fieldID("VARIABLE", "total", "total"), sub("VALUE", arg())),
			call(sp, "sum %s", []string{"a1"}, sub("a1", minus)),
		)))
	defineProc(sp, "sum %s", false, []string{"a1"}, []string{"n"}, body)
	h := hat(sp, "event_whenflagclicked", call(sp, "sum %s", []string{"a1"}, in("a1", FromInt(5))))
	finalize(sp)

	th := ex.StartThread(sp, h)
	if got := varValue(ex, sp, "total").AsFloat(); got != 15 {
		t.Errorf("total = %v, want 15", got)
	}
	if !th.Finished() {
		t.Error("thread not finished")
	}
}

func TestMissingArgumentUsesDefault(t *testing.T) {
	ex, sp, _ := newTestExecutor(t)
	setVar(sp, "got", FromInt(0))
	body := blk(sp, "data_setvariableto", fieldID("VARIABLE", "got", "got"),
		sub("VALUE", blk(sp, "argument_reporter_string_number", field("VALUE", "x"))))
	def := defineProc(sp, "show %s", false, []string{"a1"}, []string{"x"}, body)
	sp.Blocks.Get(def.Inputs["custom_block"].Block).Mutation.ArgumentDefaults = []string{"fallback"}
	h := hat(sp, "event_whenflagclicked", call(sp, "show %s", []string{"a1"}))
	finalize(sp)

	ex.StartThread(sp, h)
	if got := varValue(ex, sp, "got").AsString(); got != "fallback" {
		t.Errorf("got = %q, want fallback", got)
	}
}

func TestStopThisScriptReturnsFromProcedure(t *testing.T) {
	ex, sp, _ := newTestExecutor(t)
	setVar(sp, "x", FromInt(0))
	setVar(sp, "y", FromInt(0))
	defineProc(sp, "early", false, nil, nil, seq(
		changeBy(sp, "x", 1),
		blk(sp, "control_stop", field("STOP_OPTION", "this script")),
		changeBy(sp, "x", 100),
	))
	h := hat(sp, "event_whenflagclicked", seq(call(sp, "early", nil), changeBy(sp, "y", 1)))
	finalize(sp)

	ex.StartThread(sp, h)
	if x, y := varValue(ex, sp, "x").AsFloat(), varValue(ex, sp, "y").AsFloat(); x != 1 || y != 1 {
		t.Errorf("x, y = %v, %v, want 1, 1", x, y)
	}
}

func TestProcedureCallWaitsForBody(t *testing.T) {
	ex, sp, clk := newTestExecutor(t)
	setVar(sp, "after", FromInt(0))
	defineProc(sp, "pause", false, nil, nil, wait(sp, 1))
	h := hat(sp, "event_whenflagclicked", seq(call(sp, "pause", nil), changeBy(sp, "after", 1)))
	finalize(sp)

	th := ex.StartThread(sp, h)
	if th.CallDepth() != 1 {
		t.Errorf("CallDepth() = %d, want 1", th.CallDepth())
	}
	ex.RunThreads()
	if varValue(ex, sp, "after").AsFloat() != 0 {
		t.Fatal("caller resumed before the body finished")
	}
	clk.Advance(time.Second)
	ex.RunThreads()
	if got := varValue(ex, sp, "after").AsFloat(); got != 1 {
		t.Errorf("after = %v, want 1", got)
	}
}

// ---------------------------------------------------------------------------
// Broadcasts
// ---------------------------------------------------------------------------

func TestBroadcastAndWaitBlocksUntilReceiversFinish(t *testing.T) {
	ex, a, clk := newTestExecutor(t)
	b := NewSprite("Receiver")
	ex.AddSprite(b)
	setVar(a, "done", FromInt(0))

	send := blk(a, "event_broadcastandwait", str("BROADCAST_INPUT", "go"))
	h := hat(a, "event_whenflagclicked", seq(send, changeBy(a, "done", 1)))
	hat(b, "event_whenbroadcastreceived", wait(b, 2), field("BROADCAST_OPTION", "GO"))
	finalize(a, b)

	th := ex.StartThread(a, h)
	if ex.Waits().Len() != 1 {
		t.Fatalf("Waits().Len() = %d, want 1", ex.Waits().Len())
	}
	if top := th.Root().top(); top != send.ID {
		t.Fatalf("top of stack = %d, want broadcast block %d", top, send.ID)
	}
	// The receiver arms its wait on frame 1 and finishes on frame 3 after
	// the sender has already polled.
	for frame := 1; frame <= 3; frame++ {
		clk.Advance(time.Second)
		ex.RunThreads()
		if varValue(ex, a, "done").AsFloat() != 0 {
			t.Fatalf("sender resumed on frame %d while a receiver was running", frame)
		}
	}
	clk.Advance(time.Second)
	ex.RunThreads()
	if got := varValue(ex, a, "done").AsFloat(); got != 1 {
		t.Errorf("done = %v, want 1", got)
	}
	if ex.Waits().Len() != 0 {
		t.Errorf("Waits().Len() = %d, want 0", ex.Waits().Len())
	}
}

func TestBroadcastAndWaitWithoutReceivers(t *testing.T) {
	ex, sp, _ := newTestExecutor(t)
	setVar(sp, "done", FromInt(0))
	h := hat(sp, "event_whenflagclicked", seq(
		blk(sp, "event_broadcastandwait", str("BROADCAST_INPUT", "nobody")),
		changeBy(sp, "done", 1),
	))
	finalize(sp)

	ex.StartThread(sp, h)
	if got := varValue(ex, sp, "done").AsFloat(); got != 1 {
		t.Errorf("done = %v, want 1", got)
	}
}

func TestBroadcastAndWaitSpawnsReceivers(t *testing.T) {
	ex, a, _ := newTestExecutor(t)
	b := NewSprite("Receiver")
	ex.AddSprite(b)
	setVar(a, "done", FromInt(0))
	setVar(b, "got", FromInt(0))

	hat(a, "event_whenflagclicked", seq(
		blk(a, "event_broadcastandwait", str("BROADCAST_INPUT", "go")),
		changeBy(a, "done", 1),
	))
	hat(b, "event_whenbroadcastreceived", changeBy(b, "got", 1), field("BROADCAST_OPTION", "go"))
	finalize(a, b)

	ex.GreenFlag()
	ex.RunThreads()
	if got := varValue(ex, b, "got").AsFloat(); got != 0 {
		t.Fatalf("receiver ran inside the sender's step: got = %v", got)
	}
	ex.RunThreads()
	if got := varValue(ex, b, "got").AsFloat(); got != 1 {
		t.Errorf("got = %v, want 1", got)
	}
	ex.RunThreads()
	if got := varValue(ex, a, "done").AsFloat(); got != 1 {
		t.Errorf("done = %v, want 1", got)
	}
}

func TestBroadcastAndWaitOwnMessage(t *testing.T) {
	ex, sp, _ := newTestExecutor(t)
	setVar(sp, "n", FromInt(0))
	hat(sp, "event_whenbroadcastreceived", seq(
		changeBy(sp, "n", 1),
		blk(sp, "event_broadcastandwait", str("BROADCAST_INPUT", "go")),
	), field("BROADCAST_OPTION", "go"))
	finalize(sp)

	ex.Broadcast("go")
	for i := 1; i <= 5; i++ {
		ex.RunThreads()
		if got := varValue(ex, sp, "n").AsFloat(); got != float64(i) {
			t.Errorf("frame %d: n = %v, want %d", i, got, i)
		}
	}
	if n := ex.Waits().Len(); n != 0 {
		t.Errorf("Waits().Len() = %d, want 0", n)
	}
	if ex.Idle() {
		t.Error("executor idle while the receiver keeps restarting")
	}
}

func TestBroadcastAndWaitMutualRestart(t *testing.T) {
	ex, a, _ := newTestExecutor(t)
	b := NewSprite("Echo")
	ex.AddSprite(b)
	setVar(a, "n", FromInt(0))
	setVar(b, "n", FromInt(0))
	hat(a, "event_whenbroadcastreceived", seq(
		changeBy(a, "n", 1),
		blk(a, "event_broadcastandwait", str("BROADCAST_INPUT", "pong")),
	), field("BROADCAST_OPTION", "ping"))
	hat(b, "event_whenbroadcastreceived", seq(
		changeBy(b, "n", 1),
		blk(b, "event_broadcastandwait", str("BROADCAST_INPUT", "ping")),
	), field("BROADCAST_OPTION", "pong"))
	finalize(a, b)

	ex.Broadcast("ping")
	const frames = 10
	for i := 0; i < frames; i++ {
		ex.RunThreads()
	}
	na := varValue(ex, a, "n").AsFloat()
	nb := varValue(ex, b, "n").AsFloat()
	if na < 2 || nb < 2 {
		t.Errorf("n = %v/%v, want both scripts to keep running", na, nb)
	}
	if na > frames || nb > frames {
		t.Errorf("n = %v/%v, want at most one start per frame", na, nb)
	}
}

func TestSwitchBackdropAndWaitOwnBackdrop(t *testing.T) {
	ex, _, _ := newTestExecutor(t)
	stage := ex.Stage()
	stage.Costumes = []Costume{{Name: "day"}, {Name: "night"}}
	setVar(stage, "n", FromInt(0))
	hat(stage, "event_whenbackdropswitchesto", seq(
		changeBy(stage, "n", 1),
		blk(stage, "looks_switchbackdroptoandwait", str("BACKDROP", "night")),
	), field("BACKDROP", "night"))
	finalize(stage)

	ex.StartHats("event_whenbackdropswitchesto", "night", stage)
	for i := 0; i < 3; i++ {
		ex.RunThreads()
	}
	if got := varValue(ex, stage, "n").AsFloat(); got != 4 {
		t.Errorf("n = %v, want 4", got)
	}
}

func TestWarpBroadcastAndWaitYieldsToReceivers(t *testing.T) {
	ex, a, _ := newTestExecutor(t)
	b := NewSprite("Receiver")
	ex.AddSprite(b)
	setVar(a, "done", FromInt(0))
	setVar(b, "got", FromInt(0))

	defineProc(a, "sync", true, nil, nil, blk(a, "event_broadcastandwait", str("BROADCAST_INPUT", "go")))
	h := hat(a, "event_whenflagclicked", seq(call(a, "sync", nil), changeBy(a, "done", 1)))
	hat(b, "event_whenbroadcastreceived", changeBy(b, "got", 1), field("BROADCAST_OPTION", "go"))
	finalize(a, b)

	ex.StartThread(a, h)
	for i := 0; i < 2; i++ {
		ex.RunThreads()
	}
	if got := varValue(ex, b, "got").AsFloat(); got != 1 {
		t.Errorf("got = %v, want 1", got)
	}
	if got := varValue(ex, a, "done").AsFloat(); got != 1 {
		t.Errorf("done = %v, want 1", got)
	}
}

func TestSelfBroadcastDefersToNextFrame(t *testing.T) {
	ex, sp, _ := newTestExecutor(t)
	setVar(sp, "n", FromInt(0))
	hat(sp, "event_whenbroadcastreceived", seq(
		changeBy(sp, "n", 1),
		blk(sp, "event_broadcast", str("BROADCAST_INPUT", "ping")),
	), field("BROADCAST_OPTION", "ping"))
	finalize(sp)

	ex.Broadcast("ping")
	ex.Broadcast("PING")
	for i := 1; i <= 3; i++ {
		ex.RunThreads()
		if got := varValue(ex, sp, "n").AsFloat(); got != float64(i) {
			t.Errorf("frame %d: n = %v, want %d", i, got, i)
		}
	}
}

func TestBroadcastRestartsReceiver(t *testing.T) {
	ex, sp, _ := newTestExecutor(t)
	hat(sp, "event_whenbroadcastreceived", wait(sp, 5), field("BROADCAST_OPTION", "go"))
	finalize(sp)

	ex.Broadcast("go")
	ex.RunThreads()
	threads := sp.Threads()
	if len(threads) != 1 {
		t.Fatalf("threads = %d, want 1", len(threads))
	}
	th, run := threads[0], threads[0].run

	ex.Broadcast("go")
	ex.RunThreads()
	if len(sp.Threads()) != 1 || sp.Threads()[0] != th {
		t.Fatal("broadcast started a second thread instead of restarting")
	}
	if th.run != run+1 {
		t.Errorf("run = %d, want %d", th.run, run+1)
	}
}

// ---------------------------------------------------------------------------
// Hats
// ---------------------------------------------------------------------------

func TestKeyHatDoesNotRestart(t *testing.T) {
	ex, sp, clk := newTestExecutor(t)
	setVar(sp, "n", FromInt(0))
	hat(sp, "event_whenkeypressed", seq(wait(sp, 5), changeBy(sp, "n", 1)), field("KEY_OPTION", "space"))
	finalize(sp)

	ex.KeyPressed("space")
	ex.RunThreads()
	clk.Advance(3 * time.Second)
	ex.KeyPressed("space")
	ex.RunThreads()
	if len(sp.Threads()) != 1 {
		t.Fatalf("threads = %d, want 1", len(sp.Threads()))
	}
	clk.Advance(2 * time.Second)
	ex.RunThreads()
	if got := varValue(ex, sp, "n").AsFloat(); got != 1 {
		t.Errorf("n = %v, want 1", got)
	}
}

func TestAnyKeyHat(t *testing.T) {
	ex, sp, _ := newTestExecutor(t)
	setVar(sp, "n", FromInt(0))
	hat(sp, "event_whenkeypressed", changeBy(sp, "n", 1), field("KEY_OPTION", "any"))
	hat(sp, "event_whenkeypressed", changeBy(sp, "n", 10), field("KEY_OPTION", "a"))
	finalize(sp)

	ex.KeyPressed("b")
	ex.RunThreads()
	if got := varValue(ex, sp, "n").AsFloat(); got != 1 {
		t.Errorf("n = %v, want 1", got)
	}
}

func TestGreenFlagStartsHatsAndIdles(t *testing.T) {
	ex, sp, _ := newTestExecutor(t)
	setVar(sp, "n", FromInt(0))
	hat(sp, "event_whenflagclicked", changeBy(sp, "n", 1))
	hat(ex.Stage(), "event_whenflagclicked", changeBy(ex.Stage(), "n", 1))
	finalize(sp, ex.Stage())

	ex.GreenFlag()
	if ex.Idle() {
		t.Error("Idle() = true with queued flag hats")
	}
	ex.RunThreads()
	if got := varValue(ex, sp, "n").AsFloat(); got != 1 {
		t.Errorf("sprite n = %v, want 1", got)
	}
	if !ex.Idle() {
		t.Error("Idle() = false after every script finished")
	}
}

func TestTimerEdgeHat(t *testing.T) {
	ex, sp, clk := newTestExecutor(t)
	setVar(sp, "n", FromInt(0))
	hat(sp, "event_whengreaterthan", changeBy(sp, "n", 1),
		field("WHENGREATERTHANMENU", "TIMER"), num("VALUE", 1))
	finalize(sp)

	ex.RunThreads()
	clk.Advance(1500 * time.Millisecond)
	ex.RunThreads()
	ex.RunThreads()
	if got := varValue(ex, sp, "n").AsFloat(); got != 1 {
		t.Errorf("n = %v, want 1 (edge triggered once)", got)
	}
}

// ---------------------------------------------------------------------------
// Clones and stopping
// ---------------------------------------------------------------------------

func TestDeleteCloneMidWait(t *testing.T) {
	ex, sp, clk := newTestExecutor(t)
	hat(sp, "control_start_as_clone", seq(wait(sp, 10), changeBy(sp, "x", 1)))
	finalize(sp)

	c := ex.CreateClone(sp)
	ex.RunThreads()
	threads := c.Threads()
	if len(threads) != 1 || !threads[0].Active() {
		t.Fatalf("clone threads = %d, want one active", len(threads))
	}
	th := threads[0]

	ex.DeleteClone(c)
	if len(th.Root().RepeatStack()) != 0 {
		t.Errorf("repeat stack = %v after delete, want empty", th.Root().RepeatStack())
	}
	clk.Advance(20 * time.Second)
	ex.RunThreads()
	ex.RunThreads()

	for _, s := range ex.Sprites() {
		if s == c {
			t.Fatal("deleted clone still scheduled")
		}
	}
	if got := ex.Stats().Clones; got != 0 {
		t.Errorf("Clones = %d, want 0", got)
	}
	if v := c.Local.Variable("x", "x"); v != nil && v.Value.AsFloat() != 0 {
		t.Error("deleted clone kept running")
	}
}

func TestDeleteThisClone(t *testing.T) {
	ex, sp, _ := newTestExecutor(t)
	setVar(ex.Stage(), "after", FromInt(0))
	hat(sp, "control_start_as_clone", seq(
		blk(sp, "control_delete_this_clone"),
		changeBy(sp, "after", 1),
	))
	finalize(sp)

	ex.CreateClone(sp)
	ex.RunThreads()
	if got := ex.Global().Variable("after", "after").Value.AsFloat(); got != 0 {
		t.Errorf("after = %v, want 0", got)
	}
	if n := len(ex.Sprites()); n != 2 {
		t.Errorf("sprites = %d, want 2", n)
	}
}

func TestDeletedCloneLeavesBroadcastWait(t *testing.T) {
	ex, sp, _ := newTestExecutor(t)
	stage := ex.Stage()
	setVar(stage, "done", FromInt(0))
	flag := hat(stage, "event_whenflagclicked", seq(
		blk(stage, "event_broadcastandwait", str("BROADCAST_INPUT", "go")),
		changeBy(stage, "done", 1),
	))
	hat(sp, "event_whenbroadcastreceived", wait(sp, 100), field("BROADCAST_OPTION", "go"))
	finalize(sp, stage)

	c := ex.CreateClone(sp)
	ex.StartThread(stage, flag)
	ex.StopSprite(sp, nil)
	ex.RunThreads()
	if got := varValue(ex, stage, "done").AsFloat(); got != 0 {
		t.Fatalf("done = %v while the clone was still receiving", got)
	}
	ex.DeleteClone(c)
	ex.RunThreads()
	if got := varValue(ex, stage, "done").AsFloat(); got != 1 {
		t.Errorf("done = %v, want 1", got)
	}
}

func TestCloneIsPlacedBehindSource(t *testing.T) {
	ex, sp, _ := newTestExecutor(t)
	front := NewSprite("Front")
	ex.AddSprite(front)
	finalize(sp, front)

	c := ex.CreateClone(sp)
	c2 := ex.CreateClone(c)
	want := []*Sprite{c2, c, sp, front}
	got := ex.layered()
	if len(got) != len(want) {
		t.Fatalf("layered() = %d sprites, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("layer %d = %s (clone %v), want %s (clone %v)", i+1, got[i].Name, got[i].Clone, want[i].Name, want[i].Clone)
		}
		if got[i].Layer != i+1 {
			t.Errorf("%s Layer = %d, want %d", got[i].Name, got[i].Layer, i+1)
		}
	}
}

func TestCloneLimit(t *testing.T) {
	ex, sp, _ := newTestExecutor(t, WithMaxClones(2))
	finalize(sp)
	if ex.CreateClone(sp) == nil || ex.CreateClone(sp) == nil {
		t.Fatal("CreateClone failed under the limit")
	}
	if ex.CreateClone(sp) != nil {
		t.Error("CreateClone succeeded past the limit")
	}
	if ex.CreateClone(ex.Stage()) != nil {
		t.Error("stage was cloned")
	}
}

func TestCloneHasOwnVariables(t *testing.T) {
	ex, sp, _ := newTestExecutor(t)
	setVar(sp, "hp", FromInt(10))
	finalize(sp)
	c := ex.CreateClone(sp)
	ex.SetVariable(c, "hp", "hp", FromInt(3))
	if got := varValue(ex, sp, "hp").AsFloat(); got != 10 {
		t.Errorf("original hp = %v, want 10", got)
	}
	if !c.Clone || c.Original != sp {
		t.Error("clone does not point at its original")
	}
}

func TestStopAll(t *testing.T) {
	ex, sp, _ := newTestExecutor(t)
	hat(sp, "event_whenflagclicked", blk(sp, "control_forever"))
	finalize(sp)

	ex.GreenFlag()
	ex.RunThreads()
	c := ex.CreateClone(sp)
	if ex.Stats().Threads == 0 {
		t.Fatal("no running threads before StopAll")
	}
	ex.StopAll()
	ex.RunThreads()
	if s := ex.Stats(); s.Threads != 0 || s.Clones != 0 {
		t.Errorf("Threads, Clones = %d, %d, want 0, 0", s.Threads, s.Clones)
	}
	if !c.ToDelete {
		t.Error("clone survived StopAll")
	}
}

func TestStopOtherScripts(t *testing.T) {
	ex, sp, _ := newTestExecutor(t)
	setVar(sp, "n", FromInt(0))
	hat(sp, "event_whenflagclicked", blk(sp, "control_forever", sub("SUBSTACK", changeBy(sp, "n", 1))))
	hat(sp, "event_whenkeypressed", blk(sp, "control_stop", field("STOP_OPTION", "other scripts in sprite")),
		field("KEY_OPTION", "s"))
	finalize(sp)

	ex.GreenFlag()
	ex.RunThreads()
	ex.KeyPressed("s")
	ex.RunThreads()
	n := varValue(ex, sp, "n").AsFloat()
	ex.RunThreads()
	if got := varValue(ex, sp, "n").AsFloat(); got != n {
		t.Errorf("n = %v after stop, want %v", got, n)
	}
}

// ---------------------------------------------------------------------------
// Variables
// ---------------------------------------------------------------------------

type recordingCloud struct{ sets map[string]Value }

func (c *recordingCloud) Set(name string, v Value) error {
	c.sets[name] = v
	return nil
}

func TestCloudVariableMirroring(t *testing.T) {
	cloud := &recordingCloud{sets: make(map[string]Value)}
	ex, sp, _ := newTestExecutor(t, WithHost(Host{Cloud: cloud}))
	ex.Global().AddVariable(&Variable{ID: "hs", Name: "☁ high", Cloud: true})
	sp.Local.AddVariable(&Variable{ID: "loc", Name: "local", Cloud: true})

	ex.SetVariable(sp, "hs", "", FromInt(42))
	ex.SetVariable(sp, "loc", "", FromInt(7))
	if got, ok := cloud.sets["☁ high"]; !ok || got.AsFloat() != 42 {
		t.Errorf("cloud set = %v, %v, want 42", got, ok)
	}
	if _, ok := cloud.sets["local"]; ok {
		t.Error("sprite-local variable was mirrored")
	}
	if vars := ex.CloudVariables(); len(vars) != 1 {
		t.Errorf("CloudVariables() = %d, want 1", len(vars))
	}
}

func TestLocalVariableShadowsGlobal(t *testing.T) {
	ex, sp, _ := newTestExecutor(t)
	ex.Global().AddVariable(&Variable{ID: "g", Name: "v", Value: FromString("global")})
	sp.Local.AddVariable(&Variable{ID: "l", Name: "v", Value: FromString("local")})
	if got := ex.VariableValue(sp, "", "v").AsString(); got != "local" {
		t.Errorf("VariableValue = %q, want local", got)
	}
	if got := ex.VariableValue(ex.Stage(), "", "v").AsString(); got != "global" {
		t.Errorf("stage VariableValue = %q, want global", got)
	}
}

func TestVariableFallsBackToList(t *testing.T) {
	ex, sp, _ := newTestExecutor(t)
	sp.Local.AddList(&List{ID: "l", Name: "letters", Items: []Value{FromString("a"), FromString("b")}})
	if got := ex.VariableValue(sp, "l", "letters").AsString(); got != "ab" {
		t.Errorf("VariableValue = %q, want ab", got)
	}
}
