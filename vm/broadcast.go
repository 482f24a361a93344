package vm

import "strings"

// ---------------------------------------------------------------------------
// BroadcastRegistry: broadcast-and-wait bookkeeping
// ---------------------------------------------------------------------------

type receiverRun struct {
	thread *ScriptThread
	run    uint64
}

// BroadcastWait records one "broadcast and wait": the sender thread and the
// receiver threads it started.
type BroadcastWait struct {
	Message string
	Sender  *ScriptThread

	receivers []receiverRun
}

func newBroadcastWait(message string, sender *ScriptThread, receivers []*ScriptThread) *BroadcastWait {
	w := &BroadcastWait{Message: message, Sender: sender}
	for _, th := range receivers {
		w.receivers = append(w.receivers, receiverRun{thread: th, run: th.run})
	}
	return w
}

// Pending reports whether any receiver is still running the run it was
// started for. A receiver restarted by a later trigger no longer counts.
func (w *BroadcastWait) Pending() bool {
	for _, r := range w.receivers {
		if r.thread.run == r.run && r.thread.Active() {
			return true
		}
	}
	return false
}

// Receivers returns the receiver threads still tracked.
func (w *BroadcastWait) Receivers() []*ScriptThread {
	out := make([]*ScriptThread, 0, len(w.receivers))
	for _, r := range w.receivers {
		out = append(out, r.thread)
	}
	return out
}

func (w *BroadcastWait) dropSprite(sp *Sprite) {
	kept := w.receivers[:0]
	for _, r := range w.receivers {
		if r.thread.Sprite != sp {
			kept = append(kept, r)
		}
	}
	w.receivers = kept
}

// BroadcastRegistry maps a message to the waits blocked on it.
type BroadcastRegistry struct {
	waits map[string][]*BroadcastWait
}

// NewBroadcastRegistry creates an empty registry.
func NewBroadcastRegistry() *BroadcastRegistry {
	return &BroadcastRegistry{waits: make(map[string][]*BroadcastWait)}
}

func messageKey(message string) string { return strings.ToLower(message) }

// Add registers w.
func (r *BroadcastRegistry) Add(w *BroadcastWait) {
	k := messageKey(w.Message)
	r.waits[k] = append(r.waits[k], w)
}

// Remove drops w.
func (r *BroadcastRegistry) Remove(w *BroadcastWait) {
	k := messageKey(w.Message)
	list := r.waits[k]
	for i, x := range list {
		if x == w {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(r.waits, k)
		return
	}
	r.waits[k] = list
}

// Waits returns the waits registered for message.
func (r *BroadcastRegistry) Waits(message string) []*BroadcastWait {
	return r.waits[messageKey(message)]
}

// Len returns the number of registered waits.
func (r *BroadcastRegistry) Len() int {
	n := 0
	for _, list := range r.waits {
		n += len(list)
	}
	return n
}

// Purge removes every trace of sp: waits it sent are dropped and its
// threads stop counting as receivers elsewhere.
func (r *BroadcastRegistry) Purge(sp *Sprite) {
	for k, list := range r.waits {
		kept := list[:0]
		for _, w := range list {
			if w.Sender != nil && w.Sender.Sprite == sp {
				continue
			}
			w.dropSprite(sp)
			kept = append(kept, w)
		}
		if len(kept) == 0 {
			delete(r.waits, k)
		} else {
			r.waits[k] = kept
		}
	}
}

func (r *BroadcastRegistry) forgetSender(th *ScriptThread) {
	for k, list := range r.waits {
		kept := list[:0]
		for _, w := range list {
			if w.Sender != th {
				kept = append(kept, w)
			}
		}
		if len(kept) == 0 {
			delete(r.waits, k)
		} else {
			r.waits[k] = kept
		}
	}
}

// prune drops waits whose receivers have all finished. Their senders see
// the same state on their next step.
func (r *BroadcastRegistry) prune() {
	for k, list := range r.waits {
		kept := list[:0]
		for _, w := range list {
			if w.Pending() && (w.Sender == nil || !w.Sender.finished) {
				kept = append(kept, w)
			}
		}
		if len(kept) == 0 {
			delete(r.waits, k)
		} else {
			r.waits[k] = kept
		}
	}
}

func (r *BroadcastRegistry) reset() {
	r.waits = make(map[string][]*BroadcastWait)
}

// ---------------------------------------------------------------------------
// Broadcast queue
// ---------------------------------------------------------------------------

// RunBroadcasts drains the broadcast queue, starting receiver hats for each
// message in FIFO order. Broadcasts sent by the receivers are handled in the
// same pass, except that a message already dispatched in this pass waits
// for the next frame.
func (e *Executor) RunBroadcasts() {
	dispatched := make(map[string]bool)
	var deferred []string
	for len(e.broadcasts) > 0 {
		msg := e.broadcasts[0]
		e.broadcasts = e.broadcasts[1:]
		k := messageKey(msg)
		if dispatched[k] {
			deferred = append(deferred, msg)
			continue
		}
		dispatched[k] = true
		e.StartHats("event_whenbroadcastreceived", msg, nil)
		e.startPending()
	}
	e.broadcasts = deferred
}

func (e *Executor) queueBroadcast(message string) {
	k := messageKey(message)
	for _, m := range e.broadcasts {
		if messageKey(m) == k {
			return
		}
	}
	e.broadcasts = append(e.broadcasts, message)
}

// broadcastAndWait spawns the receivers of message and returns a wait
// tracking them. The receivers take their first step later in the same
// step pass, or on the next frame.
func (e *Executor) broadcastAndWait(sender *ScriptThread, message string) *BroadcastWait {
	receivers := e.spawnHats("event_whenbroadcastreceived", message, nil)
	w := newBroadcastWait(message, sender, receivers)
	if w.Pending() {
		e.waits.Add(w)
	}
	return w
}

// Waits exposes the broadcast registry.
func (e *Executor) Waits() *BroadcastRegistry { return e.waits }
