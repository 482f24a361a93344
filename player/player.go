// Package player drives an executor at a fixed frame rate.
package player

import (
	"context"
	"fmt"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/sb3vm/vm"
)

var log = commonlog.GetLogger("sb3vm.player")

// Options configures Run.
type Options struct {
	// FPS is the target frame rate. Ignored in turbo mode.
	FPS int

	// Turbo runs frames back to back.
	Turbo bool

	// MaxFrames stops the loop after that many frames. Zero means no limit.
	MaxFrames uint64

	// KeepRunning keeps stepping after the project goes idle, so that
	// host events (keys, broadcasts) can still start scripts.
	KeepRunning bool

	// OnFrame, when set, is called after every frame.
	OnFrame func(ex *vm.Executor)
}

// StopReason says why Run returned.
type StopReason int

const (
	StopIdle StopReason = iota
	StopMaxFrames
	StopCanceled
)

func (r StopReason) String() string {
	switch r {
	case StopIdle:
		return "idle"
	case StopMaxFrames:
		return "frame limit"
	case StopCanceled:
		return "canceled"
	}
	return "unknown"
}

// Result summarizes a Run.
type Result struct {
	Frames  uint64
	Reason  StopReason
	Elapsed time.Duration
}

// Run steps ex until it goes idle, the frame limit is reached or ctx is
// canceled. Cancellation is reported through Result.Reason; the returned
// error is reserved for invalid options.
func Run(ctx context.Context, ex *vm.Executor, opts Options) (Result, error) {
	if !opts.Turbo && opts.FPS <= 0 {
		return Result{}, fmt.Errorf("player: fps must be positive, got %d", opts.FPS)
	}

	var tick <-chan time.Time
	if !opts.Turbo {
		ticker := time.NewTicker(time.Second / time.Duration(opts.FPS))
		defer ticker.Stop()
		tick = ticker.C
	}

	start := time.Now()
	res := Result{}
	finish := func(reason StopReason) (Result, error) {
		res.Reason = reason
		res.Elapsed = time.Since(start)
		log.Infof("player: stopped after %d frames (%s)", res.Frames, reason)
		return res, nil
	}

	for {
		if ctx.Err() != nil {
			return finish(StopCanceled)
		}

		ex.RunThreads()
		res.Frames++
		if opts.OnFrame != nil {
			opts.OnFrame(ex)
		}

		if opts.MaxFrames > 0 && res.Frames >= opts.MaxFrames {
			return finish(StopMaxFrames)
		}
		if !opts.KeepRunning && ex.Idle() {
			return finish(StopIdle)
		}

		if tick == nil {
			continue
		}
		select {
		case <-ctx.Done():
			return finish(StopCanceled)
		case <-tick:
		}
	}
}
