package vm

import (
	"sync"
	"sync/atomic"
)

// Profiler counts opcode executions and custom block calls so that hot
// scripts can be reported after a run. It is safe for concurrent readers
// while the executor records.

// OpcodeProfile holds profiling data for a single opcode.
type OpcodeProfile struct {
	Opcode string
	Count  uint64 // Atomic counter for executions
}

// ProcedureProfile holds profiling data for a single custom block.
type ProcedureProfile struct {
	Sprite   string
	ProcCode string
	Count    uint64 // Atomic counter for calls
	IsHot    bool   // True if threshold exceeded
}

// Profiler manages profiling for one executor.
type Profiler struct {
	opcodes    sync.Map // opcode -> *OpcodeProfile
	procedures sync.Map // procKey -> *ProcedureProfile

	// ProcedureHotThreshold is the call count at which a procedure is
	// reported as hot.
	ProcedureHotThreshold uint64

	// OnHot is called once when a procedure crosses the threshold.
	OnHot func(profile *ProcedureProfile)

	hotCount uint64
}

type procKey struct {
	sprite   string
	procCode string
}

// NewProfiler creates a profiler with the default threshold.
func NewProfiler() *Profiler {
	return &Profiler{ProcedureHotThreshold: 1000}
}

// WithProfiler records opcode and procedure counts into p.
func WithProfiler(p *Profiler) Option { return func(e *Executor) { e.profiler = p } }

// RecordOpcode increments the execution count for opcode.
func (p *Profiler) RecordOpcode(opcode string) {
	val, ok := p.opcodes.Load(opcode)
	if !ok {
		val, _ = p.opcodes.LoadOrStore(opcode, &OpcodeProfile{Opcode: opcode})
	}
	atomic.AddUint64(&val.(*OpcodeProfile).Count, 1)
}

// RecordProcedure increments the call count for a custom block. It returns
// true if this call made the procedure hot.
func (p *Profiler) RecordProcedure(sprite, procCode string) bool {
	key := procKey{sprite, procCode}
	val, _ := p.procedures.LoadOrStore(key, &ProcedureProfile{Sprite: sprite, ProcCode: procCode})
	profile := val.(*ProcedureProfile)

	count := atomic.AddUint64(&profile.Count, 1)
	if !profile.IsHot && p.ProcedureHotThreshold > 0 && count >= p.ProcedureHotThreshold {
		profile.IsHot = true
		atomic.AddUint64(&p.hotCount, 1)
		if p.OnHot != nil {
			p.OnHot(profile)
		}
		return true
	}
	return false
}

// OpcodeCount returns how often opcode ran.
func (p *Profiler) OpcodeCount(opcode string) uint64 {
	if val, ok := p.opcodes.Load(opcode); ok {
		return atomic.LoadUint64(&val.(*OpcodeProfile).Count)
	}
	return 0
}

// ProcedureCount returns how often a sprite's custom block was called.
func (p *Profiler) ProcedureCount(sprite, procCode string) uint64 {
	if val, ok := p.procedures.Load(procKey{sprite, procCode}); ok {
		return atomic.LoadUint64(&val.(*ProcedureProfile).Count)
	}
	return 0
}

// ProfilerStats holds aggregate profiling statistics.
type ProfilerStats struct {
	Opcodes        int    // Number of distinct opcodes seen
	Procedures     int    // Number of distinct procedures called
	HotProcedures  int    // Number of hot procedures
	OpcodeRuns     uint64 // Total opcode executions
	ProcedureCalls uint64 // Total procedure calls
}

// Stats returns aggregate profiling statistics.
func (p *Profiler) Stats() ProfilerStats {
	var stats ProfilerStats
	p.opcodes.Range(func(_, value any) bool {
		stats.Opcodes++
		stats.OpcodeRuns += atomic.LoadUint64(&value.(*OpcodeProfile).Count)
		return true
	})
	p.procedures.Range(func(_, value any) bool {
		profile := value.(*ProcedureProfile)
		stats.Procedures++
		stats.ProcedureCalls += atomic.LoadUint64(&profile.Count)
		if profile.IsHot {
			stats.HotProcedures++
		}
		return true
	})
	return stats
}

// TopOpcodes returns the n most frequently executed opcodes, most frequent
// first. Ties are ordered by opcode.
func (p *Profiler) TopOpcodes(n int) []OpcodeProfile {
	var all []OpcodeProfile
	p.opcodes.Range(func(_, value any) bool {
		profile := value.(*OpcodeProfile)
		all = append(all, OpcodeProfile{Opcode: profile.Opcode, Count: atomic.LoadUint64(&profile.Count)})
		return true
	})

	// Simple selection sort for top N (fine for small N)
	for i := 0; i < n && i < len(all); i++ {
		maxIdx := i
		for j := i + 1; j < len(all); j++ {
			if all[j].Count > all[maxIdx].Count ||
				(all[j].Count == all[maxIdx].Count && all[j].Opcode < all[maxIdx].Opcode) {
				maxIdx = j
			}
		}
		all[i], all[maxIdx] = all[maxIdx], all[i]
	}

	if n > len(all) {
		n = len(all)
	}
	return all[:n]
}

// HotProcedures returns every procedure that crossed the threshold.
func (p *Profiler) HotProcedures() []ProcedureProfile {
	var hot []ProcedureProfile
	p.procedures.Range(func(_, value any) bool {
		profile := value.(*ProcedureProfile)
		if profile.IsHot {
			hot = append(hot, ProcedureProfile{
				Sprite:   profile.Sprite,
				ProcCode: profile.ProcCode,
				Count:    atomic.LoadUint64(&profile.Count),
				IsHot:    true,
			})
		}
		return true
	})
	return hot
}

// Reset clears all profiling data.
func (p *Profiler) Reset() {
	p.opcodes = sync.Map{}
	p.procedures = sync.Map{}
	atomic.StoreUint64(&p.hotCount, 0)
}
