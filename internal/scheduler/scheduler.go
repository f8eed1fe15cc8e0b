// Package scheduler implements the ready queue, worker pool, and
// batch generator described in the emulator's component design: FCFS
// and Round-Robin dispatch over a FIFO ready queue, one worker
// goroutine per configured core, and a periodic generator that
// synthesizes new processes.
package scheduler

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/former-xeneizes/csopesy-go/internal/config"
	"github.com/former-xeneizes/csopesy-go/internal/interpreter"
	"github.com/former-xeneizes/csopesy-go/internal/lockorder"
	"github.com/former-xeneizes/csopesy-go/internal/logging"
	"github.com/former-xeneizes/csopesy-go/internal/memory"
	"github.com/former-xeneizes/csopesy-go/internal/process"
)

// pollInterval is how long a worker waits on the ready queue before
// re-checking the running flag, matching the 100ms poll the original
// scheduler's core_loop uses.
const pollInterval = 100 * time.Millisecond

// Scheduler owns the ready queue and the goroutine pool that drains
// it. Its mutex sits at the top of the documented global lock order:
// scheduler -> memory manager -> repository -> per-process.
type Scheduler struct {
	cfg  config.Config
	mem  *memory.Manager
	repo *process.Repository

	mu         sync.Mutex
	readyQueue []*process.Process
	wake       chan struct{}
	coreProc   []*process.Process

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	totalTicks  atomic.Uint64
	activeTicks atomic.Uint64
	idleTicks   atomic.Uint64
	activeCores atomic.Int32

	usedMemory atomic.Int64
	freeMemory atomic.Int64

	nextAutoID atomic.Int64
}

// New builds a Scheduler over cfg, ready to Start once.
func New(cfg config.Config, mem *memory.Manager, repo *process.Repository) *Scheduler {
	s := &Scheduler{
		cfg:      cfg,
		mem:      mem,
		repo:     repo,
		wake:     make(chan struct{}, 1),
		coreProc: make([]*process.Process, cfg.NumCPU),
	}
	s.freeMemory.Store(int64(cfg.MaxOverallMem))
	return s
}

// AddProcess enqueues p onto the ready queue, snapshotting
// TotalInstructions from its code first if non-empty. The per-process
// mutex (inside SnapshotTotalInstructions) is always taken before the
// queue mutex, per the documented lock order.
func (s *Scheduler) AddProcess(p *process.Process) {
	p.SnapshotTotalInstructions()

	s.lock()
	s.readyQueue = append(s.readyQueue, p)
	s.unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Start spawns num-cpu worker goroutines and one batch-generator
// goroutine. Idempotent: calling Start while already running is a
// no-op.
func (s *Scheduler) Start() {
	if s.running.Load() {
		return
	}
	s.running.Store(true)
	s.stopCh = make(chan struct{})

	logging.Info.Info("scheduler started", "policy", s.cfg.Scheduler, "cores", s.cfg.NumCPU)

	for i := 0; i < s.cfg.NumCPU; i++ {
		s.wg.Add(1)
		go s.coreLoop(i)
	}
	s.wg.Add(1)
	go s.batchLoop()
}

// Stop clears the running flag, wakes every worker, and joins all
// goroutines before returning.
func (s *Scheduler) Stop() {
	if !s.running.Load() {
		return
	}
	s.running.Store(false)
	close(s.stopCh)
	s.wg.Wait()
	logging.Info.Info("scheduler stopped")
}

// IsRunning reports whether the scheduler is currently dispatching.
func (s *Scheduler) IsRunning() bool { return s.running.Load() }

// CoreProcesses returns a snapshot of which process (if any) occupies
// each core, for reporting.
func (s *Scheduler) CoreProcesses() []*process.Process {
	s.lock()
	defer s.unlock()
	out := make([]*process.Process, len(s.coreProc))
	copy(out, s.coreProc)
	return out
}

// ReadyQueueLength returns the current number of processes waiting to
// run.
func (s *Scheduler) ReadyQueueLength() int {
	s.lock()
	defer s.unlock()
	return len(s.readyQueue)
}

// Stats is a snapshot of the scheduler's atomic counters, used by the
// vmstat report.
type Stats struct {
	TotalTicks  uint64
	ActiveTicks uint64
	IdleTicks   uint64
	ActiveCores int32
	UsedMemory  int64
	FreeMemory  int64
}

// Stats returns a consistent-enough snapshot of the scheduler's
// counters (each loaded independently; they are documented as
// "eventually consistent across threads").
func (s *Scheduler) Stats() Stats {
	return Stats{
		TotalTicks:  s.totalTicks.Load(),
		ActiveTicks: s.activeTicks.Load(),
		IdleTicks:   s.idleTicks.Load(),
		ActiveCores: s.activeCores.Load(),
		UsedMemory:  s.usedMemory.Load(),
		FreeMemory:  s.freeMemory.Load(),
	}
}

func (s *Scheduler) popReady() *process.Process {
	s.lock()
	defer s.unlock()
	if len(s.readyQueue) == 0 {
		return nil
	}
	p := s.readyQueue[0]
	s.readyQueue = s.readyQueue[1:]
	return p
}

func (s *Scheduler) requeue(p *process.Process) {
	s.lock()
	s.readyQueue = append(s.readyQueue, p)
	s.unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) coreLoop(coreID int) {
	defer s.wg.Done()

	for {
		s.totalTicks.Add(1)

		select {
		case <-s.stopCh:
			return
		case <-s.wake:
		case <-time.After(pollInterval):
		}

		if !s.running.Load() {
			return
		}

		p := s.popReady()
		if p == nil {
			s.idleTicks.Add(1)
			continue
		}
		s.activeTicks.Add(1)

		s.lock()
		s.coreProc[coreID] = p
		s.unlock()
		s.activeCores.Add(1)

		p.AssignedCore.Store(int32(coreID))
		p.AppendLogCore(coreID, fmt.Sprintf("Picked process %s", p.Name))

		s.prefault(p)

		switch s.cfg.Scheduler {
		case "fcfs":
			s.runToCompletion(p, coreID)
		default: // "rr"
			s.runQuantum(p, coreID)
		}

		s.lock()
		s.coreProc[coreID] = nil
		s.unlock()
		s.activeCores.Add(-1)
	}
}

// prefault loads every page of p before execution begins, per the
// documented worker-loop contract. Access violations here cannot
// happen for code generated by the batch generator, since it issues
// no memory accesses; a violation only surfaces through shellexec's
// interactive READ/WRITE.
func (s *Scheduler) prefault(p *process.Process) {
	frameSize := s.mem.FrameSize()
	if frameSize == 0 {
		return
	}
	pages := p.NumPagesValue()
	for i := 0; i < pages; i++ {
		_ = s.mem.EnsurePageLoaded(p, uint32(i*frameSize))
	}
}

func (s *Scheduler) runToCompletion(p *process.Process, coreID int) {
	delay := execDelay(s.cfg.DelayPerExec)
	for int(p.CurrentInstruction.Load()) < p.TotalInstructions && s.running.Load() {
		s.stepInstruction(p, delay)
	}
	s.finish(p, coreID, "FCFS")
}

func (s *Scheduler) runQuantum(p *process.Process, coreID int) {
	delay := execDelay(s.cfg.DelayPerExec)
	quantum := int(s.cfg.QuantumCycles)
	for q := 0; q < quantum && s.running.Load(); q++ {
		if int(p.CurrentInstruction.Load()) >= p.TotalInstructions {
			break
		}
		s.stepInstruction(p, delay)
	}

	if int(p.CurrentInstruction.Load()) >= p.TotalInstructions {
		s.finish(p, coreID, "RR")
		return
	}

	p.AssignedCore.Store(-1)
	s.requeue(p)
}

func (s *Scheduler) stepInstruction(p *process.Process, delay time.Duration) {
	idx := int(p.CurrentInstruction.Load())
	if line, ok := p.InstructionAt(idx); ok {
		interpreter.Execute(p, line)
	}
	time.Sleep(delay)
	p.CurrentInstruction.Add(1)
}

func (s *Scheduler) finish(p *process.Process, coreID int, policy string) {
	p.MarkFinished()
	p.AppendLogCore(coreID, fmt.Sprintf("%s job finished", policy))

	memBytes := int64(p.MemBytesValue())
	s.mem.Free(p)
	if p.TakeMemoryAccounted() {
		s.usedMemory.Add(-memBytes)
		s.freeMemory.Add(memBytes)
	}
}

// Allocate wires a fresh allocation through the memory manager and
// keeps the scheduler's used/free memory counters in step with it,
// marking the process so finish reverses exactly what was accounted
// for here. Every allocation path (screen -s, screen -c, the batch
// generator) must go through this rather than calling mem.Allocate
// directly, or used_memory/free_memory drift out of sync with what
// finish later reverses.
func (s *Scheduler) Allocate(p *process.Process, memBytes int) error {
	if err := s.mem.Allocate(p, memBytes); err != nil {
		return err
	}
	s.freeMemory.Add(-int64(memBytes))
	s.usedMemory.Add(int64(memBytes))
	p.MarkMemoryAccounted()
	return nil
}

func execDelay(delayPerExec uint32) time.Duration {
	if delayPerExec == 0 {
		return time.Millisecond
	}
	return time.Duration(delayPerExec) * time.Millisecond
}

func (s *Scheduler) batchLoop() {
	defer s.wg.Done()

	interval := time.Duration(s.cfg.BatchProcessFreq) * time.Second

	for {
		select {
		case <-s.stopCh:
			return
		case <-time.After(interval):
		}
		if !s.running.Load() {
			return
		}
		s.spawnBatchProcess()
	}
}

func (s *Scheduler) spawnBatchProcess() {
	name := s.repo.AutoName()
	p, err := s.repo.Create(name)
	if err != nil {
		logging.Error.Error("batch generator: duplicate name", "name", name, "error", err)
		return
	}

	span := int(s.cfg.MaxIns - s.cfg.MinIns + 1)
	if span < 1 {
		span = 1
	}
	numIns := int(s.cfg.MinIns) + rand.Intn(span)
	process.GenerateDummyInstructions(p, numIns)
	p.AppendLog(fmt.Sprintf("Generated %d randomized instructions", numIns))

	frameBytes := s.mem.FrameSize()
	minFrames := int(s.cfg.MinMemPerProc) / frameBytes
	if minFrames < 1 {
		minFrames = 1
	}
	maxFrames := int(s.cfg.MaxMemPerProc) / frameBytes
	if maxFrames < minFrames {
		maxFrames = minFrames
	}
	frames := minFrames + rand.Intn(maxFrames-minFrames+1)
	memBytes := frames * frameBytes

	if err := s.Allocate(p, memBytes); err != nil {
		// Open question, documented in SPEC_FULL.md/DESIGN.md: the
		// original enqueues the process even when allocation fails.
		// Preserved here rather than silently fixed.
		logging.Error.Error("batch generator: allocation refused", "process", p.Name, "mem_bytes", memBytes, "error", err)
	}

	s.AddProcess(p)
}

func (s *Scheduler) lock() {
	lockorder.Acquire(lockorder.LevelScheduler)
	s.mu.Lock()
}

func (s *Scheduler) unlock() {
	s.mu.Unlock()
	lockorder.Release(lockorder.LevelScheduler)
}
