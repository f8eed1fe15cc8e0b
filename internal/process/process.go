// Package process defines the process record and its repository: the
// per-process state shared between the scheduler, the memory manager,
// and the interactive shell.
package process

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/former-xeneizes/csopesy-go/internal/emuerr"
)

// MaxSymbols bounds the per-process local symbol table, per the data
// model's invariant (spec §3).
const MaxSymbols = 32

// State is a derived view of a process's position in the lifecycle
// state machine (NEW -> READY -> RUNNING -> READY|TERMINATED). It is
// not stored directly; it is computed from Finished/AssignedCore and
// queue membership known to the caller.
type State string

const (
	StateNew        State = "NEW"
	StateReady      State = "READY"
	StateRunning    State = "RUNNING"
	StateTerminated State = "TERMINATED"
)

// LogEntry is a single timestamped line appended to a process's log,
// in the "MM/DD/YYYY HH:MM:SSAM" timestamp format the original
// emulator uses.
type LogEntry struct {
	Timestamp string
	Message   string
}

// Process is a single synthetic process's complete record: identity,
// page table, local symbol table, instruction lines, log, and
// progress counters. All fields not covered by the atomic counters
// below are guarded by Mu.
type Process struct {
	Name       string
	ID         int
	InstanceID uuid.UUID

	CreatedAt time.Time

	Mu sync.Mutex

	MemBytes     int
	memAccounted bool  // whether MemBytes was added to the scheduler's used/free counters
	PageTable    []int // -1 means "not resident"; index into the frame pool otherwise
	NumPages     int

	Vars map[string]uint16

	Code []string
	Logs []LogEntry

	TotalInstructions int

	// Mutated far more often than the fields above, and read by every
	// worker on every tick; kept atomic so readers don't need Mu.
	CurrentInstruction atomic.Int32
	AssignedCore       atomic.Int32
	Finished           atomic.Bool
}

// New constructs a process record with the given name and numeric id.
// It does not register the process anywhere; use Repository.Create
// for that.
func New(name string, id int) *Process {
	p := &Process{
		Name:       name,
		ID:         id,
		InstanceID: uuid.New(),
		CreatedAt:  time.Now(),
		Vars:       make(map[string]uint16),
	}
	p.AssignedCore.Store(-1)
	p.AppendLog(fmt.Sprintf("Hello world from %s!", name))
	return p
}

// timestampNow formats the current time as "MM/DD/YYYY HH:MM:SSAM",
// matching the original emulator's log timestamp format.
func timestampNow() string {
	return time.Now().Format("01/02/2006 03:04:05PM")
}

// AppendLog appends a timestamped line to the process log. Safe for
// concurrent use; acquires Mu.
func (p *Process) AppendLog(msg string) {
	p.Mu.Lock()
	defer p.Mu.Unlock()
	p.Logs = append(p.Logs, LogEntry{Timestamp: timestampNow(), Message: msg})
}

// AppendLogCore is AppendLog prefixed with the executing core, mirroring
// the original's "Core N: <msg>" convention.
func (p *Process) AppendLogCore(core int, msg string) {
	p.AppendLog(fmt.Sprintf("Core %d: %s", core, msg))
}

// DerivedState computes the process's lifecycle state from its
// counters. inReadyQueue must be supplied by the caller (the
// scheduler), since queue membership isn't stored on the record.
func (p *Process) DerivedState(inReadyQueue bool) State {
	if p.Finished.Load() {
		return StateTerminated
	}
	if p.AssignedCore.Load() >= 0 {
		return StateRunning
	}
	if inReadyQueue {
		return StateReady
	}
	return StateNew
}

// SetSymbol stores a value in the process's local symbol table,
// rejecting growth past MaxSymbols for variables not already present.
func (p *Process) SetSymbol(name string, value uint16) error {
	p.Mu.Lock()
	defer p.Mu.Unlock()
	if _, exists := p.Vars[name]; !exists && len(p.Vars) >= MaxSymbols {
		return emuerr.ErrSymbolTableFull
	}
	p.Vars[name] = value
	return nil
}

// Symbol reads a value from the local symbol table, inserting a zero
// entry if the name is unknown and the table is below MaxSymbols
// (matching resolve()'s fallback behavior in the instruction
// interpreters). When the table is full, an unknown name reads as zero
// and is not inserted.
func (p *Process) Symbol(name string) uint16 {
	p.Mu.Lock()
	defer p.Mu.Unlock()
	v, ok := p.Vars[name]
	if !ok {
		if len(p.Vars) < MaxSymbols {
			p.Vars[name] = 0
		}
		return 0
	}
	return v
}

// SnapshotTotalInstructions sets TotalInstructions from the current
// length of Code if Code is non-empty, and returns it. It takes Mu
// itself; Scheduler.AddProcess calls it before taking the queue mutex,
// per the documented lock order.
func (p *Process) SnapshotTotalInstructions() int {
	p.Mu.Lock()
	defer p.Mu.Unlock()
	if len(p.Code) > 0 {
		p.TotalInstructions = len(p.Code)
	}
	return p.TotalInstructions
}

// InstructionAt returns the instruction line at idx, under Mu.
func (p *Process) InstructionAt(idx int) (string, bool) {
	p.Mu.Lock()
	defer p.Mu.Unlock()
	if idx < 0 || idx >= len(p.Code) {
		return "", false
	}
	return p.Code[idx], true
}

// MarkFinished sets the terminal state: Finished=true, AssignedCore=-1,
// CurrentInstruction clamped to TotalInstructions.
func (p *Process) MarkFinished() {
	p.Mu.Lock()
	total := p.TotalInstructions
	p.Mu.Unlock()
	p.CurrentInstruction.Store(int32(total))
	p.AssignedCore.Store(-1)
	p.Finished.Store(true)
}

// AllocatePages (re)sizes the page table to numPages entries, all
// marked not-resident (-1), and records NumPages/MemBytes.
func (p *Process) AllocatePages(numPages, memBytes int) {
	p.Mu.Lock()
	defer p.Mu.Unlock()
	p.PageTable = make([]int, numPages)
	for i := range p.PageTable {
		p.PageTable[i] = -1
	}
	p.NumPages = numPages
	p.MemBytes = memBytes
}

// ReleasePages clears the page table, marking the process as having
// no resident memory.
func (p *Process) ReleasePages() {
	p.Mu.Lock()
	defer p.Mu.Unlock()
	p.PageTable = nil
	p.NumPages = 0
	p.MemBytes = 0
}

// MarkMemoryAccounted records that this process's allocation has been
// added to the scheduler's shared used/free memory counters.
func (p *Process) MarkMemoryAccounted() {
	p.Mu.Lock()
	defer p.Mu.Unlock()
	p.memAccounted = true
}

// TakeMemoryAccounted reports whether this process's allocation was
// accounted for in the scheduler's shared counters, clearing the flag
// so a caller reversing the accounting (on completion) does so exactly
// once.
func (p *Process) TakeMemoryAccounted() bool {
	p.Mu.Lock()
	defer p.Mu.Unlock()
	accounted := p.memAccounted
	p.memAccounted = false
	return accounted
}

// MemBytesValue returns the process's allocated memory size in bytes.
func (p *Process) MemBytesValue() int {
	p.Mu.Lock()
	defer p.Mu.Unlock()
	return p.MemBytes
}

// NumPagesValue returns the process's page table length.
func (p *Process) NumPagesValue() int {
	p.Mu.Lock()
	defer p.Mu.Unlock()
	return p.NumPages
}

// PageFrame returns the frame index resident for page pageIdx, or -1
// if pageIdx is out of range or not resident.
func (p *Process) PageFrame(pageIdx int) int {
	p.Mu.Lock()
	defer p.Mu.Unlock()
	if pageIdx < 0 || pageIdx >= len(p.PageTable) {
		return -1
	}
	return p.PageTable[pageIdx]
}

// SetPageFrame records that page pageIdx now resides in frame
// frameIdx (or -1 to mark it evicted). A no-op if pageIdx is out of
// range, matching the original's bounds-checked page table update.
func (p *Process) SetPageFrame(pageIdx, frameIdx int) {
	p.Mu.Lock()
	defer p.Mu.Unlock()
	if pageIdx < 0 || pageIdx >= len(p.PageTable) {
		return
	}
	p.PageTable[pageIdx] = frameIdx
}
