// Package lockorder is a debug-only helper that asserts the
// emulator's documented global lock order is never violated:
// scheduler -> memory manager -> repository -> per-process. It has no
// effect on correctness; it exists to turn a silent deadlock into an
// immediate, loud panic during development.
package lockorder

import (
	"fmt"
	"sync"
)

// Level identifies a rung in the documented lock order. Lower values
// must be acquired before higher ones by the same goroutine.
type Level int

const (
	LevelScheduler Level = iota
	LevelMemory
	LevelRepository
	LevelProcess
)

func (l Level) String() string {
	switch l {
	case LevelScheduler:
		return "scheduler"
	case LevelMemory:
		return "memory"
	case LevelRepository:
		return "repository"
	case LevelProcess:
		return "process"
	default:
		return "unknown"
	}
}

// Enabled gates the tracker's bookkeeping. Off by default; tests and
// debug builds can flip it on with SetEnabled(true).
var Enabled = false

func SetEnabled(v bool) { Enabled = v }

var (
	mu    sync.Mutex
	stack = map[uint64][]Level{}
)

// Acquire records that the calling goroutine is about to take a lock
// at level, panicking if it already holds a lock at or above that
// level (a genuine inversion of the documented order). Must be paired
// with a deferred Release(level) around the same critical section.
func Acquire(level Level) {
	if !Enabled {
		return
	}
	id := goroutineID()

	mu.Lock()
	defer mu.Unlock()

	held := stack[id]
	if len(held) > 0 && held[len(held)-1] >= level {
		panic(fmt.Sprintf("lockorder: inversion acquiring %s while holding %s", level, held[len(held)-1]))
	}
	stack[id] = append(held, level)
}

// Release pops the most recently acquired level for the calling
// goroutine.
func Release(level Level) {
	if !Enabled {
		return
	}
	id := goroutineID()

	mu.Lock()
	defer mu.Unlock()

	held := stack[id]
	if len(held) == 0 || held[len(held)-1] != level {
		panic(fmt.Sprintf("lockorder: Release(%s) does not match top of stack %v", level, held))
	}
	stack[id] = held[:len(held)-1]
}
