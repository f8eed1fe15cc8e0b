package process

import (
	"fmt"
	"sync"

	"github.com/former-xeneizes/csopesy-go/internal/emuerr"
	"github.com/former-xeneizes/csopesy-go/internal/lockorder"
)

// Repository is the name-keyed process table shared by the scheduler
// and the shell. Its mutex sits below the scheduler and memory-manager
// mutexes and above any individual Process.Mu in the documented global
// lock order.
type Repository struct {
	mu      sync.Mutex
	byName  map[string]*Process
	nextID  int
}

// NewRepository returns an empty repository.
func NewRepository() *Repository {
	return &Repository{
		byName: make(map[string]*Process),
	}
}

// Create allocates a new process record under name, failing with
// emuerr.ErrDuplicateName if the name is already registered.
func (r *Repository) Create(name string) (*Process, error) {
	r.lock()
	defer r.unlock()

	if _, exists := r.byName[name]; exists {
		return nil, emuerr.ErrDuplicateName
	}

	r.nextID++
	p := New(name, r.nextID)
	r.byName[name] = p
	return p, nil
}

// AutoName returns the next "processNN" generated name, zero-padded to
// two digits below 100 and unpadded above it, matching the original's
// gen_auto_name.
func (r *Repository) AutoName() string {
	r.lock()
	n := r.nextID + 1
	r.unlock()
	if n < 100 {
		return fmt.Sprintf("process%02d", n)
	}
	return fmt.Sprintf("process%d", n)
}

// Lookup returns the process registered under name, if any.
func (r *Repository) Lookup(name string) (*Process, bool) {
	r.lock()
	defer r.unlock()
	p, ok := r.byName[name]
	return p, ok
}

// All returns a snapshot slice of every registered process, in an
// unspecified order.
func (r *Repository) All() []*Process {
	r.lock()
	defer r.unlock()
	out := make([]*Process, 0, len(r.byName))
	for _, p := range r.byName {
		out = append(out, p)
	}
	return out
}

// Count returns the number of registered processes.
func (r *Repository) Count() int {
	r.lock()
	defer r.unlock()
	return len(r.byName)
}

// lock/unlock wrap r.mu with the debug lock-order tracker.
func (r *Repository) lock() {
	lockorder.Acquire(lockorder.LevelRepository)
	r.mu.Lock()
}

func (r *Repository) unlock() {
	r.mu.Unlock()
	lockorder.Release(lockorder.LevelRepository)
}
