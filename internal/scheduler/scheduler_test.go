package scheduler

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/former-xeneizes/csopesy-go/internal/backingstore"
	"github.com/former-xeneizes/csopesy-go/internal/config"
	"github.com/former-xeneizes/csopesy-go/internal/memory"
	"github.com/former-xeneizes/csopesy-go/internal/process"
)

func newTestEnv(t *testing.T, cfg config.Config) (*Scheduler, *process.Repository) {
	t.Helper()
	store, err := backingstore.Open(filepath.Join(t.TempDir(), "store.txt"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	repo := process.NewRepository()
	mem := memory.New(int(cfg.MaxOverallMem), int(cfg.MemPerFrame), store, repo)
	return New(cfg, mem, repo), repo
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestFCFSRunsProcessToCompletion(t *testing.T) {
	cfg := config.Default()
	cfg.Scheduler = "fcfs"
	cfg.NumCPU = 1
	cfg.DelayPerExec = 0
	cfg.MemPerFrame = 64
	cfg.MaxOverallMem = 256
	cfg.MinMemPerProc = 64
	cfg.MaxMemPerProc = 64

	s, repo := newTestEnv(t, cfg)

	p, err := repo.Create("process01")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.mem.Allocate(p, 64); err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	process.GenerateDummyInstructions(p, 3)

	s.Start()
	defer s.Stop()
	s.AddProcess(p)

	waitUntil(t, 2*time.Second, func() bool { return p.Finished.Load() })

	if p.AssignedCore.Load() != -1 {
		t.Errorf("AssignedCore after finish = %d; want -1", p.AssignedCore.Load())
	}
	if int(p.CurrentInstruction.Load()) != p.TotalInstructions {
		t.Errorf("CurrentInstruction = %d; want %d", p.CurrentInstruction.Load(), p.TotalInstructions)
	}
}

func TestRoundRobinRequeuesUnfinishedProcess(t *testing.T) {
	cfg := config.Default()
	cfg.Scheduler = "rr"
	cfg.NumCPU = 1
	cfg.QuantumCycles = 1
	cfg.DelayPerExec = 0
	cfg.MemPerFrame = 64
	cfg.MaxOverallMem = 256
	cfg.MinMemPerProc = 64
	cfg.MaxMemPerProc = 64

	s, repo := newTestEnv(t, cfg)

	p, _ := repo.Create("process01")
	if err := s.mem.Allocate(p, 64); err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	process.GenerateDummyInstructions(p, 5)

	s.Start()
	defer s.Stop()
	s.AddProcess(p)

	waitUntil(t, 3*time.Second, func() bool { return p.Finished.Load() })
}

func TestBatchGeneratorCreatesAndEnqueuesProcesses(t *testing.T) {
	cfg := config.Default()
	cfg.Scheduler = "fcfs"
	cfg.NumCPU = 1
	cfg.BatchProcessFreq = 1
	cfg.MinIns = 1
	cfg.MaxIns = 1
	cfg.MemPerFrame = 64
	cfg.MaxOverallMem = 1024
	cfg.MinMemPerProc = 64
	cfg.MaxMemPerProc = 64

	s, repo := newTestEnv(t, cfg)

	s.Start()
	defer s.Stop()

	waitUntil(t, 3*time.Second, func() bool { return repo.Count() >= 1 })

	// A generated process only finishes if it was enqueued and picked up
	// by a worker.
	waitUntil(t, 3*time.Second, func() bool {
		for _, p := range repo.All() {
			if p.Finished.Load() {
				return true
			}
		}
		return false
	})
}
