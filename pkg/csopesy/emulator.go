// Package csopesy wires the emulator's components together: config,
// backing store, memory manager, process repository, scheduler, and
// the interactive shell.
package csopesy

import (
	"io"
	"os"

	"github.com/former-xeneizes/csopesy-go/internal/backingstore"
	"github.com/former-xeneizes/csopesy-go/internal/config"
	"github.com/former-xeneizes/csopesy-go/internal/logging"
	"github.com/former-xeneizes/csopesy-go/internal/memory"
	"github.com/former-xeneizes/csopesy-go/internal/process"
	"github.com/former-xeneizes/csopesy-go/internal/scheduler"
	"github.com/former-xeneizes/csopesy-go/internal/shell"
)

// Emulator owns the configuration path and drives the shell loop.
// Everything else is built lazily on "initialize", since the
// emulator's config (and therefore frame size, core count, and
// overall memory) isn't known until then.
type Emulator struct {
	configPath       string
	backingStoreFile string
	logLevel         string

	sh *shell.Shell
}

// New returns an Emulator that reads its configuration from
// configPath on "initialize" and persists the backing store to
// backingStoreFile.
func New(configPath, backingStoreFile, logLevel string) *Emulator {
	return &Emulator{
		configPath:       configPath,
		backingStoreFile: backingStoreFile,
		logLevel:         logLevel,
	}
}

// Run starts the interactive shell over in/out, blocking until the
// user exits.
func (e *Emulator) Run(in io.Reader, out io.Writer) {
	logging.Init(e.logLevel, "csopesy")

	e.sh = shell.New(in, out, e.configPath, e.build)
	e.sh.Run()
}

// Shutdown stops the scheduler's worker pool, if one has been built.
// Called from a SIGINT/SIGTERM handler so the process doesn't leave
// core-loop goroutines running past the parent process's exit.
func (e *Emulator) Shutdown() {
	if e.sh != nil {
		e.sh.Stop()
	}
}

func (e *Emulator) build(cfg config.Config) (*process.Repository, *memory.Manager, *scheduler.Scheduler) {
	store, err := backingstore.Open(e.backingStoreFile)
	if err != nil {
		logging.Error.Error("failed to open backing store", "error", err)
		store, _ = backingstore.Open(os.DevNull)
	}

	repo := process.NewRepository()
	mem := memory.New(int(cfg.MaxOverallMem), int(cfg.MemPerFrame), store, repo)
	sched := scheduler.New(cfg, mem, repo)

	logging.Info.Info("emulator initialized",
		"num_cpu", cfg.NumCPU, "scheduler", cfg.Scheduler,
		"max_overall_mem", cfg.MaxOverallMem, "mem_per_frame", cfg.MemPerFrame)

	return repo, mem, sched
}
