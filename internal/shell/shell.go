// Package shell implements the interactive top-level and
// per-process-screen command surfaces: initialize, exit, screen
// -s/-r/-c/-ls, scheduler-start/-stop, report-util, vmstat, and
// process-smi.
package shell

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/former-xeneizes/csopesy-go/internal/config"
	"github.com/former-xeneizes/csopesy-go/internal/emuerr"
	"github.com/former-xeneizes/csopesy-go/internal/memory"
	"github.com/former-xeneizes/csopesy-go/internal/process"
	"github.com/former-xeneizes/csopesy-go/internal/report"
	"github.com/former-xeneizes/csopesy-go/internal/scheduler"
	"github.com/former-xeneizes/csopesy-go/internal/shellexec"
)

// ReportUtilFile is the path "report-util" writes to.
const ReportUtilFile = "csopesy-log.txt"

// Shell runs the top-level command loop. It is not itself
// initialized until the user types "initialize"; everything else
// requires it.
type Shell struct {
	out io.Writer
	in  *bufio.Reader

	configPath string
	cfg        config.Config
	repo       *process.Repository
	mem        *memory.Manager
	sched      *scheduler.Scheduler

	initialized bool
	transcript  *logrus.Entry

	// buildFn wires a fresh config/memory/repo/scheduler stack; set by
	// the caller (pkg/csopesy) so this package stays independent of
	// the concrete backing-store/logging bootstrap.
	buildFn func(cfg config.Config) (*process.Repository, *memory.Manager, *scheduler.Scheduler)
}

// New builds a Shell reading commands from in and writing output to
// out. configPath names the configuration file "initialize" loads.
// build is called once, after a successful "initialize", to wire the
// repository/memory manager/scheduler stack for the given config.
func New(in io.Reader, out io.Writer, configPath string, build func(cfg config.Config) (*process.Repository, *memory.Manager, *scheduler.Scheduler)) *Shell {
	return &Shell{
		out:        out,
		in:         bufio.NewReader(in),
		configPath: configPath,
		buildFn:    build,
		transcript: logrus.WithField("component", "shell"),
	}
}

// Run drives the top-level command loop until "exit" or EOF.
func (s *Shell) Run() {
	fmt.Fprintln(s.out, "Welcome to CSOPESY!")
	fmt.Fprintln(s.out)

	for {
		fmt.Fprint(s.out, "root:\\> ")
		line, err := s.in.ReadString('\n')
		if err != nil && line == "" {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		s.transcript.WithField("command", line).Debug("main menu command")

		if !s.dispatch(line) {
			break
		}
	}

	s.Stop()
}

// Stop stops the scheduler's worker pool, if one has been built. Safe
// to call more than once, and safe to call before initialization.
func (s *Shell) Stop() {
	if s.sched != nil {
		s.sched.Stop()
	}
}

func (s *Shell) dispatch(line string) bool {
	fields := strings.Fields(line)
	root := fields[0]
	args := fields[1:]

	if root == "exit" {
		return false
	}

	if root == "initialize" {
		s.handleInitialize()
		return true
	}

	if !s.initialized {
		fmt.Fprintln(s.out, "Not initialized. Run 'initialize' first.")
		return true
	}

	switch root {
	case "screen":
		s.handleScreen(args)
	case "scheduler-start":
		s.sched.Start()
		fmt.Fprintln(s.out, "Scheduler started.")
	case "scheduler-stop":
		s.sched.Stop()
		fmt.Fprintln(s.out, "Scheduler stopped.")
	case "report-util":
		if err := report.SaveReportUtil(ReportUtilFile, s.sched, s.repo, s.cfg.NumCPU); err != nil {
			fmt.Fprintln(s.out, err)
			return true
		}
		fmt.Fprintf(s.out, "Saved report to %s\n", ReportUtilFile)
	case "vmstat":
		report.VMStat(s.out, s.sched, s.mem)
	case "process-smi":
		s.printSMIOfAll()
	default:
		fmt.Fprintln(s.out, "Unknown command. Available: initialize, exit, screen -s/-r/-c/-ls, scheduler-start, scheduler-stop, report-util, vmstat, process-smi")
	}
	return true
}

func (s *Shell) handleInitialize() {
	cfg, err := config.Load(s.configPath)
	if err != nil {
		fmt.Fprintf(s.out, "Failed to load configuration: %v\n", err)
		return
	}
	s.cfg = cfg
	s.repo, s.mem, s.sched = s.buildFn(cfg)
	s.initialized = true
	fmt.Fprintln(s.out, "Initialized.")
}

func (s *Shell) printSMIOfAll() {
	for _, p := range s.repo.All() {
		report.ProcessSMI(s.out, p)
	}
}

func (s *Shell) handleScreen(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.out, "Usage: screen -s|-r|-c|-ls ...")
		return
	}

	switch args[0] {
	case "-ls":
		s.listProcesses()
	case "-s":
		s.screenCreate(args[1:])
	case "-c":
		s.screenCreateBatch(args[1:])
	case "-r":
		s.screenResume(args[1:])
	default:
		fmt.Fprintln(s.out, "Usage: screen -s|-r|-c|-ls ...")
	}
}

func (s *Shell) listProcesses() {
	stats := s.sched.Stats()
	fmt.Fprintf(s.out, "Cores used: %d / %d\n", stats.ActiveCores, s.cfg.NumCPU)
	fmt.Fprintln(s.out, "-----------------------------")
	for _, p := range s.repo.All() {
		state := "READY"
		switch {
		case p.Finished.Load():
			state = "FINISHED"
		case p.AssignedCore.Load() >= 0:
			state = fmt.Sprintf("RUNNING (core %d)", p.AssignedCore.Load())
		}
		fmt.Fprintf(s.out, "%s\t%s\t%d / %d\n", p.Name, state, p.CurrentInstruction.Load(), p.TotalInstructions)
	}
}

func (s *Shell) screenCreate(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.out, "Usage: screen -s <name> <mem>")
		return
	}
	name := args[0]
	memBytes, err := strconv.Atoi(args[1])
	if err != nil || !config.IsPowerOfTwo(uint32(memBytes)) {
		fmt.Fprintln(s.out, "invalid memory allocation")
		return
	}

	p, err := s.repo.Create(name)
	if err != nil {
		fmt.Fprintf(s.out, "%v\n", err)
		return
	}
	if err := s.sched.Allocate(p, memBytes); err != nil {
		fmt.Fprintln(s.out, "invalid memory allocation")
		return
	}
	s.attachScreen(p)
}

func (s *Shell) screenCreateBatch(args []string) {
	if len(args) < 3 {
		fmt.Fprintln(s.out, "Usage: screen -c <name> <mem> \"i1; i2; ...\"")
		return
	}
	name := args[0]
	memBytes, err := strconv.Atoi(args[1])
	if err != nil || !config.IsPowerOfTwo(uint32(memBytes)) {
		fmt.Fprintln(s.out, "invalid memory allocation")
		return
	}
	batch := strings.Join(args[2:], " ")
	batch = strings.Trim(batch, "\"")

	lines, err := shellexec.ParseBatch(batch)
	if err != nil {
		fmt.Fprintf(s.out, "%v\n", err)
		return
	}

	p, err := s.repo.Create(name)
	if err != nil {
		fmt.Fprintf(s.out, "%v\n", err)
		return
	}
	if err := s.sched.Allocate(p, memBytes); err != nil {
		fmt.Fprintln(s.out, "invalid memory allocation")
		return
	}

	p.Mu.Lock()
	p.Code = append(p.Code, lines...)
	p.TotalInstructions = len(p.Code)
	p.Mu.Unlock()

	s.sched.AddProcess(p)
	fmt.Fprintf(s.out, "Process %s added to scheduler queue.\n", name)
}

func (s *Shell) screenResume(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: screen -r <name>")
		return
	}
	p, ok := s.repo.Lookup(args[0])
	if !ok {
		fmt.Fprintf(s.out, "Process %s not found.\n", args[0])
		return
	}
	s.attachScreen(p)
}

func (s *Shell) attachScreen(p *process.Process) {
	fmt.Fprintf(s.out, "Attached to %s. Type 'exit' to detach.\n", p.Name)
	for {
		fmt.Fprintf(s.out, "%s> ", p.Name)
		line, err := s.in.ReadString('\n')
		if err != nil && line == "" {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		s.transcript.WithFields(logrus.Fields{"process": p.Name, "command": line}).Debug("process screen command")

		upper := strings.ToUpper(line)
		switch {
		case upper == "EXIT":
			if !p.Finished.Load() {
				s.sched.AddProcess(p)
				fmt.Fprintf(s.out, "[Info] Process %s added to scheduler queue.\n", p.Name)
			}
			return
		case upper == "PROCESS-SMI" || upper == "PROCESS_SMI":
			report.ProcessSMI(s.out, p)
		case upper == "VMSTAT":
			report.VMStat(s.out, s.sched, s.mem)
		default:
			msg, err := shellexec.Run(p, s.mem, upperFirstWord(line))
			if err != nil {
				if err == emuerr.ErrInvalidCommand {
					fmt.Fprintln(s.out, "Unknown command inside screen. Available: process-smi, vmstat, exit, declare, add, sub, print, sleep, for, read, write")
				} else {
					fmt.Fprintln(s.out, err)
				}
				continue
			}
			fmt.Fprintln(s.out, msg)
		}
	}
}

// upperFirstWord upper-cases only the opcode token, leaving operands
// (which may be case-sensitive symbol names) untouched.
func upperFirstWord(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return line
	}
	fields[0] = strings.ToUpper(fields[0])
	return strings.Join(fields, " ")
}
