// Package report renders the shell's read-only views: vmstat,
// process-smi, and the report-util summary written to disk.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/former-xeneizes/csopesy-go/internal/memory"
	"github.com/former-xeneizes/csopesy-go/internal/process"
	"github.com/former-xeneizes/csopesy-go/internal/scheduler"
)

// Summary writes the top-level process summary (running + finished
// processes, core utilization) to out, in the format report-util
// persists to csopesy-log.txt.
func Summary(out io.Writer, sched *scheduler.Scheduler, repo *process.Repository, numCPU int) {
	stats := sched.Stats()
	utilization := 0.0
	if numCPU > 0 {
		utilization = 100.0 * float64(stats.ActiveCores) / float64(numCPU)
	}

	fmt.Fprintf(out, "CPU Utilization: %.2f%%\n", utilization)
	fmt.Fprintf(out, "Cores used: %d\n", stats.ActiveCores)
	fmt.Fprintf(out, "Cores available: %d\n", numCPU-int(stats.ActiveCores))
	fmt.Fprintln(out, strings.Repeat("-", 53))
	fmt.Fprintln(out, "Running Processes:")

	all := repo.All()
	for _, p := range all {
		if p.Finished.Load() || p.AssignedCore.Load() < 0 {
			continue
		}
		fmt.Fprintf(out, "%s\t(%s)\tCore: %d\t%d / %d\n",
			p.Name, p.CreatedAt.Format("01/02/2006 03:04:05PM"),
			p.AssignedCore.Load(), p.CurrentInstruction.Load(), p.TotalInstructions)
	}

	fmt.Fprintln(out, "\nFinished Processes:")
	for _, p := range all {
		if !p.Finished.Load() {
			continue
		}
		fmt.Fprintf(out, "%s\t(%s)\tFinished\t%d / %d\n",
			p.Name, p.CreatedAt.Format("01/02/2006 03:04:05PM"),
			p.TotalInstructions, p.TotalInstructions)
	}
	fmt.Fprintln(out, strings.Repeat("-", 53))
}

// SaveReportUtil writes Summary to path, the file the shell's
// "report-util" command produces.
func SaveReportUtil(path string, sched *scheduler.Scheduler, repo *process.Repository, numCPU int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	defer f.Close()
	Summary(f, sched, repo, numCPU)
	return nil
}

// ProcessSMI renders a single process's full detail view: identity,
// log, and instruction lines, as the attached screen's "process-smi"
// command shows.
func ProcessSMI(out io.Writer, p *process.Process) {
	p.Mu.Lock()
	defer p.Mu.Unlock()

	fmt.Fprintf(out, "\nProcess name: %s\n", p.Name)
	fmt.Fprintf(out, "ID: %d\n", p.ID)
	fmt.Fprintf(out, "Instance: %s\n", p.InstanceID)
	fmt.Fprintln(out, "Logs:")
	for _, entry := range p.Logs {
		fmt.Fprintf(out, "(%s)\t%q\n", entry.Timestamp, entry.Message)
	}

	fmt.Fprintln(out, "\nLines of Code:")
	for i, line := range p.Code {
		fmt.Fprintf(out, "%d     %s\n", i+1, line)
	}
	fmt.Fprintln(out)
}

// VMStat renders the system-wide memory and paging counters the
// emulator's "vmstat" command shows. This is the full data model's
// expansion of the original's reporting surface: num_paged_in and
// num_paged_out are global paging counters (kept on memory.Manager)
// that the original's print_summary never surfaced, so they're
// included here.
func VMStat(out io.Writer, sched *scheduler.Scheduler, mem *memory.Manager) {
	stats := sched.Stats()

	fmt.Fprintf(out, "total memory:         %d B\n", stats.UsedMemory+stats.FreeMemory)
	fmt.Fprintf(out, "used memory:          %d B\n", stats.UsedMemory)
	fmt.Fprintf(out, "free memory:          %d B\n", stats.FreeMemory)
	fmt.Fprintf(out, "idle cpu ticks:       %d\n", stats.IdleTicks)
	fmt.Fprintf(out, "active cpu ticks:     %d\n", stats.ActiveTicks)
	fmt.Fprintf(out, "total cpu ticks:      %d\n", stats.TotalTicks)
	fmt.Fprintf(out, "num paged in:         %d\n", mem.PagedIn())
	fmt.Fprintf(out, "num paged out:        %d\n", mem.PagedOut())
	fmt.Fprintf(out, "free frames:          %d / %d\n", mem.FreeFrameCount(), mem.FrameCount())
}
