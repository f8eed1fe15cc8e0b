// Package shellexec implements the full process-screen instruction
// set an attached user can type: DECLARE, READ, WRITE, plus the five
// opcodes the scheduler also understands (PRINT, SLEEP, ADD, SUB,
// FOR, delegated to internal/interpreter so both surfaces share one
// operand-resolution and arithmetic implementation).
package shellexec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/former-xeneizes/csopesy-go/internal/emuerr"
	"github.com/former-xeneizes/csopesy-go/internal/interpreter"
	"github.com/former-xeneizes/csopesy-go/internal/memory"
	"github.com/former-xeneizes/csopesy-go/internal/process"
)

// MaxBatchInstructions bounds a "screen -c" batch instruction string.
const MaxBatchInstructions = 50

// Run executes one attached-screen command line against p. mem is
// consulted for READ/WRITE; it may be nil for callers that never issue
// those two ops (e.g. replaying a batch line that can't contain them).
// Returns the human-readable confirmation line the shell prints, or an
// error.
func Run(p *process.Process, mem *memory.Manager, line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", emuerr.ErrInvalidCommand
	}

	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "DECLARE":
		return declare(p, args)
	case "READ":
		return read(p, mem, args)
	case "WRITE":
		return write(p, mem, args)
	case "PRINT", "SLEEP", "ADD", "SUB", "FOR":
		interpreter.Execute(p, line)
		appendCodeLine(p, line)
		return fmt.Sprintf("%s executed.", cmd), nil
	default:
		return "", emuerr.ErrInvalidCommand
	}
}

func declare(p *process.Process, args []string) (string, error) {
	if len(args) < 2 {
		return "", emuerr.ErrInvalidCommand
	}
	name := args[0]
	val, err := strconv.Atoi(args[1])
	if err != nil {
		return "", fmt.Errorf("invalid value: must be an integer (%w)", err)
	}
	if err := p.SetSymbol(name, uint16(val)); err != nil {
		return "", err
	}
	p.AppendLog(fmt.Sprintf("Declared %s = %d", name, val))
	appendCodeLine(p, fmt.Sprintf("DECLARE: uint16_t %s = %d;", name, val))
	return fmt.Sprintf("Variable '%s' = %d declared successfully.", name, val), nil
}

func read(p *process.Process, mem *memory.Manager, args []string) (string, error) {
	if mem == nil || len(args) < 2 {
		return "", emuerr.ErrInvalidCommand
	}
	varName := args[0]
	addr, err := parseHexAddr(args[1])
	if err != nil {
		return "", emuerr.ErrAccessViolation
	}
	val, err := mem.ReadU16(p, addr)
	if err != nil {
		return "", fmt.Errorf("Memory access violation at %s: %w", args[1], err)
	}
	if err := p.SetSymbol(varName, val); err != nil {
		return "", err
	}
	p.AppendLog(fmt.Sprintf("READ %s <- [%s] = %d", varName, args[1], val))
	appendCodeLine(p, fmt.Sprintf("READ: %s %s", varName, args[1]))
	return fmt.Sprintf("Read %d into '%s'.", val, varName), nil
}

func write(p *process.Process, mem *memory.Manager, args []string) (string, error) {
	if mem == nil || len(args) < 2 {
		return "", emuerr.ErrInvalidCommand
	}
	addr, err := parseHexAddr(args[0])
	if err != nil {
		return "", emuerr.ErrAccessViolation
	}
	value := interpreter.Resolve(p, args[1])
	if err := mem.WriteU16(p, addr, value); err != nil {
		return "", fmt.Errorf("Memory access violation at %s: %w", args[0], err)
	}
	p.AppendLog(fmt.Sprintf("WRITE [%s] <- %d", args[0], value))
	appendCodeLine(p, fmt.Sprintf("WRITE: %s %s", args[0], args[1]))
	return fmt.Sprintf("Wrote %d to address %s.", value, args[0]), nil
}

func parseHexAddr(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func appendCodeLine(p *process.Process, line string) {
	p.Mu.Lock()
	defer p.Mu.Unlock()
	p.Code = append(p.Code, line)
}

// ParseBatch splits a "screen -c" instruction string of the form
// "i1; i2; i3" into individual lines, rejecting empty batches and
// batches over MaxBatchInstructions.
func ParseBatch(s string) ([]string, error) {
	raw := strings.Split(s, ";")
	lines := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		lines = append(lines, r)
	}
	if len(lines) == 0 {
		return nil, emuerr.ErrInvalidCommand
	}
	if len(lines) > MaxBatchInstructions {
		return nil, fmt.Errorf("%w: batch exceeds %d instructions", emuerr.ErrInvalidCommand, MaxBatchInstructions)
	}
	return lines, nil
}
