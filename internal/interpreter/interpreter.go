// Package interpreter executes the scheduler's restricted instruction
// subset on behalf of a worker core: PRINT, SLEEP, ADD, SUB, FOR. The
// full opcode set a process screen can enter (DECLARE, READ, WRITE,
// plus these five) lives in internal/shellexec.
package interpreter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/former-xeneizes/csopesy-go/internal/process"
)

// Execute decodes and runs a single instruction line against p,
// sleeping the calling goroutine for SLEEP/FOR as the original does.
// Unrecognized opcodes are logged as skipped rather than treated as a
// failure, since the interpreter issues no memory accesses and so
// cannot raise an access violation.
func Execute(p *process.Process, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	op := fields[0]
	args := fields[1:]

	switch op {
	case "PRINT":
		msg := strings.Join(args, " ")
		msg = strings.Trim(msg, "\"")
		p.AppendLog(fmt.Sprintf("PRINT: %s", msg))

	case "SLEEP":
		ms := 50
		if len(args) >= 1 {
			if v, err := strconv.Atoi(args[0]); err == nil {
				ms = v
			}
		}
		p.AppendLog(fmt.Sprintf("SLEEP start for %d ms", ms))
		time.Sleep(time.Duration(ms) * time.Millisecond)
		p.AppendLog("SLEEP end")

	case "ADD":
		if len(args) < 3 {
			p.AppendLog("ADD: skipped (malformed instruction)")
			return
		}
		target, a, b := args[0], args[1], args[2]
		sum := int(resolve(p, a)) + int(resolve(p, b))
		if sum > 65535 {
			sum = 65535
		}
		result := uint16(sum)
		p.SetSymbol(target, result)
		p.AppendLog(fmt.Sprintf("ADD: %s = %s + %s -> %d", target, a, b, result))

	case "SUB":
		if len(args) < 3 {
			p.AppendLog("SUB: skipped (malformed instruction)")
			return
		}
		target, a, b := args[0], args[1], args[2]
		va, vb := resolve(p, a), resolve(p, b)
		var result uint16
		if va > vb {
			result = va - vb
		}
		p.SetSymbol(target, result)
		p.AppendLog(fmt.Sprintf("SUB: %s = %s - %s -> %d", target, a, b, result))

	case "FOR":
		n := 0
		if len(args) >= 1 {
			if v, err := strconv.Atoi(args[0]); err == nil {
				n = v
			}
		}
		p.AppendLog(fmt.Sprintf("FOR start x%d", n))
		repeats := n
		if repeats > 5 {
			repeats = 5
		}
		time.Sleep(time.Duration(10*repeats) * time.Millisecond)
		p.AppendLog("FOR end")

	default:
		p.AppendLog(fmt.Sprintf("%s: skipped (unsupported outside the shell)", op))
	}
}

// Resolve parses token as a signed integer, clamping to [0, 65535].
// On parse failure it falls back to the process's local symbol table,
// inserting a zero entry if the name has never been seen and the table
// has room (see process.Process.Symbol). Exported so
// internal/shellexec can reuse the same operand semantics.
func Resolve(p *process.Process, token string) uint16 {
	return resolve(p, token)
}

func resolve(p *process.Process, token string) uint16 {
	if v, err := strconv.Atoi(token); err == nil {
		if v < 0 {
			return 0
		}
		if v > 65535 {
			return 65535
		}
		return uint16(v)
	}
	return p.Symbol(token)
}
