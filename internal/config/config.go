// Package config loads the emulator's "key value" configuration file:
// one directive per line, "#" comments, optionally quoted values, with
// per-key range clamping and a small set of hard validation errors.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/former-xeneizes/csopesy-go/internal/emuerr"
)

// Config is a fully-resolved, range-clamped configuration snapshot.
type Config struct {
	NumCPU           int
	Scheduler        string // "fcfs" or "rr"
	QuantumCycles    uint32
	BatchProcessFreq uint32
	MinIns           uint32
	MaxIns           uint32
	DelayPerExec     uint32
	MaxOverallMem    uint32
	MemPerFrame      uint32
	MinMemPerProc    uint32
	MaxMemPerProc    uint32
}

// Default returns the documented default configuration.
func Default() Config {
	return Config{
		NumCPU:           1,
		Scheduler:        "rr",
		QuantumCycles:    5,
		BatchProcessFreq: 1,
		MinIns:           1,
		MaxIns:           1,
		DelayPerExec:     0,
		MaxOverallMem:    65536,
		MemPerFrame:      256,
		MinMemPerProc:    256,
		MaxMemPerProc:    4096,
	}
}

// Load reads and parses path, starting from Default() and applying
// each recognized key in turn. Returns emuerr.ErrConfigFileNotFound,
// emuerr.ErrInvalidScheduler, or emuerr.ErrConfigParse on failure.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return cfg, emuerr.ErrConfigFileNotFound
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, val, ok := splitKeyValue(line)
		if !ok {
			continue
		}

		if err := apply(&cfg, key, val); err != nil {
			return cfg, err
		}
	}

	if cfg.MaxIns < cfg.MinIns {
		cfg.MaxIns = cfg.MinIns
	}

	for _, v := range []uint32{cfg.MaxOverallMem, cfg.MemPerFrame, cfg.MinMemPerProc, cfg.MaxMemPerProc} {
		if !IsPowerOfTwo(v) {
			return cfg, fmt.Errorf("%w: memory sizes must be powers of two", emuerr.ErrConfigParse)
		}
	}

	return cfg, nil
}

// splitKeyValue extracts "key" and its value, unwrapping a
// double-quoted value if present.
func splitKeyValue(line string) (key, val string, ok bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", "", false
	}
	key = fields[0]
	rest := strings.TrimSpace(strings.TrimPrefix(line, key))
	rest = strings.TrimSpace(rest)
	if strings.HasPrefix(rest, "\"") {
		end := strings.Index(rest[1:], "\"")
		if end >= 0 {
			return key, rest[1 : end+1], true
		}
	}
	return key, fields[1], true
}

func apply(cfg *Config, key, val string) error {
	switch key {
	case "num-cpu":
		v, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%w: num-cpu", emuerr.ErrConfigParse)
		}
		cfg.NumCPU = clampInt(v, 1, 128)

	case "scheduler":
		v := strings.ToLower(strings.Trim(val, "\""))
		if v != "fcfs" && v != "rr" {
			return emuerr.ErrInvalidScheduler
		}
		cfg.Scheduler = v

	case "quantum-cycles", "quantum_cycles":
		v, err := parseUint32(val)
		if err != nil {
			return fmt.Errorf("%w: quantum-cycles", emuerr.ErrConfigParse)
		}
		cfg.QuantumCycles = clampUint32Min(v, 1)

	case "batch-process-freq":
		v, err := parseUint32(val)
		if err != nil {
			return fmt.Errorf("%w: batch-process-freq", emuerr.ErrConfigParse)
		}
		cfg.BatchProcessFreq = clampUint32Min(v, 1)

	case "min-ins":
		v, err := parseUint32(val)
		if err != nil {
			return fmt.Errorf("%w: min-ins", emuerr.ErrConfigParse)
		}
		cfg.MinIns = clampUint32Min(v, 1)

	case "max-ins":
		v, err := parseUint32(val)
		if err != nil {
			return fmt.Errorf("%w: max-ins", emuerr.ErrConfigParse)
		}
		cfg.MaxIns = clampUint32Min(v, 1)

	case "delay-per-exec", "delays-per-exec":
		v, err := parseUint32(val)
		if err != nil {
			return fmt.Errorf("%w: delay-per-exec", emuerr.ErrConfigParse)
		}
		cfg.DelayPerExec = v

	case "max-overall-mem":
		v, err := parseUint32(val)
		if err != nil {
			return fmt.Errorf("%w: max-overall-mem", emuerr.ErrConfigParse)
		}
		cfg.MaxOverallMem = clampUint32(v, 64, 65536)

	case "mem-per-frame":
		v, err := parseUint32(val)
		if err != nil {
			return fmt.Errorf("%w: mem-per-frame", emuerr.ErrConfigParse)
		}
		cfg.MemPerFrame = clampUint32(v, 64, 65536)

	case "min-mem-per-proc":
		v, err := parseUint32(val)
		if err != nil {
			return fmt.Errorf("%w: min-mem-per-proc", emuerr.ErrConfigParse)
		}
		cfg.MinMemPerProc = clampUint32(v, 64, 65536)

	case "max-mem-per-proc":
		v, err := parseUint32(val)
		if err != nil {
			return fmt.Errorf("%w: max-mem-per-proc", emuerr.ErrConfigParse)
		}
		cfg.MaxMemPerProc = clampUint32(v, 64, 65536)
	}
	return nil
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampUint32Min(v, lo uint32) uint32 {
	if v < lo {
		return lo
	}
	return v
}

func clampUint32(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// IsPowerOfTwo reports whether v is a nonzero power of two, the
// constraint the shell surface applies to "screen -s"/"screen -c"
// memory sizes.
func IsPowerOfTwo(v uint32) bool {
	return v != 0 && v&(v-1) == 0
}
