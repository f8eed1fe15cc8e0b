// Package emuerr collects the sentinel error kinds the emulator's
// components return, so callers can classify failures with errors.Is
// instead of string matching.
package emuerr

import "errors"

var (
	// ErrAccessViolation is returned when a process touches a virtual
	// address outside its allocated page table.
	ErrAccessViolation = errors.New("access violation")

	// ErrAllocationRefused is returned when the memory manager cannot
	// satisfy an allocate_process request (bad size or no memory).
	ErrAllocationRefused = errors.New("invalid memory allocation")

	ErrNotInitialized  = errors.New("not initialized")
	ErrDuplicateName   = errors.New("duplicate process name")
	ErrNotFound        = errors.New("not found")
	ErrSymbolTableFull = errors.New("symbol table full")
	ErrInvalidCommand  = errors.New("invalid command")

	ErrConfigFileNotFound = errors.New("file-not-found")
	ErrInvalidScheduler   = errors.New("invalid-scheduler")
	ErrConfigParse        = errors.New("parse-error")
)
