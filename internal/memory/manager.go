// Package memory implements paged virtual memory over a fixed frame
// pool: FIFO eviction, demand paging, and the little-endian 16-bit
// read/write primitives the instruction interpreters use.
//
// Lock order: a Manager method that must also touch a process record
// always takes Manager.mu, then the process's own Process.Mu, never
// the reverse — callers higher up (the scheduler) must never hold a
// Process.Mu when calling into this package.
package memory

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/former-xeneizes/csopesy-go/internal/backingstore"
	"github.com/former-xeneizes/csopesy-go/internal/emuerr"
	"github.com/former-xeneizes/csopesy-go/internal/lockorder"
	"github.com/former-xeneizes/csopesy-go/internal/logging"
	"github.com/former-xeneizes/csopesy-go/internal/process"
)

// Manager owns the fixed frame pool and mediates every page-table
// mutation and every resident-byte read/write.
type Manager struct {
	mu sync.Mutex

	frameBytes  int
	framesCount int

	frameOwner   []string // "" or "procname:pageidx"
	frameContent [][]byte
	freeFrames   []int // stack of free frame indices
	fifoQueue    []int // resident frames, oldest-loaded first

	store *backingstore.Store
	repo  *process.Repository

	pagedIn  atomic.Uint64
	pagedOut atomic.Uint64
}

// New builds a Manager over totalMemBytes of memory split into
// frameBytes-sized frames, backed by store and consulting repo to
// clear evicted processes' page table entries.
func New(totalMemBytes, frameBytes int, store *backingstore.Store, repo *process.Repository) *Manager {
	framesCount := 0
	if frameBytes > 0 {
		framesCount = totalMemBytes / frameBytes
	}

	m := &Manager{
		frameBytes:   frameBytes,
		framesCount:  framesCount,
		frameOwner:   make([]string, framesCount),
		frameContent: make([][]byte, framesCount),
		freeFrames:   make([]int, 0, framesCount),
		store:        store,
		repo:         repo,
	}
	for i := 0; i < framesCount; i++ {
		m.frameContent[i] = make([]byte, frameBytes)
		m.freeFrames = append(m.freeFrames, i)
	}
	return m
}

// FrameCount returns the total number of frames in the pool.
func (m *Manager) FrameCount() int { return m.framesCount }

// FrameSize returns the configured frame size in bytes.
func (m *Manager) FrameSize() int { return m.frameBytes }

// FreeFrameCount returns the number of frames not currently resident
// to any process, used by the vmstat report.
func (m *Manager) FreeFrameCount() int {
	m.lock()
	defer m.unlock()
	return len(m.freeFrames)
}

// PagedIn returns the running count of page-in (demand-fault) events.
func (m *Manager) PagedIn() uint64 { return m.pagedIn.Load() }

// PagedOut returns the running count of eviction events.
func (m *Manager) PagedOut() uint64 { return m.pagedOut.Load() }

// Allocate reserves memBytes of virtual memory for p, sized in whole
// frames. It fails with emuerr.ErrAllocationRefused for a zero size or
// a size that isn't a frame multiple.
func (m *Manager) Allocate(p *process.Process, memBytes int) error {
	if m.frameBytes == 0 || memBytes <= 0 || memBytes%m.frameBytes != 0 {
		return emuerr.ErrAllocationRefused
	}
	pages := memBytes / m.frameBytes

	m.lock()
	defer m.unlock()

	p.AllocatePages(pages, memBytes)

	zeros := make([]byte, m.frameBytes)
	for i := 0; i < pages; i++ {
		m.store.Set(backingKey(p.Name, i), zeros)
	}
	return nil
}

// Free releases every frame owned by p back to the pool and drops its
// backing-store entries.
func (m *Manager) Free(p *process.Process) {
	m.lock()
	defer m.unlock()

	for fi := 0; fi < m.framesCount; fi++ {
		owner := m.frameOwner[fi]
		if owner == "" {
			continue
		}
		procName, _, ok := splitBackingKey(owner)
		if !ok || procName != p.Name {
			continue
		}
		m.store.Set(owner, m.frameContent[fi])
		m.frameOwner[fi] = ""
		clearBytes(m.frameContent[fi])
		m.freeFrames = append(m.freeFrames, fi)
		m.removeFromFIFOLocked(fi)
	}

	m.store.DeletePrefix(p.Name + ":")
	p.ReleasePages()
}

// EnsurePageLoaded makes the page containing vaddr resident, faulting
// it in from the backing store and evicting a FIFO victim if the pool
// is full. Returns emuerr.ErrAccessViolation if vaddr lies outside p's
// page table.
func (m *Manager) EnsurePageLoaded(p *process.Process, vaddr uint32) error {
	m.lock()
	defer m.unlock()
	return m.ensurePageLoadedLocked(p, vaddr)
}

func (m *Manager) ensurePageLoadedLocked(p *process.Process, vaddr uint32) error {
	if m.frameBytes == 0 {
		return emuerr.ErrNotInitialized
	}
	pageIdx := int(vaddr) / m.frameBytes
	if pageIdx >= p.NumPagesValue() {
		return emuerr.ErrAccessViolation
	}
	if p.PageFrame(pageIdx) != -1 {
		return nil // already resident
	}

	frame := m.findFreeFrameLocked()
	if frame == -1 {
		if len(m.fifoQueue) == 0 {
			return emuerr.ErrAllocationRefused
		}
		frame = m.fifoQueue[0]
		m.fifoQueue = m.fifoQueue[1:]
		m.evictFrameLocked(frame)
	}

	key := backingKey(p.Name, pageIdx)
	if bytes, ok := m.store.Get(key); ok {
		copylen := len(bytes)
		if copylen > len(m.frameContent[frame]) {
			copylen = len(m.frameContent[frame])
		}
		copy(m.frameContent[frame], bytes[:copylen])
		for i := copylen; i < len(m.frameContent[frame]); i++ {
			m.frameContent[frame][i] = 0
		}
	} else {
		clearBytes(m.frameContent[frame])
	}

	m.frameOwner[frame] = key
	m.fifoQueue = append(m.fifoQueue, frame)
	p.SetPageFrame(pageIdx, frame)
	m.pagedIn.Add(1)

	logging.Info.Debug("page fault serviced", "process", p.Name, "page", pageIdx, "frame", frame)
	return nil
}

// ReadU16 reads a little-endian uint16 at vaddr, paging the owning
// page in on demand. Offsets whose second byte would cross into the
// next page are rejected, matching the original's no-cross-page rule.
func (m *Manager) ReadU16(p *process.Process, vaddr uint32) (uint16, error) {
	m.lock()
	if m.frameBytes == 0 {
		m.unlock()
		return 0, emuerr.ErrNotInitialized
	}
	pageIdx := int(vaddr) / m.frameBytes
	offset := int(vaddr) % m.frameBytes
	if pageIdx >= p.NumPagesValue() {
		m.unlock()
		return 0, emuerr.ErrAccessViolation
	}
	if offset+2 > m.frameBytes {
		m.unlock()
		return 0, emuerr.ErrAccessViolation
	}

	frame := p.PageFrame(pageIdx)
	if frame == -1 {
		m.unlock()
		if err := m.EnsurePageLoaded(p, vaddr); err != nil {
			return 0, err
		}
		m.lock()
		frame = p.PageFrame(pageIdx)
		if frame == -1 {
			m.unlock()
			return 0, emuerr.ErrAccessViolation
		}
	}
	defer m.unlock()

	b0 := m.frameContent[frame][offset]
	b1 := m.frameContent[frame][offset+1]
	return uint16(b0) | uint16(b1)<<8, nil
}

// WriteU16 writes value little-endian at vaddr, paging the owning
// page in on demand, and writes the updated bytes through to the
// backing store so an eviction later sees the current value.
func (m *Manager) WriteU16(p *process.Process, vaddr uint32, value uint16) error {
	m.lock()
	if m.frameBytes == 0 {
		m.unlock()
		return emuerr.ErrNotInitialized
	}
	pageIdx := int(vaddr) / m.frameBytes
	offset := int(vaddr) % m.frameBytes
	if pageIdx >= p.NumPagesValue() {
		m.unlock()
		return emuerr.ErrAccessViolation
	}
	if offset+2 > m.frameBytes {
		m.unlock()
		return emuerr.ErrAccessViolation
	}

	frame := p.PageFrame(pageIdx)
	if frame == -1 {
		m.unlock()
		if err := m.EnsurePageLoaded(p, vaddr); err != nil {
			return err
		}
		m.lock()
		frame = p.PageFrame(pageIdx)
		if frame == -1 {
			m.unlock()
			return emuerr.ErrAccessViolation
		}
	}
	defer m.unlock()

	m.frameContent[frame][offset] = byte(value & 0xFF)
	m.frameContent[frame][offset+1] = byte((value >> 8) & 0xFF)

	if key := m.frameOwner[frame]; key != "" {
		m.store.Set(key, m.frameContent[frame])
	}
	return nil
}

// lock/unlock wrap m.mu with the debug lock-order tracker; see
// internal/lockorder for what this catches.
func (m *Manager) lock() {
	lockorder.Acquire(lockorder.LevelMemory)
	m.mu.Lock()
}

func (m *Manager) unlock() {
	m.mu.Unlock()
	lockorder.Release(lockorder.LevelMemory)
}

func (m *Manager) findFreeFrameLocked() int {
	n := len(m.freeFrames)
	if n == 0 {
		return -1
	}
	f := m.freeFrames[n-1]
	m.freeFrames = m.freeFrames[:n-1]
	return f
}

func (m *Manager) evictFrameLocked(frameIdx int) {
	if frameIdx < 0 || frameIdx >= len(m.frameOwner) {
		return
	}
	owner := m.frameOwner[frameIdx]
	if owner == "" {
		return
	}
	procName, pageIdx, ok := splitBackingKey(owner)
	if !ok {
		m.frameOwner[frameIdx] = ""
		clearBytes(m.frameContent[frameIdx])
		return
	}

	m.store.Set(owner, m.frameContent[frameIdx])
	m.pagedOut.Add(1)

	if p, found := m.repo.Lookup(procName); found {
		p.SetPageFrame(pageIdx, -1)
	}

	m.frameOwner[frameIdx] = ""
	clearBytes(m.frameContent[frameIdx])
	m.removeFromFIFOLocked(frameIdx)

	logging.Info.Debug("page evicted", "process", procName, "page", pageIdx, "frame", frameIdx)
}

func (m *Manager) removeFromFIFOLocked(frameIdx int) {
	for i, f := range m.fifoQueue {
		if f == frameIdx {
			m.fifoQueue = append(m.fifoQueue[:i], m.fifoQueue[i+1:]...)
			return
		}
	}
}

func backingKey(procName string, pageIdx int) string {
	return backingstore.Key(procName, pageIdx)
}

func splitBackingKey(key string) (procName string, pageIdx int, ok bool) {
	idx := strings.LastIndex(key, ":")
	if idx < 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(key[idx+1:])
	if err != nil {
		return "", 0, false
	}
	return key[:idx], n, true
}

func clearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
