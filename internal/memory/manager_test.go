package memory

import (
	"path/filepath"
	"testing"

	"github.com/former-xeneizes/csopesy-go/internal/backingstore"
	"github.com/former-xeneizes/csopesy-go/internal/process"
)

func newTestManager(t *testing.T, totalMem, frameBytes int) (*Manager, *process.Repository) {
	t.Helper()
	store, err := backingstore.Open(filepath.Join(t.TempDir(), "store.txt"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	repo := process.NewRepository()
	return New(totalMem, frameBytes, store, repo), repo
}

func TestAllocateRejectsNonFrameMultiple(t *testing.T) {
	m, repo := newTestManager(t, 1024, 64)
	p, _ := repo.Create("process01")

	if err := m.Allocate(p, 100); err == nil {
		t.Fatalf("Allocate(100) over frame size 64 should have failed")
	}
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	m, repo := newTestManager(t, 256, 64)
	p, _ := repo.Create("process01")

	if err := m.Allocate(p, 128); err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	if err := m.WriteU16(p, 0, 0xBEEF); err != nil {
		t.Fatalf("WriteU16 failed: %v", err)
	}
	got, err := m.ReadU16(p, 0)
	if err != nil {
		t.Fatalf("ReadU16 failed: %v", err)
	}
	if got != 0xBEEF {
		t.Errorf("ReadU16 = %#x; want 0xbeef", got)
	}
}

func TestReadPastLastPageIsAccessViolation(t *testing.T) {
	m, repo := newTestManager(t, 128, 64)
	p, _ := repo.Create("process01")
	if err := m.Allocate(p, 64); err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	if _, err := m.ReadU16(p, 64); err == nil {
		t.Fatalf("reading beyond the allocated page table should fail")
	}
}

func TestOffsetCannotCrossPageBoundary(t *testing.T) {
	m, repo := newTestManager(t, 128, 64)
	p, _ := repo.Create("process01")
	if err := m.Allocate(p, 64); err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}

	if err := m.WriteU16(p, 63, 1); err == nil {
		t.Fatalf("a write whose second byte crosses the page boundary should fail")
	}
}

func TestEvictionReclaimsFramesFIFO(t *testing.T) {
	// Two frames total; three processes each needing one frame force
	// the first process's page to be evicted.
	m, repo := newTestManager(t, 128, 64)

	p1, _ := repo.Create("process01")
	p2, _ := repo.Create("process02")
	p3, _ := repo.Create("process03")

	for _, p := range []*process.Process{p1, p2, p3} {
		if err := m.Allocate(p, 64); err != nil {
			t.Fatalf("Allocate(%s) failed: %v", p.Name, err)
		}
	}

	if err := m.WriteU16(p1, 0, 1); err != nil {
		t.Fatalf("write p1 failed: %v", err)
	}
	if err := m.WriteU16(p2, 0, 2); err != nil {
		t.Fatalf("write p2 failed: %v", err)
	}
	// Pool now full (2 frames). Touching p3 must evict p1's page.
	if err := m.WriteU16(p3, 0, 3); err != nil {
		t.Fatalf("write p3 failed: %v", err)
	}

	if frame := p1.PageFrame(0); frame != -1 {
		t.Errorf("p1's page should have been evicted, frame = %d", frame)
	}
	if m.PagedOut() != 1 {
		t.Errorf("PagedOut = %d; want 1", m.PagedOut())
	}

	// Reading it back should re-fault it in with its last written value.
	got, err := m.ReadU16(p1, 0)
	if err != nil {
		t.Fatalf("ReadU16 after eviction failed: %v", err)
	}
	if got != 1 {
		t.Errorf("ReadU16 after refault = %d; want 1", got)
	}
}

func TestFreeReturnsFramesAndDropsBackingEntries(t *testing.T) {
	m, repo := newTestManager(t, 128, 64)
	p, _ := repo.Create("process01")
	if err := m.Allocate(p, 128); err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if err := m.WriteU16(p, 0, 7); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	before := m.FreeFrameCount()
	m.Free(p)
	after := m.FreeFrameCount()

	if after <= before {
		t.Errorf("FreeFrameCount did not increase after Free: before=%d after=%d", before, after)
	}
	if p.NumPagesValue() != 0 {
		t.Errorf("process page table should be released after Free")
	}
	for i := 0; i < 2; i++ {
		if _, ok := m.store.Get(backingKey(p.Name, i)); ok {
			t.Errorf("backing entry %s should have been dropped by Free", backingKey(p.Name, i))
		}
	}
}
