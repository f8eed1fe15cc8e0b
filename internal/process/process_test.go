package process

import "testing"

func TestNewProcessInitialState(t *testing.T) {
	p := New("process01", 1)

	if p.AssignedCore.Load() != -1 {
		t.Errorf("AssignedCore = %d; want -1", p.AssignedCore.Load())
	}
	if p.Finished.Load() {
		t.Errorf("Finished = true; want false")
	}
	if len(p.Logs) != 1 {
		t.Fatalf("len(Logs) = %d; want 1 (hello-world line)", len(p.Logs))
	}
	if got := DerivedStateOf(p, false); got != StateNew {
		t.Errorf("DerivedState = %v; want %v", got, StateNew)
	}
}

// DerivedStateOf is a small test helper mirroring the scheduler's call
// shape without importing internal/scheduler (would create an import
// cycle).
func DerivedStateOf(p *Process, inReadyQueue bool) State {
	return p.DerivedState(inReadyQueue)
}

func TestDerivedStateTransitions(t *testing.T) {
	p := New("process02", 2)

	if got := p.DerivedState(true); got != StateReady {
		t.Errorf("DerivedState(true) = %v; want %v", got, StateReady)
	}

	p.AssignedCore.Store(0)
	if got := p.DerivedState(true); got != StateRunning {
		t.Errorf("DerivedState with core assigned = %v; want %v", got, StateRunning)
	}

	p.MarkFinished()
	if got := p.DerivedState(true); got != StateTerminated {
		t.Errorf("DerivedState after MarkFinished = %v; want %v", got, StateTerminated)
	}
	if p.AssignedCore.Load() != -1 {
		t.Errorf("AssignedCore after MarkFinished = %d; want -1", p.AssignedCore.Load())
	}
}

func TestSetSymbolBoundedAt32(t *testing.T) {
	p := New("process03", 3)

	for i := 0; i < MaxSymbols; i++ {
		name := string(rune('a' + i%26))
		if i >= 26 {
			name += string(rune('a' + i/26))
		}
		if err := p.SetSymbol(name, uint16(i)); err != nil {
			t.Fatalf("SetSymbol(%d) unexpected error: %v", i, err)
		}
	}

	if err := p.SetSymbol("overflow", 1); err == nil {
		t.Fatalf("SetSymbol past MaxSymbols should have failed")
	}

	// Existing keys can still be updated once the table is full.
	if err := p.SetSymbol("a", 42); err != nil {
		t.Errorf("updating an existing symbol should not fail: %v", err)
	}
}

func TestSymbolInsertsZeroOnFirstRead(t *testing.T) {
	p := New("process04", 4)

	if v := p.Symbol("unknown"); v != 0 {
		t.Errorf("Symbol(unknown) = %d; want 0", v)
	}
	if _, ok := p.Vars["unknown"]; !ok {
		t.Errorf("Symbol should insert a zero entry for unknown names")
	}
}

func TestRepositoryCreateRejectsDuplicateName(t *testing.T) {
	r := NewRepository()

	if _, err := r.Create("process01"); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	if _, err := r.Create("process01"); err == nil {
		t.Fatalf("duplicate Create should have failed")
	}
}

func TestRepositoryAutoName(t *testing.T) {
	r := NewRepository()

	if got := r.AutoName(); got != "process01" {
		t.Errorf("AutoName = %q; want process01", got)
	}

	if _, err := r.Create(r.AutoName()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if got := r.AutoName(); got != "process02" {
		t.Errorf("AutoName after one Create = %q; want process02", got)
	}
}

func TestGenerateDummyInstructionsRestrictsOpcodes(t *testing.T) {
	p := New("process05", 5)
	GenerateDummyInstructions(p, 50)

	if p.TotalInstructions == 0 {
		t.Fatalf("TotalInstructions should be > 0")
	}

	for _, line := range p.Code {
		found := false
		for _, allowed := range []string{"ADD", "SUB", "PRINT", "SLEEP", "FOR"} {
			if len(line) >= len(allowed) && line[:len(allowed)] == allowed {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("generated line %q does not start with an allowed scheduler opcode", line)
		}
	}
}
