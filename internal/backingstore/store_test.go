package backingstore

import (
	"path/filepath"
	"testing"
)

func TestSetGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "store.txt"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	s.Set("process01:0", []byte{0x01, 0x02, 0x03})

	got, ok := s.Get("process01:0")
	if !ok {
		t.Fatalf("Get should have found the key")
	}
	if len(got) != 3 || got[0] != 0x01 || got[1] != 0x02 || got[2] != 0x03 {
		t.Errorf("Get returned %v; want [1 2 3]", got)
	}
}

func TestReloadsPersistedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.txt")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	s1.Set(Key("process02", 1), []byte{0xAA, 0xBB})

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	got, ok := s2.Get(Key("process02", 1))
	if !ok {
		t.Fatalf("reopened store should contain the persisted key")
	}
	if got[0] != 0xAA || got[1] != 0xBB {
		t.Errorf("got %v; want [AA BB]", got)
	}
}

func TestDeletePrefixRemovesAllProcessPages(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "store.txt"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	s.Set(Key("process03", 0), []byte{1})
	s.Set(Key("process03", 1), []byte{2})
	s.Set(Key("process04", 0), []byte{3})

	s.DeletePrefix("process03:")

	if _, ok := s.Get(Key("process03", 0)); ok {
		t.Errorf("process03:0 should have been removed")
	}
	if _, ok := s.Get(Key("process03", 1)); ok {
		t.Errorf("process03:1 should have been removed")
	}
	if _, ok := s.Get(Key("process04", 0)); !ok {
		t.Errorf("process04:0 should still be present")
	}
}
