// Package backingstore implements the flat-file, hex-encoded
// key/value store that backs evicted memory pages: one line per key,
// "<key> <hex-bytes>", loaded at startup and rewritten on every
// mutation.
package backingstore

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultFile is the on-disk filename the original emulator uses.
const DefaultFile = "csopesy-backing-store.txt"

// Store is a key->bytes map persisted to a flat hex file. Every
// mutating call flushes the whole table to disk; this is quadratic in
// the table size but matches the original's behavior and keeps the
// file always consistent with process state (see DESIGN.md's
// rationale for not optimizing this away).
type Store struct {
	mu     sync.Mutex
	path   string
	values map[string][]byte
	log    *logrus.Entry
}

// Open loads path if it exists (best-effort; a missing file is not an
// error) and returns a ready Store.
func Open(path string) (*Store, error) {
	s := &Store{
		path:   path,
		values: make(map[string][]byte),
		log:    logrus.WithField("component", "backingstore"),
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("backingstore: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		if len(fields) != 2 {
			continue
		}
		key, hexBytes := fields[0], fields[1]
		decoded, err := hex.DecodeString(hexBytes)
		if err != nil {
			continue
		}
		s.values[key] = decoded
	}
	s.log.WithField("entries", len(s.values)).Debug("loaded backing store")
	return s, nil
}

// Key builds the "procname:pageidx" key the original's backing_key
// produces.
func Key(procName string, pageIdx int) string {
	return fmt.Sprintf("%s:%d", procName, pageIdx)
}

// Get returns a copy of the bytes stored under key, if any.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true
}

// Set stores bytes under key and flushes the table to disk.
func (s *Store) Set(key string, bytes []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(bytes))
	copy(cp, bytes)
	s.values[key] = cp
	s.persistLocked()
	s.log.WithField("key", key).Debug("persisted page")
}

// Delete removes key from the table and flushes.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	s.persistLocked()
	s.log.WithField("key", key).Debug("evicted page from backing store")
}

// DeletePrefix removes every key with the given "procname:" prefix,
// used when a process is freed.
func (s *Store) DeletePrefix(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k := range s.values {
		if strings.HasPrefix(k, prefix) {
			delete(s.values, k)
			removed++
		}
	}
	if removed > 0 {
		s.persistLocked()
		s.log.WithFields(logrus.Fields{"prefix": prefix, "removed": removed}).Debug("freed process backing entries")
	}
}

// persistLocked rewrites the whole file in sorted key order. Callers
// must hold s.mu.
func (s *Store) persistLocked() {
	f, err := os.Create(s.path)
	if err != nil {
		s.log.WithError(err).Warn("failed to persist backing store")
		return
	}
	defer f.Close()

	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := bufio.NewWriter(f)
	for _, k := range keys {
		fmt.Fprintf(w, "%s %s\n", k, hex.EncodeToString(s.values[k]))
	}
	w.Flush()
}
