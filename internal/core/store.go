package core

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrDuplicateID is returned when an added report or record reuses an id
// already present in the store.
var ErrDuplicateID = errors.New("duplicate id")

// StateStore holds the in-memory reports and records. Writers take the
// exclusive lock for the whole mutation; readers only ever receive copies,
// so they observe a report together with all of its records or neither.
type StateStore struct {
	mu      sync.RWMutex
	reports []QAReport
	records []PartRecord
	pos     map[string]int // record id -> index into records
	version uint64
	clock   Clock
}

// NewStateStore returns an empty store. A nil clock uses SystemClock.
func NewStateStore(clock Clock) *StateStore {
	if clock == nil {
		clock = SystemClock
	}
	return &StateStore{pos: map[string]int{}, clock: clock}
}

// AddReport appends the report and fans its records into the flat
// collection. The report's RecordIDs are rebuilt from b.Records. On
// duplicate ids nothing is added.
func (s *StateStore) AddReport(b ReportBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.reports {
		if r.ID == b.Report.ID {
			return fmt.Errorf("add report %s: %w", b.Report.ID, ErrDuplicateID)
		}
	}
	seen := make(map[string]struct{}, len(b.Records))
	for _, rec := range b.Records {
		_, exists := s.pos[rec.ID]
		_, repeated := seen[rec.ID]
		if exists || repeated {
			return fmt.Errorf("add record %s: %w", rec.ID, ErrDuplicateID)
		}
		seen[rec.ID] = struct{}{}
	}

	report := b.Report.Clone()
	report.RecordIDs = report.RecordIDs[:0]
	for _, rec := range b.Records {
		s.pos[rec.ID] = len(s.records)
		s.records = append(s.records, rec.Clone())
		report.RecordIDs = append(report.RecordIDs, rec.ID)
	}
	s.reports = append(s.reports, report)
	s.version++
	return nil
}

// UpdateRecord merges patch into the record and refreshes LastModified.
// It returns false when id is unknown.
func (s *StateStore) UpdateRecord(id string, patch RecordPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.pos[id]
	if !ok {
		return false
	}
	patch.apply(&s.records[i])
	s.records[i].LastModified = s.clock()
	s.version++
	return true
}

// RemoveRecord deletes the record and detaches it from its owning report.
// It returns false when id is unknown.
func (s *StateStore) RemoveRecord(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.pos[id]
	if !ok {
		return false
	}
	s.records = slices.Delete(s.records, i, i+1)
	for j := range s.reports {
		if k := slices.Index(s.reports[j].RecordIDs, id); k >= 0 {
			s.reports[j].RecordIDs = slices.Delete(s.reports[j].RecordIDs, k, k+1)
			break
		}
	}
	s.reindex()
	s.version++
	return true
}

// LoadSample replaces the state with the deterministic sample report.
func (s *StateStore) LoadSample() {
	b := SampleBundle(s.clock())
	s.Replace(State{Reports: []QAReport{b.Report}, Records: b.Records})
}

// Clear empties both collections.
func (s *StateStore) Clear() {
	s.Replace(State{})
}

// Replace swaps the whole state, e.g. after loading from persistence.
func (s *StateStore) Replace(st State) {
	st = st.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = st.Reports
	s.records = st.Records
	s.reindex()
	s.version++
}

// Snapshot returns a deep copy of the current state.
func (s *StateStore) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{Reports: s.reports, Records: s.records}.Clone()
}

// Record returns a copy of the record with the given id.
func (s *StateStore) Record(id string) (PartRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.pos[id]
	if !ok {
		return PartRecord{}, false
	}
	return s.records[i].Clone(), true
}

// Len returns the number of records.
func (s *StateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Version increases on every mutation.
func (s *StateStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *StateStore) reindex() {
	s.pos = make(map[string]int, len(s.records))
	for i, r := range s.records {
		s.pos[r.ID] = i
	}
}
