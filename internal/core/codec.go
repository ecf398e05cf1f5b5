package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// SchemaVersion is the current wire schema. Snapshots without a version
// field predate it and are migrated on decode.
const SchemaVersion = 2

// ErrUnsupportedSchema is returned for snapshots newer than SchemaVersion.
var ErrUnsupportedSchema = errors.New("unsupported snapshot schema version")

// WireReport is a report with its records embedded in order.
type WireReport struct {
	ID          string       `json:"id"`
	Filename    string       `json:"filename"`
	UploadDate  time.Time    `json:"uploadDate"`
	PartNumbers []PartRecord `json:"partNumbers"`
}

// Snapshot is the persisted form of State.
type Snapshot struct {
	SchemaVersion int          `json:"schemaVersion"`
	Reports       []WireReport `json:"reports"`
	PartNumbers   []PartRecord `json:"partNumbers"`
}

// NewSnapshot converts st to its wire form.
func NewSnapshot(st State) Snapshot {
	snap := Snapshot{
		SchemaVersion: SchemaVersion,
		Reports:       make([]WireReport, len(st.Reports)),
		PartNumbers:   make([]PartRecord, len(st.Records)),
	}
	for i, rep := range st.Reports {
		snap.Reports[i] = NewWireReport(rep, st.RecordsOf(rep))
	}
	for i, r := range st.Records {
		snap.PartNumbers[i] = r.Clone()
	}
	return snap
}

// NewWireReport embeds records into rep.
func NewWireReport(rep QAReport, records []PartRecord) WireReport {
	w := WireReport{
		ID:          rep.ID,
		Filename:    rep.Filename,
		UploadDate:  rep.UploadDate,
		PartNumbers: make([]PartRecord, len(records)),
	}
	for i, r := range records {
		w.PartNumbers[i] = r.Clone()
	}
	return w
}

// State converts a migrated snapshot back to State. The flat record list is
// authoritative: embedded records not present in it are not referenced.
func (s Snapshot) State() State {
	st := State{
		Reports: make([]QAReport, 0, len(s.Reports)),
		Records: make([]PartRecord, 0, len(s.PartNumbers)),
	}
	present := make(map[string]struct{}, len(s.PartNumbers))
	for _, r := range s.PartNumbers {
		st.Records = append(st.Records, r.Clone())
		present[r.ID] = struct{}{}
	}
	for _, w := range s.Reports {
		rep := QAReport{ID: w.ID, Filename: w.Filename, UploadDate: w.UploadDate, RecordIDs: []string{}}
		for _, r := range w.PartNumbers {
			if _, ok := present[r.ID]; ok {
				rep.RecordIDs = append(rep.RecordIDs, r.ID)
			}
		}
		st.Reports = append(st.Reports, rep)
	}
	return st
}

// EncodeSnapshot serializes st. Equal states encode to identical bytes.
func EncodeSnapshot(st State) ([]byte, error) {
	data, err := json.Marshal(NewSnapshot(st))
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses and migrates a snapshot.
func DecodeSnapshot(data []byte) (State, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return State{}, fmt.Errorf("decode snapshot: %w", err)
	}
	snap, err := MigrateSnapshot(snap)
	if err != nil {
		return State{}, err
	}
	return snap.State(), nil
}

// EncodeLocal produces the two independently stored local cache values.
func EncodeLocal(st State) (reports, records []byte, err error) {
	snap := NewSnapshot(st)
	if reports, err = json.Marshal(snap.Reports); err != nil {
		return nil, nil, fmt.Errorf("encode reports: %w", err)
	}
	if records, err = json.Marshal(snap.PartNumbers); err != nil {
		return nil, nil, fmt.Errorf("encode records: %w", err)
	}
	return reports, records, nil
}

// DecodeLocal rebuilds State from local cache values. Nil values decode as
// empty collections. version is the stored schema version, 0 if absent.
func DecodeLocal(reports, records []byte, version int) (State, error) {
	snap := Snapshot{SchemaVersion: version}
	if len(reports) > 0 {
		if err := json.Unmarshal(reports, &snap.Reports); err != nil {
			return State{}, fmt.Errorf("decode reports: %w", err)
		}
	}
	if len(records) > 0 {
		if err := json.Unmarshal(records, &snap.PartNumbers); err != nil {
			return State{}, fmt.Errorf("decode records: %w", err)
		}
	}
	snap, err := MigrateSnapshot(snap)
	if err != nil {
		return State{}, err
	}
	return snap.State(), nil
}

// EncodeBundle serializes one ingested report for artifact storage.
func EncodeBundle(b ReportBundle) ([]byte, error) {
	data, err := json.MarshalIndent(NewWireReport(b.Report, b.Records), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report %s: %w", b.Report.ID, err)
	}
	return data, nil
}

// MigrateSnapshot brings snap to SchemaVersion.
//
// Version 1 (no schemaVersion field) stored free-form issue labels and had no
// sheet names. Labels are matched ignoring case, spaces, hyphens and
// underscores; unrecognized labels are dropped with a warning. Invalid
// statuses are rederived from the issues.
//
// Current-version snapshots are validated and rejected on unknown statuses or
// labels.
func MigrateSnapshot(snap Snapshot) (Snapshot, error) {
	switch {
	case snap.SchemaVersion > SchemaVersion:
		return Snapshot{}, fmt.Errorf("%w: %d", ErrUnsupportedSchema, snap.SchemaVersion)
	case snap.SchemaVersion == SchemaVersion:
		return snap, validateSnapshot(snap)
	}

	from := snap.SchemaVersion
	for i := range snap.PartNumbers {
		snap.PartNumbers[i] = migrateRecordV1(snap.PartNumbers[i])
	}
	for i := range snap.Reports {
		for j := range snap.Reports[i].PartNumbers {
			snap.Reports[i].PartNumbers[j] = migrateRecordV1(snap.Reports[i].PartNumbers[j])
		}
	}
	snap.SchemaVersion = SchemaVersion
	slog.Info("migrated snapshot",
		"from_version", from,
		"to_version", SchemaVersion,
		"records", len(snap.PartNumbers),
	)
	return snap, nil
}

func validateSnapshot(snap Snapshot) error {
	for _, r := range snap.PartNumbers {
		if !r.Status.Valid() {
			return fmt.Errorf("record %s: invalid status %q", r.ID, r.Status)
		}
		for _, k := range r.Issues {
			if !k.Known() {
				return fmt.Errorf("record %s: unknown issue %q", r.ID, k)
			}
		}
	}
	return nil
}

var legacyLabels = map[string]IssueKind{}

func init() {
	for _, k := range slices.Concat(ChartIssueKinds, []IssueKind{IssueEmptySheet, IssueNoIdentifier, IssueEmptyRow}) {
		legacyLabels[labelKey(string(k))] = k
	}
	legacyLabels["nonstandardnaming"] = IssueIncorrectNaming
	legacyLabels["wrongprefix"] = IssueIncorrectNaming
}

func labelKey(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(s)))
}

func migrateRecordV1(r PartRecord) PartRecord {
	issues := make([]IssueKind, 0, len(r.Issues))
	for _, label := range r.Issues {
		k, ok := legacyLabels[labelKey(string(label))]
		if !ok {
			slog.Warn("dropping unknown issue label", "record_id", r.ID, "label", string(label))
			continue
		}
		issues = append(issues, k)
	}
	r.Issues = dedupeIssues(issues)
	if !r.Status.Valid() {
		r.Status = StatusFor(r.Issues)
	}
	return r
}
