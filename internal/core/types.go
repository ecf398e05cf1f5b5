package core

import (
	"slices"
	"time"
)

// Status is the lifecycle state of a single part record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCorrected Status = "corrected"
	StatusInvalid   Status = "invalid"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCorrected, StatusInvalid:
		return true
	}
	return false
}

// IssueKind is a classification tag attached to a record. The string value
// is the label persisted on the wire.
type IssueKind string

const (
	IssueMissingExtension IssueKind = "Missing Extension"
	IssueNonTenDigit      IssueKind = "Non-10-Digit"
	IssueInvalidFormat    IssueKind = "Invalid Format"
	IssueIncorrectNaming  IssueKind = "Incorrect Naming"
	IssueSurfaceBody      IssueKind = "Surface Body"

	// Placeholder tags mark rows that carry no identifier.
	IssueEmptySheet   IssueKind = "Empty Sheet"
	IssueNoIdentifier IssueKind = "No Identifier"
	IssueEmptyRow     IssueKind = "Empty Row"
)

// ChartIssueKinds is the fixed order used by IssueDistribution.
var ChartIssueKinds = []IssueKind{
	IssueMissingExtension,
	IssueSurfaceBody,
	IssueInvalidFormat,
	IssueNonTenDigit,
	IssueIncorrectNaming,
}

// Placeholder reports whether k marks a row without an identifier.
func (k IssueKind) Placeholder() bool {
	switch k {
	case IssueEmptySheet, IssueNoIdentifier, IssueEmptyRow:
		return true
	}
	return false
}

// Known reports whether k is a rule or placeholder tag.
func (k IssueKind) Known() bool {
	return k.Placeholder() || slices.Contains(ChartIssueKinds, k)
}

// PartRecord is one classified row of an ingested report.
type PartRecord struct {
	ID           string      `json:"id"`
	RawValue     string      `json:"partNumber"`
	Status       Status      `json:"status"`
	Issues       []IssueKind `json:"issues"`
	LastModified time.Time   `json:"lastModified"`
	ReportDate   time.Time   `json:"reportDate"`
	SourceSheet  string      `json:"sheetName,omitempty"`
}

// HasIssue reports whether the record carries tag k.
func (r PartRecord) HasIssue(k IssueKind) bool {
	return slices.Contains(r.Issues, k)
}

// Clone returns a copy that shares no memory with r.
func (r PartRecord) Clone() PartRecord {
	r.Issues = append(make([]IssueKind, 0, len(r.Issues)), r.Issues...)
	return r
}

// QAReport is one ingested file. Its records live in the flat record
// collection and are referenced here by id, in row order.
type QAReport struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	UploadDate time.Time `json:"uploadDate"`
	RecordIDs  []string  `json:"-"`
}

// Clone returns a copy that shares no memory with r.
func (r QAReport) Clone() QAReport {
	r.RecordIDs = append(make([]string, 0, len(r.RecordIDs)), r.RecordIDs...)
	return r
}

// ReportBundle is a report together with its records, as produced by the
// assembler and consumed by StateStore.AddReport.
type ReportBundle struct {
	Report  QAReport
	Records []PartRecord
}

// State is an immutable snapshot of all reports and records.
type State struct {
	Reports []QAReport
	Records []PartRecord
}

// Clone deep-copies the state.
func (s State) Clone() State {
	out := State{
		Reports: make([]QAReport, len(s.Reports)),
		Records: make([]PartRecord, len(s.Records)),
	}
	for i, r := range s.Reports {
		out.Reports[i] = r.Clone()
	}
	for i, r := range s.Records {
		out.Records[i] = r.Clone()
	}
	return out
}

// Empty reports whether the state holds no reports and no records.
func (s State) Empty() bool {
	return len(s.Reports) == 0 && len(s.Records) == 0
}

// RecordsOf resolves the records of report in report order. Ids with no
// matching record are skipped.
func (s State) RecordsOf(report QAReport) []PartRecord {
	byID := make(map[string]int, len(s.Records))
	for i, r := range s.Records {
		byID[r.ID] = i
	}
	out := make([]PartRecord, 0, len(report.RecordIDs))
	for _, id := range report.RecordIDs {
		if i, ok := byID[id]; ok {
			out = append(out, s.Records[i].Clone())
		}
	}
	return out
}

// RecordPatch holds the fields an operator may change on a record.
// Nil fields are left untouched.
type RecordPatch struct {
	RawValue    *string      `json:"partNumber,omitempty"`
	Status      *Status      `json:"status,omitempty"`
	Issues      *[]IssueKind `json:"issues,omitempty"`
	SourceSheet *string      `json:"sheetName,omitempty"`
}

// CorrectedPatch marks a record as manually corrected and clears its issues.
func CorrectedPatch() RecordPatch {
	status := StatusCorrected
	issues := []IssueKind{}
	return RecordPatch{Status: &status, Issues: &issues}
}

// Empty reports whether the patch changes nothing.
func (p RecordPatch) Empty() bool {
	return p.RawValue == nil && p.Status == nil && p.Issues == nil && p.SourceSheet == nil
}

// apply merges p into r. It does not touch LastModified.
func (p RecordPatch) apply(r *PartRecord) {
	if p.RawValue != nil {
		r.RawValue = *p.RawValue
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.Issues != nil {
		r.Issues = dedupeIssues(*p.Issues)
	}
	if p.SourceSheet != nil {
		r.SourceSheet = *p.SourceSheet
	}
}

func dedupeIssues(in []IssueKind) []IssueKind {
	out := make([]IssueKind, 0, len(in))
	for _, k := range in {
		if !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out
}

// Row is one data row of a sheet. Placeholder is set by the ingestor when the
// row carries no identifier; Cells is then informational only.
type Row struct {
	Cells       []string
	Placeholder IssueKind
}

// Identifier returns the first cell, or "" when the row has no cells.
func (r Row) Identifier() string {
	if len(r.Cells) == 0 {
		return ""
	}
	return r.Cells[0]
}

// SheetRows is the ordered data rows of one sheet, header excluded.
type SheetRows struct {
	Name string
	Rows []Row
}
