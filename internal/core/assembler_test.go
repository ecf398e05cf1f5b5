package core

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var testNow = time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)

func newTestAssembler() *Assembler {
	return &Assembler{
		Rules:       NewRuleEngine(nil),
		NewRecordID: Sequence("pn_"),
		NewReportID: Sequence("rpt_"),
		Clock:       FixedClock(testNow),
	}
}

func TestAssembler_Assemble(t *testing.T) {
	sheets := []SheetRows{
		{Name: "Parts", Rows: []Row{
			{Cells: []string{"PN1234567890.sldprt", "Bracket"}},
			{Cells: []string{`="12345"`}},
			{Cells: []string{"", "orphan note"}, Placeholder: IssueNoIdentifier},
		}},
		{Name: "Empty", Rows: []Row{{Placeholder: IssueEmptySheet}}},
	}

	b := newTestAssembler().Assemble("q1.xlsx", sheets)

	wantRecords := []PartRecord{
		{ID: "pn_1", RawValue: "PN1234567890.sldprt", Status: StatusCorrected, Issues: []IssueKind{}, LastModified: testNow, ReportDate: testNow, SourceSheet: "Parts"},
		{ID: "pn_2", RawValue: `="12345"`, Status: StatusPending, Issues: []IssueKind{IssueMissingExtension, IssueNonTenDigit, IssueIncorrectNaming}, LastModified: testNow, ReportDate: testNow, SourceSheet: "Parts"},
		{ID: "pn_3", Status: StatusInvalid, Issues: []IssueKind{IssueNoIdentifier}, LastModified: testNow, ReportDate: testNow, SourceSheet: "Parts"},
		{ID: "pn_4", Status: StatusInvalid, Issues: []IssueKind{IssueEmptySheet}, LastModified: testNow, ReportDate: testNow, SourceSheet: "Empty"},
	}
	if diff := cmp.Diff(wantRecords, b.Records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}

	wantReport := QAReport{
		ID:         "rpt_1",
		Filename:   "q1.xlsx",
		UploadDate: testNow,
		RecordIDs:  []string{"pn_1", "pn_2", "pn_3", "pn_4"},
	}
	if diff := cmp.Diff(wantReport, b.Report); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestAssembler_StatusInvariant(t *testing.T) {
	sheets := []SheetRows{{Name: "S", Rows: []Row{
		{Cells: []string{"PN1234567890.sldprt"}},
		{Cells: []string{"ASM99"}},
		{Cells: []string{"x y z"}},
	}}}

	for _, r := range newTestAssembler().Assemble("f.xlsx", sheets).Records {
		if (len(r.Issues) == 0) != (r.Status == StatusCorrected) {
			t.Errorf("record %s: status %s with issues %v", r.RawValue, r.Status, r.Issues)
		}
	}
}

func TestAssembler_BlankIdentifierWithoutPlaceholder(t *testing.T) {
	tests := []struct {
		name  string
		cells []string
		want  IssueKind
	}{
		{name: "whitespace only", cells: []string{"   "}, want: IssueEmptyRow},
		{name: "empty formula", cells: []string{`=""`, " "}, want: IssueEmptyRow},
		{name: "no cells", cells: nil, want: IssueEmptyRow},
		{name: "note beside blank identifier", cells: []string{`=""`, "orphan note"}, want: IssueNoIdentifier},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestAssembler().Assemble("f.csv", []SheetRows{{Name: "f", Rows: []Row{{Cells: tt.cells}}}})
			if len(b.Records) != 1 {
				t.Fatalf("len(Records) = %d, want 1", len(b.Records))
			}
			got := b.Records[0]
			if got.Status != StatusInvalid || !got.HasIssue(tt.want) || len(got.Issues) != 1 {
				t.Errorf("record = %+v, want invalid %s placeholder", got, tt.want)
			}
			if got.RawValue != "" {
				t.Errorf("RawValue = %q, want empty", got.RawValue)
			}
		})
	}
}

func TestAssembler_KeepsExportedIdentifier(t *testing.T) {
	sheets := []SheetRows{{Name: "S", Rows: []Row{
		{Cells: []string{`  ="PN0000000001.sldprt"  `}},
		{Cells: []string{`'PN0000000002.sldprt'`}},
	}}}

	b := newTestAssembler().Assemble("f.xlsx", sheets)
	wantRaw := []string{`="PN0000000001.sldprt"`, `'PN0000000002.sldprt'`}
	for i, r := range b.Records {
		if r.RawValue != wantRaw[i] {
			t.Errorf("record %d RawValue = %q, want %q", i, r.RawValue, wantRaw[i])
		}
		if r.Status != StatusCorrected || len(r.Issues) != 0 {
			t.Errorf("record %d = %s %v, want corrected with no issues", i, r.Status, r.Issues)
		}
	}
}

func TestAssembler_NoSheets(t *testing.T) {
	b := newTestAssembler().Assemble("f.xlsx", nil)
	if len(b.Records) != 0 || len(b.Report.RecordIDs) != 0 {
		t.Errorf("Assemble(nil) produced %d records", len(b.Records))
	}
}
