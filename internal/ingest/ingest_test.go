package ingest

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/qareports/internal/core"
)

// cmpEmpty treats nil and empty slices as equal; excelize returns either for
// blank rows.
var cmpEmpty = cmpopts.EquateEmpty()

type testSheet struct {
	name string
	rows [][]any // nil entries leave the row blank
}

func buildWorkbook(t *testing.T, sheets ...testSheet) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				t.Fatalf("SetSheetName: %v", err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			t.Fatalf("NewSheet: %v", err)
		}
		for r, row := range s.rows {
			if row == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				t.Fatalf("CoordinatesToCellName: %v", err)
			}
			if err := f.SetSheetRow(s.name, cell, &row); err != nil {
				t.Fatalf("SetSheetRow: %v", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf.Bytes()
}

func TestParse_Workbook(t *testing.T) {
	data := buildWorkbook(t,
		testSheet{name: "Parts", rows: [][]any{
			{"Part Number", "Description"},
			{"PN1234567890.sldprt", "Bracket"},
			{1234567890, "numeric id"},
			{"", "note without id"},
			nil,
			{"ASM0000000001.sldasm"},
		}},
		testSheet{name: "Blank", rows: [][]any{{"Part Number"}}},
	)

	wb, err := Parse("export.xlsx", data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if wb.Format != FormatXLSX {
		t.Errorf("Format = %v, want xlsx", wb.Format)
	}

	want := []Sheet{
		{Name: "Parts", Rows: []Row{
			{Cells: []string{"PN1234567890.sldprt", "Bracket"}},
			{Cells: []string{"1234567890", "numeric id"}},
			{Cells: []string{"", "note without id"}, Placeholder: core.IssueNoIdentifier},
			{Cells: []string{}, Placeholder: core.IssueEmptyRow},
			{Cells: []string{"ASM0000000001.sldasm"}},
		}},
		{Name: "Blank", Rows: []Row{{Placeholder: core.IssueEmptySheet}}},
	}
	if diff := cmp.Diff(want, wb.Sheets, cmpEmpty); diff != "" {
		t.Errorf("sheets mismatch (-want +got):\n%s", diff)
	}
	if got := wb.RowCount(); got != 6 {
		t.Errorf("RowCount = %d, want 6", got)
	}
}

func TestParse_CSV(t *testing.T) {
	data := []byte("\xEF\xBB\xBFPart Number,Qty\r\n=\"PN0000000001.sldprt\",1\r\n,2\r\nBad\xff.prt,3\r\n")

	wb, err := Parse("weekly_qa.csv", data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(wb.Sheets) != 1 || wb.Sheets[0].Name != "weekly_qa" {
		t.Fatalf("sheets = %+v, want one sheet named weekly_qa", wb.Sheets)
	}

	rows := wb.Sheets[0].Rows
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}
	if got := core.CleanCell(rows[0].Identifier()); got != "PN0000000001.sldprt" {
		t.Errorf("row 0 identifier = %q", got)
	}
	if rows[1].Placeholder != core.IssueNoIdentifier {
		t.Errorf("row 1 placeholder = %q, want No Identifier", rows[1].Placeholder)
	}
	if got := rows[2].Identifier(); got != "Bad\uFFFD.prt" {
		t.Errorf("row 2 identifier = %q, want replacement character", got)
	}
}

func TestParse_TabSeparated(t *testing.T) {
	wb, err := Parse("export.txt", []byte("Part\tNote\nPN1\tx\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if diff := cmp.Diff([]string{"PN1", "x"}, wb.Sheets[0].Rows[0].Cells); diff != "" {
		t.Errorf("cells mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
		parser   Parser
		want     error
	}{
		{name: "corrupt workbook", filename: "a.xlsx", data: []byte("PK\x03\x04garbage")},
		{name: "xlsx that is not zip", filename: "a.xlsx", data: []byte("hello")},
		{name: "legacy xls", filename: "a.xls", data: []byte{0xD0, 0xCF, 0x11, 0xE0}, want: core.ErrUnsupportedFile},
		{name: "binary blob", filename: "a.bin", data: []byte{0x00, 0x01, 0x02}, want: core.ErrUnsupportedFile},
		{name: "invalid utf-8 without extension", filename: "upload.dat", data: []byte{0xff, 0xfe, 0x01, 0x02, 0x80, 0x81, '\n', 0xc3, 0x28, 0x10}, want: core.ErrUnsupportedFile},
		{name: "too large", filename: "a.csv", data: []byte("h\nv\n"), parser: Parser{MaxBytes: 2}, want: core.ErrFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wb, err := tt.parser.Parse(tt.filename, tt.data)
			if wb != nil {
				t.Error("Parse returned a partial workbook")
			}
			var pe *core.FileParseError
			if !errors.As(err, &pe) {
				t.Fatalf("Parse error = %v, want *core.FileParseError", err)
			}
			if pe.Filename != tt.filename {
				t.Errorf("Filename = %q, want %q", pe.Filename, tt.filename)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Parse error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParser_SheetsFeedsAssembler(t *testing.T) {
	data := buildWorkbook(t, testSheet{name: "S", rows: [][]any{{"id"}, {"12345"}}})

	sheets, err := Parser{}.Sheets("f.xlsx", data)
	if err != nil {
		t.Fatalf("Sheets: %v", err)
	}
	b := core.NewAssembler(core.NewRuleEngine(nil)).Assemble("f.xlsx", sheets)
	if len(b.Records) != 1 || b.Records[0].SourceSheet != "S" {
		t.Fatalf("records = %+v", b.Records)
	}
	want := []core.IssueKind{core.IssueMissingExtension, core.IssueNonTenDigit, core.IssueIncorrectNaming}
	if diff := cmp.Diff(want, b.Records[0].Issues); diff != "" {
		t.Errorf("issues mismatch (-want +got):\n%s", diff)
	}
}
