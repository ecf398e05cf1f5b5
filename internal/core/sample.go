package core

import (
	"fmt"
	"time"
)

// Sample fixture parameters.
const (
	SampleReportID = "sample-report"
	SampleFilename = "Sample_5_Sheets.xlsx"
	sampleSheets   = 5
)

// SampleBundle builds the deterministic demo report. Sheet i (0-based) has
// 10+5i rows; a row's tags depend only on its position, and every timestamp
// is now.
func SampleBundle(now time.Time) ReportBundle {
	var records []PartRecord
	for sheet := 0; sheet < sampleSheets; sheet++ {
		sheetName := fmt.Sprintf("Sheet%d", sheet+1)
		rows := 10 + 5*sheet
		for i := 0; i < rows; i++ {
			records = append(records, sampleRecord(sheet, i, sheetName, now))
		}
	}

	report := QAReport{
		ID:         SampleReportID,
		Filename:   SampleFilename,
		UploadDate: now,
		RecordIDs:  make([]string, len(records)),
	}
	for i, r := range records {
		report.RecordIDs[i] = r.ID
	}
	return ReportBundle{Report: report, Records: records}
}

func sampleRecord(sheet, i int, sheetName string, now time.Time) PartRecord {
	value := fmt.Sprintf("PN%02d%03d", sheet+1, i+1)
	hasExtension := i%3 != 0
	if hasExtension {
		value += ".sldprt"
	}

	k := i + sheet
	var issues []IssueKind
	if !hasExtension {
		issues = append(issues, IssueMissingExtension)
	}
	if k%13 == 0 {
		issues = append(issues, IssueNonTenDigit)
	}
	if k%11 == 0 {
		issues = append(issues, IssueInvalidFormat)
	}
	if k%17 == 0 {
		issues = append(issues, IssueIncorrectNaming)
	}
	if k%7 == 0 {
		issues = append(issues, IssueSurfaceBody)
	}
	if issues == nil {
		issues = []IssueKind{}
	}

	return PartRecord{
		ID:           fmt.Sprintf("sample-%d-%d", sheet, i),
		RawValue:     value,
		Status:       StatusFor(issues),
		Issues:       issues,
		LastModified: now,
		ReportDate:   now,
		SourceSheet:  sheetName,
	}
}
