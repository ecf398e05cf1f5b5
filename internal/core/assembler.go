package core

// Assembler turns ingested sheets into a report and its classified records.
// Zero-value fields fall back to defaults when Assemble is called.
type Assembler struct {
	Rules       *RuleEngine
	NewRecordID Generator
	NewReportID Generator
	Clock       Clock
}

// NewAssembler returns an assembler with default id generators and clock.
func NewAssembler(rules *RuleEngine) *Assembler {
	return &Assembler{
		Rules:       rules,
		NewRecordID: DefaultRecordIDs,
		NewReportID: DefaultReportIDs,
		Clock:       SystemClock,
	}
}

// Assemble builds one report from sheets. Records follow sheet order, then
// row order. Every record in the report shares the same timestamp.
func (a *Assembler) Assemble(filename string, sheets []SheetRows) ReportBundle {
	rules := a.Rules
	if rules == nil {
		rules = NewRuleEngine(nil)
	}
	recordID := a.NewRecordID
	if recordID == nil {
		recordID = DefaultRecordIDs
	}
	reportID := a.NewReportID
	if reportID == nil {
		reportID = DefaultReportIDs
	}
	clock := a.Clock
	if clock == nil {
		clock = SystemClock
	}

	now := clock()
	var records []PartRecord
	for _, sheet := range sheets {
		for _, row := range sheet.Rows {
			rec := PartRecord{
				ID:           recordID(),
				LastModified: now,
				ReportDate:   now,
				SourceSheet:  sheet.Name,
			}
			// Rules see the cleaned identifier; the record keeps the cell as
			// exported, trimmed.
			id := NormalizeIdentifier(CleanCell(row.Identifier()))
			switch {
			case row.Placeholder != "":
				rec.Status = StatusInvalid
				rec.Issues = []IssueKind{row.Placeholder}
			case id == "":
				rec.Status = StatusInvalid
				rec.Issues = []IssueKind{blankRowTag(row.Cells)}
			default:
				rec.RawValue = NormalizeIdentifier(row.Identifier())
				rec.Issues = rules.Classify(id)
				rec.Status = StatusFor(rec.Issues)
			}
			records = append(records, rec)
		}
	}

	report := QAReport{
		ID:         reportID(),
		Filename:   filename,
		UploadDate: now,
		RecordIDs:  make([]string, len(records)),
	}
	for i, r := range records {
		report.RecordIDs[i] = r.ID
	}
	return ReportBundle{Report: report, Records: records}
}

// blankRowTag tags a row whose identifier cleans to nothing.
func blankRowTag(cells []string) IssueKind {
	if IsBlankRow(cells) {
		return IssueEmptyRow
	}
	return IssueNoIdentifier
}
