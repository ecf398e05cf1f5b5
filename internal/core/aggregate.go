package core

import (
	"sort"
	"time"
)

// UnknownSheet buckets records without a source sheet.
const UnknownSheet = "Unknown"

// Stats are headline counts over a record set.
type Stats struct {
	TotalParts        int `json:"totalParts" yaml:"total_parts"`
	MissingExtensions int `json:"missingExtensions" yaml:"missing_extensions"`
	SurfaceBodies     int `json:"surfaceBodies" yaml:"surface_bodies"`
	CorrectedParts    int `json:"correctedParts" yaml:"corrected_parts"`
	InvalidParts      int `json:"invalidParts" yaml:"invalid_parts"`
	PendingParts      int `json:"pendingParts" yaml:"pending_parts"`
}

// IssueCount is one bar of the issue distribution.
type IssueCount struct {
	Name  IssueKind `json:"name" yaml:"name"`
	Count int       `json:"count" yaml:"count"`
}

// MonthTrend is one calendar month of the resolution trend.
type MonthTrend struct {
	Month     string `json:"month" yaml:"month"` // "Jan 2006"
	Key       string `json:"key" yaml:"key"`     // "2006-01"
	NewIssues int    `json:"newIssues" yaml:"new_issues"`
	Resolved  int    `json:"resolved" yaml:"resolved"`
}

// SheetCount is the per-sheet row and issue tally.
type SheetCount struct {
	SheetName string `json:"sheetName" yaml:"sheet_name"`
	TotalRows int    `json:"totalRows" yaml:"total_rows"`
	IssueRows int    `json:"issueRows" yaml:"issue_rows"`
}

// Charts bundles every chart series.
type Charts struct {
	IssueDistribution []IssueCount `json:"issueDistribution" yaml:"issue_distribution"`
	ResolutionTrends  []MonthTrend `json:"resolutionTrends" yaml:"resolution_trends"`
	SheetDistribution []SheetCount `json:"sheetDistribution" yaml:"sheet_distribution"`
}

// ComputeStats counts records by tag and status.
func ComputeStats(records []PartRecord) Stats {
	st := Stats{TotalParts: len(records)}
	for _, r := range records {
		if r.HasIssue(IssueMissingExtension) {
			st.MissingExtensions++
		}
		if r.HasIssue(IssueSurfaceBody) {
			st.SurfaceBodies++
		}
		switch r.Status {
		case StatusCorrected:
			st.CorrectedParts++
		case StatusInvalid:
			st.InvalidParts++
		case StatusPending:
			st.PendingParts++
		}
	}
	return st
}

// IssueDistribution counts records per rule tag in ChartIssueKinds order.
// Every kind is present, including zero counts.
func IssueDistribution(records []PartRecord) []IssueCount {
	out := make([]IssueCount, len(ChartIssueKinds))
	for i, k := range ChartIssueKinds {
		out[i].Name = k
		for _, r := range records {
			if r.HasIssue(k) {
				out[i].Count++
			}
		}
	}
	return out
}

// ResolutionTrend groups records by the UTC year-month of LastModified and
// returns the buckets oldest first.
func ResolutionTrend(records []PartRecord) []MonthTrend {
	buckets := map[string]*MonthTrend{}
	for _, r := range records {
		t := r.LastModified.UTC()
		key := t.Format("2006-01")
		b, ok := buckets[key]
		if !ok {
			first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
			b = &MonthTrend{Key: key, Month: first.Format("Jan 2006")}
			buckets[key] = b
		}
		switch r.Status {
		case StatusPending:
			b.NewIssues++
		case StatusCorrected:
			b.Resolved++
		}
	}

	out := make([]MonthTrend, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// SheetDistribution tallies rows per source sheet in first-seen order.
func SheetDistribution(records []PartRecord) []SheetCount {
	idx := map[string]int{}
	var out []SheetCount
	for _, r := range records {
		name := r.SourceSheet
		if name == "" {
			name = UnknownSheet
		}
		i, ok := idx[name]
		if !ok {
			i = len(out)
			idx[name] = i
			out = append(out, SheetCount{SheetName: name})
		}
		out[i].TotalRows++
		if len(r.Issues) > 0 {
			out[i].IssueRows++
		}
	}
	if out == nil {
		out = []SheetCount{}
	}
	return out
}

// BuildCharts computes every chart series from one record set.
func BuildCharts(records []PartRecord) Charts {
	return Charts{
		IssueDistribution: IssueDistribution(records),
		ResolutionTrends:  ResolutionTrend(records),
		SheetDistribution: SheetDistribution(records),
	}
}
