package core

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func testBundle(reportID string, n int) ReportBundle {
	b := ReportBundle{Report: QAReport{ID: reportID, Filename: reportID + ".xlsx", UploadDate: testNow}}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s-r%d", reportID, i)
		b.Records = append(b.Records, PartRecord{
			ID: id, RawValue: "PN1234567890.sldprt", Status: StatusCorrected,
			Issues: []IssueKind{}, LastModified: testNow, ReportDate: testNow, SourceSheet: "S",
		})
		b.Report.RecordIDs = append(b.Report.RecordIDs, id)
	}
	return b
}

func TestStateStore_AddReport(t *testing.T) {
	s := NewStateStore(FixedClock(testNow))
	if err := s.AddReport(testBundle("a", 2)); err != nil {
		t.Fatalf("AddReport: %v", err)
	}
	if err := s.AddReport(testBundle("b", 3)); err != nil {
		t.Fatalf("AddReport: %v", err)
	}

	snap := s.Snapshot()
	if len(snap.Reports) != 2 || len(snap.Records) != 5 {
		t.Fatalf("snapshot has %d reports, %d records; want 2, 5", len(snap.Reports), len(snap.Records))
	}
	if got := snap.Records[2].ID; got != "b-r0" {
		t.Errorf("Records[2].ID = %q, want b-r0", got)
	}
	if got := s.Len(); got != 5 {
		t.Errorf("Len = %d, want 5", got)
	}
}

func TestStateStore_AddReportRejectsDuplicates(t *testing.T) {
	s := NewStateStore(nil)
	if err := s.AddReport(testBundle("a", 2)); err != nil {
		t.Fatalf("AddReport: %v", err)
	}
	dup := testBundle("c", 1)
	dup.Records[0].ID = "a-r1"

	for _, b := range []ReportBundle{testBundle("a", 1), dup} {
		if err := s.AddReport(b); !errors.Is(err, ErrDuplicateID) {
			t.Errorf("AddReport(%s) error = %v, want ErrDuplicateID", b.Report.ID, err)
		}
	}
	if got := s.Len(); got != 2 {
		t.Errorf("Len = %d after rejected adds, want 2", got)
	}
}

func TestStateStore_UpdateRecord(t *testing.T) {
	later := testNow.Add(time.Hour)
	clock := testNow
	s := NewStateStore(func() time.Time { return clock })
	_ = s.AddReport(testBundle("a", 1))

	clock = later
	value := "PN0000000001.sldprt"
	if !s.UpdateRecord("a-r0", RecordPatch{RawValue: &value, Issues: &[]IssueKind{IssueSurfaceBody, IssueSurfaceBody}}) {
		t.Fatal("UpdateRecord returned false for known id")
	}

	got, _ := s.Record("a-r0")
	want := PartRecord{
		ID: "a-r0", RawValue: value, Status: StatusCorrected,
		Issues: []IssueKind{IssueSurfaceBody}, LastModified: later, ReportDate: testNow, SourceSheet: "S",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}

	v := s.Version()
	if s.UpdateRecord("missing", CorrectedPatch()) {
		t.Error("UpdateRecord(missing) = true, want false")
	}
	if s.Version() != v {
		t.Error("unknown id changed the store version")
	}
}

func TestStateStore_RemoveRecordDetachesFromReport(t *testing.T) {
	s := NewStateStore(nil)
	_ = s.AddReport(testBundle("a", 3))

	if !s.RemoveRecord("a-r1") {
		t.Fatal("RemoveRecord returned false for known id")
	}
	if s.RemoveRecord("a-r1") {
		t.Error("second RemoveRecord returned true")
	}

	snap := s.Snapshot()
	if diff := cmp.Diff([]string{"a-r0", "a-r2"}, snap.Reports[0].RecordIDs); diff != "" {
		t.Errorf("report ids mismatch (-want +got):\n%s", diff)
	}
	if _, ok := s.Record("a-r2"); !ok {
		t.Error("index lost a-r2 after removal")
	}
}

func TestStateStore_SnapshotIsIsolated(t *testing.T) {
	s := NewStateStore(nil)
	_ = s.AddReport(testBundle("a", 1))

	snap := s.Snapshot()
	snap.Records[0].Issues = append(snap.Records[0].Issues, IssueEmptyRow)
	snap.Reports[0].RecordIDs[0] = "tampered"

	again := s.Snapshot()
	if len(again.Records[0].Issues) != 0 || again.Reports[0].RecordIDs[0] != "a-r0" {
		t.Error("mutating a snapshot leaked into the store")
	}
}

func TestStateStore_ClearAndSample(t *testing.T) {
	s := NewStateStore(FixedClock(testNow))
	_ = s.AddReport(testBundle("a", 1))

	s.LoadSample()
	snap := s.Snapshot()
	if len(snap.Reports) != 1 || snap.Reports[0].ID != SampleReportID {
		t.Fatalf("LoadSample reports = %+v", snap.Reports)
	}
	if got := s.Len(); got != 100 {
		t.Errorf("sample Len = %d, want 100", got)
	}

	s.Clear()
	if !s.Snapshot().Empty() {
		t.Error("Clear left data behind")
	}
}

// Readers must see a report together with all of its records, or neither.
func TestStateStore_AddReportAtomicUnderReaders(t *testing.T) {
	s := NewStateStore(nil)
	const reports, perReport = 40, 25

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := s.Snapshot()
				if len(snap.Records) != len(snap.Reports)*perReport {
					t.Errorf("partial state: %d reports, %d records", len(snap.Reports), len(snap.Records))
					return
				}
			}
		}()
	}

	for i := 0; i < reports; i++ {
		if err := s.AddReport(testBundle(fmt.Sprintf("r%d", i), perReport)); err != nil {
			t.Fatalf("AddReport: %v", err)
		}
	}
	close(stop)
	wg.Wait()
}
