package core

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
)

type fakePersister struct {
	mu        sync.Mutex
	loaded    State
	loadErr   error
	saveErr   error
	saved     []State
	uploads   []State
	artifacts []string
}

func (f *fakePersister) Load(context.Context) (State, error) { return f.loaded, f.loadErr }

func (f *fakePersister) SaveLocal(_ context.Context, st State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, st)
	return f.saveErr
}

func (f *fakePersister) ScheduleUpload(st State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, st)
}

func (f *fakePersister) PersistArtifacts(_ context.Context, b ReportBundle, filename string, _ []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.artifacts = append(f.artifacts, b.Report.ID+"/"+filename)
}

func (f *fakePersister) Flush(context.Context) error { return nil }

func fakeParser(sheets ...SheetRows) Parser {
	return func(string, []byte) ([]SheetRows, error) { return sheets, nil }
}

func newTestService(t *testing.T, p *fakePersister, parse Parser) *Service {
	t.Helper()
	svc, err := NewService(ServiceDeps{
		Store:     NewStateStore(FixedClock(testNow)),
		Assembler: newTestAssembler(),
		Parser:    parse,
		Persister: p,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestNewService_RequiresDeps(t *testing.T) {
	if _, err := NewService(ServiceDeps{Persister: &fakePersister{}}); err == nil {
		t.Error("NewService without parser succeeded")
	}
	if _, err := NewService(ServiceDeps{Parser: fakeParser()}); err == nil {
		t.Error("NewService without persister succeeded")
	}
}

func TestService_Ingest(t *testing.T) {
	p := &fakePersister{}
	svc := newTestService(t, p, fakeParser(SheetRows{Name: "S", Rows: []Row{
		{Cells: []string{"12345.sldprt"}},
		{Cells: []string{"PN1234567890.sldprt"}},
	}}))

	b, err := svc.Ingest(context.Background(), "q.xlsx", []byte("data"))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(b.Records) != 2 {
		t.Fatalf("len(Records) = %d, want 2", len(b.Records))
	}
	if len(p.saved) != 1 || len(p.uploads) != 1 {
		t.Errorf("saved %d, uploaded %d; want 1 each", len(p.saved), len(p.uploads))
	}
	if len(p.artifacts) != 1 || p.artifacts[0] != "rpt_1/q.xlsx" {
		t.Errorf("artifacts = %v", p.artifacts)
	}

	stats := svc.Stats()
	if stats.TotalParts != 2 || stats.CorrectedParts != 1 || stats.PendingParts != 1 {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestService_IngestParseFailureLeavesStateUntouched(t *testing.T) {
	p := &fakePersister{}
	svc := newTestService(t, p, func(string, []byte) ([]SheetRows, error) {
		return nil, io.ErrUnexpectedEOF
	})

	_, err := svc.Ingest(context.Background(), "broken.xlsx", []byte{0x50, 0x4b})
	if !IsFileParseError(err) {
		t.Fatalf("Ingest error = %v, want FileParseError", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Ingest error = %v, want wrapped cause", err)
	}
	if !svc.Snapshot().Empty() || len(p.saved) != 0 || len(p.artifacts) != 0 {
		t.Error("failed ingest had side effects")
	}
}

func TestService_IngestTooLarge(t *testing.T) {
	svc, err := NewService(ServiceDeps{
		Parser:      fakeParser(),
		Persister:   &fakePersister{},
		MaxFileSize: 4,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	_, err = svc.Ingest(context.Background(), "big.xlsx", []byte("12345"))
	if !errors.Is(err, ErrFileTooLarge) || !IsFileParseError(err) {
		t.Errorf("Ingest error = %v, want FileParseError wrapping ErrFileTooLarge", err)
	}
}

func TestService_CacheFailureIsSurfaced(t *testing.T) {
	p := &fakePersister{saveErr: errors.New("disk full")}
	svc := newTestService(t, p, fakeParser())

	err := svc.LoadSample(context.Background())
	var ce *CacheError
	if !errors.As(err, &ce) {
		t.Fatalf("LoadSample error = %v, want CacheError", err)
	}
	if svc.Snapshot().Empty() {
		t.Error("in-memory state should keep the sample after a cache failure")
	}
	if len(p.uploads) != 1 {
		t.Errorf("uploads = %d, want 1 despite the cache failure", len(p.uploads))
	}
}

func TestService_UpdateAndRemove(t *testing.T) {
	p := &fakePersister{}
	svc := newTestService(t, p, fakeParser())
	ctx := context.Background()
	if err := svc.LoadSample(ctx); err != nil {
		t.Fatalf("LoadSample: %v", err)
	}

	found, err := svc.UpdateRecord(ctx, "sample-0-0", CorrectedPatch())
	if err != nil || !found {
		t.Fatalf("UpdateRecord = %v, %v", found, err)
	}
	rec, _ := svc.Record("sample-0-0")
	if rec.Status != StatusCorrected || len(rec.Issues) != 0 {
		t.Errorf("record after correction = %+v", rec)
	}

	bad := Status("done")
	if _, err := svc.UpdateRecord(ctx, "sample-0-0", RecordPatch{Status: &bad}); err == nil {
		t.Error("UpdateRecord accepted an unknown status")
	}

	writes := len(p.saved)
	found, err = svc.UpdateRecord(ctx, "nope", CorrectedPatch())
	if err != nil || found {
		t.Errorf("UpdateRecord(unknown) = %v, %v; want false, nil", found, err)
	}
	if len(p.saved) != writes {
		t.Error("no-op update wrote to the cache")
	}

	found, err = svc.RemoveRecord(ctx, "sample-0-0")
	if err != nil || !found {
		t.Fatalf("RemoveRecord = %v, %v", found, err)
	}
	if got := svc.Stats().TotalParts; got != 99 {
		t.Errorf("TotalParts = %d, want 99", got)
	}

	if err := svc.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if last := p.saved[len(p.saved)-1]; !last.Empty() {
		t.Error("last cache write after Clear is not empty")
	}
}

func TestService_Load(t *testing.T) {
	b := SampleBundle(testNow)
	p := &fakePersister{loaded: State{Reports: []QAReport{b.Report}, Records: b.Records}}
	svc := newTestService(t, p, fakeParser())

	if err := svc.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := len(svc.Snapshot().Records); got != 100 {
		t.Errorf("records after Load = %d, want 100", got)
	}
}
