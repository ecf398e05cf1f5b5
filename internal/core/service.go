package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// IngestTimeout bounds parsing and assembling a single upload.
var IngestTimeout = 2 * time.Minute

// Parser turns raw upload bytes into sheets of rows. Failures must be
// reported as *FileParseError.
type Parser func(filename string, data []byte) ([]SheetRows, error)

// Persister is the dual-tier persistence the service writes through.
type Persister interface {
	// Load returns the authoritative state at startup.
	Load(ctx context.Context) (State, error)
	// SaveLocal writes st to the local cache synchronously.
	SaveLocal(ctx context.Context, st State) error
	// ScheduleUpload queues st for asynchronous remote upload.
	ScheduleUpload(st State)
	// PersistArtifacts stores the original file and parsed report, best effort.
	PersistArtifacts(ctx context.Context, b ReportBundle, filename string, raw []byte)
	// Flush waits for queued uploads to finish.
	Flush(ctx context.Context) error
}

// MetricsRecorder observes operation outcomes.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) Observe(context.Context, string, bool, time.Duration) {}

// ServiceDeps wires a Service. Parser and Persister are required.
type ServiceDeps struct {
	Store       *StateStore
	Assembler   *Assembler
	Parser      Parser
	Persister   Persister
	Limiter     *UploadLimiter
	Metrics     MetricsRecorder
	MaxFileSize int64
}

// Service orchestrates ingestion, mutation and persistence. All mutations
// go through commit, which serializes writers so the local cache and the
// remote queue see states in the order they were produced.
type Service struct {
	store       *StateStore
	assembler   *Assembler
	parse       Parser
	persist     Persister
	limiter     *UploadLimiter
	metrics     MetricsRecorder
	maxFileSize int64

	mu sync.Mutex
}

// NewService creates a new Service instance.
func NewService(deps ServiceDeps) (*Service, error) {
	if deps.Parser == nil {
		return nil, errors.New("new service: parser is required")
	}
	if deps.Persister == nil {
		return nil, errors.New("new service: persister is required")
	}
	s := &Service{
		store:       deps.Store,
		assembler:   deps.Assembler,
		parse:       deps.Parser,
		persist:     deps.Persister,
		limiter:     deps.Limiter,
		metrics:     deps.Metrics,
		maxFileSize: deps.MaxFileSize,
	}
	if s.store == nil {
		s.store = NewStateStore(nil)
	}
	if s.assembler == nil {
		s.assembler = NewAssembler(NewRuleEngine(nil))
	}
	if s.limiter == nil {
		s.limiter = NewUploadLimiter(DefaultMaxConcurrentUploads, DefaultMaxWaitTime)
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	return s, nil
}

// Load replaces in-memory state with the persisted one. Persistence
// failures fall back to whatever the persister could recover and are
// returned for logging only.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.persist.Load(ctx)
	s.store.Replace(st)
	slog.Info("state loaded", "reports", len(st.Reports), "records", len(st.Records))
	return err
}

// Ingest parses an uploaded file, classifies every row and adds the
// resulting report. Parse failures return *FileParseError and leave state
// untouched.
func (s *Service) Ingest(ctx context.Context, filename string, data []byte) (ReportBundle, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return ReportBundle{}, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, IngestTimeout)
	defer cancel()

	start := time.Now()
	b, err := s.build(filename, data)
	s.metrics.Observe(ctx, "ingest.parse", err == nil, time.Since(start))
	if err != nil {
		slog.Warn("ingest failed", "filename", filename, "error", err)
		return ReportBundle{}, err
	}
	if err := ctx.Err(); err != nil {
		return ReportBundle{}, err
	}

	// A cache failure still leaves the report in memory, so it is returned
	// alongside the bundle.
	err = s.AddReport(ctx, b)
	var ce *CacheError
	if err != nil && !errors.As(err, &ce) {
		return ReportBundle{}, err
	}
	s.persist.PersistArtifacts(ctx, b, filename, data)

	slog.Info("report ingested",
		"report_id", b.Report.ID,
		"filename", filename,
		"records", len(b.Records),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return b, err
}

func (s *Service) build(filename string, data []byte) (ReportBundle, error) {
	if s.maxFileSize > 0 && int64(len(data)) > s.maxFileSize {
		return ReportBundle{}, NewFileParseError(filename,
			fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, len(data), s.maxFileSize))
	}
	sheets, err := s.parse(filename, data)
	if err != nil {
		if !IsFileParseError(err) {
			err = NewFileParseError(filename, err)
		}
		return ReportBundle{}, err
	}
	return s.assembler.Assemble(filename, sheets), nil
}

// AddReport adds an assembled report and persists the new state.
func (s *Service) AddReport(ctx context.Context, b ReportBundle) error {
	return s.commit(ctx, "add_report", func(st *StateStore) (bool, error) {
		if err := st.AddReport(b); err != nil {
			return false, err
		}
		return true, nil
	})
}

// UpdateRecord applies patch to record id. An unknown id is a no-op and
// returns false with no error.
func (s *Service) UpdateRecord(ctx context.Context, id string, patch RecordPatch) (bool, error) {
	if err := validatePatch(patch); err != nil {
		return false, err
	}
	var found bool
	err := s.commit(ctx, "update_record", func(st *StateStore) (bool, error) {
		found = st.UpdateRecord(id, patch)
		return found, nil
	})
	return found, err
}

// RemoveRecord deletes record id. An unknown id is a no-op.
func (s *Service) RemoveRecord(ctx context.Context, id string) (bool, error) {
	var found bool
	err := s.commit(ctx, "remove_record", func(st *StateStore) (bool, error) {
		found = st.RemoveRecord(id)
		return found, nil
	})
	return found, err
}

// LoadSample replaces all state with the sample report.
func (s *Service) LoadSample(ctx context.Context) error {
	return s.commit(ctx, "load_sample", func(st *StateStore) (bool, error) {
		st.LoadSample()
		return true, nil
	})
}

// Clear removes every report and record.
func (s *Service) Clear(ctx context.Context) error {
	return s.commit(ctx, "clear", func(st *StateStore) (bool, error) {
		st.Clear()
		return true, nil
	})
}

// commit runs mutate under the writer lock, then writes the resulting
// snapshot through to the local cache and queues it for upload.
func (s *Service) commit(ctx context.Context, op string, mutate func(*StateStore) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed, err := mutate(s.store)
	if err != nil || !changed {
		return err
	}

	snap := s.store.Snapshot()
	start := time.Now()
	saveErr := s.persist.SaveLocal(ctx, snap)
	s.metrics.Observe(ctx, "cache.save", saveErr == nil, time.Since(start))
	s.persist.ScheduleUpload(snap)

	if saveErr != nil {
		slog.Error("local cache write failed", "op", op, "error", saveErr)
		return &CacheError{Op: op, Err: saveErr}
	}
	return nil
}

// Snapshot returns a copy of the current state.
func (s *Service) Snapshot() State {
	return s.store.Snapshot()
}

// Record returns the record with the given id.
func (s *Service) Record(id string) (PartRecord, bool) {
	return s.store.Record(id)
}

// Stats computes headline counts over the current records.
func (s *Service) Stats() Stats {
	return ComputeStats(s.store.Snapshot().Records)
}

// Charts computes every chart series over the current records.
func (s *Service) Charts() Charts {
	return BuildCharts(s.store.Snapshot().Records)
}

// LimiterStatus reports ingestion concurrency.
func (s *Service) LimiterStatus() UploadLimiterStatus {
	return s.limiter.Status()
}

// Shutdown waits for in-flight ingestion and queued uploads.
func (s *Service) Shutdown(ctx context.Context) error {
	if err := s.limiter.WaitForDrain(ctx); err != nil {
		return fmt.Errorf("drain uploads: %w", err)
	}
	if err := s.persist.Flush(ctx); err != nil {
		return fmt.Errorf("flush remote: %w", err)
	}
	return nil
}

func validatePatch(p RecordPatch) error {
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidPatch, *p.Status)
	}
	if p.Issues != nil {
		for _, k := range *p.Issues {
			if !k.Known() {
				return fmt.Errorf("%w: unknown issue %q", ErrInvalidPatch, k)
			}
		}
	}
	return nil
}
