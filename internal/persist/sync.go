// Package persist keeps state durable across two tiers: a local cache
// written through on every change and a remote object store updated
// asynchronously. Remote failures never block or fail a mutation.
package persist

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/qareports/internal/blob"
	"github.com/JonMunkholm/qareports/internal/cache"
	"github.com/JonMunkholm/qareports/internal/core"
)

// Remote object layout.
const (
	StateKey       = "state.json"
	ParsedKey      = "parsed.json"
	VersionMetaKey = "state-version"
)

const (
	DefaultRemoteTimeout = 30 * time.Second
	DefaultRetryInterval = 30 * time.Second
	flushPollInterval    = 10 * time.Millisecond
)

// Options configures a Sync. Local is required; a nil Remote means
// local-only operation.
type Options struct {
	Local         cache.Store
	Remote        blob.Store
	Timeout       time.Duration
	RetryInterval time.Duration
	Metrics       core.MetricsRecorder
}

// Sync implements core.Persister over a cache.Store and an optional
// blob.Store.
//
// Uploads run on a single goroutine. ScheduleUpload replaces any snapshot
// still waiting, so a burst of mutations results in one upload of the
// newest state, and an older snapshot is never written after a newer one.
type Sync struct {
	local   cache.Store
	remote  blob.Store
	timeout time.Duration
	retry   time.Duration
	metrics core.MetricsRecorder
	warn    warnOnce

	mu             sync.Mutex
	pending        *core.State
	pendingVersion uint64
	nextVersion    uint64
	uploaded       uint64
	failed         *core.State
	failedVersion  uint64
	inflight       bool

	artifacts sync.WaitGroup
	wake      chan struct{}
	stop      context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Sync and starts its uploader.
func New(opts Options) *Sync {
	s := &Sync{
		local:   opts.Local,
		remote:  opts.Remote,
		timeout: opts.Timeout,
		retry:   opts.RetryInterval,
		metrics: opts.Metrics,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	if s.timeout <= 0 {
		s.timeout = DefaultRemoteTimeout
	}
	if s.retry <= 0 {
		s.retry = DefaultRetryInterval
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	if s.remote == nil {
		close(s.done)
		return s
	}
	go s.run(ctx)
	return s
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

// RemoteEnabled reports whether a remote tier is configured.
func (s *Sync) RemoteEnabled() bool { return s.remote != nil }

// WarnState reports whether the unreachable-remote warning was shown.
func (s *Sync) WarnState() WarnState { return s.warn.get() }

// ResetWarning re-arms the unreachable-remote warning.
func (s *Sync) ResetWarning() { s.warn.reset() }

// UploadedVersion returns the version stamp of the last successful upload.
func (s *Sync) UploadedVersion() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploaded
}

// Load returns the startup state. A readable remote snapshot wins over the
// local cache and is written back to it. If the remote is disabled, empty or
// unreachable, the local cache is used; if that is empty too the state is
// empty.
func (s *Sync) Load(ctx context.Context) (core.State, error) {
	if s.remote != nil {
		st, err := s.fetchRemote(ctx)
		switch {
		case err == nil:
			if err := s.SaveLocal(ctx, st); err != nil {
				slog.Warn("could not mirror remote state to local cache", "error", err)
			}
			slog.Info("loaded state from remote", "reports", len(st.Reports), "records", len(st.Records))
			return st, nil
		case errors.Is(err, blob.ErrNotFound):
			slog.Info("no remote state found, using local cache")
		case errors.Is(err, core.ErrUnsupportedSchema):
			slog.Error("remote state is from a newer version, using local cache", "error", err)
		default:
			// Upload failures own the session warning; a cold start against a
			// dead endpoint only falls back.
			slog.Info("remote store unreachable, using local cache", "error", err)
		}
	}
	return s.loadLocal(ctx)
}

func (s *Sync) fetchRemote(ctx context.Context) (core.State, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	data, _, err := blob.ReadAll(ctx, s.remote, StateKey)
	s.metrics.Observe(ctx, "remote.load", err == nil || errors.Is(err, blob.ErrNotFound), time.Since(start))
	if err != nil {
		return core.State{}, err
	}
	return core.DecodeSnapshot(data)
}

func (s *Sync) loadLocal(ctx context.Context) (core.State, error) {
	reports, err := s.getLocal(ctx, cache.KeyReports)
	if err != nil {
		return core.State{}, err
	}
	records, err := s.getLocal(ctx, cache.KeyRecords)
	if err != nil {
		return core.State{}, err
	}
	rawVersion, err := s.getLocal(ctx, cache.KeySchemaVersion)
	if err != nil {
		return core.State{}, err
	}
	if reports == nil && records == nil {
		return core.State{}, nil
	}

	version := 0
	if len(rawVersion) > 0 {
		if version, err = strconv.Atoi(string(rawVersion)); err != nil {
			return core.State{}, fmt.Errorf("local cache %s: %w", cache.KeySchemaVersion, err)
		}
	}
	st, err := core.DecodeLocal(reports, records, version)
	if err != nil {
		return core.State{}, fmt.Errorf("local cache: %w", err)
	}
	slog.Info("loaded state from local cache", "reports", len(st.Reports), "records", len(st.Records))
	return st, nil
}

func (s *Sync) getLocal(ctx context.Context, key string) ([]byte, error) {
	v, err := s.local.Get(ctx, key)
	if errors.Is(err, cache.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("local cache get %s: %w", key, err)
	}
	return v, nil
}

// SaveLocal writes st to the local cache. Each key is written independently;
// a failure on one does not stop the others.
func (s *Sync) SaveLocal(ctx context.Context, st core.State) error {
	reports, records, err := core.EncodeLocal(st)
	if err != nil {
		return err
	}
	var errs []error
	for _, kv := range []struct {
		key   string
		value []byte
	}{
		{cache.KeyReports, reports},
		{cache.KeyRecords, records},
		{cache.KeySchemaVersion, []byte(strconv.Itoa(core.SchemaVersion))},
	} {
		if err := s.local.Set(ctx, kv.key, kv.value); err != nil {
			errs = append(errs, fmt.Errorf("set %s: %w", kv.key, err))
		}
	}
	return errors.Join(errs...)
}

// ScheduleUpload queues st for upload and returns immediately.
func (s *Sync) ScheduleUpload(st core.State) {
	if s.remote == nil {
		return
	}
	s.mu.Lock()
	s.nextVersion++
	s.pending = &st
	s.pendingVersion = s.nextVersion
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Sync) run(ctx context.Context) {
	defer close(s.done)

	slog.Info("remote uploader started", "retry_interval", s.retry.String())
	ticker := time.NewTicker(s.retry)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("remote uploader stopped")
			return
		case <-s.wake:
		case <-ticker.C:
			s.requeueFailed()
		}
		s.drain(ctx)
	}
}

// requeueFailed retries the last failed snapshot unless something newer is
// already waiting.
func (s *Sync) requeueFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed == nil || s.pending != nil {
		return
	}
	slog.Debug("retrying remote upload", "version", s.failedVersion)
	s.pending, s.pendingVersion = s.failed, s.failedVersion
	s.failed = nil
}

func (s *Sync) drain(ctx context.Context) {
	for {
		s.mu.Lock()
		if s.pending == nil {
			s.mu.Unlock()
			return
		}
		st, version := *s.pending, s.pendingVersion
		s.pending = nil
		s.inflight = true
		s.mu.Unlock()

		err := s.upload(ctx, st, version)

		s.mu.Lock()
		s.inflight = false
		if err != nil {
			if s.pending == nil {
				s.failed, s.failedVersion = &st, version
			}
		} else {
			s.failed = nil
			s.uploaded = version
		}
		s.mu.Unlock()
	}
}

func (s *Sync) upload(ctx context.Context, st core.State, version uint64) error {
	data, err := core.EncodeSnapshot(st)
	if err != nil {
		slog.Error("encode snapshot for upload", "error", err)
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err = s.remote.Put(ctx, StateKey, bytes.NewReader(data), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{VersionMetaKey: strconv.FormatUint(version, 10)},
	})
	s.metrics.Observe(ctx, "remote.upload", err == nil, time.Since(start))
	if err != nil {
		s.warn.warn("remote store upload failed, will retry", "version", version, "error", err)
		return err
	}
	slog.Debug("state uploaded", "version", version, "bytes", len(data))
	return nil
}

// PersistArtifacts stores the original file and its parsed report under
// the report id. It runs in the background, detached from ctx cancellation,
// and only logs failures.
func (s *Sync) PersistArtifacts(ctx context.Context, b core.ReportBundle, filename string, raw []byte) {
	if s.remote == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	id := b.Report.ID

	s.artifacts.Add(1)
	go func() {
		defer s.artifacts.Done()

		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		start := time.Now()
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return s.remote.Put(gctx, ArtifactKey(id, filename), bytes.NewReader(raw), blob.PutOptions{
				ContentType: contentTypeFor(filename),
			})
		})
		g.Go(func() error {
			data, err := core.EncodeBundle(b)
			if err != nil {
				return err
			}
			return s.remote.Put(gctx, ArtifactKey(id, ParsedKey), bytes.NewReader(data), blob.PutOptions{
				ContentType: "application/json",
			})
		})
		err := g.Wait()
		s.metrics.Observe(ctx, "remote.artifacts", err == nil, time.Since(start))
		if err != nil {
			s.warn.warn("remote store artifact upload failed", "report_id", id, "error", err)
			return
		}
		slog.Debug("artifacts uploaded", "report_id", id, "filename", filename)
	}()
}

// Artifacts lists the stored objects for a report.
func (s *Sync) Artifacts(ctx context.Context, reportID string) ([]blob.Info, error) {
	if s.remote == nil {
		return nil, core.ErrRemoteDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	infos, err := s.remote.List(ctx, reportID+"/")
	if err != nil {
		return nil, fmt.Errorf("remote store list: %w", err)
	}
	return infos, nil
}

// PurgeRemote deletes every remote object, the state snapshot included.
func (s *Sync) PurgeRemote(ctx context.Context) (int, error) {
	if s.remote == nil {
		return 0, core.ErrRemoteDisabled
	}
	infos, err := s.remote.List(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("remote store list: %w", err)
	}
	for i, info := range infos {
		if err := s.remote.Delete(ctx, info.Key); err != nil {
			return i, fmt.Errorf("remote store delete %s: %w", info.Key, err)
		}
	}
	slog.Info("remote store purged", "objects", len(infos))
	return len(infos), nil
}

// Flush waits until no upload is pending or in flight and every artifact
// upload has returned. A snapshot whose upload failed does not hold Flush.
func (s *Sync) Flush(ctx context.Context) error {
	if s.remote == nil {
		return nil
	}

	artifactsDone := make(chan struct{})
	go func() {
		s.artifacts.Wait()
		close(artifactsDone)
	}()

	ticker := time.NewTicker(flushPollInterval)
	defer ticker.Stop()
	for {
		s.mu.Lock()
		idle := s.pending == nil && !s.inflight
		s.mu.Unlock()
		if idle {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return nil
		case <-ticker.C:
		}
	}

	select {
	case <-artifactsDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes pending work and stops the uploader.
func (s *Sync) Close(ctx context.Context) error {
	err := s.Flush(ctx)
	s.closeOnce.Do(s.stop)
	<-s.done
	return err
}

// ArtifactKey is the remote key for an object belonging to a report.
func ArtifactKey(reportID, name string) string {
	return reportID + "/" + path.Base(name)
}

func contentTypeFor(filename string) string {
	switch path.Ext(filename) {
	case ".xlsx", ".xlsm":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".csv":
		return "text/csv"
	}
	return "application/octet-stream"
}
