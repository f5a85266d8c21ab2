package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tipo-sto/kbase/internal/domain"
	"github.com/tipo-sto/kbase/internal/extractor"
	"github.com/tipo-sto/kbase/internal/logger"
	"github.com/tipo-sto/kbase/internal/service"
)

const (
	DefaultInboxWorkers      = 2
	DefaultInboxScanInterval = 30 * time.Second
	DefaultInboxSettle       = 500 * time.Millisecond
)

// Ingester is the part of the knowledge base the inbox feeds.
type Ingester interface {
	Ingest(ctx context.Context, in service.IngestInput) (*domain.IngestResult, error)
}

type InboxConfig struct {
	Dir          string
	Workers      int
	ScanInterval time.Duration
	// Settle is how long a file's size must stay unchanged before it is read.
	Settle       time.Duration
	ProcessedDir string
	FailedDir    string
}

func (c InboxConfig) withDefaults() InboxConfig {
	if c.Workers <= 0 {
		c.Workers = DefaultInboxWorkers
	}
	if c.ScanInterval <= 0 {
		c.ScanInterval = DefaultInboxScanInterval
	}
	if c.Settle <= 0 {
		c.Settle = DefaultInboxSettle
	}
	if c.ProcessedDir == "" {
		c.ProcessedDir = filepath.Join(c.Dir, "processed")
	}
	if c.FailedDir == "" {
		c.FailedDir = filepath.Join(c.Dir, "failed")
	}
	return c
}

type inboxTask struct {
	id   string
	path string
}

// Inbox ingests files dropped into a directory. Ingested files move to
// ProcessedDir; failures move to FailedDir next to a .error.txt describing
// the failing stage.
type Inbox struct {
	cfg      InboxConfig
	ingester Ingester
	log      *logger.Logger

	mu      sync.Mutex
	pending map[string]struct{}
	tasks   chan inboxTask
}

func NewInbox(cfg InboxConfig, ingester Ingester, log *logger.Logger) *Inbox {
	if log == nil {
		log = logger.Nop()
	}
	cfg = cfg.withDefaults()
	return &Inbox{
		cfg:      cfg,
		ingester: ingester,
		log:      log.With("component", "inbox", "dir", cfg.Dir),
		pending:  make(map[string]struct{}),
		tasks:    make(chan inboxTask, cfg.Workers*4),
	}
}

// Run watches the inbox until ctx is cancelled.
func (in *Inbox) Run(ctx context.Context) error {
	for _, dir := range []string{in.cfg.Dir, in.cfg.ProcessedDir, in.cfg.FailedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(in.cfg.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", in.cfg.Dir, err)
	}

	in.log.Info("inbox started", "workers", in.cfg.Workers, "scan_interval", in.cfg.ScanInterval.String())

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < in.cfg.Workers; i++ {
		g.Go(func() error {
			in.work(ctx)
			return nil
		})
	}
	g.Go(func() error {
		return in.watch(ctx, watcher)
	})
	g.Go(func() error {
		if err := in.ProcessJobs(ctx); err != nil {
			in.log.Warn("initial scan failed", "error", err)
		}
		NewWorker(in, in.cfg.ScanInterval, in.log).Start(ctx)
		return nil
	})

	err = g.Wait()
	in.log.Info("inbox stopped")
	return err
}

// ProcessJobs scans the inbox and queues every supported file not already
// queued.
func (in *Inbox) ProcessJobs(ctx context.Context) error {
	entries, err := os.ReadDir(in.cfg.Dir)
	if err != nil {
		return fmt.Errorf("failed to scan inbox: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		in.enqueue(ctx, filepath.Join(in.cfg.Dir, e.Name()))
	}
	return nil
}

func (in *Inbox) watch(ctx context.Context, watcher *fsnotify.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if info, err := os.Stat(ev.Name); err != nil || info.IsDir() {
				continue
			}
			in.enqueue(ctx, ev.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			in.log.Warn("watcher error", "error", err)
		}
	}
}

func accepts(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".error.txt") {
		return false
	}
	return slices.Contains(extractor.SupportedExtensions(), strings.ToLower(filepath.Ext(name)))
}

func (in *Inbox) enqueue(ctx context.Context, path string) {
	if !accepts(path) {
		return
	}
	in.mu.Lock()
	if _, ok := in.pending[path]; ok {
		in.mu.Unlock()
		return
	}
	in.pending[path] = struct{}{}
	in.mu.Unlock()

	select {
	case in.tasks <- inboxTask{id: uuid.NewString(), path: path}:
	case <-ctx.Done():
		in.done(path)
	}
}

func (in *Inbox) done(path string) {
	in.mu.Lock()
	delete(in.pending, path)
	in.mu.Unlock()
}

func (in *Inbox) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-in.tasks:
			in.handle(ctx, t)
			in.done(t.path)
		}
	}
}

func (in *Inbox) handle(ctx context.Context, t inboxTask) {
	log := in.log.With("task_id", t.id, "file", filepath.Base(t.path))

	if err := in.waitStable(ctx, t.path); err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, os.ErrNotExist) {
			log.Warn("file not readable", "error", err)
		}
		return
	}

	start := time.Now()
	res, err := in.ingester.Ingest(ctx, service.IngestInput{Path: t.path, Filename: filepath.Base(t.path)})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Warn("ingest failed", "stage", domain.StageOf(err), "error", err)
		in.moveFailed(log, t.path, err)
		return
	}

	log.Info("ingested", "document_id", res.DocumentID, "chunks", res.ChunkCount,
		"duration_ms", time.Since(start).Milliseconds())
	if err := os.Rename(t.path, filepath.Join(in.cfg.ProcessedDir, filepath.Base(t.path))); err != nil {
		log.Error("failed to move ingested file", "error", err)
	}
}

func (in *Inbox) moveFailed(log *logger.Logger, path string, cause error) {
	name := filepath.Base(path)
	if err := os.Rename(path, filepath.Join(in.cfg.FailedDir, name)); err != nil {
		log.Error("failed to move rejected file", "error", err)
		return
	}
	report := cause.Error()
	if stage := domain.StageOf(cause); stage != "" {
		report = "stage: " + stage + "\n" + report
	}
	if err := os.WriteFile(filepath.Join(in.cfg.FailedDir, name+".error.txt"), []byte(report+"\n"), 0o644); err != nil {
		log.Error("failed to write error report", "error", err)
	}
}

// waitStable blocks until the file size is unchanged across one Settle period.
func (in *Inbox) waitStable(ctx context.Context, path string) error {
	last := int64(-1)
	for {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.Size() == last {
			return nil
		}
		last = info.Size()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(in.cfg.Settle):
		}
	}
}
