package jobs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tipo-sto/kbase/internal/domain"
	"github.com/tipo-sto/kbase/internal/service"
)

type fakeIngester struct {
	mu    sync.Mutex
	files []string
}

func (f *fakeIngester) Ingest(_ context.Context, in service.IngestInput) (*domain.IngestResult, error) {
	f.mu.Lock()
	f.files = append(f.files, in.Filename)
	f.mu.Unlock()

	data, err := os.ReadFile(in.Path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, domain.NewDomainError(domain.ErrCodeEmptyDocument, "document contains no text")
	}
	return &domain.IngestResult{DocumentID: domain.DocumentIDFor(string(data)), Filename: in.Filename, ChunkCount: 1}, nil
}

func (f *fakeIngester) Files() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.files...)
}

func startInbox(t *testing.T, ing Ingester) (string, func()) {
	t.Helper()
	dir := t.TempDir()
	inbox := NewInbox(InboxConfig{Dir: dir, Workers: 2, ScanInterval: 50 * time.Millisecond, Settle: 10 * time.Millisecond}, ing, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- inbox.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "failed"))
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	return dir, func() {
		cancel()
		assert.NoError(t, <-done)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestInbox_IngestsDroppedFiles(t *testing.T) {
	ing := &fakeIngester{}
	dir, stop := startInbox(t, ing)
	defer stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "reglament.txt"), []byte("Замена масла каждые 10000 км"), 0o644))

	assert.Eventually(t, func() bool {
		return exists(filepath.Join(dir, "processed", "reglament.txt"))
	}, 3*time.Second, 20*time.Millisecond)
	assert.False(t, exists(filepath.Join(dir, "reglament.txt")))
	assert.Equal(t, []string{"reglament.txt"}, ing.Files())
}

func TestInbox_MovesFailuresWithReport(t *testing.T) {
	ing := &fakeIngester{}
	dir, stop := startInbox(t, ing)
	defer stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "blank.md"), []byte("  \n"), 0o644))

	report := filepath.Join(dir, "failed", "blank.md.error.txt")
	require.Eventually(t, func() bool { return exists(report) }, 3*time.Second, 20*time.Millisecond)
	assert.True(t, exists(filepath.Join(dir, "failed", "blank.md")))

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.Contains(t, string(data), "stage: extraction")
	assert.Contains(t, string(data), domain.ErrCodeEmptyDocument)
}

func TestInbox_IgnoresUnsupportedFiles(t *testing.T) {
	ing := &fakeIngester{}
	dir, stop := startInbox(t, ing)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "prices.xlsx"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ok.txt"), []byte("Проверка"), 0o644))

	require.Eventually(t, func() bool {
		return exists(filepath.Join(dir, "processed", "ok.txt"))
	}, 3*time.Second, 20*time.Millisecond)
	stop()

	assert.Equal(t, []string{"ok.txt"}, ing.Files())
	assert.True(t, exists(filepath.Join(dir, "prices.xlsx")))
	assert.True(t, exists(filepath.Join(dir, ".hidden.txt")))
}

func TestInbox_ProcessJobsQueuesOnce(t *testing.T) {
	dir := t.TempDir()
	inbox := NewInbox(InboxConfig{Dir: dir, Workers: 1}, &fakeIngester{}, nil)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("%PDF"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.docx"), []byte("PK"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.txt"), 0o755))

	ctx := context.Background()
	require.NoError(t, inbox.ProcessJobs(ctx))
	require.NoError(t, inbox.ProcessJobs(ctx))

	assert.Len(t, inbox.tasks, 2)
	first := <-inbox.tasks
	assert.NotEmpty(t, first.id)
	assert.Equal(t, filepath.Join(dir, "a.pdf"), first.path)
}

func TestInboxConfig_Defaults(t *testing.T) {
	cfg := InboxConfig{Dir: "/srv/inbox"}.withDefaults()
	assert.Equal(t, DefaultInboxWorkers, cfg.Workers)
	assert.Equal(t, DefaultInboxScanInterval, cfg.ScanInterval)
	assert.Equal(t, DefaultInboxSettle, cfg.Settle)
	assert.Equal(t, "/srv/inbox/processed", cfg.ProcessedDir)
	assert.Equal(t, "/srv/inbox/failed", cfg.FailedDir)
}
