package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"camserver/internal/logger"
	"camserver/internal/metrics"
	"camserver/internal/model"
	"camserver/internal/repository"
	"camserver/internal/snapshot"
)

// TimestampFormat is used as the filename prefix of archived snapshots.
const TimestampFormat = "2006-01-02_15-04-05.000"

// ArchiveService buffers motion snapshots in memory and periodically flushes
// them to disk. Archiving is best effort: a full buffer drops new snapshots.
type ArchiveService struct {
	dir          string
	pendingLimit int
	pending      []snapshot.Entry
	mu           sync.Mutex
	logger       *logger.Logger
	metrics      *metrics.Metrics
	snapshotRepo repository.SnapshotRepository
}

// NewArchiveService creates an archive writing into dir. snapshotRepo may be
// nil, in which case files are written without a database record.
func NewArchiveService(dir string, pendingLimit int, snapshotRepo repository.SnapshotRepository, logger *logger.Logger, metrics *metrics.Metrics) *ArchiveService {
	if pendingLimit < 1 {
		pendingLimit = 1
	}
	return &ArchiveService{
		dir:          dir,
		pendingLimit: pendingLimit,
		pending:      make([]snapshot.Entry, 0, pendingLimit),
		logger:       logger,
		metrics:      metrics,
		snapshotRepo: snapshotRepo,
	}
}

// Run flushes the buffer every interval until ctx is done, then flushes once
// more.
func (s *ArchiveService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Flush()
			return
		case <-ticker.C:
			s.Flush()
		}
	}
}

// Add queues a snapshot for the next flush. It reports false when the
// snapshot was dropped.
func (s *ArchiveService) Add(entry snapshot.Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) >= s.pendingLimit {
		s.logger.Warning("Archive buffer full (%d), dropping snapshot %s", s.pendingLimit, entry.ID)
		s.metrics.SnapshotDropped()
		return false
	}

	s.pending = append(s.pending, entry)
	s.logger.Debug("Archive buffer size: %d/%d", len(s.pending), s.pendingLimit)
	return true
}

// Pending returns the number of snapshots waiting for a flush.
func (s *ArchiveService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Flush writes buffered snapshots to disk, records them in the repository and
// clears the buffer. It returns the number of snapshots written.
func (s *ArchiveService) Flush() int {
	s.mu.Lock()
	entries := s.pending
	s.pending = make([]snapshot.Entry, 0, s.pendingLimit)
	s.mu.Unlock()

	if len(entries) == 0 {
		return 0
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		s.logger.Error("Error creating snapshot directory: %v", err)
		return 0
	}

	saved := 0
	for _, entry := range entries {
		if err := s.save(entry); err != nil {
			s.logger.Error("Error archiving snapshot %s: %v", entry.ID, err)
			continue
		}
		s.metrics.SnapshotArchived()
		saved++
	}

	s.logger.Info("Flushed %d snapshots to disk", saved)
	return saved
}

func (s *ArchiveService) save(entry snapshot.Entry) error {
	filename := Filename(entry)
	fullpath := filepath.Join(s.dir, filename)

	if err := os.WriteFile(fullpath, entry.Frame, 0644); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}

	if s.snapshotRepo == nil {
		return nil
	}

	record := &model.Snapshot{
		ID:               entry.ID,
		Filename:         filename,
		FilePath:         fullpath,
		Timestamp:        entry.Timestamp,
		ChangePercentage: entry.ChangePercentage,
		FileSize:         int64(len(entry.Frame)),
	}
	if err := s.snapshotRepo.Insert(record); err != nil {
		return fmt.Errorf("record %s: %w", filename, err)
	}
	return nil
}

// Filename returns the archive file name of a snapshot.
func Filename(entry snapshot.Entry) string {
	return fmt.Sprintf("%s_%s.jpg", entry.Timestamp.Format(TimestampFormat), entry.ID)
}

// ParseFilename extracts the timestamp and snapshot id from an archive file
// name produced by Filename.
func ParseFilename(name string) (time.Time, string, error) {
	base := strings.TrimSuffix(name, ".jpg")
	if base == name || len(base) < len(TimestampFormat)+2 || base[len(TimestampFormat)] != '_' {
		return time.Time{}, "", fmt.Errorf("unexpected snapshot filename %q", name)
	}
	ts, err := time.ParseInLocation(TimestampFormat, base[:len(TimestampFormat)], time.Local)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("parse timestamp of %q: %w", name, err)
	}
	return ts, base[len(TimestampFormat)+1:], nil
}
