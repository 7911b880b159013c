// Package cron runs the retention sweep using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/officekit/mailroom/pkg/config"
)

// SessionEvictor drops expired processing sessions and their files.
type SessionEvictor interface {
	EvictExpired(ctx context.Context) int
}

// DirStats describes one swept directory for the admin storage report.
type DirStats struct {
	Path       string    `json:"path"`
	Files      int       `json:"files"`
	Bytes      int64     `json:"bytes"`
	OldestFile time.Time `json:"oldest_file,omitempty"`
}

// SweepReport is the outcome of the most recent retention sweep.
type SweepReport struct {
	LastRun         time.Time  `json:"last_run"`
	FilesRemoved    int        `json:"files_removed"`
	SessionsEvicted int        `json:"sessions_evicted"`
	Directories     []DirStats `json:"directories"`
}

// Scheduler periodically deletes files older than the retention window
// from the upload and result directories, and evicts idle sessions.
type Scheduler struct {
	cron    *cron.Cron
	cfg     config.RetentionConfig
	dirs    []string
	evictor SessionEvictor
	logger  *slog.Logger

	mu     sync.Mutex
	report SweepReport
}

// NewScheduler creates the retention scheduler over the given directories.
func NewScheduler(cfg config.RetentionConfig, dirs []string, evictor SessionEvictor, logger *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:    c,
		cfg:     cfg,
		dirs:    dirs,
		evictor: evictor,
		logger:  logger,
	}
}

// Start begins the scheduled sweep.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.cfg.SweepSchedule, s.sweep)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("retention scheduler started",
		slog.String("schedule", s.cfg.SweepSchedule),
		slog.Duration("max_file_age", s.cfg.MaxFileAge),
	)
	return nil
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("retention scheduler stopping")
	return s.cron.Stop()
}

// RunNow triggers an immediate sweep, for admin use.
func (s *Scheduler) RunNow() {
	go s.sweep()
}

// Report returns the last sweep outcome with fresh directory stats.
func (s *Scheduler) Report() SweepReport {
	s.mu.Lock()
	report := s.report
	s.mu.Unlock()

	report.Directories = make([]DirStats, 0, len(s.dirs))
	for _, dir := range s.dirs {
		report.Directories = append(report.Directories, statDir(dir))
	}
	return report
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	evicted := s.evictor.EvictExpired(ctx)

	cutoff := time.Now().Add(-s.cfg.MaxFileAge)
	removed := 0
	for _, dir := range s.dirs {
		removed += s.sweepDir(dir, cutoff)
	}

	s.mu.Lock()
	s.report.LastRun = time.Now()
	s.report.FilesRemoved = removed
	s.report.SessionsEvicted = evicted
	s.mu.Unlock()

	if removed > 0 || evicted > 0 {
		s.logger.Info("retention sweep completed",
			slog.Int("files_removed", removed),
			slog.Int("sessions_evicted", evicted),
		)
	}
}

// sweepDir deletes expired files under dir, then prunes directories left
// empty.
func (s *Scheduler) sweepDir(dir string, cutoff time.Time) int {
	removed := 0
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				s.logger.Warn("remove expired file", slog.String("path", path), slog.Any("error", err))
				return nil
			}
			removed++
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("sweep directory", slog.String("dir", dir), slog.Any("error", err))
	}
	pruneEmptyDirs(dir)
	return removed
}

// pruneEmptyDirs removes empty subdirectories of root, leaving root itself.
func pruneEmptyDirs(root string) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sub := filepath.Join(root, e.Name())
		pruneEmptyDirs(sub)
		if children, err := os.ReadDir(sub); err == nil && len(children) == 0 {
			_ = os.Remove(sub)
		}
	}
}

func statDir(dir string) DirStats {
	stats := DirStats{Path: dir}
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		stats.Files++
		stats.Bytes += info.Size()
		if stats.OldestFile.IsZero() || info.ModTime().Before(stats.OldestFile) {
			stats.OldestFile = info.ModTime()
		}
		return nil
	})
	return stats
}
