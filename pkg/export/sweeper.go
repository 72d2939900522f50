package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harun/casegen/internal/metrics"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sweeper defaults
const (
	DefaultSweepSchedule = "@every 10m"
	DefaultSweepMaxAge   = 30 * time.Minute
)

// Sweeper periodically removes export files left behind by interrupted deliveries
type Sweeper struct {
	dir     string
	maxAge  time.Duration
	cron    *cron.Cron
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

// NewSweeper creates a sweeper for dir running on schedule
func NewSweeper(dir, schedule string, maxAge time.Duration, m *metrics.Metrics, logger zerolog.Logger) (*Sweeper, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if maxAge <= 0 {
		maxAge = DefaultSweepMaxAge
	}

	s := &Sweeper{
		dir:     dir,
		maxAge:  maxAge,
		cron:    cron.New(),
		metrics: m,
		logger:  logger.With().Str("component", "export-sweeper").Logger(),
		now:     time.Now,
	}

	if _, err := s.cron.AddFunc(schedule, func() { s.Sweep() }); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start starts the schedule
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info().Str("dir", s.dir).Dur("max_age", s.maxAge).Msg("Export sweeper started")
}

// Stop stops the schedule and waits for a running sweep to finish
func (s *Sweeper) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sweep removes export files in dir older than maxAge and returns how many were
// removed. Files with an extension the exporter never writes are left alone.
func (s *Sweeper) Sweep() int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Error().Err(err).Msg("Failed to list export directory")
		}
		return 0
	}

	cutoff := s.now().Add(-s.maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !isExportFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			s.logger.Warn().Err(err).Str("path", path).Msg("Failed to remove stale export file")
			continue
		}
		removed++
	}

	if removed > 0 {
		s.metrics.FilesSwept(removed)
		s.logger.Info().Int("removed", removed).Msg("Stale export files removed")
	}
	return removed
}

// isExportFile reports whether name carries an extension the exporter writes
func isExportFile(name string) bool {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	switch ext {
	case "":
		return false
	case "docx", "pdf", "txt":
		return true
	}
	for _, known := range extensions {
		if ext == known {
			return true
		}
	}
	return false
}
