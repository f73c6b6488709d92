package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ringline/backend/pkg/storage"
)

// RecordingIndex reports whether a message record references a Media Store key.
type RecordingIndex interface {
	ExistsByFilePath(ctx context.Context, filePath string) (bool, error)
}

// SweeperConfig controls what counts as stale.
type SweeperConfig struct {
	ScratchDir string
	// TTL is the age after which scratch sessions and unreferenced media objects are removed.
	// It must exceed the longest pipeline run, since a merged file is stored before its record.
	TTL      time.Duration
	Interval time.Duration
}

// Sweeper removes leftovers of interrupted uploads: scratch session directories
// and Media Store objects no message record points at.
type Sweeper struct {
	media  storage.Store
	index  RecordingIndex
	cfg    SweeperConfig
	now    func() time.Time
	logger *zap.Logger
}

// NewSweeper creates a sweeper. index may be nil, which disables the Media Store sweep.
func NewSweeper(media storage.Store, index RecordingIndex, cfg SweeperConfig, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}
	return &Sweeper{media: media, index: index, cfg: cfg, now: time.Now, logger: logger}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		s.Sweep(ctx)
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopping")
			return
		case <-ticker.C:
		}
	}
}

// Sweep runs one pass over the scratch directory and the Media Store.
func (s *Sweeper) Sweep(ctx context.Context) {
	if n, err := s.SweepScratch(); err != nil {
		s.logger.Warn("scratch sweep failed", zap.Error(err))
	} else if n > 0 {
		s.logger.Info("removed stale upload sessions", zap.Int("count", n))
	}
	if n, err := s.SweepOrphans(ctx); err != nil {
		s.logger.Warn("orphan sweep failed", zap.Error(err))
	} else if n > 0 {
		s.logger.Info("removed orphaned recordings", zap.Int("count", n))
	}
}

// SweepScratch removes session directories older than the TTL.
func (s *Sweeper) SweepScratch() (int, error) {
	if s.cfg.ScratchDir == "" {
		return 0, nil
	}
	entries, err := os.ReadDir(s.cfg.ScratchDir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-s.cfg.TTL)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		dir := filepath.Join(s.cfg.ScratchDir, e.Name())
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Warn("remove stale session failed", zap.String("dir", dir), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}

// SweepOrphans removes Media Store objects older than the TTL that no message references.
func (s *Sweeper) SweepOrphans(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, nil
	}
	objects, err := s.media.List(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-s.cfg.TTL)
	removed := 0
	for _, obj := range objects {
		if obj.ModTime.After(cutoff) {
			continue
		}
		exists, err := s.index.ExistsByFilePath(ctx, obj.Key)
		if err != nil {
			return removed, err
		}
		if exists {
			continue
		}
		if err := s.media.Remove(ctx, obj.Key); err != nil {
			s.logger.Warn("remove orphaned recording failed", zap.String("key", obj.Key), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}
