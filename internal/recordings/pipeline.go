package recordings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ringline/backend/internal/models"
	"github.com/ringline/backend/internal/transcode"
	"github.com/ringline/backend/pkg/storage"
)

// ErrValidation marks uploads rejected before any processing started.
var ErrValidation = errors.New("invalid upload")

// Pipeline stage names, used in logs and StageError.
const (
	StageAdmit     = "admit"
	StageAccept    = "accept"
	StageNormalize = "normalize"
	StageConcat    = "concat"
	StageMux       = "mux"
	StageCommit    = "commit"
)

const defaultStageTimeout = 5 * time.Minute

// StageError reports which pipeline stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// Track is one uploaded media file. Filename is the client's name and is only
// used to pick an extension and to derive the output name.
type Track struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// Upload is one video track plus one or more audio tracks recorded together.
type Upload struct {
	SenderID   string
	ReceiverID string
	Timming    string
	Video      Track
	Audio      []Track
}

// Validate checks that the upload has everything the pipeline needs.
func (u Upload) Validate() error {
	if u.Video.Open == nil {
		return fmt.Errorf("%w: missing video file", ErrValidation)
	}
	if len(u.Audio) == 0 {
		return fmt.Errorf("%w: missing audio files", ErrValidation)
	}
	for i, a := range u.Audio {
		if a.Open == nil {
			return fmt.Errorf("%w: audio file %d is empty", ErrValidation, i)
		}
	}
	if u.SenderID == "" || u.ReceiverID == "" {
		return fmt.Errorf("%w: senderId and receiverId are required", ErrValidation)
	}
	return nil
}

// Result is the outcome of a successful pipeline run.
type Result struct {
	RecordingID uuid.UUID
	FilePath    string
}

// PipelineConfig holds pipeline tuning.
type PipelineConfig struct {
	ScratchDir    string
	StageTimeout  time.Duration
	MaxConcurrent int
}

// Pipeline merges uploaded tracks into one recording and records it as a message.
type Pipeline struct {
	engine       transcode.Engine
	media        storage.Store
	messages     MessageStore
	scratchDir   string
	stageTimeout time.Duration
	sem          *semaphore.Weighted
	logger       *zap.Logger
}

// NewPipeline creates the scratch directory and returns a pipeline.
func NewPipeline(engine transcode.Engine, media storage.Store, messages MessageStore, cfg PipelineConfig, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = filepath.Join(os.TempDir(), "ringline-uploads")
	}
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = defaultStageTimeout
	}
	if err := os.MkdirAll(cfg.ScratchDir, 0o750); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	p := &Pipeline{
		engine:       engine,
		media:        media,
		messages:     messages,
		scratchDir:   cfg.ScratchDir,
		stageTimeout: cfg.StageTimeout,
		logger:       logger,
	}
	if cfg.MaxConcurrent > 0 {
		p.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	return p, nil
}

// ScratchDir returns the root of the per-upload session directories.
func (p *Pipeline) ScratchDir() string { return p.scratchDir }

// Process runs accept, normalize, concat, mux and commit in order. Any stage
// failure aborts the rest; no message is inserted unless every stage succeeded.
// The upload's scratch session is always removed before returning.
func (p *Pipeline) Process(ctx context.Context, up Upload) (*Result, error) {
	if err := up.Validate(); err != nil {
		return nil, err
	}
	if p.sem != nil {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return nil, &StageError{Stage: StageAdmit, Err: err}
		}
		defer p.sem.Release(1)
	}

	session := uuid.New().String()
	dir := filepath.Join(p.scratchDir, session)
	log := p.logger.With(
		zap.String("session", session),
		zap.String("sender_id", up.SenderID),
		zap.String("receiver_id", up.ReceiverID),
		zap.Int("audio_tracks", len(up.Audio)),
	)
	if err := os.Mkdir(dir, 0o750); err != nil {
		return nil, &StageError{Stage: StageAccept, Err: fmt.Errorf("create session dir: %w", err)}
	}
	// Sources go too on failure: a retry is a fresh upload, never a rerun of this session.
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn("remove upload session failed", zap.String("dir", dir), zap.Error(err))
		}
	}()

	// accept
	ext := mediaExt(up.Video.Filename, videoExts, ".mp4")
	videoPath := filepath.Join(dir, "video"+ext)
	if err := saveTrack(ctx, up.Video, videoPath); err != nil {
		return nil, p.fail(log, StageAccept, err)
	}
	audioPaths := make([]string, len(up.Audio))
	for i, t := range up.Audio {
		audioPaths[i] = filepath.Join(dir, fmt.Sprintf("audio-%d%s", i, mediaExt(t.Filename, audioExts, ".webm")))
		if err := saveTrack(ctx, t, audioPaths[i]); err != nil {
			return nil, p.fail(log, StageAccept, err)
		}
	}

	// normalize: each track independently; outputs keep input order
	normPaths := make([]string, len(audioPaths))
	g, gctx := errgroup.WithContext(ctx)
	for i := range audioPaths {
		i := i
		normPaths[i] = filepath.Join(dir, fmt.Sprintf("norm-%d.mp3", i))
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(gctx, p.stageTimeout)
			defer cancel()
			return p.engine.NormalizeAudio(sctx, audioPaths[i], normPaths[i])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, p.fail(log, StageNormalize, err)
	}

	// concat
	mergedPath := filepath.Join(dir, "merged.mp3")
	if err := p.runStage(ctx, func(sctx context.Context) error {
		return p.engine.ConcatAudio(sctx, normPaths, mergedPath)
	}); err != nil {
		return nil, p.fail(log, StageConcat, err)
	}

	// mux
	outPath := filepath.Join(dir, "output"+ext)
	if err := p.runStage(ctx, func(sctx context.Context) error {
		return p.engine.Mux(sctx, videoPath, mergedPath, outPath)
	}); err != nil {
		return nil, p.fail(log, StageMux, err)
	}

	// commit
	key := OutputName(session, up.Video.Filename)
	if err := p.runStage(ctx, func(sctx context.Context) error {
		return p.storeOutput(sctx, key, outPath)
	}); err != nil {
		return nil, p.fail(log, StageCommit, err)
	}
	removeFiles(log, append(append([]string{videoPath, mergedPath}, normPaths...), audioPaths...)...)

	msg := &models.RecordingMessage{
		SenderID:   up.SenderID,
		ReceiverID: up.ReceiverID,
		FilePath:   key,
		Timming:    up.Timming,
		Seen:       false,
		Type:       models.MessageTypeRecording,
	}
	if err := p.messages.InsertRecording(ctx, msg); err != nil {
		// no record means the file must not outlive the request either
		if rmErr := p.media.Remove(context.WithoutCancel(ctx), key); rmErr != nil {
			log.Warn("remove orphaned recording failed", zap.String("file_path", key), zap.Error(rmErr))
		}
		return nil, p.fail(log, StageCommit, fmt.Errorf("insert message: %w", err))
	}

	log.Info("recording merged", zap.String("recording_id", msg.ID.String()), zap.String("file_path", key))
	return &Result{RecordingID: msg.ID, FilePath: key}, nil
}

func (p *Pipeline) runStage(ctx context.Context, fn func(context.Context) error) error {
	sctx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()
	return fn(sctx)
}

func (p *Pipeline) storeOutput(ctx context.Context, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat output: %w", err)
	}
	if err := p.media.Put(ctx, key, f, info.Size(), storage.ContentTypeForKey(key)); err != nil {
		return fmt.Errorf("store output: %w", err)
	}
	return nil
}

func (p *Pipeline) fail(log *zap.Logger, stage string, err error) error {
	log.Error("recording pipeline failed", zap.String("stage", stage), zap.Error(err))
	return &StageError{Stage: stage, Err: err}
}

func saveTrack(ctx context.Context, t Track, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := t.Open()
	if err != nil {
		return fmt.Errorf("open upload %q: %w", t.Filename, err)
	}
	defer src.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(dst), err)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(dst), err)
	}
	return out.Close()
}

func removeFiles(log *zap.Logger, paths ...string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("remove intermediate failed", zap.String("path", p), zap.Error(err))
		}
	}
}

var (
	videoExts = map[string]bool{".mp4": true, ".webm": true, ".mkv": true, ".mov": true}
	audioExts = map[string]bool{".mp3": true, ".webm": true, ".ogg": true, ".opus": true, ".wav": true, ".m4a": true, ".aac": true, ".mp4": true}

	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	// prefixes clients put on raw video uploads
	videoPrefixes = []string{"video-", "output_"}
)

func mediaExt(name string, allowed map[string]bool, fallback string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if allowed[ext] {
		return ext
	}
	return fallback
}

// OutputName derives the Media Store key for a merged recording: the upload
// session id, then the client's video name with its raw-upload prefix removed.
// The client name is sanitized and never used as a path.
func OutputName(session, videoFilename string) string {
	ext := mediaExt(videoFilename, videoExts, ".mp4")
	base := filepath.Base(strings.ReplaceAll(videoFilename, `\`, "/"))
	for _, prefix := range videoPrefixes {
		base = strings.TrimPrefix(base, prefix)
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = unsafeChars.ReplaceAllString(stem, "_")
	for strings.Contains(stem, "..") {
		stem = strings.ReplaceAll(stem, "..", ".")
	}
	if len(stem) > 100 {
		stem = stem[:100]
	}
	stem = strings.Trim(stem, "._-")
	if stem == "" {
		stem = "recording"
	}
	return session + "_" + stem + ext
}
