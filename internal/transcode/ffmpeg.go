// Package transcode drives ffmpeg for the recording pipeline's audio and mux stages.
package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Engine re-encodes, concatenates and remuxes media files by path.
type Engine interface {
	// NormalizeAudio re-encodes one track to MP3, dropping any video stream.
	NormalizeAudio(ctx context.Context, in, out string) error
	// ConcatAudio joins the files in order without re-encoding.
	ConcatAudio(ctx context.Context, inputs []string, out string) error
	// Mux copies the video stream of video and pairs it with audio as the only audio stream.
	Mux(ctx context.Context, video, audio, out string) error
}

// stderrTail bounds how much ffmpeg output ends up in an error.
const stderrTail = 2048

// FFmpeg runs the ffmpeg binary.
type FFmpeg struct {
	bin    string
	logger *zap.Logger
}

// NewFFmpeg returns an Engine backed by the ffmpeg binary at bin ("ffmpeg" resolves via PATH).
func NewFFmpeg(bin string, logger *zap.Logger) *FFmpeg {
	if bin == "" {
		bin = "ffmpeg"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFmpeg{bin: bin, logger: logger}
}

// NormalizeAudio implements Engine.
func (f *FFmpeg) NormalizeAudio(ctx context.Context, in, out string) error {
	return f.run(ctx, "normalize", normalizeArgs(in, out))
}

// ConcatAudio implements Engine. The list file is written next to out and removed afterwards.
func (f *FFmpeg) ConcatAudio(ctx context.Context, inputs []string, out string) error {
	if len(inputs) == 0 {
		return errors.New("concat: no inputs")
	}
	listPath := strings.TrimSuffix(out, filepath.Ext(out)) + "-list.txt"
	if err := os.WriteFile(listPath, []byte(ConcatList(inputs)), 0o600); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	defer func() {
		if err := os.Remove(listPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			f.logger.Warn("remove concat list failed", zap.String("path", listPath), zap.Error(err))
		}
	}()
	return f.run(ctx, "concat", concatArgs(listPath, out))
}

// Mux implements Engine.
func (f *FFmpeg) Mux(ctx context.Context, video, audio, out string) error {
	return f.run(ctx, "mux", muxArgs(video, audio, out))
}

func (f *FFmpeg) run(ctx context.Context, stage string, args []string) error {
	full := append([]string{"-hide_banner", "-nostdin", "-loglevel", "error", "-y"}, args...)
	cmd := exec.CommandContext(ctx, f.bin, full...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	f.logger.Debug("ffmpeg start", zap.String("stage", stage), zap.Strings("args", full))
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("ffmpeg %s: %w", stage, ctxErr)
		}
		return fmt.Errorf("ffmpeg %s: %w: %s", stage, err, tail(stderr.String()))
	}
	return nil
}

func normalizeArgs(in, out string) []string {
	return []string{"-i", in, "-vn", "-acodec", "libmp3lame", "-f", "mp3", out}
}

func concatArgs(list, out string) []string {
	return []string{"-f", "concat", "-safe", "0", "-i", list, "-c", "copy", out}
}

func muxArgs(video, audio, out string) []string {
	return []string{
		"-i", video,
		"-i", audio,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", audioCodecFor(out),
		out,
	}
}

// audioCodecFor picks an audio codec the output container accepts.
func audioCodecFor(out string) string {
	switch strings.ToLower(filepath.Ext(out)) {
	case ".webm":
		return "libopus"
	case ".mkv":
		return "copy"
	default:
		return "aac"
	}
}

// ConcatList renders the ffmpeg concat demuxer list for paths, in order.
func ConcatList(paths []string) string {
	var b strings.Builder
	for _, p := range paths {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(p, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTail {
		return s[len(s)-stderrTail:]
	}
	return s
}
