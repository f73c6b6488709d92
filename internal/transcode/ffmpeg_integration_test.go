package transcode

import (
	"context"
	"encoding/json"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireFFmpeg skips unless ffmpeg and ffprobe are installed with the encoders used below.
func requireFFmpeg(t *testing.T) (ffmpeg, ffprobe string) {
	t.Helper()
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not installed")
	}
	ffprobe, err = exec.LookPath("ffprobe")
	if err != nil {
		t.Skip("ffprobe not installed")
	}
	out, err := exec.Command(ffmpeg, "-hide_banner", "-encoders").CombinedOutput()
	require.NoError(t, err)
	for _, enc := range []string{"libmp3lame", "aac", "mpeg4"} {
		if !regexp.MustCompile(`\s` + enc + `\s`).Match(out) {
			t.Skipf("ffmpeg lacks the %s encoder", enc)
		}
	}
	return ffmpeg, ffprobe
}

func lavfi(t *testing.T, ffmpeg string, args ...string) {
	t.Helper()
	full := append([]string{"-hide_banner", "-nostdin", "-loglevel", "error", "-y", "-f", "lavfi"}, args...)
	out, err := exec.Command(ffmpeg, full...).CombinedOutput()
	require.NoError(t, err, string(out))
}

type mediaStream struct {
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	NbFrames  string `json:"nb_frames"`
	Duration  string `json:"duration"`
}

func streamsOf(t *testing.T, ffprobe, path string) []mediaStream {
	t.Helper()
	out, err := exec.Command(ffprobe, "-v", "error",
		"-show_entries", "stream=codec_type,codec_name,nb_frames,duration",
		"-of", "json", path).Output()
	require.NoError(t, err)
	var res struct {
		Streams []mediaStream `json:"streams"`
	}
	require.NoError(t, json.Unmarshal(out, &res))
	return res.Streams
}

var meanVolume = regexp.MustCompile(`mean_volume: (\S+) dB`)

// loudness returns the mean volume in dB of the audio in [from, from+dur) seconds.
func loudness(t *testing.T, ffmpeg, path, from, dur string) float64 {
	t.Helper()
	out, err := exec.Command(ffmpeg, "-hide_banner", "-nostdin", "-i", path,
		"-map", "0:a", "-ss", from, "-t", dur, "-af", "volumedetect", "-f", "null", "-").CombinedOutput()
	require.NoError(t, err, string(out))
	m := meanVolume.FindSubmatch(out)
	require.NotNil(t, m, string(out))
	v, err := strconv.ParseFloat(string(m[1]), 64)
	require.NoError(t, err)
	return v
}

func TestFFmpegMergesTracksOverCopiedVideo(t *testing.T) {
	ffmpeg, ffprobe := requireFFmpeg(t)
	dir := t.TempDir()
	at := func(name string) string { return filepath.Join(dir, name) }

	lavfi(t, ffmpeg, "-i", "testsrc=size=64x48:rate=10", "-t", "1", "-c:v", "mpeg4", at("video.mp4"))
	lavfi(t, ffmpeg, "-i", "sine=frequency=440:sample_rate=44100", "-t", "0.6", at("audio-0.wav"))
	lavfi(t, ffmpeg, "-i", "anullsrc=r=44100:cl=mono", "-t", "0.6", at("audio-1.wav"))

	eng := NewFFmpeg(ffmpeg, nil)
	ctx := context.Background()
	require.NoError(t, eng.NormalizeAudio(ctx, at("audio-0.wav"), at("norm-0.mp3")))
	require.NoError(t, eng.NormalizeAudio(ctx, at("audio-1.wav"), at("norm-1.mp3")))
	require.NoError(t, eng.ConcatAudio(ctx, []string{at("norm-0.mp3"), at("norm-1.mp3")}, at("merged.mp3")))
	require.NoError(t, eng.Mux(ctx, at("video.mp4"), at("merged.mp3"), at("output.mp4")))

	src := streamsOf(t, ffprobe, at("video.mp4"))
	require.Len(t, src, 1)

	streams := streamsOf(t, ffprobe, at("output.mp4"))
	var video, audio []mediaStream
	for _, s := range streams {
		switch s.CodecType {
		case "video":
			video = append(video, s)
		case "audio":
			audio = append(audio, s)
		}
	}
	require.Len(t, video, 1)
	require.Len(t, audio, 1)

	// stream copy keeps codec and frame count
	assert.Equal(t, src[0].CodecName, video[0].CodecName)
	assert.Equal(t, src[0].NbFrames, video[0].NbFrames)
	assert.Equal(t, "aac", audio[0].CodecName)

	d, err := strconv.ParseFloat(strings.TrimSpace(audio[0].Duration), 64)
	require.NoError(t, err)
	assert.InDelta(t, 1.2, d, 0.25)

	// tone first, then silence
	assert.Greater(t, loudness(t, ffmpeg, at("output.mp4"), "0.1", "0.3"), -40.0)
	assert.Less(t, loudness(t, ffmpeg, at("output.mp4"), "0.8", "0.3"), -60.0)
}

func TestFFmpegReportsStageFailure(t *testing.T) {
	ffmpeg, _ := requireFFmpeg(t)
	dir := t.TempDir()

	err := NewFFmpeg(ffmpeg, nil).NormalizeAudio(context.Background(), filepath.Join(dir, "missing.wav"), filepath.Join(dir, "out.mp3"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ffmpeg normalize")
}
