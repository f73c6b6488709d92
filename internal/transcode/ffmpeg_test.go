package transcode

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcatListKeepsOrderAndQuotes(t *testing.T) {
	got := ConcatList([]string{"/s/norm-0.mp3", "/s/it's.mp3"})
	assert.Equal(t, "file '/s/norm-0.mp3'\nfile '/s/it'\\''s.mp3'\n", got)
}

func TestMuxArgsCopiesVideo(t *testing.T) {
	args := muxArgs("v.mp4", "m.mp3", "out.mp4")
	assert.Equal(t, []string{
		"-i", "v.mp4", "-i", "m.mp3",
		"-map", "0:v:0", "-map", "1:a:0",
		"-c:v", "copy", "-c:a", "aac",
		"out.mp4",
	}, args)
	assert.Equal(t, "libopus", audioCodecFor("x.WEBM"))
	assert.Equal(t, "copy", audioCodecFor("x.mkv"))
}

func TestConcatArgsStreamCopy(t *testing.T) {
	assert.Equal(t, []string{"-f", "concat", "-safe", "0", "-i", "l.txt", "-c", "copy", "o.mp3"}, concatArgs("l.txt", "o.mp3"))
	assert.Equal(t, []string{"-i", "a.webm", "-vn", "-acodec", "libmp3lame", "-f", "mp3", "n.mp3"}, normalizeArgs("a.webm", "n.mp3"))
}

func TestRunReportsMissingBinary(t *testing.T) {
	f := NewFFmpeg(filepath.Join(t.TempDir(), "no-such-ffmpeg"), nil)
	err := f.NormalizeAudio(context.Background(), "in.mp3", "out.mp3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ffmpeg normalize")
}

func TestConcatRemovesListFile(t *testing.T) {
	dir := t.TempDir()
	f := NewFFmpeg(filepath.Join(dir, "no-such-ffmpeg"), nil)
	out := filepath.Join(dir, "merged.mp3")

	require.Error(t, f.ConcatAudio(context.Background(), []string{"a.mp3"}, out))
	_, err := os.Stat(filepath.Join(dir, "merged-list.txt"))
	assert.True(t, os.IsNotExist(err))

	assert.Error(t, f.ConcatAudio(context.Background(), nil, out))
}

func TestTail(t *testing.T) {
	long := make([]byte, stderrTail+10)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, tail(string(long)), stderrTail)
	assert.Equal(t, "boom", tail("  boom\n"))
}
