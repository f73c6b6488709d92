package recordings

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ringline/backend/internal/models"
	"github.com/ringline/backend/pkg/queue"
)

// fakeEngine writes text files that describe what ffmpeg would have produced,
// so tests can check stage order and inputs.
type fakeEngine struct {
	mu       sync.Mutex
	failAt   string
	calls    []string
	blockMux chan struct{}
}

func (e *fakeEngine) record(stage string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, stage)
	if e.failAt == stage {
		return errors.New(stage + " exploded")
	}
	return nil
}

func (e *fakeEngine) NormalizeAudio(_ context.Context, in, out string) error {
	if err := e.record(StageNormalize); err != nil {
		return err
	}
	b, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	return os.WriteFile(out, []byte("mp3("+string(b)+")"), 0o600)
}

func (e *fakeEngine) ConcatAudio(_ context.Context, inputs []string, out string) error {
	if err := e.record(StageConcat); err != nil {
		return err
	}
	var parts []string
	for _, in := range inputs {
		b, err := os.ReadFile(in)
		if err != nil {
			return err
		}
		parts = append(parts, string(b))
	}
	return os.WriteFile(out, []byte(strings.Join(parts, "+")), 0o600)
}

func (e *fakeEngine) Mux(ctx context.Context, video, audio, out string) error {
	if e.blockMux != nil {
		select {
		case <-e.blockMux:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := e.record(StageMux); err != nil {
		return err
	}
	v, err := os.ReadFile(video)
	if err != nil {
		return err
	}
	a, err := os.ReadFile(audio)
	if err != nil {
		return err
	}
	return os.WriteFile(out, []byte("video["+string(v)+"] audio["+string(a)+"]"), 0o600)
}

type fakeMessages struct {
	mu        sync.Mutex
	failWith  error
	deleteErr error
	msgs      map[string]models.RecordingMessage
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{msgs: make(map[string]models.RecordingMessage)}
}

func (m *fakeMessages) InsertRecording(_ context.Context, msg *models.RecordingMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	msg.ID = uuid.New()
	m.msgs[msg.FilePath] = *msg
	return nil
}

func (m *fakeMessages) DeleteByFilePath(_ context.Context, filePath string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	if _, ok := m.msgs[filePath]; !ok {
		return 0, nil
	}
	delete(m.msgs, filePath)
	return 1, nil
}

func (m *fakeMessages) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.msgs)
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []queue.MediaCleanupPayload
}

func (q *fakeQueue) EnqueueMediaCleanup(_ context.Context, p queue.MediaCleanupPayload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, p)
	return nil
}

func textTrack(name, body string) Track {
	return Track{
		Filename: name,
		Size:     int64(len(body)),
		Open:     func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(body)), nil },
	}
}
