package speech_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/MegaGrindStone/meet-assistant/internal/speech"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecognizer struct {
	events chan speech.RecognitionEvent

	mu       sync.Mutex
	starts   int
	stops    int
	startErr error
}

func newFakeRecognizer() *fakeRecognizer {
	return &fakeRecognizer{events: make(chan speech.RecognitionEvent, 16)}
}

func (f *fakeRecognizer) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return f.startErr
}

func (f *fakeRecognizer) Next(ctx context.Context) (speech.RecognitionEvent, error) {
	select {
	case ev := <-f.events:
		return ev, nil
	case <-ctx.Done():
		return speech.RecognitionEvent{}, ctx.Err()
	}
}

func (f *fakeRecognizer) Stop() error {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
	f.events <- speech.RecognitionEvent{Kind: speech.EventEnd}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestListenerFinalResultsOnly(t *testing.T) {
	rec := newFakeRecognizer()
	l := speech.NewListener(rec, discardLogger())

	require.True(t, l.IsSupported())
	require.NoError(t, l.StartListening(context.Background()))
	assert.True(t, l.IsListening())

	rec.events <- speech.RecognitionEvent{Kind: speech.EventResult, Transcript: "what do"}
	rec.events <- speech.RecognitionEvent{Kind: speech.EventResult, Transcript: " what do you see ", Final: true}
	rec.events <- speech.RecognitionEvent{Kind: speech.EventResult, Transcript: "ignored partial"}
	l.StopListening()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := l.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "what do you see", got)
	assert.False(t, l.IsListening())
}

func TestListenerStartClearsTranscript(t *testing.T) {
	rec := newFakeRecognizer()
	l := speech.NewListener(rec, discardLogger())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, l.StartListening(ctx))
	rec.events <- speech.RecognitionEvent{Kind: speech.EventResult, Transcript: "first", Final: true}
	l.StopListening()
	got, err := l.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, "first", got)

	require.NoError(t, l.StartListening(ctx))
	assert.Empty(t, l.Transcript())
	l.StopListening()
	_, err = l.Wait(ctx)
	require.NoError(t, err)
}

func TestListenerStartWhileListeningIsNoop(t *testing.T) {
	rec := newFakeRecognizer()
	l := speech.NewListener(rec, discardLogger())

	require.NoError(t, l.StartListening(context.Background()))
	require.NoError(t, l.StartListening(context.Background()))

	rec.mu.Lock()
	assert.Equal(t, 1, rec.starts)
	rec.mu.Unlock()

	l.StopListening()
	_, err := l.Wait(context.Background())
	require.NoError(t, err)
}

func TestListenerEngineErrorEndsSession(t *testing.T) {
	rec := newFakeRecognizer()
	l := speech.NewListener(rec, discardLogger())

	var mu sync.Mutex
	var states []bool
	l.Subscribe(func(listening bool) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, listening)
	})

	require.NoError(t, l.StartListening(context.Background()))
	rec.events <- speech.RecognitionEvent{Kind: speech.EventError, Err: errors.New("no-speech")}

	_, err := l.Wait(context.Background())
	require.NoError(t, err)
	assert.False(t, l.IsListening())

	mu.Lock()
	assert.Equal(t, []bool{true, false}, states)
	mu.Unlock()

	rec.mu.Lock()
	assert.Equal(t, 1, rec.starts)
	rec.mu.Unlock()
}

func TestListenerStopIsIdempotent(t *testing.T) {
	rec := newFakeRecognizer()
	l := speech.NewListener(rec, discardLogger())

	l.StopListening()
	require.NoError(t, l.StartListening(context.Background()))
	l.StopListening()
	_, err := l.Wait(context.Background())
	require.NoError(t, err)
	l.StopListening()

	rec.mu.Lock()
	assert.Equal(t, 1, rec.stops)
	rec.mu.Unlock()
}

func TestListenerUnsupported(t *testing.T) {
	l := speech.NewListener(nil, discardLogger())

	assert.False(t, l.IsSupported())
	assert.ErrorIs(t, l.StartListening(context.Background()), speech.ErrUnsupported)
	assert.False(t, l.IsListening())
	l.StopListening()
}

func TestListenerStartFailure(t *testing.T) {
	rec := newFakeRecognizer()
	rec.startErr = errors.New("not-allowed")
	l := speech.NewListener(rec, discardLogger())

	require.Error(t, l.StartListening(context.Background()))
	assert.False(t, l.IsListening())
}
