package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"tabletalk-go/internal/config"
	"tabletalk-go/pkg/speech"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSpeechClient 可配置的语音客户端。
type fakeSpeechClient struct {
	transcript string
	audio      []byte
	err        error
	calls      int
}

func (f *fakeSpeechClient) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.transcript, nil
}

func (f *fakeSpeechClient) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.audio, nil
}

// fakeAudioCache 是内存版的音频缓存。
type fakeAudioCache struct {
	store    map[string][]byte
	failures int
}

func newFakeAudioCache() *fakeAudioCache {
	return &fakeAudioCache{store: map[string][]byte{}}
}

func (f *fakeAudioCache) Get(ctx context.Context, text, voice string) ([]byte, error) {
	return f.store[text+":"+voice], nil
}

func (f *fakeAudioCache) Set(ctx context.Context, text, voice string, audio []byte) error {
	f.store[text+":"+voice] = audio
	return nil
}

func (f *fakeAudioCache) IncrSynthesisFailure(ctx context.Context, restaurantID string) error {
	f.failures++
	return nil
}

func speechCfg() config.SpeechConfig {
	return config.SpeechConfig{DefaultVoice: "alloy"}
}

func TestSynthesizeCachesResult(t *testing.T) {
	client := &fakeSpeechClient{audio: []byte("mp3-bytes")}
	cache := newFakeAudioCache()
	svc := NewSpeechService(client, cache, speechCfg())

	first, err := svc.Synthesize(context.Background(), "r-1", "hello", "nova")
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, []byte("mp3-bytes"), first.Audio)

	second, err := svc.Synthesize(context.Background(), "r-1", "hello", "nova")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, client.calls)
}

func TestSynthesizeInvalidVoiceFallsBackToDefault(t *testing.T) {
	client := &fakeSpeechClient{audio: []byte("x")}
	svc := NewSpeechService(client, newFakeAudioCache(), speechCfg())

	result, err := svc.Synthesize(context.Background(), "r-1", "hi", "not-a-voice")

	require.NoError(t, err)
	assert.Equal(t, "alloy", result.Voice)
}

func TestSynthesizeRateLimitBubblesUp(t *testing.T) {
	client := &fakeSpeechClient{err: speech.ErrSynthesisRateLimited}
	cache := newFakeAudioCache()
	svc := NewSpeechService(client, cache, speechCfg())

	_, err := svc.Synthesize(context.Background(), "r-1", "hi", "alloy")

	require.Error(t, err)
	assert.True(t, errors.Is(err, speech.ErrSynthesisRateLimited))
	assert.Equal(t, 1, cache.failures)
}

func TestSynthesizeUnavailableDegradesToSilentAudio(t *testing.T) {
	client := &fakeSpeechClient{err: speech.ErrSynthesisUnavailable}
	cache := newFakeAudioCache()
	svc := NewSpeechService(client, cache, speechCfg())

	result, err := svc.Synthesize(context.Background(), "r-1", "hi", "alloy")

	require.NoError(t, err)
	assert.True(t, result.Fallback)
	assert.Equal(t, speech.SilentMP3, result.Audio)
	assert.Equal(t, 1, cache.failures)
}

func TestTextOnlyModeSkipsProvider(t *testing.T) {
	client := &fakeSpeechClient{audio: []byte("x")}
	cfg := speechCfg()
	cfg.TextOnlyMode = true
	svc := NewSpeechService(client, newFakeAudioCache(), cfg)

	result, err := svc.Synthesize(context.Background(), "r-1", "hi", "alloy")
	require.NoError(t, err)
	assert.True(t, result.Fallback)
	assert.Equal(t, 0, client.calls)

	_, err = svc.Transcribe(context.Background(), nil, "a.mp3")
	require.Error(t, err)
	assert.True(t, errors.Is(err, speech.ErrTranscriptionUnavailable))
}
