// Package speech provides speech-to-text and text-to-speech clients.
package speech

import (
	"context"
	"errors"
	"io"
	"strings"

	"tabletalk-go/internal/config"
	"tabletalk-go/pkg/log"

	openai "github.com/sashabaranov/go-openai"
)

// 语音桥错误分类。两类失败都不允许阻塞文本聊天主路径。
var (
	// ErrTranscriptionUnavailable 供应商故障或音频为空/损坏，调用方按空输入处理并引导用户重说。
	ErrTranscriptionUnavailable = errors.New("speech: transcription unavailable")
	// ErrSynthesisRateLimited 合成被限流，调用方降级为纯文本下发。
	ErrSynthesisRateLimited = errors.New("speech: synthesis rate limited")
	// ErrSynthesisUnavailable 合成服务不可用，调用方降级为纯文本下发。
	ErrSynthesisUnavailable = errors.New("speech: synthesis unavailable")
)

// SilentMP3 是一段极短的静音 MP3，作为纯文本模式下的占位音频。
var SilentMP3 = []byte{
	0xff, 0xfb, 0x90, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// Voices 是可用的 TTS 音色列表。
var Voices = []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"}

// IsValidVoice 校验音色标识，未知音色由调用方回退到默认值。
func IsValidVoice(voice string) bool {
	for _, v := range Voices {
		if v == voice {
			return true
		}
	}
	return false
}

// Client defines the interface for a speech provider client.
type Client interface {
	// Transcribe 将音频转写为文本。
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
	// Synthesize 将文本合成为 MP3 音频。
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

type openAISpeechClient struct {
	cfg    config.SpeechConfig
	client *openai.Client
}

// NewClient creates a new speech client for the OpenAI Whisper/TTS APIs.
func NewClient(cfg config.SpeechConfig) Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &openAISpeechClient{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientCfg),
	}
}

// Transcribe 调用 Whisper 接口转写音频。
func (c *openAISpeechClient) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	if audio == nil {
		return "", ErrTranscriptionUnavailable
	}
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		Reader:   audio,
		FilePath: filename,
		Language: "en",
	})
	if err != nil {
		log.Error("Whisper 转写失败", err)
		return "", ErrTranscriptionUnavailable
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrTranscriptionUnavailable
	}
	return text, nil
}

// Synthesize 调用 TTS 接口合成语音，返回 MP3 字节。
func (c *openAISpeechClient) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil, ErrSynthesisUnavailable
	}
	if !IsValidVoice(voice) {
		voice = c.cfg.DefaultVoice
	}

	resp, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          clean,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 429 {
			return nil, ErrSynthesisRateLimited
		}
		log.Error("TTS 合成失败", err)
		return nil, ErrSynthesisUnavailable
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, ErrSynthesisUnavailable
	}
	return audio, nil
}
