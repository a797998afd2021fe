package service

import (
	"context"
	"errors"
	"io"

	"tabletalk-go/internal/config"
	"tabletalk-go/internal/repository"
	"tabletalk-go/pkg/log"
	"tabletalk-go/pkg/speech"
)

// SynthesisResult 是一次语音合成的结果。
// Fallback 为 true 时 Audio 是静音占位，文本照常下发。
type SynthesisResult struct {
	Audio    []byte
	Voice    string
	Cached   bool
	Fallback bool
}

// SpeechService 定义了语音转写与合成的业务操作。
// 合成失败从不向上冒泡成聊天失败：降级为静音音频，文本照常走。
type SpeechService interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
	Synthesize(ctx context.Context, restaurantID, text, voice string) (*SynthesisResult, error)
	Voices() []string
	TextOnlyMode() bool
}

type speechService struct {
	client     speech.Client
	audioCache repository.AudioCache
	cfg        config.SpeechConfig
}

// NewSpeechService 创建一个新的 SpeechService 实例。
func NewSpeechService(client speech.Client, audioCache repository.AudioCache, cfg config.SpeechConfig) SpeechService {
	if cfg.DefaultVoice == "" {
		cfg.DefaultVoice = "alloy"
	}
	return &speechService{client: client, audioCache: audioCache, cfg: cfg}
}

// Transcribe 转写一段音频。失败统一映射为 ErrTranscriptionUnavailable，
// 调用方把它当作空输入处理并引导用户重说。
func (s *speechService) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	if s.cfg.TextOnlyMode {
		return "", speech.ErrTranscriptionUnavailable
	}
	return s.client.Transcribe(ctx, audio, filename)
}

// Synthesize 合成语音，缓存优先。
// 限流错误向上抛（由 HTTP 层转 429）；其余失败计数后降级为静音音频。
func (s *speechService) Synthesize(ctx context.Context, restaurantID, text, voice string) (*SynthesisResult, error) {
	if !speech.IsValidVoice(voice) {
		voice = s.cfg.DefaultVoice
	}

	if s.cfg.TextOnlyMode {
		return &SynthesisResult{Audio: speech.SilentMP3, Voice: voice, Fallback: true}, nil
	}

	if cached, err := s.audioCache.Get(ctx, text, voice); err != nil {
		log.Errorf("读取音频缓存失败: %v", err)
	} else if cached != nil {
		return &SynthesisResult{Audio: cached, Voice: voice, Cached: true}, nil
	}

	audio, err := s.client.Synthesize(ctx, text, voice)
	if err != nil {
		if countErr := s.audioCache.IncrSynthesisFailure(ctx, restaurantID); countErr != nil {
			log.Errorf("记录合成失败计数失败: %v", countErr)
		}
		if errors.Is(err, speech.ErrSynthesisRateLimited) {
			return nil, err
		}
		// 合成不可用：降级为静音音频，聊天主路径不受影响
		log.Errorf("语音合成失败，降级为纯文本: %v", err)
		return &SynthesisResult{Audio: speech.SilentMP3, Voice: voice, Fallback: true}, nil
	}

	if err := s.audioCache.Set(ctx, text, voice, audio); err != nil {
		log.Errorf("写入音频缓存失败: %v", err)
	}
	return &SynthesisResult{Audio: audio, Voice: voice}, nil
}

// Voices 返回可用音色列表。
func (s *speechService) Voices() []string {
	return speech.Voices
}

// TextOnlyMode 返回是否处于纯文本模式。
func (s *speechService) TextOnlyMode() bool {
	return s.cfg.TextOnlyMode
}
