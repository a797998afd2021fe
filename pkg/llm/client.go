// Package llm provides a client for interacting with Large Language Models.
package llm

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"tabletalk-go/internal/config"
	"tabletalk-go/pkg/log"

	openai "github.com/sashabaranov/go-openai"
)

// 供应商错误分类。调用方用 errors.Is 区分可重试与不可重试的失败。
var (
	ErrRateLimited  = errors.New("llm: provider rate limited")
	ErrUnauthorized = errors.New("llm: provider auth failed")
	ErrBadRequest   = errors.New("llm: malformed provider request")
	ErrTimeout      = errors.New("llm: provider timeout")
	ErrUnavailable  = errors.New("llm: provider unavailable")
)

// Message 表示一条角色消息。
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams 控制生成行为。
type GenerationParams struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// ChunkWriter 接收流式生成的文本分块。
// 分块有序且有限，按顺序拼接即完整回复；流不可重放。
type ChunkWriter interface {
	WriteChunk(content string) error
}

// Client defines the interface for an LLM client.
type Client interface {
	// Complete 一次性返回完整回复文本。
	Complete(ctx context.Context, messages []Message, gen *GenerationParams) (string, error)
	// StreamChat 将流式分块依次写入 writer，并返回拼接后的完整文本。
	// 首个分块送出之后不再重试：流不可重放，中途失败直接上抛。
	StreamChat(ctx context.Context, messages []Message, gen *GenerationParams, writer ChunkWriter) (string, error)
}

type openAIClient struct {
	cfg    config.LLMConfig
	client *openai.Client
}

// NewClient creates a new LLM client based on the provider in the config.
func NewClient(cfg config.LLMConfig) Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	switch {
	case cfg.BaseURL != "":
		clientCfg.BaseURL = cfg.BaseURL
	case strings.EqualFold(cfg.Provider, "groq"):
		clientCfg.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.Model == "" {
		if strings.EqualFold(cfg.Provider, "groq") {
			cfg.Model = "llama3-8b-8192"
		} else {
			cfg.Model = "gpt-4o-mini"
		}
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &openAIClient{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientCfg),
	}
}

// Complete 调用 chat completions 接口并返回完整文本，瞬时错误在内部有限重试。
func (c *openAIClient) Complete(ctx context.Context, messages []Message, gen *GenerationParams) (string, error) {
	req := c.buildRequest(messages, gen, false)

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := backoff(ctx, attempt); err != nil {
				return "", err
			}
		}
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			lastErr = classify(err)
			if !retryable(lastErr) {
				return "", lastErr
			}
			log.Warnf("LLM 请求失败，准备重试 (%d/%d): %v", attempt+1, c.cfg.MaxRetries, err)
			continue
		}
		if len(resp.Choices) == 0 {
			return "", ErrUnavailable
		}
		return resp.Choices[0].Message.Content, nil
	}
	return "", lastErr
}

// StreamChat 以流式方式生成回复。重试只发生在流建立阶段。
func (c *openAIClient) StreamChat(ctx context.Context, messages []Message, gen *GenerationParams, writer ChunkWriter) (string, error) {
	req := c.buildRequest(messages, gen, true)

	var stream *openai.ChatCompletionStream
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := backoff(ctx, attempt); err != nil {
				return "", err
			}
		}
		var err error
		stream, err = c.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			lastErr = classify(err)
			if !retryable(lastErr) {
				return "", lastErr
			}
			log.Warnf("LLM 流式请求失败，准备重试 (%d/%d): %v", attempt+1, c.cfg.MaxRetries, err)
			continue
		}
		break
	}
	if stream == nil {
		return "", lastErr
	}
	defer stream.Close()

	var full strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", classify(err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		content := chunk.Choices[0].Delta.Content
		if content == "" {
			continue
		}
		full.WriteString(content)
		if err := writer.WriteChunk(content); err != nil {
			return "", err
		}
	}
	return full.String(), nil
}

func (c *openAIClient) buildRequest(messages []Message, gen *GenerationParams, stream bool) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:  c.cfg.Model,
		Stream: stream,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	// 传参优先于配置中的生成参数
	if gen != nil {
		if gen.Temperature != nil {
			req.Temperature = float32(*gen.Temperature)
		}
		if gen.TopP != nil {
			req.TopP = float32(*gen.TopP)
		}
		if gen.MaxTokens != nil {
			req.MaxTokens = *gen.MaxTokens
		}
		return req
	}
	if c.cfg.Generation.Temperature != 0 {
		req.Temperature = float32(c.cfg.Generation.Temperature)
	}
	if c.cfg.Generation.TopP != 0 {
		req.TopP = float32(c.cfg.Generation.TopP)
	}
	if c.cfg.Generation.MaxTokens != 0 {
		req.MaxTokens = c.cfg.Generation.MaxTokens
	}
	return req
}

// classify 将供应商错误映射为包级错误种类。
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode)
	}
	return ErrUnavailable
}

func classifyStatus(status int) error {
	switch {
	case status == 429:
		return ErrRateLimited
	case status == 401 || status == 403:
		return ErrUnauthorized
	case status >= 400 && status < 500:
		return ErrBadRequest
	default:
		return ErrUnavailable
	}
}

// retryable 判断是否为可重试的瞬时错误。
func retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable)
}

// backoff 指数退避，等待期间响应上下文取消。
func backoff(ctx context.Context, attempt int) error {
	delay := time.Duration(1<<uint(attempt-1)) * 500 * time.Millisecond
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
