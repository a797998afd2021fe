package handler

import (
	"errors"
	"net/http"

	"tabletalk-go/internal/service"
	"tabletalk-go/pkg/log"
	"tabletalk-go/pkg/speech"

	"github.com/gin-gonic/gin"
)

// 上传音频大小上限 10MB。
const maxAudioSize = 10 << 20

// 允许的上传音频类型。
var allowedAudioTypes = map[string]bool{
	"audio/mpeg":  true,
	"audio/mp3":   true,
	"audio/wav":   true,
	"audio/x-wav": true,
	"audio/webm":  true,
	"audio/ogg":   true,
	"audio/mp4":   true,
	"audio/m4a":   true,
	"audio/x-m4a": true,
}

// SpeechHandler 负责处理语音转写与合成相关的 API 请求。
type SpeechHandler struct {
	speechService     service.SpeechService
	restaurantService service.RestaurantService
}

// NewSpeechHandler 创建一个新的 SpeechHandler 实例。
func NewSpeechHandler(speechService service.SpeechService, restaurantService service.RestaurantService) *SpeechHandler {
	return &SpeechHandler{speechService: speechService, restaurantService: restaurantService}
}

// Transcribe 处理语音转写请求（multipart 上传音频）。
func (h *SpeechHandler) Transcribe(c *gin.Context) {
	fileHeader, err := c.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "缺少音频文件",
		})
		return
	}
	if fileHeader.Size > maxAudioSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "音频文件过大，上限 10MB",
		})
		return
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if contentType != "" && !allowedAudioTypes[contentType] {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "不支持的音频类型",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "读取音频文件失败",
		})
		return
	}
	defer file.Close()

	transcript, err := h.speechService.Transcribe(c.Request.Context(), file, fileHeader.Filename)
	if err != nil {
		// 转写失败等同于空输入，客户端引导用户重说
		log.Warnf("语音转写失败: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":    http.StatusServiceUnavailable,
			"message": "语音识别暂时不可用，请重试或改用文字输入",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"transcript": transcript},
	})
}

// Synthesize 处理语音合成请求，直接返回 MP3 字节。
func (h *SpeechHandler) Synthesize(c *gin.Context) {
	text := c.PostForm("text")
	voice := c.PostForm("voice")
	slug := c.PostForm("restaurant_slug")
	if text == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    http.StatusBadRequest,
			"message": "text 不能为空",
		})
		return
	}

	restaurantID := ""
	if slug != "" {
		if restaurant, err := h.restaurantService.GetBySlug(slug); err == nil {
			restaurantID = restaurant.ID
		}
	}

	result, err := h.speechService.Synthesize(c.Request.Context(), restaurantID, text, voice)
	if err != nil {
		if errors.Is(err, speech.ErrSynthesisRateLimited) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    http.StatusTooManyRequests,
				"message": "语音合成请求过于频繁，请稍后再试",
			})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":    http.StatusServiceUnavailable,
			"message": "语音合成暂时不可用",
		})
		return
	}

	c.Header("X-Voice", result.Voice)
	if result.Cached {
		c.Header("X-Cache", "HIT")
	}
	if result.Fallback {
		c.Header("X-Speech-Fallback", "true")
	}
	c.Data(http.StatusOK, "audio/mpeg", result.Audio)
}

// GetVoices 返回可用音色列表。
func (h *SpeechHandler) GetVoices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"voices": h.speechService.Voices()},
	})
}

// GetConfig 返回语音功能的客户端配置。
func (h *SpeechHandler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"text_only_mode": h.speechService.TextOnlyMode(),
			"voices":         h.speechService.Voices(),
		},
	})
}
