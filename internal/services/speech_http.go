package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ErrRateLimited marks an API refusal that is worth retrying later.
var ErrRateLimited = errors.New("services: rate limited")

const speechMaxTextLen = 4096

// HTTPSpeech synthesizes narration through an OpenAI-compatible
// /audio/speech endpoint.
type HTTPSpeech struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

// NewHTTPSpeech builds a speech client. The API key comes from the
// environment so it never lands in project config files.
func NewHTTPSpeech(baseURL, model string) *HTTPSpeech {
	if baseURL == "" {
		baseURL = os.Getenv("TTS_API_BASE_URL")
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "tts-1"
	}
	return &HTTPSpeech{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  os.Getenv("TTS_API_KEY"),
		Model:   model,
		Client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type speechPayload struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	Speed          float64 `json:"speed,omitempty"`
	ResponseFormat string  `json:"response_format"`
}

// Synthesize posts the text and returns the MP3 bytes plus the measured
// duration. HTTP 429 and timeouts surface as ErrRateLimited so callers can
// retry with backoff.
func (c *HTTPSpeech) Synthesize(ctx context.Context, req SpeechRequest) (SpeechResult, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return SpeechResult{}, fmt.Errorf("services: speech text is empty")
	}
	if len(text) > speechMaxTextLen {
		return SpeechResult{}, fmt.Errorf("services: speech text exceeds %d characters", speechMaxTextLen)
	}
	if c.APIKey == "" {
		return SpeechResult{}, fmt.Errorf("services: TTS_API_KEY is not set")
	}
	payload, err := json.Marshal(speechPayload{
		Model:          c.Model,
		Input:          text,
		Voice:          req.Voice,
		Speed:          req.Rate,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return SpeechResult{}, fmt.Errorf("services: encode speech request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/audio/speech", bytes.NewReader(payload))
	if err != nil {
		return SpeechResult{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(httpReq)
	if err != nil {
		return SpeechResult{}, fmt.Errorf("services: speech request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return SpeechResult{}, fmt.Errorf("services: speech request: %w", ErrRateLimited)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return SpeechResult{}, fmt.Errorf("services: speech request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return SpeechResult{}, fmt.Errorf("services: read speech response: %w", err)
	}
	return SpeechResult{Audio: audio, Duration: measureMP3Duration(audio)}, nil
}

// measureMP3Duration asks ffprobe for the real duration, falling back to a
// bitrate estimate (128 kbps) when ffprobe is unavailable.
func measureMP3Duration(audio []byte) float64 {
	tmp, err := os.CreateTemp("", "videoforge-*.mp3")
	if err == nil {
		defer os.Remove(tmp.Name())
		if _, err := tmp.Write(audio); err == nil {
			tmp.Close()
			if dur, err := probeDuration(tmp.Name()); err == nil {
				return dur
			}
		} else {
			tmp.Close()
		}
	}
	return float64(len(audio)) / (128 * 1000 / 8)
}

// probeDuration reads a media file's duration via ffprobe.
func probeDuration(path string) (float64, error) {
	out, err := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, err
	}
	dur, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("services: parse ffprobe output: %w", err)
	}
	return dur, nil
}
