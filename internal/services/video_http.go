package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// HTTPVideo generates clips through a submit-then-poll task API.
type HTTPVideo struct {
	BaseURL      string
	APIKey       string
	Client       *http.Client
	PollInterval time.Duration
	MaxWait      time.Duration
}

// NewHTTPVideo builds a video generation client. The API key comes from the
// VIDEO_API_KEY environment variable.
func NewHTTPVideo(baseURL string, pollInterval time.Duration) *HTTPVideo {
	if baseURL == "" {
		baseURL = os.Getenv("VIDEO_API_BASE_URL")
	}
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	return &HTTPVideo{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		APIKey:       os.Getenv("VIDEO_API_KEY"),
		Client:       &http.Client{Timeout: 5 * time.Minute},
		PollInterval: pollInterval,
		MaxWait:      10 * time.Minute,
	}
}

type videoSubmitPayload struct {
	Model        string  `json:"model,omitempty"`
	Prompt       string  `json:"prompt"`
	Style        string  `json:"style,omitempty"`
	Duration     float64 `json:"duration"`
	OutputFormat string  `json:"output_format"`
}

type videoTaskResponse struct {
	TaskID    string `json:"task_id"`
	Status    string `json:"status"`
	OutputURL string `json:"output_url,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Generate submits the prompt, polls until the task settles, and downloads
// the produced clip.
func (c *HTTPVideo) Generate(ctx context.Context, req VideoRequest) (VideoResult, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return VideoResult{}, fmt.Errorf("services: video prompt is empty")
	}
	if req.Duration < 1.0 || req.Duration > 30.0 {
		return VideoResult{}, fmt.Errorf("services: video duration %.1fs out of range 1-30s", req.Duration)
	}
	if c.APIKey == "" {
		return VideoResult{}, fmt.Errorf("services: VIDEO_API_KEY is not set")
	}

	taskID, err := c.submit(ctx, req)
	if err != nil {
		return VideoResult{}, err
	}
	task, err := c.waitForCompletion(ctx, taskID)
	if err != nil {
		return VideoResult{}, err
	}
	if task.OutputURL == "" {
		return VideoResult{}, fmt.Errorf("services: task %s completed without an output url", taskID)
	}
	video, err := c.download(ctx, task.OutputURL)
	if err != nil {
		return VideoResult{}, err
	}
	return VideoResult{Video: video, Duration: req.Duration}, nil
}

func (c *HTTPVideo) submit(ctx context.Context, req VideoRequest) (string, error) {
	payload, err := json.Marshal(videoSubmitPayload{
		Model:        req.Model,
		Prompt:       req.Prompt,
		Style:        req.Style,
		Duration:     req.Duration,
		OutputFormat: "mp4",
	})
	if err != nil {
		return "", fmt.Errorf("services: encode video request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/text-to-video", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("services: submit video task: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("services: submit video task: %w", ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("services: submit video task failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var task videoTaskResponse
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return "", fmt.Errorf("services: decode task response: %w", err)
	}
	if task.TaskID == "" {
		return "", fmt.Errorf("services: task response carried no task id")
	}
	return task.TaskID, nil
}

func (c *HTTPVideo) waitForCompletion(ctx context.Context, taskID string) (videoTaskResponse, error) {
	deadline := time.Now().Add(c.MaxWait)
	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()
	for {
		task, err := c.pollTask(ctx, taskID)
		if err != nil {
			return videoTaskResponse{}, err
		}
		switch task.Status {
		case "completed":
			return task, nil
		case "failed":
			reason := task.Error
			if reason == "" {
				reason = "unknown error"
			}
			return videoTaskResponse{}, fmt.Errorf("services: video task %s failed: %s", taskID, reason)
		}
		if time.Now().After(deadline) {
			return videoTaskResponse{}, fmt.Errorf("services: video task %s timed out after %s", taskID, c.MaxWait)
		}
		select {
		case <-ctx.Done():
			return videoTaskResponse{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *HTTPVideo) pollTask(ctx context.Context, taskID string) (videoTaskResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/tasks/"+taskID, nil)
	if err != nil {
		return videoTaskResponse{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	resp, err := c.Client.Do(httpReq)
	if err != nil {
		return videoTaskResponse{}, fmt.Errorf("services: poll video task: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return videoTaskResponse{}, fmt.Errorf("services: poll video task failed: %s", resp.Status)
	}
	var task videoTaskResponse
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return videoTaskResponse{}, fmt.Errorf("services: decode task status: %w", err)
	}
	return task, nil
}

func (c *HTTPVideo) download(ctx context.Context, url string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("services: download clip: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("services: download clip failed: %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
