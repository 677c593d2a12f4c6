package services

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/videoforge/videoforge/internal/plan"
)

// FFmpegCompositor renders the composition timeline by shelling out to
// ffmpeg. Video and image layers are concatenated in start-time order, audio
// layers are concatenated separately, and the two tracks are muxed into the
// final file.
type FFmpegCompositor struct {
	// WorkDir holds the intermediate concat lists and tracks. Defaults to the
	// output file's directory.
	WorkDir string
}

// Compose renders the final video and returns its path.
func (c *FFmpegCompositor) Compose(ctx context.Context, req ComposeRequest) (string, error) {
	if req.Composition == nil || len(req.Composition.Layers) == 0 {
		return "", fmt.Errorf("services: composition has no layers")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return "", fmt.Errorf("services: ffmpeg not found on PATH: %w", err)
	}
	workDir := c.WorkDir
	if workDir == "" {
		workDir = filepath.Dir(req.OutputPath)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", err
	}

	videoPaths, audioPaths := splitTracks(req.Composition.Layers)
	if len(videoPaths) == 0 {
		return "", fmt.Errorf("services: composition has no video or image layers")
	}

	videoTrack := filepath.Join(workDir, "video_track.mp4")
	if err := c.concat(ctx, workDir, "video_concat.txt", videoPaths, videoTrack); err != nil {
		return "", err
	}

	if len(audioPaths) == 0 {
		if err := copyFile(videoTrack, req.OutputPath); err != nil {
			return "", err
		}
		return req.OutputPath, nil
	}

	audioTrack := filepath.Join(workDir, "audio_track.mp3")
	if err := c.concat(ctx, workDir, "audio_concat.txt", audioPaths, audioTrack); err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", "-y",
		"-i", videoTrack,
		"-i", audioTrack,
		"-c:v", "copy",
		"-c:a", "aac",
		"-shortest",
		req.OutputPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("services: ffmpeg mux: %w: %s", err, tail(out))
	}
	return req.OutputPath, nil
}

// concat joins media files in order using ffmpeg's concat demuxer.
func (c *FFmpegCompositor) concat(ctx context.Context, workDir, listName string, paths []string, outPath string) error {
	var lines []string
	for _, p := range paths {
		lines = append(lines, fmt.Sprintf("file '%s'", p))
	}
	listFile := filepath.Join(workDir, listName)
	if err := os.WriteFile(listFile, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, "ffmpeg", "-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		outPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("services: ffmpeg concat: %w: %s", err, tail(out))
	}
	return nil
}

// splitTracks partitions the layers into video and audio sources ordered by
// start time (declaration order breaking ties).
func splitTracks(layers []plan.Layer) (video, audio []string) {
	indexed := make([]plan.Layer, len(layers))
	copy(indexed, layers)
	sort.SliceStable(indexed, func(i, j int) bool {
		return indexed[i].StartTime < indexed[j].StartTime
	})
	for _, l := range indexed {
		if l.Path == "" {
			continue
		}
		switch l.Type {
		case plan.LayerVideo, plan.LayerImage:
			video = append(video, l.Path)
		case plan.LayerAudio:
			audio = append(audio, l.Path)
		}
	}
	return video, audio
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func tail(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > 512 {
		return s[len(s)-512:]
	}
	return s
}
