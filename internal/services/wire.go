package services

import (
	"time"

	"github.com/videoforge/videoforge/internal/cache"
	"github.com/videoforge/videoforge/internal/config"
)

// NewClients assembles the default collaborator set: local image analysis
// and cutting, HTTP speech synthesis and video generation wrapped in cache
// decorators, and the ffmpeg compositor.
func NewClients(cfg *config.Config, store *cache.Store) Clients {
	speech := NewHTTPSpeech("", "")
	video := NewHTTPVideo("", time.Duration(cfg.Project.Services.VideoPollSeconds)*time.Second)

	var synthesizer SpeechSynthesizer = speech
	var generator VideoGenerator = video
	if store != nil {
		synthesizer = NewCachedSpeech(speech, store)
		generator = NewCachedVideo(video, store)
	}
	return Clients{
		Analyzer:   BandAnalyzer{},
		Cutter:     LocalCutter{},
		Speech:     synthesizer,
		Video:      generator,
		Compositor: &FFmpegCompositor{},
	}
}
