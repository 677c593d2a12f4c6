package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/videoforge/videoforge/internal/cache"
)

// CachedSpeech wraps a SpeechSynthesizer with content-addressed caching.
// Identical text/voice/rate requests are served from disk instead of the
// vendor API.
type CachedSpeech struct {
	inner SpeechSynthesizer
	store *cache.Store
}

// NewCachedSpeech returns a caching decorator around inner.
func NewCachedSpeech(inner SpeechSynthesizer, store *cache.Store) *CachedSpeech {
	return &CachedSpeech{inner: inner, store: store}
}

// Synthesize checks the cache before delegating to the wrapped synthesizer.
// Cache failures degrade to a miss; they never fail the request.
func (c *CachedSpeech) Synthesize(ctx context.Context, req SpeechRequest) (SpeechResult, error) {
	key, err := cache.Key("tts.synthesize", req)
	if err != nil {
		return SpeechResult{}, fmt.Errorf("services: build speech cache key: %w", err)
	}
	if val := c.store.Get(key); val != nil {
		var res SpeechResult
		if err := json.Unmarshal(val.Data, &res); err == nil {
			return res, nil
		}
	}
	res, err := c.inner.Synthesize(ctx, req)
	if err != nil {
		return SpeechResult{}, err
	}
	if data, err := json.Marshal(res); err == nil {
		_ = c.store.Put(key, cache.CategoryAPIResponses, cache.Value{Data: data, TypeTag: "speech_result"})
	}
	return res, nil
}

// CachedVideo wraps a VideoGenerator with content-addressed caching.
type CachedVideo struct {
	inner VideoGenerator
	store *cache.Store
}

// NewCachedVideo returns a caching decorator around inner.
func NewCachedVideo(inner VideoGenerator, store *cache.Store) *CachedVideo {
	return &CachedVideo{inner: inner, store: store}
}

// Generate checks the cache before delegating to the wrapped generator.
func (c *CachedVideo) Generate(ctx context.Context, req VideoRequest) (VideoResult, error) {
	key, err := cache.Key("video.generate", req)
	if err != nil {
		return VideoResult{}, fmt.Errorf("services: build video cache key: %w", err)
	}
	if val := c.store.Get(key); val != nil {
		var res VideoResult
		if err := json.Unmarshal(val.Data, &res); err == nil {
			return res, nil
		}
	}
	res, err := c.inner.Generate(ctx, req)
	if err != nil {
		return VideoResult{}, err
	}
	if data, err := json.Marshal(res); err == nil {
		_ = c.store.Put(key, cache.CategoryAPIResponses, cache.Value{Data: data, TypeTag: "video_result"})
	}
	return res, nil
}
