// Package voice adapts a TTS provider into the orchestrator's synthesis
// surface: full-utterance rendering for single turns and a sentence-chunked
// streaming path that overlaps synthesis with text generation. Rendered audio
// is written through the audio cache so clients can re-fetch it during its
// TTL window.
package voice

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/admitly/interviewd/internal/audiocache"
	"github.com/admitly/interviewd/pkg/provider/tts"
)

// Synthesizer renders interviewer text to audio through a TTS provider.
// A Synthesizer with a nil provider is valid and reports itself disabled;
// sessions then run text-only.
type Synthesizer struct {
	tts   tts.Provider
	voice tts.VoiceProfile
	cache *audiocache.Cache
	log   *slog.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithCache writes rendered audio through cache.
func WithCache(cache *audiocache.Cache) Option {
	return func(s *Synthesizer) { s.cache = cache }
}

// WithLogger sets the logger for cache write failures.
func WithLogger(log *slog.Logger) Option {
	return func(s *Synthesizer) { s.log = log }
}

// New returns a Synthesizer speaking with voice through provider.
func New(provider tts.Provider, voice tts.VoiceProfile, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		tts:   provider,
		voice: voice,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether a TTS provider is configured.
func (s *Synthesizer) Enabled() bool {
	return s.tts != nil
}

// Render synthesizes one complete utterance and returns it base64-encoded
// for protocol delivery. The raw audio is also written to the cache when one
// is configured; cache failures are logged, not surfaced.
func (s *Synthesizer) Render(ctx context.Context, text string) (string, error) {
	if s.tts == nil {
		return "", fmt.Errorf("voice: render: no TTS provider configured")
	}

	audio, err := s.tts.Synthesize(ctx, text, s.voice)
	if err != nil {
		return "", fmt.Errorf("voice: render: %w", err)
	}

	if s.cache != nil {
		if name, err := s.cache.Put(audio); err != nil {
			s.log.Warn("audio cache write failed", "error", err)
		} else {
			s.log.Debug("cached rendered audio", "file", name, "bytes", len(audio))
		}
	}

	return base64.StdEncoding.EncodeToString(audio), nil
}

// RenderedSentence is one sentence's worth of synthesized audio, or the
// error that ended the stream.
type RenderedSentence struct {
	Text  string
	Audio []byte
	Err   error
}

// RenderSentences consumes streamed text fragments, regroups them into
// complete sentences, and synthesizes each as it completes. The returned
// channel is closed after the final (possibly unterminated) sentence has been
// rendered. A synthesis failure is delivered as the last element and ends the
// stream.
func (s *Synthesizer) RenderSentences(ctx context.Context, fragments <-chan string) <-chan RenderedSentence {
	out := make(chan RenderedSentence)
	go func() {
		defer close(out)
		if s.tts == nil {
			out <- RenderedSentence{Err: fmt.Errorf("voice: render stream: no TTS provider configured")}
			return
		}

		var chunker SentenceChunker
		for fragment := range fragments {
			for _, sentence := range chunker.Feed(fragment) {
				if !s.renderOne(ctx, sentence, out) {
					return
				}
			}
		}
		if rest := chunker.Flush(); rest != "" {
			s.renderOne(ctx, rest, out)
		}
	}()
	return out
}

func (s *Synthesizer) renderOne(ctx context.Context, sentence string, out chan<- RenderedSentence) bool {
	audio, err := s.tts.Synthesize(ctx, sentence, s.voice)
	if err != nil {
		out <- RenderedSentence{Text: sentence, Err: fmt.Errorf("voice: render stream: %w", err)}
		return false
	}
	select {
	case out <- RenderedSentence{Text: sentence, Audio: audio}:
		return true
	case <-ctx.Done():
		return false
	}
}
