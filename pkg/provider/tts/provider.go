// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., ElevenLabs) and
// presents two synthesis modes: Synthesize produces a complete encoded audio
// clip for a finished interviewer turn, and SynthesizeStream accepts a channel
// of text fragments and returns raw audio chunks as they become available,
// enabling low-latency pipelining between LLM output and playback.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use. Multiple synthesis requests
// may run in parallel (e.g., several interview sessions speaking at once).
type Provider interface {
	// Synthesize converts the full text into a single encoded audio clip
	// (MP3 unless the implementation is configured otherwise) suitable for
	// base64 delivery to a browser client.
	//
	// Returns an error if text is empty, the voice is unavailable, or the
	// backend request fails.
	Synthesize(ctx context.Context, text string, voice VoiceProfile) ([]byte, error)

	// SynthesizeStream consumes text fragments from the text channel and
	// returns a channel that emits raw PCM audio byte slices as they are
	// synthesised. This design allows the caller to pipe LLM streaming output
	// directly into synthesis without waiting for the full text.
	//
	// The returned audio channel is closed by the implementation when all text
	// has been synthesised or when ctx is cancelled. The caller must drain the
	// audio channel to avoid blocking the provider's internal goroutines.
	//
	// Returns a non-nil error only if the stream cannot be started. Errors
	// encountered during synthesis are signalled by closing the audio channel
	// early; callers should check ctx.Err() to distinguish cancellation from
	// provider errors.
	SynthesizeStream(ctx context.Context, text <-chan string, voice VoiceProfile) (<-chan []byte, error)

	// ListVoices returns all voice profiles available from this provider. The
	// list reflects the provider's current catalogue and may change between
	// calls. Also serves as a cheap connectivity and credential check.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
}
