package resilience

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/admitly/interviewd/pkg/provider/tts"
	"github.com/admitly/interviewd/pkg/provider/tts/mock"
)

func TestTTSFallback_UsesPrimaryWhenHealthy(t *testing.T) {
	t.Parallel()

	primary := &mock.Provider{SynthesizeAudio: []byte("primary-audio")}
	backup := &mock.Provider{SynthesizeAudio: []byte("backup-audio")}

	f := NewTTSFallback(primary, "elevenlabs", FallbackConfig{})
	f.AddFallback("backup", backup)

	audio, err := f.Synthesize(context.Background(), "hello", tts.VoiceProfile{ID: "v"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !bytes.Equal(audio, []byte("primary-audio")) {
		t.Fatalf("audio = %q", audio)
	}
	if len(backup.SynthesizeCalls) != 0 {
		t.Fatal("fallback was called even though primary succeeded")
	}
}

func TestTTSFallback_FailsOverOnError(t *testing.T) {
	t.Parallel()

	primary := &mock.Provider{SynthesizeErr: errors.New("api down")}
	backup := &mock.Provider{SynthesizeAudio: []byte("backup-audio")}

	f := NewTTSFallback(primary, "elevenlabs", FallbackConfig{})
	f.AddFallback("backup", backup)

	audio, err := f.Synthesize(context.Background(), "hello", tts.VoiceProfile{ID: "v"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !bytes.Equal(audio, []byte("backup-audio")) {
		t.Fatalf("audio = %q", audio)
	}
	if len(primary.SynthesizeCalls) != 1 {
		t.Fatalf("primary called %d times, want 1", len(primary.SynthesizeCalls))
	}
}

func TestTTSFallback_ListVoicesAllFailed(t *testing.T) {
	t.Parallel()

	primary := &mock.Provider{ListVoicesErr: errors.New("unauthorized")}

	f := NewTTSFallback(primary, "elevenlabs", FallbackConfig{})

	_, err := f.ListVoices(context.Background())
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestTTSFallback_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	t.Parallel()

	primary := &mock.Provider{SynthesizeErr: errors.New("api down")}
	backup := &mock.Provider{SynthesizeAudio: []byte("ok")}

	f := NewTTSFallback(primary, "elevenlabs", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2},
	})
	f.AddFallback("backup", backup)

	for range 4 {
		if _, err := f.Synthesize(context.Background(), "hi", tts.VoiceProfile{}); err != nil {
			t.Fatalf("Synthesize: %v", err)
		}
	}

	// After the threshold, the open breaker must stop hitting the primary.
	if calls := len(primary.SynthesizeCalls); calls != 2 {
		t.Fatalf("primary called %d times, want 2 (breaker open after threshold)", calls)
	}
}
