package config_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/admitly/interviewd/internal/config"
	"github.com/admitly/interviewd/pkg/provider/llm"
	llmmock "github.com/admitly/interviewd/pkg/provider/llm/mock"
	"github.com/admitly/interviewd/pkg/provider/tts"
	ttsmock "github.com/admitly/interviewd/pkg/provider/tts/mock"
)

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()
	valid := []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError}
	for _, l := range valid {
		if !l.IsValid() {
			t.Errorf("%q should be valid", l)
		}
	}
	for _, l := range []config.LogLevel{"", "trace", "verbose", "INFO"} {
		if l.IsValid() {
			t.Errorf("%q should be invalid", l)
		}
	}
}

func TestDuration_Unmarshal(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		yaml    string
		want    time.Duration
		wantErr bool
	}{
		{name: "seconds", yaml: "interview:\n  speaking_unlock_timeout: 45s", want: 45 * time.Second},
		{name: "compound", yaml: "interview:\n  speaking_unlock_timeout: 1m30s", want: 90 * time.Second},
		{name: "hours", yaml: "interview:\n  speaking_unlock_timeout: 24h", want: 24 * time.Hour},
		{name: "bare int is nanoseconds", yaml: "interview:\n  speaking_unlock_timeout: 1000000000", want: time.Second},
		{name: "garbage", yaml: "interview:\n  speaking_unlock_timeout: soon", wantErr: true},
		{name: "mapping", yaml: "interview:\n  speaking_unlock_timeout: {a: 1}", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			full := "providers:\n  llm:\n    name: gemini\n" + tt.yaml
			cfg, err := config.LoadFromReader(strings.NewReader(full))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := cfg.Interview.SpeakingUnlockTimeout.Std(); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestDiff(t *testing.T) {
	t.Parallel()

	base := func() *config.Config {
		cfg := &config.Config{}
		cfg.Server.LogLevel = config.LogInfo
		cfg.Interview.Persona = "You are a friendly admissions interviewer."
		cfg.Interview.QuestionCatalog = "questions.json"
		cfg.Providers.TTS.Voice = config.VoiceConfig{VoiceID: "v1", Stability: 0.5}
		return cfg
	}

	t.Run("no changes", func(t *testing.T) {
		t.Parallel()
		d := config.Diff(base(), base())
		if d.Any() {
			t.Errorf("expected empty diff, got %+v", d)
		}
	})

	t.Run("log level", func(t *testing.T) {
		t.Parallel()
		next := base()
		next.Server.LogLevel = config.LogDebug
		d := config.Diff(base(), next)
		if !d.LogLevelChanged {
			t.Error("expected LogLevelChanged")
		}
		if d.NewLogLevel != config.LogDebug {
			t.Errorf("expected NewLogLevel debug, got %q", d.NewLogLevel)
		}
	})

	t.Run("persona", func(t *testing.T) {
		t.Parallel()
		next := base()
		next.Interview.Persona = "You are a stern admissions interviewer."
		d := config.Diff(base(), next)
		if !d.PersonaChanged {
			t.Error("expected PersonaChanged")
		}
		if d.LogLevelChanged || d.VoiceChanged || d.CatalogChanged {
			t.Errorf("unexpected extra changes: %+v", d)
		}
	})

	t.Run("voice", func(t *testing.T) {
		t.Parallel()
		next := base()
		next.Providers.TTS.Voice.Stability = 0.8
		d := config.Diff(base(), next)
		if !d.VoiceChanged {
			t.Error("expected VoiceChanged")
		}
	})

	t.Run("catalog", func(t *testing.T) {
		t.Parallel()
		next := base()
		next.Interview.QuestionCatalog = "other.json"
		d := config.Diff(base(), next)
		if !d.CatalogChanged {
			t.Error("expected CatalogChanged")
		}
	})
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	t.Run("create registered LLM", func(t *testing.T) {
		t.Parallel()
		r := config.NewRegistry()
		want := &llmmock.Provider{}
		r.RegisterLLM("gemini", func(entry config.ProviderEntry) (llm.Provider, error) {
			if entry.Model != "gemini-2.0-flash" {
				t.Errorf("unexpected model %q", entry.Model)
			}
			return want, nil
		})
		got, err := r.CreateLLM(config.ProviderEntry{Name: "gemini", Model: "gemini-2.0-flash"})
		if err != nil {
			t.Fatalf("CreateLLM: %v", err)
		}
		if got != want {
			t.Error("CreateLLM returned unexpected provider")
		}
	})

	t.Run("create registered TTS", func(t *testing.T) {
		t.Parallel()
		r := config.NewRegistry()
		want := &ttsmock.Provider{}
		r.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
			return want, nil
		})
		got, err := r.CreateTTS(config.ProviderEntry{Name: "elevenlabs"})
		if err != nil {
			t.Fatalf("CreateTTS: %v", err)
		}
		if got != want {
			t.Error("CreateTTS returned unexpected provider")
		}
	})

	t.Run("unregistered name", func(t *testing.T) {
		t.Parallel()
		r := config.NewRegistry()
		_, err := r.CreateLLM(config.ProviderEntry{Name: "nope"})
		if !errors.Is(err, config.ErrProviderNotRegistered) {
			t.Errorf("expected ErrProviderNotRegistered, got %v", err)
		}
	})

	t.Run("overwrite registration", func(t *testing.T) {
		t.Parallel()
		r := config.NewRegistry()
		first := &llmmock.Provider{}
		second := &llmmock.Provider{}
		r.RegisterLLM("gemini", func(config.ProviderEntry) (llm.Provider, error) { return first, nil })
		r.RegisterLLM("gemini", func(config.ProviderEntry) (llm.Provider, error) { return second, nil })
		got, err := r.CreateLLM(config.ProviderEntry{Name: "gemini"})
		if err != nil {
			t.Fatalf("CreateLLM: %v", err)
		}
		if got != second {
			t.Error("expected the later registration to win")
		}
	})
}
