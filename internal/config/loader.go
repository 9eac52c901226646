package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"gemini", "openai", "anthropic", "ollama", "deepseek", "mistral", "groq"},
	"tts": {"elevenlabs"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv fills credential and connection fields left empty in the file from
// well-known environment variables. File values always win so that a config
// file can pin different credentials per deployment.
func ApplyEnv(cfg *Config) {
	if cfg.Providers.LLM.APIKey == "" {
		cfg.Providers.LLM.APIKey = llmKeyFromEnv(cfg.Providers.LLM.Name)
	}
	if cfg.Providers.LLM.Fallback != nil && cfg.Providers.LLM.Fallback.APIKey == "" {
		cfg.Providers.LLM.Fallback.APIKey = llmKeyFromEnv(cfg.Providers.LLM.Fallback.Name)
	}
	if cfg.Providers.TTS.APIKey == "" {
		cfg.Providers.TTS.APIKey = os.Getenv("ELEVENLABS_API_KEY")
	}
	if cfg.Providers.TTS.Fallback != nil && cfg.Providers.TTS.Fallback.APIKey == "" {
		cfg.Providers.TTS.Fallback.APIKey = os.Getenv("ELEVENLABS_API_KEY")
	}
	if cfg.Storage.PostgresDSN == "" {
		cfg.Storage.PostgresDSN = os.Getenv("DATABASE_URL")
	}
}

// llmKeyFromEnv maps an LLM provider name to its conventional API key
// environment variable.
func llmKeyFromEnv(name string) string {
	switch name {
	case "gemini":
		return os.Getenv("GEMINI_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "deepseek":
		return os.Getenv("DEEPSEEK_API_KEY")
	case "mistral":
		return os.Getenv("MISTRAL_API_KEY")
	case "groq":
		return os.Getenv("GROQ_API_KEY")
	}
	return ""
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when tls is set"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when tls is set"))
		}
	}

	// Provider name validation: warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	if cfg.Providers.LLM.Fallback != nil {
		validateProviderName("llm", cfg.Providers.LLM.Fallback.Name)
		if cfg.Providers.LLM.Fallback.Name == "" {
			errs = append(errs, errors.New("providers.llm.fallback.name is required when fallback is set"))
		}
	}
	if cfg.Providers.TTS.Fallback != nil {
		validateProviderName("tts", cfg.Providers.TTS.Fallback.Name)
		if cfg.Providers.TTS.Fallback.Name == "" {
			errs = append(errs, errors.New("providers.tts.fallback.name is required when fallback is set"))
		}
	}

	// Provider availability
	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm.name is required; the interviewer cannot generate questions without an LLM"))
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("no TTS provider configured; interviewer turns will be delivered as text only")
	} else if cfg.Providers.TTS.Voice.VoiceID == "" {
		errs = append(errs, errors.New("providers.tts.voice.voice_id is required when a TTS provider is configured"))
	}

	// Voice parameter ranges
	if v := cfg.Providers.TTS.Voice; v.Stability < 0 || v.Stability > 1 {
		errs = append(errs, fmt.Errorf("providers.tts.voice.stability %.2f is out of range [0, 1]", v.Stability))
	}
	if v := cfg.Providers.TTS.Voice; v.SimilarityBoost < 0 || v.SimilarityBoost > 1 {
		errs = append(errs, fmt.Errorf("providers.tts.voice.similarity_boost %.2f is out of range [0, 1]", v.SimilarityBoost))
	}

	// Storage availability
	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; completed interview sessions will not be persisted")
	}

	// Durations must not be negative.
	for _, d := range []struct {
		name string
		val  Duration
	}{
		{"interview.speaking_unlock_timeout", cfg.Interview.SpeakingUnlockTimeout},
		{"interview.end_of_session_delay", cfg.Interview.EndOfSessionDelay},
		{"trends.refresh_interval", cfg.Trends.RefreshInterval},
		{"audio_cache.ttl", cfg.AudioCache.TTL},
		{"audio_cache.sweep_interval", cfg.AudioCache.SweepInterval},
	} {
		if d.val < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", d.name))
		}
	}

	// Question catalog path must exist when set.
	if path := cfg.Interview.QuestionCatalog; path != "" {
		if _, err := os.Stat(path); err != nil {
			errs = append(errs, fmt.Errorf("interview.question_catalog %q: %w", path, err))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
