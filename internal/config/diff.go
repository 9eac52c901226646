package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked: everything else
// (listen address, providers, storage) requires a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// PersonaChanged is true when the interviewer persona text changed.
	// New sessions pick up the new persona; active sessions keep the old one.
	PersonaChanged bool

	// VoiceChanged is true when the interviewer voice profile changed.
	VoiceChanged bool

	// CatalogChanged is true when the question catalog path changed.
	CatalogChanged bool
}

// Any reports whether the diff contains at least one change.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.PersonaChanged || d.VoiceChanged || d.CatalogChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Interview.Persona != new.Interview.Persona {
		d.PersonaChanged = true
	}
	if old.Providers.TTS.Voice != new.Providers.TTS.Voice {
		d.VoiceChanged = true
	}
	if old.Interview.QuestionCatalog != new.Interview.QuestionCatalog {
		d.CatalogChanged = true
	}

	return d
}
