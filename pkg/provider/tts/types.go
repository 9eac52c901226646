package tts

// VoiceProfile describes the interviewer voice used for synthesis.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// Stability controls how consistent the voice sounds across a turn
	// (0.0 to 1.0, provider default when zero).
	Stability float64

	// SimilarityBoost controls adherence to the reference voice
	// (0.0 to 1.0, provider default when zero).
	SimilarityBoost float64

	// Metadata holds provider-specific voice attributes (gender, age, accent, etc.).
	Metadata map[string]string
}
