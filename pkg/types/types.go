// Package types defines the shared types used across interviewd packages.
//
// These types form the lingua franca between the interview orchestrator, the
// response generator, and the interruption engine. They are intentionally
// minimal: each package defines its own domain types, but cross-cutting data
// structures live here to avoid circular imports.
package types

import "time"

// Role identifies who produced a conversation turn.
type Role string

const (
	// RoleUser is the student being interviewed.
	RoleUser Role = "user"

	// RoleAssistant is the AI interviewer.
	RoleAssistant Role = "assistant"
)

// Turn is one utterance in the interview conversation history.
type Turn struct {
	// Role identifies the speaker.
	Role Role

	// Content is the utterance text.
	Content string

	// Timestamp marks when the turn was recorded.
	Timestamp time.Time
}

// LastN returns the trailing n turns of history (or all of it when shorter).
func LastN(history []Turn, n int) []Turn {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// WordCount counts whitespace-separated words in text, the way the
// interruption heuristics and pacing rules measure answer length.
func WordCount(text string) int {
	inWord := false
	count := 0
	for _, r := range text {
		switch r {
		case ' ', '\t', '\n', '\r':
			inWord = false
		default:
			if !inWord {
				count++
				inWord = true
			}
		}
	}
	return count
}
