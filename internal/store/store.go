// Package store defines the persistence layer for completed interview
// sessions. The live implementation is PostgreSQL-backed (see [Postgres]);
// tests use the mock subpackage.
package store

import (
	"context"
	"time"
)

// Session is the record of one interview session.
type Session struct {
	// ID is the session identifier (a UUID).
	ID string

	// UserID identifies the student.
	UserID string

	// University is the target institution for the mock interview.
	University string

	// Program is the target program of study.
	Program string

	// DurationMinutes is the requested interview length.
	DurationMinutes int

	// StartedAt is when the session was initialised.
	StartedAt time.Time

	// CompletedAt is when the session ended.
	CompletedAt time.Time
}

// QAPair is one interviewer question with the student's answer.
type QAPair struct {
	// Question is the interviewer's question text.
	Question string

	// Answer is the student's (possibly multi-utterance) answer text.
	Answer string

	// QualityScore grades the answer in [0, 10].
	QualityScore float64
}

// SessionSummary is one row of a user's interview history.
type SessionSummary struct {
	SessionID      string
	University     string
	Program        string
	StartedAt      time.Time
	CompletedAt    time.Time
	TotalQuestions int
	AvgScore       float64
}

// Store persists completed interview sessions.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// SaveCompleteSession writes the session record and all of its Q&A pairs
	// atomically. It is called once, when the session ends.
	SaveCompleteSession(ctx context.Context, session Session, pairs []QAPair) error

	// UserSessions returns the interview history for a user, newest first.
	UserSessions(ctx context.Context, userID string) ([]SessionSummary, error)

	// Ping verifies the backing database is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close()
}
