package interview

import (
	"sync"
	"time"

	"github.com/admitly/interviewd/internal/interview/interrupt"
	"github.com/admitly/interviewd/internal/interview/questionbank"
	"github.com/admitly/interviewd/internal/interview/responder"
	"github.com/admitly/interviewd/pkg/types"
)

// Policy is the per-session budget derived from the requested duration.
type Policy struct {
	// MaxQuestions bounds how many question-bearing turns the interviewer
	// gets before the closing sequence.
	MaxQuestions int

	// HasWarmup selects an icebreaker opening instead of jumping straight to
	// the first bank question.
	HasWarmup bool

	// FinalReserve is the closing window reserved for the student's own
	// questions.
	FinalReserve time.Duration
}

// PolicyForDuration maps an interview length in minutes to its budget.
// Unlisted durations get the conservative default of three questions, with a
// warmup only when there is time for one.
func PolicyForDuration(minutes int) Policy {
	switch minutes {
	case 2:
		return Policy{MaxQuestions: 2, HasWarmup: false, FinalReserve: 30 * time.Second}
	case 10:
		return Policy{MaxQuestions: 5, HasWarmup: true, FinalReserve: 90 * time.Second}
	case 30:
		return Policy{MaxQuestions: 10, HasWarmup: true, FinalReserve: 2 * time.Minute}
	default:
		return Policy{MaxQuestions: 3, HasWarmup: minutes >= 10, FinalReserve: time.Minute}
	}
}

// Session is the state machine for one live interview. It is owned by a
// single connection; the mutex exists because barge-in and audio-ended
// signals flip the speaking lock from outside the turn in flight.
type Session struct {
	ID         string
	UserID     string
	University string
	Program    string
	Duration   time.Duration
	Policy     Policy
	StartedAt  time.Time

	bank    *questionbank.Bank
	tracker *interrupt.SpeechTracker

	now func() time.Time

	mu             sync.Mutex
	history        []types.Turn
	questionsAsked int
	aiSpeaking     bool
	closingAsked   bool
	ended          bool
	unlockTimer    *time.Timer
}

func newSession(id, userID, university, program string, minutes int, bank *questionbank.Bank, now func() time.Time) *Session {
	return &Session{
		ID:         id,
		UserID:     userID,
		University: university,
		Program:    program,
		Duration:   time.Duration(minutes) * time.Minute,
		Policy:     PolicyForDuration(minutes),
		StartedAt:  now(),
		bank:       bank,
		tracker:    interrupt.NewSpeechTracker(),
		now:        now,
	}
}

// AppendTurn records one utterance at the end of the conversation history.
func (s *Session) AppendTurn(role types.Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, types.Turn{Role: role, Content: content, Timestamp: s.now()})
}

// History returns a copy of the conversation so far.
func (s *Session) History() []types.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Turn, len(s.history))
	copy(out, s.history)
	return out
}

// QuestionsAsked returns the number of question-bearing turns so far.
func (s *Session) QuestionsAsked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questionsAsked
}

// countQuestion increments the asked counter, never past the budget.
// Reports whether the increment happened.
func (s *Session) countQuestion() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.questionsAsked >= s.Policy.MaxQuestions {
		return false
	}
	s.questionsAsked++
	return true
}

// Elapsed returns how long the interview has been running.
func (s *Session) Elapsed() time.Duration {
	return s.now().Sub(s.StartedAt)
}

// AISpeaking reports whether the interviewer currently holds the floor.
func (s *Session) AISpeaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aiSpeaking
}

// lockFloor marks the interviewer as speaking. Any pending fallback unlock
// from a previous turn is discarded.
func (s *Session) lockFloor() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aiSpeaking = true
	if s.unlockTimer != nil {
		s.unlockTimer.Stop()
		s.unlockTimer = nil
	}
}

// releaseFloor clears the speaking lock and cancels the fallback timer.
// Reports whether the lock was held.
func (s *Session) releaseFloor() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	was := s.aiSpeaking
	s.aiSpeaking = false
	if s.unlockTimer != nil {
		s.unlockTimer.Stop()
		s.unlockTimer = nil
	}
	return was
}

// armUnlockFallback schedules a safety-net release of the speaking lock in
// case the client never acknowledges playback completion. onUnlock runs only
// if the timer, not an ack or barge-in, cleared the lock.
func (s *Session) armUnlockFallback(d time.Duration, onUnlock func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unlockTimer != nil {
		s.unlockTimer.Stop()
	}
	s.unlockTimer = time.AfterFunc(d, func() {
		s.mu.Lock()
		fired := s.aiSpeaking
		s.aiSpeaking = false
		s.unlockTimer = nil
		s.mu.Unlock()
		if fired && onUnlock != nil {
			onUnlock()
		}
	})
}

// markEnded transitions the session into its terminal state exactly once.
// Reports whether this call performed the transition.
func (s *Session) markEnded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return false
	}
	s.ended = true
	if s.unlockTimer != nil {
		s.unlockTimer.Stop()
		s.unlockTimer = nil
	}
	return true
}

// Ended reports whether the session has reached its terminal state.
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// markClosingAsked records that the one-time closing-question directive has
// been issued.
func (s *Session) markClosingAsked() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closingAsked = true
}

// pacing snapshots the budget state for the response generator.
func (s *Session) pacing() responder.Pacing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return responder.Pacing{
		Elapsed:        s.now().Sub(s.StartedAt),
		Total:          s.Duration,
		FinalReserve:   s.Policy.FinalReserve,
		QuestionsAsked: s.questionsAsked,
		MaxQuestions:   s.Policy.MaxQuestions,
		ClosingAsked:   s.closingAsked,
	}
}

// budgetExhausted reports whether the question or time budget is spent.
func (s *Session) budgetExhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questionsAsked >= s.Policy.MaxQuestions || s.now().Sub(s.StartedAt) >= s.Duration
}
