package interrupt

import (
	"sync"
	"time"
)

// SpeechTracker accumulates timing and word-count signals for the student
// currently speaking. The websocket handler feeds it interim transcript
// fragments as they arrive; the engine reads it when deciding whether to
// interject.
type SpeechTracker struct {
	mu sync.Mutex

	now func() time.Time

	speechStart    time.Time
	lastSpeechTime time.Time
	totalWords     int
	pauseStart     time.Time
}

// NewSpeechTracker returns a tracker using the wall clock.
func NewSpeechTracker() *SpeechTracker {
	return &SpeechTracker{now: time.Now}
}

// newSpeechTrackerWithClock is used by tests to control time.
func newSpeechTrackerWithClock(now func() time.Time) *SpeechTracker {
	return &SpeechTracker{now: now}
}

// OnSpeechStart marks the beginning of a stretch of speech. Calling it while
// speech is already in progress clears any pending pause.
func (t *SpeechTracker) OnSpeechStart() {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.now()
	if t.speechStart.IsZero() {
		t.speechStart = n
	}
	t.lastSpeechTime = n
	t.pauseStart = time.Time{}
}

// OnSpeechEnd marks the start of a pause after speech.
func (t *SpeechTracker) OnSpeechEnd() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pauseStart = t.now()
}

// AddWords records n more spoken words and refreshes the last-speech mark.
func (t *SpeechTracker) AddWords(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalWords += n
	t.lastSpeechTime = t.now()
}

// TotalWords returns the words counted since the last Reset.
func (t *SpeechTracker) TotalWords() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalWords
}

// SpeechDuration returns how long the current stretch of speech has lasted.
func (t *SpeechTracker) SpeechDuration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.speechStart.IsZero() {
		return 0
	}
	return t.now().Sub(t.speechStart)
}

// PauseDuration returns how long the student has been silent, or zero when
// they are still speaking.
func (t *SpeechTracker) PauseDuration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pauseStart.IsZero() {
		return 0
	}
	return t.now().Sub(t.pauseStart)
}

// Reset clears all accumulated state, typically after the interviewer has
// taken their turn.
func (t *SpeechTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.speechStart = time.Time{}
	t.lastSpeechTime = time.Time{}
	t.totalWords = 0
	t.pauseStart = time.Time{}
}
