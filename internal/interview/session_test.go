package interview

import (
	"sync"
	"testing"
	"time"

	"github.com/admitly/interviewd/internal/interview/questionbank"
	"github.com/admitly/interviewd/pkg/types"
)

func TestPolicyForDuration(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		minutes int
		want    Policy
	}{
		"two minute sprint": {
			minutes: 2,
			want:    Policy{MaxQuestions: 2, HasWarmup: false, FinalReserve: 30 * time.Second},
		},
		"standard ten minutes": {
			minutes: 10,
			want:    Policy{MaxQuestions: 5, HasWarmup: true, FinalReserve: 90 * time.Second},
		},
		"full half hour": {
			minutes: 30,
			want:    Policy{MaxQuestions: 10, HasWarmup: true, FinalReserve: 2 * time.Minute},
		},
		"short custom duration skips warmup": {
			minutes: 5,
			want:    Policy{MaxQuestions: 3, HasWarmup: false, FinalReserve: time.Minute},
		},
		"long custom duration keeps warmup": {
			minutes: 15,
			want:    Policy{MaxQuestions: 3, HasWarmup: true, FinalReserve: time.Minute},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if got := PolicyForDuration(tc.minutes); got != tc.want {
				t.Errorf("PolicyForDuration(%d) = %+v, want %+v", tc.minutes, got, tc.want)
			}
		})
	}
}

func testSession(minutes int) *Session {
	bank := questionbank.New(nil, "General", "All")
	return newSession("sess-test", "guest", "General", "All", minutes, bank, time.Now)
}

func TestSession_FloorLock(t *testing.T) {
	t.Parallel()

	sess := testSession(10)
	if sess.AISpeaking() {
		t.Fatal("new session should not hold the speaking lock")
	}

	sess.lockFloor()
	if !sess.AISpeaking() {
		t.Fatal("lockFloor did not set the speaking lock")
	}

	if !sess.releaseFloor() {
		t.Error("releaseFloor should report true when the lock was held")
	}
	if sess.AISpeaking() {
		t.Error("speaking lock still set after release")
	}
	if sess.releaseFloor() {
		t.Error("second releaseFloor should report false")
	}
}

func TestSession_UnlockFallbackTimer(t *testing.T) {
	t.Parallel()

	t.Run("fires when no ack arrives", func(t *testing.T) {
		t.Parallel()
		sess := testSession(10)
		sess.lockFloor()

		fired := make(chan struct{})
		sess.armUnlockFallback(10*time.Millisecond, func() { close(fired) })

		select {
		case <-fired:
		case <-time.After(2 * time.Second):
			t.Fatal("fallback timer never fired")
		}
		if sess.AISpeaking() {
			t.Error("speaking lock still set after fallback unlock")
		}
	})

	t.Run("ack preempts the timer", func(t *testing.T) {
		t.Parallel()
		sess := testSession(10)
		sess.lockFloor()

		var mu sync.Mutex
		var fired bool
		sess.armUnlockFallback(30*time.Millisecond, func() {
			mu.Lock()
			fired = true
			mu.Unlock()
		})

		sess.releaseFloor()
		time.Sleep(80 * time.Millisecond)

		mu.Lock()
		defer mu.Unlock()
		if fired {
			t.Error("fallback callback ran even though the ack released the lock first")
		}
	})
}

func TestSession_CountQuestionStopsAtBudget(t *testing.T) {
	t.Parallel()

	sess := testSession(2) // MaxQuestions: 2
	if !sess.countQuestion() || !sess.countQuestion() {
		t.Fatal("first two countQuestion calls should succeed")
	}
	if sess.countQuestion() {
		t.Error("countQuestion exceeded the budget")
	}
	if got := sess.QuestionsAsked(); got != 2 {
		t.Errorf("QuestionsAsked() = %d, want 2", got)
	}
	if !sess.budgetExhausted() {
		t.Error("budgetExhausted() = false with the question budget spent")
	}
}

func TestSession_MarkEndedOnce(t *testing.T) {
	t.Parallel()

	sess := testSession(10)
	if !sess.markEnded() {
		t.Fatal("first markEnded should perform the transition")
	}
	if sess.markEnded() {
		t.Error("second markEnded should be a no-op")
	}
	if !sess.Ended() {
		t.Error("Ended() = false after markEnded")
	}
}

func TestSession_HistoryReturnsCopy(t *testing.T) {
	t.Parallel()

	sess := testSession(10)
	sess.AppendTurn(types.RoleAssistant, "How are you?")
	sess.AppendTurn(types.RoleUser, "Doing well, thanks.")

	history := sess.History()
	if len(history) != 2 {
		t.Fatalf("History() has %d turns, want 2", len(history))
	}
	history[0].Content = "mutated"

	if got := sess.History()[0].Content; got != "How are you?" {
		t.Errorf("mutating the returned slice leaked into the session: %q", got)
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	sess := testSession(10)
	reg.Add(sess)

	if got, ok := reg.Get(sess.ID); !ok || got != sess {
		t.Fatalf("Get(%q) = %v, %v; want the added session", sess.ID, got, ok)
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}

	reg.Remove(sess.ID)
	if _, ok := reg.Get(sess.ID); ok {
		t.Error("session still present after Remove")
	}
	reg.Remove(sess.ID) // absent ID is a no-op
	if reg.Len() != 0 {
		t.Errorf("Len() = %d after removal, want 0", reg.Len())
	}
}
