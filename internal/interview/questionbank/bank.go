// Package questionbank selects interview questions for a target university
// and program. A Bank filters the catalog down to relevant questions, orders
// them school-specific first then by rising difficulty, and tracks which
// questions have been asked so none repeats within a session.
package questionbank

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"

	"github.com/antzucaro/matchr"
)

const (
	// maxDifficulty caps the difficulty progression.
	maxDifficulty = 5

	// programSimilarityThreshold is the minimum Jaro-Winkler similarity for
	// two program names to be considered the same (tolerates pluralisation
	// and minor spelling differences like "Maths" vs "Math").
	programSimilarityThreshold = 0.85
)

// stemPrograms lists programs matched by catalog entries targeting "STEM".
var stemPrograms = []string{"Computer Science", "Engineering", "Mathematics", "Physics", "Chemistry"}

// Bank holds the questions relevant to one interview session.
// It is safe for concurrent use.
type Bank struct {
	university string
	program    string

	mu        sync.Mutex
	questions []Question
	used      map[string]bool
	rng       *rand.Rand
}

// Option is a functional option for configuring a Bank.
type Option func(*Bank)

// WithRand sets the random source used for opening-question selection.
// Mainly for deterministic tests.
func WithRand(rng *rand.Rand) Option {
	return func(b *Bank) {
		if rng != nil {
			b.rng = rng
		}
	}
}

// New builds a Bank from catalog, keeping only questions relevant to the
// given university and program.
//
// Relevant means an exact university match, or a "General" question whose
// program is "All", matches the target program, or belongs to a matching
// program family. School-specific questions sort first, then rising difficulty.
func New(catalog []Question, university, program string, opts ...Option) *Bank {
	b := &Bank{
		university: university,
		program:    program,
		used:       make(map[string]bool),
		rng:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, o := range opts {
		o(b)
	}

	for _, q := range catalog {
		relevant := q.University == university ||
			(q.University == "General" &&
				(q.Program == "All" || q.Program == program || programMatch(q.Program, program)))
		if relevant {
			b.questions = append(b.questions, q)
		}
	}

	sort.SliceStable(b.questions, func(i, j int) bool {
		qi, qj := b.questions[i], b.questions[j]
		if (qi.University != "General") != (qj.University != "General") {
			return qi.University != "General"
		}
		return qi.Difficulty < qj.Difficulty
	})

	return b
}

// programMatch reports whether a catalog program entry covers the target
// program. "STEM" covers the known STEM programs; otherwise one name must
// contain the other, or the two must be near-identical by Jaro-Winkler
// similarity.
func programMatch(questionProgram, targetProgram string) bool {
	if questionProgram == "STEM" {
		for _, p := range stemPrograms {
			if strings.EqualFold(p, targetProgram) {
				return true
			}
		}
		return false
	}

	qp := strings.ToLower(questionProgram)
	tp := strings.ToLower(targetProgram)
	if strings.Contains(qp, tp) || strings.Contains(tp, qp) {
		return true
	}
	return matchr.JaroWinkler(qp, tp, false) >= programSimilarityThreshold
}

// Size returns the number of relevant questions, used or not.
func (b *Bank) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.questions)
}

// OpeningQuestion picks a random difficulty-1 personal or motivation question
// and marks it used. Falls back to the first unused question when the catalog
// has no suitable opener. ok is false only when every question is used.
func (b *Bank) OpeningQuestion() (q Question, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var openers []Question
	for _, question := range b.questions {
		if b.used[question.Text] {
			continue
		}
		if question.Difficulty == 1 && (question.Category == "personal" || question.Category == "motivation") {
			openers = append(openers, question)
		}
	}

	if len(openers) > 0 {
		q = openers[b.rng.IntN(len(openers))]
		b.used[q.Text] = true
		return q, true
	}

	for _, question := range b.questions {
		if !b.used[question.Text] {
			b.used[question.Text] = true
			return question, true
		}
	}
	return Question{}, false
}

// NextQuestion returns an unused question with difficulty at most
// currentDifficulty+1, preferring one exactly a step harder, and marks it
// used. ok is false when no suitable question remains.
func (b *Bank) NextQuestion(currentDifficulty int) (q Question, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var available []Question
	for _, question := range b.questions {
		if !b.used[question.Text] && question.Difficulty <= currentDifficulty+1 {
			available = append(available, question)
		}
	}
	if len(available) == 0 {
		return Question{}, false
	}

	target := min(currentDifficulty+1, maxDifficulty)
	chosen := available[0]
	for _, question := range available {
		if question.Difficulty == target {
			chosen = question
			break
		}
	}

	b.used[chosen.Text] = true
	return chosen, true
}

// Context renders a prompt fragment describing the interview target and up to
// five unused questions the LLM may draw follow-ups from.
func (b *Bank) Context() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var remaining []string
	for _, question := range b.questions {
		if b.used[question.Text] {
			continue
		}
		remaining = append(remaining, fmt.Sprintf("- %s (%s)", question.Text, question.Category))
		if len(remaining) == 5 {
			break
		}
	}

	return fmt.Sprintf(`Target School: %s
Target Program: %s

Available interview questions to draw from:
%s

When asking follow-ups, stay relevant to the school and program context.`,
		b.university, b.program, strings.Join(remaining, "\n"))
}

// ByCategory returns the unused questions in the given category.
func (b *Bank) ByCategory(category string) []Question {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Question
	for _, question := range b.questions {
		if question.Category == category && !b.used[question.Text] {
			out = append(out, question)
		}
	}
	return out
}
