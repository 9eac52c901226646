package interview

import (
	"github.com/admitly/interviewd/internal/interview/interrupt"
	"github.com/admitly/interviewd/internal/store"
	"github.com/admitly/interviewd/pkg/types"
)

// scoreAnswer rates an answer on a 1-10 scale for the persisted transcript.
// The heuristic rewards substance (length) and penalizes filler language; it
// is deliberately coarse, a sorting key for review dashboards rather than an
// assessment.
func scoreAnswer(answer string) float64 {
	words := types.WordCount(answer)
	if words == 0 {
		return 1
	}

	score := 5.0
	switch {
	case words >= 80:
		score += 3
	case words >= 40:
		score += 2
	case words >= 15:
		score += 1
	case words < 5:
		score -= 2
	}

	penalty := float64(interrupt.VagueScore(answer)) * 0.5
	if penalty > 3 {
		penalty = 3
	}
	score -= penalty

	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}

// qaPairs extracts question/answer pairs from the conversation history:
// each question-bearing interviewer turn is paired with the next user turn.
func qaPairs(history []types.Turn) []store.QAPair {
	var pairs []store.QAPair
	for i, turn := range history {
		if turn.Role != types.RoleAssistant || !containsQuestion(turn.Content) {
			continue
		}
		for _, next := range history[i+1:] {
			if next.Role == types.RoleUser {
				pairs = append(pairs, store.QAPair{
					Question:     turn.Content,
					Answer:       next.Content,
					QualityScore: scoreAnswer(next.Content),
				})
				break
			}
		}
	}
	return pairs
}

func containsQuestion(text string) bool {
	for _, r := range text {
		if r == '?' {
			return true
		}
	}
	return false
}
