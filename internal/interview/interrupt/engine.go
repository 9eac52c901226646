// Package interrupt decides when the AI interviewer should cut in while the
// student is still speaking, and generates the interjection text.
//
// The heuristics are deliberately conservative: short answers are never
// interrupted, and the vague-answer and natural-pause triggers fire only
// probabilistically so back-to-back interruptions stay rare.
package interrupt

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"

	"github.com/admitly/interviewd/pkg/provider/llm"
	"github.com/admitly/interviewd/pkg/types"
)

const (
	// minInterruptWords guards against cutting off short answers.
	minInterruptWords = 20

	// ramblingWords marks an answer as seriously rambling.
	ramblingWords = 200

	// vagueAnswerWords is the minimum length before a vague answer is worth
	// interrupting over.
	vagueAnswerWords = 30

	// vagueIndicatorLimit is how many filler words an answer tolerates before
	// it counts as vague.
	vagueIndicatorLimit = 3

	// longPause is silence long enough to interject a follow-up into.
	longPause = 5 * time.Second

	clarificationChance = 0.6
	followUpChance      = 0.3

	// ramblingTailChars bounds how much of a rambling answer gets quoted in
	// the interjection prompt.
	ramblingTailChars = 200
)

var vaguePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(um+|uh+|like|you know|kind of|sort of|i guess|maybe|probably)\b`),
	regexp.MustCompile(`(?i)\b(stuff|things|something|whatever)\b`),
}

// Reason classifies why the engine decided to interrupt.
type Reason string

const (
	ReasonNone          Reason = "none"
	ReasonRambling      Reason = "rambling"
	ReasonClarification Reason = "clarification_needed"
	ReasonPause         Reason = "pause"
)

// Decision is the outcome of analyzing a stretch of student speech.
type Decision struct {
	Interrupt bool
	Reason    Reason

	// Text is the interjection to speak. Only set when Interrupt is true.
	Text string
}

// Engine analyzes interim transcripts and produces interruption decisions.
type Engine struct {
	llm llm.Provider
	rng func() float64
	log *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand overrides the randomness source for the probabilistic triggers.
func WithRand(rng func() float64) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithLogger sets the logger used for interjection generation failures.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// NewEngine returns an engine that generates interjection text through
// provider. A nil provider is allowed; canned interjections are used instead.
func NewEngine(provider llm.Provider, opts ...Option) *Engine {
	e := &Engine{
		llm: provider,
		rng: rand.Float64,
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze decides whether to interrupt the student given their speech so far.
// userText is the interim transcript, history the conversation so far, and
// speechDuration how long the current stretch of speech has lasted.
func (e *Engine) Analyze(ctx context.Context, userText string, history []types.Turn, speechDuration time.Duration) Decision {
	wordCount := types.WordCount(userText)

	if wordCount < minInterruptWords {
		return Decision{Reason: ReasonNone}
	}

	if wordCount > ramblingWords {
		return Decision{
			Interrupt: true,
			Reason:    ReasonRambling,
			Text:      e.interjection(ctx, styleRambling, userText, history),
		}
	}

	if isVague(userText) && wordCount > vagueAnswerWords && e.rng() < clarificationChance {
		return Decision{
			Interrupt: true,
			Reason:    ReasonClarification,
			Text:      e.interjection(ctx, styleClarification, userText, history),
		}
	}

	if speechDuration > longPause && wordCount > minInterruptWords && e.rng() < followUpChance {
		return Decision{
			Interrupt: true,
			Reason:    ReasonPause,
			Text:      e.interjection(ctx, styleFollowUp, userText, history),
		}
	}

	return Decision{Reason: ReasonNone}
}

// VagueScore counts filler-word and vague-noun hits in text. The orchestrator
// also uses it when scoring answer quality at persistence time.
func VagueScore(text string) int {
	count := 0
	for _, pattern := range vaguePatterns {
		count += len(pattern.FindAllString(text, -1))
	}
	return count
}

// isVague reports whether text leans on filler words more than
// vagueIndicatorLimit times.
func isVague(text string) bool {
	return VagueScore(text) > vagueIndicatorLimit
}

type interjectionStyle int

const (
	styleRambling interjectionStyle = iota
	styleClarification
	styleFollowUp
)

// defaultInterjection is used when the model answers with empty text.
const defaultInterjection = "Could you tell me more about that?"

func (s interjectionStyle) instruction(userText string) string {
	switch s {
	case styleRambling:
		tail := userText
		// Slice by runes so a multibyte character is never split in half.
		if r := []rune(tail); len(r) > ramblingTailChars {
			tail = string(r[len(r)-ramblingTailChars:])
		}
		return fmt.Sprintf("The student is rambling. Politely interrupt and refocus them with a specific question. Their recent response: %q", tail)
	case styleClarification:
		return fmt.Sprintf("The student gave a vague answer. Interrupt gently to ask for a specific example or clarification. Their response: %q", userText)
	default:
		return fmt.Sprintf("The student paused. Jump in with an engaging follow-up question to dig deeper. Their response: %q", userText)
	}
}

func (s interjectionStyle) fallback() string {
	switch s {
	case styleRambling:
		return "Sorry to interrupt - can you give me a specific example?"
	case styleClarification:
		return "Hold on - can you clarify what you mean by that?"
	default:
		return "Interesting - how did that make you feel?"
	}
}

// interjection asks the model for a one-sentence interruption, falling back
// to a canned line when the model is unavailable or fails.
func (e *Engine) interjection(ctx context.Context, style interjectionStyle, userText string, history []types.Turn) string {
	if e.llm == nil {
		return style.fallback()
	}

	var sb strings.Builder
	sb.WriteString("You are an interviewer. ")
	sb.WriteString(style.instruction(userText))
	sb.WriteString("\n\nRecent conversation:\n")
	for _, turn := range types.LastN(history, 3) {
		fmt.Fprintf(&sb, "%s: %s\n", turn.Role, turn.Content)
	}
	sb.WriteString("\nInterrupt naturally with a brief (1 sentence) question:")

	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: sb.String()}},
	})
	if err != nil {
		e.log.Warn("interruption generation failed, using canned line", "error", err)
		return style.fallback()
	}
	if resp == nil {
		return defaultInterjection
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return defaultInterjection
	}
	return text
}
