// Package responder turns a session's conversation state into one streamed
// interviewer turn. It assembles the prompt (persona, remaining questions,
// educational context, history, pacing directive) and relays the model's
// incremental output as ordered text fragments.
package responder

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/admitly/interviewd/internal/observe"
	"github.com/admitly/interviewd/pkg/provider/llm"
	"github.com/admitly/interviewd/pkg/types"
)

// DefaultPersona mirrors the interviewer character used across deployments.
// It can be overridden per server through the interview.persona config key.
const DefaultPersona = `You are an experienced college admissions interviewer. Conduct a natural, conversational interview.

Guidelines:
- Keep responses SHORT and conversational (1-3 sentences max)
- Ask ONE question at a time
- Show genuine interest and follow up on what the student says
- Be warm but professional
- Ask follow-up questions based on their answers
- Occasionally interrupt politely to dig deeper or redirect
- Start with an icebreaker, then transition to deeper questions about their goals, experiences, and fit

Remember: This is a CONVERSATION, not an interrogation. Be human-like and natural.`

// fallbackFragment is emitted as the complete turn when generation fails, so
// the interviewer never goes silent mid-interview.
const fallbackFragment = "I'm sorry, could you repeat that?"

var greetings = []string{
	"Hi! Thanks for taking the time to chat with me today. How are you doing?",
	"Hello! I'm excited to learn more about you. How's your day going so far?",
	"Hey there! Great to meet you. Before we dive in, how are you feeling today?",
}

// Greeting returns a warm opening line for interviews long enough to afford a
// warmup exchange.
func Greeting() string {
	return greetings[rand.IntN(len(greetings))]
}

// DirectiveKind identifies which pacing directive a turn was generated under.
type DirectiveKind int

const (
	// DirectiveContinue keeps the interview going with the remaining budget.
	DirectiveContinue DirectiveKind = iota

	// DirectiveClosingQuestion tells the model to offer the student the
	// "what questions do you have for me" turn.
	DirectiveClosingQuestion

	// DirectiveWrapUp tells the model to deliver a brief closing statement.
	DirectiveWrapUp
)

// Pacing carries the budget state the pacing directive is derived from.
type Pacing struct {
	// Elapsed is how long the interview has been running.
	Elapsed time.Duration

	// Total is the full interview duration.
	Total time.Duration

	// FinalReserve is the time window at the end of the interview reserved
	// for the student's own questions.
	FinalReserve time.Duration

	QuestionsAsked int
	MaxQuestions   int

	// ClosingAsked is true once the closing-question directive has been used,
	// so it is only issued once per interview.
	ClosingAsked bool
}

// Directive picks the pacing instruction for the next turn, by priority:
// the one-time closing question inside the final reserve window, then the
// wrap-up once the budget is spent, otherwise the remaining-budget reminder.
func (p Pacing) Directive() (DirectiveKind, string) {
	remaining := p.Total - p.Elapsed

	if remaining <= p.FinalReserve && p.QuestionsAsked < p.MaxQuestions && !p.ClosingAsked {
		return DirectiveClosingQuestion, "The interview is almost over. Ask the student what questions THEY have for you about the university or program. This is their turn to ask."
	}

	if p.QuestionsAsked >= p.MaxQuestions || p.Elapsed >= p.Total {
		return DirectiveWrapUp, "The interview is over. Deliver a brief, warm closing statement thanking the student. Do not ask any more questions."
	}

	left := p.MaxQuestions - p.QuestionsAsked
	return DirectiveContinue, fmt.Sprintf("You have %d main question(s) left and about %d minute(s) remaining. Pace yourself accordingly.", left, int(remaining.Round(time.Minute)/time.Minute))
}

// Request is one turn's worth of context for the generator.
type Request struct {
	University string
	Program    string

	// UserText is the student's latest utterance.
	UserText string

	// History is the conversation so far, excluding UserText.
	History []types.Turn

	// QuestionContext is the question bank's remaining-question digest.
	QuestionContext string

	// TrendsDigest is the educational-context digest for the target.
	TrendsDigest string

	Pacing Pacing
}

// Generator produces streamed interviewer turns from an LLM provider.
type Generator struct {
	llm     llm.Provider
	persona string
	log     *slog.Logger
	metrics *observe.Metrics
}

// Option configures a Generator.
type Option func(*Generator)

// WithPersona replaces the default interviewer persona.
func WithPersona(persona string) Option {
	return func(g *Generator) {
		if persona != "" {
			g.persona = persona
		}
	}
}

// WithLogger sets the logger used for generation failures.
func WithLogger(log *slog.Logger) Option {
	return func(g *Generator) { g.log = log }
}

// WithMetrics sets the metrics instance. Defaults to observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

// New returns a Generator backed by provider.
func New(provider llm.Provider, opts ...Option) *Generator {
	g := &Generator{
		llm:     provider,
		persona: DefaultPersona,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.metrics == nil {
		g.metrics = observe.DefaultMetrics()
	}
	return g
}

// Generate streams one interviewer turn as ordered text fragments. The
// channel always yields at least one fragment and is closed when the turn is
// complete; on model failure a single apology fragment is emitted instead of
// an error. The returned DirectiveKind reports which pacing directive the
// turn was generated under.
func (g *Generator) Generate(ctx context.Context, req Request) (<-chan string, DirectiveKind) {
	kind, directive := req.Pacing.Directive()
	prompt := g.buildPrompt(req, directive)

	out := make(chan string)
	go func() {
		defer close(out)

		start := time.Now()
		chunks, err := g.llm.StreamCompletion(ctx, llm.CompletionRequest{
			Messages: []llm.Message{{Role: "user", Content: prompt}},
		})
		if err != nil {
			g.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds(),
				metric.WithAttributes(observe.Attr("status", "error")))
			g.log.Warn("response generation failed", "error", err)
			g.emit(ctx, out, fallbackFragment)
			return
		}

		emitted := false
		for chunk := range chunks {
			if chunk.Text == "" {
				continue
			}
			if !g.emit(ctx, out, chunk.Text) {
				return
			}
			emitted = true
		}
		// Latency covers first request byte through last streamed chunk.
		g.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(observe.Attr("status", "ok")))
		if !emitted {
			g.emit(ctx, out, fallbackFragment)
		}
	}()
	return out, kind
}

func (g *Generator) emit(ctx context.Context, out chan<- string, text string) bool {
	select {
	case out <- text:
		return true
	case <-ctx.Done():
		return false
	}
}

func (g *Generator) buildPrompt(req Request, directive string) string {
	var sb strings.Builder
	sb.WriteString(g.persona)
	sb.WriteString("\n\n")

	if req.QuestionContext != "" {
		sb.WriteString(req.QuestionContext)
		sb.WriteString("\n\n")
	}
	if req.TrendsDigest != "" {
		sb.WriteString(req.TrendsDigest)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Previous conversation:\n")
	for _, turn := range req.History {
		fmt.Fprintf(&sb, "%s: %s\n", speakerLabel(turn.Role), turn.Content)
	}

	fmt.Fprintf(&sb, "\nStudent: %s\n", req.UserText)
	fmt.Fprintf(&sb, "\n%s\n", directive)
	fmt.Fprintf(&sb, "\nInterviewer (respond naturally, ask follow-ups related to %s at %s):", req.Program, req.University)
	return sb.String()
}

func speakerLabel(role types.Role) string {
	if role == types.RoleAssistant {
		return "Interviewer"
	}
	return "Student"
}
