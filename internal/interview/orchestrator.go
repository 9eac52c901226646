// Package interview contains the session orchestrator: the per-connection
// state machine that coordinates the question bank, the interruption engine,
// the response generator and the speech synthesizer into one ordered
// conversation timeline.
//
// Turn-taking is governed by a single mutual-exclusion flag, the AI-speaking
// lock. The lock is set before any synthesis begins and cleared by the
// client's audio-ended acknowledgment, an explicit user barge-in, or a
// fallback timer in case the client never acks. While held, user text is
// rejected and interim speech is used for barge-in detection only, so the
// system's own synthesized speech can never be mistaken for student input.
package interview

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/admitly/interviewd/internal/interview/interrupt"
	"github.com/admitly/interviewd/internal/interview/questionbank"
	"github.com/admitly/interviewd/internal/interview/responder"
	"github.com/admitly/interviewd/internal/observe"
	"github.com/admitly/interviewd/internal/protocol"
	"github.com/admitly/interviewd/internal/store"
	"github.com/admitly/interviewd/internal/trends"
	"github.com/admitly/interviewd/internal/voice"
	"github.com/admitly/interviewd/pkg/types"
)

const (
	// minInterruptHistoryWords is the minimum barge-in fragment length worth
	// keeping in the transcript.
	minInterruptHistoryWords = 3

	defaultUnlockTimeout    = 45 * time.Second
	defaultEndDelay         = 3 * time.Second
	defaultWatchdogInterval = 5 * time.Second
)

// Emitter delivers server messages to one client. Implementations must
// serialize writes; the orchestrator may emit from the turn worker, timers,
// and the watchdog concurrently.
type Emitter interface {
	Emit(ctx context.Context, msg protocol.ServerMessage) error
}

// Orchestrator wires the interview components together and hands out
// per-connection Conn handlers. One Orchestrator serves all sessions.
type Orchestrator struct {
	registry  *Registry
	responder *responder.Generator
	engine    *interrupt.Engine
	synth     *voice.Synthesizer
	trends    *trends.Service
	store     store.Store
	catalog   []questionbank.Question
	metrics   *observe.Metrics
	log       *slog.Logger

	unlockTimeout    time.Duration
	endDelay         time.Duration
	watchdogInterval time.Duration
	now              func() time.Time
	newID            func() string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStore sets the persistence collaborator. Without one, transcripts are
// discarded at session end.
func WithStore(st store.Store) Option {
	return func(o *Orchestrator) { o.store = st }
}

// WithMetrics sets the metrics instance. Defaults to observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger sets the orchestrator logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithUnlockTimeout overrides the fallback unlock timer armed whenever
// interviewer audio is emitted.
func WithUnlockTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.unlockTimeout = d }
}

// WithEndDelay overrides the grace delay between the closing line and the
// session_ended message.
func WithEndDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.endDelay = d }
}

// WithWatchdogInterval overrides how often the idle watchdog checks the time
// budget.
func WithWatchdogInterval(d time.Duration) Option {
	return func(o *Orchestrator) { o.watchdogInterval = d }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithIDGenerator overrides session ID generation, for tests.
func WithIDGenerator(gen func() string) Option {
	return func(o *Orchestrator) { o.newID = gen }
}

// New returns an Orchestrator over the given collaborators. catalog is the
// question pool each session's bank is filtered from.
func New(registry *Registry, gen *responder.Generator, engine *interrupt.Engine, synth *voice.Synthesizer, trendsSvc *trends.Service, catalog []questionbank.Question, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:         registry,
		responder:        gen,
		engine:           engine,
		synth:            synth,
		trends:           trendsSvc,
		catalog:          catalog,
		log:              slog.Default(),
		unlockTimeout:    defaultUnlockTimeout,
		endDelay:         defaultEndDelay,
		watchdogInterval: defaultWatchdogInterval,
		now:              time.Now,
		newID:            uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o
}

// Conn handles the messages of one client connection. Turn-producing work
// (init, text turns, interruption analysis) runs on a single worker goroutine
// in arrival order; state flips (barge-in, audio ack) apply immediately on
// the caller's goroutine so they can take effect mid-turn.
type Conn struct {
	o    *Orchestrator
	emit Emitter
	ctx  context.Context

	// session is set once by init on the worker goroutine and read inline by
	// the barge-in and audio-ack handlers on the read-loop goroutine.
	session atomic.Pointer[Session]

	// workMu guards workClosed so timer goroutines enqueueing after the
	// connection closed do not send on a closed channel.
	workMu     sync.Mutex
	workClosed bool

	work         chan func()
	workerDone   chan struct{}
	watchdogStop chan struct{}
	watchdogOnce sync.Once
}

// NewConn returns a handler for one connection. ctx should live as long as
// the connection; it is used for work running off the read loop (timers,
// watchdog).
func (o *Orchestrator) NewConn(ctx context.Context, emit Emitter) *Conn {
	c := &Conn{
		o:            o,
		emit:         emit,
		ctx:          ctx,
		work:         make(chan func(), 16),
		workerDone:   make(chan struct{}),
		watchdogStop: make(chan struct{}),
	}
	go func() {
		defer close(c.workerDone)
		for fn := range c.work {
			fn()
		}
	}()
	return c
}

// Handle dispatches one decoded client message.
func (c *Conn) Handle(ctx context.Context, msg protocol.ClientMessage) {
	switch m := msg.(type) {
	case protocol.Init:
		c.enqueue(func() { c.handleInit(c.ctx, m) })
	case protocol.TextInput:
		c.enqueue(func() { c.handleTextInput(c.ctx, m.Text) })
	case protocol.SpeechInterim:
		c.enqueue(func() { c.handleInterim(c.ctx, m.Text) })
	case protocol.UserInterrupt:
		c.handleUserInterrupt(ctx, m.Text)
	case protocol.AudioEnded:
		c.handleAudioEnded(ctx)
	case protocol.AudioChunk:
		c.handleAudioChunk(ctx)
	case protocol.EndSession:
		c.enqueue(func() { c.handleEndSession(c.ctx) })
	}
}

// Close tears down the connection's session: the worker drains, the watchdog
// stops, and an unfinished session is removed and its transcript persisted
// best-effort. No messages are emitted; the peer is gone.
func (c *Conn) Close() {
	c.workMu.Lock()
	c.workClosed = true
	close(c.work)
	c.workMu.Unlock()
	<-c.workerDone

	sess := c.session.Load()
	if sess == nil {
		return
	}
	c.stopWatchdog()
	if sess.markEnded() {
		c.o.metrics.ActiveSessions.Add(context.Background(), -1)
		c.persist(context.Background(), sess)
		c.o.registry.Remove(sess.ID)
		c.o.log.Info("session closed with connection", "session_id", sess.ID)
	}
}

func (c *Conn) enqueue(fn func()) {
	c.workMu.Lock()
	defer c.workMu.Unlock()
	if c.workClosed {
		return
	}
	select {
	case c.work <- fn:
	case <-c.ctx.Done():
	}
}

func (c *Conn) send(ctx context.Context, msg protocol.ServerMessage) {
	if err := c.emit.Emit(ctx, msg); err != nil {
		c.o.log.Warn("emit failed", "error", err, "message_type", fmt.Sprintf("%T", msg))
	}
}

func (c *Conn) sendError(ctx context.Context, msg string) {
	c.send(ctx, protocol.NewError(msg))
}

// ─── Message handlers ────────────────────────────────────────────────────────

func (c *Conn) handleInit(ctx context.Context, m protocol.Init) {
	if c.session.Load() != nil {
		c.sendError(ctx, "session already initialized")
		return
	}

	userID := m.UserID
	if userID == "" {
		userID = "guest"
	}
	university := m.University
	if university == "" {
		university = "General"
	}
	program := m.Program
	if program == "" {
		program = "All"
	}
	minutes := m.Duration
	if minutes <= 0 {
		minutes = 10
	}

	bank := questionbank.New(c.o.catalog, university, program)
	sess := newSession(c.o.newID(), userID, university, program, minutes, bank, c.o.now)
	c.session.Store(sess)
	c.o.registry.Add(sess)
	c.o.metrics.ActiveSessions.Add(ctx, 1)
	c.o.log.Info("session initialized",
		"session_id", sess.ID,
		"university", university,
		"program", program,
		"duration_min", minutes,
		"max_questions", sess.Policy.MaxQuestions)

	c.send(ctx, protocol.NewSessionReady(sess.ID))

	greeting := c.openingLine(sess)
	sess.AppendTurn(types.RoleAssistant, greeting)
	c.send(ctx, protocol.NewInterviewerMessage(greeting, false))
	c.send(ctx, protocol.NewStartListening())
	c.speak(ctx, sess, greeting)

	c.startWatchdog(sess)
}

// openingLine builds the first interviewer utterance. Long interviews get a
// warmup icebreaker; short ones embed the bank's opening question and charge
// it against the budget immediately.
func (c *Conn) openingLine(sess *Session) string {
	if sess.Policy.HasWarmup {
		return fmt.Sprintf("Hi! Thanks for taking the time to interview for %s at %s. Before we dive into the formal questions, I'd love to get to know you a bit. How are you doing today?",
			sess.Program, sess.University)
	}
	opener := "Tell me a little about yourself."
	if q, ok := sess.bank.OpeningQuestion(); ok {
		opener = q.Text
	}
	sess.countQuestion()
	c.o.metrics.QuestionsAsked.Add(c.ctx, 1)
	return fmt.Sprintf("Hi! Thanks for taking the time to chat about %s at %s. Let's get started. %s",
		sess.Program, sess.University, opener)
}

func (c *Conn) handleTextInput(ctx context.Context, text string) {
	sess := c.session.Load()
	if sess == nil {
		c.sendError(ctx, ErrNotInitialized.Error())
		return
	}
	if sess.Ended() {
		c.sendError(ctx, ErrSessionEnded.Error())
		return
	}
	if sess.AISpeaking() {
		c.sendError(ctx, ErrAISpeaking.Error())
		return
	}

	userText := strings.TrimSpace(text)
	if userText == "" {
		c.sendError(ctx, "empty text_input")
		return
	}

	sess.tracker.AddWords(types.WordCount(userText))
	sess.tracker.OnSpeechEnd()

	// The budget check is taken before this turn's reply so the closing line
	// itself is never counted as a question.
	shouldEndNow := sess.budgetExhausted()

	history := sess.History()
	sess.AppendTurn(types.RoleUser, userText)

	turnStart := c.o.now()
	fragments, kind := c.o.responder.Generate(ctx, responder.Request{
		University:      sess.University,
		Program:         sess.Program,
		UserText:        userText,
		History:         history,
		QuestionContext: sess.bank.Context(),
		TrendsDigest:    c.trendsDigest(sess),
		Pacing:          sess.pacing(),
	})

	var full strings.Builder
	for fragment := range fragments {
		full.WriteString(fragment)
		c.send(ctx, protocol.NewTextChunk(fragment))
	}
	reply := full.String()

	sess.AppendTurn(types.RoleAssistant, reply)
	c.send(ctx, protocol.NewInterviewerMessage(reply, false))

	if kind == responder.DirectiveClosingQuestion {
		sess.markClosingAsked()
	}
	if strings.Contains(reply, "?") && !shouldEndNow {
		if sess.countQuestion() {
			c.o.metrics.QuestionsAsked.Add(ctx, 1)
			c.o.log.Debug("question counted",
				"session_id", sess.ID,
				"asked", sess.QuestionsAsked(),
				"max", sess.Policy.MaxQuestions)
		}
	}

	c.speak(ctx, sess, reply)
	c.o.metrics.TurnDuration.Record(ctx, c.o.now().Sub(turnStart).Seconds())

	if shouldEndNow {
		c.o.log.Info("interview budget reached, scheduling end", "session_id", sess.ID)
		// The closing sequence goes through the worker queue so a turn that
		// started during the grace delay finishes before session_ended.
		time.AfterFunc(c.o.endDelay, func() {
			c.enqueue(func() { c.finalize(c.ctx, sess, "Interview completed") })
		})
	}
}

func (c *Conn) handleInterim(ctx context.Context, text string) {
	sess := c.session.Load()
	if sess == nil {
		c.sendError(ctx, ErrNotInitialized.Error())
		return
	}
	if sess.Ended() {
		c.sendError(ctx, ErrSessionEnded.Error())
		return
	}

	// Self-echo prevention: while the interviewer audio is playing, interim
	// transcripts are almost certainly our own voice leaking into the mic.
	if sess.AISpeaking() {
		c.send(ctx, protocol.NewPauseListening("Please wait for the interviewer to finish speaking"))
		return
	}

	sess.tracker.OnSpeechStart()

	decision := c.o.engine.Analyze(ctx, text, sess.History(), sess.tracker.SpeechDuration())
	if !decision.Interrupt || decision.Text == "" {
		return
	}

	c.o.log.Info("interrupting student",
		"session_id", sess.ID,
		"reason", string(decision.Reason))
	c.o.metrics.RecordInterruption(ctx, string(decision.Reason))

	c.send(ctx, protocol.NewInterrupt(string(decision.Reason)))
	c.send(ctx, protocol.NewInterviewerMessage(decision.Text, true))
	sess.AppendTurn(types.RoleAssistant, decision.Text)
	c.speak(ctx, sess, decision.Text)
	sess.tracker.Reset()
}

func (c *Conn) handleUserInterrupt(ctx context.Context, text string) {
	sess := c.session.Load()
	if sess == nil {
		c.sendError(ctx, ErrNotInitialized.Error())
		return
	}

	sess.releaseFloor()
	c.o.log.Debug("user barge-in, floor released", "session_id", sess.ID)

	fragment := strings.TrimSpace(text)
	if fragment != "" && types.WordCount(fragment) >= minInterruptHistoryWords {
		sess.AppendTurn(types.RoleUser, fragment)
	}
}

func (c *Conn) handleAudioEnded(ctx context.Context) {
	sess := c.session.Load()
	if sess == nil {
		c.sendError(ctx, ErrNotInitialized.Error())
		return
	}
	if sess.releaseFloor() {
		c.o.log.Debug("playback acked, floor released", "session_id", sess.ID)
	}
}

func (c *Conn) handleAudioChunk(ctx context.Context) {
	if c.session.Load() == nil {
		c.sendError(ctx, ErrNotInitialized.Error())
		return
	}
	// Transcription runs client-side; the chunk is acknowledged and dropped.
	c.send(ctx, protocol.NewAudioReceived())
}

func (c *Conn) handleEndSession(ctx context.Context) {
	sess := c.session.Load()
	if sess == nil {
		c.sendError(ctx, ErrNotInitialized.Error())
		return
	}
	c.finalize(ctx, sess, "Interview session completed")
}

// ─── Turn plumbing ───────────────────────────────────────────────────────────

// speak renders text to audio and emits it, holding the AI-speaking lock from
// before synthesis starts until the client acks playback (or the fallback
// timer fires). A synthesis failure surfaces as a protocol error and releases
// the lock so the interview continues text-only for that turn.
func (c *Conn) speak(ctx context.Context, sess *Session, text string) {
	if !c.o.synth.Enabled() {
		return
	}

	sess.lockFloor()
	start := c.o.now()
	audio, err := c.o.synth.Render(ctx, text)
	c.o.metrics.TTSDuration.Record(ctx, c.o.now().Sub(start).Seconds(),
		metric.WithAttributes(observe.Attr("status", statusOf(err))))
	if err != nil {
		c.o.log.Error("speech synthesis failed", "session_id", sess.ID, "error", err)
		c.o.metrics.RecordProviderError(ctx, "tts", "synthesize")
		sess.releaseFloor()
		c.sendError(ctx, "voice synthesis failed")
		return
	}

	c.send(ctx, protocol.NewInterviewerAudio(audio))
	sess.armUnlockFallback(c.o.unlockTimeout, func() {
		c.o.log.Warn("audio ack never arrived, lock released by fallback timer",
			"session_id", sess.ID)
	})
}

func (c *Conn) trendsDigest(sess *Session) string {
	if c.o.trends == nil {
		return ""
	}
	return c.o.trends.Digest(sess.University, sess.Program)
}

// finalize ends the session exactly once: persist best-effort, deregister,
// notify the client. Persistence failures must never block session_ended.
// It always runs on the worker goroutine (timers enqueue it), so the
// transcript it persists includes every completed turn and session_ended is
// never emitted ahead of an in-flight turn's messages.
func (c *Conn) finalize(ctx context.Context, sess *Session, message string) {
	if !sess.markEnded() {
		return
	}
	c.stopWatchdog()
	c.o.metrics.ActiveSessions.Add(ctx, -1)

	c.persist(ctx, sess)
	c.o.registry.Remove(sess.ID)
	c.send(ctx, protocol.NewSessionEnded(message))
	c.o.log.Info("session ended",
		"session_id", sess.ID,
		"questions_asked", sess.QuestionsAsked(),
		"turns", len(sess.History()))
}

func (c *Conn) persist(ctx context.Context, sess *Session) {
	if c.o.store == nil {
		return
	}
	record := store.Session{
		ID:              sess.ID,
		UserID:          sess.UserID,
		University:      sess.University,
		Program:         sess.Program,
		DurationMinutes: int(sess.Duration / time.Minute),
		StartedAt:       sess.StartedAt,
		CompletedAt:     c.o.now(),
	}
	if err := c.o.store.SaveCompleteSession(ctx, record, qaPairs(sess.History())); err != nil {
		c.o.log.Error("failed to persist session transcript",
			"session_id", sess.ID, "error", err)
	}
}

// startWatchdog arms the idle timer that closes out a session whose time
// budget expired with no further client messages.
func (c *Conn) startWatchdog(sess *Session) {
	go func() {
		ticker := time.NewTicker(c.o.watchdogInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if sess.Ended() {
					return
				}
				if sess.Elapsed() >= sess.Duration {
					c.o.log.Info("time budget expired while idle", "session_id", sess.ID)
					// Finalize runs on the worker goroutine so a turn in
					// flight when the budget expires completes first.
					c.enqueue(func() { c.finalize(c.ctx, sess, "Interview completed") })
					return
				}
			case <-c.watchdogStop:
				return
			case <-c.ctx.Done():
				return
			}
		}
	}()
}

func (c *Conn) stopWatchdog() {
	c.watchdogOnce.Do(func() { close(c.watchdogStop) })
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
