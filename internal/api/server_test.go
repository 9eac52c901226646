package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/admitly/interviewd/internal/health"
	"github.com/admitly/interviewd/internal/interview"
	"github.com/admitly/interviewd/internal/interview/interrupt"
	"github.com/admitly/interviewd/internal/interview/questionbank"
	"github.com/admitly/interviewd/internal/interview/responder"
	"github.com/admitly/interviewd/internal/store"
	storemock "github.com/admitly/interviewd/internal/store/mock"
	"github.com/admitly/interviewd/internal/trends"
	"github.com/admitly/interviewd/internal/voice"
	"github.com/admitly/interviewd/pkg/provider/llm"
	llmmock "github.com/admitly/interviewd/pkg/provider/llm/mock"
	"github.com/admitly/interviewd/pkg/provider/tts"
	ttsmock "github.com/admitly/interviewd/pkg/provider/tts/mock"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func newTestOrchestrator(t *testing.T, st store.Store) *interview.Orchestrator {
	t.Helper()

	catalog := []questionbank.Question{
		{University: "General", Program: "All", Text: "Why do you want to study here?", Category: "motivation", Difficulty: 1},
	}
	respLLM := &llmmock.Provider{StreamChunks: []llm.Chunk{
		{Text: "Good. "},
		{Text: "What else?", FinishReason: "stop"},
	}}

	opts := []interview.Option{interview.WithEndDelay(5 * time.Millisecond)}
	if st != nil {
		opts = append(opts, interview.WithStore(st))
	}
	return interview.New(interview.NewRegistry(),
		responder.New(respLLM),
		interrupt.NewEngine(&llmmock.Provider{}),
		voice.New(&ttsmock.Provider{SynthesizeAudio: []byte("mp3")}, tts.VoiceProfile{ID: "test-voice"}),
		trends.NewService(),
		catalog,
		opts...)
}

func startServer(t *testing.T, s *Server) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/interview"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "test done") })
	return conn
}

// serverMsg is a loose decoding of any server message, keyed by Type.
type serverMsg struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
	Text      string `json:"text"`
	Audio     string `json:"audio"`
	Chunk     string `json:"chunk"`
	Reason    string `json:"reason"`
}

func sendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readMsg(t *testing.T, conn *websocket.Conn) serverMsg {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m serverMsg
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return m
}

func readUntil(t *testing.T, conn *websocket.Conn, typ string) serverMsg {
	t.Helper()
	for range 20 {
		if m := readMsg(t, conn); m.Type == typ {
			return m
		}
	}
	t.Fatalf("never received a %q message", typ)
	return serverMsg{}
}

// ── WebSocket ────────────────────────────────────────────────────────────────

func TestWebSocket_SessionLifecycle(t *testing.T) {
	t.Parallel()

	st := &storemock.Store{}
	s := New(newTestOrchestrator(t, st))
	srv := startServer(t, s)
	conn := dialWS(t, srv)

	sendJSON(t, conn, map[string]any{
		"type":       "init",
		"userId":     "u-42",
		"university": "General",
		"program":    "All",
		"duration":   2,
	})

	ready := readMsg(t, conn)
	if ready.Type != "session_ready" || ready.SessionID == "" {
		t.Fatalf("first message = %+v, want session_ready with an ID", ready)
	}

	greeting := readMsg(t, conn)
	if greeting.Type != "interviewer_message" {
		t.Fatalf("second message = %+v, want interviewer_message", greeting)
	}
	if !strings.Contains(greeting.Text, "Why do you want to study here?") {
		t.Errorf("greeting missing opening question: %q", greeting.Text)
	}

	if m := readMsg(t, conn); m.Type != "start_listening" {
		t.Fatalf("third message = %+v, want start_listening", m)
	}
	if m := readMsg(t, conn); m.Type != "interviewer_audio" || m.Audio == "" {
		t.Fatalf("fourth message = %+v, want interviewer_audio with payload", m)
	}

	sendJSON(t, conn, map[string]any{"type": "end_session"})
	ended := readUntil(t, conn, "session_ended")
	if ended.Message != "Interview session completed" {
		t.Errorf("session_ended message = %q", ended.Message)
	}
}

func TestWebSocket_TextTurnStreams(t *testing.T) {
	t.Parallel()

	s := New(newTestOrchestrator(t, nil))
	srv := startServer(t, s)
	conn := dialWS(t, srv)

	sendJSON(t, conn, map[string]any{"type": "init", "duration": 10})
	readUntil(t, conn, "interviewer_audio")
	sendJSON(t, conn, map[string]any{"type": "audio_ended"})

	sendJSON(t, conn, map[string]any{"type": "text_input", "text": "I enjoy studying biology"})

	chunk := readUntil(t, conn, "interviewer_text_chunk")
	if chunk.Chunk != "Good. " {
		t.Errorf("first chunk = %q", chunk.Chunk)
	}
	reply := readUntil(t, conn, "interviewer_message")
	if reply.Text != "Good. What else?" {
		t.Errorf("assembled reply = %q", reply.Text)
	}
	readUntil(t, conn, "interviewer_audio")
}

func TestWebSocket_UnknownMessageType(t *testing.T) {
	t.Parallel()

	s := New(newTestOrchestrator(t, nil))
	srv := startServer(t, s)
	conn := dialWS(t, srv)

	sendJSON(t, conn, map[string]any{"type": "bogus"})
	m := readMsg(t, conn)
	if m.Type != "error" || m.Message != "unrecognized message" {
		t.Errorf("got %+v, want an unrecognized-message error", m)
	}
}

// ── REST and probes ──────────────────────────────────────────────────────────

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	st := &storemock.Store{}
	s := New(newTestOrchestrator(t, st),
		WithHealth(health.New(health.StoreChecker(st))))
	srv := startServer(t, s)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want %d", path, resp.StatusCode, http.StatusOK)
		}
	}

	st.PingErr = errors.New("down")
	resp, err := http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("GET /readyz with failing store = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	s := New(newTestOrchestrator(t, nil))
	srv := startServer(t, s)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /metrics = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestUserSessions(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 2, 1, 15, 0, 0, 0, time.UTC)
	st := &storemock.Store{SessionsResult: []store.SessionSummary{{
		SessionID:      "sess-9",
		University:     "Stanford",
		Program:        "Computer Science",
		StartedAt:      now,
		CompletedAt:    now.Add(10 * time.Minute),
		TotalQuestions: 5,
		AvgScore:       7.5,
	}}}
	s := New(newTestOrchestrator(t, st), WithStore(st))
	srv := startServer(t, s)

	resp, err := http.Get(srv.URL + "/api/v1/users/u-42/sessions")
	if err != nil {
		t.Fatalf("GET sessions: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body struct {
		UserID   string               `json:"userId"`
		Sessions []sessionSummaryJSON `json:"sessions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.UserID != "u-42" {
		t.Errorf("userId = %q", body.UserID)
	}
	if len(body.Sessions) != 1 || body.Sessions[0].SessionID != "sess-9" || body.Sessions[0].AvgScore != 7.5 {
		t.Errorf("sessions = %+v", body.Sessions)
	}
}

func TestUserSessions_NoStore(t *testing.T) {
	t.Parallel()

	s := New(newTestOrchestrator(t, nil))
	srv := startServer(t, s)

	resp, err := http.Get(srv.URL + "/api/v1/users/u-42/sessions")
	if err != nil {
		t.Fatalf("GET sessions: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestUserSessions_StoreError(t *testing.T) {
	t.Parallel()

	st := &storemock.Store{SessionsErr: errors.New("query timeout")}
	s := New(newTestOrchestrator(t, st), WithStore(st))
	srv := startServer(t, s)

	resp, err := http.Get(srv.URL + "/api/v1/users/u-42/sessions")
	if err != nil {
		t.Fatalf("GET sessions: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}
}
