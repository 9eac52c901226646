// Package protocol defines the JSON message types exchanged over the
// /ws/interview duplex channel.
//
// Client → server messages form a closed tagged union: [DecodeClient] parses
// the "type" discriminator and returns exactly one of the ClientMessage
// implementations, or an error for unknown types. Handlers dispatch with an
// exhaustive type switch; there is no string-keyed fallthrough anywhere
// downstream of this package.
//
// Server → client messages are plain structs whose Type field is fixed by
// their constructor; [Encode] marshals them for the wire.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Client message type discriminators.
const (
	TypeInit          = "init"
	TypeTextInput     = "text_input"
	TypeSpeechInterim = "speech_interim"
	TypeUserInterrupt = "user_interrupt"
	TypeAudioEnded    = "audio_ended"
	TypeAudioChunk    = "audio_chunk"
	TypeEndSession    = "end_session"
)

// ClientMessage is implemented by every inbound message variant.
// The interface is sealed: only types in this package satisfy it.
type ClientMessage interface {
	clientMessage()
}

// Init starts a new interview session on this connection.
type Init struct {
	UserID     string `json:"userId"`
	University string `json:"university"`
	Program    string `json:"program"`
	// Duration is the requested interview length in minutes.
	Duration int `json:"duration"`
}

// TextInput carries a finalized user utterance.
type TextInput struct {
	Text string `json:"text"`
}

// SpeechInterim carries a live partial transcript used for barge-in detection.
type SpeechInterim struct {
	Text string `json:"text"`
}

// UserInterrupt reports that the user spoke over the interviewer's audio.
// Text is the fragment captured so far and may be empty.
type UserInterrupt struct {
	Text string `json:"text"`
}

// AudioEnded reports that the client finished playing the interviewer's audio.
type AudioEnded struct{}

// AudioChunk carries raw client audio for server-side transcription.
// Transcription currently runs in the browser; the server only acknowledges.
type AudioChunk struct {
	Audio string `json:"audio"`
}

// EndSession requests an explicit session teardown.
type EndSession struct{}

func (Init) clientMessage()          {}
func (TextInput) clientMessage()     {}
func (SpeechInterim) clientMessage() {}
func (UserInterrupt) clientMessage() {}
func (AudioEnded) clientMessage()    {}
func (AudioChunk) clientMessage()    {}
func (EndSession) clientMessage()    {}

// envelope is used to peek at the discriminator before full decoding.
type envelope struct {
	Type string `json:"type"`
}

// DecodeClient parses data into the matching [ClientMessage] variant.
// Unknown or missing types return an error naming the offending type.
func DecodeClient(data []byte) (ClientMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("protocol: decode envelope: %w", err)
	}

	var (
		msg ClientMessage
		err error
	)
	switch env.Type {
	case TypeInit:
		var m Init
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeTextInput:
		var m TextInput
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeSpeechInterim:
		var m SpeechInterim
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeUserInterrupt:
		var m UserInterrupt
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeAudioEnded:
		msg = AudioEnded{}
	case TypeAudioChunk:
		var m AudioChunk
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeEndSession:
		msg = EndSession{}
	default:
		return nil, fmt.Errorf("protocol: unknown message type %q", env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("protocol: decode %q: %w", env.Type, err)
	}
	return msg, nil
}

// ─── Server → client ─────────────────────────────────────────────────────────

// ServerMessage is implemented by every outbound message variant.
type ServerMessage interface {
	serverMessage()
}

// SessionReady acknowledges a successful init.
type SessionReady struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Message   string `json:"message,omitempty"`
}

// StartListening tells the client to begin (or resume) speech capture.
type StartListening struct {
	Type string `json:"type"`
}

// PauseListening tells the client to suspend speech capture while the
// interviewer is speaking.
type PauseListening struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// TextChunk is one streamed fragment of an in-progress interviewer turn.
type TextChunk struct {
	Type  string `json:"type"`
	Chunk string `json:"chunk"`
}

// InterviewerMessage is the complete text of one interviewer turn.
type InterviewerMessage struct {
	Type           string `json:"type"`
	Text           string `json:"text"`
	IsInterruption bool   `json:"isInterruption,omitempty"`
}

// InterviewerAudio carries the rendered speech for the preceding turn.
type InterviewerAudio struct {
	Type string `json:"type"`
	// Audio is base64-encoded MP3.
	Audio string `json:"audio"`
}

// Interrupt tells the client the interviewer is cutting in and why.
type Interrupt struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// AudioReceived acknowledges an inbound audio chunk.
type AudioReceived struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// SessionEnded is the final message of a session, on every termination path.
type SessionEnded struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// Error reports a per-message failure. It never implies teardown.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (SessionReady) serverMessage()       {}
func (StartListening) serverMessage()     {}
func (PauseListening) serverMessage()     {}
func (TextChunk) serverMessage()          {}
func (InterviewerMessage) serverMessage() {}
func (InterviewerAudio) serverMessage()   {}
func (Interrupt) serverMessage()          {}
func (AudioReceived) serverMessage()      {}
func (SessionEnded) serverMessage()       {}
func (Error) serverMessage()              {}

// Constructors fix the wire discriminator so callers cannot mistype it.

func NewSessionReady(sessionID string) SessionReady {
	return SessionReady{Type: "session_ready", SessionID: sessionID, Message: "Interview session initialized"}
}

func NewStartListening() StartListening {
	return StartListening{Type: "start_listening"}
}

func NewPauseListening(msg string) PauseListening {
	return PauseListening{Type: "pause_listening", Message: msg}
}

func NewTextChunk(chunk string) TextChunk {
	return TextChunk{Type: "interviewer_text_chunk", Chunk: chunk}
}

func NewInterviewerMessage(text string, isInterruption bool) InterviewerMessage {
	return InterviewerMessage{Type: "interviewer_message", Text: text, IsInterruption: isInterruption}
}

func NewInterviewerAudio(b64 string) InterviewerAudio {
	return InterviewerAudio{Type: "interviewer_audio", Audio: b64}
}

func NewInterrupt(reason string) Interrupt {
	return Interrupt{Type: "interrupt", Reason: reason}
}

func NewAudioReceived() AudioReceived {
	return AudioReceived{Type: "audio_received", Message: "Processing audio..."}
}

func NewSessionEnded(msg string) SessionEnded {
	return SessionEnded{Type: "session_ended", Message: msg}
}

func NewError(msg string) Error {
	return Error{Type: "error", Message: msg}
}

// Encode marshals a server message for the wire.
func Encode(msg ServerMessage) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %T: %w", msg, err)
	}
	return data, nil
}
