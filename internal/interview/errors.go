package interview

import "errors"

// ErrNotInitialized is returned when a conversational message arrives before
// a successful init on the same connection. Its text is what the client sees
// in the error message.
var ErrNotInitialized = errors.New("session not initialized")

// ErrAISpeaking is returned when user input that would start a new turn
// arrives while the interviewer holds the floor.
var ErrAISpeaking = errors.New("please wait for the interviewer to finish speaking")

// ErrSessionEnded is returned when conversational input arrives after the
// session closed, so late messages are never dropped without a reply.
var ErrSessionEnded = errors.New("session already ended")
