package models

// Websocket frame types
const (
	FrameMessage  = "message"
	FrameClear    = "clear"
	FrameReply    = "reply"
	FrameCleared  = "cleared"
	FrameGreeting = "greeting"
	FrameError    = "error"
)

// Frame is the JSON message exchanged on the chat websocket in both directions.
// Clients send message and clear frames; the server answers each with exactly
// one reply, cleared or error frame, after an initial greeting.
type Frame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Source  string `json:"source,omitempty"`
}
