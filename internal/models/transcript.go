package models

import "sync"

// Role identifies the author of a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single entry of a chat transcript.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Transcript is an append-only, ordered list of turns owned by one chat session.
type Transcript struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append adds turns at the end of the transcript.
func (t *Transcript) Append(turns ...Turn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = append(t.turns, turns...)
}

// Len returns the number of turns.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.turns)
}

// Turns returns a copy of every turn.
func (t *Transcript) Turns() []Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Recent returns a copy of the last n turns in their original order.
func (t *Transcript) Recent(n int) []Turn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return LastTurns(t.turns, n)
}

// Clear drops every turn.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = nil
}

// LastTurns returns a copy of the last n entries of turns.
func LastTurns(turns []Turn, n int) []Turn {
	if n <= 0 {
		return []Turn{}
	}
	start := len(turns) - n
	if start < 0 {
		start = 0
	}
	out := make([]Turn, len(turns)-start)
	copy(out, turns[start:])
	return out
}
