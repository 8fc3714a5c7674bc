// Package history keeps the bounded conversation log of one session.
package history

import "strings"

// DefaultMaxTurns bounds a history created with a non-positive size
const DefaultMaxTurns = 20

// Role identifies who produced a turn
type Role string

const (
	RoleHuman Role = "Human"
	RoleAI    Role = "AI"
)

// Turn is one message in the conversation
type Turn struct {
	Role    Role
	Content string
}

// History is an ordered, bounded list of turns, oldest first.
// It is not safe for concurrent use; each session owns its own.
type History struct {
	turns []Turn
	max   int
}

// New creates an empty history holding at most maxTurns turns
func New(maxTurns int) *History {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &History{
		turns: make([]Turn, 0, maxTurns+1),
		max:   maxTurns,
	}
}

// Append adds a turn, evicting the oldest turns beyond the limit
func (h *History) Append(role Role, content string) {
	h.turns = append(h.turns, Turn{Role: role, Content: content})
	if over := len(h.turns) - h.max; over > 0 {
		// Shift in place so the backing array does not grow without bound
		n := copy(h.turns, h.turns[over:])
		clear(h.turns[n:])
		h.turns = h.turns[:n]
	}
}

// All returns a copy of the turns, oldest first
func (h *History) All() []Turn {
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len returns the number of stored turns
func (h *History) Len() int {
	return len(h.turns)
}

// Max returns the turn limit
func (h *History) Max() int {
	return h.max
}

// Clear removes every turn
func (h *History) Clear() {
	clear(h.turns)
	h.turns = h.turns[:0]
}

// Format renders turns as "role: content" lines, oldest first.
// An empty history formats as the empty string.
func (h *History) Format() string {
	if len(h.turns) == 0 {
		return ""
	}
	lines := make([]string, len(h.turns))
	for i, t := range h.turns {
		lines[i] = string(t.Role) + ": " + t.Content
	}
	return strings.Join(lines, "\n")
}
