// Package session holds the per-run mutable state threaded between turns:
// the bounded conversation transcript, the pids from the last process
// listing, and the voice-mode flag. Nothing here survives a restart.
package session

import "sync"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role    Role
	Content string
}

// DefaultMaxTurns keeps the last 10 user/assistant pairs.
const DefaultMaxTurns = 20

// Session is safe for use from the turn loop plus the IPC and bus entry
// points; a single mutex gives the single-writer discipline the loop needs.
type Session struct {
	mu         sync.Mutex
	turns      []Turn
	maxTurns   int
	recentPIDs []int
	voice      bool
}

func New(maxTurns int) *Session {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Session{maxTurns: maxTurns}
}

// Append records a turn, evicting the oldest once the cap is exceeded.
func (s *Session) Append(role Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = append(s.turns, Turn{Role: role, Content: content})
	if over := len(s.turns) - s.maxTurns; over > 0 {
		s.turns = append(s.turns[:0:0], s.turns[over:]...)
	}
}

// Window returns a copy of the transcript, oldest first.
func (s *Session) Window() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Turn(nil), s.turns...)
}

func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// SetRecentPIDs replaces the recovery set wholesale; it is never merged or
// partially updated.
func (s *Session) SetRecentPIDs(pids []int) {
	cp := append([]int(nil), pids...)
	s.mu.Lock()
	s.recentPIDs = cp
	s.mu.Unlock()
}

func (s *Session) RecentPIDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.recentPIDs...)
}

func (s *Session) VoiceMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voice
}

func (s *Session) SetVoiceMode(on bool) {
	s.mu.Lock()
	s.voice = on
	s.mu.Unlock()
}

// ToggleVoice flips the input mode and reports the new state.
func (s *Session) ToggleVoice() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voice = !s.voice
	return s.voice
}
