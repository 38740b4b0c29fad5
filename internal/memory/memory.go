// Package memory holds in-process conversation state: a bounded message
// history per conversation and a response-style preference per user.
//
// State is volatile. The process owns it for its lifetime and nothing is
// persisted; a restart starts every conversation from scratch.
package memory

import (
	"sync"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single message in a conversation. Immutable once created;
// ordering within a history is chronological.
type Turn struct {
	Role Role
	Text string
}

// Style controls answer verbosity.
type Style string

const (
	// StyleBrief answers in a few sentences. The default.
	StyleBrief Style = "brief"
	// StyleDetailed answers at length and adds an example.
	StyleDetailed Style = "detailed"
	// StyleSocratic asks one to three guiding questions before answering.
	StyleSocratic Style = "socratic"
)

// ValidStyle reports whether s is one of the supported styles.
func ValidStyle(s Style) bool {
	switch s {
	case StyleBrief, StyleDetailed, StyleSocratic:
		return true
	}
	return false
}

// Prefs are per-user preferences. Overwritten wholesale on update.
type Prefs struct {
	Style Style
}

// DefaultPrefs returns the preferences used for users that never set any.
func DefaultPrefs() Prefs {
	return Prefs{Style: StyleBrief}
}

// DefaultCapacity is the number of turns kept per conversation.
const DefaultCapacity = 12

// conversation is the mutable state of one conversation. Each entry has
// its own lock so unrelated conversations never contend.
type conversation struct {
	mu    sync.Mutex
	turns []Turn
}

// Store keeps conversation histories keyed by conversation id and
// preferences keyed by user id.
//
// Store is safe for concurrent use. Locking is per conversation: the
// store-level mutex only guards the maps and is never held across an
// append.
type Store struct {
	capacity int

	mu            sync.RWMutex
	conversations map[int64]*conversation
	prefs         map[int64]Prefs
}

// NewStore creates a Store keeping at most capacity turns per
// conversation. capacity <= 0 falls back to DefaultCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity:      capacity,
		conversations: make(map[int64]*conversation),
		prefs:         make(map[int64]Prefs),
	}
}

// conversationEntry returns the entry for id, creating it lazily.
func (s *Store) conversationEntry(id int64) *conversation {
	s.mu.RLock()
	c, ok := s.conversations[id]
	s.mu.RUnlock()
	if ok {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok = s.conversations[id]; ok {
		return c
	}
	c = &conversation{}
	s.conversations[id] = c
	return c
}

// History returns a snapshot of the conversation's turns in
// chronological order. The caller may mutate the returned slice freely.
func (s *Store) History(conversationID int64) []Turn {
	c := s.conversationEntry(conversationID)
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// AppendUser appends a user turn.
func (s *Store) AppendUser(conversationID int64, text string) {
	c := s.conversationEntry(conversationID)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.append(s.capacity, Turn{Role: RoleUser, Text: text})
}

// AppendAssistant appends an assistant turn.
func (s *Store) AppendAssistant(conversationID int64, text string) {
	c := s.conversationEntry(conversationID)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.append(s.capacity, Turn{Role: RoleAssistant, Text: text})
}

// AppendExchange appends a full user/assistant pair under one lock
// acquisition, so overlapping requests for the same conversation can
// never interleave half a turn into the history.
func (s *Store) AppendExchange(conversationID int64, userText, answerText string) {
	c := s.conversationEntry(conversationID)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.append(s.capacity, Turn{Role: RoleUser, Text: userText})
	c.append(s.capacity, Turn{Role: RoleAssistant, Text: answerText})
}

// Clear empties the history for one conversation. Other conversations
// are untouched.
func (s *Store) Clear(conversationID int64) {
	c := s.conversationEntry(conversationID)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = nil
}

// append adds t and evicts the oldest turns beyond capacity.
func (c *conversation) append(capacity int, t Turn) {
	c.turns = append(c.turns, t)
	if len(c.turns) > capacity {
		overflow := len(c.turns) - capacity
		c.turns = append(c.turns[:0], c.turns[overflow:]...)
	}
}

// Preferences returns the user's preferences, or defaults if unset.
func (s *Store) Preferences(userID int64) Prefs {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.prefs[userID]; ok {
		return p
	}
	return DefaultPrefs()
}

// SetStyle overwrites the user's preferences with the given style.
func (s *Store) SetStyle(userID int64, style Style) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[userID] = Prefs{Style: style}
}
