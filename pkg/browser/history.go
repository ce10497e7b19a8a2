package browser

import (
	"github.com/vanderheijden86/repoview/pkg/model"
)

// HistoryEntry is one navigation entry: the location and the key that
// correlates it with in-memory state.
type HistoryEntry struct {
	URL string
	Key model.NavigationKey
}

// History is the navigation stack HistorySync writes to.
type History interface {
	Push(entry HistoryEntry)
}

// HistorySync keeps the navigation history aligned with the displayed
// content. Keys come from a monotonic sequence, so no two entries share one.
type HistorySync struct {
	history History
	seq     uint64
	key     model.NavigationKey
}

// NewHistorySync creates a HistorySync pushing to h.
func NewHistorySync(h History) *HistorySync {
	return &HistorySync{history: h}
}

// GenerateKey issues the next navigation key.
func (h *HistorySync) GenerateKey() model.NavigationKey {
	h.seq++
	return model.NavigationKey(h.seq)
}

// PushLocation records url as a new history entry under a fresh key and
// returns the key.
func (h *HistorySync) PushLocation(url string) model.NavigationKey {
	h.key = h.GenerateKey()
	if h.history != nil {
		h.history.Push(HistoryEntry{URL: url, Key: h.key})
	}
	return h.key
}

// Key returns the last issued key.
func (h *HistorySync) Key() model.NavigationKey {
	return h.key
}

// SetKey restores the current key, e.g. after a back/forward navigation.
func (h *HistorySync) SetKey(k model.NavigationKey) {
	h.key = k
}

// Stack is an in-memory back/forward history. Pushing drops any forward
// entries, like a browser does.
type Stack struct {
	entries []HistoryEntry
	pos     int // index of the current entry, -1 when empty
}

// NewStack returns an empty history stack.
func NewStack() *Stack {
	return &Stack{pos: -1}
}

// Push implements History.
func (s *Stack) Push(e HistoryEntry) {
	s.entries = append(s.entries[:s.pos+1], e)
	s.pos = len(s.entries) - 1
}

// Current returns the current entry.
func (s *Stack) Current() (HistoryEntry, bool) {
	if s.pos < 0 {
		return HistoryEntry{}, false
	}
	return s.entries[s.pos], true
}

// Back moves one entry back and returns it.
func (s *Stack) Back() (HistoryEntry, bool) {
	if s.pos <= 0 {
		return HistoryEntry{}, false
	}
	s.pos--
	return s.entries[s.pos], true
}

// Forward moves one entry forward and returns it.
func (s *Stack) Forward() (HistoryEntry, bool) {
	if s.pos+1 >= len(s.entries) {
		return HistoryEntry{}, false
	}
	s.pos++
	return s.entries[s.pos], true
}

// Len returns the number of entries.
func (s *Stack) Len() int {
	return len(s.entries)
}

// Entries returns a copy of all entries, oldest first.
func (s *Stack) Entries() []HistoryEntry {
	return append([]HistoryEntry(nil), s.entries...)
}
