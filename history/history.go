// Package history holds the ordered, append-only turn log of a conversation.
package history

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sweetpotato0/ai-devteam/message"
)

// History is safe for concurrent use. Appended turns are cloned on the way in
// and on the way out, so callers can never mutate recorded turns.
type History struct {
	mu       sync.RWMutex
	turns    []*message.Message
	revision uint64
}

// New returns an empty history.
func New() *History {
	return &History{}
}

// Append records turns in the given order and returns the new revision.
func (h *History) Append(turns ...*message.Message) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, turn := range turns {
		if turn == nil {
			continue
		}
		h.turns = append(h.turns, message.Clone(turn))
		h.revision++
	}
	return h.revision
}

// Messages returns a snapshot of every recorded turn.
func (h *History) Messages() []*message.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return message.CloneMessages(h.turns)
}

// Snapshot returns the turns together with the revision they belong to.
func (h *History) Snapshot() ([]*message.Message, uint64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return message.CloneMessages(h.turns), h.revision
}

// Len reports how many turns are recorded.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// Revision changes whenever the history is appended to or cleared.
func (h *History) Revision() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.revision
}

// Clear empties the history. The revision keeps increasing so cached
// derivations of the old content are never reused.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = nil
	h.revision++
}

// Render serializes turns as "Role: <role> Content: <content>" lines, one per
// turn. Worker turns use the speaker name as role.
func Render(turns []*message.Message) string {
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "Role: %s Content: %s\n", t.Speaker(), t.Content)
	}
	return b.String()
}
