package history

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sweetpotato0/ai-devteam/message"
)

func TestAppendPreservesOrder(t *testing.T) {
	t.Parallel()

	h := New()
	for i := range 5 {
		h.Append(message.NewMessage(message.RoleUser, fmt.Sprintf("turn-%d", i)))
	}

	msgs := h.Messages()
	require.Len(t, msgs, 5)
	for i, msg := range msgs {
		assert.Equal(t, fmt.Sprintf("turn-%d", i), msg.Content)
	}
	assert.Equal(t, uint64(5), h.Revision())
}

func TestMessagesReturnsCopies(t *testing.T) {
	t.Parallel()

	h := New()
	h.Append(message.NewMessage(message.RoleUser, "original"))

	snapshot := h.Messages()
	snapshot[0].Content = "mutated"

	assert.Equal(t, "original", h.Messages()[0].Content)
}

func TestAppendClonesInput(t *testing.T) {
	t.Parallel()

	h := New()
	msg := message.NewMessage(message.RoleUser, "original")
	h.Append(msg)
	msg.Content = "mutated"

	assert.Equal(t, "original", h.Messages()[0].Content)
}

func TestClearBumpsRevision(t *testing.T) {
	t.Parallel()

	h := New()
	h.Append(message.NewMessage(message.RoleUser, "a"))
	before := h.Revision()

	h.Clear()

	assert.Equal(t, 0, h.Len())
	assert.Greater(t, h.Revision(), before)
}

func TestConcurrentAppendLosesNothing(t *testing.T) {
	t.Parallel()

	h := New()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Append(message.NewMessage(message.RoleUser, fmt.Sprint(i)))
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, h.Len())
	msgs, rev := h.Snapshot()
	assert.Len(t, msgs, 50)
	assert.Equal(t, uint64(50), rev)
}

func TestRender(t *testing.T) {
	turns := []*message.Message{
		message.NewMessage(message.RoleUser, "build a cli"),
		message.NewAuthored("Developer", message.RoleAssistant, "done"),
	}
	assert.Equal(t, "Role: user Content: build a cli\nRole: Developer Content: done\n", Render(turns))
	assert.Empty(t, Render(nil))
}
