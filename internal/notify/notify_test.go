package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHub_EmitInRegistrationOrder(t *testing.T) {
	var h Hub
	var got []string

	h.Observe(func(sender any, member string) { got = append(got, "a:"+member) })
	h.Observe(func(sender any, member string) { got = append(got, "b:"+member) })

	h.Emit(nil, "X")

	assert.Equal(t, []string{"a:X", "b:X"}, got)
}

func TestHub_CancelRemovesHandler(t *testing.T) {
	var h Hub
	calls := 0

	cancel := h.Observe(func(any, string) { calls++ })
	h.Emit(nil, "X")
	cancel()
	cancel()
	h.Emit(nil, "X")

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, h.Len())
}

func TestHub_CancelDuringEmit(t *testing.T) {
	var h Hub
	calls := 0
	var cancelSecond func()

	h.Observe(func(any, string) { cancelSecond() })
	cancelSecond = h.Observe(func(any, string) { calls++ })

	// The running emit keeps its snapshot.
	h.Emit(nil, "X")
	h.Emit(nil, "X")

	assert.Equal(t, 1, calls)
}

func TestHub_SenderPassedThrough(t *testing.T) {
	var h Hub
	src := &struct{ N int }{}
	var seen any

	h.Observe(func(sender any, _ string) { seen = sender })
	h.Emit(src, "N")

	assert.Same(t, src, seen)
}
