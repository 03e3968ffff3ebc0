package eventbus

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestBus_PublishOrderAndIsolation(t *testing.T) {
	b := New(zap.NewNop())

	var order []int
	var mu atomicSlice
	unsub1 := b.OnMessageNew(func(p MessageNewPayload) {
		mu.append(&order, 1)
		panic("subscriber one always panics")
	})
	defer unsub1()
	b.OnMessageNew(func(p MessageNewPayload) {
		mu.append(&order, 2)
	})

	b.PublishMessageNew(MessageNewPayload{MessageID: "m1"})

	assert.Equal(t, []int{1, 2}, order)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := New(zap.NewNop())

	var calls int32
	unsub := b.OnFriendAccepted(func(p FriendAcceptedPayload) {
		atomic.AddInt32(&calls, 1)
	})
	b.PublishFriendAccepted(FriendAcceptedPayload{ClawA: "a", ClawB: "b"})
	unsub()
	b.PublishFriendAccepted(FriendAcceptedPayload{ClawA: "a", ClawB: "b"})

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

// atomicSlice serializes appends from handlers that may run
// concurrently in a future implementation; publish today is
// synchronous, but the test should hold even if that changes.
type atomicSlice struct{ mu sync.Mutex }

func (a *atomicSlice) append(s *[]int, v int) {
	a.mu.Lock()
	*s = append(*s, v)
	a.mu.Unlock()
}
