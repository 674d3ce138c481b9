package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subscribe(t *testing.T, b *MemoryBus, handler Handler) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	go func() {
		close(ready)
		_ = b.Subscribe(ctx, handler)
	}()
	<-ready
	// Subscribe registers synchronously before blocking; give the
	// goroutine a beat to reach the registration.
	time.Sleep(10 * time.Millisecond)
	return cancel
}

func TestMemoryBus_FanOutToAllSubscribers(t *testing.T) {
	b := NewMemoryBus()

	var mu sync.Mutex
	got := map[string][]string{}
	record := func(name string) Handler {
		return func(room string, payload []byte) {
			mu.Lock()
			defer mu.Unlock()
			got[name] = append(got[name], room+"="+string(payload))
		}
	}

	cancelA := subscribe(t, b, record("a"))
	defer cancelA()
	cancelB := subscribe(t, b, record("b"))
	defer cancelB()

	require.NoError(t, b.Publish(context.Background(), "conv:1", []byte(`{"x":1}`)))
	require.NoError(t, b.Publish(context.Background(), "user:2", []byte(`{"y":2}`)))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{`conv:1={"x":1}`, `user:2={"y":2}`}, got["a"])
	assert.Equal(t, got["a"], got["b"])
}

func TestMemoryBus_NoReplayForLateSubscribers(t *testing.T) {
	b := NewMemoryBus()

	require.NoError(t, b.Publish(context.Background(), "conv:1", []byte("early")))

	var mu sync.Mutex
	var got []string
	cancel := subscribe(t, b, func(room string, payload []byte) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, string(payload))
	})
	defer cancel()

	require.NoError(t, b.Publish(context.Background(), "conv:1", []byte("late")))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"late"}, got)
}
