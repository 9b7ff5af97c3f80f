package eventloop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopRunsInOrder(t *testing.T) {
	loop := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		loop.Post(func() { got = append(got, i) })
	}

	var snapshot []int
	require.True(t, loop.Do(func() { snapshot = append(snapshot, got...) }))
	require.Len(t, snapshot, 100)
	for i, v := range snapshot {
		assert.Equal(t, i, v)
	}
}

func TestLoopSerializesConcurrentPosts(t *testing.T) {
	loop := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			loop.Post(func() { counter++ })
		}()
	}
	wg.Wait()

	var final int
	loop.Do(func() { final = counter })
	assert.Equal(t, 50, final)
}

func TestLoopStopDropsLatePosts(t *testing.T) {
	loop := New()
	go loop.Run(context.Background())

	loop.Stop()
	select {
	case <-loop.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not exit after Stop")
	}

	ran := false
	loop.Post(func() { ran = true })
	assert.False(t, loop.Do(func() { ran = true }))
	assert.False(t, ran)
	loop.Stop()
}

func TestLoopContextCancel(t *testing.T) {
	loop := New()
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)

	cancel()
	select {
	case <-loop.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not exit after context cancel")
	}
}

func TestLoopRecoversFromPanic(t *testing.T) {
	loop := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	loop.Post(func() { panic("bad callback") })
	ran := false
	assert.True(t, loop.Do(func() { ran = true }))
	assert.True(t, ran)
}

func TestInlineRunsImmediately(t *testing.T) {
	ran := false
	Inline().Post(func() { ran = true })
	assert.True(t, ran)
}
