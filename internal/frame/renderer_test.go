package frame

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyes-gesture/eyes-client/internal/clock"
)

func TestRendererLastFrameWins(t *testing.T) {
	clk := clock.Fake(time.Unix(1000, 0))
	r := NewRenderer(clk)

	_, ok := r.Latest()
	assert.False(t, ok)

	for i := 1; i <= 50; i++ {
		clk.Advance(10 * time.Millisecond)
		r.Accept(fmt.Sprintf("frame-%d", i))
	}

	latest, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, "frame-50", latest.Data)
	assert.Equal(t, uint64(50), latest.Seq)
	assert.Equal(t, clk.Now(), latest.ReceivedAt)
	assert.Equal(t, uint64(50), r.Accepted())
}

func TestRendererClear(t *testing.T) {
	r := NewRenderer(clock.Real())
	r.Accept("abc")
	r.Clear()

	_, ok := r.Latest()
	assert.False(t, ok)

	r.Accept("def")
	latest, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, "def", latest.Data)
	assert.Equal(t, uint64(2), latest.Seq)
}
