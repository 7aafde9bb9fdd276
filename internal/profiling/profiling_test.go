package profiling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAddAndFrameReset(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	Add("chunks.build", 2*time.Millisecond)
	Add("chunks.build", 4*time.Millisecond)
	Add("graphics.Render", 1500*time.Microsecond)

	assert.Equal(t, 6*time.Millisecond, Snapshot()["chunks.build"])
	assert.Equal(t, 6*time.Millisecond, SumWithPrefix("chunks."))
	assert.Equal(t, "chunks.build:6ms, graphics.Render:1.5ms", TopN(5))
	assert.Equal(t, "chunks.build:6ms", TopN(1))

	ResetFrame()
	assert.Empty(t, Snapshot())

	avg, n := Average("chunks.build")
	assert.Equal(t, 3*time.Millisecond, avg, "lifetime totals survive frame resets")
	assert.Equal(t, int64(2), n)
}

func TestTrack(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	stop := Track("x")
	stop()
	_, n := Average("x")
	assert.Equal(t, int64(1), n)

	avg, n := Average("missing")
	assert.Zero(t, avg)
	assert.Zero(t, n)
}
