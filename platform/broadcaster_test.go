package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster(t *testing.T) {
	t.Parallel()

	var (
		b   Broadcaster[int]
		got []string
	)

	first := b.Subscribe(func(v int) { got = append(got, "first") })
	second := b.Subscribe(func(v int) { got = append(got, "second") })

	b.Publish(1)
	assert.Equal(t, []string{"first", "second"}, got)
	assert.Equal(t, 2, b.Subscribers())

	require.NoError(t, first.Close())
	require.NoError(t, first.Close())

	got = nil
	b.Publish(2)
	assert.Equal(t, []string{"second"}, got)

	require.NoError(t, second.Close())
	assert.Equal(t, 0, b.Subscribers())
}

func TestOutcomeTotal(t *testing.T) {
	t.Parallel()

	outcome := Outcome{Awards: []Award{{Name: "line 1", Amount: 40}, {Name: "scatter", Amount: 10}}}
	assert.Equal(t, int64(50), outcome.Total())
	assert.Equal(t, "FinalizePending", CycleFinalizePending.String())
}
