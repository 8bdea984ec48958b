package metrics

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Peers(t *testing.T) {
	c := New()
	c.ConnectionOpened()
	c.ConnectionOpened()
	c.ConnectionClosed()

	assert.EqualValues(t, 1, c.ActiveConnections())
	assert.EqualValues(t, 2, c.TotalConnections())
}

func TestCollector_CommandsByMode(t *testing.T) {
	c := New()
	c.CommandSubmitted(false)
	c.CommandSubmitted(false)
	c.CommandSubmitted(true)
	c.CommandFailed()

	total, failed := c.Commands()
	assert.EqualValues(t, 3, total)
	assert.EqualValues(t, 1, failed)

	snap := c.Snapshot()
	assert.EqualValues(t, 2, snap.Commands.Line)
	assert.EqualValues(t, 1, snap.Commands.JSON)
}

func TestCollector_Concurrent(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.BytesReceived(2)
				c.BytesSent(1)
				c.InputRequested()
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	assert.EqualValues(t, 1600, snap.Bytes.In)
	assert.EqualValues(t, 800, snap.Bytes.Out)
	assert.EqualValues(t, 800, snap.InputRequests)
}

func TestCollector_Errors(t *testing.T) {
	c := New()
	assert.Empty(t, c.Snapshot().Errors.Last)

	c.RecordError("first")
	c.RecordError("line too long")
	c.Reconnect()

	snap := c.Snapshot()
	assert.EqualValues(t, 2, c.ErrorCount())
	assert.Equal(t, "line too long", snap.Errors.Last)
	assert.NotEmpty(t, snap.Errors.At)
	assert.EqualValues(t, 1, snap.Reconnects)
}

func TestCollector_JSON(t *testing.T) {
	c := New()
	c.ConnectionOpened()
	c.CommandSubmitted(true)
	c.BytesSent(42)

	raw := c.JSON()
	assert.NotContains(t, raw, "\n")
	assert.False(t, strings.Contains(raw, `"last"`), "no error recorded yet: %s", raw)

	var snap Snapshot
	require.NoError(t, json.Unmarshal([]byte(raw), &snap))
	assert.EqualValues(t, 1, snap.Peers.Active)
	assert.EqualValues(t, 1, snap.Commands.JSON)
	assert.EqualValues(t, 42, snap.Bytes.Out)
}

func TestNilCollector_NoOps(t *testing.T) {
	var c *Collector

	c.ConnectionOpened()
	c.ConnectionClosed()
	c.CommandSubmitted(false)
	c.CommandFailed()
	c.InputRequested()
	c.BytesReceived(100)
	c.BytesSent(100)
	c.Reconnect()
	c.RecordError("ignored")

	assert.Zero(t, c.ActiveConnections())
	assert.Zero(t, c.ErrorCount())
	total, failed := c.Commands()
	assert.Zero(t, total+failed)
	assert.Equal(t, Snapshot{}, c.Snapshot())
	assert.True(t, json.Valid([]byte(c.JSON())))
}
