package state

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xraas_nd/internal/ndalert"
)

func TestTrackerUpdateAndTimeout(t *testing.T) {
	clk := clock.NewMock()
	tr := NewTracker(0, clk)
	assert.Equal(t, DefaultTimeout, tr.Timeout())

	a, ok := ndalert.Decode(0x41)
	cur := tr.Update("N123AB", a, ok)
	require.NotNil(t, cur)
	assert.Equal(t, "FLAPS", cur.Alert.Text)
	assert.Equal(t, 1, cur.MsgCount)

	clk.Add(5 * time.Second)
	cur = tr.Update("N123AB", a, ok)
	require.NotNil(t, cur)
	assert.Equal(t, 2, cur.MsgCount)
	assert.Equal(t, clk.Now(), cur.LastSeen)

	clk.Add(6 * time.Second)
	got, live := tr.Current("N123AB")
	require.True(t, live)
	assert.Equal(t, uint32(0x41), got.Alert.Raw)

	clk.Add(2 * time.Second)
	_, live = tr.Current("N123AB")
	assert.False(t, live, "alert should be stale after the timeout")
	assert.Empty(t, tr.Snapshot())
	assert.Equal(t, 1, tr.Expire())
	assert.Equal(t, 0, tr.Expire())
}

func TestTrackerClearOnUndecodable(t *testing.T) {
	tr := NewTracker(time.Second, clock.NewMock())

	var cleared []string
	tr.OnCleared(func(source string) { cleared = append(cleared, source) })

	a, ok := ndalert.Decode(0x00142348)
	tr.Update("sim", a, ok)

	a, ok = ndalert.Decode(0)
	assert.Nil(t, tr.Update("sim", a, ok))
	assert.Equal(t, []string{"sim"}, cleared)

	// Idle value on an idle source is not a change.
	tr.Update("sim", a, ok)
	assert.Len(t, cleared, 1)

	stats := tr.GetStats()
	assert.Equal(t, 1, stats.Updates)
	assert.Equal(t, 2, stats.Rejected)
	assert.Equal(t, 1, stats.Cleared)
	assert.Equal(t, 0, stats.Active)
}

func TestTrackerOnChanged(t *testing.T) {
	tr := NewTracker(time.Minute, clock.NewMock())

	var changes []string
	tr.OnChanged(func(c *Current) { changes = append(changes, c.Source+":"+c.Alert.Text) })

	flaps, _ := ndalert.Decode(0x41)
	tooHigh, _ := ndalert.Decode(0x42)

	tr.Update("a", flaps, true)
	tr.Update("a", flaps, true)
	tr.Update("a", tooHigh, true)
	tr.Update("b", flaps, true)

	assert.Equal(t, []string{"a:FLAPS", "a:TOO HIGH", "b:FLAPS"}, changes)

	snap := tr.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "a", snap[0].Source)
	assert.Equal(t, "TOO HIGH", snap[0].Alert.Text)
	assert.Equal(t, 1, snap[0].MsgCount)
	assert.Equal(t, "b", snap[1].Source)
	assert.Equal(t, 2, tr.GetStats().Active)
}

func TestTrackerStaleEntryRestarts(t *testing.T) {
	clk := clock.NewMock()
	tr := NewTracker(time.Second, clk)

	var changes int
	tr.OnChanged(func(*Current) { changes++ })

	a, ok := ndalert.Decode(0x41)
	tr.Update("sim", a, ok)

	clk.Add(10 * time.Second)
	_, live := tr.Current("sim")
	require.False(t, live)

	// Same value again before Expire ran.
	cur := tr.Update("sim", a, ok)
	require.NotNil(t, cur)
	assert.Equal(t, 2, changes)
	assert.Equal(t, 1, cur.MsgCount)
	assert.Equal(t, clk.Now(), cur.FirstSeen)

	got, live := tr.Current("sim")
	require.True(t, live)
	assert.Equal(t, "FLAPS", got.Alert.Text)
}
