package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdev84/spyline/go/internal/models"
)

func newTestClock(defaultSeconds int) (*TurnClock, *clockwork.FakeClock) {
	fc := clockwork.NewFakeClock()
	return NewTurnClock(fc, defaultSeconds, nil, nil), fc
}

func TestTotalSecondsHalvingWithFloor(t *testing.T) {
	cases := []struct {
		name    string
		seconds int
		cut     bool
		want    int
	}{
		{name: "uncut full duration", seconds: 90, cut: false, want: 90},
		{name: "cut halves rounded down", seconds: 91, cut: true, want: 45},
		{name: "cut respects floor", seconds: 15, cut: true, want: 10},
		{name: "zero disables the timer", seconds: 0, cut: true, want: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newTestClock(0)
			g := activeGame(models.TeamRed, 1)
			g.TurnSeconds = tc.seconds
			g.Ext.RedTimeCut = tc.cut

			assert.Equal(t, tc.want, c.TotalSeconds(g))
			assert.Equal(t, tc.want > 0, c.Timed(g))
		})
	}
}

func TestTotalSecondsCutAppliesToTeamOnTurn(t *testing.T) {
	c, _ := newTestClock(0)
	g := activeGame(models.TeamRed, 1)
	g.TurnSeconds = 60
	g.Ext.BlueTimeCut = true

	// Red is on turn; blue's modifier does not apply.
	assert.Equal(t, 60, c.TotalSeconds(g))

	g.TurnTeam = models.TeamBlue
	assert.Equal(t, 30, c.TotalSeconds(g))
}

func TestTotalSecondsFallsBackToDefault(t *testing.T) {
	c, _ := newTestClock(75)
	g := activeGame(models.TeamRed, 1)
	assert.Equal(t, 75, c.TotalSeconds(g))
}

func TestRemainingCountsDownAndClamps(t *testing.T) {
	c, fc := newTestClock(0)
	start := fc.Now()
	g := withClue(activeGame(models.TeamRed, 1), "ocean", 2, start)
	g.TurnSeconds = 60

	assert.Equal(t, 60, c.Remaining(g))

	fc.Advance(25 * time.Second)
	assert.Equal(t, 35, c.Remaining(g))

	fc.Advance(100 * time.Second)
	assert.Equal(t, 0, c.Remaining(g), "never negative")

	// A start in the future clamps to the full duration.
	future := fc.Now().Add(time.Hour)
	g.TurnStartedAt = &future
	assert.Equal(t, 60, c.Remaining(g))
}

func TestRemainingZeroWhenInactiveOrUntimed(t *testing.T) {
	c, fc := newTestClock(0)

	assert.Equal(t, 0, c.Remaining(nil))

	g := withClue(activeGame(models.TeamRed, 1), "ocean", 2, fc.Now())
	assert.Equal(t, 0, c.Remaining(g), "no duration anywhere means untimed")

	g.TurnSeconds = 60
	g.Status = models.GameStatusFinished
	assert.Equal(t, 0, c.Remaining(g))
}

func TestSyntheticStartIsStableWithinATurn(t *testing.T) {
	c, fc := newTestClock(0)
	g := withClue(activeGame(models.TeamRed, 1), "ocean", 2, time.Time{})
	g.TurnStartedAt = nil
	g.TurnSeconds = 60

	// First observation anchors the countdown at "now"; repeated
	// derivation must not reset it.
	first := c.StartTime(g)
	fc.Advance(10 * time.Second)
	assert.Equal(t, first, c.StartTime(g))
	assert.Equal(t, 50, c.Remaining(g))

	// A new turn gets a new synthetic anchor.
	g2 := withClue(activeGame(models.TeamBlue, 2), "river", 1, time.Time{})
	g2.TurnStartedAt = nil
	g2.TurnSeconds = 60
	assert.Equal(t, fc.Now(), c.StartTime(g2))
	assert.Equal(t, 60, c.Remaining(g2))
}

func TestGameStartFieldWinsOverSynthetic(t *testing.T) {
	c, fc := newTestClock(0)
	g := withClue(activeGame(models.TeamRed, 1), "ocean", 2, time.Time{})
	g.TurnStartedAt = nil
	g.TurnSeconds = 60
	c.StartTime(g) // records a synthetic anchor

	authoritative := fc.Now().Add(-30 * time.Second)
	g.TurnStartedAt = &authoritative
	assert.Equal(t, authoritative, c.StartTime(g))
	assert.Equal(t, 30, c.Remaining(g))
}

func TestRunTicksAndExpires(t *testing.T) {
	fc := clockwork.NewFakeClock()

	tickCh := make(chan int, 16)
	expireCh := make(chan struct{}, 16)
	c := NewTurnClock(fc, 0,
		func(remaining int) { tickCh <- remaining },
		func() { expireCh <- struct{}{} },
	)

	start := fc.Now()
	g := withClue(activeGame(models.TeamRed, 1), "ocean", 2, start)
	g.TurnSeconds = 2

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, func() *models.Game { return g })
		close(done)
	}()

	waitTick := func() int {
		t.Helper()
		select {
		case remaining := <-tickCh:
			return remaining
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for clock tick")
			return -1
		}
	}

	fc.BlockUntil(1)
	fc.Advance(time.Second)
	require.Equal(t, 1, waitTick())

	fc.Advance(time.Second)
	require.Equal(t, 0, waitTick())

	fc.Advance(time.Second)
	require.Equal(t, 0, waitTick())

	cancel()
	<-done

	// Every zero-observing tick fires expiry; dedup is the advancer's
	// job, not the clock's.
	assert.Len(t, expireCh, 2)
}

func TestRunTearsDownTickerOnStatusChange(t *testing.T) {
	fc := clockwork.NewFakeClock()

	tickCh := make(chan int, 16)
	c := NewTurnClock(fc, 0, func(remaining int) { tickCh <- remaining }, nil)

	var mu sync.Mutex
	g := withClue(activeGame(models.TeamRed, 1), "ocean", 2, fc.Now())
	g.TurnSeconds = 60
	current := func() *models.Game {
		mu.Lock()
		defer mu.Unlock()
		return g
	}
	setGame := func(ng *models.Game) {
		mu.Lock()
		g = ng
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, current)
		close(done)
	}()

	waitTick := func() int {
		t.Helper()
		select {
		case remaining := <-tickCh:
			return remaining
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for clock tick")
			return -1
		}
	}

	fc.BlockUntil(1)
	fc.Advance(time.Second)
	require.Equal(t, 59, waitTick())

	// The game ends; the tick that observes it tears the ticker down
	// without publishing.
	finished := *current()
	finished.Status = models.GameStatusFinished
	setGame(&finished)
	fc.Advance(time.Second)
	select {
	case remaining := <-tickCh:
		t.Fatalf("tick %d published after the game left active", remaining)
	case <-time.After(100 * time.Millisecond):
	}

	// A new active turn plus a poke rebuilds the ticker.
	next := withClue(activeGame(models.TeamBlue, 2), "river", 1, fc.Now())
	next.TurnSeconds = 60
	setGame(next)
	c.Poke()
	fc.BlockUntil(1)
	fc.Advance(time.Second)
	assert.Greater(t, waitTick(), 0)

	cancel()
	<-done
}
