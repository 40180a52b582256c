package session

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mdev84/spyline/go/internal/models"
	"github.com/rs/zerolog/log"
)

// minTurnSeconds is the floor applied after a time-cut halving.
const minTurnSeconds = 10

// TurnClock derives the countdown for the active turn. The game record
// is the preferred source for the turn start; when the backend omits it
// the clock synthesizes one the first time it sees a given turn
// signature, so repeated recomputation within one turn stays stable
// instead of resetting.
type TurnClock struct {
	clock          clockwork.Clock
	defaultSeconds int // used when the game record carries no duration; 0 disables the timer

	mu        sync.Mutex
	synthetic map[models.TurnSignature]time.Time

	poke chan struct{}

	// onTick publishes the recomputed remaining seconds once per second
	// while the clock is running; onExpire fires on every tick that
	// observes zero remaining. Expiry dedup is the advancer's job.
	onTick   func(remaining int)
	onExpire func()
}

// NewTurnClock builds a turn clock on the given time source.
func NewTurnClock(clock clockwork.Clock, defaultSeconds int, onTick func(int), onExpire func()) *TurnClock {
	return &TurnClock{
		clock:          clock,
		defaultSeconds: defaultSeconds,
		synthetic:      make(map[models.TurnSignature]time.Time),
		poke:           make(chan struct{}, 1),
		onTick:         onTick,
		onExpire:       onExpire,
	}
}

// TotalSeconds returns the full duration for the current turn: the
// configured duration, halved (rounded down, floor 10s) when a time-cut
// modifier is flagged for the team on turn. Zero means untimed.
func (c *TurnClock) TotalSeconds(g *models.Game) int {
	if g == nil {
		return 0
	}
	secs := g.TurnSeconds
	if secs <= 0 {
		secs = c.defaultSeconds
	}
	if secs <= 0 {
		return 0
	}
	if g.Ext.TimeCutFor(g.TurnTeam) {
		secs /= 2
		if secs < minTurnSeconds {
			secs = minTurnSeconds
		}
	}
	return secs
}

// Timed reports whether the fixed-duration timer applies to this game.
func (c *TurnClock) Timed(g *models.Game) bool {
	return c.TotalSeconds(g) > 0
}

// StartTime returns the turn's start. The game's own field wins; absent
// that, the first observation of a signature records "now" as its
// synthetic start and later calls reuse it.
func (c *TurnClock) StartTime(g *models.Game) time.Time {
	if g.TurnStartedAt != nil {
		return *g.TurnStartedAt
	}
	sig := models.SignatureOf(g)

	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.synthetic[sig]; ok {
		return t
	}
	now := c.clock.Now()
	// Drop starts from previous turns; only the live signature matters.
	c.synthetic = map[models.TurnSignature]time.Time{sig: now}
	return now
}

// Remaining returns clamp(total - elapsed, 0, total) for the turn.
func (c *TurnClock) Remaining(g *models.Game) int {
	total := c.TotalSeconds(g)
	if total <= 0 || !g.Active() {
		return 0
	}
	elapsed := int(c.clock.Now().Sub(c.StartTime(g)).Seconds())
	remaining := total - elapsed
	if remaining < 0 {
		return 0
	}
	if remaining > total {
		return total
	}
	return remaining
}

// Poke asks the run loop to re-check whether the ticker should exist.
// Non-blocking; repeated pokes coalesce.
func (c *TurnClock) Poke() {
	select {
	case c.poke <- struct{}{}:
	default:
	}
}

// Run republishes the remaining time once per second while the game is
// active and timed. The ticker is torn down the moment the game leaves
// that state and rebuilt when a poke observes it back. Run returns when
// ctx is cancelled.
func (c *TurnClock) Run(ctx context.Context, game func() *models.Game) {
	var ticker clockwork.Ticker
	var tickCh <-chan time.Time

	stop := func() {
		if ticker == nil {
			return
		}
		ticker.Stop()
		ticker, tickCh = nil, nil
	}
	ensure := func() {
		g := game()
		if !g.Active() || !c.Timed(g) {
			stop()
			return
		}
		if ticker == nil {
			ticker = c.clock.NewTicker(time.Second)
			tickCh = ticker.Chan()
		}
	}
	defer stop()

	ensure()
	log.Info().Msg("turn clock started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("turn clock shutting down")
			return
		case <-c.poke:
			ensure()
		case <-tickCh:
			g := game()
			if !g.Active() || !c.Timed(g) {
				stop()
				continue
			}
			remaining := c.Remaining(g)
			if c.onTick != nil {
				c.onTick(remaining)
			}
			if remaining == 0 && c.onExpire != nil {
				c.onExpire()
			}
		}
	}
}
