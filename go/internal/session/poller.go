package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Poller is the fallback update channel: fixed-interval re-fetches that
// keep the store converging even when the change feed is down. It runs
// for the whole session as a second safety net.
//
// Each resource class skips its tick silently while the previous
// refresh is still outstanding, bounding in-flight requests to one per
// class.
type Poller struct {
	clock            clockwork.Clock
	gameCardsEvery   time.Duration
	membersEvery     time.Duration
	refreshGameCards func(ctx context.Context) error
	refreshMembers   func(ctx context.Context) error

	gameCardsBusy atomic.Bool
	membersBusy   atomic.Bool
}

// NewPoller wires the two refresh callbacks to their intervals.
func NewPoller(clock clockwork.Clock, gameCardsEvery, membersEvery time.Duration,
	refreshGameCards, refreshMembers func(ctx context.Context) error) *Poller {
	return &Poller{
		clock:            clock,
		gameCardsEvery:   gameCardsEvery,
		membersEvery:     membersEvery,
		refreshGameCards: refreshGameCards,
		refreshMembers:   refreshMembers,
	}
}

// Run blocks until ctx is cancelled, firing the two refresh loops on
// their intervals.
func (p *Poller) Run(ctx context.Context) {
	gameTicker := p.clock.NewTicker(p.gameCardsEvery)
	memberTicker := p.clock.NewTicker(p.membersEvery)
	defer gameTicker.Stop()
	defer memberTicker.Stop()

	log.Info().
		Dur("game_cards_every", p.gameCardsEvery).
		Dur("members_every", p.membersEvery).
		Msg("poller started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("poller shutting down")
			return
		case <-gameTicker.Chan():
			p.tick(ctx, "game_cards", &p.gameCardsBusy, p.refreshGameCards)
		case <-memberTicker.Chan():
			p.tick(ctx, "members", &p.membersBusy, p.refreshMembers)
		}
	}
}

// tick runs one refresh unless the previous one for the same resource
// class is still in flight.
func (p *Poller) tick(ctx context.Context, class string, busy *atomic.Bool, refresh func(ctx context.Context) error) {
	if !busy.CompareAndSwap(false, true) {
		log.Debug().Str("class", class).Msg("skipping poll tick, previous refresh outstanding")
		return
	}
	go func() {
		defer busy.Store(false)
		if err := refresh(ctx); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Str("class", class).Msg("poll refresh failed")
		}
	}()
}
