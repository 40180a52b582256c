package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mdev84/spyline/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Trigger reasons for the advance controller.
const (
	TriggerTimerExpired     = "timer_expired"
	TriggerGuessesExhausted = "guesses_exhausted"
	TriggerPostReveal       = "post_reveal"
)

// AdvanceAPI is the slice of the remote surface the advancer needs.
type AdvanceAPI interface {
	GetGame(ctx context.Context, gameID uuid.UUID) (*models.Game, error)
	EndTurn(ctx context.Context, gameID uuid.UUID) error
}

// Advancer arbitrates between the racing triggers that all conclude
// "this turn should end now": the clock hitting zero, the guess budget
// draining to zero, and the post-reveal check. Collectively they must
// issue at most one end-turn call per real turn, and at least one must
// eventually succeed while the turn's preconditions keep holding.
//
// The guard is the turn signature: an attempted signature is never
// attempted again, and inFlight is a plain non-reentrant latch, not a
// queue — a trigger that loses the race is dropped, not deferred.
type Advancer struct {
	api    AdvanceAPI
	store  *Store
	gameID uuid.UUID
	notify func(Notice)

	mu        sync.Mutex
	attempted models.TurnSignature
	inFlight  bool

	// guess-transition tracking; a stable zero carried over from a
	// stale fetch is not a transition.
	lastSig     models.TurnSignature
	lastGuesses int
	hasGuesses  bool
}

// NewAdvancer builds the controller. notify may be nil.
func NewAdvancer(api AdvanceAPI, store *Store, gameID uuid.UUID, notify func(Notice)) *Advancer {
	return &Advancer{
		api:    api,
		store:  store,
		gameID: gameID,
		notify: notify,
	}
}

// ObserveGame folds a fresh game snapshot into the transition tracker
// and returns a trigger reason when the guess budget was observed going
// from positive to exactly zero within one turn signature. The caller
// decides whether (and on which goroutine) to fire Trigger.
func (a *Advancer) ObserveGame(g *models.Game) string {
	sig := models.SignatureOf(g)
	guesses, ok := g.Guesses()

	a.mu.Lock()
	defer a.mu.Unlock()

	sameTurn := !sig.Zero() && sig == a.lastSig
	transition := sameTurn && a.hasGuesses && a.lastGuesses > 0 && ok && guesses == 0

	a.lastSig = sig
	a.lastGuesses = guesses
	a.hasGuesses = ok

	if transition {
		return TriggerGuessesExhausted
	}
	return ""
}

// Trigger runs the advance algorithm once. All trigger sites share it.
func (a *Advancer) Trigger(ctx context.Context, reason string) {
	if !a.store.AmSeated() {
		// Observers derive the same state but never act.
		return
	}

	sig := models.SignatureOf(a.store.Game())
	if sig.Zero() {
		return
	}

	a.mu.Lock()
	if a.inFlight || a.attempted == sig {
		a.mu.Unlock()
		return
	}
	a.inFlight = true
	a.attempted = sig
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.inFlight = false
		a.mu.Unlock()
	}()

	log.Info().
		Str("reason", reason).
		Str("team", string(sig.Team)).
		Int("turn", sig.Turn).
		Msg("auto-advance firing")

	// Re-check the precondition against a fresh authoritative fetch; by
	// the time we got here another participant or trigger may already
	// have advanced the turn.
	fresh, err := a.api.GetGame(ctx, a.gameID)
	if err != nil {
		a.fail("auto-advance precondition fetch failed", err)
		return
	}
	if !fresh.Active() || models.SignatureOf(fresh) != sig {
		log.Debug().Str("reason", reason).Msg("auto-advance precondition evaporated")
		a.store.ReplaceGame(fresh)
		return
	}

	if err := a.api.EndTurn(ctx, a.gameID); err != nil {
		// Soft failure: clear the attempted signature so a later
		// trigger may retry. Never escalated; another participant will
		// likely succeed shortly.
		a.fail("auto-advance end turn failed", err)
		return
	}

	after, err := a.api.GetGame(ctx, a.gameID)
	if err != nil {
		log.Warn().Err(err).Msg("auto-advance succeeded but refresh failed")
		return
	}
	a.store.ReplaceGame(after)
	log.Info().Str("reason", reason).Msg("auto-advance completed")
}

func (a *Advancer) fail(msg string, err error) {
	a.mu.Lock()
	a.attempted = models.TurnSignature{}
	a.mu.Unlock()

	log.Warn().Err(err).Msg(msg)
	if a.notify != nil {
		a.notify(Notice{Level: NoticeWarn, Message: msg, Detail: err.Error(), At: time.Now()})
	}
}
