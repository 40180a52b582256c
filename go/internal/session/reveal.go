package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mdev84/spyline/go/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	// revealCooldown is the minimum gap between the completion of one
	// reveal request and the submission of the next.
	revealCooldown = 2 * time.Second
	// revealDelay is the deliberate "working..." pause before the
	// request goes out. UX pacing only, never a correctness primitive.
	revealDelay = 600 * time.Millisecond
	// decorationTTL is how long the correctness decoration stays on an
	// applied card before it self-clears.
	decorationTTL = 2500 * time.Millisecond
)

var (
	ErrGameNotActive  = errors.New("game is not active")
	ErrRevealCooldown = errors.New("too soon after the previous reveal")
	ErrActionBusy     = errors.New("another action is in flight")
)

// DecorationClass classifies an applied reveal against the team that
// held the turn when it was submitted.
type DecorationClass string

const (
	DecorationOwn      DecorationClass = "own"
	DecorationEnemy    DecorationClass = "enemy"
	DecorationNeutral  DecorationClass = "neutral"
	DecorationAssassin DecorationClass = "assassin"
)

// Mark is a local, broadcast-visible "intent to reveal" on one card.
type Mark struct {
	By uuid.UUID `json:"by"`
	At time.Time `json:"at"`
}

// Decoration is the transient correctness badge on a just-applied card.
type Decoration struct {
	Class DecorationClass `json:"class"`
	Until time.Time       `json:"until"`
}

// RevealAPI is the slice of the remote surface the board needs.
type RevealAPI interface {
	RevealCard(ctx context.Context, gameID uuid.UUID, position int) (*models.RevealResult, error)
}

// RevealBoard runs the per-position two-step reveal machine:
//
//	Hidden -> Tagged(by) -> (Hidden | Pending -> Applied)
//
// A first interaction only tags; the tagger's second interaction
// confirms and submits. Cards tagged by someone else are untouchable
// for everyone but their tagger; the tag clears itself when the
// canonical card list reports the position revealed.
type RevealBoard struct {
	api    RevealAPI
	store  *Store
	gameID uuid.UUID
	clock  clockwork.Clock

	mu       sync.Mutex
	marks    map[int]Mark
	pending  map[int]bool
	decor    map[int]Decoration
	lastDone time.Time
	confirm  bool // when false, a single interaction submits directly

	publishMark func(MarkEvent)               // broadcast to co-participants; nil-safe
	onResult    func(*models.RevealResult)    // reveal completion hook
	acquireBusy func() bool                   // global action-submission latch
	releaseBusy func()
	notify      func(Notice)
	touch       func() // local-state-changed poke for the presentation bridge
}

// RevealBoardDeps bundles the board's collaborators.
type RevealBoardDeps struct {
	API         RevealAPI
	Store       *Store
	GameID      uuid.UUID
	Clock       clockwork.Clock
	PublishMark func(MarkEvent)
	OnResult    func(*models.RevealResult)
	AcquireBusy func() bool
	ReleaseBusy func()
	Notify      func(Notice)
	Touch       func()
}

// NewRevealBoard builds an empty board with confirm-before-reveal on.
func NewRevealBoard(deps RevealBoardDeps) *RevealBoard {
	return &RevealBoard{
		api:         deps.API,
		store:       deps.Store,
		gameID:      deps.GameID,
		clock:       deps.Clock,
		marks:       make(map[int]Mark),
		pending:     make(map[int]bool),
		decor:       make(map[int]Decoration),
		confirm:     true,
		publishMark: deps.PublishMark,
		onResult:    deps.OnResult,
		acquireBusy: deps.AcquireBusy,
		releaseBusy: deps.ReleaseBusy,
		notify:      deps.Notify,
		touch:       deps.Touch,
	}
}

// SetConfirm toggles the confirm-before-reveal preference.
func (b *RevealBoard) SetConfirm(confirm bool) {
	b.mu.Lock()
	b.confirm = confirm
	b.mu.Unlock()
}

// Confirm returns the confirm-before-reveal preference.
func (b *RevealBoard) Confirm() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.confirm
}

// Marks returns a copy of the current marks.
func (b *RevealBoard) Marks() map[int]Mark {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[int]Mark, len(b.marks))
	for pos, m := range b.marks {
		out[pos] = m
	}
	return out
}

// Decorations returns a copy of the active decorations.
func (b *RevealBoard) Decorations() map[int]Decoration {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[int]Decoration, len(b.decor))
	for pos, d := range b.decor {
		out[pos] = d
	}
	return out
}

// Pending returns a copy of the in-flight positions.
func (b *RevealBoard) Pending() map[int]bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[int]bool, len(b.pending))
	for pos := range b.pending {
		out[pos] = true
	}
	return out
}

// Interact handles one interaction with a board position and advances
// its local state machine. Interactions with revealed cards, pending
// cards, or cards tagged by someone else are no-ops.
func (b *RevealBoard) Interact(ctx context.Context, pos int) error {
	g := b.store.Game()
	if !g.Active() {
		return ErrGameNotActive
	}
	if card := b.cardAt(pos); card == nil || card.Revealed {
		return nil
	}
	me := b.store.MyID()

	b.mu.Lock()
	if b.pending[pos] {
		b.mu.Unlock()
		return nil
	}
	mark, tagged := b.marks[pos]
	switch {
	case tagged && mark.By != me:
		// Someone else's mark; only its tagger may advance it.
		b.mu.Unlock()
		return nil
	case !tagged && b.confirm:
		b.marks[pos] = Mark{By: me, At: b.clock.Now()}
		b.mu.Unlock()
		b.broadcast(MarkEvent{Position: pos, By: me, At: b.clock.Now()})
		b.poke()
		return nil
	}

	// Confirm path: repeat interaction by the tagger, or first
	// interaction with confirmation disabled.
	if since := b.clock.Now().Sub(b.lastDone); !b.lastDone.IsZero() && since < revealCooldown {
		b.mu.Unlock()
		return ErrRevealCooldown
	}
	delete(b.marks, pos)
	b.pending[pos] = true
	turnTeam := g.TurnTeam
	b.mu.Unlock()

	if tagged {
		b.broadcast(MarkEvent{Position: pos, By: me, Cleared: true, At: b.clock.Now()})
	}
	b.poke()

	go b.submit(ctx, pos, turnTeam)
	return nil
}

// submit waits out the UX delay and issues the reveal request.
func (b *RevealBoard) submit(ctx context.Context, pos int, turnTeam models.Team) {
	select {
	case <-b.clock.After(revealDelay):
	case <-ctx.Done():
		b.abort(pos, ctx.Err())
		return
	}

	if b.acquireBusy != nil && !b.acquireBusy() {
		b.abort(pos, ErrActionBusy)
		return
	}
	result, err := b.api.RevealCard(ctx, b.gameID, pos)
	if b.releaseBusy != nil {
		b.releaseBusy()
	}

	now := b.clock.Now()
	if err != nil {
		b.mu.Lock()
		delete(b.pending, pos)
		b.lastDone = now
		b.mu.Unlock()
		log.Warn().Err(err).Int("position", pos).Msg("reveal request failed")
		if b.notify != nil {
			b.notify(Notice{Level: NoticeError, Message: "reveal failed", Detail: err.Error(), At: now})
		}
		b.poke()
		return
	}

	class := classify(result.Color, turnTeam)
	b.mu.Lock()
	delete(b.pending, pos)
	b.lastDone = now
	b.decor[pos] = Decoration{Class: class, Until: now.Add(decorationTTL)}
	b.mu.Unlock()

	b.clock.AfterFunc(decorationTTL, func() {
		b.mu.Lock()
		delete(b.decor, pos)
		b.mu.Unlock()
		b.poke()
	})

	log.Info().
		Int("position", pos).
		Str("color", string(result.Color)).
		Str("class", string(class)).
		Msg("reveal applied")
	b.poke()

	if b.onResult != nil {
		b.onResult(result)
	}
}

func (b *RevealBoard) abort(pos int, err error) {
	b.mu.Lock()
	delete(b.pending, pos)
	b.mu.Unlock()
	if err != nil && b.notify != nil {
		b.notify(Notice{Level: NoticeWarn, Message: "reveal aborted", Detail: err.Error(), At: b.clock.Now()})
	}
	b.poke()
}

// Cancel clears the local participant's own mark on a position.
func (b *RevealBoard) Cancel(pos int) {
	me := b.store.MyID()
	b.mu.Lock()
	mark, ok := b.marks[pos]
	if !ok || mark.By != me {
		b.mu.Unlock()
		return
	}
	delete(b.marks, pos)
	b.mu.Unlock()
	b.broadcast(MarkEvent{Position: pos, By: me, Cleared: true, At: b.clock.Now()})
	b.poke()
}

// ApplyRemoteMark folds a co-participant's mark broadcast into local
// state. A position already marked by someone else is left untouched.
func (b *RevealBoard) ApplyRemoteMark(ev MarkEvent) {
	if ev.By == b.store.MyID() {
		return // our own broadcast echoed back
	}
	b.mu.Lock()
	existing, ok := b.marks[ev.Position]
	switch {
	case ev.Cleared:
		if ok && existing.By == ev.By {
			delete(b.marks, ev.Position)
		}
	case ok && existing.By != ev.By:
		// First tagger wins; ignore the competing mark.
	default:
		b.marks[ev.Position] = Mark{By: ev.By, At: ev.At}
	}
	b.mu.Unlock()
	b.poke()
}

// SyncCards force-clears any local mark or pending state for positions
// the canonical board now reports revealed, e.g. when someone else got
// there first or a power altered the card.
func (b *RevealBoard) SyncCards(cards []models.Card) {
	b.mu.Lock()
	changed := false
	for _, card := range cards {
		if !card.Revealed {
			continue
		}
		if _, ok := b.marks[card.Position]; ok {
			delete(b.marks, card.Position)
			changed = true
		}
		if b.pending[card.Position] {
			delete(b.pending, card.Position)
			changed = true
		}
	}
	b.mu.Unlock()
	if changed {
		b.poke()
	}
}

func (b *RevealBoard) cardAt(pos int) *models.Card {
	snap := b.store.Snapshot()
	for i := range snap.Cards {
		if snap.Cards[i].Position == pos {
			return &snap.Cards[i]
		}
	}
	return nil
}

func (b *RevealBoard) broadcast(ev MarkEvent) {
	if b.publishMark != nil {
		b.publishMark(ev)
	}
}

func (b *RevealBoard) poke() {
	if b.touch != nil {
		b.touch()
	}
}

// classify grades a revealed color against the team that held the turn.
func classify(color models.CardColor, turnTeam models.Team) DecorationClass {
	switch {
	case color == models.ColorAssassin:
		return DecorationAssassin
	case color.TeamOf() == models.TeamNone:
		return DecorationNeutral
	case color.TeamOf() == turnTeam:
		return DecorationOwn
	default:
		return DecorationEnemy
	}
}
