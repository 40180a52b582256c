package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mdev84/spyline/go/clients/gameapi"
	"github.com/mdev84/spyline/go/internal/models"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// API is the full remote surface the session consumes. *gameapi.Client
// satisfies it; tests substitute fakes.
type API interface {
	GetGame(ctx context.Context, gameID uuid.UUID) (*models.Game, error)
	ListCards(ctx context.Context, gameID uuid.UUID) ([]models.Card, error)
	ListMembers(ctx context.Context, lobbyID uuid.UUID) ([]models.Member, error)
	ListProfiles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]gameapi.Profile, error)
	GetSpymasterKey(ctx context.Context, gameID uuid.UUID) ([]models.KeyEntry, error)
	GetLobbyCode(ctx context.Context, lobbyID uuid.UUID) (string, error)
	SetClue(ctx context.Context, gameID uuid.UUID, word string, number int) error
	RevealCard(ctx context.Context, gameID uuid.UUID, position int) (*models.RevealResult, error)
	EndTurn(ctx context.Context, gameID uuid.UUID) error
	UsePower(ctx context.Context, gameID uuid.UUID, kind gameapi.PowerKind, positions []int) error
}

// Config carries the session's tunables.
type Config struct {
	GameID          uuid.UUID
	LobbyID         uuid.UUID
	MemberID        uuid.UUID
	Feed            FeedConfig
	GameCardsEvery  time.Duration // fast poll interval
	MembersEvery    time.Duration // slow poll interval
	TurnSeconds     int           // fallback turn duration; 0 disables the clock
	HintLimit       int
	StreakThreshold int
	FetchKey        bool // spymaster opt-in for the hidden key
}

// Session wires the synchronization layer and its consumers into one
// lifecycle. Everything it spawns is scoped to the context given to
// Start and torn down by Close, so a stale session can never keep
// fetching or auto-advancing after the user leaves.
type Session struct {
	cfg   Config
	api   API
	clock clockwork.Clock

	store    *Store
	feed     *Feed
	poller   *Poller
	turn     *TurnClock
	advancer *Advancer
	board    *RevealBoard
	hints    *HintTrail
	powers   *PowerPicker

	busy         atomic.Bool // one outstanding action submission of any kind
	stateVersion atomic.Uint64
	lobbyCode    atomic.Value // string

	mu           sync.Mutex
	prevRevealed map[int]bool
	baselined    bool
	notices      []Notice

	onUpdate func(version uint64) // presentation bridge poke; nil-safe

	ctx    context.Context
	cancel context.CancelFunc
}

// New assembles a session. The feed is optional: pass a nil feed
// constructor error through and the session runs poll-only.
func New(cfg Config, api API, clock clockwork.Clock, trailStore TrailStore) *Session {
	s := &Session{
		cfg:          cfg,
		api:          api,
		clock:        clock,
		store:        NewStore(cfg.MemberID),
		prevRevealed: make(map[int]bool),
	}

	s.hints = NewHintTrail(trailStore, cfg.GameID, cfg.HintLimit)
	s.advancer = NewAdvancer(api, s.store, cfg.GameID, s.pushNotice)
	s.turn = NewTurnClock(clock, cfg.TurnSeconds,
		func(int) { s.touch() },
		func() { go s.advancer.Trigger(s.ctx, TriggerTimerExpired) },
	)
	s.board = NewRevealBoard(RevealBoardDeps{
		API:         api,
		Store:       s.store,
		GameID:      cfg.GameID,
		Clock:       clock,
		PublishMark: s.publishMark,
		OnResult:    s.onRevealResult,
		AcquireBusy: func() bool { return s.busy.CompareAndSwap(false, true) },
		ReleaseBusy: func() { s.busy.Store(false) },
		Notify:      s.pushNotice,
		Touch:       s.touch,
	})
	s.powers = NewPowerPicker(s.store, cfg.StreakThreshold, s.submitPower)
	s.poller = NewPoller(clock, cfg.GameCardsEvery, cfg.MembersEvery, s.refreshGameCards, s.refreshMembers)

	s.store.OnChange(s.onSnapshot)
	return s
}

// OnUpdate registers the presentation bridge callback, invoked with a
// fresh state version whenever anything worth re-rendering changed.
// Must be set before Start.
func (s *Session) OnUpdate(fn func(version uint64)) { s.onUpdate = fn }

// Store exposes the canonical store for read-only consumers.
func (s *Session) Store() *Store { return s.store }

// Start performs the initial load and brings up the update channels.
// An initial load failure is session-fatal: no partial state is kept
// and the caller gets the error to drive an explicit retry.
func (s *Session) Start(ctx context.Context) error {
	if s.cfg.MemberID == uuid.Nil {
		return fmt.Errorf("session has no participant identity")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)

	// Rehydrate before the first fetch: the initial snapshot can append
	// to the trail and persist it, and writing before reading back would
	// wipe the history this reconnect is supposed to keep.
	s.hints.Rehydrate(s.ctx)

	if err := s.refreshAll(s.ctx); err != nil {
		s.cancel()
		return fmt.Errorf("initial load failed: %w", err)
	}

	feed, err := NewFeed(s.cfg.Feed, s.cfg.GameID, s.cfg.LobbyID, s.onChangeEvent, s.board.ApplyRemoteMark, s.store.SetFeedStatus)
	if err != nil {
		// Poll-only mode: correct, just higher latency.
		log.Warn().Err(err).Msg("change feed unavailable, running poll-only")
		s.store.SetFeedStatus(feedStatusFromErr(err))
	} else {
		s.feed = feed
		if err := feed.Start(); err != nil {
			log.Warn().Err(err).Msg("change feed subscribe failed, running poll-only")
			feed.Close()
			s.feed = nil
			s.store.SetFeedStatus(FeedStatusErrored)
		}
	}

	go s.poller.Run(s.ctx)
	go s.turn.Run(s.ctx, s.store.Game)

	if code, err := s.api.GetLobbyCode(s.ctx, s.cfg.LobbyID); err != nil {
		log.Warn().Err(err).Msg("failed to fetch lobby code")
	} else {
		s.lobbyCode.Store(code)
	}

	log.Info().
		Str("game_id", s.cfg.GameID.String()).
		Str("lobby_id", s.cfg.LobbyID.String()).
		Msg("session started")
	return nil
}

// Close tears the session down: subscription, pollers, clock, pending
// timers all die with the context.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.feed != nil {
		s.feed.Close()
		s.feed = nil
	}
	log.Info().Str("game_id", s.cfg.GameID.String()).Msg("session closed")
}

// refreshAll fetches game, cards, members and (for an opted-in
// spymaster) the hidden key, then replaces everything atomically.
func (s *Session) refreshAll(ctx context.Context) error {
	game, err := s.api.GetGame(ctx, s.cfg.GameID)
	if err != nil {
		return fmt.Errorf("fetch game: %w", err)
	}
	cards, err := s.api.ListCards(ctx, s.cfg.GameID)
	if err != nil {
		return fmt.Errorf("fetch cards: %w", err)
	}
	members, err := s.api.ListMembers(ctx, s.cfg.LobbyID)
	if err != nil {
		return fmt.Errorf("fetch members: %w", err)
	}
	s.fillProfiles(ctx, members)

	var key []models.KeyEntry
	if s.cfg.FetchKey && isSpymaster(members, s.cfg.MemberID) {
		key, err = s.api.GetSpymasterKey(ctx, s.cfg.GameID)
		if err != nil {
			return fmt.Errorf("fetch spymaster key: %w", err)
		}
	}

	s.store.ReplaceAll(game, cards, members, key)
	return nil
}

// refreshGameCards is the light-weight fast-poll refresh.
func (s *Session) refreshGameCards(ctx context.Context) error {
	game, err := s.api.GetGame(ctx, s.cfg.GameID)
	if err != nil {
		return fmt.Errorf("fetch game: %w", err)
	}
	cards, err := s.api.ListCards(ctx, s.cfg.GameID)
	if err != nil {
		return fmt.Errorf("fetch cards: %w", err)
	}
	s.store.ReplaceGame(game)
	s.store.ReplaceCards(cards)
	return nil
}

// refreshMembers is the slow-poll roster refresh. Profile lookups are
// best-effort; a failure degrades to cached display names.
func (s *Session) refreshMembers(ctx context.Context) error {
	members, err := s.api.ListMembers(ctx, s.cfg.LobbyID)
	if err != nil {
		return fmt.Errorf("fetch members: %w", err)
	}
	s.fillProfiles(ctx, members)
	s.store.ReplaceMembers(members)
	return nil
}

func (s *Session) fillProfiles(ctx context.Context, members []models.Member) {
	ids := make([]uuid.UUID, 0, len(members))
	for i := range members {
		ids = append(ids, members[i].ID)
	}
	profiles, err := s.api.ListProfiles(ctx, ids)
	if err != nil {
		log.Debug().Err(err).Msg("profile lookup failed, using cached names")
		return
	}
	for i := range members {
		if p, ok := profiles[members[i].ID]; ok {
			members[i].Name = p.Name
			members[i].AvatarURL = p.AvatarURL
		}
	}
}

// onChangeEvent re-fetches only the entities implicated by the event
// scope. Called from the feed's delivery goroutine.
func (s *Session) onChangeEvent(scope Scope) {
	ctx := s.ctx
	go func() {
		var err error
		switch scope {
		case ScopeGame, ScopeCards:
			err = s.refreshGameCards(ctx)
		case ScopeMembers:
			err = s.refreshMembers(ctx)
		}
		if err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Str("scope", string(scope)).Msg("change-event refresh failed")
		}
	}()
}

// onSnapshot runs after every canonical replace: it feeds the derived
// components and pokes the bridge.
func (s *Session) onSnapshot(snap Snapshot) {
	if snap.Cards != nil {
		s.board.SyncCards(snap.Cards)
		s.observeCardTransitions(snap)
	}
	if snap.Game != nil {
		s.turn.Poke()
		s.hints.ObserveGame(s.ctxOrBackground(), snap.Game, snap.Members)
		if reason := s.advancer.ObserveGame(snap.Game); reason != "" {
			go s.advancer.Trigger(s.ctxOrBackground(), reason)
		}
	}
	s.touch()
}

// observeCardTransitions detects hidden->revealed flips against the
// previous snapshot and feeds them to the hint trail. The first board
// snapshot only seeds the baseline: cards revealed before this session
// joined are history, not fresh guesses.
func (s *Session) observeCardTransitions(snap Snapshot) {
	s.mu.Lock()
	fresh := make(map[int]bool, len(snap.Cards))
	for _, card := range snap.Cards {
		fresh[card.Position] = card.Revealed
	}
	if !s.baselined {
		s.baselined = true
		s.prevRevealed = fresh
		s.mu.Unlock()
		return
	}
	var revealed []models.Card
	for _, card := range snap.Cards {
		if card.Revealed && !s.prevRevealed[card.Position] {
			revealed = append(revealed, card)
		}
	}
	s.prevRevealed = fresh
	s.mu.Unlock()

	for _, card := range revealed {
		team := models.TeamNone
		if card.RevealedBy != nil {
			team = s.store.MemberByID(*card.RevealedBy).TeamOrNone()
		}
		s.hints.ObserveReveal(s.ctxOrBackground(), card, team)
	}
}

// onRevealResult applies the short-lived optimistic overlay after a
// successful reveal and runs the post-reveal advance check, then kicks
// a real refresh to replace the overlay with authoritative state.
func (s *Session) onRevealResult(result *models.RevealResult) {
	myTeam := s.store.MyTeam()
	g := s.store.Game()
	if g == nil {
		return
	}
	wasMyTurn := g.Active() && g.TurnTeam == myTeam

	overlay := overlayGame(g, result)
	s.store.ReplaceGame(overlay)
	s.overlayCard(result)

	guesses, hasGuesses := overlay.Guesses()
	if wasMyTurn && overlay.Active() && overlay.TurnTeam == myTeam && hasGuesses && guesses == 0 {
		go s.advancer.Trigger(s.ctxOrBackground(), TriggerPostReveal)
	}

	go func() {
		if err := s.refreshGameCards(s.ctxOrBackground()); err != nil {
			log.Warn().Err(err).Msg("post-reveal refresh failed")
		}
	}()
}

// overlayCard flips the revealed card in a copied board so the UI does
// not wait a round-trip to show it.
func (s *Session) overlayCard(result *models.RevealResult) {
	snap := s.store.Snapshot()
	cards := make([]models.Card, len(snap.Cards))
	copy(cards, snap.Cards)
	for i := range cards {
		if cards[i].Position == result.Position {
			color := result.Color
			me := s.store.MyID()
			cards[i].Revealed = true
			cards[i].Color = &color
			cards[i].RevealedBy = &me
			break
		}
	}
	s.store.ReplaceCards(cards)
}

// overlayGame builds the optimistic post-reveal game record. It is a
// copy; the next authoritative fetch discards it wholesale.
func overlayGame(g *models.Game, r *models.RevealResult) *models.Game {
	overlay := *g
	overlay.Status = r.Status
	overlay.TurnTeam = r.TurnTeam
	overlay.Winner = r.Winner
	overlay.GuessesRemaining = r.GuessesRemaining
	overlay.RedRemaining = r.RedRemaining
	overlay.BlueRemaining = r.BlueRemaining
	if r.TurnStartedAt != nil {
		overlay.TurnStartedAt = r.TurnStartedAt
	}
	if r.TurnTeam != g.TurnTeam {
		// The reveal ended the turn server-side; the clue is gone.
		overlay.ClueWord = nil
		overlay.ClueNumber = nil
	}
	return &overlay
}

// GiveClue submits the clue pair for the current turn.
func (s *Session) GiveClue(ctx context.Context, word string, number int) error {
	return s.withBusy(func() error {
		if err := s.api.SetClue(ctx, s.cfg.GameID, word, number); err != nil {
			s.pushNotice(Notice{Level: NoticeError, Message: "clue rejected", Detail: err.Error(), At: time.Now()})
			return err
		}
		return s.refreshGameCards(ctx)
	})
}

// Interact forwards a board interaction to the reveal workflow.
func (s *Session) Interact(ctx context.Context, pos int) error {
	return s.board.Interact(ctx, pos)
}

// CancelMark clears my own reveal mark on a position.
func (s *Session) CancelMark(pos int) { s.board.Cancel(pos) }

// EndTurnNow is the explicit, user-initiated end turn.
func (s *Session) EndTurnNow(ctx context.Context) error {
	return s.withBusy(func() error {
		if err := s.api.EndTurn(ctx, s.cfg.GameID); err != nil {
			s.pushNotice(Notice{Level: NoticeError, Message: "end turn failed", Detail: err.Error(), At: time.Now()})
			return err
		}
		return s.refreshGameCards(ctx)
	})
}

// Powers exposes the power picker.
func (s *Session) Powers() *PowerPicker { return s.powers }

// Board exposes the reveal workflow.
func (s *Session) Board() *RevealBoard { return s.board }

// Hints exposes the hint trail.
func (s *Session) Hints() *HintTrail { return s.hints }

// SetConfirmReveal flips the confirm-before-reveal preference.
func (s *Session) SetConfirmReveal(confirm bool) {
	s.board.SetConfirm(confirm)
	s.touch()
}

func (s *Session) submitPower(ctx context.Context, kind gameapi.PowerKind, positions []int) error {
	return s.withBusy(func() error {
		if err := s.api.UsePower(ctx, s.cfg.GameID, kind, positions); err != nil {
			s.pushNotice(Notice{Level: NoticeError, Message: "power failed", Detail: err.Error(), At: time.Now()})
			return err
		}
		return s.refreshGameCards(ctx)
	})
}

// withBusy runs one action under the global submission latch. A second
// attempt while busy is dropped with an error, not deferred.
func (s *Session) withBusy(fn func() error) error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrActionBusy
	}
	defer s.busy.Store(false)
	return fn()
}

func (s *Session) publishMark(ev MarkEvent) {
	if s.feed == nil {
		return
	}
	if err := s.feed.PublishMark(ev); err != nil {
		log.Warn().Err(err).Msg("failed to broadcast mark")
	}
}

// pushNotice appends a dismissable notice, keeping the most recent few.
func (s *Session) pushNotice(n Notice) {
	s.mu.Lock()
	s.notices = append(s.notices, n)
	if len(s.notices) > 10 {
		s.notices = s.notices[len(s.notices)-10:]
	}
	s.mu.Unlock()
	s.touch()
}

// Notices returns the pending notices and clears them.
func (s *Session) Notices() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	return out
}

func (s *Session) touch() {
	v := s.stateVersion.Add(1)
	if s.onUpdate != nil {
		s.onUpdate(v)
	}
}

func (s *Session) ctxOrBackground() context.Context {
	if s.ctx != nil {
		return s.ctx
	}
	return context.Background()
}

func isSpymaster(members []models.Member, id uuid.UUID) bool {
	for i := range members {
		if members[i].ID == id {
			return members[i].Spymaster
		}
	}
	return false
}

func feedStatusFromErr(err error) FeedStatus {
	if err == nil {
		return FeedStatusLive
	}
	if errors.Is(err, nats.ErrTimeout) || isTimeout(err) {
		return FeedStatusTimedOut
	}
	return FeedStatusErrored
}

type timeouter interface{ Timeout() bool }

func isTimeout(err error) bool {
	for e := err; e != nil; {
		if t, ok := e.(timeouter); ok && t.Timeout() {
			return true
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	return false
}
