package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/mdev84/spyline/go/internal/models"
	"github.com/rs/zerolog/log"
)

// defaultHintLimit bounds each team's stored entries.
const defaultHintLimit = 6

// Guess is one recorded guess under a clue.
type Guess struct {
	Word    string `json:"word"`
	Correct bool   `json:"correct"`
}

// HintEntry is one clue and the guesses made in response to it.
type HintEntry struct {
	Team    models.Team `json:"team"`
	Turn    int         `json:"turn"`
	Giver   uuid.UUID   `json:"giver,omitempty"`
	Clue    string      `json:"clue"`
	Number  int         `json:"number"`
	Guesses []Guess     `json:"guesses"`
}

// sameIdentity reports whether two entries describe the same clue. The
// identity survives duplicate delivery from the push and poll channels.
func (e HintEntry) sameIdentity(other HintEntry) bool {
	return e.Team == other.Team && e.Turn == other.Turn &&
		e.Clue == other.Clue && e.Number == other.Number
}

// TrailStore persists a hint trail across reconnects.
type TrailStore interface {
	SaveTrail(ctx context.Context, gameID uuid.UUID, trails map[models.Team][]HintEntry) error
	LoadTrail(ctx context.Context, gameID uuid.UUID) (map[models.Team][]HintEntry, error)
}

// HintTrail aggregates the per-team clue and guess history out of the
// stream of game and card changes. It keeps at most limit entries per
// team and persists itself under the game identifier so a reconnect
// does not lose history.
type HintTrail struct {
	mu     sync.Mutex
	limit  int
	trails map[models.Team][]HintEntry
	store  TrailStore
	gameID uuid.UUID
}

// NewHintTrail builds an empty trail. store may be nil for an
// in-memory-only trail; limit <= 0 falls back to the default bound.
func NewHintTrail(store TrailStore, gameID uuid.UUID, limit int) *HintTrail {
	if limit <= 0 {
		limit = defaultHintLimit
	}
	return &HintTrail{
		limit:  limit,
		trails: make(map[models.Team][]HintEntry),
		store:  store,
		gameID: gameID,
	}
}

// Rehydrate loads the persisted trail once per session. Failures leave
// the trail empty; history loss is preferable to a blocked start.
func (h *HintTrail) Rehydrate(ctx context.Context) {
	if h.store == nil {
		return
	}
	trails, err := h.store.LoadTrail(ctx, h.gameID)
	if err != nil {
		log.Warn().Err(err).Msg("failed to rehydrate hint trail")
		return
	}
	if trails == nil {
		return
	}
	h.mu.Lock()
	h.trails = trails
	h.mu.Unlock()
	log.Info().
		Int("red_entries", len(trails[models.TeamRed])).
		Int("blue_entries", len(trails[models.TeamBlue])).
		Msg("hint trail rehydrated")
}

// ObserveGame records a new entry when the observed clue changes for a
// team that definitely holds the turn.
func (h *HintTrail) ObserveGame(ctx context.Context, g *models.Game, members []models.Member) {
	if !g.Active() || g.TurnTeam == models.TeamNone {
		return
	}
	word, number, ok := g.Clue()
	if !ok {
		return
	}

	entry := HintEntry{
		Team:    g.TurnTeam,
		Turn:    g.Turn,
		Clue:    word,
		Number:  number,
		Guesses: []Guess{},
	}
	for i := range members {
		if members[i].TeamOrNone() == g.TurnTeam && members[i].Spymaster {
			entry.Giver = members[i].ID
			break
		}
	}

	h.mu.Lock()
	for _, existing := range h.trails[g.TurnTeam] {
		if existing.sameIdentity(entry) {
			h.mu.Unlock()
			return
		}
	}
	h.appendLocked(g.TurnTeam, entry)
	h.mu.Unlock()

	h.persist(ctx)
}

// ObserveReveal records a guess when a card transitions from hidden to
// revealed and its revealer's team is resolvable. If the team's list is
// empty a synthetic fallback entry is created first so the guess is
// never dropped.
func (h *HintTrail) ObserveReveal(ctx context.Context, card models.Card, revealerTeam models.Team) {
	if revealerTeam == models.TeamNone || card.Color == nil {
		return
	}
	correct := card.Color.TeamOf() == revealerTeam

	h.mu.Lock()
	entries := h.trails[revealerTeam]
	if len(entries) == 0 {
		h.appendLocked(revealerTeam, HintEntry{
			Team:    revealerTeam,
			Guesses: []Guess{},
		})
		entries = h.trails[revealerTeam]
	}
	last := &entries[len(entries)-1]
	last.Guesses = append(last.Guesses, Guess{Word: card.Word, Correct: correct})
	h.mu.Unlock()

	h.persist(ctx)
}

// Trails returns a deep copy of both teams' histories.
func (h *HintTrail) Trails() map[models.Team][]HintEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return copyTrails(h.trails)
}

func (h *HintTrail) appendLocked(team models.Team, entry HintEntry) {
	entries := append(h.trails[team], entry)
	if len(entries) > h.limit {
		entries = entries[len(entries)-h.limit:]
	}
	h.trails[team] = entries
}

func (h *HintTrail) persist(ctx context.Context) {
	if h.store == nil {
		return
	}
	h.mu.Lock()
	snapshot := copyTrails(h.trails)
	h.mu.Unlock()
	if err := h.store.SaveTrail(ctx, h.gameID, snapshot); err != nil {
		log.Warn().Err(err).Msg("failed to persist hint trail")
	}
}

func copyTrails(in map[models.Team][]HintEntry) map[models.Team][]HintEntry {
	out := make(map[models.Team][]HintEntry, len(in))
	for team, entries := range in {
		copied := make([]HintEntry, len(entries))
		copy(copied, entries)
		for i := range copied {
			guesses := make([]Guess, len(copied[i].Guesses))
			copy(guesses, copied[i].Guesses)
			copied[i].Guesses = guesses
		}
		out[team] = copied
	}
	return out
}
