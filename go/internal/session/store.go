package session

import (
	"sync"

	"github.com/google/uuid"
	"github.com/mdev84/spyline/go/internal/models"
)

// boardSize bounds the clamp on remaining-card counters.
const boardSize = 25

// Snapshot is an immutable view of the canonical state at one version.
// Readers must not mutate the slices; every refresh builds new ones.
type Snapshot struct {
	Game    *models.Game
	Cards   []models.Card
	Members []models.Member
	Key     map[int]models.CardColor
	Version uint64
}

// Store owns the canonical local copies of Game, Cards and Members.
// Mutation is replace-only: a fresh fetch swaps the whole field. That
// makes interleavings of the feed, the pollers and user actions safe by
// construction; there is nothing to merge.
type Store struct {
	mu         sync.RWMutex
	game       *models.Game
	cards      []models.Card
	members    []models.Member
	key        map[int]models.CardColor
	names      map[uuid.UUID]string // last known display names, kept across failed profile lookups
	myID       uuid.UUID
	version    uint64
	feedStatus FeedStatus

	// onChange, when set, is invoked after every replace with the new
	// snapshot. Set once before the session starts; not guarded after.
	onChange func(Snapshot)
}

// NewStore creates an empty store for the given participant identity.
func NewStore(myID uuid.UUID) *Store {
	return &Store{
		myID:       myID,
		names:      make(map[uuid.UUID]string),
		feedStatus: FeedStatusInit,
	}
}

// OnChange registers the single change callback. Must be called before
// any replace.
func (s *Store) OnChange(fn func(Snapshot)) {
	s.onChange = fn
}

// MyID returns the local participant identity.
func (s *Store) MyID() uuid.UUID { return s.myID }

func (s *Store) bumpLocked() Snapshot {
	s.version++
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Game:    s.game,
		Cards:   s.cards,
		Members: s.members,
		Key:     s.key,
		Version: s.version,
	}
}

func (s *Store) publish(snap Snapshot) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}

// ReplaceAll atomically swaps every canonical entity at once. Used by
// the initial load and full refreshes. A nil key leaves the previous
// key in place so a spymaster does not lose it on a partial refresh.
func (s *Store) ReplaceAll(game *models.Game, cards []models.Card, members []models.Member, key []models.KeyEntry) {
	s.mu.Lock()
	s.game = game
	s.cards = cards
	s.replaceMembersLocked(members)
	if key != nil {
		s.key = keyMap(key)
	}
	snap := s.bumpLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// ReplaceGame swaps the game record.
func (s *Store) ReplaceGame(game *models.Game) {
	s.mu.Lock()
	s.game = game
	snap := s.bumpLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// ReplaceCards swaps the board.
func (s *Store) ReplaceCards(cards []models.Card) {
	s.mu.Lock()
	s.cards = cards
	snap := s.bumpLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// ReplaceMembers swaps the roster wholesale. Members with an empty name
// fall back to the last name this session saw for them, so a failed
// profile lookup degrades instead of blanking the roster.
func (s *Store) ReplaceMembers(members []models.Member) {
	s.mu.Lock()
	s.replaceMembersLocked(members)
	snap := s.bumpLocked()
	s.mu.Unlock()
	s.publish(snap)
}

func (s *Store) replaceMembersLocked(members []models.Member) {
	for i := range members {
		if members[i].Name == "" {
			if cached, ok := s.names[members[i].ID]; ok {
				members[i].Name = cached
			} else {
				members[i].Name = shortID(members[i].ID)
			}
		} else {
			s.names[members[i].ID] = members[i].Name
		}
	}
	s.members = members
}

// ReplaceKey swaps the spymaster key.
func (s *Store) ReplaceKey(key []models.KeyEntry) {
	s.mu.Lock()
	s.key = keyMap(key)
	snap := s.bumpLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// SetFeedStatus records the change-subscription health. Status never
// blocks correctness; the pollers alone are sufficient.
func (s *Store) SetFeedStatus(status FeedStatus) {
	s.mu.Lock()
	s.feedStatus = status
	snap := s.bumpLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// FeedStatus returns the current subscription health.
func (s *Store) FeedStatus() FeedStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.feedStatus
}

// Snapshot returns the current canonical view.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Game returns the canonical game record, which may be nil before the
// initial load completes.
func (s *Store) Game() *models.Game {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.game
}

// MemberByID resolves a participant from the current roster.
func (s *Store) MemberByID(id uuid.UUID) *models.Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.members {
		if s.members[i].ID == id {
			return &s.members[i]
		}
	}
	return nil
}

// MyMember resolves the local participant's roster entry.
func (s *Store) MyMember() *models.Member {
	return s.MemberByID(s.myID)
}

// AmSeated reports whether the local participant holds a seat. Pure
// spectators derive the same state but never submit actions.
func (s *Store) AmSeated() bool {
	m := s.MyMember()
	return m != nil && m.Role.Seated()
}

// AmSpymaster reports whether the local participant is a key-holder.
func (s *Store) AmSpymaster() bool {
	m := s.MyMember()
	return m != nil && m.Spymaster
}

// MyTeam returns the local participant's team, TeamNone if unassigned.
func (s *Store) MyTeam() models.Team {
	return s.MyMember().TeamOrNone()
}

// IsMyTurn reports whether the active turn belongs to my team.
func (s *Store) IsMyTurn() bool {
	s.mu.RLock()
	g := s.game
	s.mu.RUnlock()
	if !g.Active() {
		return false
	}
	return g.TurnTeam != models.TeamNone && g.TurnTeam == s.MyTeam()
}

// HasActiveClue reports whether a clue pair is currently set.
func (s *Store) HasActiveClue() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, _, ok := s.game.Clue()
	return ok
}

// Remaining returns the team's remaining-card counter clamped to
// [0, boardSize].
func (s *Store) Remaining(t models.Team) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := s.game.RemainingFor(t)
	if n > boardSize {
		return boardSize
	}
	return n
}

// InferredWinner returns the winning team, preferring the authoritative
// field and falling back to counter inference to mask backend
// propagation delay: the moment either team's clamped remaining count
// reaches zero, that team's opponent is the winner. The inference is a
// presentation overlay only; it never feeds a remote call.
func (s *Store) InferredWinner() (models.Team, bool) {
	s.mu.RLock()
	g := s.game
	s.mu.RUnlock()
	if g == nil {
		return models.TeamNone, false
	}
	if g.Winner != nil && *g.Winner != models.TeamNone {
		return *g.Winner, true
	}
	if g.Status == models.GameStatusSetup {
		// Counters are not dealt yet; their zero values mean nothing.
		return models.TeamNone, false
	}
	for _, t := range []models.Team{models.TeamRed, models.TeamBlue} {
		if g.RemainingFor(t) == 0 {
			return t.Opponent(), true
		}
	}
	return models.TeamNone, false
}

func keyMap(entries []models.KeyEntry) map[int]models.CardColor {
	m := make(map[int]models.CardColor, len(entries))
	for _, e := range entries {
		m[e.Position] = e.Color
	}
	return m
}

func shortID(id uuid.UUID) string {
	return "agent-" + id.String()[:8]
}
