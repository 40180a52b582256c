package models

import (
	"time"

	"github.com/google/uuid"
)

// GameStatus defines the lifecycle state of a game.
type GameStatus string

const (
	GameStatusSetup     GameStatus = "setup"
	GameStatusActive    GameStatus = "active"
	GameStatusFinished  GameStatus = "finished"
	GameStatusAbandoned GameStatus = "abandoned"
)

// Terminal reports whether the game can no longer change.
func (s GameStatus) Terminal() bool {
	return s == GameStatusFinished || s == GameStatusAbandoned
}

// Team identifies one of the two sides, or none.
type Team string

const (
	TeamRed  Team = "red"
	TeamBlue Team = "blue"
	TeamNone Team = "none"
)

// Opponent returns the other side. TeamNone has no opponent.
func (t Team) Opponent() Team {
	switch t {
	case TeamRed:
		return TeamBlue
	case TeamBlue:
		return TeamRed
	}
	return TeamNone
}

// Color returns the card color owned by the team.
func (t Team) Color() CardColor {
	switch t {
	case TeamRed:
		return ColorRed
	case TeamBlue:
		return ColorBlue
	}
	return ColorNeutral
}

// Extension carries server-owned side state attached to the game record.
// The client never writes it; it only reads streaks, power markers and
// time modifiers out of it.
type Extension struct {
	RedStreak   int            `json:"red_streak,omitempty"`
	BlueStreak  int            `json:"blue_streak,omitempty"`
	RedTimeCut  bool           `json:"red_time_cut,omitempty"`
	BlueTimeCut bool           `json:"blue_time_cut,omitempty"`
	PowersUsed  map[string]int `json:"powers_used,omitempty"` // power kind -> turn ordinal it was used on
}

// StreakFor returns the consecutive own-color reveal count for a team.
func (e Extension) StreakFor(t Team) int {
	switch t {
	case TeamRed:
		return e.RedStreak
	case TeamBlue:
		return e.BlueStreak
	}
	return 0
}

// TimeCutFor reports whether the team's turns run on a halved clock.
func (e Extension) TimeCutFor(t Team) bool {
	switch t {
	case TeamRed:
		return e.RedTimeCut
	case TeamBlue:
		return e.BlueTimeCut
	}
	return false
}

// PowerUsedOn reports whether the named power was already spent on the
// given turn ordinal.
func (e Extension) PowerUsedOn(kind string, turn int) bool {
	used, ok := e.PowersUsed[kind]
	return ok && used == turn
}

// Game is the singleton per-session record. It is only ever replaced
// wholesale with a freshly fetched copy, never field-patched.
type Game struct {
	ID               uuid.UUID  `json:"id"`
	LobbyID          uuid.UUID  `json:"lobby_id"`
	Status           GameStatus `json:"status"`
	TurnTeam         Team       `json:"turn_team"`
	Turn             int        `json:"turn"` // ordinal, increments on every turn change
	Winner           *Team      `json:"winner,omitempty"`
	ClueWord         *string    `json:"clue_word,omitempty"`
	ClueNumber       *FlexInt   `json:"clue_number,omitempty"`
	GuessesRemaining *FlexInt   `json:"guesses_remaining,omitempty"`
	TurnStartedAt    *time.Time `json:"turn_started_at,omitempty"`
	TurnSeconds      int        `json:"turn_seconds,omitempty"` // 0 means untimed turns
	RedRemaining     FlexInt    `json:"red_remaining"`
	BlueRemaining    FlexInt    `json:"blue_remaining"`
	Ext              Extension  `json:"ext,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Clue returns the active clue pair. A clue only exists when both the
// word and the number are present; a half-set pair is treated as absent.
func (g *Game) Clue() (string, int, bool) {
	if g == nil || g.ClueWord == nil || g.ClueNumber == nil {
		return "", 0, false
	}
	return *g.ClueWord, g.ClueNumber.Int(), true
}

// Guesses returns the remaining guess budget, or ok=false when the
// server reports none.
func (g *Game) Guesses() (int, bool) {
	if g == nil || g.GuessesRemaining == nil {
		return 0, false
	}
	n := g.GuessesRemaining.Int()
	if n < 0 {
		n = 0
	}
	return n, true
}

// Active reports whether the game is in its playable state.
func (g *Game) Active() bool {
	return g != nil && g.Status == GameStatusActive
}

// RemainingFor returns the team's remaining-card counter clamped to a
// sane non-negative bound.
func (g *Game) RemainingFor(t Team) int {
	if g == nil {
		return 0
	}
	var n int
	switch t {
	case TeamRed:
		n = g.RedRemaining.Int()
	case TeamBlue:
		n = g.BlueRemaining.Int()
	}
	if n < 0 {
		return 0
	}
	return n
}
