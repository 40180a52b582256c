package models

import (
	"time"

	"github.com/google/uuid"
)

// CardColor is the hidden allegiance of a board card.
type CardColor string

const (
	ColorRed      CardColor = "red"
	ColorBlue     CardColor = "blue"
	ColorNeutral  CardColor = "neutral"
	ColorAssassin CardColor = "assassin"
)

// TeamOf returns the team that owns cards of this color, or TeamNone
// for neutral and assassin cards.
func (c CardColor) TeamOf() Team {
	switch c {
	case ColorRed:
		return TeamRed
	case ColorBlue:
		return TeamBlue
	}
	return TeamNone
}

// Card is one board position. Once revealed it never reverts; the only
// client-side variance before reveal is the local mark state.
type Card struct {
	Position   int        `json:"position"`
	Word       string     `json:"word"`
	Revealed   bool       `json:"revealed"`
	Color      *CardColor `json:"color,omitempty"`
	RevealedBy *uuid.UUID `json:"revealed_by,omitempty"`
	RevealedAt *time.Time `json:"revealed_at,omitempty"`
}

// KeyEntry maps one position to its hidden color. Only meaningful for
// spymasters; the endpoint is authorization-gated server side.
type KeyEntry struct {
	Position int       `json:"position"`
	Color    CardColor `json:"color"`
}

// RevealResult is the server's response to a reveal action. It carries
// enough of the post-reveal game record for a short-lived optimistic
// overlay until the next full snapshot lands.
type RevealResult struct {
	Position         int        `json:"position"`
	Color            CardColor  `json:"color"`
	Status           GameStatus `json:"status"`
	TurnTeam         Team       `json:"turn_team"`
	Winner           *Team      `json:"winner,omitempty"`
	GuessesRemaining *FlexInt   `json:"guesses_remaining,omitempty"`
	TurnStartedAt    *time.Time `json:"turn_started_at,omitempty"`
	RedRemaining     FlexInt    `json:"red_remaining"`
	BlueRemaining    FlexInt    `json:"blue_remaining"`
}
