package session

import (
	"github.com/google/uuid"
	"github.com/mdev84/spyline/go/clients/gameapi"
	"github.com/mdev84/spyline/go/internal/models"
)

// SessionState is the full derived view handed to the presentation
// layer. It is assembled fresh on every request; nothing in it aliases
// mutable internals.
type SessionState struct {
	Version   uint64     `json:"version"`
	LobbyCode string     `json:"lobby_code,omitempty"`
	Feed      FeedStatus `json:"feed_status"`

	Game    *models.Game    `json:"game,omitempty"`
	Cards   []models.Card   `json:"cards"`
	Members []models.Member `json:"members"`

	MyID        uuid.UUID   `json:"my_id"`
	MyTeam      models.Team `json:"my_team"`
	Seated      bool        `json:"seated"`
	Spymaster   bool        `json:"spymaster"`
	IsMyTurn    bool        `json:"is_my_turn"`
	HasClue     bool        `json:"has_clue"`
	RedLeft     int         `json:"red_left"`
	BlueLeft    int         `json:"blue_left"`
	Winner      models.Team `json:"winner,omitempty"`
	WinnerKnown bool        `json:"winner_known"`

	TurnTotalSeconds int  `json:"turn_total_seconds"`
	TurnRemaining    int  `json:"turn_remaining"`
	Timed            bool `json:"timed"`

	Marks         map[int]Mark                     `json:"marks"`
	Pending       map[int]bool                     `json:"pending"`
	Decorations   map[int]Decoration               `json:"decorations"`
	ConfirmReveal bool                             `json:"confirm_reveal"`
	Hints         map[models.Team][]HintEntry      `json:"hints"`
	Picker        *PickerState                     `json:"picker,omitempty"`
	Key           map[int]models.CardColor         `json:"key,omitempty"`
	Powers        map[gameapi.PowerKind]bool       `json:"powers"`
	Busy          bool                             `json:"busy"`
	Notices       []Notice                         `json:"notices,omitempty"`
}

// State assembles the current full view.
func (s *Session) State() *SessionState {
	snap := s.store.Snapshot()
	g := snap.Game

	state := &SessionState{
		Version:       s.stateVersion.Load(),
		Feed:          s.store.FeedStatus(),
		Game:          g,
		Cards:         snap.Cards,
		Members:       snap.Members,
		MyID:          s.store.MyID(),
		MyTeam:        s.store.MyTeam(),
		Seated:        s.store.AmSeated(),
		Spymaster:     s.store.AmSpymaster(),
		IsMyTurn:      s.store.IsMyTurn(),
		HasClue:       s.store.HasActiveClue(),
		RedLeft:       s.store.Remaining(models.TeamRed),
		BlueLeft:      s.store.Remaining(models.TeamBlue),
		Marks:         s.board.Marks(),
		Pending:       s.board.Pending(),
		Decorations:   s.board.Decorations(),
		ConfirmReveal: s.board.Confirm(),
		Hints:         s.hints.Trails(),
		Picker:        s.powers.State(),
		Busy:          s.busy.Load(),
		Notices:       s.Notices(),
	}

	if code, ok := s.lobbyCode.Load().(string); ok {
		state.LobbyCode = code
	}
	if winner, ok := s.store.InferredWinner(); ok {
		state.Winner = winner
		state.WinnerKnown = true
	}
	if g != nil {
		state.TurnTotalSeconds = s.turn.TotalSeconds(g)
		state.Timed = s.turn.Timed(g)
		state.TurnRemaining = s.turn.Remaining(g)
	}
	if s.store.AmSpymaster() {
		state.Key = snap.Key
	}

	state.Powers = map[gameapi.PowerKind]bool{
		gameapi.PowerPeek:       s.powers.Available(gameapi.PowerPeek),
		gameapi.PowerSwap:       s.powers.Available(gameapi.PowerSwap),
		gameapi.PowerExtraGuess: s.powers.Available(gameapi.PowerExtraGuess),
	}
	return state
}
