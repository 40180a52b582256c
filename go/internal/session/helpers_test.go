package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/mdev84/spyline/go/internal/models"
)

var (
	testGameID  = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	testLobbyID = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	testMyID    = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	testOtherID = uuid.MustParse("44444444-4444-4444-4444-444444444444")
)

// activeGame builds a minimal active game on the given team's turn.
func activeGame(turnTeam models.Team, turn int) *models.Game {
	return &models.Game{
		ID:            testGameID,
		LobbyID:       testLobbyID,
		Status:        models.GameStatusActive,
		TurnTeam:      turnTeam,
		Turn:          turn,
		RedRemaining:  models.FlexInt(8),
		BlueRemaining: models.FlexInt(7),
	}
}

// withClue attaches a clue pair and a start time to a game.
func withClue(g *models.Game, word string, number int, startedAt time.Time) *models.Game {
	g.ClueWord = &word
	g.ClueNumber = models.NewFlexInt(number)
	g.TurnStartedAt = &startedAt
	return g
}

// seatedMember builds a seated player on the given team.
func seatedMember(id uuid.UUID, team models.Team, spymaster bool) models.Member {
	t := team
	return models.Member{
		ID:        id,
		LobbyID:   testLobbyID,
		Team:      &t,
		Spymaster: spymaster,
		Role:      models.RolePlayer,
		Name:      "member-" + id.String()[:4],
	}
}

// spectator builds an unseated observer.
func spectator(id uuid.UUID) models.Member {
	return models.Member{
		ID:      id,
		LobbyID: testLobbyID,
		Role:    models.RoleSpectator,
		Name:    "watcher",
	}
}

// testBoard builds a 5-card concealed board.
func testBoard() []models.Card {
	words := []string{"ocean", "river", "stone", "cloud", "ember"}
	cards := make([]models.Card, len(words))
	for i, w := range words {
		cards[i] = models.Card{Position: i, Word: w}
	}
	return cards
}

// seededStore builds a store with a game, board and roster where the
// local participant is a seated red player.
func seededStore(g *models.Game) *Store {
	s := NewStore(testMyID)
	s.ReplaceAll(g, testBoard(), []models.Member{
		seatedMember(testMyID, models.TeamRed, false),
		seatedMember(testOtherID, models.TeamBlue, false),
	}, nil)
	return s
}
