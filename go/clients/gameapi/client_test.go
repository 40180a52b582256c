package gameapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdev84/spyline/go/internal/models"
)

var (
	gameID  = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	lobbyID = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewClient(srv.URL, "test-token")
}

func TestGetGameDecodesSloppyCounters(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, fmt.Sprintf("/api/v1/games/%s", gameID), r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		// Counters arrive as a mix of numbers, strings and null.
		fmt.Fprintf(w, `{
			"id": %q,
			"status": "active",
			"turn_team": "red",
			"turn": 3,
			"clue_word": "ocean",
			"clue_number": "2",
			"guesses_remaining": null,
			"red_remaining": 8,
			"blue_remaining": "7"
		}`, gameID)
	})

	g, err := client.GetGame(context.Background(), gameID)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusActive, g.Status)
	assert.Equal(t, models.TeamRed, g.TurnTeam)

	word, number, ok := g.Clue()
	require.True(t, ok)
	assert.Equal(t, "ocean", word)
	assert.Equal(t, 2, number)
	assert.Equal(t, 8, g.RemainingFor(models.TeamRed))
	assert.Equal(t, 7, g.RemainingFor(models.TeamBlue))
}

func TestGetGameErrorStatus(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	_, err := client.GetGame(context.Background(), gameID)
	assert.Error(t, err)
}

func TestListCards(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, fmt.Sprintf("/api/v1/games/%s/cards", gameID), r.URL.Path)
		fmt.Fprint(w, `[
			{"position": 0, "word": "ocean", "revealed": false},
			{"position": 1, "word": "river", "revealed": true, "color": "blue"}
		]`)
	})

	cards, err := client.ListCards(context.Background(), gameID)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.False(t, cards[0].Revealed)
	require.NotNil(t, cards[1].Color)
	assert.Equal(t, models.ColorBlue, *cards[1].Color)
}

func TestRevealCard(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, fmt.Sprintf("/api/v1/games/%s/reveal", gameID), r.URL.Path)

		var payload struct {
			Position int `json:"position"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, 7, payload.Position)

		fmt.Fprint(w, `{
			"position": 7,
			"color": "red",
			"status": "active",
			"turn_team": "red",
			"guesses_remaining": 1,
			"red_remaining": 6,
			"blue_remaining": 7
		}`)
	})

	result, err := client.RevealCard(context.Background(), gameID, 7)
	require.NoError(t, err)
	assert.Equal(t, models.ColorRed, result.Color)
	assert.Equal(t, 7, result.Position)
	require.NotNil(t, result.GuessesRemaining)
	assert.Equal(t, 1, result.GuessesRemaining.Int())
}

func TestSetClue(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, fmt.Sprintf("/api/v1/games/%s/clue", gameID), r.URL.Path)

		var payload struct {
			Word   string `json:"word"`
			Number int    `json:"number"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "ocean", payload.Word)
		assert.Equal(t, 2, payload.Number)
		w.WriteHeader(http.StatusOK)
	})

	assert.NoError(t, client.SetClue(context.Background(), gameID, "ocean", 2))
}

func TestEndTurn(t *testing.T) {
	called := false
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, fmt.Sprintf("/api/v1/games/%s/end-turn", gameID), r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, client.EndTurn(context.Background(), gameID))
	assert.True(t, called)
}

func TestUsePower(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, fmt.Sprintf("/api/v1/games/%s/power", gameID), r.URL.Path)

		var payload struct {
			Kind      string `json:"kind"`
			Positions []int  `json:"positions"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "swap", payload.Kind)
		assert.Equal(t, []int{1, 3}, payload.Positions)
		w.WriteHeader(http.StatusOK)
	})

	assert.NoError(t, client.UsePower(context.Background(), gameID, PowerSwap, []int{1, 3}))
}

func TestListProfilesKeysByID(t *testing.T) {
	id1 := uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")
	id2 := uuid.MustParse("bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb")

	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/profiles/batch", r.URL.Path)
		fmt.Fprintf(w, `[
			{"id": %q, "name": "Dana"},
			{"id": %q, "name": "Kim", "avatar_url": "https://example.com/kim.png"}
		]`, id1, id2)
	})

	profiles, err := client.ListProfiles(context.Background(), []uuid.UUID{id1, id2})
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "Dana", profiles[id1].Name)
	assert.Equal(t, "https://example.com/kim.png", profiles[id2].AvatarURL)
}

func TestGetLobbyCode(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, fmt.Sprintf("/api/v1/lobbies/%s/code", lobbyID), r.URL.Path)
		fmt.Fprint(w, `{"code": "FROG-42"}`)
	})

	code, err := client.GetLobbyCode(context.Background(), lobbyID)
	require.NoError(t, err)
	assert.Equal(t, "FROG-42", code)
}

func TestPowerKindPositions(t *testing.T) {
	assert.Equal(t, 1, PowerPeek.Positions())
	assert.Equal(t, 2, PowerSwap.Positions())
	assert.Equal(t, 0, PowerExtraGuess.Positions())
}
