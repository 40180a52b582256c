package gameapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mdev84/spyline/go/internal/models"
)

// PowerKind names a one-shot team power.
type PowerKind string

const (
	PowerPeek       PowerKind = "peek"        // reveal one card's color to the team, 1 position
	PowerSwap       PowerKind = "swap"        // swap two concealed cards, 2 positions
	PowerExtraGuess PowerKind = "extra_guess" // +1 to the current guess budget, no parameters
)

// Positions returns how many board positions the power requires.
func (k PowerKind) Positions() int {
	switch k {
	case PowerPeek:
		return 1
	case PowerSwap:
		return 2
	}
	return 0
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return c.Post(ctx, endpoint, bytes.NewReader(data))
}

// SetClue submits the active clue for the current turn. The service
// rejects the call when the caller is not the clue-giver on turn or the
// game is inactive.
func (c *Client) SetClue(ctx context.Context, gameID uuid.UUID, word string, number int) error {
	payload := struct {
		Word   string `json:"word"`
		Number int    `json:"number"`
	}{Word: word, Number: number}

	if _, err := c.postJSON(ctx, fmt.Sprintf(ClueEndpoint, gameID), payload); err != nil {
		return fmt.Errorf("failed to set clue: %w", err)
	}
	return nil
}

// RevealCard reveals one board position and returns the post-reveal
// slice of game state for the optimistic overlay.
func (c *Client) RevealCard(ctx context.Context, gameID uuid.UUID, position int) (*models.RevealResult, error) {
	payload := struct {
		Position int `json:"position"`
	}{Position: position}

	body, err := c.postJSON(ctx, fmt.Sprintf(RevealEndpoint, gameID), payload)
	if err != nil {
		return nil, fmt.Errorf("failed to reveal card: %w", err)
	}

	var result models.RevealResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reveal result: %w", err)
	}
	return &result, nil
}

// EndTurn asks the service to advance the turn. Safe to call more than
// once for the same turn; the service validates the transition.
func (c *Client) EndTurn(ctx context.Context, gameID uuid.UUID) error {
	if _, err := c.Post(ctx, fmt.Sprintf(EndTurnEndpoint, gameID), nil); err != nil {
		return fmt.Errorf("failed to end turn: %w", err)
	}
	return nil
}

// UsePower spends a one-shot power for the caller's team. Positions are
// required for parameterized powers and must be concealed and distinct;
// the service re-validates both.
func (c *Client) UsePower(ctx context.Context, gameID uuid.UUID, kind PowerKind, positions []int) error {
	payload := struct {
		Kind      PowerKind `json:"kind"`
		Positions []int     `json:"positions,omitempty"`
	}{Kind: kind, Positions: positions}

	if _, err := c.postJSON(ctx, fmt.Sprintf(PowerEndpoint, gameID), payload); err != nil {
		return fmt.Errorf("failed to use power: %w", err)
	}
	return nil
}
