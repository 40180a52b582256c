package gameapi

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mdev84/spyline/go/internal/models"
)

// GetGame fetches the authoritative game record.
func (c *Client) GetGame(ctx context.Context, gameID uuid.UUID) (*models.Game, error) {
	body, err := c.Get(ctx, fmt.Sprintf(GameEndpoint, gameID))
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	var game models.Game
	if err := json.Unmarshal(body, &game); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game: %w", err)
	}
	return &game, nil
}

// ListCards fetches the full board, ordered by position.
func (c *Client) ListCards(ctx context.Context, gameID uuid.UUID) ([]models.Card, error) {
	body, err := c.Get(ctx, fmt.Sprintf(CardsEndpoint, gameID))
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}

	var cards []models.Card
	if err := json.Unmarshal(body, &cards); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cards: %w", err)
	}
	return cards, nil
}

// ListMembers fetches the lobby roster in join order.
func (c *Client) ListMembers(ctx context.Context, lobbyID uuid.UUID) ([]models.Member, error) {
	body, err := c.Get(ctx, fmt.Sprintf(MembersEndpoint, lobbyID))
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	var members []models.Member
	if err := json.Unmarshal(body, &members); err != nil {
		return nil, fmt.Errorf("failed to unmarshal members: %w", err)
	}
	return members, nil
}

// GetSpymasterKey fetches the hidden color key. The endpoint is
// authorization-gated; non-spymasters get an error.
func (c *Client) GetSpymasterKey(ctx context.Context, gameID uuid.UUID) ([]models.KeyEntry, error) {
	body, err := c.Get(ctx, fmt.Sprintf(KeyEndpoint, gameID))
	if err != nil {
		return nil, fmt.Errorf("failed to get spymaster key: %w", err)
	}

	var key []models.KeyEntry
	if err := json.Unmarshal(body, &key); err != nil {
		return nil, fmt.Errorf("failed to unmarshal key: %w", err)
	}
	return key, nil
}

// GetLobbyCode fetches the human-readable join code for the lobby.
func (c *Client) GetLobbyCode(ctx context.Context, lobbyID uuid.UUID) (string, error) {
	body, err := c.Get(ctx, fmt.Sprintf(LobbyCodeEndpoint, lobbyID))
	if err != nil {
		return "", fmt.Errorf("failed to get lobby code: %w", err)
	}

	var resp struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to unmarshal lobby code: %w", err)
	}
	return resp.Code, nil
}

// Profile is a display profile for one participant.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
}

// ListProfiles batch-fetches display profiles for the given member ids.
// Callers treat a failure here as a soft degradation, not an error path
// that blocks the roster refresh.
func (c *Client) ListProfiles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Profile, error) {
	req := struct {
		IDs []uuid.UUID `json:"ids"`
	}{IDs: ids}

	body, err := c.postJSON(ctx, ProfilesEndpoint, req)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}

	var profiles []Profile
	if err := json.Unmarshal(body, &profiles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profiles: %w", err)
	}

	out := make(map[uuid.UUID]Profile, len(profiles))
	for _, p := range profiles {
		out[p.ID] = p
	}
	return out, nil
}
