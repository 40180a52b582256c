package gameapi

import (
	"github.com/mdev84/spyline/go/clients"
)

// Client wraps the game service's REST surface. Every call is a plain
// request/response; the service owns all validation and ground truth.
type Client struct {
	*clients.BaseClient
}

// NewClient builds a client for the given service base URL. The bearer
// token identifies the participant; the service derives identity and
// authorization from it.
func NewClient(baseURL, token string) *Client {
	client := &Client{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	if token != "" {
		client.SetHeader(AuthHeader, "Bearer "+token)
	}
	client.SetHeader("Content-Type", "application/json")

	return client
}
