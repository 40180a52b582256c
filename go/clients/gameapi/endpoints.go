package gameapi

const (
	// API endpoints; {id} segments are filled per call.
	GameEndpoint      = "/api/v1/games/%s"
	CardsEndpoint     = "/api/v1/games/%s/cards"
	KeyEndpoint       = "/api/v1/games/%s/key"
	ClueEndpoint      = "/api/v1/games/%s/clue"
	RevealEndpoint    = "/api/v1/games/%s/reveal"
	EndTurnEndpoint   = "/api/v1/games/%s/end-turn"
	PowerEndpoint     = "/api/v1/games/%s/power"
	MembersEndpoint   = "/api/v1/lobbies/%s/members"
	LobbyCodeEndpoint = "/api/v1/lobbies/%s/code"
	ProfilesEndpoint  = "/api/v1/profiles/batch"

	// Headers
	AuthHeader = "Authorization"
)
