package models

import (
	"time"

	"github.com/google/uuid"
)

// MemberRole defines what a participant may do in the session.
type MemberRole string

const (
	RoleOwner     MemberRole = "owner"
	RolePlayer    MemberRole = "player"
	RoleSpectator MemberRole = "spectator"
)

// Seated reports whether the role holds a seat. Only seated members run
// the auto-advance controller or submit actions.
func (r MemberRole) Seated() bool {
	return r == RoleOwner || r == RolePlayer
}

// Member is one session participant. The roster is replaced wholesale
// on every members refresh.
type Member struct {
	ID           uuid.UUID  `json:"id"`
	LobbyID      uuid.UUID  `json:"lobby_id"`
	Team         *Team      `json:"team,omitempty"`
	Spymaster    bool       `json:"spymaster"`
	Role         MemberRole `json:"role"`
	Ready        bool       `json:"ready"`
	LastActiveAt *time.Time `json:"last_active_at,omitempty"`
	Name         string     `json:"name,omitempty"`
	AvatarURL    string     `json:"avatar_url,omitempty"`
}

// TeamOrNone returns the member's team, defaulting to TeamNone for
// unassigned members.
func (m *Member) TeamOrNone() Team {
	if m == nil || m.Team == nil {
		return TeamNone
	}
	return *m.Team
}
