// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"time"
)

const (
	MaxUsernameLen    = 36
	MaxDisplayNameLen = 64
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

// Role is the participant role resolved by the identity collaborator.
type Role string

const (
	RoleAuthority Role = "teacher"
	RoleViewer    Role = "student"
)

func (r Role) Valid() bool {
	return r == RoleAuthority || r == RoleViewer
}

// Identity is what the identity collaborator returns for a username.
type Identity struct {
	Username    string `json:"username"`
	DisplayName string `json:"name"`
	Role        Role   `json:"role"`
}

func (i Identity) Validate() error {
	if len(i.Username) == 0 {
		return ErrUsernameEmpty
	}
	if len(i.Username) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	if !i.Role.Valid() {
		return NewValidationError("unknown role %q", i.Role)
	}
	return nil
}

// Participant represents one live connection inside a room.
// No transport or lifecycle logic here.
type Participant struct {
	ConnectionID string    `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"name"`
	Role         Role      `json:"role"`
	JoinedAt     time.Time `json:"joinedAt"`
	// ClientID is the browser token of the connection, used to find the
	// uploader's connections for job failures.
	ClientID string `json:"-"`
}

// NewParticipant avoids raw literals in adapters and keeps construction obvious.
func NewParticipant(connID string, id Identity, now time.Time) (*Participant, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	name := id.DisplayName
	if name == "" {
		name = id.Username
	}
	if len(name) > MaxDisplayNameLen {
		name = name[:MaxDisplayNameLen]
	}
	return &Participant{
		ConnectionID: connID,
		Username:     id.Username,
		DisplayName:  name,
		Role:         id.Role,
		JoinedAt:     now,
	}, nil
}

func (p *Participant) IsAuthority() bool { return p != nil && p.Role == RoleAuthority }
