package app

import (
	"fmt"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickMember
	DropFrame
)

type Policy interface {
	OnBackPressure(room domain.RoomID, sid core.SessionID) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(room domain.RoomID, sid core.SessionID) BackpressureAction {
	return KickMember
}

// AuthorityPolicy decides what happens when a second authority joins while
// one is already connected.
type AuthorityPolicy string

const (
	// AuthorityShared admits every authority; their commands are serialized
	// by the room loop and the last write wins.
	AuthorityShared AuthorityPolicy = "shared"
	// AuthorityExclusive rejects an authority join while another is present.
	AuthorityExclusive AuthorityPolicy = "exclusive"
)

func ParseAuthorityPolicy(s string) (AuthorityPolicy, error) {
	switch p := AuthorityPolicy(s); p {
	case AuthorityShared, AuthorityExclusive:
		return p, nil
	case "":
		return AuthorityShared, nil
	}
	return "", fmt.Errorf("unknown authority policy %q", s)
}

// Admit checks an authority join against the number already present.
func (p AuthorityPolicy) Admit(present int) error {
	if p == AuthorityExclusive && present > 0 {
		return domain.ErrAuthorityPresent
	}
	return nil
}
