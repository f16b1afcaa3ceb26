// Package identity resolves usernames to roles. It stands in for the
// account store, which lives outside this service.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dkeye/Classroom/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrUnknownUser = errors.New("unknown user")

type Provider interface {
	Lookup(ctx context.Context, username string) (domain.Identity, error)
}

// Directory is a fixed set of known users loaded from configuration.
// With guests allowed, unknown usernames join as viewers with no display
// name, so the caller may supply one.
type Directory struct {
	users       map[string]domain.Identity
	allowGuests bool
}

func NewDirectory(users []domain.Identity, allowGuests bool) (*Directory, error) {
	d := &Directory{
		users:       make(map[string]domain.Identity, len(users)),
		allowGuests: allowGuests,
	}
	for _, u := range users {
		u.Username = strings.TrimSpace(u.Username)
		if err := u.Validate(); err != nil {
			return nil, fmt.Errorf("identity %q: %w", u.Username, err)
		}
		key := strings.ToLower(u.Username)
		if _, dup := d.users[key]; dup {
			return nil, fmt.Errorf("identity %q: duplicate username", u.Username)
		}
		d.users[key] = u
	}
	log.Info().Str("module", "identity").Int("users", len(d.users)).Bool("guests", allowGuests).Msg("directory loaded")
	return d, nil
}

func (d *Directory) Lookup(ctx context.Context, username string) (domain.Identity, error) {
	if err := ctx.Err(); err != nil {
		return domain.Identity{}, err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.Identity{}, domain.ErrUsernameEmpty
	}
	if id, ok := d.users[strings.ToLower(username)]; ok {
		return id, nil
	}
	if !d.allowGuests {
		return domain.Identity{}, fmt.Errorf("%w: %s", ErrUnknownUser, username)
	}
	guest := domain.Identity{Username: username, Role: domain.RoleViewer}
	if err := guest.Validate(); err != nil {
		return domain.Identity{}, err
	}
	return guest, nil
}
