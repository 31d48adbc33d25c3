package users

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
)

// EnsureAdmin makes sure the configured bootstrap account exists with the
// ADMIN role and the given bcrypt hash.
func EnsureAdmin(ctx context.Context, s Store, username, passHash string) (User, error) {
	if username == "" || passHash == "" {
		return User{}, ErrInvalid
	}
	u, err := s.GetByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		// placeholder password, replaced by the configured hash below
		buf := make([]byte, 16)
		if _, err := rand.Read(buf); err != nil {
			return User{}, err
		}
		if _, err := s.BulkUpsert(ctx, []Row{{Username: username, Role: string(RoleAdmin), Password: hex.EncodeToString(buf)}}); err != nil {
			return User{}, err
		}
		if u, err = s.GetByUsername(ctx, username); err != nil {
			return User{}, err
		}
	} else if err != nil {
		return User{}, err
	}
	if u.Role != RoleAdmin {
		if err := s.SetRole(ctx, u.ID, RoleAdmin); err != nil {
			return User{}, err
		}
		u.Role = RoleAdmin
	}
	if u.PasswordHash != passHash {
		if err := s.SetPasswordHash(ctx, u.ID, passHash); err != nil {
			return User{}, err
		}
		u.PasswordHash = passHash
	}
	return u, nil
}
