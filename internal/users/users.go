// Package users owns the account record: role, password hash, and the step-1
// lock that a failed first exam places on the account.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleSupervisor Role = "SUPERVISOR"
	RoleStudent    Role = "STUDENT"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleSupervisor, RoleStudent:
		return r, nil
	case "":
		return RoleStudent, nil
	}
	return "", fmt.Errorf("%w: role %q", ErrInvalid, s)
}

var (
	ErrNotFound = errors.New("user not found")
	ErrInvalid  = errors.New("invalid user")
)

type User struct {
	ID            string     `json:"id"`
	Username      string     `json:"username"`
	Name          string     `json:"name,omitempty"`
	Email         string     `json:"email,omitempty"`
	Role          Role       `json:"role"`
	PasswordHash  string     `json:"-"`
	Step1LockedAt *time.Time `json:"step1_locked_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (u User) Step1Locked() bool { return u.Step1LockedAt != nil }

// Row is one entry of a bulk upsert. Password is plaintext and optional for
// existing users.
type Row struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role"`
	Password string `json:"password,omitempty"`
}

type UpsertResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

type Store interface {
	Get(ctx context.Context, id string) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	// List returns users ordered by username; an empty role means all.
	List(ctx context.Context, role Role) ([]User, error)
	// BulkUpsert matches rows on id or username. New users need a password.
	BulkUpsert(ctx context.Context, rows []Row) (UpsertResult, error)
	SetRole(ctx context.Context, id string, role Role) error
	SetPasswordHash(ctx context.Context, id, hash string) error
	CountByRole(ctx context.Context, role Role) (int, error)

	IsStep1Locked(ctx context.Context, userID string) (bool, error)
	SetStep1Locked(ctx context.Context, userID string, at *time.Time) error
}

// HashCost is the bcrypt cost used for new hashes.
var HashCost = 12

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), HashCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func CheckPassword(hash, pw string) bool {
	return hash != "" && bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// normalize validates a row and hashes its password.
func normalize(r Row) (Row, Role, string, error) {
	r.ID = strings.TrimSpace(r.ID)
	r.Username = strings.TrimSpace(r.Username)
	if r.Username == "" {
		return r, "", "", fmt.Errorf("%w: username required", ErrInvalid)
	}
	role, err := ParseRole(r.Role)
	if err != nil {
		return r, "", "", err
	}
	var hash string
	if r.Password != "" {
		if hash, err = HashPassword(r.Password); err != nil {
			return r, "", "", err
		}
	}
	return r, role, hash, nil
}
