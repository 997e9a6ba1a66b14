package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"task-api/api"
	"task-api/store"
)

// Messages returned to clients. Clients match on these strings.
const (
	MsgUserExists          = "User already exists."
	MsgRegistered          = "Registration successful"
	MsgInvalidCredentials  = "Invalid credentials"
	MsgLoggedIn            = "Login successful"
	MsgCredentialsRequired = "Email and password are required."
	MsgPasswordTooLong     = "Password must be at most 72 bytes."
)

// bcrypt ignores everything past this many bytes, so longer passwords
// are refused instead of silently truncated.
const maxPasswordBytes = 72

// CredentialStore is the persistence the gateway needs.
type CredentialStore interface {
	CreateUser(ctx context.Context, u store.User) error
	UserByEmail(ctx context.Context, email string) (store.User, error)
}

// Gateway registers and logs users in. A failed attempt is reported in
// the response message with no token; the error return is reserved for
// storage and signing failures.
type Gateway struct {
	users  CredentialStore
	issuer *Issuer
	cost   int
	// dummyHash is compared against on unknown emails so both login
	// failures take about as long.
	dummyHash []byte
}

// NewGateway hashes passwords with the given bcrypt cost; 0 means
// bcrypt.DefaultCost.
func NewGateway(users CredentialStore, issuer *Issuer, cost int) (*Gateway, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("task-api-dummy-password"), cost)
	if err != nil {
		return nil, fmt.Errorf("prepare password hashing: %w", err)
	}
	return &Gateway{users: users, issuer: issuer, cost: cost, dummyHash: dummy}, nil
}

func (g *Gateway) Register(ctx context.Context, email, password string) (api.AuthResponse, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return api.AuthResponse{Message: MsgCredentialsRequired}, nil
	}
	if len(password) > maxPasswordBytes {
		return api.AuthResponse{Message: MsgPasswordTooLong}, nil
	}

	_, err := g.users.UserByEmail(ctx, email)
	if err == nil {
		return api.AuthResponse{Message: MsgUserExists}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return api.AuthResponse{}, fmt.Errorf("look up user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), g.cost)
	if err != nil {
		return api.AuthResponse{}, fmt.Errorf("hash password: %w", err)
	}
	user := store.User{
		ID:           uuid.New(),
		Email:        store.NormalizeEmail(email),
		PasswordHash: string(hash),
		Role:         store.DefaultRole,
	}
	if err := g.users.CreateUser(ctx, user); err != nil {
		// Lost a race with a concurrent registration of the same email.
		if errors.Is(err, store.ErrDuplicateEmail) {
			return api.AuthResponse{Message: MsgUserExists}, nil
		}
		return api.AuthResponse{}, fmt.Errorf("create user: %w", err)
	}

	token, err := g.issuer.Issue(identityOf(user))
	if err != nil {
		return api.AuthResponse{}, err
	}
	return api.AuthResponse{Token: token, Message: MsgRegistered}, nil
}

func (g *Gateway) Login(ctx context.Context, email, password string) (api.AuthResponse, error) {
	user, err := g.users.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			bcrypt.CompareHashAndPassword(g.dummyHash, []byte(password))
			return api.AuthResponse{Message: MsgInvalidCredentials}, nil
		}
		return api.AuthResponse{}, fmt.Errorf("look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return api.AuthResponse{Message: MsgInvalidCredentials}, nil
	}

	token, err := g.issuer.Issue(identityOf(user))
	if err != nil {
		return api.AuthResponse{}, err
	}
	return api.AuthResponse{Token: token, Message: MsgLoggedIn}, nil
}

func identityOf(u store.User) Identity {
	return Identity{UserID: u.ID, Email: u.Email, Role: u.Role}
}
