// Package services contains server-side business logic. UserService handles
// registration, password login and resolving bearer tokens back to users.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/keyauth/internal/common"
	"github.com/dmitrijs2005/keyauth/internal/server/auth"
	"github.com/dmitrijs2005/keyauth/internal/server/models"
	"github.com/dmitrijs2005/keyauth/internal/server/repositories/repomanager"
)

// LoginResult is a freshly issued access token together with the user it
// identifies.
type LoginResult struct {
	AccessToken string
	User        *models.User
}

// Hasher is the credential store used by UserService.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) (bool, error)
}

type UserService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	hasher                      Hasher
	tokens                      *auth.TokenService
	accessTokenValidityDuration time.Duration
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, hasher Hasher, tokens *auth.TokenService, tokenTTL time.Duration) *UserService {
	return &UserService{
		db:                          db,
		repomanager:                 m,
		hasher:                      hasher,
		tokens:                      tokens,
		accessTokenValidityDuration: tokenTTL,
	}
}

// Register creates a regular user. Duplicate usernames or emails surface as
// common.ErrorConflict.
func (s *UserService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	return s.create(ctx, username, email, password, false)
}

func (s *UserService) create(ctx context.Context, username, email, password string, isAdmin bool) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: username, email and password are required", common.ErrorValidation)
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{
		UserName:     username,
		Email:        email,
		PasswordHash: digest,
		IsAdmin:      isAdmin,
	}

	repo := s.repomanager.Users(s.db)

	user, err = repo.Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	return user, nil
}

// Login checks the password and issues an access token. Unknown users and
// wrong passwords are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetUserByLogin(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, common.ErrorInternal
	}
	if !ok {
		return nil, common.ErrorUnauthorized
	}

	token, err := s.tokens.Issue(user.UserName, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}

	return &LoginResult{AccessToken: token, User: user}, nil
}

// Authenticate resolves a bearer token to its user. Any token problem, and a
// token naming a user that no longer exists, is common.ErrorUnauthorized.
func (s *UserService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	username, err := s.tokens.Verify(token)
	if err != nil {
		return nil, common.ErrorUnauthorized
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetUserByLogin(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	return user, nil
}

// ListUsers returns every user with its license count. Admin only.
func (s *UserService) ListUsers(ctx context.Context, caller *models.User) ([]*models.UserSummary, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	return s.repomanager.Users(s.db).List(ctx)
}

// EnsureAdmin makes sure an administrator called username exists, creating it
// or promoting an existing account. An existing account keeps its password.
func (s *UserService) EnsureAdmin(ctx context.Context, username, email, password string) (*models.User, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetUserByLogin(ctx, username)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		if email == "" {
			email = username + "@localhost"
		}
		return s.create(ctx, username, email, password, true)
	case err != nil:
		return nil, err
	}

	if !user.IsAdmin {
		if err := repo.SetAdmin(ctx, user.ID, true); err != nil {
			return nil, fmt.Errorf("error promoting user: %w", err)
		}
		user.IsAdmin = true
	}
	return user, nil
}

func requireAdmin(caller *models.User) error {
	if caller == nil {
		return common.ErrorUnauthorized
	}
	if !caller.IsAdmin {
		return fmt.Errorf("%w: admin privileges required", common.ErrorForbidden)
	}
	return nil
}
