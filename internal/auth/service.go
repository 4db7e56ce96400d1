package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rdm-project/rdm-server/internal/audit"
	"github.com/rdm-project/rdm-server/internal/store"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type LoginResult struct {
	Token string
	User  store.User
}

type Service struct {
	store    *store.Store
	recorder *audit.Recorder
	config   JWTConfig
}

func NewService(st *store.Store, recorder *audit.Recorder, config JWTConfig) *Service {
	return &Service{
		store:    st,
		recorder: recorder,
		config:   config,
	}
}

func (s *Service) Login(ctx context.Context, username, password, clientIP string) (LoginResult, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("query user: %w", err)
	}
	if !user.IsActive {
		return LoginResult{}, ErrInvalidCredentials
	}
	if !CheckPassword(password, user.PasswordHash) {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := GenerateToken(s.config, user.ID, user.Username, string(user.Role))
	if err != nil {
		return LoginResult{}, fmt.Errorf("generate token: %w", err)
	}

	now := time.Now()
	if err := s.store.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return LoginResult{}, fmt.Errorf("update last login: %w", err)
	}
	user.LastLogin = &now

	s.recorder.Record(audit.Entry{
		UserID:       &user.ID,
		Action:       store.ActionLogin,
		ResourceType: "user",
		ResourceID:   user.ID,
		IPAddress:    clientIP,
	})

	return LoginResult{Token: token, User: user}, nil
}

// GetUser loads the user behind a principal, for the /me endpoint.
func (s *Service) GetUser(ctx context.Context, userID int64) (store.User, error) {
	return s.store.GetUserByID(ctx, userID)
}
