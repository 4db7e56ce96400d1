package users

import (
	"context"
	"errors"

	"github.com/rdm-project/rdm-server/internal/apperror"
	"github.com/rdm-project/rdm-server/internal/audit"
	"github.com/rdm-project/rdm-server/internal/auth"
	"github.com/rdm-project/rdm-server/internal/store"
)

type Service struct {
	store    *store.Store
	recorder *audit.Recorder
}

func NewService(st *store.Store, recorder *audit.Recorder) *Service {
	return &Service{store: st, recorder: recorder}
}

func (s *Service) List(ctx context.Context, p auth.Principal, page, size int) ([]store.User, int64, error) {
	if !p.IsAdmin() {
		return nil, 0, apperror.Authorizationf("only admins can list users")
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		return nil, 0, apperror.Validationf("page size cannot exceed 100")
	}
	if page < 1 {
		page = 1
	}
	return s.store.ListUsers(ctx, size, (page-1)*size)
}

func (s *Service) Get(ctx context.Context, p auth.Principal, id int64) (store.User, error) {
	if !p.IsAdmin() && p.ID != id {
		return store.User{}, apperror.Authorizationf("you may only view your own account")
	}
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return store.User{}, apperror.NotFound("User", id)
		}
		return store.User{}, err
	}
	return user, nil
}

type UpdateInput struct {
	Role     *store.Role
	IsActive *bool
}

func (s *Service) Update(ctx context.Context, p auth.Principal, id int64, in UpdateInput, clientIP string) (store.User, error) {
	if !p.IsAdmin() {
		return store.User{}, apperror.Authorizationf("only admins can update users")
	}
	if in.Role != nil {
		switch *in.Role {
		case store.RoleAdmin, store.RoleOperator, store.RoleViewer:
		default:
			return store.User{}, apperror.Validationf("unknown role %q", *in.Role)
		}
	}

	user, err := s.store.UpdateUser(ctx, id, in.Role, in.IsActive)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return store.User{}, apperror.NotFound("User", id)
		}
		return store.User{}, err
	}

	s.recorder.Record(audit.Entry{
		UserID:       &p.ID,
		Action:       store.ActionUpdate,
		ResourceType: "user",
		ResourceID:   id,
		Details:      map[string]any{"username": user.Username},
		IPAddress:    clientIP,
	})

	return user, nil
}

func (s *Service) Create(ctx context.Context, p auth.Principal, username, password string, role store.Role, clientIP string) (store.User, error) {
	if !p.IsAdmin() {
		return store.User{}, apperror.Authorizationf("only admins can create users")
	}
	if username == "" || password == "" {
		return store.User{}, apperror.Validationf("username and password are required")
	}
	switch role {
	case store.RoleAdmin, store.RoleOperator, store.RoleViewer:
	default:
		return store.User{}, apperror.Validationf("unknown role %q", role)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return store.User{}, err
	}
	user, err := s.store.CreateUser(ctx, username, hash, role)
	if err != nil {
		return store.User{}, err
	}

	s.recorder.Record(audit.Entry{
		UserID:       &p.ID,
		Action:       store.ActionCreate,
		ResourceType: "user",
		ResourceID:   user.ID,
		Details:      map[string]any{"username": user.Username, "role": string(user.Role)},
		IPAddress:    clientIP,
	})

	return user, nil
}
