package permissions

import (
	"context"
	"errors"

	"github.com/rdm-project/rdm-server/internal/apperror"
	"github.com/rdm-project/rdm-server/internal/audit"
	"github.com/rdm-project/rdm-server/internal/auth"
	"github.com/rdm-project/rdm-server/internal/store"
)

// Service manages grants and groups. All mutations are admin-only and audited.
type Service struct {
	store    *store.Store
	recorder *audit.Recorder
}

func NewService(st *store.Store, recorder *audit.Recorder) *Service {
	return &Service{store: st, recorder: recorder}
}

func (s *Service) GrantDirect(ctx context.Context, p auth.Principal, userID, deviceID int64, level string, clientIP string) error {
	if !p.IsAdmin() {
		return apperror.Authorizationf("only admins can manage permissions")
	}
	if _, err := ParseLevel(level); err != nil {
		return apperror.Validationf("%v", err)
	}
	if err := s.checkUserAndDevice(ctx, userID, deviceID); err != nil {
		return err
	}
	if err := s.store.UpsertDirectGrant(ctx, userID, deviceID, level); err != nil {
		return err
	}
	s.recorder.Record(audit.Entry{
		UserID:       &p.ID,
		Action:       store.ActionUpdate,
		ResourceType: "permission",
		ResourceID:   deviceID,
		Details:      map[string]any{"userId": userID, "level": level},
		IPAddress:    clientIP,
	})
	return nil
}

func (s *Service) RevokeDirect(ctx context.Context, p auth.Principal, userID, deviceID int64, clientIP string) error {
	if !p.IsAdmin() {
		return apperror.Authorizationf("only admins can manage permissions")
	}
	if err := s.store.DeleteDirectGrant(ctx, userID, deviceID); err != nil {
		return err
	}
	s.recorder.Record(audit.Entry{
		UserID:       &p.ID,
		Action:       store.ActionDelete,
		ResourceType: "permission",
		ResourceID:   deviceID,
		Details:      map[string]any{"userId": userID},
		IPAddress:    clientIP,
	})
	return nil
}

func (s *Service) CreateGroup(ctx context.Context, p auth.Principal, name, description string) (store.Group, error) {
	if !p.IsAdmin() {
		return store.Group{}, apperror.Authorizationf("only admins can manage groups")
	}
	if name == "" {
		return store.Group{}, apperror.Validationf("group name is required")
	}
	return s.store.CreateGroup(ctx, name, description)
}

func (s *Service) AddMember(ctx context.Context, p auth.Principal, groupID, userID int64) error {
	if !p.IsAdmin() {
		return apperror.Authorizationf("only admins can manage groups")
	}
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return apperror.NotFound("User", userID)
		}
		return err
	}
	return s.store.AddGroupMember(ctx, groupID, userID)
}

func (s *Service) RemoveMember(ctx context.Context, p auth.Principal, groupID, userID int64) error {
	if !p.IsAdmin() {
		return apperror.Authorizationf("only admins can manage groups")
	}
	return s.store.RemoveGroupMember(ctx, groupID, userID)
}

func (s *Service) GrantGroup(ctx context.Context, p auth.Principal, groupID, deviceID int64, level string, clientIP string) error {
	if !p.IsAdmin() {
		return apperror.Authorizationf("only admins can manage permissions")
	}
	if _, err := ParseLevel(level); err != nil {
		return apperror.Validationf("%v", err)
	}
	if _, err := s.store.GetActiveDevice(ctx, deviceID); err != nil {
		if errors.Is(err, store.ErrDeviceNotFound) {
			return apperror.NotFound("Device", deviceID)
		}
		return err
	}
	if err := s.store.UpsertGroupGrant(ctx, groupID, deviceID, level); err != nil {
		return err
	}
	s.recorder.Record(audit.Entry{
		UserID:       &p.ID,
		Action:       store.ActionUpdate,
		ResourceType: "permission",
		ResourceID:   deviceID,
		Details:      map[string]any{"groupId": groupID, "level": level},
		IPAddress:    clientIP,
	})
	return nil
}

func (s *Service) RevokeGroup(ctx context.Context, p auth.Principal, groupID, deviceID int64, clientIP string) error {
	if !p.IsAdmin() {
		return apperror.Authorizationf("only admins can manage permissions")
	}
	if err := s.store.DeleteGroupGrant(ctx, groupID, deviceID); err != nil {
		return err
	}
	s.recorder.Record(audit.Entry{
		UserID:       &p.ID,
		Action:       store.ActionDelete,
		ResourceType: "permission",
		ResourceID:   deviceID,
		Details:      map[string]any{"groupId": groupID},
		IPAddress:    clientIP,
	})
	return nil
}

func (s *Service) checkUserAndDevice(ctx context.Context, userID, deviceID int64) error {
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return apperror.NotFound("User", userID)
		}
		return err
	}
	if _, err := s.store.GetActiveDevice(ctx, deviceID); err != nil {
		if errors.Is(err, store.ErrDeviceNotFound) {
			return apperror.NotFound("Device", deviceID)
		}
		return err
	}
	return nil
}
