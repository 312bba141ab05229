package dashboard

import (
	"context"
	"fmt"

	"github.com/ytakahashi/crew-calendar/internal/models"
	"github.com/ytakahashi/crew-calendar/internal/policy"
	"github.com/ytakahashi/crew-calendar/internal/services"
)

// Users lists every account; empty for anyone but admins.
func (s *Session) Users() []models.User {
	return s.feeds.Users.Items()
}

// UserPatch is an admin change to another account.
type UserPatch struct {
	UserType  *models.UserType `json:"userType,omitempty"`
	ProjectID string           `json:"projectId,omitempty"`
	Disabled  *bool            `json:"disabled,omitempty"`
	LineUser  *string          `json:"lineUserId,omitempty"`
}

// UpdateUser applies an admin change to uid. Changing one's own account
// rescopes this session.
func (s *Session) UpdateUser(ctx context.Context, uid string, patch UserPatch) error {
	defer s.Begin("update_user")()
	u, err := s.enter()
	if err != nil {
		return err
	}
	if !policy.For(u).ManageUsers {
		return ErrForbidden
	}
	if patch.UserType == nil && patch.Disabled == nil && patch.LineUser == nil {
		return s.report(&services.ValidationError{Message: "nothing to update"}, "", "")
	}
	if patch.UserType != nil {
		err := s.deps.Service.SetUserType(ctx, uid, *patch.UserType, patch.ProjectID)
		if err := s.report(err, "Error updating user. Please try again.", "User type updated successfully!"); err != nil {
			return err
		}
	}
	if patch.Disabled != nil {
		state := "enabled"
		if *patch.Disabled {
			state = "disabled"
		}
		err := s.deps.Service.SetUserDisabled(ctx, uid, *patch.Disabled)
		if err := s.report(err, "Error updating user. Please try again.", fmt.Sprintf("User %s successfully!", state)); err != nil {
			return err
		}
	}
	if patch.LineUser != nil {
		err := s.deps.Service.SetLineUser(ctx, uid, *patch.LineUser)
		if err := s.report(err, "Error updating user. Please try again.", "LINE account updated"); err != nil {
			return err
		}
	}
	if uid == u.ID {
		return s.Refresh(ctx)
	}
	return nil
}

// Invite records a pending account for someone who has not signed in yet.
func (s *Session) Invite(ctx context.Context, invite models.PendingUser) (string, error) {
	defer s.Begin("invite_user")()
	u, err := s.enter()
	if err != nil {
		return "", err
	}
	if !policy.For(u).ManageUsers {
		return "", ErrForbidden
	}
	id, err := s.deps.Service.InviteUser(ctx, invite)
	if err := s.report(err, "Error creating user. Please try again.", fmt.Sprintf("User %s invited successfully!", invite.Email)); err != nil {
		return "", err
	}
	return id, nil
}

// UpdateProfile edits the user's own display name or role.
func (s *Session) UpdateProfile(ctx context.Context, patch services.ProfilePatch) error {
	defer s.Begin("update_profile")()
	u, err := s.enter()
	if err != nil {
		return err
	}
	err = s.deps.Service.UpdateUserProfile(ctx, u.ID, patch)
	if err := s.report(err, "Error updating profile. Please try again.", "Profile updated"); err != nil {
		return err
	}
	return s.Refresh(ctx)
}
