package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ytakahashi/crew-calendar/internal/models"
)

// ProfilePatch holds the self-editable profile fields.
type ProfilePatch struct {
	DisplayName *string `json:"displayName,omitempty"`
	Role        *string `json:"role,omitempty"`
}

// GetUser loads one profile.
func (s *Service) GetUser(ctx context.Context, uid string) (*models.User, error) {
	doc, err := s.store.Get(ctx, CollectionUsers, uid)
	if err != nil {
		return nil, err
	}
	u, err := Decode[models.User](doc)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// EnsureProfile returns the profile for uid, creating it on first sign-in.
// A pending invitation for email seeds the profile and is then deleted;
// without one the user starts as a crew painter.
func (s *Service) EnsureProfile(ctx context.Context, uid, email, authName string) (*models.User, error) {
	u, err := s.GetUser(ctx, uid)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("loading profile: %w", err)
	}

	profile := &models.User{
		ID:          uid,
		Email:       email,
		DisplayName: firstNonEmpty(authName, email),
		UserType:    models.UserTypeCrew,
		Role:        "Painter",
		CreatedAt:   s.Now(),
	}

	pending, err := s.store.Query(ctx, From(CollectionPendingUsers).Where("email", OpEqual, email))
	if err != nil {
		return nil, fmt.Errorf("checking invitations: %w", err)
	}
	var invite *Document
	if len(pending) > 0 {
		invite = &pending[0]
		p, err := Decode[models.PendingUser](*invite)
		if err != nil {
			return nil, err
		}
		profile.DisplayName = firstNonEmpty(p.DisplayName, authName, email)
		profile.Role = p.Role
		if p.UserType.Valid() {
			profile.UserType = p.UserType
		}
		profile.ProjectID = p.ProjectID
	}

	err = s.store.Set(ctx, CollectionUsers, uid, profile)
	if err := s.observe("create_profile", err, zap.String("uid", uid)); err != nil {
		return nil, fmt.Errorf("creating profile: %w", err)
	}
	if invite != nil {
		if err := s.store.Remove(ctx, CollectionPendingUsers, invite.ID); err != nil {
			// The profile exists now; a leftover invitation is harmless.
			s.log.Warn("could not remove pending user", zap.String("email", email), zap.Error(err))
		}
	}
	return profile, nil
}

// InviteUser records an invitation picked up at the invitee's first sign-in.
func (s *Service) InviteUser(ctx context.Context, invite models.PendingUser) (string, error) {
	invite.Email = strings.TrimSpace(invite.Email)
	if invite.Email == "" {
		return "", invalid("email", "email is required")
	}
	if invite.UserType == "" {
		invite.UserType = models.UserTypeCrew
	}
	if err := checkUserType(invite.UserType, invite.ProjectID); err != nil {
		return "", err
	}
	if invite.UserType != models.UserTypeHomeowner {
		invite.ProjectID = ""
	}

	id, err := s.store.Insert(ctx, CollectionPendingUsers, invite)
	if err := s.observe("invite_user", err, zap.String("email", invite.Email)); err != nil {
		return "", fmt.Errorf("inviting user: %w", err)
	}
	return id, nil
}

// SetUserType changes a user's type. Homeowners must be tied to a project.
func (s *Service) SetUserType(ctx context.Context, uid string, userType models.UserType, projectID string) error {
	if err := checkUserType(userType, projectID); err != nil {
		return err
	}
	fields := map[string]any{"userType": string(userType)}
	if userType == models.UserTypeHomeowner {
		fields["projectId"] = projectID
	}
	err := s.store.Update(ctx, CollectionUsers, uid, fields)
	if err := s.observe("set_user_type", err, zap.String("uid", uid)); err != nil {
		return fmt.Errorf("updating user type: %w", err)
	}
	return nil
}

// SetUserDisabled enables or disables an account. Users are never deleted.
func (s *Service) SetUserDisabled(ctx context.Context, uid string, disabled bool) error {
	err := s.store.Update(ctx, CollectionUsers, uid, map[string]any{"disabled": disabled})
	if err := s.observe("set_user_disabled", err, zap.String("uid", uid)); err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	return nil
}

// UpdateUserProfile merges patch into the user's profile.
func (s *Service) UpdateUserProfile(ctx context.Context, uid string, patch ProfilePatch) error {
	fields := make(map[string]any)
	if patch.DisplayName != nil {
		name := strings.TrimSpace(*patch.DisplayName)
		if name == "" {
			return invalid("displayName", "display name cannot be empty")
		}
		fields["displayName"] = s.clean(name)
	}
	if patch.Role != nil {
		fields["role"] = s.clean(strings.TrimSpace(*patch.Role))
	}
	if len(fields) == 0 {
		return invalid("", "nothing to update")
	}

	err := s.store.Update(ctx, CollectionUsers, uid, fields)
	if err := s.observe("update_profile", err, zap.String("uid", uid)); err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	return nil
}

func checkUserType(t models.UserType, projectID string) error {
	if !t.Valid() {
		return invalid("userType", fmt.Sprintf("unknown user type %q", t))
	}
	if t == models.UserTypeHomeowner && projectID == "" {
		return invalid("projectId", "homeowners must be assigned to a project")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// UserByLineID finds the profile linked to a LINE account.
func (s *Service) UserByLineID(ctx context.Context, lineUserID string) (*models.User, error) {
	if lineUserID == "" {
		return nil, ErrNotFound
	}
	docs, err := s.store.Query(ctx, From(CollectionUsers).Where("lineUserId", OpEqual, lineUserID))
	if err != nil {
		return nil, fmt.Errorf("looking up line user: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("line user %s: %w", lineUserID, ErrNotFound)
	}
	u, err := Decode[models.User](docs[0])
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SetLineUser links (or with "" unlinks) a LINE account to a profile.
func (s *Service) SetLineUser(ctx context.Context, uid, lineUserID string) error {
	err := s.store.Update(ctx, CollectionUsers, uid, map[string]any{"lineUserId": strings.TrimSpace(lineUserID)})
	if err := s.observe("set_line_user", err, zap.String("uid", uid)); err != nil {
		return fmt.Errorf("linking line account: %w", err)
	}
	return nil
}
