package models

import (
	"time"
)

// UserType is the coarse role that drives visibility and capabilities.
type UserType string

const (
	UserTypeAdmin     UserType = "admin"
	UserTypeCrew      UserType = "crew"
	UserTypeHomeowner UserType = "homeowner"
)

// Valid reports whether t is one of the known user types.
func (t UserType) Valid() bool {
	switch t {
	case UserTypeAdmin, UserTypeCrew, UserTypeHomeowner:
		return true
	}
	return false
}

// User is a signed-in person's profile document.
type User struct {
	ID          string    `firestore:"-" json:"id"`
	Email       string    `firestore:"email" json:"email"`
	DisplayName string    `firestore:"displayName" json:"displayName"`
	Role        string    `firestore:"role,omitempty" json:"role,omitempty"`
	UserType    UserType  `firestore:"userType" json:"userType"`
	ProjectID   string    `firestore:"projectId,omitempty" json:"projectId,omitempty"`
	LineUserID  string    `firestore:"lineUserId,omitempty" json:"lineUserId,omitempty"`
	Disabled    bool      `firestore:"disabled" json:"disabled"`
	CreatedAt   time.Time `firestore:"createdAt" json:"createdAt"`
}

// ActorName is the name stamped on writes made by u.
func ActorName(u *User) string {
	if u == nil || u.DisplayName == "" {
		return "Unknown"
	}
	return u.DisplayName
}

// PendingUser is an invitation consulted once at first sign-in.
type PendingUser struct {
	ID          string   `firestore:"-" json:"id"`
	Email       string   `firestore:"email" json:"email"`
	DisplayName string   `firestore:"displayName,omitempty" json:"displayName,omitempty"`
	UserType    UserType `firestore:"userType,omitempty" json:"userType,omitempty"`
	Role        string   `firestore:"role,omitempty" json:"role,omitempty"`
	ProjectID   string   `firestore:"projectId,omitempty" json:"projectId,omitempty"`
}
