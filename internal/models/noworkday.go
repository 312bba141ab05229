package models

import (
	"time"
)

// DefaultNoWorkReason is used when an admin leaves the reason blank.
const DefaultNoWorkReason = "No Work"

// NoWorkDay marks a date on which nothing may be scheduled.
type NoWorkDay struct {
	ID        string    `firestore:"-" json:"id"`
	Date      string    `firestore:"date" json:"date"`
	Reason    string    `firestore:"reason" json:"reason"`
	CreatedAt time.Time `firestore:"createdAt" json:"createdAt"`
}
