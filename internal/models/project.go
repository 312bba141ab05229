package models

import (
	"time"
)

// AllTasksProjectID identifies the synthetic aggregate project.
const AllTasksProjectID = "__all__"

// Project groups the tasks of one painting job.
type Project struct {
	ID         string    `firestore:"-" json:"id"`
	Name       string    `firestore:"name" json:"name"`
	Customer   string    `firestore:"customer" json:"customer"`
	OwnerID    string    `firestore:"ownerId" json:"ownerId"`
	OwnerEmail string    `firestore:"ownerEmail,omitempty" json:"ownerEmail,omitempty"`
	CreatedAt  time.Time `firestore:"createdAt" json:"createdAt"`
}

// AllTasksProject returns the pseudo-project used for the all-tasks view.
func AllTasksProject() *Project {
	return &Project{ID: AllTasksProjectID, Name: "All Tasks"}
}

// IsAllTasks reports whether p is the all-tasks pseudo-project.
func (p *Project) IsAllTasks() bool {
	return p != nil && p.ID == AllTasksProjectID
}
