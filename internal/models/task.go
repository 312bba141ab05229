package models

import (
	"time"
)

// TaskStatus is the progress state of a task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in-progress"
	StatusCompleted  TaskStatus = "completed"
)

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

const (
	CategoryPrep             = "Prep"
	CategoryPaint            = "Paint"
	CategoryFinalWalkthrough = "Final Walkthrough"
	OtherTemplateName        = "Other"
	DefaultCategory          = CategoryPaint
)

// Categories lists task categories in display order.
var Categories = []string{CategoryPrep, CategoryPaint, CategoryFinalWalkthrough}

// TaskTemplate is seeded reference data tasks are created from.
type TaskTemplate struct {
	ID                string    `firestore:"-" json:"id"`
	Name              string    `firestore:"name" json:"name"`
	Category          string    `firestore:"category" json:"category"`
	EstimatedDuration *float64  `firestore:"estimatedDuration,omitempty" json:"estimatedDuration,omitempty"`
	Order             int       `firestore:"order" json:"order"`
	Active            bool      `firestore:"active" json:"active"`
	CreatedAt         time.Time `firestore:"createdAt" json:"createdAt"`
}

// Note is an append-only progress entry on a task.
type Note struct {
	ID        string `firestore:"id" json:"id"`
	Text      string `firestore:"text" json:"text"`
	Author    string `firestore:"author" json:"author"`
	Date      string `firestore:"date" json:"date"`
	Timestamp string `firestore:"timestamp" json:"timestamp"`
}

// Task is one unit of scheduled work in a project. StartDate and DueDate
// use the YYYY-MM-DD wire format; an empty value means unset.
type Task struct {
	ID                string     `firestore:"-" json:"id"`
	ProjectID         string     `firestore:"projectId" json:"projectId"`
	TemplateID        string     `firestore:"templateId" json:"templateId"`
	Name              string     `firestore:"name" json:"name"`
	Category          string     `firestore:"category" json:"category"`
	Status            TaskStatus `firestore:"status" json:"status"`
	AssignedTo        []string   `firestore:"assignedTo" json:"assignedTo"`
	StartDate         string     `firestore:"startDate" json:"startDate"`
	DueDate           string     `firestore:"dueDate" json:"dueDate"`
	EstimatedDuration *float64   `firestore:"estimatedDuration" json:"estimatedDuration"`
	JobDetails        string     `firestore:"jobDetails" json:"jobDetails"`
	Notes             []Note     `firestore:"notes" json:"notes"`
	CreatedAt         time.Time  `firestore:"createdAt" json:"createdAt"`
	CreatedBy         string     `firestore:"createdBy" json:"createdBy"`
	LastUpdatedAt     time.Time  `firestore:"lastUpdatedAt" json:"lastUpdatedAt"`
	LastUpdatedBy     string     `firestore:"lastUpdatedBy" json:"lastUpdatedBy"`
}

// Scheduled reports whether both span endpoints are set.
func (t *Task) Scheduled() bool {
	return t.StartDate != "" && t.DueDate != ""
}

// IsAssigned reports whether name is in the assignment list.
func (t *Task) IsAssigned(name string) bool {
	for _, n := range t.AssignedTo {
		if n == name {
			return true
		}
	}
	return false
}
