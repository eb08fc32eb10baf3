package models

import "time"

// AssignmentStatus represents the lifecycle state of an assignment.
type AssignmentStatus string

const (
	AssignmentStatusDraft     AssignmentStatus = "draft"
	AssignmentStatusPublished AssignmentStatus = "published"
	AssignmentStatusCompleted AssignmentStatus = "completed"
)

// statusTransitions lists the only legal forward edges. Completed is
// terminal; there is no path back to an earlier state.
var statusTransitions = map[AssignmentStatus][]AssignmentStatus{
	AssignmentStatusDraft:     {AssignmentStatusPublished},
	AssignmentStatusPublished: {AssignmentStatusCompleted},
	AssignmentStatusCompleted: {},
}

// ValidAssignmentStatus reports whether the value names a known state.
func ValidAssignmentStatus(s AssignmentStatus) bool {
	_, ok := statusTransitions[s]
	return ok
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to AssignmentStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Assignment represents a task published by a teacher.
type Assignment struct {
	ID          string           `db:"id" json:"id"`
	Title       string           `db:"title" json:"title"`
	Description string           `db:"description" json:"description"`
	DueDate     time.Time        `db:"due_date" json:"due_date"`
	CreatedBy   string           `db:"created_by" json:"created_by"`
	Status      AssignmentStatus `db:"status" json:"status"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// AssignmentDetail joins the creator's display name onto an assignment.
type AssignmentDetail struct {
	Assignment
	CreatedByName string `db:"created_by_name" json:"created_by_name"`
}

// AssignmentWithCount adds the submission total for teacher listings.
type AssignmentWithCount struct {
	AssignmentDetail
	SubmissionCount int `db:"submission_count" json:"submission_count"`
}

// AssignmentFilter captures listing criteria.
type AssignmentFilter struct {
	CreatedBy string
	Status    AssignmentStatus
}
