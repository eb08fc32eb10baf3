package models

import "time"

// Submission represents a student's answer to a published assignment.
// The (AssignmentID, StudentID) pair is unique; the database enforces
// it so concurrent duplicate attempts cannot both land.
type Submission struct {
	ID           string    `db:"id" json:"id"`
	AssignmentID string    `db:"assignment_id" json:"assignment_id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	Answer       string    `db:"answer" json:"answer"`
	SubmittedAt  time.Time `db:"submitted_at" json:"submitted_at"`
	Reviewed     bool      `db:"reviewed" json:"reviewed"`
}

// SubmissionDetail joins student and assignment context onto a submission.
type SubmissionDetail struct {
	Submission
	StudentName     string    `db:"student_name" json:"student_name"`
	StudentEmail    string    `db:"student_email" json:"student_email"`
	AssignmentTitle string    `db:"assignment_title" json:"assignment_title"`
	AssignmentDue   time.Time `db:"assignment_due" json:"assignment_due"`
}
