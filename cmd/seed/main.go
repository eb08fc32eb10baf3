package main

import (
	"context"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/assignment-portal-api/internal/models"
	"github.com/noah-isme/assignment-portal-api/internal/repository"
	"github.com/noah-isme/assignment-portal-api/pkg/config"
	"github.com/noah-isme/assignment-portal-api/pkg/database"
)

// Seeds demo accounts and assignments for local development. Existing
// rows with the same keys cause insert errors; run against a fresh
// database.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	users := repository.NewUserRepository(db)
	assignments := repository.NewAssignmentRepository(db)
	submissions := repository.NewSubmissionRepository(db)

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash demo password: %v", err)
	}

	teacher := &models.User{Email: "teacher@demo.com", PasswordHash: string(hash), FullName: "John Teacher", Role: models.RoleTeacher, Active: true}
	student1 := &models.User{Email: "student1@demo.com", PasswordHash: string(hash), FullName: "Alice Student", Role: models.RoleStudent, Active: true}
	student2 := &models.User{Email: "student2@demo.com", PasswordHash: string(hash), FullName: "Bob Student", Role: models.RoleStudent, Active: true}
	for _, u := range []*models.User{teacher, student1, student2} {
		if err := users.Create(ctx, u); err != nil {
			log.Fatalf("failed to seed user %s: %v", u.Email, err)
		}
	}

	now := time.Now().UTC()
	published1 := &models.Assignment{
		Title:       "JavaScript Fundamentals",
		Description: "Complete the JavaScript exercises covering variables, functions, and loops. Submit your solutions with proper comments explaining your approach.",
		DueDate:     now.Add(7 * 24 * time.Hour),
		CreatedBy:   teacher.ID,
		Status:      models.AssignmentStatusPublished,
	}
	published2 := &models.Assignment{
		Title:       "React Component Design",
		Description: "Build a todo list application using React hooks. Include add, delete, and toggle functionality with proper state management.",
		DueDate:     now.Add(14 * 24 * time.Hour),
		CreatedBy:   teacher.ID,
		Status:      models.AssignmentStatusPublished,
	}
	draft := &models.Assignment{
		Title:       "Database Design Project",
		Description: "Design a database schema for an e-commerce application. Include tables for users, products, orders, and relationships.",
		DueDate:     now.Add(21 * 24 * time.Hour),
		CreatedBy:   teacher.ID,
		Status:      models.AssignmentStatusDraft,
	}
	for _, a := range []*models.Assignment{published1, published2, draft} {
		if err := assignments.Create(ctx, a); err != nil {
			log.Fatalf("failed to seed assignment %s: %v", a.Title, err)
		}
	}

	demo := &models.Submission{
		AssignmentID: published1.ID,
		StudentID:    student1.ID,
		Answer:       "let x = 1; function add(a, b) { return a + b; } // solutions attached",
	}
	if err := submissions.CreateIfAbsent(ctx, demo); err != nil {
		log.Fatalf("failed to seed submission: %v", err)
	}

	log.Printf("seeded 3 users, 3 assignments, 1 submission")
}
