// CodeQuarry Admin - Learning Platform Administration Server
// Copyright 2026 CodeQuarry Maintainers
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/codequarry/adminserver

// Package content holds the course and practice problem catalogs
// managed through the admin portal.
package content

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Catalog errors.
var (
	// ErrCourseNotFound is returned when no course matches the id.
	ErrCourseNotFound = errors.New("course not found")

	// ErrProblemNotFound is returned when no problem matches the id.
	ErrProblemNotFound = errors.New("problem not found")
)

// Course is a published or draft course in the catalog.
type Course struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category,omitempty"`
	Difficulty  string    `json:"difficulty,omitempty"`
	Duration    string    `json:"duration,omitempty"`
	Status      string    `json:"status,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Problem is a practice problem in the catalog.
type Problem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	Category    string    `json:"category,omitempty"`
	Difficulty  string    `json:"difficulty,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Category groups courses or problems for navigation.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Store is the in-memory content catalog.
type Store struct {
	mu       sync.RWMutex
	courses  map[string]*Course
	problems map[string]*Problem
}

// NewStore creates an empty catalog.
func NewStore() *Store {
	return &Store{
		courses:  make(map[string]*Course),
		problems: make(map[string]*Problem),
	}
}

// CreateCourse adds a course to the catalog, assigning its id and
// timestamps.
func (s *Store) CreateCourse(ctx context.Context, course *Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now

	s.courses[course.ID] = copyCourse(course)
	return nil
}

// GetCourse returns a course by id.
func (s *Store) GetCourse(ctx context.Context, id string) (*Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	course, ok := s.courses[id]
	if !ok {
		return nil, ErrCourseNotFound
	}
	return copyCourse(course), nil
}

// ListCourses returns all courses ordered by creation time.
func (s *Store) ListCourses(ctx context.Context) ([]*Course, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	courses := make([]*Course, 0, len(s.courses))
	for _, course := range s.courses {
		courses = append(courses, copyCourse(course))
	}
	sort.Slice(courses, func(i, j int) bool {
		return courses[i].CreatedAt.Before(courses[j].CreatedAt)
	})
	return courses, nil
}

// CreateProblem adds a problem to the catalog, assigning its id and
// timestamps.
func (s *Store) CreateProblem(ctx context.Context, problem *Problem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if problem.ID == "" {
		problem.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	problem.CreatedAt = now
	problem.UpdatedAt = now

	s.problems[problem.ID] = copyProblem(problem)
	return nil
}

// GetProblem returns a problem by id.
func (s *Store) GetProblem(ctx context.Context, id string) (*Problem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	problem, ok := s.problems[id]
	if !ok {
		return nil, ErrProblemNotFound
	}
	return copyProblem(problem), nil
}

// ListProblems returns all problems ordered by creation time.
func (s *Store) ListProblems(ctx context.Context) ([]*Problem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	problems := make([]*Problem, 0, len(s.problems))
	for _, problem := range s.problems {
		problems = append(problems, copyProblem(problem))
	}
	sort.Slice(problems, func(i, j int) bool {
		return problems[i].CreatedAt.Before(problems[j].CreatedAt)
	})
	return problems, nil
}

// CourseCategories returns the static course category list.
func CourseCategories() []Category {
	return []Category{
		{ID: "cat-001", Name: "Programming", Description: "Programming courses"},
		{ID: "cat-002", Name: "Algorithms", Description: "Algorithms and data structures"},
		{ID: "cat-003", Name: "Web Development", Description: "Web development courses"},
		{ID: "cat-004", Name: "Database", Description: "Database courses"},
	}
}

// ProblemCategories returns the static problem category list.
func ProblemCategories() []Category {
	return []Category{
		{ID: "prob-cat-001", Name: "Arrays", Description: "Array manipulation problems"},
		{ID: "prob-cat-002", Name: "Strings", Description: "String processing problems"},
		{ID: "prob-cat-003", Name: "Trees", Description: "Tree and graph problems"},
		{ID: "prob-cat-004", Name: "Dynamic Programming", Description: "DP problems"},
	}
}

func copyCourse(course *Course) *Course {
	copied := *course
	if course.Tags != nil {
		copied.Tags = append([]string(nil), course.Tags...)
	}
	return &copied
}

func copyProblem(problem *Problem) *Problem {
	copied := *problem
	if problem.Tags != nil {
		copied.Tags = append([]string(nil), problem.Tags...)
	}
	return &copied
}
