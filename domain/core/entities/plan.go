package entities

import (
	"time"

	"github.com/google/uuid"

	pkgerrors "knowde-backend/pkg/errors"
)

// PlanStatus represents the lifecycle state of a lesson plan
type PlanStatus string

const (
	PlanStatusActive   PlanStatus = "active"
	PlanStatusArchived PlanStatus = "archived"
)

// Plan is a titled, ordered sequence of lessons generated for one user request.
// A plan owns its lessons; lessons are never shared across plans. Plans are
// archived by status flip and never physically deleted.
type Plan struct {
	PlanID       string     `json:"planId" validate:"required"`
	UserID       string     `json:"userId" validate:"required"`
	Title        string     `json:"title" validate:"required"`
	Description  string     `json:"description"`
	SourcePrompt string     `json:"sourcePrompt" validate:"required"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastAccessed time.Time  `json:"lastAccessed"`
	Status       PlanStatus `json:"status" validate:"required,oneof=active archived"`
	Lessons      []Lesson   `json:"lessons" validate:"required,min=1,dive"`
}

// Lesson is a single teachable unit with objectives, content, and external resources
type Lesson struct {
	LessonID          string   `json:"lessonId" validate:"required"`
	Title             string   `json:"title" validate:"required"`
	Objectives        []string `json:"objectives" validate:"required,min=1,dive,required"`
	Content           string   `json:"content" validate:"required"`
	ExternalResources []string `json:"externalResources" validate:"required,min=1,dive,url"`
	Order             int      `json:"order" validate:"min=0"`
}

// NewPlan creates a plan shell for a user request; lessons are attached by the drafter
func NewPlan(userID, title, description, sourcePrompt string) (*Plan, error) {
	if userID == "" {
		return nil, pkgerrors.NewInvalidRequestError("userID cannot be empty")
	}
	if title == "" {
		return nil, pkgerrors.NewInvalidRequestError("plan title cannot be empty")
	}

	now := time.Now().UTC()
	return &Plan{
		PlanID:       uuid.New().String(),
		UserID:       userID,
		Title:        title,
		Description:  description,
		SourcePrompt: sourcePrompt,
		CreatedAt:    now,
		LastAccessed: now,
		Status:       PlanStatusActive,
		Lessons:      []Lesson{},
	}, nil
}

// AddLesson appends a lesson, enforcing uniqueness of lessonId and order within the plan
func (p *Plan) AddLesson(lesson Lesson) error {
	for _, existing := range p.Lessons {
		if existing.LessonID == lesson.LessonID {
			return pkgerrors.NewConflictError("lesson '" + lesson.LessonID + "' already exists in plan")
		}
		if existing.Order == lesson.Order {
			return pkgerrors.NewConflictError("lesson order is already taken in plan")
		}
	}
	if lesson.Order < 0 {
		return pkgerrors.NewInvalidRequestError("lesson order must be non-negative")
	}

	p.Lessons = append(p.Lessons, lesson)
	return nil
}

// LessonByID returns the lesson with the given id, if present
func (p *Plan) LessonByID(lessonID string) (Lesson, bool) {
	for _, lesson := range p.Lessons {
		if lesson.LessonID == lessonID {
			return lesson, true
		}
	}
	return Lesson{}, false
}

// LessonIDs returns the ids of all lessons in plan order
func (p *Plan) LessonIDs() []string {
	ids := make([]string, 0, len(p.Lessons))
	for _, lesson := range p.Lessons {
		ids = append(ids, lesson.LessonID)
	}
	return ids
}

// Touch refreshes the last-accessed timestamp
func (p *Plan) Touch() {
	p.LastAccessed = time.Now().UTC()
}

// Archive flips the plan status; archived plans stay readable
func (p *Plan) Archive() {
	p.Status = PlanStatusArchived
}

// IsActive reports whether the plan is the user's live plan
func (p *Plan) IsActive() bool {
	return p.Status == PlanStatusActive
}
