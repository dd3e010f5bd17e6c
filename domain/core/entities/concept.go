package entities

import (
	"time"

	"github.com/google/uuid"

	pkgerrors "knowde-backend/pkg/errors"
)

// RelationshipType defines the typed relationships between concepts
type RelationshipType string

const (
	RelationshipRelatedTo       RelationshipType = "relatedTo"
	RelationshipPrerequisiteFor RelationshipType = "prerequisiteFor"
	RelationshipPartOf          RelationshipType = "partOf"
)

// ValidRelationship reports whether the given type is in the closed enum
func ValidRelationship(t RelationshipType) bool {
	switch t {
	case RelationshipRelatedTo, RelationshipPrerequisiteFor, RelationshipPartOf:
		return true
	}
	return false
}

// ConceptNode is a single learnable concept with a mastery score and a
// spaced-repetition review schedule. SourceLessonID is a weak back-reference
// to the lesson that produced the concept; it carries no ownership.
type ConceptNode struct {
	ConceptID          string    `json:"conceptId" validate:"required"`
	Name               string    `json:"name" validate:"required"`
	Description        string    `json:"description"`
	MasteryLevel       int       `json:"masteryLevel" validate:"min=0,max=100"`
	LastReviewed       time.Time `json:"lastReviewed"`
	NextReview         time.Time `json:"nextReview"`
	RepetitionInterval int       `json:"repetitionInterval" validate:"min=1"`
	SourceLessonID     string    `json:"sourceLessonId,omitempty"`
}

// ConceptEdge is a typed relationship between two concepts in the same graph
type ConceptEdge struct {
	EdgeID           string           `json:"edgeId" validate:"required"`
	SourceConceptID  string           `json:"sourceConceptId" validate:"required"`
	TargetConceptID  string           `json:"targetConceptId" validate:"required,nefield=SourceConceptID"`
	RelationshipType RelationshipType `json:"relationshipType" validate:"required,oneof=relatedTo prerequisiteFor partOf"`
}

// NewConceptNode creates a concept with its initial review schedule.
// The update rule after a review is owned by the review-feedback process;
// the orchestration core only sets these starting values.
func NewConceptNode(name, description, sourceLessonID string) (*ConceptNode, error) {
	if name == "" {
		return nil, pkgerrors.NewInvalidRequestError("concept name cannot be empty")
	}

	now := time.Now().UTC()
	interval := 1
	return &ConceptNode{
		ConceptID:          uuid.New().String(),
		Name:               name,
		Description:        description,
		MasteryLevel:       0,
		LastReviewed:       now,
		NextReview:         now.AddDate(0, 0, interval),
		RepetitionInterval: interval,
		SourceLessonID:     sourceLessonID,
	}, nil
}

// NewConceptEdge creates a typed edge between two distinct concepts
func NewConceptEdge(sourceConceptID, targetConceptID string, relationship RelationshipType) (*ConceptEdge, error) {
	if sourceConceptID == "" || targetConceptID == "" {
		return nil, pkgerrors.NewInvalidRequestError("edge endpoints cannot be empty")
	}
	if sourceConceptID == targetConceptID {
		return nil, pkgerrors.NewSelfReferenceError(sourceConceptID)
	}
	if !ValidRelationship(relationship) {
		return nil, pkgerrors.NewInvalidRequestError("unknown relationship type: " + string(relationship))
	}

	return &ConceptEdge{
		EdgeID:           uuid.New().String(),
		SourceConceptID:  sourceConceptID,
		TargetConceptID:  targetConceptID,
		RelationshipType: relationship,
	}, nil
}

// RefreshFrom applies the merge policy for a conceptId collision: the stored
// node keeps its identity while mastery and review fields are refreshed from
// the incoming derivation. The repetition interval is not grown here; interval
// growth belongs to the review-feedback process.
func (n *ConceptNode) RefreshFrom(incoming *ConceptNode) {
	n.Name = incoming.Name
	if incoming.Description != "" {
		n.Description = incoming.Description
	}
	if incoming.SourceLessonID != "" {
		n.SourceLessonID = incoming.SourceLessonID
	}
	n.LastReviewed = time.Now().UTC()
	n.NextReview = n.LastReviewed.AddDate(0, 0, n.RepetitionInterval)
}

// Due reports whether the concept is due for review at the given time
func (n *ConceptNode) Due(at time.Time) bool {
	return !at.Before(n.NextReview)
}
