package contracts

import (
	"fmt"

	"knowde-backend/domain/core/entities"
	"knowde-backend/pkg/utils"
)

// Kind names a contract schema. Every role emits a payload that must pass
// Validate for its kind before it is handed to the next role.
type Kind string

const (
	KindIntent         Kind = "intent"
	KindPlanDraft      Kind = "planDraft"
	KindEnrichedPlan   Kind = "enrichedPlan"
	KindPlanReceipt    Kind = "planReceipt"
	KindGraphCandidate Kind = "graphCandidate"
	KindGraphReceipt   Kind = "graphReceipt"
)

// Intent is the coordinator's binary classification of a user prompt
type Intent struct {
	Intent string `json:"intent" validate:"required,oneof=new_topic none"`
	Topic  string `json:"topic,omitempty"`
}

// IntentNewTopic and IntentNone are the only intents the coordinator acts on
const (
	IntentNewTopic = "new_topic"
	IntentNone     = "none"
)

// LessonDraft is a lesson before resource enrichment: objectives and content
// are required, external resources are not yet attached
type LessonDraft struct {
	LessonID   string   `json:"lessonId" validate:"required"`
	Title      string   `json:"title" validate:"required"`
	Objectives []string `json:"objectives" validate:"required,min=1,dive,required"`
	Content    string   `json:"content" validate:"required"`
	Order      int      `json:"order" validate:"min=0"`
}

// PlanDraft is the PlanDrafter's output: a full plan shape minus resources
type PlanDraft struct {
	UserID       string        `json:"userId" validate:"required"`
	Title        string        `json:"title" validate:"required"`
	Description  string        `json:"description"`
	SourcePrompt string        `json:"sourcePrompt" validate:"required"`
	Lessons      []LessonDraft `json:"lessons" validate:"required,min=1,dive"`
}

// PlanReceipt is the PlanPersister's output: where the plan landed
type PlanReceipt struct {
	PlanID      string `json:"planId" validate:"required"`
	UserID      string `json:"userId" validate:"required"`
	Path        string `json:"path" validate:"required"`
	LessonCount int    `json:"lessonCount" validate:"min=1"`
}

// GraphCandidate is the GraphDeriver's output: nodes and edges proposed for
// the user's concept graph, not yet checked by the consistency engine
type GraphCandidate struct {
	UserID string                  `json:"userId" validate:"required"`
	PlanID string                  `json:"planId" validate:"required"`
	Nodes  []*entities.ConceptNode `json:"nodes" validate:"required,min=1,dive"`
	Edges  []*entities.ConceptEdge `json:"edges" validate:"dive"`
}

// DroppedEntry records a candidate node or edge rejected by the consistency engine
type DroppedEntry struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// GraphReceipt is the GraphPersister's output: what was written and what was dropped
type GraphReceipt struct {
	UserID       string         `json:"userId" validate:"required"`
	PlanID       string         `json:"planId" validate:"required"`
	NodesWritten int            `json:"nodesWritten" validate:"min=0"`
	EdgesWritten int            `json:"edgesWritten" validate:"min=0"`
	Dropped      []DroppedEntry `json:"dropped"`
}

// Validate checks a payload against the schema for the given kind. A payload
// that fails here never reaches the next role.
func Validate(payload interface{}, kind Kind) error {
	switch kind {
	case KindIntent:
		p, err := as[*Intent](payload, kind)
		if err != nil {
			return err
		}
		return utils.ValidateStruct(p)

	case KindPlanDraft:
		p, err := as[*PlanDraft](payload, kind)
		if err != nil {
			return err
		}
		if err := utils.ValidateStruct(p); err != nil {
			return err
		}
		return checkLessonOrdering(lessonOrders(p.Lessons), lessonIDs(p.Lessons))

	case KindEnrichedPlan:
		p, err := as[*entities.Plan](payload, kind)
		if err != nil {
			return err
		}
		if err := utils.ValidateStruct(p); err != nil {
			return err
		}
		orders := make([]int, 0, len(p.Lessons))
		ids := make([]string, 0, len(p.Lessons))
		for _, lesson := range p.Lessons {
			orders = append(orders, lesson.Order)
			ids = append(ids, lesson.LessonID)
		}
		return checkLessonOrdering(orders, ids)

	case KindPlanReceipt:
		p, err := as[*PlanReceipt](payload, kind)
		if err != nil {
			return err
		}
		return utils.ValidateStruct(p)

	case KindGraphCandidate:
		p, err := as[*GraphCandidate](payload, kind)
		if err != nil {
			return err
		}
		if err := utils.ValidateStruct(p); err != nil {
			return err
		}
		return checkEdgeEndpoints(p)

	case KindGraphReceipt:
		p, err := as[*GraphReceipt](payload, kind)
		if err != nil {
			return err
		}
		return utils.ValidateStruct(p)
	}

	return fmt.Errorf("unknown schema kind: %s", kind)
}

func as[T any](payload interface{}, kind Kind) (T, error) {
	typed, ok := payload.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("payload for schema %q has type %T, want %T", kind, payload, zero)
	}
	return typed, nil
}

func lessonOrders(lessons []LessonDraft) []int {
	orders := make([]int, 0, len(lessons))
	for _, lesson := range lessons {
		orders = append(orders, lesson.Order)
	}
	return orders
}

func lessonIDs(lessons []LessonDraft) []string {
	ids := make([]string, 0, len(lessons))
	for _, lesson := range lessons {
		ids = append(ids, lesson.LessonID)
	}
	return ids
}

// checkLessonOrdering enforces the cross-field invariants the tag validator
// cannot express: lesson ids and order values are unique within one plan
func checkLessonOrdering(orders []int, ids []string) error {
	seenOrder := make(map[int]bool, len(orders))
	for _, order := range orders {
		if seenOrder[order] {
			return fmt.Errorf("lesson order %d appears more than once", order)
		}
		seenOrder[order] = true
	}

	seenID := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seenID[id] {
			return fmt.Errorf("lessonId %q appears more than once", id)
		}
		seenID[id] = true
	}
	return nil
}

// checkEdgeEndpoints enforces the shape-level edge invariant; existence of
// endpoints in the stored graph is the consistency engine's concern, but an
// edge whose endpoints are not even among the candidate nodes can be rejected
// at the schema gate when the candidate set itself is inconsistent
func checkEdgeEndpoints(p *GraphCandidate) error {
	for _, edge := range p.Edges {
		if edge.SourceConceptID == edge.TargetConceptID {
			return fmt.Errorf("edge %q connects concept %q to itself", edge.EdgeID, edge.SourceConceptID)
		}
	}
	return nil
}
