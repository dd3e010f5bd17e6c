package events

import (
	"time"
)

// PlanCreated is raised after a lesson plan write has been confirmed
type PlanCreated struct {
	BaseEvent
	PlanID      string `json:"plan_id"`
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	LessonCount int    `json:"lesson_count"`
}

// NewPlanCreated creates a PlanCreated event
func NewPlanCreated(planID, userID, title string, lessonCount int, timestamp time.Time) PlanCreated {
	return PlanCreated{
		BaseEvent: BaseEvent{
			AggregateID: planID,
			EventType:   "plan.created",
			Timestamp:   timestamp,
			Version:     1,
		},
		PlanID:      planID,
		UserID:      userID,
		Title:       title,
		LessonCount: lessonCount,
	}
}

// GraphUpdated is raised after a concept graph write has been confirmed
type GraphUpdated struct {
	BaseEvent
	UserID       string `json:"user_id"`
	PlanID       string `json:"plan_id"`
	NodesWritten int    `json:"nodes_written"`
	EdgesWritten int    `json:"edges_written"`
	Dropped      int    `json:"dropped"`
}

// NewGraphUpdated creates a GraphUpdated event
func NewGraphUpdated(userID, planID string, nodesWritten, edgesWritten, dropped int, timestamp time.Time) GraphUpdated {
	return GraphUpdated{
		BaseEvent: BaseEvent{
			AggregateID: userID,
			EventType:   "graph.updated",
			Timestamp:   timestamp,
			Version:     1,
		},
		UserID:       userID,
		PlanID:       planID,
		NodesWritten: nodesWritten,
		EdgesWritten: edgesWritten,
		Dropped:      dropped,
	}
}

// RunFailed is raised when an orchestration run ends in a terminal failure
type RunFailed struct {
	BaseEvent
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id"`
	LastState string `json:"last_state"`
	Reason    string `json:"reason"`
}

// NewRunFailed creates a RunFailed event
func NewRunFailed(requestID, userID, lastState, reason string, timestamp time.Time) RunFailed {
	return RunFailed{
		BaseEvent: BaseEvent{
			AggregateID: requestID,
			EventType:   "run.failed",
			Timestamp:   timestamp,
			Version:     1,
		},
		RequestID: requestID,
		UserID:    userID,
		LastState: lastState,
		Reason:    reason,
	}
}
