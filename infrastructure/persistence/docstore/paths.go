// Package docstore defines the document-tree layout shared by every
// DocumentStore implementation. Paths are part of the external contract and
// must stay stable across backends.
package docstore

// The tree is rooted at users/{userId}:
//
//	users/{userId}/lessonPlans/{planId}
//	users/{userId}/lessonPlans/{planId}/lessons/{lessonId}
//	users/{userId}/knowledgeGraph/nodeHolder/nodes/{conceptId}
//	users/{userId}/knowledgeGraph/edgeHolder/edges/{edgeId}

// UserPath returns the root document path for a user
func UserPath(userID string) string {
	return "users/" + userID
}

// PlanPath returns the path of one lesson plan document
func PlanPath(userID, planID string) string {
	return UserPath(userID) + "/lessonPlans/" + planID
}

// LessonsPrefix returns the collection prefix holding a plan's lessons
func LessonsPrefix(userID, planID string) string {
	return PlanPath(userID, planID) + "/lessons"
}

// LessonPath returns the path of one lesson document
func LessonPath(userID, planID, lessonID string) string {
	return LessonsPrefix(userID, planID) + "/" + lessonID
}

// NodesPrefix returns the collection prefix holding a user's concept nodes
func NodesPrefix(userID string) string {
	return UserPath(userID) + "/knowledgeGraph/nodeHolder/nodes"
}

// NodePath returns the path of one concept node document
func NodePath(userID, conceptID string) string {
	return NodesPrefix(userID) + "/" + conceptID
}

// EdgesPrefix returns the collection prefix holding a user's concept edges
func EdgesPrefix(userID string) string {
	return UserPath(userID) + "/knowledgeGraph/edgeHolder/edges"
}

// EdgePath returns the path of one concept edge document
func EdgePath(userID, edgeID string) string {
	return EdgesPrefix(userID) + "/" + edgeID
}
