package orchestration

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"knowde-backend/application/contracts"
	"knowde-backend/application/ports"
	"knowde-backend/domain/core/entities"
	"knowde-backend/infrastructure/persistence/docstore"
	pkgerrors "knowde-backend/pkg/errors"
)

// lessonWriteFailingStore fails every write under a lessons collection
type lessonWriteFailingStore struct {
	ports.DocumentStore
}

func (s *lessonWriteFailingStore) Set(ctx context.Context, path string, doc interface{}) error {
	if strings.Contains(path, "/lessons/") {
		return pkgerrors.NewInternalError("lesson write failed")
	}
	return s.DocumentStore.Set(ctx, path, doc)
}

// enrichedPlanContext builds a shared context as the resource enricher would
// leave it, with a three-lesson plan ready for persistence
func enrichedPlanContext(t *testing.T) (*SharedContext, *entities.Plan) {
	t.Helper()

	sc := testContext(t)
	plan, err := entities.NewPlan("user123", "Linear Algebra", "Vectors and matrices", "I want to learn linear algebra")
	require.NoError(t, err)

	for i, title := range []string{"Vectors", "Matrices", "Determinants"} {
		require.NoError(t, plan.AddLesson(entities.Lesson{
			LessonID:          "lesson-" + title,
			Title:             title,
			Objectives:        []string{"Understand " + title},
			Content:           "An introduction to " + title + ".",
			ExternalResources: []string{"https://example.com/" + title},
			Order:             i,
		}))
	}

	sc.Append("resourceEnricher", plan)
	return sc, plan
}

func TestPlanPersister_LessonWriteFailureLeavesNoReadablePlan(t *testing.T) {
	// Arrange
	store := docstore.NewMemoryStore()
	persister := NewPlanPersister(&lessonWriteFailingStore{DocumentStore: store}, zap.NewNop())
	sc, plan := enrichedPlanContext(t)

	// Act
	_, err := persister.Execute(context.Background(), sc)

	// Assert: the failed run must not leave a plan whose lessons are unreadable
	require.Error(t, err)
	var doc map[string]interface{}
	getErr := store.Get(context.Background(), docstore.PlanPath(plan.UserID, plan.PlanID), &doc)
	assert.True(t, pkgerrors.IsNotFound(getErr), "plan document must not be readable after a lesson write failure")
}

func TestPlanPersister_SecondExecutionYieldsOneDocumentPerLesson(t *testing.T) {
	// Arrange
	store := docstore.NewMemoryStore()
	persister := NewPlanPersister(store, zap.NewNop())
	sc, plan := enrichedPlanContext(t)

	// Act: persist the same payload twice, as the rewrite after a verify miss does
	first, err := persister.Execute(context.Background(), sc)
	require.NoError(t, err)
	second, err := persister.Execute(context.Background(), sc)
	require.NoError(t, err)

	// Assert: both receipts name the same path and the lesson collection holds
	// exactly one document per lessonId
	assert.Equal(t, first.(*contracts.PlanReceipt).Path, second.(*contracts.PlanReceipt).Path)

	docs, err := store.Stream(context.Background(), docstore.LessonsPrefix(plan.UserID, plan.PlanID))
	require.NoError(t, err)
	require.Len(t, docs, len(plan.Lessons))

	seen := make(map[string]int, len(docs))
	for _, d := range docs {
		var lesson entities.Lesson
		require.NoError(t, json.Unmarshal(d.Data, &lesson))
		seen[lesson.LessonID]++
	}
	for _, id := range plan.LessonIDs() {
		assert.Equal(t, 1, seen[id], "lesson %s must have exactly one document", id)
	}
}
