package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"knowde-backend/domain/core/entities"
	"knowde-backend/infrastructure/persistence/docstore"
)

func TestGetPlan_LessonsSortedByOrder(t *testing.T) {
	// Arrange: lessonIds whose path order disagrees with lesson order
	store := docstore.NewMemoryStore()
	ctx := context.Background()
	userID := "user123"
	planID := "plan123"

	require.NoError(t, store.Set(ctx, docstore.PlanPath(userID, planID), map[string]interface{}{
		"planId": planID,
		"userId": userID,
		"title":  "Linear Algebra",
	}))
	lessons := []entities.Lesson{
		{LessonID: "aa-lesson", Title: "Determinants", Order: 2},
		{LessonID: "bb-lesson", Title: "Vectors", Order: 0},
		{LessonID: "cc-lesson", Title: "Matrices", Order: 1},
	}
	for _, lesson := range lessons {
		require.NoError(t, store.Set(ctx, docstore.LessonPath(userID, planID, lesson.LessonID), lesson))
	}

	router := chi.NewRouter()
	router.Get("/plans/{planID}", NewGraphHandler(store, zap.NewNop()).GetPlan)

	req := httptest.NewRequest(http.MethodGet, "/plans/"+planID, nil)
	req = authenticated(req, userID)
	rec := httptest.NewRecorder()

	// Act
	router.ServeHTTP(rec, req)

	// Assert
	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data struct {
			Lessons []entities.Lesson `json:"lessons"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data.Lessons, 3)

	titles := make([]string, 0, 3)
	for _, lesson := range envelope.Data.Lessons {
		titles = append(titles, lesson.Title)
	}
	assert.Equal(t, []string{"Vectors", "Matrices", "Determinants"}, titles)
}
