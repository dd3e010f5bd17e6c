package handlers

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"knowde-backend/application/ports"
	"knowde-backend/domain/core/entities"
	"knowde-backend/infrastructure/persistence/docstore"
	"knowde-backend/pkg/auth"
	"knowde-backend/pkg/common"
	pkgerrors "knowde-backend/pkg/errors"
)

// GraphHandler serves read access to a user's concept graph and lesson plans
type GraphHandler struct {
	store  ports.DocumentStore
	logger *zap.Logger
}

// NewGraphHandler creates the read-side handler
func NewGraphHandler(store ports.DocumentStore, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{
		store:  store,
		logger: logger,
	}
}

// graphData is the shape the front-end renders
type graphData struct {
	UserID string                  `json:"userId"`
	Nodes  []*entities.ConceptNode `json:"nodes"`
	Edges  []*entities.ConceptEdge `json:"edges"`
}

// GetGraph handles GET /graph: the caller's full concept graph
func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, string(pkgerrors.ErrorTypeUnauthorized), "authentication required")
		return
	}

	nodeDocs, err := h.store.Stream(r.Context(), docstore.NodesPrefix(user.UserID))
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	edgeDocs, err := h.store.Stream(r.Context(), docstore.EdgesPrefix(user.UserID))
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	data := graphData{UserID: user.UserID, Nodes: []*entities.ConceptNode{}, Edges: []*entities.ConceptEdge{}}
	for _, doc := range nodeDocs {
		var node entities.ConceptNode
		if err := json.Unmarshal(doc.Data, &node); err != nil {
			h.logger.Warn("skipping undecodable node document", zap.String("path", doc.Path), zap.Error(err))
			continue
		}
		data.Nodes = append(data.Nodes, &node)
	}
	for _, doc := range edgeDocs {
		var edge entities.ConceptEdge
		if err := json.Unmarshal(doc.Data, &edge); err != nil {
			h.logger.Warn("skipping undecodable edge document", zap.String("path", doc.Path), zap.Error(err))
			continue
		}
		data.Edges = append(data.Edges, &edge)
	}

	common.RespondJSON(w, http.StatusOK, data)
}

// GetPlan handles GET /plans/{planID}: one plan with its lessons
func (h *GraphHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, string(pkgerrors.ErrorTypeUnauthorized), "authentication required")
		return
	}

	planID := chi.URLParam(r, "planID")
	if planID == "" {
		common.RespondError(w, http.StatusBadRequest, string(pkgerrors.ErrorTypeInvalidRequest), "planID is required")
		return
	}

	var plan map[string]interface{}
	if err := h.store.Get(r.Context(), docstore.PlanPath(user.UserID, planID), &plan); err != nil {
		common.RespondAppError(w, err)
		return
	}

	lessonDocs, err := h.store.Stream(r.Context(), docstore.LessonsPrefix(user.UserID, planID))
	if err != nil {
		common.RespondAppError(w, err)
		return
	}
	lessons := make([]entities.Lesson, 0, len(lessonDocs))
	for _, doc := range lessonDocs {
		var lesson entities.Lesson
		if err := json.Unmarshal(doc.Data, &lesson); err != nil {
			h.logger.Warn("skipping undecodable lesson document", zap.String("path", doc.Path), zap.Error(err))
			continue
		}
		lessons = append(lessons, lesson)
	}
	// Stream returns path order; the front-end wants lesson order
	sort.Slice(lessons, func(i, j int) bool { return lessons[i].Order < lessons[j].Order })
	plan["lessons"] = lessons

	// Reading a plan counts as access; the write is best-effort
	plan["lastAccessed"] = time.Now().UTC()
	refreshed := make(map[string]interface{}, len(plan))
	for key, value := range plan {
		if key != "lessons" {
			refreshed[key] = value
		}
	}
	if err := h.store.Set(r.Context(), docstore.PlanPath(user.UserID, planID), refreshed); err != nil {
		h.logger.Warn("failed to refresh lastAccessed", zap.String("plan_id", planID), zap.Error(err))
	}

	common.RespondJSON(w, http.StatusOK, plan)
}

// GetProfile handles GET /profile: the caller's root profile document
func (h *GraphHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, string(pkgerrors.ErrorTypeUnauthorized), "authentication required")
		return
	}

	var profile entities.UserProfile
	if err := h.store.Get(r.Context(), docstore.UserPath(user.UserID), &profile); err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, profile)
}
