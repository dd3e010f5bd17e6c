package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"knowde-backend/application/orchestration"
	"knowde-backend/pkg/auth"
	"knowde-backend/pkg/common"
	pkgerrors "knowde-backend/pkg/errors"
)

// PromptHandler is the HTTP front door for the prompt-to-graph pipeline
type PromptHandler struct {
	coordinator *orchestration.Coordinator
	logger      *zap.Logger
}

// NewPromptHandler creates the prompt handler
func NewPromptHandler(coordinator *orchestration.Coordinator, logger *zap.Logger) *PromptHandler {
	return &PromptHandler{
		coordinator: coordinator,
		logger:      logger,
	}
}

// promptRequest is the POST body
type promptRequest struct {
	UserID string `json:"userId"`
	Prompt string `json:"prompt"`
}

// promptResponse echoes the accepted request plus the orchestration result
type promptResponse struct {
	Message string                `json:"message"`
	UserID  string                `json:"userId"`
	Prompt  string                `json:"prompt"`
	Result  *orchestration.Result `json:"result,omitempty"`
}

// SubmitPrompt handles POST /api/user-prompt
func (h *PromptHandler) SubmitPrompt(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if err := common.ParseJSONBody(r, &req, 64*1024); err != nil {
		common.RespondError(w, http.StatusBadRequest, string(pkgerrors.ErrorTypeInvalidRequest), "invalid request body")
		return
	}

	h.handle(w, r, req.UserID, req.Prompt)
}

// SubmitPromptQuery handles GET /api/user-prompt?userId=&prompt=, the query
// form the original front-end used
func (h *PromptHandler) SubmitPromptQuery(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	prompt := r.URL.Query().Get("prompt")
	h.handle(w, r, userID, prompt)
}

func (h *PromptHandler) handle(w http.ResponseWriter, r *http.Request, userID, prompt string) {
	// An authenticated caller may only start runs for themselves
	if user, err := auth.GetUserFromContext(r.Context()); err == nil {
		if userID == "" {
			userID = user.UserID
		} else if userID != user.UserID {
			common.RespondError(w, http.StatusForbidden, string(pkgerrors.ErrorTypeUnauthorized), "cannot submit prompts for another user")
			return
		}
	}

	result, err := h.coordinator.Handle(r.Context(), userID, strings.TrimSpace(prompt))
	if err != nil {
		h.logger.Warn("prompt run failed",
			zap.String("user_id", userID),
			zap.Error(err))
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, promptResponse{
		Message: "prompt processed",
		UserID:  userID,
		Prompt:  prompt,
		Result:  result,
	})
}
