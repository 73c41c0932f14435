package server

import (
	"net/http"

	"github.com/devblocker/devblocker/internal/model"
	solutionsvc "github.com/devblocker/devblocker/internal/service/solution"
)

type createSolutionRequest struct {
	Content string `json:"content"`
}

// HandleCreateSolution handles POST /api/blockers/{blocker_id}/solutions.
func (h *Handlers) HandleCreateSolution(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	blockerID, ok := pathUUID(w, r, "blocker_id")
	if !ok {
		return
	}

	var req createSolutionRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.Content == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "content is required")
		return
	}

	sol, err := h.solutionSvc.Create(r.Context(), solutionsvc.CreateInput{
		BlockerID: blockerID,
		UserID:    userID,
		Content:   req.Content,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, sol)
}

// HandleListSolutions handles GET /api/blockers/{blocker_id}/solutions.
func (h *Handlers) HandleListSolutions(w http.ResponseWriter, r *http.Request) {
	blockerID, ok := pathUUID(w, r, "blocker_id")
	if !ok {
		return
	}
	solutions, err := h.solutionSvc.ListByBlocker(r.Context(), blockerID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, solutions)
}

// HandleGetSolution handles GET /api/solutions/{solution_id}.
func (h *Handlers) HandleGetSolution(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "solution_id")
	if !ok {
		return
	}
	sol, err := h.solutionSvc.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sol)
}

// HandleUpvoteSolution handles POST /api/solutions/{solution_id}/upvote.
// Repeat upvotes by the same user return the unchanged count.
func (h *Handlers) HandleUpvoteSolution(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "solution_id")
	if !ok {
		return
	}

	sol, err := h.solutionSvc.Upvote(r.Context(), id, userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sol)
}

// HandleAcceptSolution handles POST /api/solutions/{solution_id}/accept.
func (h *Handlers) HandleAcceptSolution(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "solution_id")
	if !ok {
		return
	}

	sol, err := h.solutionSvc.Accept(r.Context(), id, userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sol)
}

// HandleSolutionStats handles GET /api/users/{user_id}/solutions/stats.
func (h *Handlers) HandleSolutionStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "user_id")
	if !ok {
		return
	}
	stats, err := h.solutionSvc.StatsByUser(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}
