package server

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/devblocker/devblocker/internal/model"
	blockersvc "github.com/devblocker/devblocker/internal/service/blocker"
)

type createBlockerRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Severity    string     `json:"severity"`
	AssignedTo  *uuid.UUID `json:"assigned_to"`
	TeamCode    string     `json:"team_code"`
	Tags        []string   `json:"tags"`
}

// HandleCreateBlocker handles POST /api/blockers.
func (h *Handlers) HandleCreateBlocker(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req createBlockerRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.Title == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "title is required")
		return
	}

	b, err := h.blockerSvc.Create(r.Context(), blockersvc.CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Severity:    req.Severity,
		CreatedBy:   userID,
		AssignedTo:  req.AssignedTo,
		TeamCode:    req.TeamCode,
		Tags:        req.Tags,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, b)
}

// HandleGetBlocker handles GET /api/blockers/{blocker_id}.
func (h *Handlers) HandleGetBlocker(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "blocker_id")
	if !ok {
		return
	}
	b, err := h.blockerSvc.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, b)
}

// HandleListBlockers handles GET /api/blockers.
func (h *Handlers) HandleListBlockers(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r, 50, 200)
	blockers, err := h.blockerSvc.List(r.Context(), limit, offset)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeList(w, r, blockers, len(blockers), limit, offset)
}

type resolveBlockerRequest struct {
	BestSolutionID *uuid.UUID `json:"best_solution_id"`
}

// HandleResolveBlocker handles POST /api/blockers/{blocker_id}/resolve.
func (h *Handlers) HandleResolveBlocker(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "blocker_id")
	if !ok {
		return
	}

	var req resolveBlockerRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	b, err := h.blockerSvc.Resolve(r.Context(), id, req.BestSolutionID, userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, b)
}

type bestSolutionRequest struct {
	SolutionID uuid.UUID `json:"solution_id"`
}

// HandleUpdateBestSolution handles PUT /api/blockers/{blocker_id}/best-solution.
// Called by the solution service during acceptance.
func (h *Handlers) HandleUpdateBestSolution(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "blocker_id")
	if !ok {
		return
	}

	var req bestSolutionRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.SolutionID == uuid.Nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "solution_id is required")
		return
	}

	if err := h.blockerSvc.UpdateBestSolution(r.Context(), id, req.SolutionID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
