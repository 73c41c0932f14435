package server

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/devblocker/devblocker/internal/model"
	commentsvc "github.com/devblocker/devblocker/internal/service/comment"
)

type createCommentRequest struct {
	Content         string     `json:"content"`
	ParentCommentID *uuid.UUID `json:"parent_comment_id"`
}

// HandleCreateComment handles POST /api/blockers/{blocker_id}/comments.
func (h *Handlers) HandleCreateComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	blockerID, ok := pathUUID(w, r, "blocker_id")
	if !ok {
		return
	}

	var req createCommentRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.Content == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "content is required")
		return
	}

	c, err := h.commentSvc.Create(r.Context(), commentsvc.CreateInput{
		BlockerID: blockerID,
		UserID:    userID,
		ParentID:  req.ParentCommentID,
		Content:   req.Content,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, c)
}

// HandleListComments handles GET /api/blockers/{blocker_id}/comments.
func (h *Handlers) HandleListComments(w http.ResponseWriter, r *http.Request) {
	blockerID, ok := pathUUID(w, r, "blocker_id")
	if !ok {
		return
	}
	limit, offset := parsePagination(r, 100, 500)
	comments, err := h.commentSvc.ListByBlocker(r.Context(), blockerID, limit, offset)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeList(w, r, comments, len(comments), limit, offset)
}

// HandleGetComment handles GET /api/comments/{comment_id}.
func (h *Handlers) HandleGetComment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "comment_id")
	if !ok {
		return
	}
	c, err := h.commentSvc.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, c)
}
