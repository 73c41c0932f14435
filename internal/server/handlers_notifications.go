package server

import "net/http"

// HandleListNotifications handles GET /api/notifications. The acting
// user's notifications are returned, optionally filtered to unread with
// ?unread=true.
func (h *Handlers) HandleListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	unreadOnly := r.URL.Query().Get("unread") == "true"
	limit, offset := parsePagination(r, 50, 200)

	notifications, err := h.notificationSvc.List(r.Context(), userID, unreadOnly, limit, offset)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeList(w, r, notifications, len(notifications), limit, offset)
}

// HandleMarkNotificationRead handles POST /api/notifications/{notification_id}/mark-read.
func (h *Handlers) HandleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "notification_id")
	if !ok {
		return
	}

	if err := h.notificationSvc.MarkRead(r.Context(), id, userID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUnreadCount handles GET /api/notifications/unread-count.
func (h *Handlers) HandleUnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	count, err := h.notificationSvc.UnreadCount(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]int{"unread_count": count})
}
