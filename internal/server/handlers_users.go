package server

import (
	"net/http"
	"net/mail"
	"time"

	"github.com/devblocker/devblocker/internal/model"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister handles POST /api/auth/register.
func (h *Handlers) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid email address")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "password must be at least 8 characters")
		return
	}

	account, err := h.userSvc.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, account)
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HandleLogin handles POST /api/auth/login.
func (h *Handlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	token, expiresAt, err := h.userSvc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt})
}

// HandleMe handles GET /api/auth/me.
func (h *Handlers) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	profile, err := h.userSvc.Profile(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, profile)
}

// HandleGetProfile handles GET /api/users/{user_id}.
func (h *Handlers) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "user_id")
	if !ok {
		return
	}
	profile, err := h.userSvc.Profile(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, profile)
}

type updateProfileRequest struct {
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio"`
}

// HandleUpdateProfile handles PUT /api/users/{user_id}. Users may only
// update their own profile.
func (h *Handlers) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireUser(w, r)
	if !ok {
		return
	}
	userID, ok := pathUUID(w, r, "user_id")
	if !ok {
		return
	}
	if actorID != userID {
		writeError(w, r, http.StatusForbidden, model.ErrCodeForbidden, "cannot update another user's profile")
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	if err := h.userSvc.UpdateProfile(r.Context(), userID, req.DisplayName, req.Bio); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetReputation handles GET /api/users/{user_id}/reputation.
func (h *Handlers) HandleGetReputation(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "user_id")
	if !ok {
		return
	}
	rep, err := h.userSvc.Reputation(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rep)
}

type incrementReputationRequest struct {
	Points int    `json:"points"`
	Reason string `json:"reason"`
}

// HandleIncrementReputation handles POST /api/users/{user_id}/reputation.
// Called by peer services when awarding points.
func (h *Handlers) HandleIncrementReputation(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "user_id")
	if !ok {
		return
	}

	var req incrementReputationRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.Points == 0 {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "points must be non-zero")
		return
	}

	source := "API"
	if IsServicePrincipal(r.Context()) {
		source = "SERVICE"
	}
	rep, err := h.userSvc.IncrementReputation(r.Context(), userID, req.Points, req.Reason, source)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rep)
}

// HandleReputationHistory handles GET /api/users/{user_id}/reputation/history.
func (h *Handlers) HandleReputationHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "user_id")
	if !ok {
		return
	}
	history, err := h.userSvc.ReputationHistory(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, history)
}

// HandleUserBadges handles GET /api/users/{user_id}/badges.
func (h *Handlers) HandleUserBadges(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUUID(w, r, "user_id")
	if !ok {
		return
	}
	badges, err := h.userSvc.UserBadges(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, badges)
}

type createBadgeRequest struct {
	Name                string `json:"name"`
	Description         string `json:"description"`
	ReputationThreshold *int   `json:"reputation_threshold"`
}

// HandleCreateBadge handles POST /api/badges.
func (h *Handlers) HandleCreateBadge(w http.ResponseWriter, r *http.Request) {
	var req createBadgeRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.Name == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "name is required")
		return
	}

	badge, err := h.userSvc.CreateBadge(r.Context(), req.Name, req.Description, req.ReputationThreshold)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, badge)
}

// HandleListBadges handles GET /api/badges.
func (h *Handlers) HandleListBadges(w http.ResponseWriter, r *http.Request) {
	badges, err := h.userSvc.Badges(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, badges)
}

type createTeamRequest struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// HandleCreateTeam handles POST /api/teams. The creator is enrolled as
// the first member.
func (h *Handlers) HandleCreateTeam(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req createTeamRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.Name == "" || req.Code == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "name and code are required")
		return
	}

	team, err := h.userSvc.CreateTeam(r.Context(), req.Name, req.Code, userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, team)
}

// HandleListTeams handles GET /api/teams, returning the acting user's
// teams.
func (h *Handlers) HandleListTeams(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	teams, err := h.userSvc.Teams(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, teams)
}

// HandleJoinTeam handles POST /api/teams/{code}/join.
func (h *Handlers) HandleJoinTeam(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	code := r.PathValue("code")
	if code == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "team code is required")
		return
	}

	team, err := h.userSvc.JoinTeam(r.Context(), code, userID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, team)
}

type teamMembersResponse struct {
	Members []string `json:"members"`
}

// HandleTeamMembers handles GET /api/teams/{code}/members. Used by the
// notification service to fan out team notifications.
func (h *Handlers) HandleTeamMembers(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if code == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "team code is required")
		return
	}

	members, err := h.userSvc.TeamMembers(r.Context(), code)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	resp := teamMembersResponse{Members: make([]string, 0, len(members))}
	for _, m := range members {
		resp.Members = append(resp.Members, m.String())
	}
	writeJSON(w, r, http.StatusOK, resp)
}
