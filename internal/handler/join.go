package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/yourorg/businesshub/internal/domain"
)

type joinRequest struct {
	Role string `json:"role"`
}

// RequestJoin handles POST /api/business/{id}/join
func (h *BusinessHandler) RequestJoin(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r, h.logger)
	if !ok {
		return
	}

	// An absent body means "join as a plain user".
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	role := domain.Role(req.Role)
	if req.Role == "" {
		role = domain.RoleUser
	}
	if !role.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "role must be one of creator, admin, user"})
		return
	}

	businessID := r.PathValue("id")
	if err := h.svc.RequestJoin(r.Context(), businessID, identity, role); err != nil {
		h.audit.LogJoinRequested(r.Context(), identity.ID.Hex(), businessID, "failed", err.Error())
		writeError(w, h.logger, err)
		return
	}
	h.audit.LogJoinRequested(r.Context(), identity.ID.Hex(), businessID, "success", string(role))
	writeJSON(w, http.StatusCreated, map[string]string{"status": "pending"})
}

// ListRequests handles GET /api/business/{id}/requests
func (h *BusinessHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r, h.logger)
	if !ok {
		return
	}

	pending, err := h.svc.ListJoinRequests(r.Context(), r.PathValue("id"), identity)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

// Approve handles POST /api/business/{id}/approve/{user_id}
func (h *BusinessHandler) Approve(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r, h.logger)
	if !ok {
		return
	}

	businessID := r.PathValue("id")
	targetUserID := r.PathValue("user_id")
	if err := h.svc.ApproveJoinRequest(r.Context(), businessID, targetUserID, identity); err != nil {
		if errors.Is(err, domain.ErrForbidden) {
			h.audit.LogDenied(r.Context(), identity.ID.Hex(), "approve_join on business "+businessID)
		}
		writeError(w, h.logger, err)
		return
	}
	h.audit.LogJoinApproved(r.Context(), identity.ID.Hex(), businessID, targetUserID, "success")
	writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}
