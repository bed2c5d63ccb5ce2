package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yourorg/businesshub/internal/domain"
	"github.com/yourorg/businesshub/internal/security/audit"
	"github.com/yourorg/businesshub/internal/security/middleware"
)

// BusinessService is the slice of the service layer the HTTP handlers use.
type BusinessService interface {
	CreateBusiness(ctx context.Context, name string, caller domain.Identity) (*domain.Business, error)
	GetBusiness(ctx context.Context, businessID string, caller domain.Identity) (*domain.Business, error)
	ListBusinessesForUser(ctx context.Context, caller domain.Identity) ([]*domain.Business, error)
	SearchBusinesses(ctx context.Context, query string) ([]*domain.Business, error)
	RequestJoin(ctx context.Context, businessID string, caller domain.Identity, role domain.Role) error
	ListJoinRequests(ctx context.Context, businessID string, caller domain.Identity) ([]*domain.Membership, error)
	ApproveJoinRequest(ctx context.Context, businessID, targetUserID string, caller domain.Identity) error
}

// BusinessHandler serves the business and membership endpoints.
type BusinessHandler struct {
	svc    BusinessService
	audit  *audit.Logger
	logger *slog.Logger
}

func NewBusinessHandler(svc BusinessService, auditLog *audit.Logger, logger *slog.Logger) *BusinessHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if auditLog == nil {
		auditLog = audit.NewLogger(logger)
	}
	return &BusinessHandler{svc: svc, audit: auditLog, logger: logger}
}

// requireIdentity fetches the caller resolved by the identity middleware.
// Reaching a protected handler without one means the middleware chain is
// misconfigured, so the failure is loud.
func requireIdentity(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (domain.Identity, bool) {
	identity, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		logger.Error("protected route reached without identity", slog.String("path", r.URL.Path))
		writeError(w, logger, domain.ErrUnauthenticated)
		return domain.Identity{}, false
	}
	return identity, true
}

type createBusinessRequest struct {
	Name string `json:"name"`
}

// Create handles POST /api/business
func (h *BusinessHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r, h.logger)
	if !ok {
		return
	}

	var req createBusinessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	business, err := h.svc.CreateBusiness(r.Context(), req.Name, identity)
	if err != nil {
		h.audit.LogBusinessCreated(r.Context(), identity.ID.Hex(), "", "failed", err.Error())
		writeError(w, h.logger, err)
		return
	}
	h.audit.LogBusinessCreated(r.Context(), identity.ID.Hex(), business.ID.Hex(), "success", "")
	writeJSON(w, http.StatusCreated, business)
}

// Get handles GET /api/business/{id}
func (h *BusinessHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r, h.logger)
	if !ok {
		return
	}

	business, err := h.svc.GetBusiness(r.Context(), r.PathValue("id"), identity)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, business)
}

// List handles GET /api/business
func (h *BusinessHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r, h.logger)
	if !ok {
		return
	}

	businesses, err := h.svc.ListBusinessesForUser(r.Context(), identity)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, businesses)
}

// Search handles GET /api/business/search?q=... It is the one public
// business endpoint; no identity is required.
func (h *BusinessHandler) Search(w http.ResponseWriter, r *http.Request) {
	businesses, err := h.svc.SearchBusinesses(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, businesses)
}
