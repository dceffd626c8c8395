package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/TharinduNimesh/api-builder-sub001/pkg/auth"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/models"
	"github.com/TharinduNimesh/api-builder-sub001/pkg/services"
)

// RoleListResponse for GET /api/roles
type RoleListResponse struct {
	Roles []*models.Role `json:"roles"`
}

// RoleMembersResponse for GET /api/roles/{name}/members
type RoleMembersResponse struct {
	Members []*models.RoleMember `json:"members"`
}

// CreateRoleRequest for POST /api/roles
type CreateRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// RolesHandler manages project roles and memberships.
type RolesHandler struct {
	roleService  services.RoleService
	maxBodyBytes int64
	logger       *zap.Logger
}

// NewRolesHandler creates a new roles handler.
func NewRolesHandler(roleService services.RoleService, maxBodyBytes int64, logger *zap.Logger) *RolesHandler {
	return &RolesHandler{
		roleService:  roleService,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// RegisterRoutes registers the role routes on the given mux.
func (h *RolesHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	base := "/api/roles"

	mux.HandleFunc("GET "+base, authMiddleware.RequireOwner(h.List))
	mux.HandleFunc("POST "+base, authMiddleware.RequireOwner(h.Create))
	mux.HandleFunc("DELETE "+base+"/{name}", authMiddleware.RequireOwner(h.Delete))
	mux.HandleFunc("GET "+base+"/{name}/members", authMiddleware.RequireOwner(h.ListMembers))
	mux.HandleFunc("PUT "+base+"/{name}/members/{user}", authMiddleware.RequireOwner(h.AddMember))
	mux.HandleFunc("DELETE "+base+"/{name}/members/{user}", authMiddleware.RequireOwner(h.RemoveMember))
}

// List handles GET /api/roles
func (h *RolesHandler) List(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roleService.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list roles", zap.Error(err))
		WriteError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, RoleListResponse{Roles: roles}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Create handles POST /api/roles
func (h *RolesHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	var req CreateRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, err, h.logger)
		return
	}

	role, err := h.roleService.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		h.logger.Info("Role create failed", zap.String("role", req.Name), zap.Error(err))
		WriteError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, role); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/roles/{name}
func (h *RolesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := h.roleService.Delete(r.Context(), name); err != nil {
		h.logger.Info("Role delete failed", zap.String("role", name), zap.Error(err))
		WriteError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListMembers handles GET /api/roles/{name}/members
func (h *RolesHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	members, err := h.roleService.ListMembers(r.Context(), name)
	if err != nil {
		h.logger.Error("Failed to list role members", zap.String("role", name), zap.Error(err))
		WriteError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, RoleMembersResponse{Members: members}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// AddMember handles PUT /api/roles/{name}/members/{user}
func (h *RolesHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	name, user := r.PathValue("name"), r.PathValue("user")
	if err := h.roleService.AddMember(r.Context(), name, user); err != nil {
		h.logger.Info("Role member add failed",
			zap.String("role", name),
			zap.String("user_id", user),
			zap.Error(err))
		WriteError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveMember handles DELETE /api/roles/{name}/members/{user}
func (h *RolesHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	name, user := r.PathValue("name"), r.PathValue("user")
	if err := h.roleService.RemoveMember(r.Context(), name, user); err != nil {
		h.logger.Info("Role member remove failed",
			zap.String("role", name),
			zap.String("user_id", user),
			zap.Error(err))
		WriteError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
