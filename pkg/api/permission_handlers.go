package api

import (
	"net/http"

	"github.com/ridgeline/intranet/pkg/httputil"
	"github.com/ridgeline/intranet/pkg/wiki"
)

// listPermissions handles GET /api/v1/pages/{id}/permissions
func (s *Server) listPermissions(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	pageID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if _, err := s.store.Authorize(r.Context(), pageID, user, wiki.AccessAdmin); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	permissions, err := s.store.ListPermissions(r.Context(), pageID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, permissions)
}

// setPermission handles PUT /api/v1/pages/{id}/permissions
func (s *Server) setPermission(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	pageID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req setPermissionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if _, err := s.store.Authorize(r.Context(), pageID, user, wiki.AccessAdmin); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	grant := wiki.PagePermission{
		UserID:   req.UserID,
		CanRead:  req.CanRead,
		CanWrite: req.CanWrite,
		CanAdmin: req.CanAdmin,
	}
	if req.Role != nil {
		role := wiki.Role(*req.Role)
		grant.Role = &role
	}

	saved, err := s.store.SetPermission(r.Context(), pageID, grant, user)
	s.countOperation(r.Context(), "set_permission", err)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, saved)
}

// removePermission handles DELETE /api/v1/pages/{id}/permissions/{permissionId}
func (s *Server) removePermission(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	pageID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	permissionID, ok := httputil.ParsePathInt64OrError(w, r, "permissionId")
	if !ok {
		return
	}

	if _, err := s.store.Authorize(r.Context(), pageID, user, wiki.AccessAdmin); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	err := s.store.RemovePermission(r.Context(), pageID, permissionID, user)
	s.countOperation(r.Context(), "remove_permission", err)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}
