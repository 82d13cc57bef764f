package api

import (
	"net/http"

	"github.com/ridgeline/intranet/pkg/httputil"
	"github.com/ridgeline/intranet/pkg/wiki"
)

// listVersions handles GET /api/v1/pages/{id}/versions
func (s *Server) listVersions(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	pageID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if _, err := s.store.Authorize(r.Context(), pageID, user, wiki.AccessRead); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	versions, err := s.store.ListVersions(r.Context(), pageID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, versions)
}

// getVersion handles GET /api/v1/pages/{id}/versions/{versionId}
func (s *Server) getVersion(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	pageID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	versionID, ok := httputil.ParsePathInt64OrError(w, r, "versionId")
	if !ok {
		return
	}

	if _, err := s.store.Authorize(r.Context(), pageID, user, wiki.AccessRead); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	version, err := s.store.GetVersion(r.Context(), pageID, versionID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, version)
}

// diffVersions handles GET /api/v1/pages/{id}/diff?from=N&to=M
func (s *Server) diffVersions(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	pageID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	from, err := httputil.ParseQueryInt64(r, "from", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	to, err := httputil.ParseQueryInt64(r, "to", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if from == 0 || to == 0 {
		httputil.WriteValidationError(w, "from and to version ids are required")
		return
	}

	if _, err := s.store.Authorize(r.Context(), pageID, user, wiki.AccessRead); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	diff, err := s.store.DiffVersions(r.Context(), pageID, from, to)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, diff)
}

// revertPage handles POST /api/v1/pages/{id}/revert
func (s *Server) revertPage(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	pageID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req revertRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.VersionID == 0 {
		httputil.WriteValidationError(w, "version_id is required")
		return
	}

	if _, err := s.store.Authorize(r.Context(), pageID, user, wiki.AccessWrite); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	result, err := s.store.Revert(r.Context(), pageID, req.VersionID, req.ChangeNote, user)
	s.countOperation(r.Context(), "revert", err)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.RevertsTotal.Inc()
	}
	s.countVersionCreated(r.Context())

	httputil.WriteSuccess(w, result)
}
