package api

import (
	"net/http"

	"github.com/ridgeline/intranet/pkg/activity"
	"github.com/ridgeline/intranet/pkg/httputil"
	"github.com/ridgeline/intranet/pkg/wiki"
)

// parseActivityFilter reads the shared query parameters of the activity
// endpoints.
func parseActivityFilter(w http.ResponseWriter, r *http.Request) (activity.Filter, bool) {
	var filter activity.Filter

	limit, err := httputil.ParseQueryInt(r, "limit", 50)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return filter, false
	}
	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return filter, false
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	filter.Limit = limit
	filter.Offset = offset

	if action := r.URL.Query().Get("action"); action != "" {
		filter.Action = activity.Action(action)
	}
	actorID, err := httputil.ParseQueryInt64(r, "actor_id", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return filter, false
	}
	if actorID != 0 {
		filter.ActorID = &actorID
	}

	return filter, true
}

// listPageActivity handles GET /api/v1/pages/{id}/activity
func (s *Server) listPageActivity(w http.ResponseWriter, r *http.Request) {
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

	filter, ok := parseActivityFilter(w, r)
	if !ok {
		return
	}
	filter.PageID = &pageID

	entries, err := s.recorder.List(r.Context(), filter)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, entries)
}

// listActivity handles GET /api/v1/activity. The site-wide feed is
// admin-only since it spans pages the caller may not read.
func (s *Server) listActivity(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	if !user.IsAdmin() {
		httputil.WriteForbidden(w, "admin role required")
		return
	}

	filter, ok := parseActivityFilter(w, r)
	if !ok {
		return
	}

	entries, err := s.recorder.List(r.Context(), filter)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, entries)
}
