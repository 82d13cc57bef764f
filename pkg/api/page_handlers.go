package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ridgeline/intranet/pkg/async"
	"github.com/ridgeline/intranet/pkg/httputil"
	"github.com/ridgeline/intranet/pkg/wiki"
)

// createPage handles POST /api/v1/pages
func (s *Server) createPage(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req createPageRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Title, "title") {
		return
	}

	page, err := s.store.CreatePage(r.Context(), wiki.CreatePageInput{
		Title:    req.Title,
		Content:  req.Content,
		Markdown: req.Markdown,
		ParentID: req.ParentID,
		Tags:     req.Tags,
		Status:   wiki.PageStatus(req.Status),
	}, user)
	s.countOperation(r.Context(), "create", err)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteCreated(w, page)
}

// listPages handles GET /api/v1/pages
func (s *Server) listPages(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	limit, err := httputil.ParseQueryInt(r, "limit", 50)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	pages, total, err := s.store.ListPages(r.Context(), limit, offset)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	// Pages the caller may not read are dropped from the listing rather
	// than erroring the whole response.
	visible := make([]*wiki.Page, 0, len(pages))
	for _, page := range pages {
		if wiki.CanAccess(user, page, wiki.AccessRead) {
			visible = append(visible, page)
		}
	}

	httputil.WriteSuccess(w, pageListResponse{
		Pages:  visible,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// getPage handles GET /api/v1/pages/{id}
func (s *Server) getPage(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	pageID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	page, err := s.store.Authorize(r.Context(), pageID, user, wiki.AccessRead)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	// View counting happens off the request path; a failed bump never
	// fails the read.
	async.SafeGo(r.Context(), 5*time.Second, "view count", func(ctx context.Context) error {
		return s.store.IncrementViewCount(ctx, pageID)
	})
	s.countPageView(r.Context())

	httputil.WriteSuccess(w, page)
}

// getPageBySlug handles GET /api/v1/pages/slug/{slug}
func (s *Server) getPageBySlug(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	slug, ok := httputil.ParsePathStringOrError(w, r, "slug")
	if !ok {
		return
	}

	page, err := s.store.GetPageBySlug(r.Context(), slug)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if !wiki.CanAccess(user, page, wiki.AccessRead) {
		httputil.WriteForbidden(w, "access denied")
		return
	}

	async.SafeGo(r.Context(), 5*time.Second, "view count", func(ctx context.Context) error {
		return s.store.IncrementViewCount(ctx, page.ID)
	})
	s.countPageView(r.Context())

	httputil.WriteSuccess(w, page)
}

// updatePage handles PATCH /api/v1/pages/{id}
func (s *Server) updatePage(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	pageID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req updatePageRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if _, err := s.store.Authorize(r.Context(), pageID, user, wiki.AccessWrite); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	patch := wiki.UpdatePageInput{
		Title:      req.Title,
		Content:    req.Content,
		Markdown:   req.Markdown,
		Tags:       req.Tags,
		ChangeNote: req.ChangeNote,
		MinorEdit:  req.MinorEdit,
	}
	if req.Status != nil {
		status := wiki.PageStatus(*req.Status)
		patch.Status = &status
	}

	page, err := s.store.UpdatePage(r.Context(), pageID, patch, user)
	s.countOperation(r.Context(), "update", err)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if req.Content != nil || req.Markdown != nil {
		s.countVersionCreated(r.Context())
	}

	httputil.WriteSuccess(w, page)
}

// setStatus handles PUT /api/v1/pages/{id}/status
func (s *Server) setStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	pageID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req setStatusRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if _, err := s.store.Authorize(r.Context(), pageID, user, wiki.AccessWrite); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	page, err := s.store.SetStatus(r.Context(), pageID, wiki.PageStatus(req.Status), user)
	s.countOperation(r.Context(), "set_status", err)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, page)
}

// deletePage handles DELETE /api/v1/pages/{id}. Without ?force=true the
// page is archived; with it, the page and its history are removed and the
// attachment objects cleaned out of blob storage.
func (s *Server) deletePage(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	pageID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	force, err := httputil.ParseQueryBool(r, "force", false)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	level := wiki.AccessWrite
	if force {
		level = wiki.AccessAdmin
	}
	if _, err := s.store.Authorize(r.Context(), pageID, user, level); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	blobKeys, err := s.store.Delete(r.Context(), pageID, force, user)
	s.countOperation(r.Context(), "delete", err)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	if force && len(blobKeys) > 0 && s.blobs != nil {
		keys := blobKeys
		async.SafeGo(r.Context(), 30*time.Second, "attachment cleanup", func(ctx context.Context) error {
			return s.blobs.DeleteKeys(ctx, keys)
		})
	}

	httputil.WriteSuccess(w, deleteResponse{
		Archived: !force,
		Deleted:  force,
	})
}
